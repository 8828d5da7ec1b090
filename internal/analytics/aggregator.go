// Package analytics computes rolling-window statistics over recorded
// performance metrics: latency percentiles, throughput, success and error
// rates, and resource aggregates.
package analytics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/tgowda/rovertrack/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Aggregator owns the bounded metric buffer and derives snapshots from it.
// The buffer is append-only between purges; eviction is FIFO on both the
// size cap and the retention age.
type Aggregator struct {
	mu      sync.RWMutex
	metrics []model.PerformanceMetric

	window    time.Duration
	retention time.Duration
	maxBuffer int

	sf     singleflight.Group
	logger *zap.Logger
}

func New(window, retention time.Duration, maxBuffer int, logger *zap.Logger) *Aggregator {
	if window <= 0 {
		window = time.Hour
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if maxBuffer <= 0 {
		maxBuffer = 10000
	}
	return &Aggregator{
		window:    window,
		retention: retention,
		maxBuffer: maxBuffer,
		logger:    logger.Named("analytics"),
	}
}

// Record appends one metric. When the buffer is at capacity the oldest
// entry is evicted; the buffer is the engine's only backpressure valve and
// never grows unbounded.
func (a *Aggregator) Record(m model.PerformanceMetric) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics = append(a.metrics, m)
	if overflow := len(a.metrics) - a.maxBuffer; overflow > 0 {
		a.metrics = append(a.metrics[:0], a.metrics[overflow:]...)
	}
}

// Len reports the current buffer fill.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.metrics)
}

// Snapshot derives the analytics for the trailing window ending at now.
// liveCommands is the size of the live progress map, reported as current
// throughput. Concurrent callers on the periodic tick are deduplicated;
// everyone gets the same snapshot for that instant.
func (a *Aggregator) Snapshot(now time.Time, liveCommands int) model.AnalyticsSnapshot {
	v, _, _ := a.sf.Do("recompute", func() (any, error) {
		return a.compute(now, liveCommands), nil
	})
	return v.(model.AnalyticsSnapshot)
}

func (a *Aggregator) compute(now time.Time, liveCommands int) model.AnalyticsSnapshot {
	windowStart := now.Add(-a.windowSize())

	a.mu.RLock()
	inWindow := make([]model.PerformanceMetric, 0, len(a.metrics))
	for _, m := range a.metrics {
		if !m.Timestamp.Before(windowStart) && !m.Timestamp.After(now) {
			inWindow = append(inWindow, m)
		}
	}
	a.mu.RUnlock()

	snap := model.AnalyticsSnapshot{
		WindowStart: windowStart,
		WindowEnd:   now,
		SampleCount: len(inWindow),
		Throughput:  model.ThroughputStats{Current: float64(liveCommands)},
	}
	if len(inWindow) == 0 {
		return snap
	}

	execTimes := make([]float64, len(inWindow))
	var execSum, queueSum time.Duration
	var succeeded, errored int
	var cpuSum, memSum float64
	for i, m := range inWindow {
		execTimes[i] = float64(m.ExecutionTime)
		execSum += m.ExecutionTime
		queueSum += m.QueueTime
		// Success and error rates are deliberately independent: a retried
		// command that eventually succeeded counts for neither.
		if m.ErrorCount == 0 {
			succeeded++
		}
		if m.ErrorCount > 0 {
			errored++
		}
		cpuSum += m.Resources.CPUPercent
		memSum += m.Resources.MemoryMB
		if m.Resources.CPUPercent > snap.Resources.PeakCPUPercent {
			snap.Resources.PeakCPUPercent = m.Resources.CPUPercent
		}
		if m.Resources.MemoryMB > snap.Resources.PeakMemoryMB {
			snap.Resources.PeakMemoryMB = m.Resources.MemoryMB
		}
		if m.Throughput > snap.Throughput.Peak {
			snap.Throughput.Peak = m.Throughput
		}
	}

	n := float64(len(inWindow))
	snap.MeanExecution = time.Duration(float64(execSum) / n)
	snap.MeanQueue = time.Duration(float64(queueSum) / n)
	snap.P50Execution = time.Duration(Percentile(50, execTimes))
	snap.P95Execution = time.Duration(Percentile(95, execTimes))
	snap.P99Execution = time.Duration(Percentile(99, execTimes))
	snap.SuccessRate = float64(succeeded) / n
	snap.ErrorRate = float64(errored) / n
	snap.Throughput.Average = n / a.windowSize().Seconds()
	snap.Resources.MeanCPUPercent = cpuSum / n
	snap.Resources.MeanMemoryMB = memSum / n
	return snap
}

// Percentile returns the p-th percentile of values using the nearest-rank
// rule index = ceil(p/100 * n) - 1, clamped to [0, n-1], over the sorted
// values. An empty input yields 0. The index rule is load-bearing: tests
// and alert thresholds pin its exact results.
func Percentile(p float64, values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	index := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// Purge drops metrics older than the retention period. Returns the number
// of dropped entries.
func (a *Aggregator) Purge(now time.Time) int {
	cutoff := now.Add(-a.retentionSize())

	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.metrics[:0]
	for _, m := range a.metrics {
		if !m.Timestamp.Before(cutoff) {
			kept = append(kept, m)
		}
	}
	dropped := len(a.metrics) - len(kept)
	a.metrics = kept
	if dropped > 0 {
		a.logger.Debug("purged aged metrics", zap.Int("dropped", dropped))
	}
	return dropped
}

// SetWindow applies a runtime configuration change.
func (a *Aggregator) SetWindow(window time.Duration) {
	if window <= 0 {
		return
	}
	a.mu.Lock()
	a.window = window
	a.mu.Unlock()
}

// SetRetention applies a runtime configuration change.
func (a *Aggregator) SetRetention(retention time.Duration) {
	if retention <= 0 {
		return
	}
	a.mu.Lock()
	a.retention = retention
	a.mu.Unlock()
}

func (a *Aggregator) windowSize() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.window
}

func (a *Aggregator) retentionSize() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.retention
}
