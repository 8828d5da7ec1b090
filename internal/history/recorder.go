// Package history keeps a bounded, replayable per-command log of progress
// snapshots.
package history

import (
	"sync"
	"time"

	"github.com/tgowda/rovertrack/internal/model"
	"go.uber.org/zap"
)

// Recorder appends one immutable entry per progress mutation. Retention is
// bounded two ways, enforced independently: a per-command entry cap with
// FIFO eviction, and an age-based purge. A command's final snapshot stays
// in history after the live entry is gone.
type Recorder struct {
	mu      sync.RWMutex
	entries map[string][]model.HistoryEntry

	enabled    bool
	maxEntries int
	retention  time.Duration

	logger *zap.Logger
}

func NewRecorder(enabled bool, maxEntries int, retention time.Duration, logger *zap.Logger) *Recorder {
	if maxEntries <= 0 {
		maxEntries = 50
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Recorder{
		entries:    make(map[string][]model.HistoryEntry),
		enabled:    enabled,
		maxEntries: maxEntries,
		retention:  retention,
		logger:     logger.Named("history"),
	}
}

// Append records the current state of p. The snapshot is a full deep copy:
// later mutation of the live object never rewrites history. Returns the
// number of entries evicted to stay under the cap (0 or 1).
func (r *Recorder) Append(p *model.Progress, ev *model.StepEvent, metric *model.PerformanceMetric) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return 0
	}

	entry := model.HistoryEntry{
		Timestamp: time.Now().UTC(),
		Snapshot:  model.CloneProgress(*p),
		Outcome:   p.Outcome,
	}
	if ev != nil {
		e := *ev
		entry.Event = &e
	}
	if metric != nil {
		m := *metric
		entry.Metric = &m
	}

	list := append(r.entries[p.CommandID], entry)
	evicted := 0
	if overflow := len(list) - r.maxEntries; overflow > 0 {
		list = append(list[:0], list[overflow:]...)
		evicted = overflow
	}
	r.entries[p.CommandID] = list
	return evicted
}

// Entries returns deep copies of a command's history in append order.
func (r *Recorder) Entries(commandID string) []model.HistoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.entries[commandID]
	if len(stored) == 0 {
		return nil
	}
	out := make([]model.HistoryEntry, len(stored))
	for i := range stored {
		out[i] = model.CloneHistoryEntry(stored[i])
	}
	return out
}

// Commands lists the command IDs with recorded history.
func (r *Recorder) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	return out
}

// Purge drops entries older than the retention period and forgets commands
// whose history emptied out. Returns the number of dropped entries.
func (r *Recorder) Purge(now time.Time) int {
	cutoff := now.Add(-r.retentionPeriod())

	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for id, list := range r.entries {
		kept := list[:0]
		for _, e := range list {
			if !e.Timestamp.Before(cutoff) {
				kept = append(kept, e)
			}
		}
		dropped += len(list) - len(kept)
		if len(kept) == 0 {
			delete(r.entries, id)
		} else {
			r.entries[id] = kept
		}
	}
	if dropped > 0 {
		r.logger.Debug("purged aged history entries", zap.Int("dropped", dropped))
	}
	return dropped
}

// SetLimits applies a runtime configuration change. An existing oversized
// log is trimmed on its next append.
func (r *Recorder) SetLimits(maxEntries int, retention time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if maxEntries > 0 {
		r.maxEntries = maxEntries
	}
	if retention > 0 {
		r.retention = retention
	}
}

// SetEnabled toggles recording. Disabling keeps existing history readable.
func (r *Recorder) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

func (r *Recorder) retentionPeriod() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.retention
}
