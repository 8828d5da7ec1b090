package model

import "time"

// ResourceUsage is the resource footprint reported with a metric.
type ResourceUsage struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemoryMB   float64 `json:"memory_mb"`
}

// PerformanceMetric is one recorded measurement for a command, emitted on
// completion or periodically for long-running commands. Immutable once
// recorded.
type PerformanceMetric struct {
	CommandID     string        `json:"command_id"`
	QueueTime     time.Duration `json:"queue_time"`
	ExecutionTime time.Duration `json:"execution_time"`
	Resources     ResourceUsage `json:"resources"`
	ErrorCount    int           `json:"error_count"`
	RetryCount    int           `json:"retry_count"`
	Throughput    float64       `json:"throughput"`
	Timestamp     time.Time     `json:"timestamp"`
}

// ThroughputStats summarizes command throughput over the analytics window.
type ThroughputStats struct {
	// Current is the number of commands live at snapshot time.
	Current float64 `json:"current"`
	// Average is metrics recorded per second over the window.
	Average float64 `json:"average"`
	// Peak is the highest per-command throughput recorded in the window.
	Peak float64 `json:"peak"`
}

// ResourceStats aggregates resource usage over the analytics window.
type ResourceStats struct {
	MeanCPUPercent float64 `json:"mean_cpu_percent"`
	PeakCPUPercent float64 `json:"peak_cpu_percent"`
	MeanMemoryMB   float64 `json:"mean_memory_mb"`
	PeakMemoryMB   float64 `json:"peak_memory_mb"`
}

// AnalyticsSnapshot is a pure function of the metric set inside a trailing
// window. Derived on each recompute, never persisted.
type AnalyticsSnapshot struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	SampleCount int       `json:"sample_count"`

	MeanExecution time.Duration `json:"mean_execution"`
	P50Execution  time.Duration `json:"p50_execution"`
	P95Execution  time.Duration `json:"p95_execution"`
	P99Execution  time.Duration `json:"p99_execution"`
	MeanQueue     time.Duration `json:"mean_queue"`

	// SuccessRate and ErrorRate are computed independently and are not
	// required to sum to 1: a retried-but-succeeded command counts toward
	// neither denominator's complement.
	SuccessRate float64 `json:"success_rate"`
	ErrorRate   float64 `json:"error_rate"`

	Throughput ThroughputStats `json:"throughput"`
	Resources  ResourceStats   `json:"resources"`
}

// Metric resolves a named scalar from the snapshot for rule evaluation.
// Unknown names report ok=false; callers must treat that as condition-not-met
// rather than an error.
func (s *AnalyticsSnapshot) Metric(name string) (float64, bool) {
	switch name {
	case "sample_count":
		return float64(s.SampleCount), true
	case "mean_execution_ms":
		return float64(s.MeanExecution.Milliseconds()), true
	case "p50_execution_ms":
		return float64(s.P50Execution.Milliseconds()), true
	case "p95_execution_ms":
		return float64(s.P95Execution.Milliseconds()), true
	case "p99_execution_ms":
		return float64(s.P99Execution.Milliseconds()), true
	case "mean_queue_ms":
		return float64(s.MeanQueue.Milliseconds()), true
	case "success_rate":
		return s.SuccessRate, true
	case "error_rate":
		return s.ErrorRate, true
	case "throughput_current":
		return s.Throughput.Current, true
	case "throughput_average":
		return s.Throughput.Average, true
	case "throughput_peak":
		return s.Throughput.Peak, true
	case "mean_cpu_percent":
		return s.Resources.MeanCPUPercent, true
	case "peak_cpu_percent":
		return s.Resources.PeakCPUPercent, true
	case "mean_memory_mb":
		return s.Resources.MeanMemoryMB, true
	case "peak_memory_mb":
		return s.Resources.PeakMemoryMB, true
	default:
		return 0, false
	}
}
