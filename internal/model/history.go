package model

import "time"

// HistoryEntry is one immutable point in a command's progress trajectory.
// Snapshot is a deep copy taken at append time; later mutation of the live
// Progress never alters it.
type HistoryEntry struct {
	Timestamp time.Time          `json:"timestamp"`
	Snapshot  Progress           `json:"snapshot"`
	Event     *StepEvent         `json:"event,omitempty"`
	Metric    *PerformanceMetric `json:"metric,omitempty"`
	Outcome   CommandOutcome     `json:"outcome,omitempty"`
}
