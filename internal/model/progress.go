package model

import "time"

// CommandOutcome is the terminal disposition of a tracked command. Empty
// until the command reaches a terminal state.
type CommandOutcome string

const (
	OutcomeNone    CommandOutcome = ""
	OutcomeSuccess CommandOutcome = "success"
	OutcomeFailed  CommandOutcome = "failed"
)

// Progress is the live tracking state for one in-flight command. TrackingID
// is unique per tracking session, not per command, so a re-tracked command
// is distinguishable from its earlier run.
type Progress struct {
	CommandID  string `json:"command_id"`
	TrackingID string `json:"tracking_id"`

	Steps           []Step  `json:"steps"`
	OverallProgress float64 `json:"overall_progress"`

	StartedAt           time.Time  `json:"started_at"`
	LastUpdatedAt       time.Time  `json:"last_updated_at"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`

	IsStalled       bool          `json:"is_stalled"`
	StalledDuration time.Duration `json:"stalled_duration,omitempty"`

	Throughput float64 `json:"throughput"`
	ErrorRate  float64 `json:"error_rate"`
	RetryCount int     `json:"retry_count"`

	Outcome CommandOutcome `json:"outcome,omitempty"`
}

// IsTerminal reports whether the command has reached a terminal outcome.
func (p *Progress) IsTerminal() bool {
	return p.Outcome != OutcomeNone
}

// Default step IDs for commands tracked without a custom step set.
const (
	StepIDQueue      = "queue"
	StepIDValidation = "validation"
	StepIDExecution  = "execution"
	StepIDResult     = "result"
)

// DefaultSteps returns the standard four-step pipeline used when a command
// is tracked without a custom step set.
func DefaultSteps() []Step {
	return []Step{
		{ID: StepIDQueue, Name: "Queued", Order: 0, Status: StepPending},
		{ID: StepIDValidation, Name: "Validation", Order: 1, Status: StepPending},
		{ID: StepIDExecution, Name: "Execution", Order: 2, Status: StepPending},
		{ID: StepIDResult, Name: "Result", Order: 3, Status: StepPending},
	}
}
