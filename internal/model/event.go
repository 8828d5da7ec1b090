package model

import "time"

// CommandStatus is the lifecycle status reported by the command-queue
// subsystem.
type CommandStatus string

const (
	CommandAcknowledged CommandStatus = "acknowledged"
	CommandInProgress   CommandStatus = "in_progress"
	CommandCompleted    CommandStatus = "completed"
	CommandFailed       CommandStatus = "failed"
)

// CommandEvent is one inbound lifecycle event from the command-queue
// subsystem.
type CommandEvent struct {
	CommandID string        `json:"command_id"`
	Status    CommandStatus `json:"status"`

	// Progress accompanies in_progress events.
	Progress float64 `json:"progress,omitempty"`
	// ErrorMessage accompanies failed events.
	ErrorMessage string `json:"error_message,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// StepEvent is one inbound step-level update from the push transport.
// An empty Status means the sender only reports progress.
type StepEvent struct {
	CommandID string     `json:"command_id"`
	StepID    string     `json:"step_id"`
	Progress  float64    `json:"progress"`
	Status    StepStatus `json:"status,omitempty"`
	Message   string     `json:"message,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
