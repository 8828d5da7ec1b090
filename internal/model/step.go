// Package model defines the data structures for rovertrack's progress trees,
// metrics, alerts, notifications, and configuration.
package model

import (
	"fmt"
	"time"
)

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepActive    StepStatus = "active"
	StepCompleted StepStatus = "completed"
	StepError     StepStatus = "error"
	StepSkipped   StepStatus = "skipped"
)

var terminalStepStatuses = map[StepStatus]bool{
	StepCompleted: true,
	StepError:     true,
	StepSkipped:   true,
}

// Step status transitions are monotonic: pending → active → terminal.
// pending may jump straight to a terminal status (a queue step is completed
// by a single acknowledgment without ever going active).
var validStepTransitions = map[StepStatus]map[StepStatus]bool{
	StepPending: {
		StepActive:    true,
		StepCompleted: true,
		StepError:     true,
		StepSkipped:   true,
	},
	StepActive: {
		StepCompleted: true,
		StepError:     true,
		StepSkipped:   true,
	},
}

// Step is one node in a command's progress tree. A step with substeps never
// carries authoritative progress; its value is derived from its children.
type Step struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Order       int           `json:"order"`
	Status      StepStatus    `json:"status"`
	Progress    float64       `json:"progress"`
	Message     string        `json:"message,omitempty"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Substeps    []Step        `json:"substeps,omitempty"`
}

// IsLeaf reports whether the step has no substeps.
func (s *Step) IsLeaf() bool {
	return len(s.Substeps) == 0
}

func IsStepTerminal(s StepStatus) bool {
	return terminalStepStatuses[s]
}

// ValidateStepTransition checks a status change against the monotonic
// transition rules. A same-status "transition" is a progress refresh and is
// always allowed.
func ValidateStepTransition(from, to StepStatus) error {
	if from == to {
		return nil
	}
	if IsStepTerminal(from) {
		return fmt.Errorf("cannot transition from terminal step status %q", from)
	}
	allowed, ok := validStepTransitions[from]
	if !ok {
		return fmt.Errorf("unknown step status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid step transition: %q → %q", from, to)
	}
	return nil
}

// FindStep locates a step by ID anywhere in the tree. Returns nil when absent.
func FindStep(steps []Step, id string) *Step {
	for i := range steps {
		if steps[i].ID == id {
			return &steps[i]
		}
		if found := FindStep(steps[i].Substeps, id); found != nil {
			return found
		}
	}
	return nil
}

// ActiveStep returns the first step in tree order with active status, leaves
// taking precedence over their parents. Returns nil when nothing is active.
func ActiveStep(steps []Step) *Step {
	for i := range steps {
		if found := ActiveStep(steps[i].Substeps); found != nil {
			return found
		}
		if steps[i].Status == StepActive {
			return &steps[i]
		}
	}
	return nil
}
