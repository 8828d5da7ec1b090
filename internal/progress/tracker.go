package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tgowda/rovertrack/internal/model"
	"go.uber.org/zap"
)

var (
	// ErrStepNotFound is returned when an event references an unknown step.
	ErrStepNotFound = errors.New("step not found")
	// ErrNonLeafProgress is returned when an event tries to set progress on
	// a step with substeps; non-leaf progress is always derived.
	ErrNonLeafProgress = errors.New("progress on non-leaf step is derived, not settable")
	// ErrTerminalCommand is returned for mutations against a command that
	// already reached a terminal outcome.
	ErrTerminalCommand = errors.New("command already terminal")
)

// Tracker applies lifecycle and step events to Progress objects and keeps
// the derived fields consistent. It holds no command state itself; the
// engine owns the live map and serializes calls per command.
type Tracker struct {
	logger *zap.Logger
}

func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{logger: logger.Named("tracker")}
}

// NewProgress creates tracking state for a command. A nil or empty step set
// gets the default four-step pipeline. Each call opens a fresh tracking
// session so a re-tracked command is distinguishable from its earlier run.
func (t *Tracker) NewProgress(commandID string, steps []model.Step, now time.Time) *model.Progress {
	if len(steps) == 0 {
		steps = model.DefaultSteps()
	} else {
		steps = model.CloneSteps(steps)
	}
	return &model.Progress{
		CommandID:     commandID,
		TrackingID:    uuid.NewString(),
		Steps:         steps,
		StartedAt:     now,
		LastUpdatedAt: now,
	}
}

// ApplyCommandEvent folds one lifecycle event from the command queue into
// the tree, then recomputes derived fields. The recompute is synchronous:
// callers may emit the object immediately without stale reads.
func (t *Tracker) ApplyCommandEvent(p *model.Progress, ev model.CommandEvent) error {
	if p.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminalCommand, p.CommandID)
	}
	now := eventTime(ev.Timestamp)

	switch ev.Status {
	case model.CommandAcknowledged:
		t.setStep(p, model.StepIDQueue, 1, model.StepCompleted, "", now)
		t.setStep(p, model.StepIDValidation, 0.5, model.StepActive, "", now)

	case model.CommandInProgress:
		t.setStep(p, model.StepIDValidation, 1, model.StepCompleted, "", now)
		t.setStep(p, model.StepIDExecution, ev.Progress, model.StepActive, "", now)

	case model.CommandCompleted:
		t.setStep(p, model.StepIDExecution, 1, model.StepCompleted, "", now)
		t.setStep(p, model.StepIDResult, 1, model.StepCompleted, "", now)
		p.Outcome = model.OutcomeSuccess
		completed := now
		p.CompletedAt = &completed

	case model.CommandFailed:
		if active := model.ActiveStep(p.Steps); active != nil {
			t.markError(active, ev.ErrorMessage, now)
		}
		p.Outcome = model.OutcomeFailed
		p.ErrorRate = 1
		completed := now
		p.CompletedAt = &completed

	default:
		return fmt.Errorf("unknown command status %q", ev.Status)
	}

	t.recompute(p, now)
	return nil
}

// ApplyStepEvent folds one step-level event from the push transport into the
// tree. Progress is only settable on leaves; status changes are validated
// against the monotonic transition rules.
func (t *Tracker) ApplyStepEvent(p *model.Progress, ev model.StepEvent) error {
	if p.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminalCommand, p.CommandID)
	}
	step := model.FindStep(p.Steps, ev.StepID)
	if step == nil {
		return fmt.Errorf("%w: %s/%s", ErrStepNotFound, p.CommandID, ev.StepID)
	}
	if !step.IsLeaf() {
		return fmt.Errorf("%w: %s/%s", ErrNonLeafProgress, p.CommandID, ev.StepID)
	}

	now := eventTime(ev.Timestamp)
	status := ev.Status
	if status == "" {
		// Progress-only update; an untouched pending step goes active.
		status = step.Status
		if status == model.StepPending && ev.Progress > 0 {
			status = model.StepActive
		}
	}
	if err := model.ValidateStepTransition(step.Status, status); err != nil {
		return err
	}

	t.applyLeaf(step, clamp01(ev.Progress), status, ev.Message, now)
	t.recompute(p, now)
	return nil
}

// setStep is the lifecycle path: it targets a default-pipeline step by ID
// and ignores the event when the step is absent (custom step sets do not
// carry the default IDs). Invalid transitions are skipped rather than
// failed: a late acknowledged event after in_progress must not mark
// validation backwards.
func (t *Tracker) setStep(p *model.Progress, stepID string, fraction float64, status model.StepStatus, message string, now time.Time) {
	step := model.FindStep(p.Steps, stepID)
	if step == nil || !step.IsLeaf() {
		return
	}
	if err := model.ValidateStepTransition(step.Status, status); err != nil {
		t.logger.Debug("lifecycle step update skipped",
			zap.String("command_id", p.CommandID),
			zap.String("step_id", stepID),
			zap.Error(err))
		return
	}
	t.applyLeaf(step, clamp01(fraction), status, message, now)
}

func (t *Tracker) applyLeaf(step *model.Step, fraction float64, status model.StepStatus, message string, now time.Time) {
	if step.StartedAt == nil && status != model.StepPending {
		started := now
		step.StartedAt = &started
	}
	// Terminal statuses pin progress: completed and skipped account for
	// their full weight, error freezes whatever was reached.
	switch status {
	case model.StepCompleted, model.StepSkipped:
		fraction = 1
	case model.StepError:
		fraction = step.Progress
	}
	step.Progress = fraction
	step.Status = status
	if message != "" {
		step.Message = message
	}
	if model.IsStepTerminal(status) && step.CompletedAt == nil {
		completed := now
		step.CompletedAt = &completed
		if step.StartedAt != nil {
			step.Duration = completed.Sub(*step.StartedAt)
		}
	}
}

func (t *Tracker) markError(step *model.Step, message string, now time.Time) {
	if model.IsStepTerminal(step.Status) {
		return
	}
	t.applyLeaf(step, step.Progress, model.StepError, message, now)
}

// recompute refreshes every derived field. Runs after each mutation, inside
// the same critical section, so no observer ever sees a fresh step status
// next to a stale overall fraction.
func (t *Tracker) recompute(p *model.Progress, now time.Time) {
	RefreshDerived(p.Steps)
	p.OverallProgress = ComputeOverall(p.Steps)
	p.LastUpdatedAt = now
	if p.IsTerminal() {
		p.OverallProgress = finalFraction(p)
		p.EstimatedCompletion = nil
		return
	}
	p.EstimatedCompletion = EstimateCompletion(p.OverallProgress, p.StartedAt, now)
}

// finalFraction pins a successful command at 1; a failed command keeps the
// fraction it reached.
func finalFraction(p *model.Progress) float64 {
	if p.Outcome == model.OutcomeSuccess {
		return 1
	}
	return p.OverallProgress
}

func eventTime(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts
}
