package progress

import (
	"time"

	"github.com/tgowda/rovertrack/internal/model"
)

// StallDetector runs the per-command liveness state machine: live → stalled
// when an active step goes silent past the stall threshold, stalled → live
// when updates arrive again inside the resume threshold.
type StallDetector struct {
	stallThreshold  time.Duration
	resumeThreshold time.Duration
}

func NewStallDetector(stallThreshold, resumeThreshold time.Duration) *StallDetector {
	if stallThreshold <= 0 {
		stallThreshold = 30 * time.Second
	}
	if resumeThreshold <= 0 {
		resumeThreshold = 5 * time.Second
	}
	return &StallDetector{
		stallThreshold:  stallThreshold,
		resumeThreshold: resumeThreshold,
	}
}

// CheckSilence is the detection path, run on the periodic tick. Returns true
// only on the live→stalled transition, so the caller emits exactly one
// warning per stall episode. While stalled, the recorded duration keeps
// growing but no further transition is reported.
func (d *StallDetector) CheckSilence(p *model.Progress, now time.Time) bool {
	if p.IsTerminal() || model.ActiveStep(p.Steps) == nil {
		return false
	}
	silent := now.Sub(p.LastUpdatedAt)
	if silent <= d.stallThreshold {
		return false
	}
	if p.IsStalled {
		p.StalledDuration = silent
		return false
	}
	p.IsStalled = true
	p.StalledDuration = silent
	return true
}

// CheckResume is the mutation path, run after an update has been applied.
// prev is the command's LastUpdatedAt from before that update, so a
// rejected event never reaches this check and cannot clear the stall. A
// stalled command resumes only when updates arrive within the resume
// threshold of the previous one; a single update after a long silence
// re-arms the clock without clearing the stall. Returns true on the
// stalled→live transition.
func (d *StallDetector) CheckResume(p *model.Progress, prev, now time.Time) bool {
	if !p.IsStalled {
		return false
	}
	if now.Sub(prev) >= d.resumeThreshold {
		return false
	}
	p.IsStalled = false
	p.StalledDuration = 0
	return true
}

// SetThresholds applies a runtime configuration change.
func (d *StallDetector) SetThresholds(stall, resume time.Duration) {
	if stall > 0 {
		d.stallThreshold = stall
	}
	if resume > 0 {
		d.resumeThreshold = resume
	}
}
