package model

import (
	"testing"
	"time"
)

func TestCloneProgress_DeepCopy(t *testing.T) {
	started := time.Now().Add(-time.Minute)
	eta := time.Now().Add(time.Minute)
	p := Progress{
		CommandID:           "cmd-1",
		TrackingID:          "trk-1",
		OverallProgress:     0.5,
		StartedAt:           started,
		EstimatedCompletion: &eta,
		Steps: []Step{
			{ID: "exec", Status: StepActive, Progress: 0.5, StartedAt: &started,
				Substeps: []Step{{ID: "exec.1", Progress: 0.5}}},
		},
	}

	c := CloneProgress(p)

	// Mutating the original must not leak into the clone.
	p.Steps[0].Progress = 0.9
	p.Steps[0].Substeps[0].Progress = 0.9
	*p.EstimatedCompletion = time.Time{}
	*p.Steps[0].StartedAt = time.Time{}

	if c.Steps[0].Progress != 0.5 {
		t.Errorf("clone step progress = %v, want 0.5", c.Steps[0].Progress)
	}
	if c.Steps[0].Substeps[0].Progress != 0.5 {
		t.Errorf("clone substep progress = %v, want 0.5", c.Steps[0].Substeps[0].Progress)
	}
	if c.EstimatedCompletion.IsZero() {
		t.Error("clone shares EstimatedCompletion pointer with original")
	}
	if c.Steps[0].StartedAt.IsZero() {
		t.Error("clone shares step StartedAt pointer with original")
	}
}

func TestCloneSteps_NilStaysNil(t *testing.T) {
	if got := CloneSteps(nil); got != nil {
		t.Errorf("CloneSteps(nil) = %v, want nil", got)
	}
}

func TestCloneRule_DeepCopy(t *testing.T) {
	now := time.Now()
	r := AlertRule{
		ID:            "r1",
		Conditions:    []AlertCondition{{Metric: "error_rate", Operator: OpGreaterThan, Threshold: 0.1}},
		Actions:       []AlertAction{{Type: ActionLog}},
		LastTriggered: &now,
	}

	c := CloneRule(r)
	r.Conditions[0].Threshold = 0.9
	*r.LastTriggered = time.Time{}

	if c.Conditions[0].Threshold != 0.1 {
		t.Errorf("clone condition threshold = %v, want 0.1", c.Conditions[0].Threshold)
	}
	if c.LastTriggered.IsZero() {
		t.Error("clone shares LastTriggered pointer with original")
	}
}

func TestCloneAlert_DeepCopy(t *testing.T) {
	a := Alert{ID: "a1", AffectedCommands: []string{"cmd-1", "cmd-2"}}
	c := CloneAlert(a)
	a.AffectedCommands[0] = "mutated"
	if c.AffectedCommands[0] != "cmd-1" {
		t.Errorf("clone affected commands = %v, want cmd-1 first", c.AffectedCommands)
	}
}
