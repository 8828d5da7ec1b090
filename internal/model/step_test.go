package model

import "testing"

func TestIsStepTerminal(t *testing.T) {
	tests := []struct {
		status   StepStatus
		terminal bool
	}{
		{StepPending, false},
		{StepActive, false},
		{StepCompleted, true},
		{StepError, true},
		{StepSkipped, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := IsStepTerminal(tt.status); got != tt.terminal {
				t.Errorf("IsStepTerminal(%q) = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestValidateStepTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    StepStatus
		to      StepStatus
		wantErr bool
	}{
		{"pending to active", StepPending, StepActive, false},
		{"pending to completed", StepPending, StepCompleted, false},
		{"pending to skipped", StepPending, StepSkipped, false},
		{"active to completed", StepActive, StepCompleted, false},
		{"active to error", StepActive, StepError, false},
		{"same status refresh", StepActive, StepActive, false},
		{"completed back to active", StepCompleted, StepActive, true},
		{"error back to pending", StepError, StepPending, true},
		{"skipped to completed", StepSkipped, StepCompleted, true},
		{"active back to pending", StepActive, StepPending, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStepTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStepTransition(%q, %q) error = %v, wantErr %v",
					tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestFindStep(t *testing.T) {
	steps := []Step{
		{ID: "a"},
		{ID: "b", Substeps: []Step{
			{ID: "b1"},
			{ID: "b2", Substeps: []Step{{ID: "b2x"}}},
		}},
	}

	for _, id := range []string{"a", "b", "b1", "b2", "b2x"} {
		if found := FindStep(steps, id); found == nil || found.ID != id {
			t.Errorf("FindStep(%q) = %v, want step with that ID", id, found)
		}
	}

	if found := FindStep(steps, "missing"); found != nil {
		t.Errorf("FindStep(missing) = %v, want nil", found)
	}

	// The returned pointer must address the tree, not a copy.
	FindStep(steps, "b2x").Progress = 0.5
	if steps[1].Substeps[1].Substeps[0].Progress != 0.5 {
		t.Error("FindStep returned a detached copy")
	}
}

func TestActiveStep(t *testing.T) {
	steps := []Step{
		{ID: "a", Status: StepCompleted},
		{ID: "b", Status: StepActive, Substeps: []Step{
			{ID: "b1", Status: StepCompleted},
			{ID: "b2", Status: StepActive},
		}},
	}

	// Leaf takes precedence over its active parent.
	if got := ActiveStep(steps); got == nil || got.ID != "b2" {
		t.Errorf("ActiveStep = %v, want b2", got)
	}

	none := []Step{{ID: "a", Status: StepCompleted}}
	if got := ActiveStep(none); got != nil {
		t.Errorf("ActiveStep with no active steps = %v, want nil", got)
	}
}
