package model

// Typed deep-copy routines. History snapshots and stream payloads must never
// share mutable slices or pointers with the live Progress objects, so every
// entity that crosses the facade boundary goes through one of these.

// CloneStep returns a deep copy of a step and its subtree.
func CloneStep(s Step) Step {
	out := s
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	out.Substeps = CloneSteps(s.Substeps)
	return out
}

// CloneSteps deep-copies a step slice. Nil stays nil.
func CloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	for i := range steps {
		out[i] = CloneStep(steps[i])
	}
	return out
}

// CloneProgress returns a deep copy of a Progress.
func CloneProgress(p Progress) Progress {
	out := p
	out.Steps = CloneSteps(p.Steps)
	if p.EstimatedCompletion != nil {
		t := *p.EstimatedCompletion
		out.EstimatedCompletion = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// CloneHistoryEntry returns a deep copy of a history entry.
func CloneHistoryEntry(e HistoryEntry) HistoryEntry {
	out := e
	out.Snapshot = CloneProgress(e.Snapshot)
	if e.Event != nil {
		ev := *e.Event
		out.Event = &ev
	}
	if e.Metric != nil {
		m := *e.Metric
		out.Metric = &m
	}
	return out
}

// CloneAlert returns a deep copy of an alert.
func CloneAlert(a Alert) Alert {
	out := a
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		out.ResolvedAt = &t
	}
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		out.AcknowledgedAt = &t
	}
	out.AffectedCommands = append([]string(nil), a.AffectedCommands...)
	return out
}

// CloneRule returns a deep copy of an alert rule.
func CloneRule(r AlertRule) AlertRule {
	out := r
	if r.LastTriggered != nil {
		t := *r.LastTriggered
		out.LastTriggered = &t
	}
	out.Conditions = append([]AlertCondition(nil), r.Conditions...)
	out.Actions = append([]AlertAction(nil), r.Actions...)
	return out
}
