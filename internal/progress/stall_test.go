package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgowda/rovertrack/internal/model"
)

func stalledFixture(lastUpdate time.Time) *model.Progress {
	return &model.Progress{
		CommandID:     "cmd-1",
		Steps:         []model.Step{{ID: "execution", Status: model.StepActive, Progress: 0.5}},
		StartedAt:     lastUpdate.Add(-time.Minute),
		LastUpdatedAt: lastUpdate,
	}
}

func TestStallDetector_EntersStallOnce(t *testing.T) {
	d := NewStallDetector(30*time.Second, 5*time.Second)
	now := time.Now().UTC()
	p := stalledFixture(now.Add(-31 * time.Second))

	require.True(t, d.CheckSilence(p, now), "first check past threshold must transition")
	assert.True(t, p.IsStalled)
	assert.Equal(t, 31*time.Second, p.StalledDuration)

	// Subsequent ticks extend the duration but report no new transition.
	assert.False(t, d.CheckSilence(p, now.Add(10*time.Second)))
	assert.Equal(t, 41*time.Second, p.StalledDuration)
}

func TestStallDetector_BelowThresholdStaysLive(t *testing.T) {
	d := NewStallDetector(30*time.Second, 5*time.Second)
	now := time.Now().UTC()
	p := stalledFixture(now.Add(-29 * time.Second))

	assert.False(t, d.CheckSilence(p, now))
	assert.False(t, p.IsStalled)
}

func TestStallDetector_NoActiveStepNeverStalls(t *testing.T) {
	d := NewStallDetector(30*time.Second, 5*time.Second)
	now := time.Now().UTC()
	p := stalledFixture(now.Add(-time.Hour))
	p.Steps[0].Status = model.StepPending

	assert.False(t, d.CheckSilence(p, now))
	assert.False(t, p.IsStalled)
}

func TestStallDetector_TerminalCommandNeverStalls(t *testing.T) {
	d := NewStallDetector(30*time.Second, 5*time.Second)
	now := time.Now().UTC()
	p := stalledFixture(now.Add(-time.Hour))
	p.Outcome = model.OutcomeSuccess

	assert.False(t, d.CheckSilence(p, now))
}

func TestStallDetector_ResumeWithinThreshold(t *testing.T) {
	d := NewStallDetector(30*time.Second, 5*time.Second)
	now := time.Now().UTC()
	p := stalledFixture(now.Add(-31 * time.Second))
	require.True(t, d.CheckSilence(p, now))

	// First update after the silence: gap exceeds the resume threshold, so
	// the stall persists and only the clock re-arms.
	assert.False(t, d.CheckResume(p, p.LastUpdatedAt, now.Add(time.Second)))
	assert.True(t, p.IsStalled)
	p.LastUpdatedAt = now.Add(time.Second)

	// Second update lands 2s later, inside the resume threshold.
	assert.True(t, d.CheckResume(p, p.LastUpdatedAt, now.Add(3*time.Second)))
	assert.False(t, p.IsStalled)
	assert.Equal(t, time.Duration(0), p.StalledDuration)
}

func TestStallDetector_ResumeOnLiveCommandIsNoop(t *testing.T) {
	d := NewStallDetector(30*time.Second, 5*time.Second)
	now := time.Now().UTC()
	p := stalledFixture(now.Add(-time.Second))

	assert.False(t, d.CheckResume(p, p.LastUpdatedAt, now))
}
