package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgowda/rovertrack/internal/model"
	"go.uber.org/zap/zaptest"
)

func errorRateRule(id string, cooldown time.Duration) model.AlertRule {
	return model.AlertRule{
		ID:      id,
		Name:    "high error rate",
		Enabled: true,
		Conditions: []model.AlertCondition{
			{Metric: "error_rate", Operator: model.OpGreaterThan, Threshold: 0.5},
		},
		Actions:  []model.AlertAction{{Type: model.ActionLog}},
		Cooldown: cooldown,
	}
}

func TestRuleEngine_TriggersWhenAllConditionsHold(t *testing.T) {
	e := NewRuleEngine(zaptest.NewLogger(t))
	rule := errorRateRule("r1", 0)
	rule.Conditions = append(rule.Conditions, model.AlertCondition{
		Metric: "sample_count", Operator: model.OpGreaterEqual, Threshold: 10})
	require.NoError(t, e.AddRule(rule))

	now := time.Now().UTC()

	// Only one of two conditions holds.
	alerts := e.Evaluate(model.AnalyticsSnapshot{ErrorRate: 0.9, SampleCount: 5}, nil, now)
	assert.Empty(t, alerts)

	// Both hold.
	alerts = e.Evaluate(model.AnalyticsSnapshot{ErrorRate: 0.9, SampleCount: 20}, []string{"cmd-1"}, now)
	require.Len(t, alerts, 1)
	assert.Equal(t, "r1", alerts[0].RuleID)
	assert.Equal(t, model.AlertSeverityHigh, alerts[0].Severity, "severity defaults to high")
	assert.Equal(t, []string{"cmd-1"}, alerts[0].AffectedCommands)
	assert.Equal(t, 0.9, alerts[0].Metrics.ErrorRate, "alert carries the triggering snapshot")

	rules := e.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, 1, rules[0].TriggerCount)
	require.NotNil(t, rules[0].LastTriggered)
	assert.Equal(t, now, *rules[0].LastTriggered)
}

func TestRuleEngine_CooldownBlocksRetrigger(t *testing.T) {
	e := NewRuleEngine(zaptest.NewLogger(t))
	require.NoError(t, e.AddRule(errorRateRule("r1", time.Minute)))

	snap := model.AnalyticsSnapshot{ErrorRate: 0.9}
	start := time.Now().UTC()

	require.Len(t, e.Evaluate(snap, nil, start), 1)

	// Conditions stay continuously true; the rule must not fire again
	// inside the cooldown window.
	for _, offset := range []time.Duration{5 * time.Second, 30 * time.Second, 59 * time.Second} {
		assert.Empty(t, e.Evaluate(snap, nil, start.Add(offset)), "offset %v", offset)
	}

	require.Len(t, e.Evaluate(snap, nil, start.Add(61*time.Second)), 1)
	assert.Equal(t, 2, e.Rules()[0].TriggerCount)
}

func TestRuleEngine_DisabledRuleSkipped(t *testing.T) {
	e := NewRuleEngine(zaptest.NewLogger(t))
	rule := errorRateRule("r1", 0)
	rule.Enabled = false
	require.NoError(t, e.AddRule(rule))

	assert.Empty(t, e.Evaluate(model.AnalyticsSnapshot{ErrorRate: 0.9}, nil, time.Now()))

	require.NoError(t, e.SetEnabled("r1", true))
	assert.Len(t, e.Evaluate(model.AnalyticsSnapshot{ErrorRate: 0.9}, nil, time.Now()), 1)
}

func TestRuleEngine_MissingMetricNeverFires(t *testing.T) {
	e := NewRuleEngine(zaptest.NewLogger(t))
	rule := errorRateRule("r1", 0)
	rule.Conditions = []model.AlertCondition{
		{Metric: "metric_that_does_not_exist", Operator: model.OpGreaterThan, Threshold: 0},
	}
	require.NoError(t, e.AddRule(rule))

	// Must evaluate false, not panic or error.
	assert.Empty(t, e.Evaluate(model.AnalyticsSnapshot{ErrorRate: 1}, nil, time.Now()))
}

func TestRuleEngine_ActionIsolation(t *testing.T) {
	e := NewRuleEngine(zaptest.NewLogger(t))

	var notified []string
	e.SetNotifier(func(severity model.NotificationSeverity, title, message string) {
		notified = append(notified, message)
	})
	e.RegisterCustomAction("explode", func(alert model.Alert) {
		panic("custom action blew up")
	})

	var customRan bool
	e.RegisterCustomAction("record", func(alert model.Alert) {
		customRan = true
	})

	rule := errorRateRule("r1", 0)
	rule.Actions = []model.AlertAction{
		{Type: model.ActionCustom, Custom: "explode"},
		{Type: model.ActionNotification, Message: "after the panic"},
		{Type: model.ActionCustom, Custom: "record"},
	}
	require.NoError(t, e.AddRule(rule))

	alerts := e.Evaluate(model.AnalyticsSnapshot{ErrorRate: 0.9}, nil, time.Now())
	require.Len(t, alerts, 1)

	assert.Equal(t, []string{"after the panic"}, notified,
		"notification action must run despite earlier panic")
	assert.True(t, customRan, "later custom action must run despite earlier panic")
}

func TestRuleEngine_SeverityMapsToNotificationSeverity(t *testing.T) {
	e := NewRuleEngine(zaptest.NewLogger(t))

	var got model.NotificationSeverity
	e.SetNotifier(func(severity model.NotificationSeverity, title, message string) {
		got = severity
	})

	rule := errorRateRule("r1", 0)
	rule.Severity = model.AlertSeverityMedium
	rule.Actions = []model.AlertAction{{Type: model.ActionNotification}}
	require.NoError(t, e.AddRule(rule))

	e.Evaluate(model.AnalyticsSnapshot{ErrorRate: 0.9}, nil, time.Now())
	assert.Equal(t, model.SeverityWarning, got)
}

func TestRuleEngine_AddRemoveRules(t *testing.T) {
	e := NewRuleEngine(zaptest.NewLogger(t))

	assert.Error(t, e.AddRule(model.AlertRule{ID: "bad"}), "invalid rule rejected")
	assert.ErrorIs(t, e.RemoveRule("ghost"), ErrRuleNotFound)
	assert.ErrorIs(t, e.SetEnabled("ghost", true), ErrRuleNotFound)

	require.NoError(t, e.AddRule(errorRateRule("r1", 0)))
	require.NoError(t, e.AddRule(errorRateRule("r2", 0)))
	assert.Len(t, e.Rules(), 2)

	require.NoError(t, e.RemoveRule("r1"))
	rules := e.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "r2", rules[0].ID)
}

func TestRuleEngine_RulesReturnsCopies(t *testing.T) {
	e := NewRuleEngine(zaptest.NewLogger(t))
	require.NoError(t, e.AddRule(errorRateRule("r1", 0)))

	rules := e.Rules()
	rules[0].Conditions[0].Threshold = 0.0001

	// Mutating the returned slice must not affect evaluation.
	assert.Empty(t, e.Evaluate(model.AnalyticsSnapshot{ErrorRate: 0.2}, nil, time.Now()))
}
