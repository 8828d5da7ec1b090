// Package alerting evaluates cooldown-gated alert rules against analytics
// snapshots and dispatches their actions.
package alerting

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tgowda/rovertrack/internal/model"
	"go.uber.org/zap"
)

var ErrRuleNotFound = fmt.Errorf("alert rule not found")

// CustomActionFunc is a caller-supplied alert action. A panic inside it is
// contained; it never blocks the remaining actions or other rules.
type CustomActionFunc func(alert model.Alert)

// NotifyFunc raises a user-facing notification for a notification action.
type NotifyFunc func(severity model.NotificationSeverity, title, message string)

// RuleEngine holds the rule table and runs one evaluation pass per alert
// check tick. Rules are evaluated in ID order so triggering is
// deterministic for a given snapshot.
type RuleEngine struct {
	mu            sync.RWMutex
	rules         map[string]*model.AlertRule
	customActions map[string]CustomActionFunc

	notify NotifyFunc
	logger *zap.Logger
}

func NewRuleEngine(logger *zap.Logger) *RuleEngine {
	return &RuleEngine{
		rules:         make(map[string]*model.AlertRule),
		customActions: make(map[string]CustomActionFunc),
		logger:        logger.Named("alerting"),
	}
}

// SetNotifier wires the notification sink for notification actions. Without
// one, notification actions degrade to log actions.
func (e *RuleEngine) SetNotifier(fn NotifyFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notify = fn
}

// RegisterCustomAction makes fn available to actions naming it.
func (e *RuleEngine) RegisterCustomAction(name string, fn CustomActionFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.customActions[name] = fn
}

// AddRule validates and installs a rule, replacing any rule with the same
// ID. Severity defaults to high when unset.
func (e *RuleEngine) AddRule(rule model.AlertRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.Severity == "" {
		rule.Severity = model.AlertSeverityHigh
	}
	stored := model.CloneRule(rule)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[stored.ID] = &stored
	e.logger.Info("alert rule installed",
		zap.String("rule_id", stored.ID),
		zap.String("name", stored.Name),
		zap.Bool("enabled", stored.Enabled))
	return nil
}

// RemoveRule deletes a rule.
func (e *RuleEngine) RemoveRule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rules[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	delete(e.rules, id)
	return nil
}

// SetEnabled toggles a rule without removing it, preserving its trigger
// history.
func (e *RuleEngine) SetEnabled(id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rule, ok := e.rules[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	rule.Enabled = enabled
	return nil
}

// Rules returns a deep-copied view of the rule table, sorted by ID.
func (e *RuleEngine) Rules() []model.AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.AlertRule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, model.CloneRule(*r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Evaluate runs one alert-check pass: disabled rules are skipped, cooling
// rules are skipped, and a rule triggers only when every condition holds
// against the snapshot. A condition naming a metric the snapshot does not
// carry evaluates false; a malformed rule simply never fires. Returns the
// alerts triggered this pass.
func (e *RuleEngine) Evaluate(snap model.AnalyticsSnapshot, affected []string, now time.Time) []model.Alert {
	e.mu.Lock()
	ordered := make([]*model.AlertRule, 0, len(e.rules))
	for _, r := range e.rules {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var triggered []model.Alert
	for _, rule := range ordered {
		if !rule.Enabled {
			continue
		}
		if rule.Cooldown > 0 && rule.LastTriggered != nil && now.Sub(*rule.LastTriggered) < rule.Cooldown {
			continue
		}
		if !conditionsHold(rule, &snap) {
			continue
		}

		rule.TriggerCount++
		ts := now
		rule.LastTriggered = &ts

		alert := model.Alert{
			ID:               uuid.NewString(),
			RuleID:           rule.ID,
			RuleName:         rule.Name,
			Severity:         rule.Severity,
			Message:          triggerMessage(rule),
			TriggeredAt:      now,
			Metrics:          snap,
			AffectedCommands: append([]string(nil), affected...),
		}
		triggered = append(triggered, alert)
	}
	// Snapshot the actions while still holding the lock, run them after
	// releasing it: custom actions are caller code and must not be able to
	// re-enter the engine under our lock.
	plans := make([][]model.AlertAction, len(triggered))
	for i, alert := range triggered {
		plans[i] = append([]model.AlertAction(nil), e.rules[alert.RuleID].Actions...)
	}
	notify := e.notify
	e.mu.Unlock()

	for i, alert := range triggered {
		e.runActions(plans[i], alert, notify)
	}
	return triggered
}

func conditionsHold(rule *model.AlertRule, snap *model.AnalyticsSnapshot) bool {
	for _, cond := range rule.Conditions {
		value, ok := snap.Metric(cond.Metric)
		if !ok {
			return false
		}
		if !cond.Evaluate(value) {
			return false
		}
	}
	return len(rule.Conditions) > 0
}

func triggerMessage(rule *model.AlertRule) string {
	if rule.Description != "" {
		return rule.Description
	}
	return fmt.Sprintf("Alert rule %q triggered", rule.Name)
}

// runActions executes every action in order. Each action is isolated: a
// panic or failure in one is logged and the rest still run.
func (e *RuleEngine) runActions(actions []model.AlertAction, alert model.Alert, notify NotifyFunc) {
	for i, action := range actions {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("alert action panicked",
						zap.String("rule_id", alert.RuleID),
						zap.Int("action", i),
						zap.String("type", string(action.Type)),
						zap.Any("panic", r))
				}
			}()
			e.runAction(action, alert, notify)
		}()
	}
}

func (e *RuleEngine) runAction(action model.AlertAction, alert model.Alert, notify NotifyFunc) {
	message := action.Message
	if message == "" {
		message = alert.Message
	}
	switch action.Type {
	case model.ActionNotification:
		if notify == nil {
			e.logger.Warn("notification action without notifier",
				zap.String("rule_id", alert.RuleID), zap.String("message", message))
			return
		}
		notify(notificationSeverity(alert.Severity), alert.RuleName, message)
	case model.ActionLog:
		e.logger.Warn("alert triggered",
			zap.String("rule_id", alert.RuleID),
			zap.String("rule_name", alert.RuleName),
			zap.String("severity", string(alert.Severity)),
			zap.String("message", message))
	case model.ActionCustom:
		fn := e.customAction(action.Custom)
		if fn == nil {
			e.logger.Warn("custom action not registered",
				zap.String("rule_id", alert.RuleID), zap.String("custom", action.Custom))
			return
		}
		fn(model.CloneAlert(alert))
	}
}

func (e *RuleEngine) customAction(name string) CustomActionFunc {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.customActions[name]
}

func notificationSeverity(s model.AlertSeverity) model.NotificationSeverity {
	switch s {
	case model.AlertSeverityLow:
		return model.SeverityInfo
	case model.AlertSeverityMedium:
		return model.SeverityWarning
	default:
		return model.SeverityError
	}
}
