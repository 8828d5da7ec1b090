package model

import (
	"fmt"
	"time"
)

type AlertSeverity string

const (
	AlertSeverityLow      AlertSeverity = "low"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

type ConditionOperator string

const (
	OpGreaterThan  ConditionOperator = "gt"
	OpLessThan     ConditionOperator = "lt"
	OpEqual        ConditionOperator = "eq"
	OpGreaterEqual ConditionOperator = "gte"
	OpLessEqual    ConditionOperator = "lte"
	OpNotEqual     ConditionOperator = "ne"
)

// AlertCondition compares one named analytics metric against a threshold.
// All conditions on a rule must hold for the rule to trigger.
type AlertCondition struct {
	Metric    string            `json:"metric" yaml:"metric"`
	Operator  ConditionOperator `json:"operator" yaml:"operator"`
	Threshold float64           `json:"threshold" yaml:"threshold"`
}

// Evaluate applies the operator to a resolved metric value.
func (c AlertCondition) Evaluate(value float64) bool {
	switch c.Operator {
	case OpGreaterThan:
		return value > c.Threshold
	case OpLessThan:
		return value < c.Threshold
	case OpEqual:
		return value == c.Threshold
	case OpGreaterEqual:
		return value >= c.Threshold
	case OpLessEqual:
		return value <= c.Threshold
	case OpNotEqual:
		return value != c.Threshold
	default:
		return false
	}
}

// ActionType is the closed set of alert action kinds.
type ActionType string

const (
	ActionNotification ActionType = "notification"
	ActionLog          ActionType = "log"
	ActionCustom       ActionType = "custom"
)

// AlertAction is one action executed when a rule triggers. Actions run in
// order and are isolated from each other: one failing never prevents the
// rest from running.
type AlertAction struct {
	Type ActionType `json:"type" yaml:"type"`

	// Message overrides the generated text for notification and log actions.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// Custom names a caller-registered action func; only used when
	// Type == ActionCustom.
	Custom string `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// AlertRule is a cooldown-gated conjunction of conditions over the analytics
// snapshot.
type AlertRule struct {
	ID          string           `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled     bool             `json:"enabled" yaml:"enabled"`
	Severity    AlertSeverity    `json:"severity,omitempty" yaml:"severity,omitempty"`
	Conditions  []AlertCondition `json:"conditions" yaml:"conditions"`
	Actions     []AlertAction    `json:"actions" yaml:"actions"`
	Cooldown    time.Duration    `json:"cooldown,omitempty" yaml:"cooldown,omitempty"`

	LastTriggered *time.Time `json:"last_triggered,omitempty" yaml:"-"`
	TriggerCount  int        `json:"trigger_count" yaml:"-"`
}

// Validate rejects rules that could never evaluate meaningfully.
func (r *AlertRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule %s: name is required", r.ID)
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("rule %s: at least one condition is required", r.ID)
	}
	for i, c := range r.Conditions {
		if c.Metric == "" {
			return fmt.Errorf("rule %s: condition %d has no metric", r.ID, i)
		}
		switch c.Operator {
		case OpGreaterThan, OpLessThan, OpEqual, OpGreaterEqual, OpLessEqual, OpNotEqual:
		default:
			return fmt.Errorf("rule %s: condition %d has unknown operator %q", r.ID, i, c.Operator)
		}
	}
	for i, a := range r.Actions {
		switch a.Type {
		case ActionNotification, ActionLog:
		case ActionCustom:
			if a.Custom == "" {
				return fmt.Errorf("rule %s: action %d is custom but names no func", r.ID, i)
			}
		default:
			return fmt.Errorf("rule %s: action %d has unknown type %q", r.ID, i, a.Type)
		}
	}
	return nil
}

// Alert is one triggered instance of a rule, with the metrics snapshot that
// caused it and the commands live at trigger time.
type Alert struct {
	ID       string        `json:"id"`
	RuleID   string        `json:"rule_id"`
	RuleName string        `json:"rule_name"`
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`

	TriggeredAt    time.Time  `json:"triggered_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`

	Metrics          AnalyticsSnapshot `json:"metrics"`
	AffectedCommands []string          `json:"affected_commands,omitempty"`
}
