package model

import "time"

type NotificationSeverity string

const (
	SeverityInfo    NotificationSeverity = "info"
	SeveritySuccess NotificationSeverity = "success"
	SeverityWarning NotificationSeverity = "warning"
	SeverityError   NotificationSeverity = "error"
)

type NotificationKind string

const (
	NotificationProgress NotificationKind = "progress"
	NotificationStall    NotificationKind = "stall"
	NotificationStepErr  NotificationKind = "step_error"
	NotificationAlert    NotificationKind = "alert"
	NotificationSystem   NotificationKind = "system"
)

// SystemCommandID marks engine-level notices that are not tied to a single
// tracked command.
const SystemCommandID = "system"

// NotificationAction is an actionable button attached to a notification; the
// presentation layer decides what invoking it means.
type NotificationAction struct {
	Label   string `json:"label"`
	Command string `json:"command"`
}

// Notification is one user-facing notice. Info and success notices auto-hide;
// warnings and errors persist until read or dismissed.
type Notification struct {
	ID        string               `json:"id"`
	CommandID string               `json:"command_id"`
	Kind      NotificationKind     `json:"kind"`
	Severity  NotificationSeverity `json:"severity"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Timestamp time.Time            `json:"timestamp"`
	Read      bool                 `json:"read"`

	AutoHide      bool                 `json:"auto_hide"`
	AutoHideAfter time.Duration        `json:"auto_hide_after,omitempty"`
	Actions       []NotificationAction `json:"actions,omitempty"`
}
