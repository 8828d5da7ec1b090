// Package notify produces severity-filtered, auto-expiring user-facing
// notifications from step, stall, and alert events.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tgowda/rovertrack/internal/model"
	"go.uber.org/zap"
)

// PublishFunc delivers an accepted notification to the notification stream.
type PublishFunc func(n model.Notification)

// Emitter filters notifications against configured severity thresholds and
// stamps identity and expiry policy onto the ones that pass. Info and
// success notices auto-hide; warnings and errors persist until read.
type Emitter struct {
	mu      sync.RWMutex
	cfg     model.NotificationConfig
	publish PublishFunc
	logger  *zap.Logger
}

func NewEmitter(cfg model.NotificationConfig, publish PublishFunc, logger *zap.Logger) *Emitter {
	return &Emitter{
		cfg:     cfg,
		publish: publish,
		logger:  logger.Named("notify"),
	}
}

// Emit builds and publishes a notification. Returns nil when the severity
// is filtered out by configuration.
func (e *Emitter) Emit(commandID string, kind model.NotificationKind, severity model.NotificationSeverity, title, message string, actions ...model.NotificationAction) *model.Notification {
	e.mu.RLock()
	cfg := e.cfg
	e.mu.RUnlock()

	if !allowed(cfg, severity) {
		return nil
	}
	if commandID == "" {
		commandID = model.SystemCommandID
	}

	n := model.Notification{
		ID:        uuid.NewString(),
		CommandID: commandID,
		Kind:      kind,
		Severity:  severity,
		Title:     title,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Actions:   actions,
	}
	if severity == model.SeverityInfo || severity == model.SeveritySuccess {
		n.AutoHide = true
		n.AutoHideAfter = time.Duration(cfg.AutoHideMs) * time.Millisecond
	}

	e.logger.Debug("notification emitted",
		zap.String("command_id", n.CommandID),
		zap.String("kind", string(kind)),
		zap.String("severity", string(severity)),
		zap.String("title", title))

	if e.publish != nil {
		e.publish(n)
	}
	return &n
}

// SetConfig applies a runtime threshold change.
func (e *Emitter) SetConfig(cfg model.NotificationConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
}

func allowed(cfg model.NotificationConfig, severity model.NotificationSeverity) bool {
	switch severity {
	case model.SeverityError:
		return cfg.Error
	case model.SeverityWarning:
		return cfg.Warning
	case model.SeverityInfo:
		return cfg.Info
	case model.SeveritySuccess:
		return cfg.Success
	default:
		return false
	}
}
