// Package engine is the facade over the tracking pipeline: it owns the live
// command map and the active alert set, runs the periodic maintenance loops,
// and fans everything out over the pub/sub streams.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tgowda/rovertrack/internal/alerting"
	"github.com/tgowda/rovertrack/internal/analytics"
	"github.com/tgowda/rovertrack/internal/events"
	"github.com/tgowda/rovertrack/internal/history"
	"github.com/tgowda/rovertrack/internal/model"
	"github.com/tgowda/rovertrack/internal/notify"
	"github.com/tgowda/rovertrack/internal/progress"
	"go.uber.org/zap"
)

var (
	// ErrNoHistory is returned by Replay for a command with no recorded
	// entries.
	ErrNoHistory = errors.New("no history recorded for command")
	// ErrAlertNotFound is returned for acknowledge/resolve against an
	// unknown alert ID.
	ErrAlertNotFound = errors.New("alert not found")
)

// Engine serializes all mutations of the live map behind one mutex; every
// payload that leaves through a stream or an accessor is a deep copy taken
// inside the critical section, so subscribers never observe torn state.
type Engine struct {
	mu     sync.Mutex
	cfg    model.Config
	live   map[string]*model.Progress
	alerts map[string]*model.Alert

	tracker   *progress.Tracker
	stall     *progress.StallDetector
	analytics *analytics.Aggregator
	rules     *alerting.RuleEngine
	emitter   *notify.Emitter
	recorder  *history.Recorder
	replayer  *history.Replayer
	bus       *events.Bus
	metrics   *Metrics
	logger    *zap.Logger

	updateTicker  *time.Ticker
	alertTicker   *time.Ticker
	cleanupTicker *time.Ticker

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New builds an engine from a normalized configuration. Loops do not run
// until Start; reg may be nil when Prometheus exposure is not wanted.
func New(cfg model.Config, reg prometheus.Registerer, logger *zap.Logger) *Engine {
	cfg.Normalize()
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		cfg:     cfg,
		live:    make(map[string]*model.Progress),
		alerts:  make(map[string]*model.Alert),
		bus:     events.NewBus(256),
		metrics: NewMetrics(reg),
		logger:  logger.Named("engine"),
		ctx:     ctx,
		cancel:  cancel,
	}

	e.tracker = progress.NewTracker(logger)
	e.stall = progress.NewStallDetector(
		time.Duration(cfg.Tracker.StallThresholdSec)*time.Second,
		time.Duration(cfg.Tracker.ResumeThresholdSec)*time.Second)
	e.analytics = analytics.New(
		time.Duration(cfg.Analytics.WindowMin)*time.Minute,
		time.Duration(cfg.Analytics.RetentionHours)*time.Hour,
		cfg.Analytics.MaxBufferSize, logger)
	e.emitter = notify.NewEmitter(cfg.Notifications, e.publishNotification, logger)
	e.rules = alerting.NewRuleEngine(logger)
	e.rules.SetNotifier(func(severity model.NotificationSeverity, title, message string) {
		e.emitter.Emit("", model.NotificationAlert, severity, title, message)
	})
	e.recorder = history.NewRecorder(cfg.History.Enabled, cfg.History.MaxEntries,
		time.Duration(cfg.History.RetentionHours)*time.Hour, logger)
	e.replayer = history.NewReplayer(cfg.History.ReplaySpeed,
		time.Duration(cfg.History.ReplaySpacingMs)*time.Millisecond, logger)

	e.updateTicker = time.NewTicker(time.Duration(cfg.Engine.UpdateIntervalMs) * time.Millisecond)
	e.alertTicker = time.NewTicker(time.Duration(cfg.Alerting.CheckIntervalSec) * time.Second)
	e.cleanupTicker = time.NewTicker(time.Duration(cfg.Engine.CleanupIntervalMin) * time.Minute)

	return e
}

// Start launches the update, alert-check, and cleanup loops.
func (e *Engine) Start() {
	e.wg.Add(3)
	go e.updateLoop()
	go e.alertLoop()
	go e.cleanupLoop()
	e.logger.Info("engine started",
		zap.Int("update_interval_ms", e.cfg.Engine.UpdateIntervalMs),
		zap.Int("alert_check_sec", e.cfg.Alerting.CheckIntervalSec))
}

// Stop cancels the loops, drains them, closes the streams, and clears the
// owned maps. Idempotent.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.cancel()
		e.updateTicker.Stop()
		e.alertTicker.Stop()
		e.cleanupTicker.Stop()
		e.wg.Wait()
		e.bus.Close()

		e.mu.Lock()
		e.live = make(map[string]*model.Progress)
		e.alerts = make(map[string]*model.Alert)
		e.mu.Unlock()

		e.logger.Info("engine stopped")
	})
}

// Config returns the currently applied configuration.
func (e *Engine) Config() model.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Subscribe attaches fn to one outbound stream. Delivery is asynchronous
// and non-blocking; the returned func detaches the subscriber.
func (e *Engine) Subscribe(kind events.StreamKind, fn events.Subscriber) func() {
	return e.bus.Subscribe(kind, fn)
}

// Track opens a tracking session for a command. With no steps the default
// four-step pipeline is used; re-tracking a live command starts a fresh
// session. Returns the initial snapshot.
func (e *Engine) Track(commandID string, steps ...model.Step) model.Progress {
	now := time.Now().UTC()

	e.mu.Lock()
	p := e.tracker.NewProgress(commandID, steps, now)
	e.live[commandID] = p
	e.metrics.LiveCommands.Set(float64(len(e.live)))
	snap := model.CloneProgress(*p)
	e.mu.Unlock()

	e.logger.Info("tracking command",
		zap.String("command_id", commandID),
		zap.String("tracking_id", snap.TrackingID),
		zap.Int("steps", len(snap.Steps)))
	e.bus.Publish(events.StreamProgress, commandID, snap)
	return snap
}

// HandleLifecycleEvent folds one command-queue lifecycle event into the
// tree. An untracked command is tracked implicitly with the default steps.
func (e *Engine) HandleLifecycleEvent(ev model.CommandEvent) error {
	if ev.CommandID == "" {
		return fmt.Errorf("lifecycle event without command id")
	}
	now := eventTime(ev.Timestamp)

	e.mu.Lock()
	p := e.liveOrTrack(ev.CommandID, now)
	prev := p.LastUpdatedAt
	if err := e.tracker.ApplyCommandEvent(p, ev); err != nil {
		e.mu.Unlock()
		return err
	}
	resumed := e.stall.CheckResume(p, prev, now)
	evicted := e.recorder.Append(p, nil, nil)
	snap := model.CloneProgress(*p)
	e.mu.Unlock()

	e.metrics.EventsProcessed.WithLabelValues("lifecycle").Inc()
	if evicted > 0 {
		e.metrics.HistoryEvictions.Add(float64(evicted))
	}
	if resumed {
		e.publishResume(snap)
	}
	e.bus.Publish(events.StreamProgress, snap.CommandID, snap)

	switch ev.Status {
	case model.CommandCompleted:
		e.emitter.Emit(snap.CommandID, model.NotificationProgress, model.SeveritySuccess,
			"Command completed", fmt.Sprintf("Command %s completed successfully", snap.CommandID))
	case model.CommandFailed:
		message := ev.ErrorMessage
		if message == "" {
			message = fmt.Sprintf("Command %s failed", snap.CommandID)
		}
		e.emitter.Emit(snap.CommandID, model.NotificationStepErr, model.SeverityError,
			"Command failed", message)
	}
	return nil
}

// UpdateStep is the push-transport step path. An empty status means the
// sender only reports progress.
func (e *Engine) UpdateStep(commandID, stepID string, fraction float64, status model.StepStatus, message string) error {
	return e.HandleStepEvent(model.StepEvent{
		CommandID: commandID,
		StepID:    stepID,
		Progress:  fraction,
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// HandleStepEvent folds one step-level event into the tree through the same
// pipeline as lifecycle events: apply, resume check, record, publish.
func (e *Engine) HandleStepEvent(ev model.StepEvent) error {
	if ev.CommandID == "" {
		return fmt.Errorf("step event without command id")
	}
	now := eventTime(ev.Timestamp)

	e.mu.Lock()
	p := e.liveOrTrack(ev.CommandID, now)
	prev := p.LastUpdatedAt
	if err := e.tracker.ApplyStepEvent(p, ev); err != nil {
		e.mu.Unlock()
		return err
	}
	resumed := e.stall.CheckResume(p, prev, now)
	evicted := e.recorder.Append(p, &ev, nil)
	snap := model.CloneProgress(*p)
	e.mu.Unlock()

	e.metrics.EventsProcessed.WithLabelValues("step").Inc()
	if evicted > 0 {
		e.metrics.HistoryEvictions.Add(float64(evicted))
	}
	if resumed {
		e.publishResume(snap)
	}
	e.bus.Publish(events.StreamProgress, snap.CommandID, snap)

	if ev.Status == model.StepError {
		title := "Step failed"
		if step := model.FindStep(snap.Steps, ev.StepID); step != nil {
			title = fmt.Sprintf("Step failed: %s", step.Name)
		}
		e.emitter.Emit(snap.CommandID, model.NotificationStepErr, model.SeverityError, title, ev.Message)
	}
	return nil
}

// liveOrTrack must be called with e.mu held.
func (e *Engine) liveOrTrack(commandID string, now time.Time) *model.Progress {
	if p, ok := e.live[commandID]; ok {
		return p
	}
	p := e.tracker.NewProgress(commandID, nil, now)
	e.live[commandID] = p
	e.metrics.LiveCommands.Set(float64(len(e.live)))
	e.logger.Debug("implicitly tracking command", zap.String("command_id", commandID))
	return p
}

// RecordMetric appends one performance measurement to the analytics buffer
// and republishes it on the metrics stream.
func (e *Engine) RecordMetric(m model.PerformanceMetric) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	e.analytics.Record(m)
	e.metrics.MetricBufferFill.Set(float64(e.analytics.Len()))
	e.bus.Publish(events.StreamMetrics, m.CommandID, m)
}

// Analytics derives an on-demand snapshot for the trailing window.
func (e *Engine) Analytics() model.AnalyticsSnapshot {
	e.mu.Lock()
	liveCount := len(e.live)
	e.mu.Unlock()
	return e.analytics.Snapshot(time.Now().UTC(), liveCount)
}

// AddRule installs or replaces an alert rule.
func (e *Engine) AddRule(rule model.AlertRule) error {
	return e.rules.AddRule(rule)
}

// RemoveRule deletes an alert rule.
func (e *Engine) RemoveRule(id string) error {
	return e.rules.RemoveRule(id)
}

// SetRuleEnabled toggles a rule without losing its trigger history.
func (e *Engine) SetRuleEnabled(id string, enabled bool) error {
	return e.rules.SetEnabled(id, enabled)
}

// Rules returns a deep-copied view of the installed rules.
func (e *Engine) Rules() []model.AlertRule {
	return e.rules.Rules()
}

// RegisterAlertAction makes a custom action func available to rules.
func (e *Engine) RegisterAlertAction(name string, fn alerting.CustomActionFunc) {
	e.rules.RegisterCustomAction(name, fn)
}

// AcknowledgeAlert marks an active alert as seen by an operator.
func (e *Engine) AcknowledgeAlert(id, by string) error {
	e.mu.Lock()
	a, ok := e.alerts[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}
	now := time.Now().UTC()
	a.Acknowledged = true
	a.AcknowledgedBy = by
	a.AcknowledgedAt = &now
	out := model.CloneAlert(*a)
	e.mu.Unlock()

	e.bus.Publish(events.StreamAlerts, "", out)
	return nil
}

// ResolveAlert closes an alert. It stays readable until the resolved
// retention elapses, then the cleanup pass drops it.
func (e *Engine) ResolveAlert(id string) error {
	e.mu.Lock()
	a, ok := e.alerts[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}
	if a.ResolvedAt == nil {
		now := time.Now().UTC()
		a.ResolvedAt = &now
	}
	out := model.CloneAlert(*a)
	e.mu.Unlock()

	e.bus.Publish(events.StreamAlerts, "", out)
	return nil
}

// ActiveAlerts returns deep copies of the unresolved alerts, oldest first.
func (e *Engine) ActiveAlerts() []model.Alert {
	e.mu.Lock()
	out := make([]model.Alert, 0, len(e.alerts))
	for _, a := range e.alerts {
		if a.ResolvedAt == nil {
			out = append(out, model.CloneAlert(*a))
		}
	}
	e.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.Before(out[j].TriggeredAt) })
	return out
}

// Progress returns a deep copy of one command's live state.
func (e *Engine) Progress(commandID string) (model.Progress, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.live[commandID]
	if !ok {
		return model.Progress{}, false
	}
	return model.CloneProgress(*p), true
}

// Snapshot returns a deep copy of the full live map.
func (e *Engine) Snapshot() map[string]model.Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]model.Progress, len(e.live))
	for id, p := range e.live {
		out[id] = model.CloneProgress(*p)
	}
	return out
}

// History returns deep copies of a command's recorded trajectory.
func (e *Engine) History(commandID string) []model.HistoryEntry {
	return e.recorder.Entries(commandID)
}

// Replay re-emits a command's recorded history through fn with the original
// timing scaled by speed (<= 0 uses the configured default). Cancellable
// between entries via ctx.
func (e *Engine) Replay(ctx context.Context, commandID string, speed float64, fn history.ReplayFunc) error {
	entries := e.recorder.Entries(commandID)
	if len(entries) == 0 {
		return fmt.Errorf("%w: %s", ErrNoHistory, commandID)
	}
	if err := e.replayer.Replay(ctx, entries, speed, fn); err != nil {
		return err
	}
	e.emitter.Emit(commandID, model.NotificationSystem, model.SeverityInfo,
		"Replay complete", fmt.Sprintf("Replayed %d history entries", len(entries)))
	return nil
}

// UpdateConfig applies a full configuration at runtime: thresholds,
// retention, replay defaults, notification filtering, and loop intervals.
func (e *Engine) UpdateConfig(cfg model.Config) {
	cfg.Normalize()

	e.mu.Lock()
	e.cfg = cfg
	e.stall.SetThresholds(
		time.Duration(cfg.Tracker.StallThresholdSec)*time.Second,
		time.Duration(cfg.Tracker.ResumeThresholdSec)*time.Second)
	e.mu.Unlock()

	e.analytics.SetWindow(time.Duration(cfg.Analytics.WindowMin) * time.Minute)
	e.analytics.SetRetention(time.Duration(cfg.Analytics.RetentionHours) * time.Hour)
	e.emitter.SetConfig(cfg.Notifications)
	e.recorder.SetEnabled(cfg.History.Enabled)
	e.recorder.SetLimits(cfg.History.MaxEntries, time.Duration(cfg.History.RetentionHours)*time.Hour)
	e.replayer.SetDefaults(cfg.History.ReplaySpeed, time.Duration(cfg.History.ReplaySpacingMs)*time.Millisecond)

	e.updateTicker.Reset(time.Duration(cfg.Engine.UpdateIntervalMs) * time.Millisecond)
	e.alertTicker.Reset(time.Duration(cfg.Alerting.CheckIntervalSec) * time.Second)
	e.cleanupTicker.Reset(time.Duration(cfg.Engine.CleanupIntervalMin) * time.Minute)

	e.logger.Info("configuration updated",
		zap.Int("stall_threshold_sec", cfg.Tracker.StallThresholdSec),
		zap.Int("update_interval_ms", cfg.Engine.UpdateIntervalMs),
		zap.Bool("history_enabled", cfg.History.Enabled))
}

func (e *Engine) updateLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.updateTicker.C:
			e.tick(time.Now().UTC())
		}
	}
}

func (e *Engine) alertLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.alertTicker.C:
			e.checkAlerts(time.Now().UTC())
		}
	}
}

func (e *Engine) cleanupLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.cleanupTicker.C:
			e.cleanup(time.Now().UTC())
		}
	}
}

// tick runs the per-interval pass: terminal-grace eviction, stall detection,
// and the full-map snapshot publish.
func (e *Engine) tick(now time.Time) {
	e.mu.Lock()
	grace := time.Duration(e.cfg.Engine.TerminalGraceSec) * time.Second
	var stalled []model.Progress
	for id, p := range e.live {
		if p.IsTerminal() {
			if p.CompletedAt != nil && now.Sub(*p.CompletedAt) > grace {
				delete(e.live, id)
				e.logger.Debug("terminal command evicted", zap.String("command_id", id))
			}
			continue
		}
		if e.stall.CheckSilence(p, now) {
			stalled = append(stalled, model.CloneProgress(*p))
		}
	}
	e.metrics.LiveCommands.Set(float64(len(e.live)))
	snapMap := make(map[string]model.Progress, len(e.live))
	for id, p := range e.live {
		snapMap[id] = model.CloneProgress(*p)
	}
	e.mu.Unlock()

	e.bus.Publish(events.StreamProgressMap, "", snapMap)

	for _, p := range stalled {
		e.metrics.StallsDetected.Inc()
		e.bus.Publish(events.StreamStall, p.CommandID, p)
		e.emitter.Emit(p.CommandID, model.NotificationStall, model.SeverityWarning,
			"Command stalled", stallMessage(p))
		e.logger.Warn("command stalled",
			zap.String("command_id", p.CommandID),
			zap.Duration("silent_for", p.StalledDuration))
	}
}

// checkAlerts runs one alert pass: derive the window snapshot, publish it,
// evaluate the rule table against it, and store what triggered.
func (e *Engine) checkAlerts(now time.Time) {
	e.mu.Lock()
	affected := make([]string, 0, len(e.live))
	for id := range e.live {
		affected = append(affected, id)
	}
	e.mu.Unlock()
	sort.Strings(affected)

	snap := e.analytics.Snapshot(now, len(affected))
	e.bus.Publish(events.StreamAnalytics, "", snap)

	triggered := e.rules.Evaluate(snap, affected, now)
	if len(triggered) == 0 {
		return
	}

	e.mu.Lock()
	for i := range triggered {
		stored := model.CloneAlert(triggered[i])
		e.alerts[stored.ID] = &stored
	}
	e.mu.Unlock()

	for _, a := range triggered {
		e.metrics.AlertsTriggered.Inc()
		e.bus.Publish(events.StreamAlerts, "", a)
		e.logger.Info("alert stored",
			zap.String("alert_id", a.ID),
			zap.String("rule_id", a.RuleID),
			zap.String("severity", string(a.Severity)))
	}
}

// cleanup runs the slow retention pass: aged history, aged metrics, and
// resolved alerts past their retention.
func (e *Engine) cleanup(now time.Time) {
	droppedHistory := e.recorder.Purge(now)
	droppedMetrics := e.analytics.Purge(now)
	e.metrics.MetricBufferFill.Set(float64(e.analytics.Len()))

	e.mu.Lock()
	retention := time.Duration(e.cfg.Alerting.ResolvedRetentionMin) * time.Minute
	droppedAlerts := 0
	for id, a := range e.alerts {
		if a.ResolvedAt != nil && now.Sub(*a.ResolvedAt) > retention {
			delete(e.alerts, id)
			droppedAlerts++
		}
	}
	e.mu.Unlock()

	e.logger.Debug("cleanup pass",
		zap.Int("history_dropped", droppedHistory),
		zap.Int("metrics_dropped", droppedMetrics),
		zap.Int("alerts_dropped", droppedAlerts))
}

func (e *Engine) publishNotification(n model.Notification) {
	e.metrics.NotificationsEmitted.Inc()
	e.bus.Publish(events.StreamNotifications, n.CommandID, n)
}

// publishResume reports the stalled→live transition on the stall stream
// only. The stall warning is the episode's one notification; resuming is
// routine and stays out of the user's face.
func (e *Engine) publishResume(snap model.Progress) {
	e.bus.Publish(events.StreamStall, snap.CommandID, snap)
	e.logger.Info("command resumed", zap.String("command_id", snap.CommandID))
}

func stallMessage(p model.Progress) string {
	silent := p.StalledDuration.Round(time.Second)
	if step := model.ActiveStep(p.Steps); step != nil {
		return fmt.Sprintf("No updates for %s at step: %s", silent, step.Name)
	}
	return fmt.Sprintf("No updates for %s", silent)
}

func eventTime(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts
}
