package model

type Config struct {
	Engine        EngineConfig       `yaml:"engine"`
	Tracker       TrackerConfig      `yaml:"tracker"`
	Analytics     AnalyticsConfig    `yaml:"analytics"`
	Alerting      AlertingConfig     `yaml:"alerting"`
	Notifications NotificationConfig `yaml:"notifications"`
	History       HistoryConfig      `yaml:"history"`
	Logging       LoggingConfig      `yaml:"logging"`
}

type EngineConfig struct {
	// UpdateIntervalMs drives the periodic tick: stall detection,
	// terminal-grace eviction, and the live-map snapshot publish.
	// Interactive consumers typically run this much faster than the
	// default.
	UpdateIntervalMs   int `yaml:"update_interval_ms"`
	CleanupIntervalMin int `yaml:"cleanup_interval_min"`
	// TerminalGraceSec keeps finished commands in the live map for late
	// observers before deletion.
	TerminalGraceSec int `yaml:"terminal_grace_sec"`
}

type TrackerConfig struct {
	StallThresholdSec  int `yaml:"stall_threshold_sec"`
	ResumeThresholdSec int `yaml:"resume_threshold_sec"`
}

type AnalyticsConfig struct {
	WindowMin      int `yaml:"window_min"`
	RetentionHours int `yaml:"retention_hours"`
	MaxBufferSize  int `yaml:"max_buffer_size"`
}

type AlertingConfig struct {
	CheckIntervalSec     int `yaml:"check_interval_sec"`
	ResolvedRetentionMin int `yaml:"resolved_retention_min"`
}

type NotificationConfig struct {
	Error      bool `yaml:"error"`
	Warning    bool `yaml:"warning"`
	Info       bool `yaml:"info"`
	Success    bool `yaml:"success"`
	AutoHideMs int  `yaml:"auto_hide_ms"`
}

type HistoryConfig struct {
	Enabled         bool    `yaml:"enabled"`
	MaxEntries      int     `yaml:"max_entries"`
	RetentionHours  int     `yaml:"retention_hours"`
	ReplaySpeed     float64 `yaml:"replay_speed"`
	ReplaySpacingMs int     `yaml:"replay_spacing_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	cfg := Config{
		Notifications: NotificationConfig{
			Error:   true,
			Warning: true,
			Info:    true,
			Success: true,
		},
		History: HistoryConfig{Enabled: true},
	}
	cfg.Normalize()
	return cfg
}

// Normalize fills zero values with defaults. Boolean fields are left alone:
// an all-false notification config is a valid way to silence the emitter.
func (c *Config) Normalize() {
	if c.Engine.UpdateIntervalMs <= 0 {
		c.Engine.UpdateIntervalMs = 1000
	}
	if c.Engine.CleanupIntervalMin <= 0 {
		c.Engine.CleanupIntervalMin = 60
	}
	if c.Engine.TerminalGraceSec <= 0 {
		c.Engine.TerminalGraceSec = 60
	}
	if c.Tracker.StallThresholdSec <= 0 {
		c.Tracker.StallThresholdSec = 30
	}
	if c.Tracker.ResumeThresholdSec <= 0 {
		c.Tracker.ResumeThresholdSec = 5
	}
	if c.Analytics.WindowMin <= 0 {
		c.Analytics.WindowMin = 60
	}
	if c.Analytics.RetentionHours <= 0 {
		c.Analytics.RetentionHours = 24
	}
	if c.Analytics.MaxBufferSize <= 0 {
		c.Analytics.MaxBufferSize = 10000
	}
	if c.Alerting.CheckIntervalSec <= 0 {
		c.Alerting.CheckIntervalSec = 5
	}
	if c.Alerting.ResolvedRetentionMin <= 0 {
		c.Alerting.ResolvedRetentionMin = 60
	}
	if c.Notifications.AutoHideMs <= 0 {
		c.Notifications.AutoHideMs = 5000
	}
	if c.History.MaxEntries <= 0 {
		c.History.MaxEntries = 50
	}
	if c.History.RetentionHours <= 0 {
		c.History.RetentionHours = 24
	}
	if c.History.ReplaySpeed <= 0 {
		c.History.ReplaySpeed = 1.0
	}
	if c.History.ReplaySpacingMs <= 0 {
		c.History.ReplaySpacingMs = 100
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}
