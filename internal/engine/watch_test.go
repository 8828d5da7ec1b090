package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgowda/rovertrack/internal/model"
	"go.uber.org/zap/zaptest"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), cfg)
}

func TestLoadConfig_ParsesAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rovertrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tracker:
  stall_threshold_sec: 45
history:
  enabled: true
  max_entries: 10
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.Tracker.StallThresholdSec)
	assert.Equal(t, 10, cfg.History.MaxEntries)
	// Unset fields fall back to defaults.
	assert.Equal(t, 1000, cfg.Engine.UpdateIntervalMs)
	assert.Equal(t, 5, cfg.Tracker.ResumeThresholdSec)
}

func TestLoadConfig_RejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rovertrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tracker: [not a mapping"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEngine_WatchConfigHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rovertrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tracker:\n  stall_threshold_sec: 30\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	e := New(cfg, nil, zaptest.NewLogger(t))
	t.Cleanup(e.Stop)
	require.NoError(t, e.WatchConfig(path))

	require.NoError(t, os.WriteFile(path, []byte("tracker:\n  stall_threshold_sec: 99\n"), 0644))

	assert.Eventually(t, func() bool {
		return e.Config().Tracker.StallThresholdSec == 99
	}, 5*time.Second, 20*time.Millisecond, "config change was not picked up")
}

func TestEngine_WatchConfigKeepsRunningOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rovertrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tracker:\n  stall_threshold_sec: 30\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	e := New(cfg, nil, zaptest.NewLogger(t))
	t.Cleanup(e.Stop)
	require.NoError(t, e.WatchConfig(path))

	// A malformed write is logged and skipped; the old config stands.
	require.NoError(t, os.WriteFile(path, []byte("tracker: [broken"), 0644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 30, e.Config().Tracker.StallThresholdSec)

	// A later good write still applies.
	require.NoError(t, os.WriteFile(path, []byte("tracker:\n  stall_threshold_sec: 60\n"), 0644))
	assert.Eventually(t, func() bool {
		return e.Config().Tracker.StallThresholdSec == 60
	}, 5*time.Second, 20*time.Millisecond)
}
