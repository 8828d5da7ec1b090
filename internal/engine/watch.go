package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tgowda/rovertrack/internal/model"
)

// LoadConfig reads a yaml config file and normalizes it. A missing file is
// not an error: the defaults apply.
func LoadConfig(path string) (model.Config, error) {
	cfg := model.DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// WatchConfig hot-reloads the config file: any write or create of path is
// re-read and applied through UpdateConfig. The watch targets the parent
// directory because editors replace files rather than writing in place.
// The loop stops with the engine.
func (e *Engine) WatchConfig(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	e.wg.Add(1)
	go e.watchLoop(watcher, filepath.Clean(path))
	e.logger.Info("watching config file", zap.String("path", path))
	return nil
}

func (e *Engine) watchLoop(watcher *fsnotify.Watcher, path string) {
	defer e.wg.Done()
	defer watcher.Close()

	for {
		select {
		case <-e.ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadConfig(path)
			if err != nil {
				e.logger.Error("config reload failed", zap.Error(err))
				continue
			}
			e.logger.Info("config file changed, reloading", zap.String("path", path))
			e.UpdateConfig(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			e.logger.Error("config watcher error", zap.Error(err))
		}
	}
}
