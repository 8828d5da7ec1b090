// Command rovertrack runs the tracking engine as a daemon: it loads the
// yaml configuration, starts the engine loops, watches the config file for
// live changes, and serves Prometheus metrics until a shutdown signal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tgowda/rovertrack/internal/engine"
	"github.com/tgowda/rovertrack/internal/events"
	"github.com/tgowda/rovertrack/internal/lock"
	"github.com/tgowda/rovertrack/internal/model"
)

func main() {
	configPath := flag.String("config", "rovertrack.yaml", "path to yaml config file")
	metricsAddr := flag.String("metrics-addr", ":9090", "listen address for /metrics")
	lockPath := flag.String("lock-file", "rovertrack.lock", "single-instance lock file (empty disables)")
	auditPath := flag.String("audit-log", "", "JSONL audit log of alerts and notifications (empty disables)")
	flag.Parse()

	cfg, err := engine.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, *configPath, *metricsAddr, *lockPath, *auditPath, logger); err != nil {
		logger.Fatal("daemon failed", zap.Error(err))
	}
}

func run(cfg model.Config, configPath, metricsAddr, lockPath, auditPath string, logger *zap.Logger) error {
	if lockPath != "" {
		fl := lock.New(lockPath)
		if err := fl.TryLock(); err != nil {
			return err
		}
		defer fl.Unlock()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	eng := engine.New(cfg, reg, logger)
	eng.Start()
	if err := eng.WatchConfig(configPath); err != nil {
		logger.Warn("config hot-reload disabled", zap.Error(err))
	}

	if auditPath != "" {
		audit, err := events.NewAuditLog(auditPath, 0)
		if err != nil {
			logger.Warn("audit log disabled", zap.Error(err))
		} else {
			defer audit.Close()
			eng.Subscribe(events.StreamAlerts, audit.Subscriber())
			eng.Subscribe(events.StreamNotifications, audit.Subscriber())
			logger.Info("audit log enabled", zap.String("path", auditPath))
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: metricsAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listener started", zap.String("addr", metricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		// Second signal forces exit.
		go func() {
			<-sigCh
			logger.Warn("received second signal, forcing exit")
			os.Exit(1)
		}()
	case err := <-errCh:
		logger.Error("metrics listener failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics listener shutdown", zap.Error(err))
	}
	eng.Stop()
	return nil
}

func buildLogger(cfg model.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
