package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tupldb/remote/internal/admintoken"
	"github.com/tupldb/remote/internal/config"
	"github.com/tupldb/remote/internal/engine/badgerengine"
	"github.com/tupldb/remote/internal/logger"
	"github.com/tupldb/remote/internal/metrics"
	"github.com/tupldb/remote/internal/session"
	"github.com/tupldb/remote/internal/telemetry"
	"github.com/tupldb/remote/pkg/remotedb"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tuplremoted server",
	Long: `Start the remote-access server against the bundled reference engine.

Examples:
  # Start with default config location
  tuplremoted start

  # Start with a custom config file
  tuplremoted start --config /etc/tuplremote/config.yaml

  # Override the listen address via environment
  TUPLREMOTE_SERVER_LISTEN_ADDR=:7171 tuplremoted start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: "stdout"}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        false,
		ServiceName:    "tuplremoted",
		ServiceVersion: Version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	tokens, err := config.ParseTokens(cfg.Server.Tokens)
	if err != nil {
		return fmt.Errorf("parse tokens: %w", err)
	}

	db, err := badgerengine.Open(cfg.Server.DataDir)
	if err != nil {
		return fmt.Errorf("open engine at %s: %w", cfg.Server.DataDir, err)
	}
	defer func() {
		if err := db.Close(context.Background()); err != nil {
			logger.Error("engine close error", "error", err)
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	var issuer *admintoken.Issuer
	if cfg.Diagnostics.Enabled && cfg.Diagnostics.AdminTokenSecret != "" {
		issuer, err = admintoken.NewIssuer(cfg.Diagnostics.AdminTokenSecret, time.Hour)
		if err != nil {
			return fmt.Errorf("init admin token issuer: %w", err)
		}
	}
	tracker := session.NewTracker()

	watcher, err := watchLogLevel(GetConfigFile())
	if err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	} else if watcher != nil {
		defer watcher.Close()
	}

	logger.Info("tuplremoted starting",
		"listen_addr", cfg.Server.ListenAddr,
		"data_dir", cfg.Server.DataDir,
		"metrics_enabled", cfg.Metrics.Enabled,
		"diagnostics_enabled", cfg.Diagnostics.Enabled)

	g, gctx := errgroup.WithContext(ctx)

	srv, err := remotedb.NewServer(db, remotedb.ServerOptions{
		ListenAddr:  cfg.Server.ListenAddr,
		Tokens:      tokens,
		WorkerLimit: cfg.Server.WorkerLimit,
		Metrics:     m,
		Tracker:     tracker,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	g.Go(func() error { return srv.Serve(gctx) })

	if cfg.Metrics.Enabled {
		g.Go(func() error { return serveMetrics(gctx, cfg.Metrics.ListenAddr, m) })
	}

	if cfg.Diagnostics.Enabled {
		g.Go(func() error {
			return remotedb.ServeDiagnostics(gctx, cfg.Diagnostics.ListenAddr, tracker, m, issuer)
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("tuplremoted is running. Press Ctrl+C to stop.")

	select {
	case sig := <-sigCh:
		signal.Stop(sigCh)
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
	case <-gctx.Done():
	}

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		logger.Error("server error", "error", err)
		return err
	}
	logger.Info("tuplremoted stopped")
	return nil
}

func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	}
}

func watchLogLevel(configPath string) (*config.Watcher, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	return config.WatchFile(path, func(c *config.Config) {
		logger.SetLevel(c.Logging.Level)
		logger.SetFormat(c.Logging.Format)
		logger.Info("config reloaded", "level", c.Logging.Level, "format", c.Logging.Format)
	})
}
