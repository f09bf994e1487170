package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantbridge/fixgo/internal/fix/engine"
	"github.com/quantbridge/fixgo/internal/logger"
	"github.com/quantbridge/fixgo/pkg/config"
	"github.com/quantbridge/fixgo/pkg/metrics"

	// Imported for its package init, which registers the Prometheus
	// session metrics constructor with pkg/metrics.
	_ "github.com/quantbridge/fixgo/pkg/metrics/prometheus"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the FIX session engine",
	Long: `Start the session engine with the specified configuration.

As an acceptor, the engine listens on session.addr and waits for the
counterparty's Logon. As an initiator, it dials session.addr and sends
the Logon itself.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/fixengine/config.yaml.

Examples:
  # Start with default config location
  fixengine start

  # Start with a custom config
  fixengine start --config /etc/fixengine/config.yaml

  # Override a setting via environment variable
  FIXGO_LOGGING_LEVEL=DEBUG fixengine start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := config.OpenStore(cfg.Session)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Disconnect(ctx); err != nil {
			logger.Error("store disconnect error", "error", err)
		}
	}()

	wireLog, err := config.OpenWireLog(cfg.Session)
	if err != nil {
		return fmt.Errorf("failed to open wire log: %w", err)
	}
	defer func() {
		if err := wireLog.Disconnect(); err != nil {
			logger.Error("wire log disconnect error", "error", err)
		}
	}()

	metrics.InitRegistry(cfg.Metrics.Enabled)
	sessionMetrics := metrics.NewSessionMetrics()

	if cfg.Metrics.Enabled {
		metricsSrv := metrics.NewServer(cfg.Metrics.Port)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
		defer func() {
			if err := metrics.Shutdown(metricsSrv, 5*time.Second); err != nil {
				logger.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	settings, err := sessionSettings(cfg.Session)
	if err != nil {
		return fmt.Errorf("invalid session configuration: %w", err)
	}

	logger.Info("connecting",
		"engine_type", settings.EngineType.String(),
		"addr", cfg.Session.Addr,
		"sender_comp_id", settings.SenderCompID,
		"target_comp_id", settings.TargetCompID)

	conn, err := dialOrAccept(ctx, settings.EngineType, cfg.Session.Addr)
	if err != nil {
		return fmt.Errorf("failed to establish connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	eng, handle := engine.New(settings, conn, st, wireLog)
	eng.SetMetrics(sessionMetrics)

	runDone := make(chan error, 1)
	go func() {
		runDone <- eng.Run(ctx)
	}()

	go func() {
		for msg := range handle.Messages() {
			logger.Info("application message delivered", "bytes", len(msg))
		}
	}()

	if settings.EngineType == engine.Initiator {
		ok, err := handle.Logon(ctx)
		if err != nil {
			return fmt.Errorf("logon failed: %w", err)
		}
		if !ok {
			return fmt.Errorf("logon rejected")
		}
		logger.Info("logon complete")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("session running, press Ctrl+C to log out and stop")

	select {
	case <-sigCh:
		signal.Stop(sigCh)
		logger.Info("shutdown signal received, sending logout")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if ok, err := handle.Logout(shutdownCtx); err != nil || !ok {
			logger.Warn("graceful logout did not complete cleanly", "error", err)
		}
		cancel()

		if err := <-runDone; err != nil {
			logger.Error("engine stopped with error", "error", err)
			return err
		}
		logger.Info("session stopped gracefully")

	case err := <-runDone:
		signal.Stop(sigCh)
		if err != nil {
			logger.Error("engine error", "error", err)
			return err
		}
		logger.Info("session ended")
	}

	return nil
}

// sessionSettings translates the loaded §6 configuration into the
// engine.Settings the session state machine runs on.
func sessionSettings(cfg config.SessionConfig) (engine.Settings, error) {
	var engineType engine.EngineType
	switch cfg.EngineType {
	case "initiator":
		engineType = engine.Initiator
	case "acceptor":
		engineType = engine.Acceptor
	default:
		return engine.Settings{}, fmt.Errorf("unknown engine_type: %q", cfg.EngineType)
	}

	startTime, err := time.Parse("15:04:05", cfg.StartTime)
	if err != nil {
		return engine.Settings{}, fmt.Errorf("invalid start_time %q: %w", cfg.StartTime, err)
	}

	return engine.Settings{
		SenderCompID: cfg.SenderCompID,
		TargetCompID: cfg.TargetCompID,
		BeginString:  cfg.BeginString,
		Epoch:        cfg.Epoch,
		HeartBtInt:   cfg.HeartbeatTimeout,
		EngineType:   engineType,
		StartTime:    startTime,
		ResetSeqNum:  cfg.ResetSeqNum,
	}, nil
}

// dialOrAccept establishes the TCP connection for the session: an
// initiator dials addr, an acceptor listens on it and takes the first
// connection.
func dialOrAccept(ctx context.Context, engineType engine.EngineType, addr string) (net.Conn, error) {
	if engineType == engine.Initiator {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ln.Close() }()

	type result struct {
		conn net.Conn
		err  error
	}
	accepted := make(chan result, 1)
	go func() {
		conn, err := ln.Accept()
		accepted <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-accepted:
		return r.conn, r.err
	}
}
