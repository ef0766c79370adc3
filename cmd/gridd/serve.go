package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"gridd/internal/config"
	"gridd/internal/distributor"
	"gridd/internal/eventbus"
	"gridd/internal/httpapi"
)

func newServeCmd() *cobra.Command {
	var (
		cfgPath  string
		addr     string
		logLevel string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the hub: distributor, session directory and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg config.Config
			if cfgPath != "" {
				loaded, err := config.Load(cfgPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if addr != "" {
				cfg.Hub.Addr = addr
			}
			if cfg.Hub.Addr == "" {
				cfg.Hub.Addr = envOr("GRIDD_ADDR", ":4444")
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", envOr("GRIDD_CONFIG", ""), "Config file (.toml/.yaml/.json)")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :4444")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error")
	return cmd
}

func runServe(cfg config.Config) error {
	logger := newLogger(cfg.LogLevel).With().Str("role", "hub").Logger()

	bus := eventbus.NewLocalBus()
	defer bus.Close()

	d := distributor.New(distributor.Config{
		RequestTimeout:      time.Duration(cfg.Hub.SessionRequestTimeoutS) * time.Second,
		MaxBacklog:          cfg.Hub.MaxBacklog,
		RetryInterval:       time.Duration(cfg.Hub.RetryIntervalMS) * time.Millisecond,
		HealthCheckInterval: time.Duration(cfg.Hub.HealthCheckIntervalS) * time.Second,
		ProbeTimeout:        time.Duration(cfg.Hub.ProbeTimeoutS) * time.Second,
		DownThreshold:       cfg.Hub.DownThreshold,
		EvictOnFirstDown:    cfg.Hub.EvictOnFirstDown,
		HeartbeatBudget:     cfg.Hub.HeartbeatBudget,
	})
	defer d.Close()
	d.SetLogger(logger.With().Str("component", "distributor").Logger())
	d.SetEventPublisher(bus)

	// The directory also follows bus events, so cleanup published by other
	// components (or duplicated deliveries) converges to the same state.
	detachDir := d.Directory().AttachBus(bus)
	defer detachDir()
	detachMetrics := httpapi.ObserveBus(bus, d)
	defer detachMetrics()

	httpapi.SetLogger(logger.With().Str("component", "http").Logger())
	if cfg.Hub.MaxBodyBytes > 0 {
		httpapi.SetMaxBodyBytes(cfg.Hub.MaxBodyBytes)
	}
	if cfg.Hub.CORSEnabled {
		httpapi.SetCORSOptions(true,
			splitCSV(envOr("GRIDD_CORS_ORIGINS", "*")),
			[]string{"GET", "POST", "DELETE", "OPTIONS"},
			[]string{"Accept", "Content-Type", "X-Log-Level"},
		)
	}

	// Cancel queued session waits when shutdown begins.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{Addr: cfg.Hub.Addr, Handler: httpapi.NewMux(d)}
	go func() {
		logger.Info().Str("addr", cfg.Hub.Addr).Msg("hub listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutting down")
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

// newLogger builds a console zerolog logger at the given level; an empty or
// unknown level means info.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}
