package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"gridd/internal/config"
	"gridd/internal/httpapi"
	"gridd/internal/node"
	"gridd/pkg/types"
)

func newNodeCmd() *cobra.Command {
	var (
		cfgPath     string
		addr        string
		id          string
		hubURL      string
		advertise   string
		heartbeatS  int
		stereotypes []string
		slots       int
		logLevel    string
	)
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run a worker node agent and register it with the hub",
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
				cfg.Node.Addr = addr
			}
			if cfg.Node.Addr == "" {
				cfg.Node.Addr = envOr("GRIDD_NODE_ADDR", ":5555")
			}
			if id != "" {
				cfg.Node.ID = id
			}
			if hubURL != "" {
				cfg.Node.HubURL = hubURL
			}
			if cfg.Node.HubURL == "" {
				cfg.Node.HubURL = envOr("GRIDD_HUB_URL", "")
			}
			if cfg.Node.HubURL == "" {
				return fmt.Errorf("a hub URL is required (--hub or GRIDD_HUB_URL)")
			}
			if advertise != "" {
				cfg.Node.AdvertiseURI = advertise
			}
			if heartbeatS > 0 {
				cfg.Node.HeartbeatPeriodS = heartbeatS
			}
			for _, s := range stereotypes {
				caps, err := parseStereotype(s)
				if err != nil {
					return err
				}
				cfg.Node.Slots = append(cfg.Node.Slots, node.SlotSpec{Stereotype: caps, Count: slots})
			}
			if len(cfg.Node.Slots) == 0 {
				return fmt.Errorf("at least one slot stereotype is required (--stereotype or config)")
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			return runNode(cfg)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", envOr("GRIDD_CONFIG", ""), "Config file (.toml/.yaml/.json)")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :5555")
	cmd.Flags().StringVar(&id, "id", "", "Node id (random when omitted)")
	cmd.Flags().StringVar(&hubURL, "hub", "", "Hub base URL, e.g. http://localhost:4444")
	cmd.Flags().StringVar(&advertise, "advertise-uri", "", "URI the hub should call this node on (defaults to http://<hostname><addr>)")
	cmd.Flags().IntVar(&heartbeatS, "heartbeat-period", 0, "Heartbeat period in seconds")
	cmd.Flags().StringArrayVar(&stereotypes, "stereotype", nil, "Slot stereotype as k=v[,k=v...]; repeatable")
	cmd.Flags().IntVar(&slots, "slots", 1, "Slots per --stereotype")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error")
	return cmd
}

func runNode(cfg config.Config) error {
	logger := newLogger(cfg.LogLevel).With().Str("role", "node").Logger()

	uri := cfg.Node.AdvertiseURI
	if uri == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "localhost"
		}
		uri = "http://" + host + cfg.Node.Addr
	}
	heartbeat := time.Duration(cfg.Node.HeartbeatPeriodS) * time.Second

	n, err := node.New(node.Config{
		ID:              types.NodeID(cfg.Node.ID),
		URI:             uri,
		Slots:           cfg.Node.Slots,
		HeartbeatPeriod: heartbeat,
	})
	if err != nil {
		return err
	}
	n.SetLogger(logger.With().Str("component", "node").Logger())

	srv := &http.Server{Addr: cfg.Node.Addr, Handler: httpapi.NewNodeMux(n)}
	go func() {
		logger.Info().Str("addr", cfg.Node.Addr).Str("uri", uri).Msg("node agent listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	hub := newHubClient(cfg.Node.HubURL)
	regCtx, regCancel := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := n.Status(regCtx)
	if err == nil {
		err = hub.register(regCtx, st)
	}
	regCancel()
	if err != nil {
		shutdownServer(srv, logger)
		return fmt.Errorf("registering with hub %s: %w", cfg.Node.HubURL, err)
	}
	logger.Info().Str("hub", cfg.Node.HubURL).Str("node_id", string(n.ID())).Msg("registered with hub")

	// Heartbeat loop piggybacks the full status so the hub's cached
	// snapshot stays fresh between health probes.
	hbCtx, hbCancel := context.WithCancel(context.Background())
	go func() {
		period := heartbeat
		if period <= 0 {
			period = node.DefaultHeartbeatPeriod
		}
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-t.C:
				ctx, cancel := context.WithTimeout(hbCtx, period)
				st, err := n.Status(ctx)
				if err == nil {
					err = hub.heartbeat(ctx, st)
				}
				cancel()
				if err != nil && hbCtx.Err() == nil {
					logger.Warn().Err(err).Msg("heartbeat failed")
				}
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutting down")
	hbCancel()

	// Tell the hub we are leaving so it purges our sessions now instead of
	// waiting out the heartbeat budget.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := hub.deregister(ctx, n.ID()); err != nil {
		logger.Warn().Err(err).Msg("deregister failed")
	}
	cancel()
	shutdownServer(srv, logger)
	return nil
}

func shutdownServer(srv *http.Server, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
}

// parseStereotype turns "k=v,k=v" into a capability profile.
func parseStereotype(s string) (types.Capabilities, error) {
	caps := types.Capabilities{}
	for _, pair := range splitCSV(s) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid stereotype entry %q, want k=v", pair)
		}
		caps[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	if len(caps) == 0 {
		return nil, fmt.Errorf("empty stereotype %q", s)
	}
	return caps, nil
}
