// Command paseod is the local agent daemon: it supervises coding-agent
// child processes, exposes their lifecycle and streaming output over a
// bidirectional WebSocket protocol (and, optionally, an E2EE relay
// transport for remote clients), brokers permission requests, and exposes
// an MCP tool surface so another agent can drive it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/getpaseo/paseod/internal/agent/adapter"
	"github.com/getpaseo/paseod/internal/agent/adapter/mock"
	"github.com/getpaseo/paseod/internal/agent/adapter/process"
	"github.com/getpaseo/paseod/internal/agent/manager"
	"github.com/getpaseo/paseod/internal/agent/registry"
	"github.com/getpaseo/paseod/internal/analyticsstore"
	"github.com/getpaseo/paseod/internal/config"
	"github.com/getpaseo/paseod/internal/downloadtoken"
	"github.com/getpaseo/paseod/internal/events"
	"github.com/getpaseo/paseod/internal/guard"
	"github.com/getpaseo/paseod/internal/logging"
	"github.com/getpaseo/paseod/internal/mcpsurface"
	"github.com/getpaseo/paseod/internal/pairing"
	"github.com/getpaseo/paseod/internal/session"
	"github.com/getpaseo/paseod/internal/store"
	"github.com/getpaseo/paseod/internal/transport/relay"
	"github.com/getpaseo/paseod/internal/transport/wsconn"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "paseod: loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "paseod: initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("paseod exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := os.MkdirAll(cfg.Home, 0o755); err != nil {
		return fmt.Errorf("creating paseo home %s: %w", cfg.Home, err)
	}

	lockPath := filepath.Join(cfg.Home, "paseod.lock")
	pidLock, err := guard.Acquire(lockPath, cfg.Supervisor.OwnerPID)
	if err != nil {
		return err
	}
	defer pidLock.Release()

	var bus events.Bus
	if cfg.Events.Backend == "nats" {
		log.Info("connecting to event bus", zap.String("backend", "nats"), zap.String("url", cfg.Events.NATSURL))
		natsBus, err := events.NewNATSBus(cfg.Events, log)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer natsBus.Close()
		bus = natsBus
	} else {
		bus = events.NewMemoryBus(log)
		defer bus.Close()
	}

	st, err := store.New(cfg.Home)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	analytics, err := analyticsstore.Open(filepath.Join(cfg.Home, "analytics.db"))
	if err != nil {
		return fmt.Errorf("opening analytics store: %w", err)
	}
	defer analytics.Close()

	reg := registry.New(log)

	factory := newAdapterFactory(reg, log)

	mgr := newTelemetryManager(manager.New(st, reg, factory, log), analytics, bus, log)

	downloads := downloadtoken.New(5*time.Minute, log)
	go downloads.GC(ctx, time.Minute)

	dispatcher := session.NewDispatcher()
	session.RegisterAgentHandlers(dispatcher, mgr)

	keyPair, err := pairing.LoadOrCreateKeyPair(filepath.Join(cfg.Home, "identity.json"))
	if err != nil {
		return fmt.Errorf("loading pairing key pair: %w", err)
	}
	serverID, err := pairing.LoadOrCreateServerID(filepath.Join(cfg.Home, "server_id"))
	if err != nil {
		return fmt.Errorf("loading server id: %w", err)
	}

	gd := guard.New(cfg.Supervisor.Standalone, nil, func(stopCtx context.Context) error {
		cancel()
		return nil
	}, cfg.Supervisor.ShutdownGrace(), log)

	onConn := func(ctx context.Context, clientID string, conn session.Conn, remoteAddr string) {
		log.Info("client connected", zap.String("client_id", clientID), zap.String("remote_addr", remoteAddr))
		sess := session.New(clientID, conn, dispatcher, gd.HandleIntent, log, cfg.Server.OutboxCapacity)
		sess.Run(ctx)
	}

	listener := wsconn.New(cfg.Server, cfg.Auth, log, func(ctx context.Context, clientID string, conn *wsconn.Conn, remoteAddr string) {
		onConn(ctx, clientID, conn, remoteAddr)
	})
	listener.Handle("/api/files/download", downloads.Handler())

	var relayCtrl *relay.Controller
	if cfg.Relay.Enabled {
		relayCtrl = relay.New(cfg.Relay, serverID, keyPair, log, func(ctx context.Context, clientID string, conn *relay.Conn, remoteAddr string) {
			onConn(ctx, clientID, conn, remoteAddr)
		})
		offer := pairing.NewOffer(serverID, keyPair.Public, cfg.Relay.Endpoint)
		if err := pairing.Announce(log, "https://app.paseo.dev", offer); err != nil {
			log.Warn("failed to render pairing offer", zap.Error(err))
		}
	}

	var mcpServer *mcpsurface.Server
	if cfg.MCP.Enabled {
		mcpServer = mcpsurface.New(mcpsurface.Config{
			Addr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.MCP.Port),
			Auth: mcpsurface.AuthConfig{
				Mode:   mcpAuthMode(cfg),
				Bearer: cfg.MCP.Bearer,
				User:   cfg.Auth.Username,
				Pass:   cfg.Auth.Password,
			},
		}, mgr, log)
		if err := mcpServer.Start(ctx); err != nil {
			return fmt.Errorf("starting mcp surface: %w", err)
		}
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- listener.ListenAndServe(ctx)
	}()
	if relayCtrl != nil {
		go func() {
			errCh <- relayCtrl.Run(ctx)
		}()
	}

	log.Info("paseod started",
		zap.String("home", cfg.Home),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("relay_enabled", cfg.Relay.Enabled),
		zap.Bool("mcp_enabled", cfg.MCP.Enabled),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("transport stopped unexpectedly", zap.Error(err))
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Supervisor.ShutdownGrace())
	defer shutdownCancel()
	if mcpServer != nil {
		if err := mcpServer.Stop(shutdownCtx); err != nil {
			log.Warn("mcp surface shutdown error", zap.Error(err))
		}
	}

	log.Info("paseod stopped")
	return nil
}

func mcpAuthMode(cfg *config.Config) string {
	if cfg.MCP.Bearer != "" {
		return "bearer"
	}
	if cfg.Auth.Username != "" {
		return "basic"
	}
	return ""
}

// newAdapterFactory builds the adapter.Factory that dispatches a provider
// tag (e.g. "claude", "codex") to a launched child process, falling back to
// the in-memory mock client for the "mock" tag used by integration tests.
func newAdapterFactory(reg *registry.Registry, log *logging.Logger) adapter.Factory {
	return func(providerTag string) (adapter.AgentClient, error) {
		if providerTag == "mock" {
			return mock.New(), nil
		}
		provider, ok := reg.Lookup(providerTag)
		if !ok || len(provider.BinaryNames) == 0 {
			return nil, fmt.Errorf("no known binary for provider %q", providerTag)
		}
		return process.New(process.Spec{Command: []string{provider.BinaryNames[0]}}, log), nil
	}
}
