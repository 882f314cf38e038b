package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/comigor/campbot/internal/agent"
	"github.com/comigor/campbot/internal/commerce"
	"github.com/comigor/campbot/internal/config"
	"github.com/comigor/campbot/internal/llm"
	"github.com/comigor/campbot/internal/logger"
	"github.com/comigor/campbot/internal/mcpserver"
	"github.com/comigor/campbot/internal/payment"
	"github.com/comigor/campbot/internal/server"
	"github.com/comigor/campbot/internal/session"
	"github.com/comigor/campbot/pkg/tools"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Format, nil)
	if err := cfg.Validate(); err != nil {
		logger.L.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(cfg.Session)
	if err != nil {
		logger.L.Error("failed to open session store", "backend", cfg.Session.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()
	go session.RunSweeper(ctx, store, cfg.Session.SweepInterval)

	shop := commerce.NewClient(cfg.Commerce)
	gateway := payment.NewGateway(payment.NewStripeAPI(cfg.Payment), shop, cfg.Payment, shop.StorefrontURL())
	registry := tools.NewRegistry(cfg.Commerce.Timeout, tools.All(shop, gateway)...)
	registry.SetTimeout(tools.PaymentLinkToolName, cfg.Payment.Timeout)

	model := llm.FromConfig(cfg.LLM)
	orchestrator := agent.New(model, registry, store, *cfg)

	var mcpHandler http.Handler
	if cfg.MCP.Enabled {
		mcpHandler = mcpserver.Handler(mcpserver.New(registry, version))
		logger.L.Info("MCP endpoint enabled", "path", "/mcp")
	}

	srv := server.New(server.Options{
		Agent:         orchestrator,
		Webhooks:      gateway,
		Catalog:       shop,
		MCP:           mcpHandler,
		MCPToken:      cfg.MCP.Token,
		AllowedOrigin: cfg.Server.AllowedOrigin,
		Version:       version,
	})

	go func() {
		logger.L.Info("starting server", "address", cfg.Addr(), "version", version, "model", cfg.LLM.Model)
		if err := srv.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.L.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("graceful shutdown failed", "error", err)
	}
}

func openStore(cfg config.SessionConfig) (session.Store, func(), error) {
	if cfg.Backend == "sqlite" {
		s, err := session.OpenSQLite(cfg.SQLitePath, session.WithTTL(cfg.TTL))
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.L.Warn("closing session store", "error", err)
			}
		}, nil
	}
	return session.NewMemoryStore(session.WithTTL(cfg.TTL)), func() {}, nil
}
