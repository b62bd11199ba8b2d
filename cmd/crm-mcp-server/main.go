package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/leadstack/crm-mcp-server/configs"
	"github.com/leadstack/crm-mcp-server/internal/app"
	"github.com/leadstack/crm-mcp-server/internal/audit"
	"github.com/leadstack/crm-mcp-server/internal/config"
	"github.com/leadstack/crm-mcp-server/internal/dsl"
	"github.com/leadstack/crm-mcp-server/internal/idempotency"
	"github.com/leadstack/crm-mcp-server/internal/log"
	"github.com/leadstack/crm-mcp-server/internal/render"
	"github.com/leadstack/crm-mcp-server/internal/runtime"
)

func main() {
	embeddedConfig := flag.String("embedded-config", "", "Use embedded config from configs/ (filename)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.LogLevel)

	var rendered []byte
	if embeddedConfig != nil && *embeddedConfig != "" {
		raw, err := configs.Load(*embeddedConfig)
		if err != nil {
			logger.Error("load embedded config failed", "error", err)
			os.Exit(1)
		}
		rendered, err = render.Bytes(*embeddedConfig, raw)
		if err != nil {
			logger.Error("render config failed", "error", err)
			os.Exit(1)
		}
	} else {
		rendered, err = render.File(cfg.ConfigPath)
		if err != nil {
			logger.Error("render config failed", "error", err)
			os.Exit(1)
		}
	}

	dslCfg, err := dsl.Load(rendered)
	if err != nil {
		logger.Error("parse config failed", "error", err)
		os.Exit(1)
	}

	exec, err := runtime.NewExecutor(dslCfg.Executor)
	if err != nil {
		logger.Error("build executor failed", "error", err)
		os.Exit(1)
	}
	limiter, err := runtime.NewLimiter(dslCfg.Quota)
	if err != nil {
		logger.Error("build rate limiter failed", "error", err)
		os.Exit(1)
	}

	var cache *idempotency.Cache
	if dslCfg.Server.Idempotency.Enabled {
		ttl, err := time.ParseDuration(dslCfg.Server.Idempotency.TTL)
		if err != nil {
			logger.Error("invalid idempotency ttl", "error", err)
			os.Exit(1)
		}
		cache = idempotency.NewCache(ttl, dslCfg.Server.Idempotency.MaxEntries)
	}

	builder := runtime.Builder{
		Logger:  logger,
		Audit:   audit.New(logger),
		Exec:    exec,
		Limiter: limiter,
		Cache:   cache,
	}
	server, err := builder.Build(dslCfg)
	if err != nil {
		logger.Error("build server failed", "error", err)
		os.Exit(1)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	go func() {
		sig := <-sigCh
		logger.Warn("shutdown requested", "signal", sig.String())
		cancel()
	}()

	switch dslCfg.Server.Transport {
	case "stdio":
		if err := runStdio(baseCtx, server); err != nil {
			logger.Error("runtime error", "error", err)
			os.Exit(1)
		}
	default:
		if err := runHTTP(baseCtx, cfg, dslCfg, server, logger); err != nil {
			logger.Error("runtime error", "error", err)
			os.Exit(1)
		}
	}
}

func runStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

func runHTTP(ctx context.Context, envCfg config.Config, dslCfg *dsl.Config, server *mcp.Server, logger *slog.Logger) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{
		Stateless: dslCfg.Server.HTTP.Stateless,
	})

	application, err := app.New(ctx, dslCfg.Server, handler, logger, envCfg.ShutdownTimeout)
	if err != nil {
		return err
	}

	return application.Run(ctx)
}
