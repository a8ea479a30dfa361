// relayd serves the run execution API over HTTP.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relayforge/relay/engine"
	"github.com/relayforge/relay/mcp"
	"github.com/relayforge/relay/provider"
	"github.com/relayforge/relay/provider/anthropic"
	"github.com/relayforge/relay/provider/google"
	"github.com/relayforge/relay/provider/openai"
	"github.com/relayforge/relay/server"
	"github.com/relayforge/relay/store"
	"github.com/relayforge/relay/store/sqlite"
	"github.com/relayforge/relay/tool"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	ctx := context.Background()

	p, err := buildProvider(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize provider", "provider", cfg.Provider, "error", err)
		os.Exit(1)
	}
	logger.Info("provider ready", "provider", cfg.Provider, "model", cfg.Model)

	st, closeStore, err := buildStore(cfg)
	if err != nil {
		logger.Error("failed to initialize store", "db", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	registry := tool.NewRegistry()
	if cfg.EnableDemoTools {
		SetupDemoTools(registry)
		logger.Info("demo tools registered", "tools", registry.Names())
	}
	if cfg.MCPServerURL != "" {
		src, err := mcp.ConnectSSE(ctx, cfg.MCPServerURL)
		if err != nil {
			logger.Error("failed to connect mcp server", "url", cfg.MCPServerURL, "error", err)
			os.Exit(1)
		}
		defer src.Close()
		if err := src.Mirror(registry); err != nil {
			logger.Error("failed to mirror mcp tools", "error", err)
			os.Exit(1)
		}
		logger.Info("mcp tools mirrored", "url", cfg.MCPServerURL, "count", len(src.Tools()))
	}

	eng := engine.New(st, st, p, registry,
		engine.WithLogger(logger),
		engine.WithExecutor(tool.NewExecutor(registry, tool.WithTimeout(cfg.ToolTimeout))),
	)

	srv := server.New(st, eng, p,
		server.WithLogger(logger),
		server.WithStreamHeartbeat(cfg.StreamHeartbeat),
		server.WithStreamMaxDuration(cfg.StreamMaxDuration),
	)

	go func() {
		if err := srv.Start(":" + cfg.Port); err != nil {
			logger.Info("http server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func buildProvider(ctx context.Context, cfg *Config, logger *slog.Logger) (provider.Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		opts := []anthropic.ClientOption{anthropic.WithLogger(logger)}
		if cfg.Model != "" {
			opts = append(opts, anthropic.WithModel(cfg.Model))
		}
		return anthropic.New(cfg.AnthropicKey, opts...), nil
	case "openai":
		opts := []openai.ClientOption{openai.WithLogger(logger)}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		return openai.New(cfg.OpenAIKey, opts...), nil
	default:
		opts := []google.ClientOption{google.WithLogger(logger)}
		if cfg.Model != "" {
			opts = append(opts, google.WithModel(cfg.Model))
		}
		return google.New(ctx, cfg.GoogleKey, opts...)
	}
}

func buildStore(cfg *Config) (store.Store, func(), error) {
	if cfg.DatabasePath == "" {
		return store.NewMemory(), func() {}, nil
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { db.Close() }, nil
}
