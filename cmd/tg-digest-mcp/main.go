package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/bizdev-tools/tg-digest/internal/conf"
	"github.com/bizdev-tools/tg-digest/internal/data"
	"github.com/bizdev-tools/tg-digest/internal/logger"
	"github.com/bizdev-tools/tg-digest/internal/mcp"
)

const version = "v1.0.0"

// Serves the chat store over MCP stdio. stdout carries the protocol,
// so all logging goes to stderr.
func main() {
	conf.LoadDotEnv()

	cfg := conf.LoadFromEnv()
	if err := cfg.ValidateStore(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	lg := logger.Component("mcp")

	store, err := data.NewChatStore(cfg.Output.DBFile)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lg.Info().Str("db", cfg.Output.DBFile).Msg("Serving chat store over stdio")
	if err := mcp.NewServer(store, version).Run(ctx); err != nil && ctx.Err() == nil {
		lg.Error().Err(err).Msg("MCP server stopped")
	}
}
