// ABOUTME: Main entry point for the toolbox MCP server with stdio transport
// ABOUTME: Initializes storage from the environment and registers all tools
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harper/toolbox/internal/apps/catalog"
	"github.com/harper/toolbox/internal/config"
	"github.com/harper/toolbox/internal/mcp"
	"github.com/harper/toolbox/internal/storage"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "toolbox-server"})

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}
	logger.SetLevel(cfg.Level())

	opts := cfg.StorageOptions()
	opts.Logger = logger
	store := storage.NewManager(opts)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("error closing storage", "err", err)
		}
	}()

	var preferred []storage.Kind
	if kind, _ := storage.ParseKind(cfg.Backend); kind != "" {
		preferred = append(preferred, kind)
	}
	if err := store.Initialize(context.Background(), preferred...); err != nil {
		logger.Fatal("failed to initialize storage", "err", err)
	}
	if err := catalog.DeclareAll(context.Background(), store); err != nil {
		logger.Fatal("failed to declare app tables", "err", err)
	}

	server := mcpserver.NewMCPServer("toolbox", "0.1.0")
	mcp.RegisterTools(server, store, logger)

	logger.Info("MCP server starting on stdio", "backend", store.StorageType())
	if err := mcpserver.ServeStdio(server); err != nil {
		logger.Error("server error", "err", err)
	}
}
