// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Lets LLM agents read and write toolbox data over stdio
package commands

import (
	"fmt"

	"github.com/charmbracelet/log"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/harper/toolbox/internal/apps/catalog"
	"github.com/harper/toolbox/internal/mcp"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs toolbox as an MCP (Model Context Protocol) server so agents can
inspect storage, run SQL, manage todos, and take backups via stdio.`,
		Args: cobra.NoArgs,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by an MCP client)
  toolbox mcp

  # Configure in an MCP client config:
  # {
  #   "mcpServers": {
  #     "toolbox": {
  #       "command": "toolbox",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	m, err := openManager(cmd)
	if err != nil {
		return err
	}
	logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{Prefix: "toolbox"})

	if err := catalog.DeclareAll(commandContext(cmd), m); err != nil {
		_ = m.Close()
		return err
	}

	server := mcpserver.NewMCPServer("toolbox", versionInfo.Version)
	mcp.RegisterTools(server, m, logger)

	ctx := commandContext(cmd)
	if !quiet {
		logger.Info("MCP server starting on stdio")
	}

	// stdio stays blocked on reads after a signal, so serve in the background
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		if !quiet {
			logger.Info("Shutdown signal received, closing storage")
		}
		if err := m.Close(); err != nil {
			logger.Warn("error closing storage", "err", err)
		}
	case err := <-serverErr:
		if cerr := m.Close(); cerr != nil {
			logger.Warn("error closing storage", "err", cerr)
		}
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}
