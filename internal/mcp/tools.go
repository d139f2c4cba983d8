// ABOUTME: MCP tool definitions and registration for the toolbox server
// ABOUTME: Exposes storage info, SQL access, backups, and todos as MCP tools
package mcp

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harper/toolbox/internal/apps/todo"
	"github.com/harper/toolbox/internal/storage"
	"github.com/harper/toolbox/internal/storage/sqlite"
)

// Store is the part of the storage manager the tools need.
type Store interface {
	Initialize(ctx context.Context, preferred ...storage.Kind) error
	InitializeAppTables(ctx context.Context, appName, schemaSQL string) error
	Query(ctx context.Context, query string, args ...any) ([]sqlite.Row, error)
	Execute(ctx context.Context, query string, args ...any) (sqlite.Result, error)
	StorageInfo(ctx context.Context) (storage.Info, error)
	Tables() []string
	ExportData(ctx context.Context) (string, error)
	ImportData(ctx context.Context, text string) error
	SaveBackup(ctx context.Context, label string) (storage.Backup, error)
	Backups(ctx context.Context) ([]storage.Backup, error)
	RestoreBackup(ctx context.Context, id int64) error
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, store Store, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	handlers := &Handlers{
		store:  store,
		todos:  todo.New(store),
		logger: logger.WithPrefix("mcp"),
	}

	server.AddTool(mcp.Tool{
		Name:        "storage_info",
		Description: "Report the active storage backend, its location, size, and remaining capacity.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.StorageInfo)

	server.AddTool(mcp.Tool{
		Name:        "query",
		Description: "Run a read-only SQL query against the local database and return the rows as JSON.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"sql": map[string]interface{}{
					"type":        "string",
					"description": "SELECT statement with ? placeholders",
				},
				"args": map[string]interface{}{
					"type":        "array",
					"description": "Positional values for the placeholders",
				},
			},
			Required: []string{"sql"},
		},
	}, handlers.Query)

	server.AddTool(mcp.Tool{
		Name:        "execute",
		Description: "Run a mutating SQL statement. The database is persisted to the active backend afterwards.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"sql": map[string]interface{}{
					"type":        "string",
					"description": "INSERT, UPDATE, DELETE or DDL statement",
				},
				"args": map[string]interface{}{
					"type":        "array",
					"description": "Positional values for the placeholders",
				},
			},
			Required: []string{"sql"},
		},
	}, handlers.Execute)

	server.AddTool(mcp.Tool{
		Name:        "export_data",
		Description: "Export every declared table as a SQL bundle.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.ExportData)

	server.AddTool(mcp.Tool{
		Name:        "import_data",
		Description: "Import a SQL bundle produced by export_data. Only declared tables may be written.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"bundle": map[string]interface{}{
					"type":        "string",
					"description": "SQL text to import",
				},
			},
			Required: []string{"bundle"},
		},
	}, handlers.ImportData)

	server.AddTool(mcp.Tool{
		Name:        "save_backup",
		Description: "Save a labeled backup of the current data.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"label": map[string]interface{}{
					"type":        "string",
					"description": "Optional label for the backup",
				},
			},
		},
	}, handlers.SaveBackup)

	server.AddTool(mcp.Tool{
		Name:        "list_backups",
		Description: "List saved backups, newest first.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.ListBackups)

	server.AddTool(mcp.Tool{
		Name:        "restore_backup",
		Description: "Replace the current data with a saved backup.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "number",
					"description": "Backup ID from list_backups",
				},
			},
			Required: []string{"id"},
		},
	}, handlers.RestoreBackup)

	server.AddTool(mcp.Tool{
		Name:        "add_todo",
		Description: "Add a todo item.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "What needs doing",
				},
			},
			Required: []string{"text"},
		},
	}, handlers.AddTodo)

	server.AddTool(mcp.Tool{
		Name:        "list_todos",
		Description: "List todo items.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"filter": map[string]interface{}{
					"type":        "string",
					"description": "all, active, or completed (default: all)",
					"default":     "all",
				},
			},
		},
	}, handlers.ListTodos)

	server.AddTool(mcp.Tool{
		Name:        "toggle_todo",
		Description: "Flip a todo between active and completed.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "number",
					"description": "Todo ID",
				},
			},
			Required: []string{"id"},
		},
	}, handlers.ToggleTodo)

	return handlers
}
