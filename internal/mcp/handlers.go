// ABOUTME: MCP tool handler implementations for the toolbox server
// ABOUTME: Tool failures are returned as error results, never as protocol errors
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/toolbox/internal/apps/todo"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	store  Store
	todos  *todo.Service
	logger *log.Logger
}

// StorageInfo handles the storage_info tool
func (h *Handlers) StorageInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.store.Initialize(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("storage initialization failed: %v", err)), nil
	}
	info, err := h.store.StorageInfo(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read storage info: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"info":   info,
		"tables": h.store.Tables(),
	})
}

// Query handles the query tool
func (h *Handlers) Query(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("sql")
	if err != nil {
		return mcp.NewToolResultError("sql argument is required and must be a string"), nil
	}
	if !isReadOnly(query) {
		return mcp.NewToolResultError("query only accepts SELECT statements; use execute for writes"), nil
	}
	if err := h.store.Initialize(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("storage initialization failed: %v", err)), nil
	}

	rows, err := h.store.Query(ctx, query, sqlArgs(request)...)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"rows":  rows,
		"count": len(rows),
	})
}

// Execute handles the execute tool
func (h *Handlers) Execute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stmt, err := request.RequireString("sql")
	if err != nil {
		return mcp.NewToolResultError("sql argument is required and must be a string"), nil
	}
	if err := h.store.Initialize(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("storage initialization failed: %v", err)), nil
	}

	res, err := h.store.Execute(ctx, stmt, sqlArgs(request)...)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("execute failed: %v", err)), nil
	}
	return jsonResult(res)
}

// ExportData handles the export_data tool
func (h *Handlers) ExportData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.store.Initialize(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("storage initialization failed: %v", err)), nil
	}
	bundle, err := h.store.ExportData(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}
	return mcp.NewToolResultText(bundle), nil
}

// ImportData handles the import_data tool
func (h *Handlers) ImportData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bundle, err := request.RequireString("bundle")
	if err != nil {
		return mcp.NewToolResultError("bundle argument is required and must be a string"), nil
	}
	if err := h.store.Initialize(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("storage initialization failed: %v", err)), nil
	}
	if err := h.store.ImportData(ctx, bundle); err != nil {
		h.logger.Warn("import failed", "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("import failed: %v", err)), nil
	}
	return mcp.NewToolResultText("import complete"), nil
}

// SaveBackup handles the save_backup tool
func (h *Handlers) SaveBackup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.store.Initialize(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("storage initialization failed: %v", err)), nil
	}
	b, err := h.store.SaveBackup(ctx, request.GetString("label", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("backup failed: %v", err)), nil
	}
	return jsonResult(b)
}

// ListBackups handles the list_backups tool
func (h *Handlers) ListBackups(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.store.Initialize(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("storage initialization failed: %v", err)), nil
	}
	list, err := h.store.Backups(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list backups: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{"backups": list})
}

// RestoreBackup handles the restore_backup tool
func (h *Handlers) RestoreBackup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := h.store.Initialize(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("storage initialization failed: %v", err)), nil
	}
	if err := h.store.RestoreBackup(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("restore failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("restored backup %d", id)), nil
}

// AddTodo handles the add_todo tool
func (h *Handlers) AddTodo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text argument is required and must be a string"), nil
	}
	if err := h.todos.Init(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to prepare todos: %v", err)), nil
	}
	t, err := h.todos.Add(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add todo: %v", err)), nil
	}
	return jsonResult(t)
}

// ListTodos handles the list_todos tool
func (h *Handlers) ListTodos(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := todo.Filter(request.GetString("filter", string(todo.FilterAll)))
	if err := h.todos.Init(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to prepare todos: %v", err)), nil
	}
	list, err := h.todos.List(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list todos: %v", err)), nil
	}
	stats, err := h.todos.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to count todos: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{
		"todos": list,
		"stats": stats,
	})
}

// ToggleTodo handles the toggle_todo tool
func (h *Handlers) ToggleTodo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := h.todos.Init(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to prepare todos: %v", err)), nil
	}
	t, err := h.todos.Toggle(ctx, id)
	if errors.Is(err, todo.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("todo %d not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to toggle todo: %v", err)), nil
	}
	return jsonResult(t)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}

func requireID(request mcp.CallToolRequest) (int64, error) {
	f, err := request.RequireFloat("id")
	if err != nil || f != math.Trunc(f) || f < 1 {
		return 0, errors.New("id argument is required and must be a positive integer")
	}
	return int64(f), nil
}

// sqlArgs converts JSON placeholder values; whole numbers bind as integers
func sqlArgs(request mcp.CallToolRequest) []any {
	raw, ok := request.GetArguments()["args"].([]interface{})
	if !ok {
		return nil
	}
	args := make([]any, len(raw))
	for i, v := range raw {
		if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			v = int64(f)
		}
		args[i] = v
	}
	return args
}

func isReadOnly(query string) bool {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "EXPLAIN":
		return true
	}
	return false
}
