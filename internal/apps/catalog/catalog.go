// ABOUTME: Registry of every app schema the toolbox ships
// ABOUTME: Declaring them all lets export, import and backups see every table
package catalog

import (
	"context"
	"fmt"

	"github.com/harper/toolbox/internal/apps"
	"github.com/harper/toolbox/internal/apps/chat"
	"github.com/harper/toolbox/internal/apps/countdown"
	"github.com/harper/toolbox/internal/apps/pomodoro"
	"github.com/harper/toolbox/internal/apps/todo"
)

// App names an app and the schema it declares.
type App struct {
	Name   string
	Schema string
}

// Apps lists every app in declaration order.
var Apps = []App{
	{Name: todo.AppName, Schema: todo.Schema},
	{Name: pomodoro.AppName, Schema: pomodoro.Schema},
	{Name: countdown.AppName, Schema: countdown.Schema},
	{Name: chat.AppName, Schema: chat.Schema},
}

// DeclareAll initializes the store and declares every app schema.
func DeclareAll(ctx context.Context, s apps.Store) error {
	for _, app := range Apps {
		if err := apps.Setup(ctx, s, app.Name, app.Schema); err != nil {
			return fmt.Errorf("declaring %s tables: %w", app.Name, err)
		}
	}
	return nil
}
