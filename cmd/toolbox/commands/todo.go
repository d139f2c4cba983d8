// ABOUTME: Todo commands backed by the todo app tables
// ABOUTME: Adds, lists, completes, and removes todo items
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/toolbox/internal/apps/todo"
)

var todoFilter string

// NewTodoCmd creates the todo command group
func NewTodoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todo",
		Short: "Manage todo items",
		Long: `Add, list, complete, and remove todo items.

Examples:
  toolbox todo add "Buy milk"
  toolbox todo list --filter active
  toolbox todo done 3
  toolbox todo clear`,
	}

	cmd.AddCommand(
		newTodoAddCmd(),
		newTodoListCmd(),
		newTodoDoneCmd(),
		newTodoRmCmd(),
		newTodoClearCmd(),
	)
	return cmd
}

// withTodos opens storage, prepares the todo tables, and runs fn
func withTodos(cmd *cobra.Command, fn func(ctx context.Context, svc *todo.Service) error) error {
	m, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx := commandContext(cmd)
	svc := todo.New(m)
	if err := svc.Init(ctx); err != nil {
		return err
	}
	return fn(ctx, svc)
}

func newTodoAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <text>",
		Short: "Add a todo",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTodos(cmd, func(ctx context.Context, svc *todo.Service) error {
				t, err := svc.Add(ctx, strings.Join(args, " "))
				if err != nil {
					return fmt.Errorf("could not add todo: %w", err)
				}
				if jsonOutput() {
					return printJSON(cmd, t)
				}
				status(cmd, "Added #%d: %s", t.ID, t.Text)
				return nil
			})
		},
	}
}

func newTodoListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List todos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := todo.Filter(todoFilter)
			switch filter {
			case todo.FilterAll, todo.FilterActive, todo.FilterCompleted:
			default:
				return fmt.Errorf("--filter must be all, active, or completed, got %q", todoFilter)
			}

			return withTodos(cmd, func(ctx context.Context, svc *todo.Service) error {
				list, err := svc.List(ctx, filter)
				if err != nil {
					return fmt.Errorf("could not load todos: %w", err)
				}
				stats, err := svc.Stats(ctx)
				if err != nil {
					return fmt.Errorf("could not count todos: %w", err)
				}
				if jsonOutput() {
					return printJSON(cmd, map[string]interface{}{"todos": list, "stats": stats})
				}

				if len(list) == 0 {
					status(cmd, "No todos")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "ID\tDONE\tTEXT\tCREATED\n")
				for _, t := range list {
					done := " "
					if t.Completed {
						done = "x"
					}
					fmt.Fprintf(w, "%d\t[%s]\t%s\t%s\n", t.ID, done, truncate(t.Text, 50), formatTime(t.CreatedAt))
				}
				if err := w.Flush(); err != nil {
					return err
				}
				status(cmd, "\n%d active, %d completed", stats.Active, stats.Completed)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&todoFilter, "filter", string(todo.FilterAll), "Show all, active, or completed todos")
	return cmd
}

func newTodoDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle a todo between active and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "id")
			if err != nil {
				return err
			}
			return withTodos(cmd, func(ctx context.Context, svc *todo.Service) error {
				t, err := svc.Toggle(ctx, id)
				if errors.Is(err, todo.ErrNotFound) {
					return fmt.Errorf("todo #%d not found", id)
				}
				if err != nil {
					return fmt.Errorf("could not update todo: %w", err)
				}
				if t.Completed {
					status(cmd, "Completed #%d: %s", t.ID, t.Text)
				} else {
					status(cmd, "Reopened #%d: %s", t.ID, t.Text)
				}
				return nil
			})
		},
	}
}

func newTodoRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "id")
			if err != nil {
				return err
			}
			return withTodos(cmd, func(ctx context.Context, svc *todo.Service) error {
				if err := svc.Delete(ctx, id); err != nil {
					return fmt.Errorf("could not delete todo: %w", err)
				}
				status(cmd, "Deleted #%d", id)
				return nil
			})
		},
	}
}

func newTodoClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every completed todo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTodos(cmd, func(ctx context.Context, svc *todo.Service) error {
				n, err := svc.ClearCompleted(ctx)
				if err != nil {
					return fmt.Errorf("could not clear todos: %w", err)
				}
				status(cmd, "Cleared %d completed todo(s)", n)
				return nil
			})
		},
	}
}
