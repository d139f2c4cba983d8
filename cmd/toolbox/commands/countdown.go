// ABOUTME: Countdown commands save a target date and show the time left
// ABOUTME: Accepts RFC 3339 timestamps or plain local dates
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/toolbox/internal/apps/countdown"
)

var targetLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTarget reads a countdown target; layouts without a zone are local time
func parseTarget(s string) (time.Time, error) {
	for _, layout := range targetLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (try 2025-12-31 or 2025-12-31T18:00:00Z)", s)
}

// NewCountdownCmd creates the countdown command group
func NewCountdownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "countdown",
		Short: "Count down to a date",
		Long: `Save one countdown target and show how long is left.

Examples:
  toolbox countdown set "Launch" 2025-12-31
  toolbox countdown set "Flight" "2025-06-01 07:30"
  toolbox countdown show`,
	}

	cmd.AddCommand(newCountdownSetCmd(), newCountdownShowCmd())
	return cmd
}

func withCountdown(cmd *cobra.Command, fn func(ctx context.Context, svc *countdown.Service) error) error {
	m, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx := commandContext(cmd)
	svc := countdown.New(m)
	if err := svc.Init(ctx); err != nil {
		return err
	}
	return fn(ctx, svc)
}

func newCountdownSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <title> <date>",
		Short: "Set the countdown target",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			return withCountdown(cmd, func(ctx context.Context, svc *countdown.Service) error {
				c, err := svc.Save(ctx, args[0], target)
				if err != nil {
					return fmt.Errorf("could not save countdown: %w", err)
				}
				status(cmd, "Counting down to %s on %s", c.Title, c.Target.Local().Format("Mon Jan 2 2006 15:04"))
				return nil
			})
		},
	}
}

func newCountdownShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the time left",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCountdown(cmd, func(ctx context.Context, svc *countdown.Service) error {
				c, left, err := svc.Remaining(ctx, time.Now())
				if errors.Is(err, countdown.ErrNotSet) {
					status(cmd, "No countdown set (use `toolbox countdown set`)")
					return nil
				}
				if err != nil {
					return fmt.Errorf("could not load countdown: %w", err)
				}
				if jsonOutput() {
					return printJSON(cmd, map[string]interface{}{"countdown": c, "remaining": left})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", c.Title, left)
				return nil
			})
		},
	}
}
