// ABOUTME: Pomodoro commands record focus sessions and manage timer settings
// ABOUTME: Stats summarize today's completed work and breaks
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/toolbox/internal/apps/pomodoro"
)

var (
	pomodoroAbandoned bool

	settingsWork      int
	settingsShort     int
	settingsLong      int
	settingsEvery     int
	settingsAutoStart bool
)

// NewPomodoroCmd creates the pomodoro command group
func NewPomodoroCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pomodoro",
		Short: "Track pomodoro sessions",
		Long: `Record finished pomodoro sessions, view today's totals, and adjust
timer settings.

Examples:
  toolbox pomodoro log work 25
  toolbox pomodoro log short_break 5
  toolbox pomodoro stats
  toolbox pomodoro settings --work 50 --short 10`,
	}

	cmd.AddCommand(newPomodoroLogCmd(), newPomodoroStatsCmd(), newPomodoroSettingsCmd())
	return cmd
}

func withPomodoro(cmd *cobra.Command, fn func(ctx context.Context, svc *pomodoro.Service) error) error {
	m, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx := commandContext(cmd)
	svc := pomodoro.New(m)
	if err := svc.Init(ctx); err != nil {
		return err
	}
	return fn(ctx, svc)
}

func newPomodoroLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log <work|short_break|long_break> <minutes>",
		Short: "Record a session that just ended",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := parseID(args[1], "minutes")
			if err != nil {
				return err
			}
			return withPomodoro(cmd, func(ctx context.Context, svc *pomodoro.Service) error {
				sess, err := svc.RecordSession(ctx, pomodoro.Session{
					Kind:      pomodoro.Kind(args[0]),
					Duration:  time.Duration(minutes) * time.Minute,
					Completed: !pomodoroAbandoned,
				})
				if err != nil {
					return fmt.Errorf("could not record session: %w", err)
				}
				if jsonOutput() {
					return printJSON(cmd, sess)
				}
				status(cmd, "Logged %s session #%d (%s)", sess.Kind, sess.ID, sess.Duration)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&pomodoroAbandoned, "abandoned", false, "Record the session as stopped early")
	return cmd
}

func newPomodoroStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show today's sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPomodoro(cmd, func(ctx context.Context, svc *pomodoro.Service) error {
				st, err := svc.TodayStats(ctx, time.Now())
				if err != nil {
					return fmt.Errorf("could not load stats: %w", err)
				}
				if jsonOutput() {
					return printJSON(cmd, st)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Work sessions: %d\n", st.WorkSessions)
				fmt.Fprintf(out, "Focus time:    %s\n", st.Focus)
				fmt.Fprintf(out, "Breaks:        %d\n", st.Breaks)
				fmt.Fprintf(out, "Abandoned:     %d\n", st.Abandoned)
				return nil
			})
		},
	}
}

func newPomodoroSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change timer settings",
		Long: `Show the timer settings. Any flag given updates that setting.

Examples:
  toolbox pomodoro settings
  toolbox pomodoro settings --work 50 --every 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPomodoro(cmd, func(ctx context.Context, svc *pomodoro.Service) error {
				set, err := svc.Settings(ctx)
				if err != nil {
					return fmt.Errorf("could not load settings: %w", err)
				}

				flags := cmd.Flags()
				changed := false
				apply := func(name string, dst *int, v int) {
					if flags.Changed(name) {
						*dst = v
						changed = true
					}
				}
				apply("work", &set.WorkMinutes, settingsWork)
				apply("short", &set.ShortBreakMinutes, settingsShort)
				apply("long", &set.LongBreakMinutes, settingsLong)
				apply("every", &set.SessionsUntilLongBreak, settingsEvery)
				if flags.Changed("auto-start") {
					set.AutoStart = settingsAutoStart
					changed = true
				}
				if changed {
					if set, err = svc.SaveSettings(ctx, set); err != nil {
						return fmt.Errorf("could not save settings: %w", err)
					}
				}

				if jsonOutput() {
					return printJSON(cmd, set)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Work:        %d min\n", set.WorkMinutes)
				fmt.Fprintf(out, "Short break: %d min\n", set.ShortBreakMinutes)
				fmt.Fprintf(out, "Long break:  %d min every %d sessions\n", set.LongBreakMinutes, set.SessionsUntilLongBreak)
				fmt.Fprintf(out, "Auto start:  %v\n", set.AutoStart)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&settingsWork, "work", 25, "Work session length in minutes")
	cmd.Flags().IntVar(&settingsShort, "short", 5, "Short break length in minutes")
	cmd.Flags().IntVar(&settingsLong, "long", 15, "Long break length in minutes")
	cmd.Flags().IntVar(&settingsEvery, "every", 4, "Work sessions before a long break")
	cmd.Flags().BoolVar(&settingsAutoStart, "auto-start", false, "Start the next session automatically")
	return cmd
}
