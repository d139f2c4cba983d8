// ABOUTME: Tests for pomodoro, countdown, and chat commands
// ABOUTME: Exercises each app end to end and the shared parsing helpers
package commands

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPomodoroCommands(t *testing.T) {
	setupEnv(t)

	out := mustRun(t, "pomodoro", "log", "work", "1")
	if !strings.Contains(out, "Logged work session #1") {
		t.Errorf("log output = %q", out)
	}
	mustRun(t, "pomodoro", "log", "short_break", "1", "--abandoned")

	if _, err := runCLI(t, "pomodoro", "log", "nap", "5"); err == nil {
		t.Error("unknown session kind should fail")
	}

	out = mustRun(t, "--format", "json", "pomodoro", "settings", "--work", "50", "--auto-start")
	var set struct {
		WorkMinutes       int  `json:"work_minutes"`
		ShortBreakMinutes int  `json:"short_break_minutes"`
		AutoStart         bool `json:"auto_start"`
	}
	if err := json.Unmarshal([]byte(out), &set); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	if set.WorkMinutes != 50 || set.ShortBreakMinutes != 5 || !set.AutoStart {
		t.Errorf("settings = %+v", set)
	}

	out = mustRun(t, "pomodoro", "settings")
	if !strings.Contains(out, "Work:        50 min") {
		t.Errorf("settings not persisted: %q", out)
	}

	if _, err := runCLI(t, "pomodoro", "settings", "--work", "0"); err == nil {
		t.Error("zero-minute work sessions should be rejected")
	}
}

func TestCountdownCommands(t *testing.T) {
	setupEnv(t)

	out := mustRun(t, "countdown", "show")
	if !strings.Contains(out, "No countdown set") {
		t.Errorf("show before set = %q", out)
	}

	mustRun(t, "countdown", "set", "Past event", "2001-01-01")
	out = mustRun(t, "countdown", "show")
	if !strings.Contains(out, "Past event: expired") {
		t.Errorf("show = %q", out)
	}

	if _, err := runCLI(t, "countdown", "set", "Soon", "next tuesday"); err == nil {
		t.Error("unparseable date should fail")
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-12-31T18:00:00Z", time.Date(2025, 12, 31, 18, 0, 0, 0, time.UTC)},
		{"2025-12-31", time.Date(2025, 12, 31, 0, 0, 0, 0, time.Local)},
		{"2025-06-01 07:30", time.Date(2025, 6, 1, 7, 30, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		got, err := parseTarget(tt.in)
		if err != nil {
			t.Errorf("parseTarget(%q) error = %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseTarget(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestChatCommands(t *testing.T) {
	setupEnv(t)

	id := strings.TrimSpace(mustRun(t, "chat", "new", "Trip", "planning"))
	if len(id) != 36 {
		t.Fatalf("conversation id = %q, want a UUID", id)
	}

	mustRun(t, "chat", "say", id, "Where", "should", "we", "go?")
	mustRun(t, "chat", "say", id, "--role", "assistant", "Lisbon.")
	if _, err := runCLI(t, "chat", "say", id, "--role", "robot", "beep"); err == nil {
		t.Error("unknown role should fail")
	}

	out := mustRun(t, "chat", "show", id)
	first := strings.Index(out, "Where should we go?")
	second := strings.Index(out, "Lisbon.")
	if first < 0 || second < first {
		t.Errorf("show output out of order:\n%s", out)
	}

	out = mustRun(t, "chat", "list")
	if !strings.Contains(out, "Trip planning") || !strings.Contains(out, "2") {
		t.Errorf("list = %q", out)
	}

	mustRun(t, "chat", "rm", id)
	if _, err := runCLI(t, "chat", "show", id); err == nil {
		t.Error("showing a deleted conversation should fail")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a longer sentence", 10, "a longe..."},
		{"héllo wörld", 8, "héllo..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID("42", "id"); err != nil || id != 42 {
		t.Errorf("parseID(42) = %d, %v", id, err)
	}
	for _, bad := range []string{"0", "-1", "x", ""} {
		if _, err := parseID(bad, "id"); err == nil {
			t.Errorf("parseID(%q) should fail", bad)
		}
	}
}
