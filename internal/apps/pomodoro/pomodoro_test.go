// ABOUTME: Tests for the pomodoro facade
// ABOUTME: Covers singleton settings, session recording, and daily stats
package pomodoro

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harper/toolbox/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	m := storage.NewManager(storage.Options{KVDisabled: true})
	t.Cleanup(func() { _ = m.Close() })

	s := New(m)
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return s
}

func TestSettingsDefaultsAndSave(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	got, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	if got != DefaultSettings {
		t.Errorf("Settings() = %+v, want defaults", got)
	}

	want := Settings{WorkMinutes: 50, ShortBreakMinutes: 10, LongBreakMinutes: 30, SessionsUntilLongBreak: 2, AutoStart: true}
	for i := 0; i < 2; i++ {
		if _, err := s.SaveSettings(ctx, want); err != nil {
			t.Fatalf("SaveSettings() #%d error = %v", i, err)
		}
	}

	got, err = s.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	got.UpdatedAt = time.Time{}
	if got != want {
		t.Errorf("Settings() = %+v, want %+v", got, want)
	}

	rows, err := s.store.Query(ctx, "SELECT COUNT(*) AS n FROM pomodoro_settings")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if rows[0].Int("n") != 1 {
		t.Errorf("settings rows = %d, want 1", rows[0].Int("n"))
	}
}

func TestSaveSettingsValidates(t *testing.T) {
	s := newTestService(t)

	_, err := s.SaveSettings(context.Background(), Settings{WorkMinutes: 0, ShortBreakMinutes: 5, LongBreakMinutes: 15, SessionsUntilLongBreak: 4})
	if !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("SaveSettings() error = %v, want ErrInvalidSettings", err)
	}
}

func TestRecordSessionsAndTodayStats(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	now := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)

	sessions := []Session{
		{Kind: KindWork, Duration: 25 * time.Minute, Completed: true, StartedAt: yesterday},
		{Kind: KindWork, Duration: 25 * time.Minute, Completed: true, StartedAt: now.Add(-3 * time.Hour)},
		{Kind: KindShortBreak, Duration: 5 * time.Minute, Completed: true, StartedAt: now.Add(-2 * time.Hour)},
		{Kind: KindWork, Duration: 10 * time.Minute, Completed: false, StartedAt: now.Add(-time.Hour)},
	}
	for _, sess := range sessions {
		if _, err := s.RecordSession(ctx, sess); err != nil {
			t.Fatalf("RecordSession() error = %v", err)
		}
	}

	stats, err := s.TodayStats(ctx, now)
	if err != nil {
		t.Fatalf("TodayStats() error = %v", err)
	}
	want := DayStats{WorkSessions: 1, Breaks: 1, Abandoned: 1, Focus: 25 * time.Minute}
	if stats != want {
		t.Errorf("TodayStats() = %+v, want %+v", stats, want)
	}

	all, err := s.Sessions(ctx, time.Time{})
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(all) != 4 || !all[0].StartedAt.Equal(yesterday) {
		t.Errorf("Sessions() = %+v", all)
	}
}

func TestRecordSessionDefaultsStart(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	end := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return end }

	sess, err := s.RecordSession(ctx, Session{Kind: KindWork, Duration: 25 * time.Minute, Completed: true})
	if err != nil {
		t.Fatalf("RecordSession() error = %v", err)
	}
	if !sess.StartedAt.Equal(end.Add(-25*time.Minute)) || sess.EndedAt == nil {
		t.Errorf("RecordSession() = %+v", sess)
	}

	if _, err := s.RecordSession(ctx, Session{Kind: "nap", Duration: time.Minute}); err == nil {
		t.Error("RecordSession() with unknown kind should fail")
	}
}
