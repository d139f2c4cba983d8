// ABOUTME: Pomodoro timer facade: session history and singleton settings
// ABOUTME: Settings live in a one-row table pinned to id 1
package pomodoro

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/harper/toolbox/internal/apps"
	"github.com/harper/toolbox/internal/storage/sqlite"
)

const AppName = "pomodoro"

const Schema = `
CREATE TABLE IF NOT EXISTS pomodoro_sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	duration_seconds INTEGER NOT NULL,
	completed INTEGER NOT NULL DEFAULT 1,
	started_at TEXT NOT NULL,
	ended_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_pomodoro_sessions_started_at ON pomodoro_sessions(started_at);
CREATE TABLE IF NOT EXISTS pomodoro_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	work_minutes INTEGER NOT NULL,
	short_break_minutes INTEGER NOT NULL,
	long_break_minutes INTEGER NOT NULL,
	sessions_until_long_break INTEGER NOT NULL,
	auto_start INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
);
`

// Kind is the type of a session.
type Kind string

const (
	KindWork       Kind = "work"
	KindShortBreak Kind = "short_break"
	KindLongBreak  Kind = "long_break"
)

var ErrInvalidSettings = errors.New("invalid pomodoro settings")

// Settings configures the timer.
type Settings struct {
	WorkMinutes            int       `json:"work_minutes"`
	ShortBreakMinutes      int       `json:"short_break_minutes"`
	LongBreakMinutes       int       `json:"long_break_minutes"`
	SessionsUntilLongBreak int       `json:"sessions_until_long_break"`
	AutoStart              bool      `json:"auto_start"`
	UpdatedAt              time.Time `json:"updated_at,omitempty"`
}

// DefaultSettings is used until settings are saved.
var DefaultSettings = Settings{
	WorkMinutes:            25,
	ShortBreakMinutes:      5,
	LongBreakMinutes:       15,
	SessionsUntilLongBreak: 4,
}

func (s Settings) Validate() error {
	if s.WorkMinutes <= 0 || s.ShortBreakMinutes <= 0 || s.LongBreakMinutes <= 0 {
		return fmt.Errorf("%w: durations must be positive", ErrInvalidSettings)
	}
	if s.SessionsUntilLongBreak <= 0 {
		return fmt.Errorf("%w: sessions until long break must be positive", ErrInvalidSettings)
	}
	return nil
}

// Session is one finished or abandoned timer run.
type Session struct {
	ID        int64         `json:"id"`
	Kind      Kind          `json:"kind"`
	Duration  time.Duration `json:"duration"`
	Completed bool          `json:"completed"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
}

// DayStats summarizes the sessions of one day.
type DayStats struct {
	WorkSessions int           `json:"work_sessions"`
	Breaks       int           `json:"breaks"`
	Abandoned    int           `json:"abandoned"`
	Focus        time.Duration `json:"focus"`
}

// Service reads and writes pomodoro data.
type Service struct {
	store apps.Store
	now   func() time.Time
}

func New(store apps.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Init creates the pomodoro tables.
func (s *Service) Init(ctx context.Context) error {
	return apps.Setup(ctx, s.store, AppName, Schema)
}

// Settings returns the saved settings, or the defaults.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	row, ok, err := apps.First(ctx, s.store, sq.Select("*").From("pomodoro_settings").Where(sq.Eq{"id": 1}))
	if err != nil {
		return Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	if !ok {
		return DefaultSettings, nil
	}
	return Settings{
		WorkMinutes:            int(row.Int("work_minutes")),
		ShortBreakMinutes:      int(row.Int("short_break_minutes")),
		LongBreakMinutes:       int(row.Int("long_break_minutes")),
		SessionsUntilLongBreak: int(row.Int("sessions_until_long_break")),
		AutoStart:              row.Bool("auto_start"),
		UpdatedAt:              row.Time("updated_at"),
	}, nil
}

// SaveSettings writes the singleton settings row.
func (s *Service) SaveSettings(ctx context.Context, set Settings) (Settings, error) {
	if err := set.Validate(); err != nil {
		return Settings{}, err
	}
	set.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)

	_, err := apps.Exec(ctx, s.store, sq.Insert("pomodoro_settings").
		Columns("id", "work_minutes", "short_break_minutes", "long_break_minutes",
			"sessions_until_long_break", "auto_start", "updated_at").
		Values(1, set.WorkMinutes, set.ShortBreakMinutes, set.LongBreakMinutes,
			set.SessionsUntilLongBreak, sqlite.BoolToInt(set.AutoStart), sqlite.FormatTime(set.UpdatedAt)).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			work_minutes = excluded.work_minutes,
			short_break_minutes = excluded.short_break_minutes,
			long_break_minutes = excluded.long_break_minutes,
			sessions_until_long_break = excluded.sessions_until_long_break,
			auto_start = excluded.auto_start,
			updated_at = excluded.updated_at`))
	if err != nil {
		return Settings{}, fmt.Errorf("failed to save settings: %w", err)
	}
	return set, nil
}

// RecordSession stores a session. A zero StartedAt means it started Duration ago.
func (s *Service) RecordSession(ctx context.Context, sess Session) (Session, error) {
	switch sess.Kind {
	case KindWork, KindShortBreak, KindLongBreak:
	default:
		return Session{}, fmt.Errorf("unknown session kind %q", sess.Kind)
	}
	if sess.Duration <= 0 {
		return Session{}, fmt.Errorf("session duration must be positive")
	}
	if sess.StartedAt.IsZero() {
		end := s.now().UTC().Truncate(time.Millisecond)
		sess.EndedAt = &end
		sess.StartedAt = end.Add(-sess.Duration)
	}

	var ended any
	if sess.EndedAt != nil {
		ended = sqlite.FormatTime(*sess.EndedAt)
	}
	res, err := apps.Exec(ctx, s.store, sq.Insert("pomodoro_sessions").
		Columns("kind", "duration_seconds", "completed", "started_at", "ended_at").
		Values(string(sess.Kind), int64(sess.Duration/time.Second), sqlite.BoolToInt(sess.Completed),
			sqlite.FormatTime(sess.StartedAt), ended))
	if err != nil {
		return Session{}, fmt.Errorf("failed to record session: %w", err)
	}
	sess.ID = res.LastInsertID
	return sess, nil
}

// Sessions returns sessions started at or after since, oldest first.
func (s *Service) Sessions(ctx context.Context, since time.Time) ([]Session, error) {
	rows, err := apps.Query(ctx, s.store, sq.Select("*").
		From("pomodoro_sessions").
		Where(sq.GtOrEq{"started_at": sqlite.FormatTime(since)}).
		OrderBy("started_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]Session, 0, len(rows))
	for _, r := range rows {
		sess := Session{
			ID:        r.Int("id"),
			Kind:      Kind(r.String("kind")),
			Duration:  time.Duration(r.Int("duration_seconds")) * time.Second,
			Completed: r.Bool("completed"),
			StartedAt: r.Time("started_at"),
		}
		if !r.IsNull("ended_at") {
			end := r.Time("ended_at")
			sess.EndedAt = &end
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// TodayStats summarizes sessions since local midnight of now.
func (s *Service) TodayStats(ctx context.Context, now time.Time) (DayStats, error) {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	sessions, err := s.Sessions(ctx, midnight)
	if err != nil {
		return DayStats{}, err
	}
	var st DayStats
	for _, sess := range sessions {
		switch {
		case !sess.Completed:
			st.Abandoned++
		case sess.Kind == KindWork:
			st.WorkSessions++
			st.Focus += sess.Duration
		default:
			st.Breaks++
		}
	}
	return st, nil
}
