// ABOUTME: Countdown facade storing a single titled target time
// ABOUTME: Remaining splits the time left into days, hours, minutes, and seconds
package countdown

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/harper/toolbox/internal/apps"
	"github.com/harper/toolbox/internal/storage/sqlite"
)

const AppName = "countdown"

const Schema = `
CREATE TABLE IF NOT EXISTS countdown_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	title TEXT NOT NULL,
	target_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

var ErrNotSet = errors.New("no countdown set")

// Countdown is the saved target.
type Countdown struct {
	Title     string    `json:"title"`
	Target    time.Time `json:"target"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Breakdown is the time left until a target.
type Breakdown struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
	Expired bool  `json:"expired"`
}

func (b Breakdown) String() string {
	if b.Expired {
		return "expired"
	}
	return fmt.Sprintf("%dd %02dh %02dm %02ds", b.Days, b.Hours, b.Minutes, b.Seconds)
}

// Remaining returns the time from now until target. Past targets are expired with zero parts.
func Remaining(target, now time.Time) Breakdown {
	left := target.Sub(now)
	if left <= 0 {
		return Breakdown{Expired: true}
	}
	secs := int64(left / time.Second)
	return Breakdown{
		Days:    secs / 86400,
		Hours:   secs % 86400 / 3600,
		Minutes: secs % 3600 / 60,
		Seconds: secs % 60,
	}
}

// Service reads and writes the countdown.
type Service struct {
	store apps.Store
	now   func() time.Time
}

func New(store apps.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Init creates the countdown table.
func (s *Service) Init(ctx context.Context) error {
	return apps.Setup(ctx, s.store, AppName, Schema)
}

// Get returns the saved countdown or ErrNotSet.
func (s *Service) Get(ctx context.Context) (Countdown, error) {
	row, ok, err := apps.First(ctx, s.store, sq.Select("title", "target_at", "updated_at").
		From("countdown_settings").
		Where(sq.Eq{"id": 1}))
	if err != nil {
		return Countdown{}, fmt.Errorf("failed to load countdown: %w", err)
	}
	if !ok {
		return Countdown{}, ErrNotSet
	}
	return Countdown{
		Title:     row.String("title"),
		Target:    row.Time("target_at"),
		UpdatedAt: row.Time("updated_at"),
	}, nil
}

// Save replaces the countdown.
func (s *Service) Save(ctx context.Context, title string, target time.Time) (Countdown, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Countdown{}, fmt.Errorf("countdown title is empty")
	}
	if target.IsZero() {
		return Countdown{}, fmt.Errorf("countdown target is missing")
	}
	c := Countdown{
		Title:     title,
		Target:    target.UTC().Truncate(time.Millisecond),
		UpdatedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	_, err := apps.Exec(ctx, s.store, sq.Insert("countdown_settings").
		Columns("id", "title", "target_at", "updated_at").
		Values(1, c.Title, sqlite.FormatTime(c.Target), sqlite.FormatTime(c.UpdatedAt)).
		Suffix("ON CONFLICT(id) DO UPDATE SET title = excluded.title, target_at = excluded.target_at, updated_at = excluded.updated_at"))
	if err != nil {
		return Countdown{}, fmt.Errorf("failed to save countdown: %w", err)
	}
	return c, nil
}

// Remaining returns the time left on the saved countdown.
func (s *Service) Remaining(ctx context.Context, now time.Time) (Countdown, Breakdown, error) {
	c, err := s.Get(ctx)
	if err != nil {
		return Countdown{}, Breakdown{}, err
	}
	return c, Remaining(c.Target, now), nil
}
