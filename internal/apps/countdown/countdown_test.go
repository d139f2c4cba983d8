// ABOUTME: Tests for the countdown facade and the remaining-time breakdown
// ABOUTME: Uses an in-memory storage manager
package countdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harper/toolbox/internal/storage"
)

func TestRemaining(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		target time.Time
		want   Breakdown
	}{
		{"future", now.Add(49*time.Hour + 3*time.Minute + 4*time.Second + 500*time.Millisecond), Breakdown{Days: 2, Hours: 1, Minutes: 3, Seconds: 4}},
		{"under a minute", now.Add(59 * time.Second), Breakdown{Seconds: 59}},
		{"now", now, Breakdown{Expired: true}},
		{"past", now.Add(-time.Hour), Breakdown{Expired: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Remaining(tt.target, now); got != tt.want {
				t.Errorf("Remaining() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBreakdownString(t *testing.T) {
	if got := (Breakdown{Days: 3, Hours: 4, Minutes: 5, Seconds: 6}).String(); got != "3d 04h 05m 06s" {
		t.Errorf("String() = %q", got)
	}
	if got := (Breakdown{Expired: true}).String(); got != "expired" {
		t.Errorf("String() = %q", got)
	}
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	m := storage.NewManager(storage.Options{KVInMemory: true})
	defer func() { _ = m.Close() }()

	s := New(m)
	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if _, err := s.Get(ctx); !errors.Is(err, ErrNotSet) {
		t.Fatalf("Get() error = %v, want ErrNotSet", err)
	}

	target := time.Date(2030, 12, 25, 0, 0, 0, 0, time.UTC)
	if _, err := s.Save(ctx, "Holiday", target); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := s.Save(ctx, "New Year", target.Add(7*24*time.Hour)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	c, left, err := s.Remaining(ctx, target)
	if err != nil {
		t.Fatalf("Remaining() error = %v", err)
	}
	if c.Title != "New Year" {
		t.Errorf("Title = %q, want New Year", c.Title)
	}
	if left.Days != 7 || left.Expired {
		t.Errorf("Remaining() = %+v, want 7 days", left)
	}

	if _, err := s.Save(ctx, " ", target); err == nil {
		t.Error("Save() with empty title should fail")
	}
}
