// ABOUTME: Tests for the todo facade against an in-memory storage manager
// ABOUTME: Covers add, list filters, toggle, delete, and stats
package todo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harper/toolbox/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	m := storage.NewManager(storage.Options{KVInMemory: true})
	t.Cleanup(func() { _ = m.Close() })

	s := New(m)
	clock := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return s
}

func TestAddAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	added, err := s.Add(ctx, "  Buy milk  ")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if added.ID == 0 || added.Text != "Buy milk" || added.Completed {
		t.Errorf("Add() = %+v", added)
	}
	if _, err := s.Add(ctx, "Call O'Brien"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	todos, err := s.List(ctx, FilterAll)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(todos) != 2 {
		t.Fatalf("List() returned %d todos, want 2", len(todos))
	}
	if todos[0].Text != "Buy milk" || todos[1].Text != "Call O'Brien" {
		t.Errorf("List() order = %q, %q", todos[0].Text, todos[1].Text)
	}
	if !todos[0].CreatedAt.Equal(added.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", todos[0].CreatedAt, added.CreatedAt)
	}
}

func TestAddEmpty(t *testing.T) {
	s := newTestService(t)

	if _, err := s.Add(context.Background(), "   "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("Add() error = %v, want ErrEmptyText", err)
	}
}

func TestToggleAndFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	a, _ := s.Add(ctx, "a")
	if _, err := s.Add(ctx, "b"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	done, err := s.Toggle(ctx, a.ID)
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if !done.Completed || done.CompletedAt == nil {
		t.Errorf("Toggle() = %+v, want completed with timestamp", done)
	}

	active, err := s.List(ctx, FilterActive)
	if err != nil {
		t.Fatalf("List(active) error = %v", err)
	}
	if len(active) != 1 || active[0].Text != "b" {
		t.Errorf("active = %+v", active)
	}
	completed, err := s.List(ctx, FilterCompleted)
	if err != nil {
		t.Fatalf("List(completed) error = %v", err)
	}
	if len(completed) != 1 || !completed[0].Completed || completed[0].CompletedAt == nil {
		t.Errorf("completed = %+v", completed)
	}

	undone, err := s.Toggle(ctx, a.ID)
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if undone.Completed || undone.CompletedAt != nil {
		t.Errorf("second Toggle() = %+v, want active", undone)
	}

	if _, err := s.Toggle(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Toggle(999) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteAndClearCompleted(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	var ids []int64
	for _, text := range []string{"one", "two", "three"} {
		td, err := s.Add(ctx, text)
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		ids = append(ids, td.ID)
	}

	if err := s.Delete(ctx, ids[0]); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}

	if _, err := s.Toggle(ctx, ids[1]); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats != (Stats{Total: 2, Active: 1, Completed: 1}) {
		t.Errorf("Stats() = %+v", stats)
	}

	n, err := s.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted() error = %v", err)
	}
	if n != 1 {
		t.Errorf("ClearCompleted() = %d, want 1", n)
	}

	stats, err = s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats != (Stats{Total: 1, Active: 1}) {
		t.Errorf("Stats() after clear = %+v", stats)
	}
}

func TestStatsEmpty(t *testing.T) {
	s := newTestService(t)

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats != (Stats{}) {
		t.Errorf("Stats() = %+v, want zeros", stats)
	}
}
