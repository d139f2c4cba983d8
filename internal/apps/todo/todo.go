// ABOUTME: Todo list facade over the storage manager
// ABOUTME: Completion is stored as a 0/1 integer and converted at this boundary
package todo

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

const AppName = "todo"

const Schema = `
CREATE TABLE IF NOT EXISTS todos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL,
	completed INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	completed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_todos_completed ON todos(completed);
CREATE INDEX IF NOT EXISTS idx_todos_created_at ON todos(created_at);
`

var (
	ErrNotFound  = errors.New("todo not found")
	ErrEmptyText = errors.New("todo text is empty")
)

// Todo is one list item.
type Todo struct {
	ID          int64      `json:"id"`
	Text        string     `json:"text"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Filter selects which todos List returns.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// Stats summarizes the list.
type Stats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
}

// Service reads and writes todos.
type Service struct {
	store apps.Store
	now   func() time.Time
}

func New(store apps.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Init creates the todo tables.
func (s *Service) Init(ctx context.Context) error {
	return apps.Setup(ctx, s.store, AppName, Schema)
}

// Add appends a todo.
func (s *Service) Add(ctx context.Context, text string) (Todo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Todo{}, ErrEmptyText
	}
	t := Todo{Text: text, CreatedAt: s.now().UTC().Truncate(time.Millisecond)}

	res, err := apps.Exec(ctx, s.store, sq.Insert("todos").
		Columns("text", "completed", "created_at").
		Values(t.Text, sqlite.BoolToInt(false), sqlite.FormatTime(t.CreatedAt)))
	if err != nil {
		return Todo{}, fmt.Errorf("failed to add todo: %w", err)
	}
	t.ID = res.LastInsertID
	return t, nil
}

// List returns todos oldest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]Todo, error) {
	b := sq.Select("id", "text", "completed", "created_at", "completed_at").
		From("todos").
		OrderBy("created_at", "id")
	switch filter {
	case FilterActive:
		b = b.Where(sq.Eq{"completed": 0})
	case FilterCompleted:
		b = b.Where(sq.Eq{"completed": 1})
	}

	rows, err := apps.Query(ctx, s.store, b)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	todos := make([]Todo, 0, len(rows))
	for _, r := range rows {
		todos = append(todos, fromRow(r))
	}
	return todos, nil
}

// Get returns one todo.
func (s *Service) Get(ctx context.Context, id int64) (Todo, error) {
	row, ok, err := apps.First(ctx, s.store, sq.Select("id", "text", "completed", "created_at", "completed_at").
		From("todos").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return Todo{}, fmt.Errorf("failed to get todo: %w", err)
	}
	if !ok {
		return Todo{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return fromRow(row), nil
}

// Toggle flips a todo between active and completed.
func (s *Service) Toggle(ctx context.Context, id int64) (Todo, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return Todo{}, err
	}

	t.Completed = !t.Completed
	var completedAt any
	t.CompletedAt = nil
	if t.Completed {
		at := s.now().UTC().Truncate(time.Millisecond)
		t.CompletedAt = &at
		completedAt = sqlite.FormatTime(at)
	}

	_, err = apps.Exec(ctx, s.store, sq.Update("todos").
		Set("completed", sqlite.BoolToInt(t.Completed)).
		Set("completed_at", completedAt).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return Todo{}, fmt.Errorf("failed to update todo: %w", err)
	}
	return t, nil
}

// Delete removes a todo.
func (s *Service) Delete(ctx context.Context, id int64) error {
	res, err := apps.Exec(ctx, s.store, sq.Delete("todos").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	if res.Changes == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// ClearCompleted removes every completed todo and returns how many were removed.
func (s *Service) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := apps.Exec(ctx, s.store, sq.Delete("todos").Where(sq.Eq{"completed": 1}))
	if err != nil {
		return 0, fmt.Errorf("failed to clear completed todos: %w", err)
	}
	return res.Changes, nil
}

// Stats counts todos by state.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	row, _, err := apps.First(ctx, s.store, sq.Select("COUNT(*) AS total", "COALESCE(SUM(completed), 0) AS done").From("todos"))
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count todos: %w", err)
	}
	st := Stats{Total: row.Int("total"), Completed: row.Int("done")}
	st.Active = st.Total - st.Completed
	return st, nil
}

func fromRow(r sqlite.Row) Todo {
	t := Todo{
		ID:        r.Int("id"),
		Text:      r.String("text"),
		Completed: r.Bool("completed"),
		CreatedAt: r.Time("created_at"),
	}
	if !r.IsNull("completed_at") {
		at := r.Time("completed_at")
		t.CompletedAt = &at
	}
	return t
}
