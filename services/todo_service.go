package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fluxorio/todoapi/models"
	"github.com/google/uuid"
)

// TodoServiceInterface defines the ownership-scoped todo operations
type TodoServiceInterface interface {
	ListTodos(ctx context.Context, id models.Identity, f models.TodoFilter) (*models.TodoPage, error)
	CreateTodo(ctx context.Context, id models.Identity, in models.TodoInput) (*models.Todo, error)
	GetTodo(ctx context.Context, id models.Identity, todoID uuid.UUID) (*models.Todo, error)
	UpdateTodo(ctx context.Context, id models.Identity, todoID uuid.UUID, in models.TodoInput) (*models.Todo, error)
	DeleteTodo(ctx context.Context, id models.Identity, todoID uuid.UUID) error
	ToggleComplete(ctx context.Context, id models.Identity, todoID uuid.UUID) (*models.ToggleResult, error)
	Stats(ctx context.Context, id models.Identity) (*models.TodoStats, error)
}

// TodoService handles todo operations. Every query is filtered by the caller's user id.
type TodoService struct {
	db  *sql.DB
	now func() time.Time
}

// NewTodoService creates a new todo service
func NewTodoService(db *sql.DB) *TodoService {
	return &TodoService{db: db, now: time.Now}
}

// WithClock replaces the time source and returns s. Tests only.
func (s *TodoService) WithClock(now func() time.Time) *TodoService {
	s.now = now
	return s
}

const todoColumns = `id, user_id, title, description, completed, priority, due_date, created_at, updated_at`

// ListTodos returns one page of the caller's todos
func (s *TodoService) ListTodos(ctx context.Context, id models.Identity, f models.TodoFilter) (*models.TodoPage, error) {
	q := buildTodoQuery(id, f)

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM todos`+q.whereClause(), q.args...).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count todos: %w", err)
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	page := f.Page
	pages := (count + pageSize - 1) / pageSize
	if page == lastPage {
		page = pages
	}
	if page < 1 {
		page = 1
	}
	if page > 1 && page > pages {
		return nil, ErrInvalidPage
	}

	query := `SELECT ` + todoColumns + ` FROM todos` + q.whereClause() + orderClause(f.Ordering)
	limit := q.arg(pageSize)
	offset := q.arg((page - 1) * pageSize)
	query += " LIMIT " + limit + " OFFSET " + offset

	rows, err := s.db.QueryContext(ctx, query, q.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	results := []models.Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todo.Owner = id.Username
		results = append(results, *todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}

	return &models.TodoPage{Count: count, Page: page, PageSize: pageSize, Results: results}, nil
}

// CreateTodo creates a todo owned by the caller. Title must be present.
func (s *TodoService) CreateTodo(ctx context.Context, id models.Identity, in models.TodoInput) (*models.Todo, error) {
	if in.Title == nil {
		return nil, NewValidationError("title", MsgRequired)
	}

	now := NormalizeTime(s.now())
	todo := &models.Todo{
		ID:        uuid.New(),
		UserID:    id.UserID,
		Owner:     id.Username,
		Priority:  models.PriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyTodoInput(todo, in)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO todos (`+todoColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		todo.ID, todo.UserID, todo.Title, todo.Description, todo.Completed, string(todo.Priority),
		nullTime(todo.DueDate), todo.CreatedAt, todo.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}
	return todo, nil
}

// GetTodo returns the caller's todo or ErrNotFound
func (s *TodoService) GetTodo(ctx context.Context, id models.Identity, todoID uuid.UUID) (*models.Todo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1 AND user_id = $2`, todoID, id.UserID)
	todo, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	todo.Owner = id.Username
	return todo, nil
}

// UpdateTodo applies the supplied fields. Full updates are expressed by the
// caller requiring a title when decoding the input.
func (s *TodoService) UpdateTodo(ctx context.Context, id models.Identity, todoID uuid.UUID, in models.TodoInput) (*models.Todo, error) {
	todo, err := s.GetTodo(ctx, id, todoID)
	if err != nil {
		return nil, err
	}

	applyTodoInput(todo, in)
	todo.UpdatedAt = s.touch(todo.UpdatedAt)

	res, err := s.db.ExecContext(ctx,
		`UPDATE todos SET title = $1, description = $2, completed = $3, priority = $4, due_date = $5, updated_at = $6
		 WHERE id = $7 AND user_id = $8`,
		todo.Title, todo.Description, todo.Completed, string(todo.Priority), nullTime(todo.DueDate), todo.UpdatedAt,
		todoID, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return nil, err
	}
	return todo, nil
}

// DeleteTodo deletes the caller's todo
func (s *TodoService) DeleteTodo(ctx context.Context, id models.Identity, todoID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1 AND user_id = $2`, todoID, id.UserID)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	return expectOneRow(res)
}

// ToggleComplete flips completed, writing only completed and updated_at
func (s *TodoService) ToggleComplete(ctx context.Context, id models.Identity, todoID uuid.UUID) (*models.ToggleResult, error) {
	todo, err := s.GetTodo(ctx, id, todoID)
	if err != nil {
		return nil, err
	}

	completed := !todo.Completed
	res, err := s.db.ExecContext(ctx,
		`UPDATE todos SET completed = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`,
		completed, s.touch(todo.UpdatedAt), todoID, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle todo: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return nil, err
	}

	msg := "To-do marked as incomplete."
	if completed {
		msg = "To-do marked as completed."
	}
	return &models.ToggleResult{ID: todoID, Completed: completed, Message: msg}, nil
}

// Stats summarises the caller's todos
func (s *TodoService) Stats(ctx context.Context, id models.Identity) (*models.TodoStats, error) {
	var total, completed, overdue sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			SUM(CASE WHEN completed THEN 1 ELSE 0 END),
			SUM(CASE WHEN NOT completed AND due_date IS NOT NULL AND due_date < $1 THEN 1 ELSE 0 END)
		 FROM todos WHERE user_id = $2`,
		NormalizeTime(s.now()), id.UserID).Scan(&total, &completed, &overdue)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	stats := &models.TodoStats{
		Total:      int(total.Int64),
		Completed:  int(completed.Int64),
		Pending:    int(total.Int64 - completed.Int64),
		Overdue:    int(overdue.Int64),
		ByPriority: make(map[models.Priority]int, len(models.Priorities)),
	}
	for _, p := range models.Priorities {
		stats.ByPriority[p] = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT priority, COUNT(*) FROM todos WHERE user_id = $1 GROUP BY priority`, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats.ByPriority[models.Priority(p)] = n
	}
	return stats, rows.Err()
}

// touch returns the new updated_at, strictly after prev
func (s *TodoService) touch(prev time.Time) time.Time {
	now := NormalizeTime(s.now())
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func applyTodoInput(todo *models.Todo, in models.TodoInput) {
	if in.Title != nil {
		todo.Title = *in.Title
	}
	if in.Description != nil {
		todo.Description = *in.Description
	}
	if in.Completed != nil {
		todo.Completed = *in.Completed
	}
	if in.Priority != nil {
		todo.Priority = *in.Priority
	}
	if in.DueDateSet {
		todo.DueDate = in.DueDate
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTodo(r rowScanner) (*models.Todo, error) {
	var (
		todo     models.Todo
		priority string
		due      sql.NullTime
	)
	err := r.Scan(&todo.ID, &todo.UserID, &todo.Title, &todo.Description, &todo.Completed,
		&priority, &due, &todo.CreatedAt, &todo.UpdatedAt)
	if err != nil {
		return nil, err
	}
	todo.Priority = models.Priority(priority)
	if due.Valid {
		t := due.Time.UTC()
		todo.DueDate = &t
	}
	todo.CreatedAt = todo.CreatedAt.UTC()
	todo.UpdatedAt = todo.UpdatedAt.UTC()
	return &todo, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
