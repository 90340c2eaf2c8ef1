package models

import (
	"time"

	"github.com/google/uuid"
)

// Priority is the urgency of a todo
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists the valid priorities in ascending rank
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities low < medium < high; unknown values rank 0
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	default:
		return 0
	}
}

// MaxTitleLength is the longest accepted title, counted in characters
const MaxTitleLength = 200

// Todo represents a todo item. Owner is the owning user's username.
type Todo struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"-"`
	Owner       string     `json:"user"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TodoInput holds validated writable fields. A nil pointer means "not supplied".
// DueDateSet distinguishes an explicit null due date from an absent one.
type TodoInput struct {
	Title       *string
	Description *string
	Completed   *bool
	Priority    *Priority
	DueDateSet  bool
	DueDate     *time.Time
}

// OrderField is one validated ordering term
type OrderField struct {
	Field string
	Desc  bool
}

// TodoFilter selects and orders a page of the caller's todos
type TodoFilter struct {
	Completed   *bool
	Priority    *Priority
	DueDateFrom *time.Time
	DueDateTo   *time.Time
	Search      []string
	Ordering    []OrderField
	Page        int
	PageSize    int
}

// TodoPage is one page of results plus the total match count.
// Page is the resolved 1-based page number.
type TodoPage struct {
	Count    int
	Page     int
	PageSize int
	Results  []Todo
}

// HasNext reports whether a page follows p
func (p *TodoPage) HasNext() bool {
	return p.Page*p.PageSize < p.Count
}

// HasPrevious reports whether a page precedes p
func (p *TodoPage) HasPrevious() bool {
	return p.Page > 1
}

// TodoListResponse is the paginated list envelope
type TodoListResponse struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Todo  `json:"results"`
}

// ToggleResult is returned by the toggle-complete action
type ToggleResult struct {
	ID        uuid.UUID `json:"id"`
	Completed bool      `json:"completed"`
	Message   string    `json:"message"`
}

// TodoStats summarises the caller's todos
type TodoStats struct {
	Total      int              `json:"total"`
	Completed  int              `json:"completed"`
	Pending    int              `json:"pending"`
	Overdue    int              `json:"overdue"`
	ByPriority map[Priority]int `json:"by_priority"`
}
