package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fluxorio/todoapi/models"
)

// Pagination defaults
const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// lastPage is the sentinel stored in TodoFilter.Page for page=last
	lastPage = -1
)

// PageSizes bounds the page_size query parameter
type PageSizes struct {
	Default int
	Max     int
}

// DefaultPageSizes returns 20 per page, at most 100
func DefaultPageSizes() PageSizes {
	return PageSizes{Default: DefaultPageSize, Max: MaxPageSize}
}

// orderColumns maps public ordering names to SQL expressions (ascending)
var orderColumns = map[string]string{
	"created_at": "created_at",
	"due_date":   "due_date",
	"priority":   "CASE priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 ELSE 0 END",
}

// DefaultOrdering is newest first
var DefaultOrdering = []models.OrderField{{Field: "created_at", Desc: true}}

// ParseTodoFilter builds a filter from query parameters read through get.
// Invalid filter values are a ValidationError; an unusable page is ErrInvalidPage.
func ParseTodoFilter(get func(key string) string, sizes PageSizes) (models.TodoFilter, error) {
	f := models.TodoFilter{Page: 1, PageSize: sizes.Default}
	verr := &ValidationError{}

	if v := get("completed"); v != "" {
		b, ok := ParseBool(v)
		if !ok {
			verr.Add("completed", MsgNotBoolean)
		} else {
			f.Completed = &b
		}
	}

	if v := get("priority"); v != "" {
		p := models.Priority(v)
		if !p.Valid() {
			verr.Add("priority", "Select a valid choice. "+v+" is not one of the available choices.")
		} else {
			f.Priority = &p
		}
	}

	for _, key := range []string{"due_date_from", "due_date_to"} {
		v := get(key)
		if v == "" {
			continue
		}
		t, err := ParseDateTime(v)
		if err != nil {
			verr.Add(key, "Enter a valid date/time.")
			continue
		}
		if key == "due_date_from" {
			f.DueDateFrom = &t
		} else {
			f.DueDateTo = &t
		}
	}

	f.Search = SearchTerms(get("search"))
	f.Ordering = ParseOrdering(get("ordering"))

	if err := verr.Err(); err != nil {
		return models.TodoFilter{}, err
	}

	if v := get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.PageSize = n
		}
	}
	if sizes.Max > 0 && f.PageSize > sizes.Max {
		f.PageSize = sizes.Max
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}

	if v := get("page"); v != "" {
		if v == "last" {
			f.Page = lastPage
		} else {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return models.TodoFilter{}, ErrInvalidPage
			}
			f.Page = n
		}
	}
	return f, nil
}

// SearchTerms splits a search query on whitespace and commas
func SearchTerms(q string) []string {
	fields := strings.FieldsFunc(q, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}

// ParseOrdering validates a comma separated ordering list. Unknown fields are
// dropped; when nothing valid remains the default ordering applies.
func ParseOrdering(q string) []models.OrderField {
	var out []models.OrderField
	seen := make(map[string]bool)
	for _, term := range strings.Split(q, ",") {
		term = strings.TrimSpace(term)
		desc := strings.HasPrefix(term, "-")
		name := strings.TrimPrefix(term, "-")
		if _, ok := orderColumns[name]; !ok || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, models.OrderField{Field: name, Desc: desc})
	}
	if len(out) == 0 {
		return DefaultOrdering
	}
	return out
}

// todoQuery accumulates a WHERE clause and its $n arguments in order
type todoQuery struct {
	where []string
	args  []interface{}
}

func (q *todoQuery) arg(v interface{}) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

func (q *todoQuery) add(cond string) {
	q.where = append(q.where, cond)
}

func buildTodoQuery(id models.Identity, f models.TodoFilter) *todoQuery {
	q := &todoQuery{}
	q.add("user_id = " + q.arg(id.UserID))

	if f.Completed != nil {
		q.add("completed = " + q.arg(*f.Completed))
	}
	if f.Priority != nil {
		q.add("priority = " + q.arg(string(*f.Priority)))
	}
	if f.DueDateFrom != nil {
		q.add("due_date >= " + q.arg(*f.DueDateFrom))
	}
	if f.DueDateTo != nil {
		q.add("due_date <= " + q.arg(*f.DueDateTo))
	}
	for _, term := range f.Search {
		p := q.arg("%" + escapeLike(strings.ToLower(term)) + "%")
		q.add(fmt.Sprintf(`(LOWER(title) LIKE %s ESCAPE '\' OR LOWER(description) LIKE %s ESCAPE '\')`, p, p))
	}
	return q
}

func (q *todoQuery) whereClause() string {
	return " WHERE " + strings.Join(q.where, " AND ")
}

// orderClause renders ordering with nulls last ascending and first descending
func orderClause(fields []models.OrderField) string {
	if len(fields) == 0 {
		fields = DefaultOrdering
	}
	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		col, ok := orderColumns[f.Field]
		if !ok {
			continue
		}
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		if f.Field == "due_date" {
			parts = append(parts, "(due_date IS NULL) "+dir)
		}
		parts = append(parts, col+" "+dir)
	}
	parts = append(parts, "id ASC")
	return " ORDER BY " + strings.Join(parts, ", ")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
