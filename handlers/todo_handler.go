package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/fluxorio/todoapi/models"
	"github.com/fluxorio/todoapi/pkg/web"
	"github.com/fluxorio/todoapi/services"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// TodoHandler handles todo-related requests
type TodoHandler struct {
	todos     services.TodoServiceInterface
	pageSizes services.PageSizes
	recorder  Recorder
}

// NewTodoHandler creates a new todo handler. recorder may be nil.
func NewTodoHandler(todoService services.TodoServiceInterface, pageSizes services.PageSizes, recorder Recorder) *TodoHandler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if pageSizes.Default <= 0 {
		pageSizes = services.DefaultPageSizes()
	}
	return &TodoHandler{todos: todoService, pageSizes: pageSizes, recorder: recorder}
}

// ListTodos handles GET /api/todos
func (h *TodoHandler) ListTodos(ctx *web.FastRequestContext) error {
	id, err := identity(ctx)
	if err != nil {
		return err
	}

	filter, err := services.ParseTodoFilter(ctx.Query, h.pageSizes)
	if err != nil {
		return err
	}

	page, err := h.todos.ListTodos(ctx.Context(), id, filter)
	if err != nil {
		return err
	}

	resp := models.TodoListResponse{Count: page.Count, Results: page.Results}
	if page.HasNext() {
		next := pageURL(ctx, page.Page+1)
		resp.Next = &next
	}
	if page.HasPrevious() {
		prev := pageURL(ctx, page.Page-1)
		resp.Previous = &prev
	}
	return ctx.JSON(fasthttp.StatusOK, resp)
}

// CreateTodo handles POST /api/todos
func (h *TodoHandler) CreateTodo(ctx *web.FastRequestContext) error {
	id, err := identity(ctx)
	if err != nil {
		return err
	}

	in, err := decodeTodo(ctx, true)
	if err != nil {
		return err
	}

	todo, err := h.todos.CreateTodo(ctx.Context(), id, in)
	if err != nil {
		return err
	}
	h.recorder.RecordTodoOperation("create")
	return ctx.JSON(fasthttp.StatusCreated, todo)
}

// GetTodo handles GET /api/todos/:id
func (h *TodoHandler) GetTodo(ctx *web.FastRequestContext) error {
	id, todoID, err := h.target(ctx)
	if err != nil {
		return err
	}

	todo, err := h.todos.GetTodo(ctx.Context(), id, todoID)
	if err != nil {
		return err
	}
	return ctx.JSON(fasthttp.StatusOK, todo)
}

// UpdateTodo handles PUT /api/todos/:id
func (h *TodoHandler) UpdateTodo(ctx *web.FastRequestContext) error {
	return h.update(ctx, true)
}

// PatchTodo handles PATCH /api/todos/:id
func (h *TodoHandler) PatchTodo(ctx *web.FastRequestContext) error {
	return h.update(ctx, false)
}

func (h *TodoHandler) update(ctx *web.FastRequestContext, full bool) error {
	id, todoID, err := h.target(ctx)
	if err != nil {
		return err
	}

	// Ownership first: a foreign todo is 404 even when the body is invalid.
	if _, err := h.todos.GetTodo(ctx.Context(), id, todoID); err != nil {
		return err
	}

	in, err := decodeTodo(ctx, full)
	if err != nil {
		return err
	}

	todo, err := h.todos.UpdateTodo(ctx.Context(), id, todoID, in)
	if err != nil {
		return err
	}
	h.recorder.RecordTodoOperation("update")
	return ctx.JSON(fasthttp.StatusOK, todo)
}

// DeleteTodo handles DELETE /api/todos/:id
func (h *TodoHandler) DeleteTodo(ctx *web.FastRequestContext) error {
	id, todoID, err := h.target(ctx)
	if err != nil {
		return err
	}

	if err := h.todos.DeleteTodo(ctx.Context(), id, todoID); err != nil {
		return err
	}
	h.recorder.RecordTodoOperation("delete")
	return ctx.NoContent(fasthttp.StatusNoContent)
}

// ToggleComplete handles POST /api/todos/:id/toggle-complete
func (h *TodoHandler) ToggleComplete(ctx *web.FastRequestContext) error {
	id, todoID, err := h.target(ctx)
	if err != nil {
		return err
	}

	result, err := h.todos.ToggleComplete(ctx.Context(), id, todoID)
	if err != nil {
		return err
	}
	h.recorder.RecordTodoOperation("toggle")
	return ctx.JSON(fasthttp.StatusOK, result)
}

// Stats handles GET /api/todos/stats
func (h *TodoHandler) Stats(ctx *web.FastRequestContext) error {
	id, err := identity(ctx)
	if err != nil {
		return err
	}

	stats, err := h.todos.Stats(ctx.Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(fasthttp.StatusOK, stats)
}

// target returns the caller and the :id path parameter. A malformed id
// cannot name any todo, so it is reported as not found.
func (h *TodoHandler) target(ctx *web.FastRequestContext) (models.Identity, uuid.UUID, error) {
	id, err := identity(ctx)
	if err != nil {
		return models.Identity{}, uuid.Nil, err
	}
	todoID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return models.Identity{}, uuid.Nil, services.ErrNotFound
	}
	return id, todoID, nil
}

func decodeTodo(ctx *web.FastRequestContext, requireTitle bool) (models.TodoInput, error) {
	raw := map[string]json.RawMessage{}
	if err := bindBody(ctx, &raw); err != nil {
		return models.TodoInput{}, err
	}
	return services.DecodeTodoInput(raw, requireTitle)
}

// pageURL is the request URL with its page parameter set to page.
// Page 1 drops the parameter.
func pageURL(ctx *web.FastRequestContext, page int) string {
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)

	ctx.RequestCtx.QueryArgs().CopyTo(args)
	if page <= 1 {
		args.Del("page")
	} else {
		args.Set("page", strconv.Itoa(page))
	}
	return ctx.AbsoluteURL(args)
}
