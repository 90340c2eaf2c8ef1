package handlers

import (
	"github.com/fluxorio/todoapi/pkg/web"
)

// RegisterRoutes mounts the API on router. protected runs before every
// route that needs an authenticated caller.
func RegisterRoutes(router *web.FastRouter, authHandler *AuthHandler, todoHandler *TodoHandler, protected []web.FastMiddleware) {
	router.POSTFast("/api/auth/register", authHandler.Register)
	router.POSTFast("/api/auth/login", authHandler.Login)
	router.POSTFast("/api/auth/token/refresh", authHandler.Refresh)
	router.POSTFast("/api/auth/logout", authHandler.Logout)
	router.GETFastWith("/api/auth/profile", authHandler.GetProfile, protected...)
	router.DELETEFastWith("/api/auth/profile", authHandler.DeleteProfile, protected...)

	// stats is registered before :id so it is matched first
	router.GETFastWith("/api/todos/stats", todoHandler.Stats, protected...)
	router.GETFastWith("/api/todos", todoHandler.ListTodos, protected...)
	router.POSTFastWith("/api/todos", todoHandler.CreateTodo, protected...)
	router.GETFastWith("/api/todos/:id", todoHandler.GetTodo, protected...)
	router.PUTFastWith("/api/todos/:id", todoHandler.UpdateTodo, protected...)
	router.PATCHFastWith("/api/todos/:id", todoHandler.PatchTodo, protected...)
	router.DELETEFastWith("/api/todos/:id", todoHandler.DeleteTodo, protected...)
	router.POSTFastWith("/api/todos/:id/toggle-complete", todoHandler.ToggleComplete, protected...)
}
