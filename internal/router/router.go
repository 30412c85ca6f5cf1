package router

import (
	"github.com/fasthttp/router"

	apiHandler "github.com/fastygo/taskhub/api/handler"
	"github.com/fastygo/taskhub/internal/middleware"
)

type Handlers struct {
	Auth     *apiHandler.AuthHandler
	Project  *apiHandler.ProjectHandler
	Task     *apiHandler.TaskHandler
	User     *apiHandler.UserHandler
	Activity *apiHandler.ActivityHandler
	Health   *apiHandler.HealthHandler
}

// New registers every route. auth guards protected routes; optional is used
// by registration, where a token is only needed to create admins.
func New(handlers Handlers, auth, optional middleware.Middleware) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/v1/auth/register", optional(handlers.Auth.Register))
	r.POST("/api/v1/auth/login", handlers.Auth.Login)
	r.POST("/api/v1/auth/logout", auth(handlers.Auth.Logout))
	r.POST("/api/v1/auth/refresh", auth(handlers.Auth.Refresh))
	r.GET("/api/v1/auth/me", auth(handlers.Auth.Me))

	// Projects
	r.GET("/api/v1/projects", auth(handlers.Project.List))
	r.POST("/api/v1/projects", auth(handlers.Project.Create))
	r.GET("/api/v1/projects/{id}", auth(handlers.Project.Get))
	r.PUT("/api/v1/projects/{id}", auth(handlers.Project.Update))
	r.DELETE("/api/v1/projects/{id}", auth(handlers.Project.Delete))
	r.PUT("/api/v1/projects/{id}/assign-users", auth(handlers.Project.AssignUsers))
	r.DELETE("/api/v1/projects/{id}/tasks", auth(handlers.Project.DeleteTasks))

	// Tasks
	r.GET("/api/v1/tasks", auth(handlers.Task.List))
	r.POST("/api/v1/tasks", auth(handlers.Task.Create))
	r.GET("/api/v1/tasks/{id}", auth(handlers.Task.Get))
	r.PUT("/api/v1/tasks/{id}", auth(handlers.Task.Update))
	r.DELETE("/api/v1/tasks/{id}", auth(handlers.Task.Delete))
	r.PUT("/api/v1/tasks/{id}/submit", auth(handlers.Task.Submit))
	r.PUT("/api/v1/tasks/{id}/reopen", auth(handlers.Task.Reopen))

	// Users
	r.GET("/api/v1/users", auth(handlers.User.List))
	r.GET("/api/v1/users/{id}", auth(handlers.User.Get))
	r.PUT("/api/v1/users/{id}", auth(handlers.User.Update))
	r.DELETE("/api/v1/users/{id}", auth(handlers.User.Delete))

	r.GET("/api/v1/activity", auth(handlers.Activity.List))

	return r
}
