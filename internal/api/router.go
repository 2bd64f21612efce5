package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/taskboard/internal/boardservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *boardservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/board", h.GetBoard)
	r.Get("/validate", h.Validate)

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.ListTasks)
		r.Post("/", h.CreateTask)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetTask)
			r.Patch("/", h.UpdateTask)
			r.Get("/html", h.GetTaskHTML)
			r.Post("/move", h.MoveTask)
			r.Post("/start", h.StartTask)
			r.Post("/finish", h.FinishTask)
			r.Post("/archive", h.ArchiveTask)
		})
	})

	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
