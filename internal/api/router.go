package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/circle/internal/feedservice"
	"github.com/starford/circle/internal/scheduler"
)

// NewRouter creates a chi router with all API routes mounted (without the
// /api prefix; the caller mounts it). authEnabled controls whether Bearer
// token auth is enforced. sseHandler, if non-nil, is mounted at GET /events
// inside the auth group. avatars, if non-nil, gets its upload route here;
// its read route lives outside the /api mount.
func NewRouter(appCtx context.Context, svc *feedservice.Service, sched *scheduler.Scheduler, authEnabled bool, token string, sseHandler http.Handler, avatars *AvatarHandler) chi.Router {
	h := NewHandler(appCtx, svc, sched)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Feed.
	r.Get("/posts", h.ListPosts)
	r.Post("/posts", h.CreatePost)
	r.Get("/posts/{id}", h.GetPost)
	r.Post("/posts/{id}/comments", h.AddComment)
	r.Post("/posts/{id}/like", h.LikePost)
	r.Post("/posts/{id}/view", h.ViewPost)

	// Manual generation trigger.
	r.Post("/generate/{personaID}", h.GeneratePost)

	// Settings.
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)

	// Scheduler control.
	r.Get("/scheduler/status", h.SchedulerStatus)
	r.Post("/scheduler/start", h.StartScheduler)
	r.Post("/scheduler/stop", h.StopScheduler)
	r.Put("/scheduler/persona/{id}", h.SetActivePersona)

	// Personas and diagnostics.
	r.Get("/personas", h.ListPersonas)
	r.Get("/stats", h.Stats)

	// Avatar upload (auth-protected; serving is public at /avatars).
	if avatars != nil {
		r.Post("/avatars", avatars.Upload)
	}

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
