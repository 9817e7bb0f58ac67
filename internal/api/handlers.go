package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/circle/internal/apperr"
	"github.com/starford/circle/internal/feedservice"
	"github.com/starford/circle/internal/models"
	"github.com/starford/circle/internal/scheduler"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc   *feedservice.Service
	sched *scheduler.Scheduler

	// appCtx outlives individual requests; scheduler loops started over the
	// API are bound to it, not to the triggering request.
	appCtx context.Context
}

// NewHandler creates a new Handler.
func NewHandler(appCtx context.Context, svc *feedservice.Service, sched *scheduler.Scheduler) *Handler {
	return &Handler{svc: svc, sched: sched, appCtx: appCtx}
}

func postID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// ListPosts handles GET /api/posts.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	posts, hasMore, err := h.svc.ListPosts(r.Context(), limit, offset)
	if err != nil {
		slog.Error("list posts failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	dtos := make([]PostDTO, len(posts))
	for i, p := range posts {
		dtos[i] = toPostDTO(p)
	}
	writeJSON(w, http.StatusOK, PostListResponse{Posts: dtos, HasMore: hasMore})
}

// GetPost handles GET /api/posts/{id}.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid post id"))
		return
	}
	post, err := h.svc.GetPost(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get post failed", slog.Int64("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, toPostDTO(*post))
}

// CreatePost handles POST /api/posts (user-authored posts).
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	authorID := req.AuthorID
	if authorID == "" {
		authorID = "user"
	}
	post := &models.Post{
		AuthorID:   authorID,
		AuthorName: req.AuthorName,
		Content:    req.Content,
		Tags:       req.Tags,
	}
	if _, err := h.svc.CreatePost(r.Context(), post); err != nil {
		slog.Error("create post failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, toPostDTO(*post))
}

// AddComment handles POST /api/posts/{id}/comments.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid post id"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	authorID := req.AuthorID
	if authorID == "" {
		authorID = "user"
	}
	err := h.svc.AddComment(r.Context(), id, models.Comment{
		AuthorID:   authorID,
		AuthorName: req.AuthorName,
		Content:    req.Content,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("add comment failed", slog.Int64("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// LikePost handles POST /api/posts/{id}/like.
func (h *Handler) LikePost(w http.ResponseWriter, r *http.Request) {
	h.interact(w, r, h.svc.LikePost)
}

// ViewPost handles POST /api/posts/{id}/view.
func (h *Handler) ViewPost(w http.ResponseWriter, r *http.Request) {
	h.interact(w, r, h.svc.MarkViewed)
}

func (h *Handler) interact(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, string) error) {
	id, ok := postID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid post id"))
		return
	}
	// Body is optional: an absent author defaults to the user.
	var req InteractionRequest
	_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if req.AuthorID == "" {
		req.AuthorID = "user"
	}

	if err := op(r.Context(), id, req.AuthorID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("interaction failed", slog.Int64("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GeneratePost handles POST /api/generate/{personaID}: a manual pipeline
// trigger that bypasses the scheduler gates. 204 means the pipeline ran but
// decided there was nothing to publish.
func (h *Handler) GeneratePost(w http.ResponseWriter, r *http.Request) {
	personaID := chi.URLParam(r, "personaID")
	post, err := h.svc.GeneratePost(r.Context(), personaID)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("unknown persona"))
		case errors.Is(err, apperr.ErrGenerationFailed):
			writeJSON(w, http.StatusBadGateway, errorBody("generation failed"))
		default:
			slog.Error("generate post failed", slog.String("persona", personaID), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if post == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, toPostDTO(*post))
}

// GetSettings handles GET /api/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Current())
}

// UpdateSettings handles PUT /api/settings. The record is replaced
// wholesale; partial updates are not supported.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var settings models.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.svc.UpdateSettings(r.Context(), settings); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// SchedulerStatus handles GET /api/scheduler/status.
func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Status())
}

// StartScheduler handles POST /api/scheduler/start.
func (h *Handler) StartScheduler(w http.ResponseWriter, r *http.Request) {
	h.sched.Start(h.appCtx)
	writeJSON(w, http.StatusOK, h.sched.Status())
}

// StopScheduler handles POST /api/scheduler/stop.
func (h *Handler) StopScheduler(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, h.sched.Status())
}

// SetActivePersona handles PUT /api/scheduler/persona/{id}.
func (h *Handler) SetActivePersona(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.SetActivePersona(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("unknown persona"))
		} else {
			slog.Error("set persona failed", slog.String("persona", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPersonas handles GET /api/personas.
func (h *Handler) ListPersonas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"personas": h.svc.Personas(r.Context()),
	})
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		slog.Error("stats failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
