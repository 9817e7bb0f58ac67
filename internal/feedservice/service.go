// Package feedservice coordinates the store, the generation pipeline, the
// roster and the event broker behind one surface shared by the REST API and
// the MCP tools. It also owns the runtime settings record, persisted as a
// flat JSON file.
package feedservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/starford/circle/internal/models"
	"github.com/starford/circle/internal/pipeline"
	"github.com/starford/circle/internal/roster"
	"github.com/starford/circle/internal/sse"
	"github.com/starford/circle/internal/storage"
	"github.com/starford/circle/internal/store"
)

const settingsFile = "settings.json"

// Service is safe for concurrent use.
type Service struct {
	store  *store.Store
	pipe   *pipeline.Pipeline
	roster *roster.Roster
	broker *sse.Broker
	files  storage.Provider
	logger *slog.Logger

	mu       sync.RWMutex
	settings models.Settings
}

// NewService creates the service and loads the settings record. A missing
// settings file yields defaults; a corrupt one is an error.
func NewService(st *store.Store, pipe *pipeline.Pipeline, ros *roster.Roster, broker *sse.Broker, files storage.Provider, logger *slog.Logger) (*Service, error) {
	s := &Service{
		store:  st,
		pipe:   pipe,
		roster: ros,
		broker: broker,
		files:  files,
		logger: logger,
	}

	settings := models.DefaultSettings()
	data, err := files.Read(settingsFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// First run.
	case err != nil:
		return nil, fmt.Errorf("feedservice: load settings: %w", err)
	default:
		if err := json.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("feedservice: parse settings: %w", err)
		}
	}
	s.settings = settings
	return s, nil
}

// Current returns the runtime settings snapshot.
func (s *Service) Current() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings validates, persists, and swaps the settings record
// wholesale. The new values take effect on the schedulers' next tick.
func (s *Service) UpdateSettings(_ context.Context, settings models.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("feedservice: encode settings: %w", err)
	}
	if err := s.files.Write(settingsFile, data); err != nil {
		return fmt.Errorf("feedservice: persist settings: %w", err)
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	s.logger.Info("feedservice: settings updated",
		slog.Bool("enabled", settings.Enabled),
		slog.Int("interval_minutes", settings.AutoPostIntervalMinutes))
	return nil
}

// ListPosts returns one page of the feed, newest first.
func (s *Service) ListPosts(_ context.Context, limit, offset int) ([]models.Post, bool, error) {
	return s.store.GetPosts(limit, offset)
}

// GetPost returns one post by id.
func (s *Service) GetPost(_ context.Context, id int64) (*models.Post, error) {
	return s.store.GetPost(id)
}

// CreatePost persists a user-authored post and announces it.
func (s *Service) CreatePost(_ context.Context, post *models.Post) (int64, error) {
	id, err := s.store.SavePost(post)
	if err != nil {
		return 0, err
	}
	s.broker.PublishPostEvent("created", id)
	return id, nil
}

// AddComment appends a comment to a post and announces it.
func (s *Service) AddComment(_ context.Context, postID int64, c models.Comment) error {
	if err := s.store.AddComment(postID, c); err != nil {
		return err
	}
	s.broker.PublishPostEvent("commented", postID)
	return nil
}

// LikePost increments a post's like counter and announces it.
func (s *Service) LikePost(_ context.Context, postID int64, authorID string) error {
	if err := s.store.LikePost(postID, authorID, "like"); err != nil {
		return err
	}
	s.broker.PublishPostEvent("liked", postID)
	return nil
}

// MarkViewed increments a post's view counter.
func (s *Service) MarkViewed(_ context.Context, postID int64, authorID string) error {
	return s.store.MarkViewed(postID, authorID)
}

// GeneratePost runs the pipeline for the persona right now, bypassing the
// scheduler gates, and persists the result. A nil post means the pipeline
// decided there was nothing to publish; errors surface to the caller.
func (s *Service) GeneratePost(ctx context.Context, personaID string) (*models.Post, error) {
	persona, err := s.roster.Get(personaID)
	if err != nil {
		return nil, err
	}
	post, err := s.pipe.GeneratePostForCharacter(ctx, persona)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, nil
	}
	id, err := s.store.SavePost(post)
	if err != nil {
		return nil, err
	}
	if err := s.store.TouchLastPost(persona.ID, time.Now()); err != nil {
		s.logger.Warn("feedservice: touch last post failed",
			slog.String("persona", persona.ID),
			slog.String("error", err.Error()))
	}
	s.broker.PublishPostEvent("created", id)
	return post, nil
}

// Personas returns the loaded persona set.
func (s *Service) Personas(_ context.Context) []models.Persona {
	return s.roster.List()
}

// SetActivePersona designates the foreground persona for the global loop.
func (s *Service) SetActivePersona(_ context.Context, id string) error {
	return s.roster.SetActive(id)
}

// Stats returns per-collection record counts.
func (s *Service) Stats(_ context.Context) (store.Stats, error) {
	return s.store.GetStats()
}
