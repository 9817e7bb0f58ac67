// Package roster loads and serves the set of persona cards. Cards are YAML
// files in the roster directory; the set can be reloaded at runtime when
// files change on disk.
package roster

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/starford/circle/internal/apperr"
	"github.com/starford/circle/internal/models"
	"github.com/starford/circle/internal/storage"
)

// Roster holds the loaded persona set and the currently active persona.
//
// Reads vastly outnumber reloads, so state is guarded by a RWMutex rather
// than a loop goroutine.
type Roster struct {
	store  storage.Provider
	logger *slog.Logger

	mu       sync.RWMutex
	personas map[string]models.Persona
	order    []string
	activeID string
}

// New creates an empty roster reading cards through the given provider.
// Call Reload to populate it.
func New(store storage.Provider, logger *slog.Logger) *Roster {
	return &Roster{
		store:    store,
		logger:   logger,
		personas: make(map[string]models.Persona),
	}
}

// Reload re-reads every persona card from disk and swaps the set in one
// step. Unparseable cards are skipped with a warning; they never abort the
// reload. An active id pointing at a removed persona is cleared.
func (r *Roster) Reload() error {
	infos, err := r.store.List("", ".yaml")
	if err != nil {
		return fmt.Errorf("roster: list cards: %w", err)
	}

	personas := make(map[string]models.Persona, len(infos))
	for _, fi := range infos {
		data, err := r.store.Read(fi.Path)
		if err != nil {
			r.logger.Warn("roster: read card failed", slog.String("path", fi.Path), slog.String("error", err.Error()))
			continue
		}
		var p models.Persona
		if err := yaml.Unmarshal(data, &p); err != nil {
			r.logger.Warn("roster: parse card failed", slog.String("path", fi.Path), slog.String("error", err.Error()))
			continue
		}
		if p.ID == "" {
			p.ID = strings.TrimSuffix(filepath.Base(fi.Path), ".yaml")
		}
		if p.Name == "" {
			p.Name = p.ID
		}
		if p.PostingFrequency <= 0 || p.PostingFrequency > 1 {
			p.PostingFrequency = models.DefaultPostingFrequency
		}
		if prev, dup := personas[p.ID]; dup {
			r.logger.Warn("roster: duplicate persona id, keeping first",
				slog.String("id", p.ID), slog.String("kept", prev.Name))
			continue
		}
		personas[p.ID] = p
	}

	order := make([]string, 0, len(personas))
	for id := range personas {
		order = append(order, id)
	}
	sort.Strings(order)

	r.mu.Lock()
	r.personas = personas
	r.order = order
	if _, ok := personas[r.activeID]; !ok {
		r.activeID = ""
	}
	r.mu.Unlock()

	r.logger.Info("roster: loaded", slog.Int("personas", len(personas)))
	return nil
}

// List returns all personas ordered by id.
func (r *Roster) List() []models.Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Persona, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.personas[id])
	}
	return out
}

// Get returns the persona with the given id, or apperr.ErrNotFound.
func (r *Roster) Get(id string) (models.Persona, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.personas[id]
	if !ok {
		return models.Persona{}, fmt.Errorf("roster: persona %s: %w", id, apperr.ErrNotFound)
	}
	return p, nil
}

// Len returns the number of loaded personas.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Active returns the currently active persona, if one is set.
func (r *Roster) Active() (models.Persona, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.personas[r.activeID]
	return p, ok
}

// SetActive marks the persona as the conversation foreground. An empty id
// clears the selection; an unknown id is rejected.
func (r *Roster) SetActive(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id != "" {
		if _, ok := r.personas[id]; !ok {
			return fmt.Errorf("roster: persona %s: %w", id, apperr.ErrNotFound)
		}
	}
	r.activeID = id
	return nil
}
