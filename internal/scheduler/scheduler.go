// Package scheduler drives autonomous persona activity: a global loop that
// periodically publishes a post for one persona, and a behavior loop where
// every persona may post, comment on, like, and view others' posts. Both
// loops are probability gated and never die on errors.
package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/starford/circle/internal/models"
)

// Default loop parameters, matching the original cadence.
const (
	defaultTick         = time.Minute
	defaultBehaviorTick = 5 * time.Minute

	commentChance = 0.4
	likeChance    = 0.5
)

// Store is the subset of store operations the scheduler needs.
type Store interface {
	SavePost(p *models.Post) (int64, error)
	GetPosts(limit, offset int) ([]models.Post, bool, error)
	AddComment(postID int64, c models.Comment) error
	LikePost(postID int64, authorID, kind string) error
	MarkViewed(postID int64, authorID string) error
	GetProfile(characterID string) (*models.Profile, error)
	SaveProfile(p *models.Profile) error
	TouchLastPost(characterID string, at time.Time) error
	CountPostsSince(t time.Time) (int, error)
}

// Generator runs the generation pipeline.
type Generator interface {
	GeneratePostForCharacter(ctx context.Context, persona models.Persona) (*models.Post, error)
	GenerateComment(ctx context.Context, persona models.Persona, post *models.Post) (string, error)
}

// Personas supplies the loaded persona set.
type Personas interface {
	List() []models.Persona
	Active() (models.Persona, bool)
}

// SettingsSource returns the current runtime settings. Read at every tick so
// settings changes apply without a restart.
type SettingsSource interface {
	Current() models.Settings
}

// Events receives feed change notifications.
type Events interface {
	PublishPostEvent(kind string, postID int64)
}

// Status is the scheduler state exposed over the API and MCP tools.
type Status struct {
	Running            bool      `json:"running"`
	LastGenerationTime time.Time `json:"last_generation_time"`
	MinIntervalMinutes int       `json:"min_interval_minutes"`
	CurrentPersona     string    `json:"current_persona,omitempty"`
}

// Scheduler owns the two loops. Start is re-entrant safe; Stop prevents
// further ticks but does not interrupt a tick already in flight.
type Scheduler struct {
	store    Store
	gen      Generator
	personas Personas
	settings SettingsSource
	events   Events
	logger   *slog.Logger

	tick         time.Duration
	behaviorTick time.Duration

	mu             sync.Mutex
	running        bool
	cancel         context.CancelFunc
	done           chan struct{}
	lastPostAt     time.Time
	currentPersona string

	rnd *rand.Rand

	// Overridable in tests.
	now    func() time.Time
	chance func() float64
}

// New creates a stopped scheduler.
func New(st Store, gen Generator, personas Personas, settings SettingsSource, events Events, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		store:        st,
		gen:          gen,
		personas:     personas,
		settings:     settings,
		events:       events,
		logger:       logger,
		tick:         defaultTick,
		behaviorTick: defaultBehaviorTick,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
		now:          time.Now,
	}
	s.chance = func() float64 {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.rnd.Float64()
	}
	return s
}

// Start launches both loops. A no-op when already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(loopCtx, s.done)
	s.logger.Info("scheduler: started",
		slog.Duration("tick", s.tick),
		slog.Duration("behavior_tick", s.behaviorTick))
}

// Stop halts both loops and waits for the loop goroutine to exit. A no-op
// when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("scheduler: stopped")
}

// Running reports whether the loops are active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	st := s.settings.Current()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:            s.running,
		LastGenerationTime: s.lastPostAt,
		MinIntervalMinutes: st.AutoPostIntervalMinutes,
		CurrentPersona:     s.currentPersona,
	}
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	behavior := time.NewTicker(s.behaviorTick)
	defer behavior.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickGlobal(ctx)
		case <-behavior.C:
			s.tickBehavior(ctx)
		}
	}
}

// tickGlobal is one pass of the global auto-post loop: interval gate,
// probability gate, daily cap, then generate for the active (or a random)
// persona and publish.
func (s *Scheduler) tickGlobal(ctx context.Context) {
	st := s.settings.Current()
	if !st.Enabled {
		return
	}

	minInterval := time.Duration(st.AutoPostIntervalMinutes) * time.Minute
	s.mu.Lock()
	last := s.lastPostAt
	s.mu.Unlock()
	if !last.IsZero() && s.now().Sub(last) < minInterval {
		return
	}

	if s.chance() >= float64(st.AutoPostProbabilityPercent)/100 {
		return
	}

	if !s.underDailyCap(st) {
		return
	}

	persona, ok := s.pickPersona()
	if !ok {
		return
	}

	if id, ok := s.publishFor(ctx, persona); ok {
		now := s.now()
		s.mu.Lock()
		s.lastPostAt = now
		s.currentPersona = persona.ID
		s.mu.Unlock()
		if err := s.store.TouchLastPost(persona.ID, now); err != nil {
			s.logger.Warn("scheduler: touch last post failed",
				slog.String("persona", persona.ID),
				slog.String("error", err.Error()))
		}
		s.logger.Info("scheduler: autonomous post published",
			slog.String("persona", persona.ID),
			slog.Int64("post_id", id))
	}
}

// publishFor generates and persists one post. Returns (id, true) only after
// a successful save.
func (s *Scheduler) publishFor(ctx context.Context, persona models.Persona) (int64, bool) {
	post, err := s.gen.GeneratePostForCharacter(ctx, persona)
	if err != nil {
		s.logger.Warn("scheduler: generation failed",
			slog.String("persona", persona.ID),
			slog.String("error", err.Error()))
		return 0, false
	}
	if post == nil {
		s.logger.Debug("scheduler: nothing to publish", slog.String("persona", persona.ID))
		return 0, false
	}
	id, err := s.store.SavePost(post)
	if err != nil {
		s.logger.Error("scheduler: save post failed",
			slog.String("persona", persona.ID),
			slog.String("error", err.Error()))
		return 0, false
	}
	if s.events != nil {
		s.events.PublishPostEvent("created", id)
	}
	return id, true
}

func (s *Scheduler) underDailyCap(st models.Settings) bool {
	if st.MaxPostsPerDay <= 0 {
		return true
	}
	n, err := s.store.CountPostsSince(s.now().Add(-24 * time.Hour))
	if err != nil {
		s.logger.Warn("scheduler: daily cap check failed", slog.String("error", err.Error()))
		return false
	}
	return n < st.MaxPostsPerDay
}

// pickPersona prefers the designated active persona, else uniform random.
func (s *Scheduler) pickPersona() (models.Persona, bool) {
	if p, ok := s.personas.Active(); ok {
		return p, true
	}
	list := s.personas.List()
	if len(list) == 0 {
		return models.Persona{}, false
	}
	s.mu.Lock()
	i := s.rnd.Intn(len(list))
	s.mu.Unlock()
	return list[i], true
}
