package scheduler

import (
	"context"
	"log/slog"

	"github.com/starford/circle/internal/models"
)

const behaviorFeedWindow = 10

// tickBehavior is one pass of the behavior loop: every persona gets an
// independent chance to post (weighted by its posting frequency, on purpose
// not subject to the global cooldown) and then browses the recent feed,
// viewing, commenting on and liking posts by others. The profile ledger
// prevents repeat comments and likes; views are counted every pass.
func (s *Scheduler) tickBehavior(ctx context.Context) {
	st := s.settings.Current()
	if !st.Enabled {
		return
	}

	for _, persona := range s.personas.List() {
		if ctx.Err() != nil {
			return
		}
		s.behaveAs(ctx, persona, st)
	}
}

func (s *Scheduler) behaveAs(ctx context.Context, persona models.Persona, st models.Settings) {
	profile, err := s.store.GetProfile(persona.ID)
	if err != nil {
		s.logger.Warn("behavior: load profile failed",
			slog.String("persona", persona.ID),
			slog.String("error", err.Error()))
		return
	}

	weight := persona.PostingFrequency
	if weight <= 0 {
		weight = models.DefaultPostingFrequency
	}
	adjusted := float64(st.AutoPostProbabilityPercent) / 100 * weight
	if s.chance() < adjusted && s.underDailyCap(st) {
		if id, ok := s.publishFor(ctx, persona); ok {
			if err := s.store.TouchLastPost(persona.ID, s.now()); err != nil {
				s.logger.Warn("behavior: touch last post failed",
					slog.String("persona", persona.ID),
					slog.String("error", err.Error()))
			}
			s.logger.Info("behavior: persona posted",
				slog.String("persona", persona.ID),
				slog.Int64("post_id", id))
		}
	}

	posts, _, err := s.store.GetPosts(behaviorFeedWindow, 0)
	if err != nil {
		s.logger.Warn("behavior: load feed failed",
			slog.String("persona", persona.ID),
			slog.String("error", err.Error()))
		return
	}

	changed := false
	for i := range posts {
		post := &posts[i]
		if post.AuthorID == persona.ID {
			continue
		}

		if err := s.store.MarkViewed(post.ID, persona.ID); err != nil {
			s.logger.Warn("behavior: mark viewed failed",
				slog.Int64("post_id", post.ID),
				slog.String("error", err.Error()))
		}
		if !profile.HasViewed(post.ID) {
			profile.MarkViewed(post.ID)
			changed = true
		}

		if st.EnableCharacterComments && !profile.HasCommented(post.ID) && s.chance() < commentChance {
			if s.commentOn(ctx, persona, post) {
				profile.MarkCommented(post.ID)
				changed = true
			}
		}

		if !profile.HasLiked(post.ID) && s.chance() < likeChance {
			if err := s.store.LikePost(post.ID, persona.ID, "like"); err != nil {
				s.logger.Warn("behavior: like failed",
					slog.Int64("post_id", post.ID),
					slog.String("error", err.Error()))
			} else {
				profile.MarkLiked(post.ID)
				changed = true
				if s.events != nil {
					s.events.PublishPostEvent("liked", post.ID)
				}
				s.logger.Debug("behavior: liked",
					slog.String("persona", persona.ID),
					slog.Int64("post_id", post.ID))
			}
		}
	}

	if changed {
		if err := s.store.SaveProfile(profile); err != nil {
			s.logger.Warn("behavior: save profile failed",
				slog.String("persona", persona.ID),
				slog.String("error", err.Error()))
		}
	}
}

// commentOn generates and stores one comment. Reports success so the caller
// can update the ledger.
func (s *Scheduler) commentOn(ctx context.Context, persona models.Persona, post *models.Post) bool {
	content, err := s.gen.GenerateComment(ctx, persona, post)
	if err != nil {
		s.logger.Warn("behavior: comment generation failed",
			slog.String("persona", persona.ID),
			slog.Int64("post_id", post.ID),
			slog.String("error", err.Error()))
		return false
	}
	if content == "" {
		return false
	}
	err = s.store.AddComment(post.ID, models.Comment{
		AuthorID:   persona.ID,
		AuthorName: persona.Name,
		Content:    content,
	})
	if err != nil {
		s.logger.Warn("behavior: add comment failed",
			slog.Int64("post_id", post.ID),
			slog.String("error", err.Error()))
		return false
	}
	if s.events != nil {
		s.events.PublishPostEvent("commented", post.ID)
	}
	s.logger.Debug("behavior: commented",
		slog.String("persona", persona.ID),
		slog.Int64("post_id", post.ID))
	return true
}
