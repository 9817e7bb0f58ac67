// Package pipeline runs the two-stage post generation flow: summarize the
// persona's recent conversation in its own voice, then compose a feed post
// from the summary plus a short context window. The pipeline assembles
// posts; it never persists them. Raw turns and summaries are archived in
// the background on a best-effort basis.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/starford/circle/internal/apperr"
	"github.com/starford/circle/internal/llm"
	"github.com/starford/circle/internal/models"
	"github.com/starford/circle/internal/parser"
)

const (
	summaryTurns = 20
	contextTurns = 10

	// Generations shorter than this are treated as refusals or noise and
	// discarded rather than published.
	minPostRunes    = 10
	minCommentRunes = 5
)

// TurnSource supplies recent conversation turns for a persona.
type TurnSource interface {
	FetchRecentTurns(ctx context.Context, personaID string, limit int) ([]models.Turn, error)
}

// Archive receives best-effort background writes of raw turns and summaries.
type Archive interface {
	SaveRawMessages(characterName string, msgs []models.RawMessage) error
	SaveChatSummary(characterName, summary string, messageCount int) error
}

// Pipeline orchestrates generation for one persona at a time. Safe for
// concurrent use.
type Pipeline struct {
	gen     llm.Generator
	turns   TurnSource
	archive Archive
	logger  *slog.Logger

	bg sync.WaitGroup
}

// New creates a pipeline. archive may be nil to disable background archiving.
func New(gen llm.Generator, turns TurnSource, archive Archive, logger *slog.Logger) *Pipeline {
	return &Pipeline{gen: gen, turns: turns, archive: archive, logger: logger}
}

// Wait blocks until in-flight background archive writes finish. Called on
// shutdown and by tests; generation never waits on these itself.
func (p *Pipeline) Wait() {
	p.bg.Wait()
}

// GeneratePostForCharacter runs the full flow for one persona and returns an
/// unsaved post. A nil post with nil error means "nothing to publish": empty
// generation or content too short. Host fetch and stage-1 failures degrade
// (empty history, empty summary); only a stage-2 transport failure is
// reported as an error.
func (p *Pipeline) GeneratePostForCharacter(ctx context.Context, persona models.Persona) (*models.Post, error) {
	turns, err := p.turns.FetchRecentTurns(ctx, persona.ID, summaryTurns)
	if err != nil {
		p.logger.Warn("pipeline: fetch turns failed, continuing without history",
			slog.String("persona", persona.ID),
			slog.String("error", err.Error()))
		turns = nil
	}

	if len(turns) > 0 {
		p.archiveTurns(persona.Name, turns)
	}

	summary := p.summarize(ctx, persona, turns)
	if summary != "" {
		p.archiveSummary(persona.Name, summary, len(turns))
	}

	raw, err := p.gen.Generate(ctx, buildPostPrompt(persona, summary, tail(turns, contextTurns)), postMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("pipeline: compose post for %s: %w: %w", persona.ID, apperr.ErrGenerationFailed, err)
	}
	if strings.TrimSpace(raw) == "" {
		p.logger.Info("pipeline: empty generation, nothing to publish", slog.String("persona", persona.ID))
		return nil, nil
	}

	content, tags := parser.ParseContentAndTags(raw)
	if utf8.RuneCountInString(content) < minPostRunes {
		p.logger.Info("pipeline: content too short, discarding",
			slog.String("persona", persona.ID),
			slog.Int("runes", utf8.RuneCountInString(content)))
		return nil, nil
	}
	if len(tags) == 0 {
		tags = parser.ExtractTags(content, persona.Name)
	}

	return &models.Post{
		AuthorID:     persona.ID,
		AuthorName:   persona.Name,
		AuthorAvatar: persona.Avatar,
		Content:      content,
		Tags:         tags,
		IsAutonomous: true,
	}, nil
}

// GenerateComment produces a short in-character reaction to a post. An empty
// string with nil error means the result was below the minimum length and
// should not be published.
func (p *Pipeline) GenerateComment(ctx context.Context, persona models.Persona, post *models.Post) (string, error) {
	raw, err := p.gen.Generate(ctx, buildCommentPrompt(persona, post), commentMaxTokens)
	if err != nil {
		return "", fmt.Errorf("pipeline: comment on post %d for %s: %w: %w",
			post.ID, persona.ID, apperr.ErrGenerationFailed, err)
	}
	content := strings.TrimSpace(raw)
	if utf8.RuneCountInString(content) < minCommentRunes {
		return "", nil
	}
	return content, nil
}

// summarize is stage 1. Empty history short-circuits without calling the
// generator; a generation failure degrades to an empty summary.
func (p *Pipeline) summarize(ctx context.Context, persona models.Persona, turns []models.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	raw, err := p.gen.Generate(ctx, buildSummaryPrompt(persona, tail(turns, summaryTurns)), summaryMaxTokens)
	if err != nil {
		p.logger.Warn("pipeline: summarize failed, continuing without summary",
			slog.String("persona", persona.ID),
			slog.String("error", err.Error()))
		return ""
	}
	return strings.TrimSpace(raw)
}

func (p *Pipeline) archiveTurns(characterName string, turns []models.Turn) {
	if p.archive == nil {
		return
	}
	msgs := make([]models.RawMessage, len(turns))
	for i, t := range turns {
		msgs[i] = models.RawMessage{
			CharacterName: characterName,
			Role:          t.Role(),
			Content:       t.Text,
		}
	}
	p.bg.Add(1)
	go func() {
		defer p.bg.Done()
		if err := p.archive.SaveRawMessages(characterName, msgs); err != nil {
			p.logger.Warn("pipeline: archive turns failed",
				slog.String("persona", characterName),
				slog.String("error", err.Error()))
		}
	}()
}

func (p *Pipeline) archiveSummary(characterName, summary string, messageCount int) {
	if p.archive == nil {
		return
	}
	p.bg.Add(1)
	go func() {
		defer p.bg.Done()
		if err := p.archive.SaveChatSummary(characterName, summary, messageCount); err != nil {
			p.logger.Warn("pipeline: archive summary failed",
				slog.String("persona", characterName),
				slog.String("error", err.Error()))
		}
	}()
}

// tail returns the last n turns.
func tail(turns []models.Turn, n int) []models.Turn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
