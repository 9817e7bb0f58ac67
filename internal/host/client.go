// Package host fetches recent conversation turns from the chat application
// the feed is embedded next to. The host is optional: when no endpoint is
// configured, or a fetch fails, the client serves a locally maintained
// fallback conversation instead.
package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/starford/circle/internal/apperr"
	"github.com/starford/circle/internal/models"
)

const defaultTimeout = 10 * time.Second

// Client talks to the host transcript endpoint. Safe for concurrent use.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	logger   *slog.Logger

	mu       sync.RWMutex
	fallback map[string][]models.Turn
}

// New creates a host client. An empty endpoint disables remote fetching
// entirely; the client then serves only the in-memory conversation.
func New(endpoint, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		token:    token,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
		fallback: make(map[string][]models.Turn),
	}
}

// SetConversation replaces the in-memory fallback conversation for a persona.
func (c *Client) SetConversation(personaID string, turns []models.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]models.Turn, len(turns))
	copy(cp, turns)
	c.fallback[personaID] = cp
}

// FetchRecentTurns returns up to limit most recent turns for the persona.
// When an endpoint is configured it makes exactly one POST attempt, no
// retries; on failure it degrades to the fallback conversation and only
// reports ErrFetchFailed when that is empty too.
func (c *Client) FetchRecentTurns(ctx context.Context, personaID string, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		limit = 20
	}

	if c.endpoint != "" {
		turns, err := c.fetchRemote(ctx, personaID, limit)
		if err == nil {
			return tail(turns, limit), nil
		}
		c.logger.Warn("host: remote fetch failed, using fallback",
			slog.String("persona", personaID),
			slog.String("error", err.Error()))
		if local := c.local(personaID); len(local) > 0 {
			return tail(local, limit), nil
		}
		return nil, fmt.Errorf("host: fetch turns for %s: %w: %w", personaID, apperr.ErrFetchFailed, err)
	}

	return tail(c.local(personaID), limit), nil
}

func (c *Client) local(personaID string) []models.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fallback[personaID]
}

type turnsRequest struct {
	CharacterID string `json:"character_id"`
	Limit       int    `json:"limit"`
}

type turnsResponse struct {
	Turns []models.Turn `json:"turns"`
}

func (c *Client) fetchRemote(ctx context.Context, personaID string, limit int) ([]models.Turn, error) {
	body, err := json.Marshal(turnsRequest{CharacterID: personaID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little of the body for the log line.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("host returned %d: %s", resp.StatusCode, snippet)
	}

	var tr turnsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return tr.Turns, nil
}

// tail returns the last n turns.
func tail(turns []models.Turn, n int) []models.Turn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
