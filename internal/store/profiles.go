package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/circle/internal/apperr"
	"github.com/starford/circle/internal/models"
)

// GetProfile returns the interaction ledger for a persona. An unknown id
// yields a fresh profile rather than an error, so callers can treat every
// persona as having a ledger.
func (s *Store) GetProfile(characterID string) (*models.Profile, error) {
	row := s.conn.QueryRow(`
		SELECT character_id, posting_frequency, last_post_at, viewed_posts, liked_posts, commented_posts
		FROM profiles WHERE character_id = ?
	`, characterID)

	var p models.Profile
	var lastPostAt sql.NullTime
	var viewedJSON, likedJSON, commentedJSON string
	err := row.Scan(&p.CharacterID, &p.PostingFrequency, &lastPostAt,
		&viewedJSON, &likedJSON, &commentedJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewProfile(characterID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get profile %s: %w", characterID, err)
	}
	if lastPostAt.Valid {
		p.LastPostAt = lastPostAt.Time
	}
	decodeIDs(viewedJSON, &p.ViewedPosts)
	decodeIDs(likedJSON, &p.LikedPosts)
	decodeIDs(commentedJSON, &p.CommentedPosts)
	return &p, nil
}

// SaveProfile upserts the full profile record keyed by persona id.
func (s *Store) SaveProfile(p *models.Profile) error {
	viewedJSON, _ := json.Marshal(idsOrEmpty(p.ViewedPosts))
	likedJSON, _ := json.Marshal(idsOrEmpty(p.LikedPosts))
	commentedJSON, _ := json.Marshal(idsOrEmpty(p.CommentedPosts))

	var lastPostAt any
	if !p.LastPostAt.IsZero() {
		lastPostAt = p.LastPostAt.UTC()
	}

	_, err := s.conn.Exec(`
		INSERT INTO profiles (character_id, posting_frequency, last_post_at, viewed_posts, liked_posts, commented_posts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(character_id) DO UPDATE SET
			posting_frequency = excluded.posting_frequency,
			last_post_at      = excluded.last_post_at,
			viewed_posts      = excluded.viewed_posts,
			liked_posts       = excluded.liked_posts,
			commented_posts   = excluded.commented_posts
	`, p.CharacterID, p.PostingFrequency, lastPostAt,
		string(viewedJSON), string(likedJSON), string(commentedJSON))
	if err != nil {
		return fmt.Errorf("store: save profile %s: %w: %w", p.CharacterID, apperr.ErrWriteFailed, err)
	}
	return nil
}

// TouchLastPost stamps the persona's last autonomous post time.
func (s *Store) TouchLastPost(characterID string, at time.Time) error {
	p, err := s.GetProfile(characterID)
	if err != nil {
		return err
	}
	p.LastPostAt = at
	return s.SaveProfile(p)
}

func decodeIDs(raw string, dst *[]int64) {
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		*dst = nil
	}
}

func idsOrEmpty(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
