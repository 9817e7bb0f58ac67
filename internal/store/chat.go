package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/circle/internal/apperr"
	"github.com/starford/circle/internal/models"
)

// SaveChatSummary overwrites the persona's summary record wholesale.
func (s *Store) SaveChatSummary(characterName, summary string, messageCount int) error {
	_, err := s.conn.Exec(`
		INSERT INTO chat_summaries (character_name, summary, message_count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(character_name) DO UPDATE SET
			summary       = excluded.summary,
			message_count = excluded.message_count,
			updated_at    = excluded.updated_at
	`, characterName, summary, messageCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: save summary for %s: %w: %w", characterName, apperr.ErrWriteFailed, err)
	}
	return nil
}

// GetChatSummary returns the latest summary for a persona, or
// apperr.ErrNotFound.
func (s *Store) GetChatSummary(characterName string) (*models.ChatSummary, error) {
	row := s.conn.QueryRow(`
		SELECT character_name, summary, message_count, updated_at
		FROM chat_summaries WHERE character_name = ?
	`, characterName)

	var cs models.ChatSummary
	err := row.Scan(&cs.CharacterName, &cs.Summary, &cs.MessageCount, &cs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get summary for %s: %w", characterName, err)
	}
	return &cs, nil
}

// SaveRawMessages appends a batch of messages to the raw chat log. Each
// entry gets a timestamp derived from a shared batch base plus its index,
// so insertion order is recoverable by sorting on timestamp even when the
// source messages carry no reliable per-message clock. Empty input is a
// successful no-op.
func (s *Store) SaveRawMessages(characterName string, msgs []models.RawMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: save raw messages: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT INTO chat_messages (character_name, role, content, timestamp)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("store: save raw messages: prepare: %w", err)
	}
	defer stmt.Close()

	base := time.Now().UnixMilli()
	for i, m := range msgs {
		role := m.Role
		if role == "" {
			role = models.RoleAssistant
		}
		if _, err := stmt.Exec(characterName, role, m.Content, base+int64(i)); err != nil {
			return fmt.Errorf("store: save raw message %d: %w: %w", i, apperr.ErrWriteFailed, err)
		}
	}
	return tx.Commit()
}

// GetRawChatMessages returns up to limit entries for the persona in
// insertion order. When the characterName index exists the lookup is
// index-backed; on a database migrated from an older version that lacks it,
// the method falls back to a full scan filter.
func (s *Store) GetRawChatMessages(characterName string, limit int) ([]models.RawMessage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	var rows *sql.Rows
	var err error
	indexed := s.hasIndex("idx_messages_character")
	if indexed {
		rows, err = s.conn.Query(`
			SELECT id, character_name, role, content, timestamp
			FROM chat_messages
			WHERE character_name = ?
			ORDER BY timestamp ASC
			LIMIT ?
		`, characterName, limit)
	} else {
		rows, err = s.conn.Query(`
			SELECT id, character_name, role, content, timestamp
			FROM chat_messages
			ORDER BY timestamp ASC
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get raw messages for %s: %w", characterName, err)
	}
	defer rows.Close()

	var out []models.RawMessage
	for rows.Next() {
		var m models.RawMessage
		if err := rows.Scan(&m.ID, &m.CharacterName, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan raw message: %w", err)
		}
		if !indexed && m.CharacterName != characterName {
			continue
		}
		out = append(out, m)
		if len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}
