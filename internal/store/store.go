// Package store provides the SQLite-backed persistent store for posts,
// character profiles, chat summaries, and the raw message log.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/circle/internal/apperr"
)

// schemaVersion is the current PRAGMA user_version. Migrations are additive
// only: new versions may create tables and indexes, never drop records.
const schemaVersion = 2

// migrations[i] upgrades the database from version i+1-1 to i+1.
var migrations = []string{
	// v1: the four record collections.
	`
CREATE TABLE IF NOT EXISTS posts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	author_id     TEXT NOT NULL DEFAULT '',
	author_name   TEXT NOT NULL DEFAULT '',
	author_avatar TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL DEFAULT '',
	tags          TEXT NOT NULL DEFAULT '[]',
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL,
	is_autonomous INTEGER NOT NULL DEFAULT 0,
	views         INTEGER NOT NULL DEFAULT 0,
	likes         INTEGER NOT NULL DEFAULT 0,
	comment_count INTEGER NOT NULL DEFAULT 0,
	comments      TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS profiles (
	character_id      TEXT PRIMARY KEY,
	posting_frequency REAL NOT NULL DEFAULT 0.5,
	last_post_at      DATETIME,
	viewed_posts      TEXT NOT NULL DEFAULT '[]',
	liked_posts       TEXT NOT NULL DEFAULT '[]',
	commented_posts   TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS chat_summaries (
	character_name TEXT PRIMARY KEY,
	summary        TEXT NOT NULL DEFAULT '',
	message_count  INTEGER NOT NULL DEFAULT 0,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	character_name TEXT NOT NULL,
	role           TEXT NOT NULL,
	content        TEXT NOT NULL DEFAULT '',
	timestamp      INTEGER NOT NULL
);
`,
	// v2: secondary indexes for ordering. Databases created before this
	// version gain the indexes here without data loss; readers tolerate
	// their absence (see GetRawChatMessages).
	`
CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
CREATE INDEX IF NOT EXISTS idx_messages_character ON chat_messages(character_name, timestamp);
CREATE INDEX IF NOT EXISTS idx_summaries_updated_at ON chat_summaries(updated_at);
`,
}

// Store wraps a sql.DB with feed-specific operations.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies pending schema
// migrations. Safe to call once per process lifetime; re-running migrations
// on a current database is a no-op.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w: %w", apperr.ErrStoreUnavailable, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w: %w", apperr.ErrStoreUnavailable, err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: migrate: %w: %w", apperr.ErrStoreUnavailable, err)
	}
	return &Store{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	var version int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for v := version; v < schemaVersion; v++ {
		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", v+1, err)
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("apply migration %d: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, v+1)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("bump user_version to %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", v+1, err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Stats holds per-collection record counts, used only for diagnostics.
type Stats struct {
	PostCount    int `json:"post_count"`
	ProfileCount int `json:"profile_count"`
	SummaryCount int `json:"summary_count"`
	MessageCount int `json:"message_count"`
}

// GetStats returns total record counts per collection.
func (s *Store) GetStats() (Stats, error) {
	var st Stats
	counts := []struct {
		query string
		dst   *int
	}{
		{`SELECT count(*) FROM posts`, &st.PostCount},
		{`SELECT count(*) FROM profiles`, &st.ProfileCount},
		{`SELECT count(*) FROM chat_summaries`, &st.SummaryCount},
		{`SELECT count(*) FROM chat_messages`, &st.MessageCount},
	}
	for _, c := range counts {
		if err := s.conn.QueryRow(c.query).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("store: stats: %w", err)
		}
	}
	return st, nil
}

// hasIndex reports whether a named index exists. Databases migrated from
// older versions may briefly lack secondary indexes; read paths that depend
// on one fall back to a full scan when it is missing.
func (s *Store) hasIndex(name string) bool {
	var n int
	err := s.conn.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'index' AND name = ?`, name).Scan(&n)
	return err == nil && n > 0
}
