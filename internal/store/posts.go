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

const defaultPageSize = 50

// GetPosts returns up to limit posts ordered newest first, skipping offset
// records, plus a flag indicating more records exist beyond the page. The
// query walks the created_at index in reverse; it never sorts the full
// table.
func (s *Store) GetPosts(limit, offset int) ([]models.Post, bool, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.conn.Query(`
		SELECT id, author_id, author_name, author_avatar, content, tags,
		       created_at, updated_at, is_autonomous, views, likes, comment_count, comments
		FROM posts
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit+1, offset)
	if err != nil {
		return nil, false, fmt.Errorf("store: get posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, false, err
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("store: get posts: %w", err)
	}

	hasMore := len(posts) > limit
	if hasMore {
		posts = posts[:limit]
	}
	return posts, hasMore, nil
}

// SavePost upserts a post. A zero ID means the store assigns a new one; a
// non-zero ID is treated as update-or-create at that id. Missing optional
// fields are defaulted (empty tags, zeroed stats, empty comments, created_at
// now); updated_at is always stamped. Returns the effective id.
func (s *Store) SavePost(p *models.Post) (int64, error) {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Comments == nil {
		p.Comments = []models.Comment{}
	}
	tagsJSON, _ := json.Marshal(p.Tags)
	commentsJSON, _ := json.Marshal(p.Comments)

	if p.ID > 0 {
		_, err := s.conn.Exec(`
			INSERT INTO posts (id, author_id, author_name, author_avatar, content, tags,
			                   created_at, updated_at, is_autonomous, views, likes, comment_count, comments)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				author_id     = excluded.author_id,
				author_name   = excluded.author_name,
				author_avatar = excluded.author_avatar,
				content       = excluded.content,
				tags          = excluded.tags,
				created_at    = excluded.created_at,
				updated_at    = excluded.updated_at,
				is_autonomous = excluded.is_autonomous,
				views         = excluded.views,
				likes         = excluded.likes,
				comment_count = excluded.comment_count,
				comments      = excluded.comments
		`, p.ID, p.AuthorID, p.AuthorName, p.AuthorAvatar, p.Content, string(tagsJSON),
			p.CreatedAt, p.UpdatedAt, p.IsAutonomous, p.Stats.Views, p.Stats.Likes,
			p.Stats.Comments, string(commentsJSON))
		if err != nil {
			return 0, fmt.Errorf("store: save post %d: %w: %w", p.ID, apperr.ErrWriteFailed, err)
		}
		return p.ID, nil
	}

	res, err := s.conn.Exec(`
		INSERT INTO posts (author_id, author_name, author_avatar, content, tags,
		                   created_at, updated_at, is_autonomous, views, likes, comment_count, comments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.AuthorID, p.AuthorName, p.AuthorAvatar, p.Content, string(tagsJSON),
		p.CreatedAt, p.UpdatedAt, p.IsAutonomous, p.Stats.Views, p.Stats.Likes,
		p.Stats.Comments, string(commentsJSON))
	if err != nil {
		return 0, fmt.Errorf("store: save post: %w: %w", apperr.ErrWriteFailed, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: save post: %w: %w", apperr.ErrWriteFailed, err)
	}
	p.ID = id
	return id, nil
}

// GetPost returns a single post by id, or apperr.ErrNotFound.
func (s *Store) GetPost(id int64) (*models.Post, error) {
	row := s.conn.QueryRow(`
		SELECT id, author_id, author_name, author_avatar, content, tags,
		       created_at, updated_at, is_autonomous, views, likes, comment_count, comments
		FROM posts WHERE id = ?
	`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return p, err
}

// AddComment appends a comment to the post and increments its comment
// counter inside a single transaction. Returns apperr.ErrNotFound without
// any partial write when the post does not exist.
func (s *Store) AddComment(postID int64, c models.Comment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: add comment: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var commentsJSON string
	err = tx.QueryRow(`SELECT comments FROM posts WHERE id = ?`, postID).Scan(&commentsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: add comment: read post %d: %w", postID, err)
	}

	var comments []models.Comment
	if err := json.Unmarshal([]byte(commentsJSON), &comments); err != nil {
		comments = nil
	}
	comments = append(comments, c)
	updated, _ := json.Marshal(comments)

	_, err = tx.Exec(`
		UPDATE posts
		SET comments = ?, comment_count = comment_count + 1, updated_at = ?
		WHERE id = ?
	`, string(updated), time.Now().UTC(), postID)
	if err != nil {
		return fmt.Errorf("store: add comment: update post %d: %w: %w", postID, apperr.ErrWriteFailed, err)
	}
	return tx.Commit()
}

// LikePost increments the post's like counter. The store does not dedupe:
// the profile ledger is what prevents a persona from liking the same post
// twice, so a direct call that bypasses the scheduler will double-count.
// The kind parameter is carried for parity with the host interface and is
// not persisted.
func (s *Store) LikePost(postID int64, authorID, kind string) error {
	return s.bumpCounter(postID, "likes")
}

// MarkViewed increments the post's view counter. Like LikePost this is not
// deduplicated; repeated marks by the same persona over-count views, which
// is an accepted approximation.
func (s *Store) MarkViewed(postID int64, authorID string) error {
	return s.bumpCounter(postID, "views")
}

func (s *Store) bumpCounter(postID int64, column string) error {
	// column is one of the fixed counter names, never caller input.
	res, err := s.conn.Exec(
		fmt.Sprintf(`UPDATE posts SET %s = %s + 1, updated_at = ? WHERE id = ?`, column, column),
		time.Now().UTC(), postID)
	if err != nil {
		return fmt.Errorf("store: bump %s on post %d: %w: %w", column, postID, apperr.ErrWriteFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: bump %s on post %d: %w", column, postID, err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// CountPostsSince returns how many posts were created at or after t.
func (s *Store) CountPostsSince(t time.Time) (int, error) {
	var n int
	err := s.conn.QueryRow(`SELECT count(*) FROM posts WHERE created_at >= ?`, t.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count posts: %w", err)
	}
	return n, nil
}

// scanner abstracts sql.Row and sql.Rows for scanPost.
type scanner interface {
	Scan(dest ...any) error
}

func scanPost(sc scanner) (*models.Post, error) {
	var p models.Post
	var tagsJSON, commentsJSON string
	err := sc.Scan(&p.ID, &p.AuthorID, &p.AuthorName, &p.AuthorAvatar, &p.Content,
		&tagsJSON, &p.CreatedAt, &p.UpdatedAt, &p.IsAutonomous,
		&p.Stats.Views, &p.Stats.Likes, &p.Stats.Comments, &commentsJSON)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &p.Tags); err != nil || p.Tags == nil {
		p.Tags = []string{}
	}
	if err := json.Unmarshal([]byte(commentsJSON), &p.Comments); err != nil || p.Comments == nil {
		p.Comments = []models.Comment{}
	}
	return &p, nil
}
