// Package models defines the domain types for Circle.
package models

import "time"

// PostStats holds the per-post interaction counters. The store increments
// them unconditionally; logical at-most-once semantics live in Profile.
type PostStats struct {
	Views    int `json:"views"`
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
}

// Comment is owned exclusively by its parent post. Comments are appended,
// never edited or removed.
type Comment struct {
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Post is a single feed entry. AuthorAvatar is an opaque file reference;
// it is resolved to a displayable URL only at render time, never stored
// resolved.
type Post struct {
	ID           int64     `json:"id"`
	AuthorID     string    `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	AuthorAvatar string    `json:"author_avatar,omitempty"`
	Content      string    `json:"content"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	IsAutonomous bool      `json:"is_autonomous"`
	Stats        PostStats `json:"stats"`
	Comments     []Comment `json:"comments"`
}
