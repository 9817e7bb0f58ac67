package models

import "time"

// DefaultPostingFrequency is used when a persona card does not specify one.
const DefaultPostingFrequency = 0.5

// Profile is the per-persona interaction ledger. The three post-id sets grow
// monotonically; they are the mechanism that guarantees at most one like or
// comment per (persona, post) pair.
type Profile struct {
	CharacterID      string    `json:"character_id"`
	PostingFrequency float64   `json:"posting_frequency"`
	LastPostAt       time.Time `json:"last_post_at"`
	ViewedPosts      []int64   `json:"viewed_posts"`
	LikedPosts       []int64   `json:"liked_posts"`
	CommentedPosts   []int64   `json:"commented_posts"`
}

// NewProfile returns a fresh profile with the default posting frequency.
func NewProfile(characterID string) *Profile {
	return &Profile{
		CharacterID:      characterID,
		PostingFrequency: DefaultPostingFrequency,
	}
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// HasLiked reports whether the persona already liked the post.
func (p *Profile) HasLiked(postID int64) bool { return contains(p.LikedPosts, postID) }

// HasCommented reports whether the persona already commented on the post.
func (p *Profile) HasCommented(postID int64) bool { return contains(p.CommentedPosts, postID) }

// HasViewed reports whether the persona already viewed the post.
func (p *Profile) HasViewed(postID int64) bool { return contains(p.ViewedPosts, postID) }

// MarkLiked records a like in the ledger. Entries are never removed.
func (p *Profile) MarkLiked(postID int64) {
	if !p.HasLiked(postID) {
		p.LikedPosts = append(p.LikedPosts, postID)
	}
}

// MarkCommented records a comment in the ledger.
func (p *Profile) MarkCommented(postID int64) {
	if !p.HasCommented(postID) {
		p.CommentedPosts = append(p.CommentedPosts, postID)
	}
}

// MarkViewed records a view in the ledger.
func (p *Profile) MarkViewed(postID int64) {
	if !p.HasViewed(postID) {
		p.ViewedPosts = append(p.ViewedPosts, postID)
	}
}
