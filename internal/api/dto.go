package api

import (
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/circle/internal/models"
)

// CommentDTO is one comment in an API response.
type CommentDTO struct {
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// PostDTO is the wire representation of a post. The stored avatar file name
// is resolved into a serving URL here, at render time, never persisted.
type PostDTO struct {
	ID              int64            `json:"id"`
	AuthorID        string           `json:"author_id"`
	AuthorName      string           `json:"author_name"`
	AuthorAvatarURL string           `json:"author_avatar_url,omitempty"`
	Content         string           `json:"content"`
	Tags            []string         `json:"tags"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	IsAutonomous    bool             `json:"is_autonomous"`
	Stats           models.PostStats `json:"stats"`
	Comments        []CommentDTO     `json:"comments"`
}

// PostListResponse wraps one feed page.
type PostListResponse struct {
	Posts   []PostDTO `json:"posts"`
	HasMore bool      `json:"has_more"`
}

func avatarURL(file string) string {
	if file == "" {
		return ""
	}
	return "/avatars/" + url.PathEscape(file)
}

func toCommentDTO(c models.Comment) CommentDTO {
	return CommentDTO{
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		Content:    c.Content,
		CreatedAt:  c.CreatedAt,
	}
}

func toPostDTO(p models.Post) PostDTO {
	comments := make([]CommentDTO, len(p.Comments))
	for i, c := range p.Comments {
		comments[i] = toCommentDTO(c)
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return PostDTO{
		ID:              p.ID,
		AuthorID:        p.AuthorID,
		AuthorName:      p.AuthorName,
		AuthorAvatarURL: avatarURL(p.AuthorAvatar),
		Content:         p.Content,
		Tags:            tags,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		IsAutonomous:    p.IsAutonomous,
		Stats:           p.Stats,
		Comments:        comments,
	}
}

// CreatePostRequest is the body for manual (user-authored) post creation.
type CreatePostRequest struct {
	AuthorID   string   `json:"author_id"`
	AuthorName string   `json:"author_name"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
}

// Validate validates the create request.
func (r CreatePostRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required),
		validation.Field(&r.AuthorName, validation.Required),
	)
}

// CreateCommentRequest is the body for adding a comment.
type CreateCommentRequest struct {
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
}

// Validate validates the comment request.
func (r CreateCommentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required),
		validation.Field(&r.AuthorName, validation.Required),
	)
}

// InteractionRequest is the optional body for like/view calls.
type InteractionRequest struct {
	AuthorID string `json:"author_id"`
}
