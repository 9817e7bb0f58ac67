package models

import "time"

// Message roles in the raw chat log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatSummary is the latest first-person paraphrase of a persona's recent
// conversation. It is overwritten wholesale on each summarization; no
// history is retained.
type ChatSummary struct {
	CharacterName string    `json:"character_name"`
	Summary       string    `json:"summary"`
	MessageCount  int       `json:"message_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RawMessage is one entry in the append-only chat log. Timestamp is used
// only for cursor positioning: entries persisted in one batch share a base
// and get base+index, so insertion order is recoverable by sorting on it
// even when the source messages carry no reliable per-message clock.
type RawMessage struct {
	ID            int64  `json:"id"`
	CharacterName string `json:"character_name"`
	Role          string `json:"role"`
	Content       string `json:"content"`
	Timestamp     int64  `json:"timestamp"`
}

// Turn is a single conversation turn as exposed by the host chat
// application's transcript interface.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	IsUser  bool   `json:"is_user"`
}

// Role maps the turn onto a chat-log role.
func (t Turn) Role() string {
	if t.IsUser {
		return RoleUser
	}
	return RoleAssistant
}
