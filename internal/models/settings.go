package models

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Settings is the process-wide runtime configuration record. A single
// current instance is loaded at startup and replaced wholesale on save.
// It lives in a flat key-value layer, not in the versioned store.
type Settings struct {
	Enabled                    bool `json:"enabled"`
	AutoPostIntervalMinutes    int  `json:"auto_post_interval_minutes"`
	AutoPostProbabilityPercent int  `json:"auto_post_probability_percent"`
	MaxPostsPerDay             int  `json:"max_posts_per_day"`
	EnableCharacterComments    bool `json:"enable_character_comments"`
	DebugMode                  bool `json:"debug_mode"`
}

// DefaultSettings returns the defaults used when no settings record exists.
func DefaultSettings() Settings {
	return Settings{
		Enabled:                    true,
		AutoPostIntervalMinutes:    5,
		AutoPostProbabilityPercent: 30,
		MaxPostsPerDay:             0, // unlimited
		EnableCharacterComments:    true,
		DebugMode:                  false,
	}
}

// Validate validates the settings record.
func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.AutoPostIntervalMinutes, validation.Required, validation.Min(1)),
		validation.Field(&s.AutoPostProbabilityPercent, validation.Min(0), validation.Max(100)),
		validation.Field(&s.MaxPostsPerDay, validation.Min(0)),
	)
}
