package models

// Persona is an AI identity capable of autonomous posting and interaction.
// Cards are loaded from the roster directory; Avatar is the bare file name
// of the persona's avatar image.
type Persona struct {
	ID               string  `json:"id" yaml:"id"`
	Name             string  `json:"name" yaml:"name"`
	Description      string  `json:"description" yaml:"description"`
	Personality      string  `json:"personality" yaml:"personality"`
	Avatar           string  `json:"avatar,omitempty" yaml:"avatar"`
	PostingFrequency float64 `json:"posting_frequency,omitempty" yaml:"posting_frequency"`
}
