// Package llm abstracts text generation behind a small interface so the
// pipeline can be tested with a fake and run against Gemini in production.
package llm

import "context"

// Generator produces free-form text from a prompt. Implementations must be
// safe for concurrent use; maxTokens <= 0 means provider default.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}
