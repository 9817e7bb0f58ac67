package llm

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// Gemini implements Generator using Google GenAI.
type Gemini struct {
	client *genai.Client
	model  string
}

// GeminiConfig holds configuration for the Gemini generator.
type GeminiConfig struct {
	APIKey string // if empty, uses GOOGLE_API_KEY env var
	Model  string // e.g. "gemini-2.5-flash"
}

// NewGemini creates a new Gemini generator.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("llm: GOOGLE_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = os.Getenv("GOOGLE_MODEL")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &Gemini{client: client, model: model}, nil
}

// Generate produces a response from Gemini.
func (g *Gemini) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var cfg *genai.GenerateContentConfig
	if maxTokens > 0 {
		cfg = &genai.GenerateContentConfig{MaxOutputTokens: int32(maxTokens)}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("llm: gemini generate: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("llm: no response from gemini")
	}

	var result string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			result += part.Text
		}
	}
	return result, nil
}

// Model returns the model name.
func (g *Gemini) Model() string {
	return g.model
}
