package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms/googleai"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

// ModelType names a Gemini model.
type ModelType string

const (
	// DefaultModel is used when no model is configured.
	DefaultModel ModelType = "gemini-2.0-flash"
	ProModel     ModelType = "gemini-2.5-pro"
)

var errMissingKey = errors.New("GOOGLE_API_KEY is not set")

// GoogleAI returns a langchaingo client for the planner, executor and
// synthesizer.
func GoogleAI(ctx context.Context, apiKey string, m ModelType) (*googleai.GoogleAI, error) {
	if apiKey == "" {
		return nil, errMissingKey
	}
	if m == "" {
		m = DefaultModel
	}

	// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models
	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(string(m)))
	if err != nil {
		return nil, fmt.Errorf("failed to create google ai client: %w", err)
	}
	return llm, nil
}

// Gemini returns an ADK model for the quick agent.
func Gemini(ctx context.Context, apiKey string, m ModelType) (model.LLM, error) {
	if apiKey == "" {
		return nil, errMissingKey
	}
	if m == "" {
		m = DefaultModel
	}

	llm, err := gemini.NewModel(ctx, string(m), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}
	return llm, nil
}
