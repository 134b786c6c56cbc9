package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

const sourceExcerptChars = 500

// Synthesizer turns the accumulated context into the final report.
type Synthesizer interface {
	Synthesize(ctx context.Context, rc *ResearchContext) (string, Usage, error)
}

// LLMSynthesizer writes the report with a single model call.
type LLMSynthesizer struct {
	LLM     llms.Model
	Pricing Pricing
	Logger  *slog.Logger
}

func NewLLMSynthesizer(llm llms.Model, pricing Pricing, logger *slog.Logger) *LLMSynthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMSynthesizer{LLM: llm, Pricing: pricing, Logger: logger}
}

func (s *LLMSynthesizer) Synthesize(ctx context.Context, rc *ResearchContext) (string, Usage, error) {
	s.logger().Info("Compiling final report", "sources", len(rc.SearchHistory), "findings", len(rc.KeyFindings))

	// The whole history goes into the prompt; long sessions can exceed the
	// model's input window.
	prompt := fmt.Sprintf(synthesizerPrompt,
		rc.Query,
		rc.SearchIterations,
		joinOr(rc.KeyFindings, noFindingsPlaceholder),
		renderSources(rc.SearchHistory),
	)

	resp, err := s.LLM.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	})
	if err != nil {
		return "", Usage{}, &SynthesisError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, &SynthesisError{Err: fmt.Errorf("llm returned no choices")}
	}

	report := resp.Choices[0].Content
	s.logger().Info("Final report generated", "length", len(report))
	return report, usageFromChoice(resp.Choices[0], s.Pricing), nil
}

func (s *LLMSynthesizer) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func renderSources(history []SearchResult) string {
	if len(history) == 0 {
		return "No sources were retrieved."
	}
	var b strings.Builder
	for _, r := range history {
		fmt.Fprintf(&b, "[%s] Source: %s (%s)\n%s...\n\n", r.SearchIntent, r.Title, r.URL, truncateRunes(r.Content, sourceExcerptChars))
	}
	return b.String()
}
