package research

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/search-agent/pkg/research/tools"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLLM replays scripted responses in order; the last one repeats.
type fakeLLM struct {
	mu        sync.Mutex
	responses []*llms.ContentResponse
	errs      []error
	calls     [][]llms.MessageContent
	options   []llms.CallOptions
}

func (f *fakeLLM) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := len(f.calls)
	f.calls = append(f.calls, msgs)
	var o llms.CallOptions
	for _, opt := range options {
		opt(&o)
	}
	f.options = append(f.options, o)

	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if len(f.responses) == 0 {
		return nil, errors.New("fake llm: no responses scripted")
	}
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func textResponse(content string, inTokens, outTokens int32) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content: content,
		GenerationInfo: map[string]any{
			"input_tokens":  inTokens,
			"output_tokens": outTokens,
		},
	}}}
}

func toolCallResponse(arguments string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			ID:   "call-1",
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      webSearchToolName,
				Arguments: arguments,
			},
		}},
		GenerationInfo: map[string]any{
			"input_tokens":  int32(100),
			"output_tokens": int32(10),
		},
	}}}
}

// fakeSearcher returns docs or err and records the queries it saw.
type fakeSearcher struct {
	docs    []tools.Document
	err     error
	queries []string
	counts  []int
}

func (f *fakeSearcher) SearchAndContents(_ context.Context, query string, numResults int) ([]tools.Document, error) {
	f.queries = append(f.queries, query)
	f.counts = append(f.counts, numResults)
	if f.err != nil {
		return nil, f.err
	}
	docs := f.docs
	if len(docs) > numResults {
		docs = docs[:numResults]
	}
	return docs, nil
}

type plannerFunc func(ctx context.Context, rc *ResearchContext) ([]SearchPlan, error)

func (f plannerFunc) Plan(ctx context.Context, rc *ResearchContext) ([]SearchPlan, error) {
	return f(ctx, rc)
}

type executorFunc func(ctx context.Context, plan SearchPlan, rc *ResearchContext) (*Analysis, error)

func (f executorFunc) Execute(ctx context.Context, plan SearchPlan, rc *ResearchContext) (*Analysis, error) {
	return f(ctx, plan, rc)
}

// countingSynthesizer records how often it ran and on what context.
type countingSynthesizer struct {
	calls  int
	seen   ResearchContext
	report string
	err    error
}

func (s *countingSynthesizer) Synthesize(_ context.Context, rc *ResearchContext) (string, Usage, error) {
	s.calls++
	s.seen = rc.Snapshot()
	if s.err != nil {
		return "", Usage{}, s.err
	}
	report := s.report
	if report == "" {
		report = "# Report\n\nNo conclusive findings."
	}
	return report, Usage{InputTokens: 10, OutputTokens: 5, Cost: 0.001}, nil
}
