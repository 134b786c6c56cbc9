// Package quick implements the single-model research variant: one agent with
// web_search and extract_content tools that loops until it stops calling
// tools or runs out of turns.
package quick

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"

	"github.com/mikeboe/search-agent/pkg/research"
)

const (
	appName   = "search-agent"
	agentName = "web_searcher"
	userID    = "user"

	// DefaultMaxIterations caps model turns when the caller passes zero.
	DefaultMaxIterations = 10
)

const instruction = `You are an expert web searcher. Your task is to answer the user's question using the provided tools.
Use the current date provided to search the web for the most up to date information.
The current date is %s.

You have access to the following tools:
- web_search(query): searches the web and returns summaries of top results.
- extract_content(url): parses the content of a webpage and returns it as markdown.

The web_search results only contain summaries. You MUST then call extract_content to read the pages
you consider relevant. You may call one tool per turn, for up to %d turns before giving your final answer.

In each turn give your thinking process. Once you have gathered all of the information you need, write
an answer that balances brevity and completeness for the user's question.`

// Result is what a quick run returns.
type Result struct {
	FinalResponse string  `json:"final_response"`
	Iterations    int     `json:"iterations"`
	TotalCost     float64 `json:"total_cost"`
	TotalTokens   int     `json:"total_tokens"`
	// Completed is false when the turn cap stopped the agent mid tool loop.
	Completed bool `json:"completed"`
}

type Agent struct {
	Model   model.LLM
	Toolset tool.Toolset
	Pricing research.Pricing
	Logger  *slog.Logger
}

func New(llm model.LLM, toolset tool.Toolset, pricing research.Pricing, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{Model: llm, Toolset: toolset, Pricing: pricing, Logger: logger}
}

// Run answers question with at most maxIterations model turns.
func (a *Agent) Run(ctx context.Context, question string, maxIterations int) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, research.ErrEmptyQuery
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	searchAgent, err := llmagent.New(llmagent.Config{
		Name:        agentName,
		Model:       a.Model,
		Description: "Answers questions by searching the web and reading pages.",
		Instruction: fmt.Sprintf(instruction, time.Now().Format("2006-01-02 15:04:05"), maxIterations),
		Toolsets:    []tool.Toolset{a.Toolset},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	sessionSvc := session.InMemoryService()
	sessionID := uuid.NewString()
	if _, err := sessionSvc.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          searchAgent,
		SessionService: sessionSvc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	a.Logger.Info("Starting agent", "question", question, "max_iterations", maxIterations)
	userContent := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: question}},
	}
	events := r.Run(ctx, userID, sessionID, userContent, agent.RunConfig{})

	res, err := collect(events, maxIterations, a.Pricing, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Logger.Info("Agent finished",
		"iterations", res.Iterations,
		"completed", res.Completed,
		"total_cost", res.TotalCost,
		"total_tokens", res.TotalTokens)
	return res, nil
}

// collect consumes runner events until the model answers without calling a
// tool or maxIterations model turns have been seen. Leaving the range loop
// stops the runner.
func collect(events iter.Seq2[*session.Event, error], maxIterations int, pricing research.Pricing, logger *slog.Logger) (*Result, error) {
	res := &Result{}
	var usage research.Usage

	for ev, err := range events {
		if err != nil {
			return nil, fmt.Errorf("agent run failed: %w", err)
		}
		if ev == nil || ev.LLMResponse.Partial {
			continue
		}
		content := ev.LLMResponse.Content
		if content == nil || content.Role != string(genai.RoleModel) {
			continue
		}

		res.Iterations++
		usage = usage.Add(usageFromMetadata(ev.LLMResponse.UsageMetadata, pricing))

		var text strings.Builder
		calledTool := false
		for _, part := range content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" && !part.Thought {
				text.WriteString(part.Text)
			}
			if part.FunctionCall != nil {
				calledTool = true
				logger.Info("Agent tool call", "iteration", res.Iterations, "tool", part.FunctionCall.Name)
			}
		}
		if text.Len() > 0 {
			res.FinalResponse = text.String()
		}

		if !calledTool {
			res.Completed = true
			break
		}
		if res.Iterations >= maxIterations {
			logger.Warn("Reached maximum iterations", "max", maxIterations)
			break
		}
	}

	res.TotalCost = usage.Cost
	res.TotalTokens = usage.Total()
	return res, nil
}

func usageFromMetadata(m *genai.GenerateContentResponseUsageMetadata, pricing research.Pricing) research.Usage {
	if m == nil {
		return research.Usage{}
	}
	in, out := int(m.PromptTokenCount), int(m.CandidatesTokenCount)
	return research.Usage{InputTokens: in, OutputTokens: out, Cost: pricing.Cost(in, out)}
}
