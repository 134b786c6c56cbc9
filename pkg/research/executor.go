package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/search-agent/pkg/research/tools"
)

const webSearchToolName = "web_search"

// Executor runs one planned search and folds its results into the context.
type Executor interface {
	Execute(ctx context.Context, plan SearchPlan, rc *ResearchContext) (*Analysis, error)
}

// ContentSearcher is the search-and-contents capability behind the
// web_search tool.
type ContentSearcher interface {
	SearchAndContents(ctx context.Context, query string, numResults int) ([]tools.Document, error)
}

// LLMExecutor lets the model decide whether and how to call web_search,
// then asks it to analyze what came back.
type LLMExecutor struct {
	LLM        llms.Model
	Search     ContentSearcher
	Extractor  FindingExtractor
	Pricing    Pricing
	NumResults int
	Logger     *slog.Logger
}

func NewLLMExecutor(llm llms.Model, search ContentSearcher, pricing Pricing, logger *slog.Logger) *LLMExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExecutor{
		LLM:        llm,
		Search:     search,
		Extractor:  KeywordExtractor{},
		Pricing:    pricing,
		NumResults: tools.DefaultNumResults,
		Logger:     logger,
	}
}

var webSearchTool = llms.Tool{
	Type: "function",
	Function: &llms.FunctionDefinition{
		Name:        webSearchToolName,
		Description: "Searches the web and returns the content of the top results.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query to run.",
				},
				"num_results": map[string]any{
					"type":        "integer",
					"description": "How many results to return (default 10).",
				},
			},
			"required": []string{"query"},
		},
	},
}

type webSearchArgs struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results"`
}

// Execute runs plan through the model with the web_search tool and records
// the retrieved documents and findings in rc.
func (e *LLMExecutor) Execute(ctx context.Context, plan SearchPlan, rc *ResearchContext) (*Analysis, error) {
	e.logger().Info("Executing search plan", "intent", plan.Intent, "query", plan.Query)

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, fmt.Sprintf(executorSystemPrompt, currentDate())),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(executorInput,
			rc.Query, plan.Intent, plan.Query, plan.Reasoning, rc.SearchIterations,
			joinOr(rc.KeyFindings, noFindingsPlaceholder))),
	}

	resp, err := e.LLM.GenerateContent(ctx, messages, llms.WithTools([]llms.Tool{webSearchTool}))
	if err != nil {
		return nil, &SearchError{Query: plan.Query, Err: fmt.Errorf("llm generation failed: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return nil, &SearchError{Query: plan.Query, Err: fmt.Errorf("llm returned no choices")}
	}

	choice := resp.Choices[0]
	analysis := &Analysis{Text: choice.Content, Usage: usageFromChoice(choice, e.Pricing)}

	if len(choice.ToolCalls) > 0 {
		aiMsg := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		toolMsg := llms.MessageContent{Role: llms.ChatMessageTypeTool}

		for _, call := range choice.ToolCalls {
			if call.FunctionCall == nil {
				continue
			}
			aiMsg.Parts = append(aiMsg.Parts, call)
			output := e.runToolCall(ctx, call, plan, rc, analysis)
			toolMsg.Parts = append(toolMsg.Parts, llms.ToolCallResponse{
				ToolCallID: call.ID,
				Name:       call.FunctionCall.Name,
				Content:    output,
			})
		}

		if len(toolMsg.Parts) > 0 {
			messages = append(messages, aiMsg, toolMsg)
			final, err := e.LLM.GenerateContent(ctx, messages)
			if err != nil {
				return nil, &SearchError{Query: plan.Query, Err: fmt.Errorf("analysis generation failed: %w", err)}
			}
			if len(final.Choices) > 0 {
				analysis.Text = final.Choices[0].Content
				analysis.Usage = analysis.Usage.Add(usageFromChoice(final.Choices[0], e.Pricing))
			}
		}
	}

	// Only analyses backed by retrieved documents contribute findings.
	if analysis.Results > 0 && e.Extractor != nil {
		findings := e.Extractor.Extract(analysis.Text)
		rc.AddFindings(findings...)
		e.logger().Info("Extracted findings", "count", len(findings), "total", len(rc.KeyFindings))
	}

	return analysis, nil
}

// runToolCall executes one tool call and returns the text handed back to the
// model. Search failures are logged and yield zero results.
func (e *LLMExecutor) runToolCall(ctx context.Context, call llms.ToolCall, plan SearchPlan, rc *ResearchContext, analysis *Analysis) string {
	if call.FunctionCall.Name != webSearchToolName {
		e.logger().Warn("Model called unknown tool", "tool", call.FunctionCall.Name)
		return fmt.Sprintf("Error: unknown tool %q", call.FunctionCall.Name)
	}

	args := webSearchArgs{Query: plan.Query}
	if call.FunctionCall.Arguments != "" {
		if err := json.Unmarshal([]byte(call.FunctionCall.Arguments), &args); err != nil {
			e.logger().Warn("Invalid web_search arguments, using planned query", "arguments", call.FunctionCall.Arguments, "error", err)
		}
	}
	if strings.TrimSpace(args.Query) == "" {
		args.Query = plan.Query
	}
	if limit := e.numResults(); args.NumResults <= 0 || args.NumResults > limit {
		args.NumResults = limit
	}

	docs, err := e.Search.SearchAndContents(ctx, args.Query, args.NumResults)
	if err != nil {
		serr := &SearchError{Query: args.Query, Err: err}
		e.logger().Error("Search tool failed", "error", serr)
		return "Error: " + err.Error()
	}
	if len(docs) > args.NumResults {
		docs = docs[:args.NumResults]
	}

	results := make([]SearchResult, 0, len(docs))
	for i, d := range docs {
		r := NewSearchResult(d.Title, d.URL, d.Content, plan.Intent)
		r.RelevanceScore = RelevanceForRank(i)
		results = append(results, r)
	}
	rc.AddResults(results...)
	analysis.Results += len(results)
	e.logger().Info("Search results added", "query", args.Query, "count", len(results), "history", len(rc.SearchHistory))

	return formatToolOutput(results)
}

func (e *LLMExecutor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *LLMExecutor) numResults() int {
	if e.NumResults <= 0 {
		return tools.DefaultNumResults
	}
	return e.NumResults
}

func formatToolOutput(results []SearchResult) string {
	if len(results) == 0 {
		return "No results found."
	}
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "Result %d\nTitle: %s\nURL: %s\nContent: %s\n\n", i+1, r.Title, r.URL, r.Content)
	}
	return b.String()
}
