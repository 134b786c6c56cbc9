package quick

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"github.com/mikeboe/search-agent/pkg/research/tools"
)

// Searcher returns search hits without page content.
type Searcher interface {
	Search(ctx context.Context, query string, numResults int) ([]tools.Document, error)
}

// WebToolset exposes web_search and extract_content to the agent.
type WebToolset struct {
	Search     Searcher
	Fetcher    tools.Fetcher
	NumResults int
	Logger     *slog.Logger
}

func NewWebToolset(search Searcher, fetcher tools.Fetcher, logger *slog.Logger) *WebToolset {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebToolset{Search: search, Fetcher: fetcher, NumResults: tools.DefaultNumResults, Logger: logger}
}

func (t *WebToolset) Name() string {
	return "web_tools"
}

func (t *WebToolset) Tools(ctx agent.ReadonlyContext) ([]tool.Tool, error) {
	searchTool, err := functiontool.New[WebSearchArgs, WebSearchResp](
		functiontool.Config{
			Name:        "web_search",
			Description: "Searches the web and returns the summaries of top results.",
		},
		t.webSearchTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create web_search tool: %w", err)
	}

	extractTool, err := functiontool.New[ExtractContentArgs, ExtractContentResp](
		functiontool.Config{
			Name:        "extract_content",
			Description: "Fetches the content of a given URL and returns it as a markdown page.",
		},
		t.extractContentTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create extract_content tool: %w", err)
	}

	return []tool.Tool{searchTool, extractTool}, nil
}

type WebSearchArgs struct {
	Query string `json:"query" description:"The search query to be executed"`
}

type WebSearchResp struct {
	Results string `json:"results"`
}

func (t *WebToolset) webSearchTool(ctx tool.Context, args WebSearchArgs) (WebSearchResp, error) {
	return t.WebSearch(ctx, args)
}

// WebSearch never fails: errors are reported to the model as text.
func (t *WebToolset) WebSearch(ctx context.Context, args WebSearchArgs) (WebSearchResp, error) {
	t.Logger.Info("Tool call", "tool", "web_search", "query", args.Query)

	docs, err := t.Search.Search(ctx, args.Query, t.NumResults)
	if err != nil {
		t.Logger.Error("web_search failed", "query", args.Query, "error", err)
		return WebSearchResp{Results: fmt.Sprintf("Error searching the web: %v", err)}, nil
	}
	return WebSearchResp{Results: tools.FormatSummaries(docs)}, nil
}

type ExtractContentArgs struct {
	URL string `json:"url" description:"The URL to fetch the content from"`
}

type ExtractContentResp struct {
	Content string `json:"content"`
}

func (t *WebToolset) extractContentTool(ctx tool.Context, args ExtractContentArgs) (ExtractContentResp, error) {
	return t.ExtractContent(ctx, args)
}

func (t *WebToolset) ExtractContent(ctx context.Context, args ExtractContentArgs) (ExtractContentResp, error) {
	t.Logger.Info("Tool call", "tool", "extract_content", "url", args.URL)

	content, err := t.Fetcher.Fetch(ctx, args.URL)
	if err != nil {
		t.Logger.Error("extract_content failed", "url", args.URL, "error", err)
		return ExtractContentResp{Content: fmt.Sprintf("Error: %v", err)}, nil
	}
	return ExtractContentResp{Content: content}, nil
}
