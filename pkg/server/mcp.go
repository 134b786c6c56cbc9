package server

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mikeboe/search-agent/pkg/quick"
	"github.com/mikeboe/search-agent/pkg/research"
)

const mcpServerName = "search-agent-mcp"

type ResearchToolArgs struct {
	Query         string `json:"query" jsonschema:"the research question"`
	MaxIterations int    `json:"max_iterations,omitempty" jsonschema:"maximum number of search iterations"`
}

// NewMCPServer exposes deep_research and quick_search as MCP tools.
func NewMCPServer(svc *Service, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: mcpServerName, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "deep_research",
		Description: "Runs iterative web research on a question and returns a structured markdown report with sources.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ResearchToolArgs) (*mcp.CallToolResult, *research.Result, error) {
		res, err := svc.Research(ctx, args.Query, args.MaxIterations)
		if err != nil {
			return nil, nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: res.FinalReport}},
		}, res, nil
	})

	if svc.Quick != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "quick_search",
			Description: "Answers a question with a single tool-using agent that searches the web and reads pages.",
		}, func(ctx context.Context, req *mcp.CallToolRequest, args ResearchToolArgs) (*mcp.CallToolResult, *quick.Result, error) {
			res, err := svc.QuickSearch(ctx, args.Query, args.MaxIterations)
			if err != nil {
				return nil, nil, err
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: res.FinalResponse}},
			}, res, nil
		})
	}

	return server
}

// NewMCPHandler serves server over streamable HTTP.
func NewMCPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}
