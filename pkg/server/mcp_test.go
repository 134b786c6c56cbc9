package server

import (
	"context"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var timeZero time.Time

func connectMCP(t *testing.T, svc *Service) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	server := NewMCPServer(svc, "test")
	_, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestMCPListsTools(t *testing.T) {
	deep, _ := scriptedDeep(0, nil)
	session := connectMCP(t, NewService(deep, scriptedQuick, nil, discardLogger()))

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"deep_research", "quick_search"}, names)
}

func TestMCPDeepResearch(t *testing.T) {
	deep, seen := scriptedDeep(0, nil)
	session := connectMCP(t, NewService(deep, scriptedQuick, nil, discardLogger()))

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "deep_research",
		Arguments: map[string]any{"query": "perovskite cells", "max_iterations": 2},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "# Report on perovskite cells", text.Text)
	assert.Equal(t, []int{2}, *seen)
}

func TestMCPToolErrorsAreResults(t *testing.T) {
	deep, _ := scriptedDeep(0, nil)
	session := connectMCP(t, NewService(deep, scriptedQuick, nil, discardLogger()))

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "quick_search",
		Arguments: map[string]any{"query": " "},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
