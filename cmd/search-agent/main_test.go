package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/search-agent/pkg/research"
)

func TestWriteOutputs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	rc := research.NewResearchContext("q")
	rc.AddResults(research.NewSearchResult("A", "https://a.example", "alpha", research.IntentDeepDive))
	res := &research.Result{FinalReport: "# Report", ResearchContext: rc}

	reportPath, sourcesPath, err := writeOutputs(dir, res, time.Unix(1700000000, 0))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report_1700000000.md"), reportPath)

	report, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Equal(t, "# Report", string(report))

	data, err := os.ReadFile(sourcesPath)
	require.NoError(t, err)
	var sources []research.SearchResult
	require.NoError(t, json.Unmarshal(data, &sources))
	require.Len(t, sources, 1)
	assert.Equal(t, "https://a.example", sources[0].URL)
}

func TestWriteOutputsWithoutContext(t *testing.T) {
	dir := t.TempDir()
	_, sourcesPath, err := writeOutputs(dir, &research.Result{FinalReport: "r"}, time.Now())
	require.NoError(t, err)
	data, err := os.ReadFile(sourcesPath)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestPromptQuery(t *testing.T) {
	var out bytes.Buffer
	q, err := promptQuery(strings.NewReader("  fusion timelines \n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "fusion timelines", q)
	assert.Equal(t, "Enter research query: ", out.String())

	q, err = promptQuery(strings.NewReader("no newline"), &out)
	require.NoError(t, err)
	assert.Equal(t, "no newline", q)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "search-agent dev\n", out.String())
}

func TestResearchRejectsEmptyQueryFlag(t *testing.T) {
	rootCmd.SetArgs([]string{"research", "--query", "  "})
	err := rootCmd.Execute()
	assert.ErrorIs(t, err, research.ErrEmptyQuery)
}
