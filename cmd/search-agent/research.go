package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikeboe/search-agent/pkg/research"
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Run deep research and write the report",
	RunE:  runResearch,
}

func init() {
	researchCmd.Flags().StringP("query", "q", "", "the research question (prompted for when omitted)")
	researchCmd.Flags().IntP("max-iterations", "n", 0, "maximum number of search iterations (default from config)")
	researchCmd.Flags().StringP("output", "o", ".", "directory for the report and sources files")
	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	maxIterations, _ := cmd.Flags().GetInt("max-iterations")
	outDir, _ := cmd.Flags().GetString("output")

	if !cmd.Flags().Changed("query") {
		// Interactive Mode
		var err error
		query, err = promptQuery(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
	}
	if strings.TrimSpace(query) == "" {
		return research.ErrEmptyQuery
	}

	a, _, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("Starting research", "query", query, "max_iterations", maxIterations)
	res, err := a.Service.Research(cmd.Context(), query, maxIterations)
	if err != nil {
		return err
	}

	reportPath, sourcesPath, err := writeOutputs(outDir, res, time.Now())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.FinalReport)
	fmt.Fprintf(out, "\nIterations: %d | Tokens: %d | Cost: $%.4f\n", res.Iterations, res.TotalTokens, res.TotalCost)
	fmt.Fprintf(out, "Report saved to %s\nSources saved to %s\n", reportPath, sourcesPath)
	return nil
}

func promptQuery(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter research query: ")
	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read query: %w", err)
	}
	return strings.TrimSpace(input), nil
}

// writeOutputs stores the report as report_<unix>.md and the search history
// as sources.json in dir.
func writeOutputs(dir string, res *research.Result, now time.Time) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create output dir: %w", err)
	}

	reportPath := filepath.Join(dir, fmt.Sprintf("report_%d.md", now.Unix()))
	if err := os.WriteFile(reportPath, []byte(res.FinalReport), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write report: %w", err)
	}

	sources := []research.SearchResult{}
	if res.ResearchContext != nil {
		sources = res.ResearchContext.SearchHistory
	}
	data, err := json.MarshalIndent(sources, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal sources: %w", err)
	}
	sourcesPath := filepath.Join(dir, "sources.json")
	if err := os.WriteFile(sourcesPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write sources: %w", err)
	}
	return reportPath, sourcesPath, nil
}
