package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikeboe/search-agent/pkg/research"
)

var quickCmd = &cobra.Command{
	Use:   "quick [question]",
	Short: "Answer a question with the single-agent web searcher",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return research.ErrEmptyQuery
		}
		maxIterations, _ := cmd.Flags().GetInt("max-iterations")

		a, _, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Service.QuickSearch(cmd.Context(), question, maxIterations)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, res.FinalResponse)
		fmt.Fprintf(out, "\nTurns: %d | Tokens: %d | Cost: $%.4f | Completed: %t\n", res.Iterations, res.TotalTokens, res.TotalCost, res.Completed)
		return nil
	},
}

func init() {
	quickCmd.Flags().IntP("max-iterations", "n", 0, "maximum number of model turns (default from config)")
	rootCmd.AddCommand(quickCmd)
}
