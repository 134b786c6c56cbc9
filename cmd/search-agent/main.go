// Package main is the entry point for the search-agent CLI.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/search-agent/pkg/app"
	"github.com/mikeboe/search-agent/pkg/config"
)

// version is set at build time via ldflags.
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "search-agent",
	Short: "A terminal-based deep research agent",
	Long: `search-agent researches a question by iterating through a
plan, search and analyze loop, then writes a markdown report with sources.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./search-agent.yaml or ~/.config/search-agent/search-agent.yaml)")
}

// newApp loads configuration and builds the service for a subcommand.
func newApp(ctx context.Context) (*app.App, *config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}

func main() {
	// Setup structured logging
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	// It's okay if .env doesn't exist, as long as env vars are set
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
