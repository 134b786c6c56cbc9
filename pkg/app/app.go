// Package app wires configuration into a ready research service. It is shared
// by the HTTP server and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/mikeboe/search-agent/pkg/clients"
	"github.com/mikeboe/search-agent/pkg/config"
	"github.com/mikeboe/search-agent/pkg/database"
	"github.com/mikeboe/search-agent/pkg/quick"
	"github.com/mikeboe/search-agent/pkg/research"
	"github.com/mikeboe/search-agent/pkg/research/tools"
	"github.com/mikeboe/search-agent/pkg/server"
)

type App struct {
	Service *server.Service
	// DB is nil when no DATABASE_URL is configured.
	DB *database.PostgresDB
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// NewSearcher returns the configured search backend wrapped with page
// fetching.
func NewSearcher(cfg *config.Config, logger *slog.Logger) (*tools.WebSearch, error) {
	client := &http.Client{Timeout: cfg.HTTPTimeout}

	var backend tools.Searcher
	switch cfg.SearchProvider {
	case "arxiv":
		backend = tools.NewArxiv(client)
	case "brave":
		if cfg.BraveApiKey == "" {
			return nil, fmt.Errorf("BRAVE_API_KEY is required for the brave search provider")
		}
		brave := tools.NewBrave(cfg.BraveApiKey, client)
		if cfg.SearchRateLimit > 0 {
			brave.Limiter = rate.NewLimiter(rate.Limit(cfg.SearchRateLimit), 1)
		}
		backend = brave
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.SearchProvider)
	}

	var ocr *tools.MistralOCR
	if cfg.MistralApiKey != "" {
		ocr = tools.NewMistralOCR(cfg.MistralApiKey, client)
	}
	return tools.NewWebSearch(backend, tools.NewPageFetcher(client, ocr), logger), nil
}

// New builds the models, search tools and the optional run store.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	search, err := NewSearcher(cfg, logger)
	if err != nil {
		return nil, err
	}

	llm, err := clients.GoogleAI(ctx, cfg.GoogleApiKey, clients.ModelType(cfg.ReasoningModel))
	if err != nil {
		return nil, err
	}
	agentModel, err := clients.Gemini(ctx, cfg.GoogleApiKey, clients.ModelType(cfg.FastModel))
	if err != nil {
		return nil, err
	}

	pricing := research.Pricing{InputPerMTok: cfg.InputPricePerMTok, OutputPerMTok: cfg.OutputPricePerMTok}
	opts := research.Options{
		DefaultMaxIterations: cfg.MaxIterations,
		MaxPlansPerIteration: cfg.MaxPlansPerIteration,
		MinFindings:          cfg.MinFindings,
		MinIterations:        cfg.MinIterations,
		NumResults:           cfg.NumResults,
	}

	toolset := quick.NewWebToolset(search, search.Fetcher, logger)
	toolset.NumResults = cfg.NumResults
	agent := quick.New(agentModel, toolset, pricing, logger)

	a := &App{}
	var store server.RunStore
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.InitSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		a.DB = db
		store = db
	} else {
		logger.Info("DATABASE_URL not set, run history disabled")
	}

	svc := server.NewService(server.EngineRunner(llm, search, pricing, opts), server.AgentRunner(agent), store, logger)
	svc.DefaultMaxIterations = cfg.MaxIterations
	svc.QuickMaxIterations = cfg.QuickMaxIterations
	a.Service = svc
	return a, nil
}
