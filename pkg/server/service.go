package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/search-agent/pkg/database"
	"github.com/mikeboe/search-agent/pkg/quick"
	"github.com/mikeboe/search-agent/pkg/research"
)

// ErrStoreDisabled is returned by the run queries when no database is configured.
var ErrStoreDisabled = errors.New("run history is not enabled")

// RunStore is the optional audit log of runs.
type RunStore interface {
	LogSink
	CreateRun(ctx context.Context, query, mode string, maxIterations int) (*database.Run, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, p database.Progress) error
	CompleteRun(ctx context.Context, id uuid.UUID, report string, result json.RawMessage, p database.Progress) error
	FailRun(ctx context.Context, id uuid.UUID, reason string) error
	GetRun(ctx context.Context, id uuid.UUID) (*database.Run, error)
	ListRuns(ctx context.Context, limit int) ([]database.Run, error)
	GetLogs(ctx context.Context, runID uuid.UUID) ([]database.LogEntry, error)
}

// DeepRunner runs the multi-iteration engine with a per-run logger and
// progress hook.
type DeepRunner func(ctx context.Context, query string, maxIterations int, logger *slog.Logger, onUpdate func(research.ResearchContext)) (*research.Result, error)

// QuickRunner runs the single-agent variant.
type QuickRunner func(ctx context.Context, query string, maxIterations int, logger *slog.Logger) (*quick.Result, error)

// EngineRunner builds a fresh engine for every run.
func EngineRunner(llm llms.Model, search research.ContentSearcher, pricing research.Pricing, opts research.Options) DeepRunner {
	return func(ctx context.Context, query string, maxIterations int, logger *slog.Logger, onUpdate func(research.ResearchContext)) (*research.Result, error) {
		engine := research.NewEngine(llm, search, pricing, opts, logger)
		engine.OnStateUpdate = onUpdate
		return engine.Run(ctx, query, maxIterations)
	}
}

// AgentRunner adapts a quick.Agent, swapping in the per-run logger.
func AgentRunner(a *quick.Agent) QuickRunner {
	return func(ctx context.Context, query string, maxIterations int, logger *slog.Logger) (*quick.Result, error) {
		run := *a
		run.Logger = logger
		return run.Run(ctx, query, maxIterations)
	}
}

type Service struct {
	Deep  DeepRunner
	Quick QuickRunner
	// Store may be nil.
	Store  RunStore
	Logger *slog.Logger

	DefaultMaxIterations int
	QuickMaxIterations   int
}

func NewService(deep DeepRunner, quickRunner QuickRunner, store RunStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Deep:                 deep,
		Quick:                quickRunner,
		Store:                store,
		Logger:               logger,
		DefaultMaxIterations: research.DefaultOptions().DefaultMaxIterations,
		QuickMaxIterations:   quick.DefaultMaxIterations,
	}
}

// Research runs the deep research loop, recording it when a store is
// configured. Store failures are logged and never fail the run.
func (s *Service) Research(ctx context.Context, query string, maxIterations int) (*research.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, research.ErrEmptyQuery
	}
	if maxIterations <= 0 {
		maxIterations = s.DefaultMaxIterations
	}

	runID, logger := s.startRun(ctx, query, database.ModeDeep, maxIterations)

	onUpdate := func(state research.ResearchContext) {
		if runID == uuid.Nil {
			return
		}
		stateJSON, err := json.Marshal(state)
		if err != nil {
			logger.Error("Failed to marshal state", "error", err)
			return
		}
		err = s.Store.UpdateProgress(context.WithoutCancel(ctx), runID, database.Progress{
			Iterations:  state.SearchIterations,
			TotalCost:   state.TotalCost,
			TotalTokens: state.TotalTokens,
			State:       stateJSON,
		})
		if err != nil {
			logger.Error("Failed to save state to DB", "error", err)
		}
	}

	res, err := s.Deep(ctx, query, maxIterations, logger, onUpdate)
	if err != nil {
		s.failRun(ctx, runID, logger, err)
		return nil, err
	}

	if runID != uuid.Nil {
		s.completeRun(ctx, runID, logger, res.FinalReport, res, database.Progress{
			Iterations:  res.Iterations,
			TotalCost:   res.TotalCost,
			TotalTokens: res.TotalTokens,
		})
	}
	return res, nil
}

// QuickSearch runs the single-agent variant.
func (s *Service) QuickSearch(ctx context.Context, query string, maxIterations int) (*quick.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, research.ErrEmptyQuery
	}
	if s.Quick == nil {
		return nil, errors.New("quick search is not configured")
	}
	if maxIterations <= 0 {
		maxIterations = s.QuickMaxIterations
	}

	runID, logger := s.startRun(ctx, query, database.ModeQuick, maxIterations)

	res, err := s.Quick(ctx, query, maxIterations, logger)
	if err != nil {
		s.failRun(ctx, runID, logger, err)
		return nil, err
	}

	if runID != uuid.Nil {
		s.completeRun(ctx, runID, logger, res.FinalResponse, res, database.Progress{
			Iterations:  res.Iterations,
			TotalCost:   res.TotalCost,
			TotalTokens: res.TotalTokens,
		})
	}
	return res, nil
}

// startRun records a new run and returns a logger that tees into it. Without
// a store, or when the insert fails, the id is uuid.Nil.
func (s *Service) startRun(ctx context.Context, query, mode string, maxIterations int) (uuid.UUID, *slog.Logger) {
	if s.Store == nil {
		return uuid.Nil, s.Logger
	}
	run, err := s.Store.CreateRun(ctx, query, mode, maxIterations)
	if err != nil {
		s.Logger.Error("Failed to record run, continuing without audit log", "error", err)
		return uuid.Nil, s.Logger
	}
	logger := slog.New(NewDBLogHandler(s.Store, run.ID, s.Logger.Handler())).With("run_id", run.ID.String())
	return run.ID, logger
}

func (s *Service) completeRun(ctx context.Context, runID uuid.UUID, logger *slog.Logger, report string, result any, p database.Progress) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		logger.Error("Failed to marshal result", "error", err)
	}
	if err := s.Store.CompleteRun(context.WithoutCancel(ctx), runID, report, resultJSON, p); err != nil {
		logger.Error("Failed to save final report to DB", "error", err)
	}
}

func (s *Service) failRun(ctx context.Context, runID uuid.UUID, logger *slog.Logger, cause error) {
	logger.Error("Run failed", "error", cause)
	if runID == uuid.Nil {
		return
	}
	if err := s.Store.FailRun(context.WithoutCancel(ctx), runID, cause.Error()); err != nil {
		s.Logger.Error("Failed to mark run failed", "run_id", runID, "error", err)
	}
}

func (s *Service) ListRuns(ctx context.Context) ([]database.Run, error) {
	if s.Store == nil {
		return nil, ErrStoreDisabled
	}
	return s.Store.ListRuns(ctx, 50)
}

func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*database.Run, error) {
	if s.Store == nil {
		return nil, ErrStoreDisabled
	}
	return s.Store.GetRun(ctx, id)
}

func (s *Service) GetRunLogs(ctx context.Context, id uuid.UUID) ([]database.LogEntry, error) {
	if s.Store == nil {
		return nil, ErrStoreDisabled
	}
	if _, err := s.Store.GetRun(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return s.Store.GetLogs(ctx, id)
}
