package research

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/search-agent/pkg/research/tools"
)

// Options tunes the research loop.
type Options struct {
	// DefaultMaxIterations applies when Run is called with a non-positive cap.
	DefaultMaxIterations int
	// MaxPlansPerIteration caps how many of the planner's plans are executed.
	MaxPlansPerIteration int
	// The loop stops early once it has MinFindings findings after at least
	// MinIterations iterations.
	MinFindings   int
	MinIterations int
	// NumResults caps the documents one web_search call may return.
	NumResults int
}

// DefaultOptions returns the loop settings used when none are configured.
func DefaultOptions() Options {
	return Options{
		DefaultMaxIterations: 5,
		MaxPlansPerIteration: 2,
		MinFindings:          5,
		MinIterations:        3,
		NumResults:           tools.DefaultNumResults,
	}
}

// usageReporter is implemented by planners that track their own model usage.
type usageReporter interface {
	LastUsage() Usage
}

// ResearchEngine runs the plan, execute and synthesize loop. A literal with
// only Planner, Executor and Synthesizer set is usable; zero options and a
// nil Logger fall back to defaults.
type ResearchEngine struct {
	Planner     Planner
	Executor    Executor
	Synthesizer Synthesizer
	Options     Options
	Logger      *slog.Logger

	// OnStateUpdate receives a copy of the context after every iteration.
	OnStateUpdate func(state ResearchContext)
}

// NewEngine wires the model-backed planner, executor and synthesizer.
func NewEngine(llm llms.Model, search ContentSearcher, pricing Pricing, opts Options, logger *slog.Logger) *ResearchEngine {
	if logger == nil {
		logger = slog.Default()
	}
	executor := NewLLMExecutor(llm, search, pricing, logger)
	if opts.NumResults > 0 {
		executor.NumResults = opts.NumResults
	}
	return &ResearchEngine{
		Planner:     NewLLMPlanner(llm, pricing, logger),
		Executor:    executor,
		Synthesizer: NewLLMSynthesizer(llm, pricing, logger),
		Options:     opts,
		Logger:      logger,
	}
}

// Run drives plan, execute and stop-check cycles until the stop condition
// holds, the iteration cap is reached or planning fails, then synthesizes
// the report exactly once.
func (e *ResearchEngine) Run(ctx context.Context, query string, maxIterations int) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	opts := e.options()
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if maxIterations <= 0 {
		maxIterations = opts.DefaultMaxIterations
	}
	planCap := opts.MaxPlansPerIteration

	rc := NewResearchContext(query)
	logger.Info("Starting research loop", "query", query, "max_iterations", maxIterations)

	for rc.SearchIterations < maxIterations {
		iteration := rc.nextIteration()
		logger.Info("Starting iteration", "iteration", iteration, "max", maxIterations)

		plans, err := e.Planner.Plan(ctx, rc)
		if r, ok := e.Planner.(usageReporter); ok {
			rc.AddUsage(r.LastUsage())
		}
		if err != nil {
			var perr *PlanningError
			if !errors.As(err, &perr) {
				perr = &PlanningError{Iteration: iteration, Err: err}
			}
			logger.Error("Planning failed, proceeding to synthesis", "error", perr)
			break
		}
		if len(plans) == 0 {
			logger.Warn("No search plans generated. Research might be stuck.")
			break
		}
		if len(plans) > planCap {
			logger.Info("Discarding extra plans", "planned", len(plans), "executing", planCap)
			plans = plans[:planCap]
		}

		for _, plan := range plans {
			analysis, err := e.Executor.Execute(ctx, plan, rc)
			if err != nil {
				logger.Error("Search execution failed", "query", plan.Query, "error", err)
				continue
			}
			rc.AddUsage(analysis.Usage)
		}

		if e.OnStateUpdate != nil {
			e.OnStateUpdate(rc.Snapshot())
		}

		if shouldStop(rc, opts) {
			logger.Info("Stop condition met", "findings", len(rc.KeyFindings), "iterations", rc.SearchIterations)
			break
		}
	}

	if rc.SearchIterations >= maxIterations {
		logger.Info("Reached maximum iterations", "max", maxIterations)
	}

	report, usage, err := e.Synthesizer.Synthesize(ctx, rc)
	if err != nil {
		var serr *SynthesisError
		if !errors.As(err, &serr) {
			err = &SynthesisError{Err: err}
		}
		return nil, err
	}
	rc.AddUsage(usage)

	logger.Info("Research complete",
		"iterations", rc.SearchIterations,
		"sources", len(rc.SearchHistory),
		"findings", len(rc.KeyFindings),
		"total_cost", rc.TotalCost,
		"total_tokens", rc.TotalTokens)

	return &Result{
		FinalReport:     report,
		ResearchContext: rc,
		Iterations:      rc.SearchIterations,
		TotalCost:       rc.TotalCost,
		TotalTokens:     rc.TotalTokens,
	}, nil
}

// options fills non-positive settings from DefaultOptions.
func (e *ResearchEngine) options() Options {
	opts, def := e.Options, DefaultOptions()
	if opts.DefaultMaxIterations <= 0 {
		opts.DefaultMaxIterations = def.DefaultMaxIterations
	}
	if opts.MaxPlansPerIteration <= 0 {
		opts.MaxPlansPerIteration = def.MaxPlansPerIteration
	}
	if opts.MinFindings <= 0 {
		opts.MinFindings = def.MinFindings
	}
	if opts.MinIterations <= 0 {
		opts.MinIterations = def.MinIterations
	}
	return opts
}

func shouldStop(rc *ResearchContext, opts Options) bool {
	return len(rc.KeyFindings) >= opts.MinFindings && rc.SearchIterations >= opts.MinIterations
}
