package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

const (
	noFindingsPlaceholder  = "None yet"
	noQuestionsPlaceholder = "None identified"
	recentResultsWindow    = 5
	planSnippetChars       = 200
)

// Planner proposes the next searches from the current context.
type Planner interface {
	Plan(ctx context.Context, rc *ResearchContext) ([]SearchPlan, error)
}

// LLMPlanner delegates planning to a language model in JSON mode.
type LLMPlanner struct {
	LLM     llms.Model
	Pricing Pricing
	Logger  *slog.Logger

	retry retryPolicy
	usage Usage
}

func NewLLMPlanner(llm llms.Model, pricing Pricing, logger *slog.Logger) *LLMPlanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMPlanner{LLM: llm, Pricing: pricing, Logger: logger, retry: defaultRetryPolicy}
}

// LastUsage reports the consumption of the most recent Plan call.
func (p *LLMPlanner) LastUsage() Usage {
	return p.usage
}

func (p *LLMPlanner) Plan(ctx context.Context, rc *ResearchContext) ([]SearchPlan, error) {
	p.logger().Info("Starting planning phase", "iteration", rc.SearchIterations)

	input := renderPlannerInput(rc)

	type planResponse struct {
		Plans []struct {
			Intent    string `json:"intent"`
			Query     string `json:"query"`
			Reasoning string `json:"reasoning"`
		} `json:"plans"`
	}
	var resp planResponse

	_, usage, err := generateWithRetry(ctx, p.LLM, p.logger(), p.retryPolicy(), p.Pricing, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, plannerSystemPrompt+"\n\n# Response Format:\n"+plannerSchema),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	}, func(content string) error {
		resp = planResponse{}
		if err := json.Unmarshal([]byte(content), &resp); err != nil {
			return fmt.Errorf("json parse error: %w (content: %s)", err, content)
		}
		if len(resp.Plans) == 0 {
			return fmt.Errorf("empty plans list")
		}
		return nil
	}, llms.WithJSONMode())
	p.usage = usage
	if err != nil {
		return nil, &PlanningError{Iteration: rc.SearchIterations, Err: err}
	}

	plans := make([]SearchPlan, 0, MaxPlans)
	for _, raw := range resp.Plans {
		if strings.TrimSpace(raw.Query) == "" {
			continue
		}
		intent, err := ParseSearchIntent(strings.TrimSpace(raw.Intent))
		if err != nil {
			p.logger().Warn("Unknown intent from planner, using initial_exploration", "intent", raw.Intent)
			intent = IntentInitialExploration
		}
		plans = append(plans, SearchPlan{
			Intent:    intent,
			Query:     strings.TrimSpace(raw.Query),
			Reasoning: raw.Reasoning,
		})
		if len(plans) == MaxPlans {
			break
		}
	}
	if len(plans) == 0 {
		return nil, &PlanningError{Iteration: rc.SearchIterations, Err: fmt.Errorf("planner returned no usable queries")}
	}

	p.logger().Info("Generated search plans", "count", len(plans))
	return plans, nil
}

func (p *LLMPlanner) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p *LLMPlanner) retryPolicy() retryPolicy {
	if p.retry.attempts <= 0 {
		return defaultRetryPolicy
	}
	return p.retry
}

func renderPlannerInput(rc *ResearchContext) string {
	return fmt.Sprintf(plannerInput,
		currentDate(),
		rc.Query,
		rc.SearchIterations,
		joinOr(rc.KeyFindings, noFindingsPlaceholder),
		joinOr(rc.UnansweredQuestions, noQuestionsPlaceholder),
		summarizeRecent(rc.SearchHistory, recentResultsWindow),
	)
}

// summarizeRecent renders the last n results as "[intent] title: snippet...".
func summarizeRecent(history []SearchResult, n int) string {
	start := len(history) - n
	if start < 0 {
		start = 0
	}
	var b strings.Builder
	for _, r := range history[start:] {
		fmt.Fprintf(&b, "[%s] %s: %s...\n", r.SearchIntent, r.Title, truncateRunes(r.Content, planSnippetChars))
	}
	if b.Len() == 0 {
		return "None"
	}
	return b.String()
}

func joinOr(items []string, placeholder string) string {
	if len(items) == 0 {
		return placeholder
	}
	return strings.Join(items, "\n")
}
