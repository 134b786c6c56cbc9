package research

import (
	"fmt"
	"slices"
	"time"
)

const (
	// MaxContentChars caps the content stored for a single search result.
	MaxContentChars = 2000
	// MaxPlans is the most plans a planner may return per call.
	MaxPlans = 3
)

// SearchIntent labels why a search was issued.
type SearchIntent string

const (
	IntentInitialExploration SearchIntent = "initial_exploration"
	IntentDeepDive           SearchIntent = "deep_dive"
	IntentFactChecking       SearchIntent = "fact_checking"
	IntentRelatedTopics      SearchIntent = "related_topics"
	IntentSynthesis          SearchIntent = "synthesis"
)

// SearchIntents lists every valid intent in declaration order.
var SearchIntents = []SearchIntent{
	IntentInitialExploration,
	IntentDeepDive,
	IntentFactChecking,
	IntentRelatedTopics,
	IntentSynthesis,
}

// ParseSearchIntent validates s against the closed set of intents.
func ParseSearchIntent(s string) (SearchIntent, error) {
	for _, intent := range SearchIntents {
		if string(intent) == s {
			return intent, nil
		}
	}
	return "", fmt.Errorf("unknown search intent %q", s)
}

// SearchResult is one retrieved document.
type SearchResult struct {
	Title          string       `json:"title"`
	URL            string       `json:"url"`
	Content        string       `json:"content"`
	RelevanceScore float64      `json:"relevance_score"`
	SearchIntent   SearchIntent `json:"search_intent"`
	Timestamp      time.Time    `json:"timestamp"`
}

// NewSearchResult builds a result with truncated content, relevance 1.0 and
// the current time.
func NewSearchResult(title, url, content string, intent SearchIntent) SearchResult {
	return SearchResult{
		Title:          title,
		URL:            url,
		Content:        truncateRunes(content, MaxContentChars),
		RelevanceScore: 1.0,
		SearchIntent:   intent,
		Timestamp:      time.Now(),
	}
}

// RelevanceForRank scores a result by its 0-indexed position in a result list.
func RelevanceForRank(rank int) float64 {
	score := 1.0 - 0.1*float64(rank)
	if score < 0.1 {
		return 0.1
	}
	return score
}

// SearchPlan is one proposed search action.
type SearchPlan struct {
	Intent    SearchIntent `json:"intent"`
	Query     string       `json:"query"`
	Reasoning string       `json:"reasoning"`
}

// Usage accumulates model consumption for one or more calls.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
		Cost:         u.Cost + o.Cost,
	}
}

// Analysis is the outcome of executing one plan.
type Analysis struct {
	Text    string `json:"text"`
	Results int    `json:"results"`
	Usage   Usage  `json:"usage"`
}

// ResearchContext is the mutable state of one research session. It has a
// single writer: the engine run that created it.
type ResearchContext struct {
	Query               string         `json:"query"`
	SearchHistory       []SearchResult `json:"search_history"`
	KeyFindings         []string       `json:"key_findings"`
	UnansweredQuestions []string       `json:"unanswered_questions"`
	SearchIterations    int            `json:"search_iterations"`
	TotalCost           float64        `json:"total_cost"`
	TotalTokens         int            `json:"total_tokens"`
}

// NewResearchContext starts an empty session for query.
func NewResearchContext(query string) *ResearchContext {
	return &ResearchContext{
		Query:               query,
		SearchHistory:       []SearchResult{},
		KeyFindings:         []string{},
		UnansweredQuestions: []string{},
	}
}

// AddResults appends results to the history in order.
func (rc *ResearchContext) AddResults(results ...SearchResult) {
	rc.SearchHistory = append(rc.SearchHistory, results...)
}

// AddFindings appends non-empty findings in order.
func (rc *ResearchContext) AddFindings(findings ...string) {
	for _, f := range findings {
		if f != "" {
			rc.KeyFindings = append(rc.KeyFindings, f)
		}
	}
}

// AddUsage folds u into the running totals. Negative values are ignored so
// the totals never decrease.
func (rc *ResearchContext) AddUsage(u Usage) {
	if u.Cost > 0 {
		rc.TotalCost += u.Cost
	}
	if t := u.Total(); t > 0 {
		rc.TotalTokens += t
	}
}

func (rc *ResearchContext) nextIteration() int {
	rc.SearchIterations++
	return rc.SearchIterations
}

// Snapshot returns a copy that shares no slices with rc.
func (rc *ResearchContext) Snapshot() ResearchContext {
	cp := *rc
	cp.SearchHistory = slices.Clone(rc.SearchHistory)
	cp.KeyFindings = slices.Clone(rc.KeyFindings)
	cp.UnansweredQuestions = slices.Clone(rc.UnansweredQuestions)
	return cp
}

// Result is the bundle returned by a completed research run.
type Result struct {
	FinalReport     string           `json:"final_report"`
	ResearchContext *ResearchContext `json:"research_context"`
	Iterations      int              `json:"iterations"`
	TotalCost       float64          `json:"total_cost"`
	TotalTokens     int              `json:"total_tokens"`
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
