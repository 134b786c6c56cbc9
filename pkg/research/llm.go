package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// Pricing converts token counts into USD. Prices are per million tokens.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost returns the price of a call with the given token counts.
func (p Pricing) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*p.InputPerMTok/1e6 + float64(outputTokens)*p.OutputPerMTok/1e6
}

// usageFromChoice reads token counts from the generation info the provider
// attaches to a choice.
func usageFromChoice(choice *llms.ContentChoice, p Pricing) Usage {
	if choice == nil || choice.GenerationInfo == nil {
		return Usage{}
	}
	in := intFromInfo(choice.GenerationInfo["input_tokens"])
	if in == 0 {
		in = intFromInfo(choice.GenerationInfo["PromptTokens"])
	}
	out := intFromInfo(choice.GenerationInfo["output_tokens"])
	if out == 0 {
		out = intFromInfo(choice.GenerationInfo["CompletionTokens"])
	}
	return Usage{InputTokens: in, OutputTokens: out, Cost: p.Cost(in, out)}
}

func intFromInfo(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	default:
		return 0
	}
}

// retryPolicy bounds generateWithRetry.
type retryPolicy struct {
	attempts int
	backoff  time.Duration
}

var defaultRetryPolicy = retryPolicy{attempts: 3, backoff: time.Second}

// generateWithRetry asks the model for content and validates it with the
// provided function. Failed generations and failed validations are retried
// with linear backoff. Usage of every attempt is counted.
func generateWithRetry(ctx context.Context, model llms.Model, logger *slog.Logger, policy retryPolicy, pricing Pricing, prompts []llms.MessageContent, validator func(string) error, opts ...llms.CallOption) (string, Usage, error) {
	var lastErr error
	var usage Usage

	for i := 0; i < policy.attempts; i++ {
		if i > 0 {
			logger.Warn("Retrying LLM generation", "attempt", i+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", usage, ctx.Err()
			case <-time.After(policy.backoff * time.Duration(i)):
			}
		}

		resp, err := model.GenerateContent(ctx, prompts, opts...)
		if err != nil {
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("llm returned no choices")
			continue
		}

		choice := resp.Choices[0]
		usage = usage.Add(usageFromChoice(choice, pricing))

		content := stripFences(choice.Content)
		if err := validator(content); err != nil {
			lastErr = fmt.Errorf("validation failed: %w", err)
			continue
		}
		return content, usage, nil
	}

	return "", usage, fmt.Errorf("operation failed after %d retries: %w", policy.attempts, lastErr)
}

// stripFences removes markdown code fences from model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func currentDate() string {
	return time.Now().Format("2006-01-02 15:04:05")
}
