package analysis

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/daily-movers/internal/domain/ai"
	"github.com/bryanwahyu/daily-movers/internal/domain/movers"
)

// Prompter renders the model prompts for the agent and direct tiers. The
// concrete implementation lives with the model client wiring.
type Prompter interface {
	AgentSystem() string
	AgentUser(ev *EvidenceSet, feedback string) string
	DirectSystem() string
	DirectUser(ev *EvidenceSet) string
}

// TierFunc is one analysis tier. A nil error means the tier produced a full
// Analysis; any error hands the ticker to the next tier down.
type TierFunc func(ctx context.Context, task movers.TickerTask) (movers.Analysis, error)

// Controller runs tiers in order and degrades on failure. The heuristic
// floor cannot fail, so Produce always returns an Analysis.
type Controller struct {
	Agent  TierFunc
	Direct TierFunc
	Log    zerolog.Logger
}

// Produce returns the highest-tier analysis available for the task, plus a
// stage error per tier that was attempted and failed.
func (c *Controller) Produce(ctx context.Context, task movers.TickerTask) (movers.Analysis, []movers.StageError) {
	var degradations []movers.StageError

	if c.Agent != nil {
		analysis, err := c.Agent(ctx, task)
		if err == nil {
			return analysis, degradations
		}
		// An unconfigured tier is an expected degradation, not a record error.
		if !errors.Is(err, ai.ErrNotConfigured) {
			degradations = append(degradations, tierError("agent_failed", err))
		}
		c.Log.Warn().Err(err).Str("symbol", task.Symbol).Msg("agent tier failed, trying direct model")
	}

	if c.Direct != nil {
		analysis, err := c.Direct(ctx, task)
		if err == nil {
			return analysis, degradations
		}
		if !errors.Is(err, ai.ErrNotConfigured) {
			degradations = append(degradations, tierError("direct_model_failed", err))
		}
		c.Log.Warn().Err(err).Str("symbol", task.Symbol).Msg("direct model tier failed, falling back to heuristics")
	}

	return AnalyzeWithHeuristics(&task), degradations
}

func tierError(errType string, err error) movers.StageError {
	return movers.StageError{
		Stage:        movers.StageAnalysis,
		ErrorType:    errType,
		ErrorMessage: err.Error(),
		FallbackUsed: true,
	}
}

// NewAgentTier builds the top tier: the full research, analyze, critique,
// recommend pipeline with the model as analyst.
func NewAgentTier(client ai.Client, prompts Prompter, retryBelow float64) TierFunc {
	return func(ctx context.Context, task movers.TickerTask) (movers.Analysis, error) {
		if client == nil {
			return movers.Analysis{}, ai.ErrNotConfigured
		}
		machine := Machine{RetryBelow: retryBelow}
		analyze := func(ctx context.Context, ev *EvidenceSet, feedback string) (Candidate, error) {
			raw, err := client.Complete(ctx, prompts.AgentSystem(), prompts.AgentUser(ev, feedback))
			if err != nil {
				return Candidate{}, err
			}
			obj, err := ExtractJSONObject(raw)
			if err != nil {
				return Candidate{}, err
			}
			return CandidateFromJSON(obj, ev), nil
		}
		return machine.Run(ctx, task, analyze, "agent:"+client.Model())
	}
}

// NewDirectTier builds the middle tier: a single strict JSON completion with
// one critique pass applied to the output.
func NewDirectTier(client ai.Client, prompts Prompter) TierFunc {
	return func(ctx context.Context, task movers.TickerTask) (movers.Analysis, error) {
		if client == nil {
			return movers.Analysis{}, ai.ErrNotConfigured
		}
		ev := Research(&task)
		raw, err := client.Complete(ctx, prompts.DirectSystem(), prompts.DirectUser(&ev))
		if err != nil {
			return movers.Analysis{}, err
		}
		obj, err := ExtractJSONObject(raw)
		if err != nil {
			return movers.Analysis{}, err
		}
		verdict := Critique(CandidateFromJSON(obj, &ev), &ev, 0)
		return finalize(verdict.Candidate, &ev, "openai:"+client.Model()), nil
	}
}

// TierOf attributes an analysis to the tier that produced it based on the
// recorded model identifier.
func TierOf(modelUsed string) string {
	switch {
	case strings.HasPrefix(modelUsed, "agent"):
		return "agent"
	case strings.HasPrefix(modelUsed, "openai"):
		return "direct_llm"
	default:
		return "heuristics"
	}
}
