package analysis

import (
	"context"
	"fmt"

	"github.com/bryanwahyu/daily-movers/internal/domain/movers"
)

// State identifies a stage of the analysis pipeline for a single ticker.
type State string

const (
	StateResearch  State = "research"
	StateAnalyze   State = "analyze"
	StateCritique  State = "critique"
	StateRecommend State = "recommend"
	StateFailed    State = "failed"
)

const maxAnalyzeRetries = 1

// AnalyzeFunc produces a candidate from gathered evidence. Feedback carries
// the critic's objection on a retry pass and is empty on the first attempt.
type AnalyzeFunc func(ctx context.Context, ev *EvidenceSet, feedback string) (Candidate, error)

// Transition returns the next state. Critique either approves, requests one
// more analyze pass, or approves with normalization applied when retries are
// exhausted.
func Transition(current State, verdict *Verdict, retries int) State {
	switch current {
	case StateResearch:
		return StateAnalyze
	case StateAnalyze:
		return StateCritique
	case StateCritique:
		if verdict != nil && verdict.Retry && retries < maxAnalyzeRetries {
			return StateAnalyze
		}
		return StateRecommend
	default:
		return StateFailed
	}
}

// Machine drives one ticker through research, analysis, critique and
// recommendation. The analyze step is supplied by the caller so the same
// pipeline serves agent, direct model and heuristic paths.
type Machine struct {
	RetryBelow float64
}

// Run executes the pipeline. On a critic rejection the analyze step runs once
// more with the critic's feedback; a second rejection is resolved by
// normalizing the candidate instead of failing.
func (m Machine) Run(ctx context.Context, task movers.TickerTask, analyze AnalyzeFunc, modelUsed string) (movers.Analysis, error) {
	ev := Research(&task)

	state := Transition(StateResearch, nil, 0)
	retries := 0
	feedback := ""
	var candidate Candidate

	for state != StateRecommend {
		switch state {
		case StateAnalyze:
			c, err := analyze(ctx, &ev, feedback)
			if err != nil {
				return movers.Analysis{}, fmt.Errorf("analyze %s: %w", task.Symbol, err)
			}
			candidate = c
			state = Transition(state, nil, retries)
		case StateCritique:
			verdict := Critique(candidate, &ev, m.retryBelow())
			next := Transition(state, &verdict, retries)
			if next == StateAnalyze {
				retries++
				feedback = verdict.Feedback
			} else {
				candidate = verdict.Candidate
			}
			state = next
		default:
			return movers.Analysis{}, fmt.Errorf("analyze %s: unexpected state %q", task.Symbol, state)
		}
	}

	return finalize(candidate, &ev, modelUsed), nil
}

func (m Machine) retryBelow() float64 {
	if m.RetryBelow <= 0 {
		return defaultRetryBelow
	}
	return m.RetryBelow
}
