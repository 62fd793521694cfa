package analysis

import (
	"fmt"
	"strings"
)

const defaultRetryBelow = 0.35

// noHeadlineConfidenceCap bounds confidence whenever a claim has no headline
// evidence behind it.
const noHeadlineConfidenceCap = 0.7

var leakPhrases = []string{
	"chain of thought",
	"chain-of-thought",
	"step-by-step",
	"let me think",
	"internal reasoning",
}

// Verdict is the critic's judgement of a candidate. When Retry is set the
// analyst gets one more pass with Feedback; otherwise Candidate holds the
// approved, possibly normalized, result.
type Verdict struct {
	Candidate Candidate
	Retry     bool
	Feedback  string
	Flags     []string
}

// Critique validates a candidate against the output contract and either
// requests a retry or returns a normalized candidate that satisfies it.
// Normalization never fails.
func Critique(c Candidate, ev *EvidenceSet, retryBelow float64) Verdict {
	var flags []string

	if c.Sentiment < -1 || c.Sentiment > 1 {
		flags = append(flags, "sentiment_out_of_bounds")
		c.Sentiment = clamp(c.Sentiment, -1, 1)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		flags = append(flags, "confidence_out_of_bounds")
		c.Confidence = clamp(c.Confidence, 0, 1)
	}
	if !ev.HasHeadlines() && c.Confidence > noHeadlineConfidenceCap {
		flags = append(flags, "confidence_capped_no_headlines")
		c.Confidence = noHeadlineConfidenceCap
	}

	lowered := strings.ToLower(c.WhyItMoved)
	for _, phrase := range leakPhrases {
		if strings.Contains(lowered, phrase) {
			flags = append(flags, "reasoning_leak_removed")
			c.WhyItMoved = ""
			break
		}
	}
	normalized := EnsureTwoSentences(c.WhyItMoved, ev.Symbol, ev.PctChange, c.Action, c.Confidence, ev.HasHeadlines())
	if normalized != c.WhyItMoved {
		if !containsFlag(flags, "reasoning_leak_removed") {
			flags = append(flags, "explanation_normalized")
		}
		c.WhyItMoved = normalized
	}

	if c.Confidence < retryBelow {
		return Verdict{
			Candidate: c,
			Retry:     true,
			Feedback: fmt.Sprintf(
				"confidence %.2f is below %.2f; strengthen the explanation with concrete evidence or lower the action to WATCH",
				c.Confidence, retryBelow,
			),
			Flags: flags,
		}
	}

	return Verdict{Candidate: c, Flags: flags}
}

func containsFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
