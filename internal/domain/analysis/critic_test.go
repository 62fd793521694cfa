package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/daily-movers/internal/domain/movers"
)

func evidenceWithHeadlines(symbol string, pct float64, headlines ...movers.Headline) EvidenceSet {
	task := taskWith(symbol, pct, 1_000_000, headlines...)
	return Research(&task)
}

func TestCritiqueClampsOutOfBoundsFields(t *testing.T) {
	ev := evidenceWithHeadlines("AAPL", 4.0, movers.Headline{Title: "t", URL: "https://example.com/t"})
	v := Critique(Candidate{
		WhyItMoved: "Shares rallied on earnings. Guidance was raised for the full year.",
		Sentiment:  1.8,
		Action:     movers.ActionBuy,
		Confidence: 1.4,
	}, &ev, defaultRetryBelow)

	assert.False(t, v.Retry)
	assert.Equal(t, 1.0, v.Candidate.Sentiment)
	assert.Equal(t, 1.0, v.Candidate.Confidence)
	assert.Contains(t, v.Flags, "sentiment_out_of_bounds")
	assert.Contains(t, v.Flags, "confidence_out_of_bounds")
}

func TestCritiqueCapsConfidenceWithoutHeadlines(t *testing.T) {
	ev := evidenceWithHeadlines("GHOST", 3.0)
	v := Critique(Candidate{
		WhyItMoved: "The stock climbed steadily. Buyers stepped in through the session.",
		Sentiment:  0.5,
		Action:     movers.ActionBuy,
		Confidence: 0.92,
	}, &ev, defaultRetryBelow)

	assert.False(t, v.Retry)
	assert.Equal(t, noHeadlineConfidenceCap, v.Candidate.Confidence)
	assert.Contains(t, v.Flags, "confidence_capped_no_headlines")
}

func TestCritiqueStripsReasoningLeaks(t *testing.T) {
	ev := evidenceWithHeadlines("LEAK", 5.0, movers.Headline{Title: "t", URL: "https://example.com/t"})
	v := Critique(Candidate{
		WhyItMoved: "Let me think step-by-step about this move. It went up.",
		Sentiment:  0.4,
		Action:     movers.ActionWatch,
		Confidence: 0.6,
	}, &ev, defaultRetryBelow)

	assert.Contains(t, v.Flags, "reasoning_leak_removed")
	assert.NotContains(t, v.Candidate.WhyItMoved, "step-by-step")
	assert.Len(t, splitSentences(v.Candidate.WhyItMoved), 2)
}

func TestCritiqueRequestsRetryOnLowConfidence(t *testing.T) {
	ev := evidenceWithHeadlines("WEAK", 2.0, movers.Headline{Title: "t", URL: "https://example.com/t"})
	v := Critique(Candidate{
		WhyItMoved: "The move was modest. Evidence is thin.",
		Sentiment:  0.1,
		Action:     movers.ActionWatch,
		Confidence: 0.2,
	}, &ev, defaultRetryBelow)

	assert.True(t, v.Retry)
	assert.NotEmpty(t, v.Feedback)
}

func TestCritiqueNormalizesSingleSentence(t *testing.T) {
	ev := evidenceWithHeadlines("ONE", 6.0, movers.Headline{Title: "t", URL: "https://example.com/t"})
	v := Critique(Candidate{
		WhyItMoved: "Shares jumped after the product launch",
		Sentiment:  0.6,
		Action:     movers.ActionBuy,
		Confidence: 0.8,
	}, &ev, defaultRetryBelow)

	assert.Len(t, splitSentences(v.Candidate.WhyItMoved), 2)
	assert.Contains(t, v.Flags, "explanation_normalized")
}
