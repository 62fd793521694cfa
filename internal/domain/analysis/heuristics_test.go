package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/daily-movers/internal/domain/movers"
)

func fp(v float64) *float64 { return &v }

func taskWith(symbol string, pct, volume float64, headlines ...movers.Headline) movers.TickerTask {
	return movers.TickerTask{
		Symbol:    symbol,
		Name:      symbol + " Inc",
		PctChange: fp(pct),
		Volume:    fp(volume),
		Price:     fp(100),
		Enrichment: movers.Enrichment{
			Headlines: headlines,
		},
	}
}

func TestHeuristicCandidatePositiveMoveWithHeadlines(t *testing.T) {
	task := taskWith("AAPL", 6.0, 2_000_000, movers.Headline{
		Title: "Apple beats estimates",
		URL:   "https://example.com/aapl",
	})
	ev := Research(&task)
	c := HeuristicCandidate(&ev)

	assert.InDelta(t, 0.5, c.Sentiment, 1e-9)
	// 0.58 base + 0.10 magnitude + 0.12 headlines + 0.05 volume
	assert.InDelta(t, 0.85, c.Confidence, 1e-9)
	assert.Equal(t, movers.ActionBuy, c.Action)
	assert.Contains(t, c.Rules, "positive_price_impulse")
	assert.NotContains(t, c.Rules, "elevated_volume")
	assert.NotContains(t, c.Rules, "no_headline_evidence")
}

func TestHeuristicCandidateLargeDropNoHeadlines(t *testing.T) {
	task := taskWith("XYZ", -20.0, 0)
	ev := Research(&task)
	c := HeuristicCandidate(&ev)

	assert.InDelta(t, -1.0, c.Sentiment, 1e-9)
	// 0.58 base + 0.18 capped magnitude - 0.10 missing headlines
	assert.InDelta(t, 0.66, c.Confidence, 1e-9)
	assert.Equal(t, movers.ActionSell, c.Action)
	assert.Contains(t, c.Rules, "negative_price_impulse")
	assert.Contains(t, c.Rules, "extreme_percent_change")
	assert.Contains(t, c.Rules, "no_headline_evidence")
}

func TestHeuristicCandidateSmallMoveIsWatch(t *testing.T) {
	task := taskWith("FLAT", 1.0, 0)
	ev := Research(&task)
	c := HeuristicCandidate(&ev)

	assert.Equal(t, movers.ActionWatch, c.Action)
	assert.Less(t, c.Confidence, 0.65)
}

func TestHeuristicCandidateElevatedVolumeRule(t *testing.T) {
	task := taskWith("VOL", 3.0, 7_500_000)
	ev := Research(&task)
	c := HeuristicCandidate(&ev)

	assert.Contains(t, c.Rules, "elevated_volume")
}

func TestAnalyzeWithHeuristicsNeverEmpty(t *testing.T) {
	task := movers.TickerTask{Symbol: "BARE"}
	analysis := AnalyzeWithHeuristics(&task)

	require.NotEmpty(t, analysis.WhyItMoved)
	assert.Len(t, splitSentences(analysis.WhyItMoved), 2)
	assert.Equal(t, ModelHeuristics, analysis.ModelUsed)
	assert.NotEmpty(t, analysis.DecisionTrace.RulesTriggered)
	assert.NotEmpty(t, analysis.DecisionTrace.Explainability)
	assert.Contains(t, analysis.ProvenanceURLs, "https://finance.yahoo.com/quote/BARE")
	assert.GreaterOrEqual(t, analysis.Confidence, 0.05)
	assert.LessOrEqual(t, analysis.Confidence, 0.95)
}

func TestProvenanceIncludesEvidenceURLs(t *testing.T) {
	task := taskWith("NVDA", 9.0, 12_000_000,
		movers.Headline{Title: "Chip demand surges", URL: "https://example.com/a"},
		movers.Headline{Title: "Guidance raised", URL: "https://example.com/b"},
	)
	analysis := AnalyzeWithHeuristics(&task)

	assert.Contains(t, analysis.ProvenanceURLs, "https://example.com/a")
	assert.Contains(t, analysis.ProvenanceURLs, "https://example.com/b")
	assert.Contains(t, analysis.ProvenanceURLs, "https://finance.yahoo.com/quote/NVDA")
}
