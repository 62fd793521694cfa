package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/bryanwahyu/daily-movers/internal/domain/movers"
)

// ModelHeuristics is the ModelUsed value for rule-based analyses.
const ModelHeuristics = "heuristics"

// HeuristicCandidate produces a candidate purely from numeric signals and
// evidence presence. It has no failure path and no external dependency; the
// pipeline's liveness guarantee rests on it.
func HeuristicCandidate(ev *EvidenceSet) Candidate {
	pct := ev.PctChange
	volume := ev.Volume
	hasHeadlines := ev.HasHeadlines()

	sentiment := clamp(pct/12.0, -1, 1)

	confidence := 0.58
	confidence += math.Min(math.Abs(pct)/60.0, 0.18)
	if hasHeadlines {
		confidence += 0.12
	} else {
		confidence -= 0.10
	}
	if volume >= 1_000_000 {
		confidence += 0.05
	}
	confidence = clamp(confidence, 0.05, 0.95)

	var rules []string
	if pct >= 5 {
		rules = append(rules, "positive_price_impulse")
	}
	if pct <= -5 {
		rules = append(rules, "negative_price_impulse")
	}
	if math.Abs(pct) > 15 {
		rules = append(rules, "extreme_percent_change")
	}
	if volume >= 5_000_000 {
		rules = append(rules, "elevated_volume")
	}
	if !hasHeadlines {
		rules = append(rules, "no_headline_evidence")
	}

	action := movers.ActionWatch
	switch {
	case sentiment >= 0.4 && confidence >= 0.65:
		action = movers.ActionBuy
	case sentiment <= -0.4 && confidence >= 0.65:
		action = movers.ActionSell
	}

	var why string
	if hasHeadlines {
		title := sanitizeTitle(ev.Headlines[0].Title)
		why = fmt.Sprintf(
			"%s moved %+.2f%% while coverage highlighted %s. Volume near %s supports a %s stance at %.2f confidence.",
			ev.Symbol, pct, title, formatVolume(volume), strings.ToLower(string(action)), confidence,
		)
	} else {
		why = fmt.Sprintf(
			"%s moved %+.2f%% but no fresh headline evidence was available at analysis time. The recommendation is %s with %.2f confidence based on price and volume signals only.",
			ev.Symbol, pct, strings.ToLower(string(action)), confidence,
		)
	}

	evidenceState := "headline-light"
	if hasHeadlines {
		evidenceState = "headline-supported"
	}
	summary := fmt.Sprintf(
		"%s is tagged %s from %+.2f%% movement with %d triggered rules under a %s context.",
		ev.Symbol, action, pct, len(rules), evidenceState,
	)

	return Candidate{
		WhyItMoved: why,
		Sentiment:  sentiment,
		Action:     action,
		Confidence: confidence,
		Rules:      rules,
		Summary:    summary,
	}
}

/// AnalyzeWithHeuristics is the always-available floor: research plus a
// heuristic candidate
// finalized into a complete Analysis.
func AnalyzeWithHeuristics(task *movers.TickerTask) movers.Analysis {
	ev := Research(task)
	c := HeuristicCandidate(&ev)
	return finalize(c, &ev, ModelHeuristics)
}

func sanitizeTitle(title string) string {
	cleaned := strings.NewReplacer(`"`, "", "'", "", ".", "").Replace(title)
	return truncate(cleaned, 120)
}

func formatVolume(volume float64) string {
	switch {
	case volume >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", volume/1_000_000_000)
	case volume >= 1_000_000:
		return fmt.Sprintf("%.2fM", volume/1_000_000)
	case volume >= 1_000:
		return fmt.Sprintf("%.2fK", volume/1_000)
	default:
		return fmt.Sprintf("%.0f", volume)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
