package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/bryanwahyu/daily-movers/internal/domain/ai"
	"github.com/bryanwahyu/daily-movers/internal/domain/movers"
)

// Candidate is the analyst-stage output before critique: the recommendation
// fields plus the rules and summary that will seed the decision trace.
type Candidate struct {
	WhyItMoved string
	Sentiment  float64
	Action     movers.Action
	Confidence float64
	Rules      []string
	Summary    string
}

var sentenceSplit = regexp.MustCompile(`(?:[.!?])\s+`)
var whitespace = regexp.MustCompile(`\s+`)
var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// finalize turns an approved candidate into an immutable Analysis, attaching
// the decision trace and provenance URLs derived from the evidence.
func finalize(c Candidate, ev *EvidenceSet, modelUsed string) movers.Analysis {
	evidence := ev.Headlines
	if len(evidence) > 3 {
		evidence = evidence[:3]
	}

	rules := c.Rules
	if len(rules) == 0 {
		rules = []string{"critic_default_rule"}
	}
	summary := strings.TrimSpace(c.Summary)
	if summary == "" {
		summary = fmt.Sprintf("%s assessment normalized for completeness.", ev.Symbol)
	}

	provenance := make([]string, 0, len(evidence)+1)
	seen := make(map[string]bool)
	for _, h := range evidence {
		if h.URL != "" && !seen[h.URL] {
			seen[h.URL] = true
			provenance = append(provenance, h.URL)
		}
	}
	if quote := quoteURL(ev.Symbol); !seen[quote] {
		provenance = append(provenance, quote)
	}

	return movers.Analysis{
		WhyItMoved: EnsureTwoSentences(c.WhyItMoved, ev.Symbol, ev.PctChange, c.Action, c.Confidence, ev.HasHeadlines()),
		Sentiment:  clamp(c.Sentiment, -1, 1),
		Action:     c.Action,
		Confidence: clamp(c.Confidence, 0, 1),
		DecisionTrace: movers.DecisionTrace{
			EvidenceUsed:   evidence,
			NumericSignals: ev.Signals,
			RulesTriggered: rules,
			Explainability: summary,
		},
		ProvenanceURLs: provenance,
		ModelUsed:      modelUsed,
	}
}

func quoteURL(symbol string) string {
	return fmt.Sprintf("https://finance.yahoo.com/quote/%s", symbol)
}

// ExtractJSONObject parses the first JSON object found in model output. Models
// sometimes wrap the object in code fences or prose; both are tolerated.
func ExtractJSONObject(text string) (map[string]any, error) {
	stripped := strings.TrimSpace(text)
	stripped = strings.TrimPrefix(stripped, "```json")
	stripped = strings.TrimPrefix(stripped, "```")
	stripped = strings.TrimSuffix(stripped, "```")
	stripped = strings.TrimSpace(stripped)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(stripped), &parsed); err == nil {
		return parsed, nil
	}
	match := jsonObject.FindString(stripped)
	if match == "" {
		return nil, ai.ErrMalformedOutput
	}
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedOutput, err)
	}
	return parsed, nil
}

// CandidateFromJSON coerces a parsed model object into a Candidate, clamping
// numeric fields and backfilling anything the model omitted.
func CandidateFromJSON(obj map[string]any, ev *EvidenceSet) Candidate {
	sentiment := clamp(coerceFloat(obj["sentiment"], 0), -1, 1)
	confidence := clamp(coerceFloat(obj["confidence"], 0.6), 0, 1)
	action := coerceAction(obj["action"], sentiment)

	why, _ := obj["why_it_moved"].(string)
	rules := coerceStrings(obj["rules_triggered"])

	summary, _ := obj["explainability_summary"].(string)
	if trace, ok := obj["decision_trace"].(map[string]any); ok {
		if summary == "" {
			summary, _ = trace["explainability_summary"].(string)
		}
		if len(rules) == 0 {
			rules = coerceStrings(trace["rules_triggered"])
		}
	}
	if strings.TrimSpace(summary) == "" {
		summary = fmt.Sprintf("%s analysis produced by model with %d rules.", ev.Symbol, len(rules))
	}

	return Candidate{
		WhyItMoved: EnsureTwoSentences(why, ev.Symbol, ev.PctChange, action, confidence, ev.HasHeadlines()),
		Sentiment:  sentiment,
		Action:     action,
		Confidence: confidence,
		Rules:      rules,
		Summary:    summary,
	}
}

// EnsureTwoSentences normalizes free text to exactly two sentences, padding
// with a deterministic second sentence or synthesizing both when empty.
func EnsureTwoSentences(text, symbol string, pct float64, action movers.Action, confidence float64, hasHeadlines bool) string {
	cleaned := strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	if cleaned == "" {
		evidencePart := "and no fresh headline evidence was available"
		if hasHeadlines {
			evidencePart = "with headline evidence in the provided input"
		}
		return fmt.Sprintf(
			"%s moved %+.2f%% %s. The suggested action is %s with %.2f confidence.",
			symbol, pct, evidencePart, action, confidence,
		)
	}

	sentences := splitSentences(cleaned)
	if len(sentences) >= 2 {
		return ensureSentenceEnd(sentences[0]) + " " + ensureSentenceEnd(sentences[1])
	}

	first := ensureSentenceEnd(sentences[0])
	second := fmt.Sprintf("The suggested action is %s with %.2f confidence.", action, confidence)
	return first + " " + second
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceSplit.FindAllStringIndex(text, -1) {
		piece := strings.TrimSpace(text[start : loc[0]+1])
		if piece != "" {
			out = append(out, piece)
		}
		start = loc[1]
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func ensureSentenceEnd(s string) string {
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
		return s
	}
	return s + "."
}

func coerceFloat(v any, def float64) float64 {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return def
		}
		return t
	case int:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return def
		}
		return f
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSuffix(strings.TrimSpace(t), "%"), "%g", &f); err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

func coerceAction(v any, sentiment float64) movers.Action {
	if s, ok := v.(string); ok {
		switch movers.Action(strings.ToUpper(strings.TrimSpace(s))) {
		case movers.ActionBuy:
			return movers.ActionBuy
		case movers.ActionWatch:
			return movers.ActionWatch
		case movers.ActionSell:
			return movers.ActionSell
		}
	}
	switch {
	case sentiment >= 0.25:
		return movers.ActionBuy
	case sentiment <= -0.25:
		return movers.ActionSell
	default:
		return movers.ActionWatch
	}
}

func coerceStrings(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, item := range raw {
		var s string
		switch t := item.(type) {
		case string:
			s = strings.TrimSpace(t)
		case map[string]any:
			for _, key := range []string{"id", "name", "rule", "description"} {
				if c, ok := t[key].(string); ok && strings.TrimSpace(c) != "" {
					s = strings.TrimSpace(c)
					break
				}
			}
		}
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
