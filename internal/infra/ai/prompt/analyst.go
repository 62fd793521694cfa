package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/daily-movers/internal/domain/analysis"
)

// Analyst renders the prompts for both model tiers. It satisfies
// analysis.Prompter.
type Analyst struct{}

var _ analysis.Prompter = Analyst{}

// AgentSystem provides strict directions and schema for JSON output.
func (Analyst) AgentSystem() string {
	return `You are a senior equity analyst inside an automated pipeline. You must produce one valid JSON object only (no markdown, no commentary, no code fences). Use only the evidence and numeric signals provided in the user message. Never include chain-of-thought or any description of your reasoning process.

Requirements:
- Output must be a single JSON object.
- why_it_moved must be exactly two sentences and must mention evidence absence when headlines are missing.
- sentiment is a number in [-1, 1]; confidence is a number in [0, 1].
- action is one of: BUY, WATCH, SELL.
- rules_triggered lists the signal rules that justify the call.

Schema (example with empty values):
{
  "why_it_moved": "<string, exactly two sentences>",
  "sentiment": 0.0,
  "action": "<BUY|WATCH|SELL>",
  "confidence": 0.0,
  "rules_triggered": ["<string>"],
  "explainability_summary": "<string>"
}`
}

// AgentUser builds the analyst message from the evidence set. On a retry
// pass the critic's objection is included so the second attempt can address
// it.
func (Analyst) AgentUser(ev *analysis.EvidenceSet, feedback string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze %s and respond with the JSON per schema.\n", ev.Symbol)
	b.WriteString(evidenceBlock(ev))
	if feedback != "" {
		fmt.Fprintf(&b, "\nReviewer objection from your previous attempt: %s\nAddress it in this revision.", feedback)
	}
	return b.String()
}

func (a Analyst) DirectSystem() string {
	return "You are a financial synthesis model. Use only provided evidence and numeric signals. Return strict JSON only. Never include chain-of-thought.\n\n" +
		"Produce JSON with keys: why_it_moved, sentiment, action, confidence, rules_triggered, explainability_summary. " +
		"why_it_moved must be exactly two sentences and must mention evidence absence when headlines are missing."
}

func (Analyst) DirectUser(ev *analysis.EvidenceSet) string {
	return "Input:\n" + evidenceBlock(ev)
}

func evidenceBlock(ev *analysis.EvidenceSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summary: %s\n", ev.Summary)

	if len(ev.Headlines) == 0 {
		b.WriteString("Headlines: none available\n")
	} else {
		b.WriteString("Headlines:\n")
		for _, h := range ev.Headlines {
			fmt.Fprintf(&b, "- %s (%s)\n", h.Title, h.URL)
		}
	}

	signals, err := json.Marshal(ev.Signals)
	if err == nil {
		fmt.Fprintf(&b, "Numeric signals: %s\n", signals)
	}
	return b.String()
}
