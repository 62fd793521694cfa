package movers

import (
	"fmt"
	"math"
)

// Review reason strings. These are stable identifiers consumed by renderers
// and by reviewers reading the digest, so they are spelled out once here.
const (
	ReasonLowConfidence     = "confidence below threshold"
	ReasonExtremeMove       = "abs(%change) > 15"
	ReasonNoHeadlines       = "no headline evidence"
	ReasonIngestionFallback = "ingestion fallback used"
)

// HITLThresholds are the tunables for the review rules. They arrive from
// config; the evaluator itself has no defaults.
type HITLThresholds struct {
	Confidence float64
	PctChange  float64
}

// EvaluateHITL is the pure human-in-the-loop rule evaluator. It returns the
// review flag plus the reasons that fired. The reasons list is non-empty iff
// the flag is true; callers can rely on that invariant.
func EvaluateHITL(record *TickerRecord, th HITLThresholds) (bool, []string) {
	var reasons []string

	if record.Analysis.Confidence < th.Confidence {
		reasons = append(reasons, ReasonLowConfidence)
	}
	if pct := record.Task.PctChange; pct != nil && math.Abs(*pct) > th.PctChange {
		reasons = append(reasons, ReasonExtremeMove)
	}
	if len(record.Task.Enrichment.Headlines) == 0 {
		reasons = append(reasons, ReasonNoHeadlines)
	}
	if record.Task.IngestionFallbackUsed {
		reasons = append(reasons, ReasonIngestionFallback)
	}
	for _, stage := range errorStages(record) {
		reasons = append(reasons, fmt.Sprintf("%s error", stage))
	}

	return len(reasons) > 0, reasons
}

// ApplyHITL stamps the record with the evaluator's verdict.
func ApplyHITL(record *TickerRecord, th HITLThresholds) {
	flagged, reasons := EvaluateHITL(record, th)
	record.NeedsReview = flagged
	record.NeedsReviewReason = reasons
}

// errorStages returns the distinct stages that recorded errors, in the order
// the pipeline runs them.
func errorStages(record *TickerRecord) []string {
	seen := make(map[string]bool)
	var stages []string
	for _, e := range record.AllErrors() {
		if e.Stage == "" || seen[e.Stage] {
			continue
		}
		seen[e.Stage] = true
		stages = append(stages, e.Stage)
	}
	return stages
}
