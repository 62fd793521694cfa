package movers

import "strings"

// Aggregate folds a sequence of records into a RunSummary. It is total: every
// combination of per-record states maps onto exactly one status.
//
//   - success: at least one record and none carries errors
//   - partial_success: at least one record and at least one carries errors
//   - failed: no records could be produced at all
func Aggregate(records []TickerRecord) RunSummary {
	summary := RunSummary{Processed: len(records)}
	if len(records) == 0 {
		summary.Status = RunFailed
		return summary
	}

	for i := range records {
		r := &records[i]
		if r.HasErrors() {
			summary.Errored++
		}
		if r.NeedsReview {
			summary.NeedsReview++
		}
		switch {
		case strings.HasPrefix(r.Analysis.ModelUsed, "agent"):
			summary.TierCounts.Agent++
		case strings.HasPrefix(r.Analysis.ModelUsed, "openai"):
			summary.TierCounts.DirectLLM++
		default:
			summary.TierCounts.Heuristics++
		}
	}

	if summary.Errored > 0 {
		summary.Status = RunPartial
	} else {
		summary.Status = RunSuccess
	}
	return summary
}
