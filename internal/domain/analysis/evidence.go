package analysis

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/daily-movers/internal/domain/movers"
)

const maxEvidenceHeadlines = 5

// EvidenceSet is the compact, research-stage view of a ticker: deduplicated
// headlines, normalized numeric signals, and a human-readable summary for the
// analyst. Building it is a pure transformation; malformed input simply
// yields an empty evidence set.
type EvidenceSet struct {
	Symbol    string
	Summary   string
	Headlines []movers.Headline
	Signals   map[string]any
	Price     float64
	AbsChange float64
	PctChange float64
	Volume    float64
	Sector    string
}

// HasHeadlines reports whether any headline evidence survived research.
func (e *EvidenceSet) HasHeadlines() bool { return len(e.Headlines) > 0 }

// Research transforms a task's raw enrichment into an EvidenceSet.
func Research(task *movers.TickerTask) EvidenceSet {
	ev := EvidenceSet{
		Symbol:    strings.ToUpper(strings.TrimSpace(task.Symbol)),
		Price:     deref(task.Price),
		AbsChange: deref(task.AbsChange),
		PctChange: deref(task.PctChange),
		Volume:    deref(task.Volume),
		Sector:    task.Enrichment.Sector,
	}

	seen := make(map[string]bool)
	for _, h := range task.Enrichment.Headlines {
		title := strings.TrimSpace(h.Title)
		if title == "" || h.URL == "" || seen[h.URL] {
			continue
		}
		seen[h.URL] = true
		ev.Headlines = append(ev.Headlines, movers.Headline{
			Title:       title,
			URL:         h.URL,
			PublishedAt: h.PublishedAt,
		})
		if len(ev.Headlines) >= maxEvidenceHeadlines {
			break
		}
	}

	ev.Signals = map[string]any{
		"price":              ev.Price,
		"abs_change":         ev.AbsChange,
		"pct_change":         ev.PctChange,
		"volume":             ev.Volume,
		"headline_count":     len(ev.Headlines),
		"price_trend_points": len(task.Enrichment.PriceSeries),
	}
	if ev.Sector != "" {
		ev.Signals["sector"] = ev.Sector
	}
	if task.Enrichment.Industry != "" {
		ev.Signals["industry"] = task.Enrichment.Industry
	}
	if task.Enrichment.EarningsDate != "" {
		ev.Signals["earnings_date"] = task.Enrichment.EarningsDate
	}

	ev.Summary = buildSummary(&ev, task)
	return ev
}

func buildSummary(ev *EvidenceSet, task *movers.TickerTask) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s moved %+.2f%% ($%+.2f) on volume %.0f.", ev.Symbol, ev.PctChange, ev.AbsChange, ev.Volume)
	if len(ev.Headlines) > 0 {
		titles := make([]string, 0, 3)
		for i, h := range ev.Headlines {
			if i >= 3 {
				break
			}
			titles = append(titles, truncate(h.Title, 80))
		}
		fmt.Fprintf(&sb, " Key headlines: %s.", strings.Join(titles, "; "))
	} else {
		sb.WriteString(" No fresh headline evidence available.")
	}
	if ev.Sector != "" {
		fmt.Fprintf(&sb, " Sector: %s.", ev.Sector)
	}
	if ed := task.Enrichment.EarningsDate; ed != "" {
		fmt.Fprintf(&sb, " Next earnings: %s.", ed)
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
