package analysis

import (
	"math"

	"github.com/bryanwahyu/daily-movers/internal/domain/movers"
)

// momentumPctThreshold is the absolute percent move above which a matching
// sentiment sign marks a momentum signal.
const momentumPctThreshold = 8.0

// RecordTags computes the tags that depend only on a single record.
func RecordTags(rec *movers.TickerRecord) []string {
	var tags []string
	pct := pctOf(rec)
	sentiment := rec.Analysis.Sentiment

	if pct < 0 && sentiment > 0 {
		tags = append(tags, movers.TagContrarian)
	}
	if math.Abs(pct) >= momentumPctThreshold && pct*sentiment > 0 {
		tags = append(tags, movers.TagMomentum)
	}
	return tags
}

// ApplyTags stamps every record with its own tags plus the batch-relative
// picks: the strongest BUY by confidence weighted sentiment and the most
// confident WATCH. Records that earn nothing are tagged standard.
func ApplyTags(records []movers.TickerRecord) {
	topPick := -1
	topScore := 0.0
	mostPotential := -1
	potentialScore := 0.0

	for i := range records {
		records[i].Tags = RecordTags(&records[i])

		a := records[i].Analysis
		switch a.Action {
		case movers.ActionBuy:
			score := a.Confidence * math.Abs(a.Sentiment)
			if topPick == -1 || score > topScore {
				topPick = i
				topScore = score
			}
		case movers.ActionWatch:
			if mostPotential == -1 || a.Confidence > potentialScore {
				mostPotential = i
				potentialScore = a.Confidence
			}
		}
	}

	if topPick != -1 {
		records[topPick].Tags = append(records[topPick].Tags, movers.TagTopPick)
	}
	if mostPotential != -1 {
		records[mostPotential].Tags = append(records[mostPotential].Tags, movers.TagMostPotential)
	}
	for i := range records {
		if len(records[i].Tags) == 0 {
			records[i].Tags = []string{movers.TagStandard}
		}
	}
}

func pctOf(rec *movers.TickerRecord) float64 {
	if rec.Task.PctChange == nil {
		return 0
	}
	return *rec.Task.PctChange
}
