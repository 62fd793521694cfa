package render

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/daily-movers/internal/domain/movers"
)

func sampleRun() *domain.Run {
	pct := 6.5
	return &domain.Run{
		ID:          "run-1",
		RequestedAt: time.Now(),
		Date:        "2026-08-28",
		Mode:        "movers",
		Region:      "us",
		Top:         2,
		Status:      domain.RunSuccess,
		Summary:     domain.RunSummary{Processed: 2, Status: domain.RunSuccess},
		Records: []domain.TickerRecord{
			{
				Task: domain.TickerTask{Symbol: "AAPL", Ordinal: 0, PctChange: &pct},
				Analysis: domain.Analysis{
					WhyItMoved: "Shares rose after earnings. <script>alert(1)</script> was not sanitized upstream.",
					Action:     domain.ActionBuy,
					Confidence: 0.82,
				},
				Tags: []string{domain.TagTopPick},
			},
			{
				Task:              domain.TickerTask{Symbol: "TSLA", Ordinal: 1},
				Analysis:          domain.Analysis{Action: domain.ActionWatch, Confidence: 0.5},
				NeedsReview:       true,
				NeedsReviewReason: []string{domain.ReasonLowConfidence},
				Tags:              []string{domain.TagStandard},
			},
		},
	}
}

func TestRenderDigestEscapesAndLists(t *testing.T) {
	dir := t.TempDir()
	path, err := HTMLRenderer{}.RenderDigest(sampleRun(), dir)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	page := string(raw)

	assert.Contains(t, page, "AAPL")
	assert.Contains(t, page, "TSLA")
	assert.Contains(t, page, "+6.50%")
	assert.Contains(t, page, "heuristics", "records without a model identifier show the heuristics tier")
	assert.Contains(t, page, domain.ReasonLowConfidence)
	assert.NotContains(t, page, "<script>alert(1)</script>", "upstream text must be escaped")
	assert.Contains(t, page, "&lt;script&gt;")
}

func TestRenderArchiveOneLinePerRecord(t *testing.T) {
	dir := t.TempDir()
	path, err := HTMLRenderer{}.RenderArchive(sampleRun(), dir)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec domain.TickerRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 2, lines)
}
