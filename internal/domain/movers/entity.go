package movers

import (
	"time"
)

// RunID tipe untuk Run
type RunID string

// Action enum
type Action string

const (
	ActionBuy   Action = "BUY"
	ActionWatch Action = "WATCH"
	ActionSell  Action = "SELL"
)

// RunStatus enum
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial_success"
	RunFailed  RunStatus = "failed"
)

// Recommendation tags assigned by the recommender pass.
const (
	TagTopPick       = "top_pick_candidate"
	TagMostPotential = "most_potential_candidate"
	TagContrarian    = "contrarian_bounce_candidate"
	TagMomentum      = "momentum_signal"
	TagStandard      = "standard"
)

// Headline is one piece of news evidence.
type Headline struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at,omitempty"`
}

// TickerTask is the raw ingestion output for one symbol plus its enrichment
// payload. It is owned by a single worker until processing completes; every
// enrichment field may be missing independently.
type TickerTask struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Ordinal  int    `json:"ordinal"`
	Currency string `json:"currency,omitempty"`
	Exchange string `json:"exchange,omitempty"`
	Market   string `json:"market,omitempty"`

	Price     *float64 `json:"price,omitempty"`
	AbsChange *float64 `json:"abs_change,omitempty"`
	PctChange *float64 `json:"pct_change,omitempty"`
	Volume    *float64 `json:"volume,omitempty"`

	IngestionSource       string `json:"ingestion_source"`
	IngestionFallbackUsed bool   `json:"ingestion_fallback_used"`

	Enrichment Enrichment   `json:"enrichment"`
	Errors     []StageError `json:"errors,omitempty"`
}

// Enrichment is the best-effort evidence gathered per symbol.
type Enrichment struct {
	Sector       string       `json:"sector,omitempty"`
	Industry     string       `json:"industry,omitempty"`
	EarningsDate string       `json:"earnings_date,omitempty"`
	Headlines    []Headline   `json:"headlines,omitempty"`
	PriceSeries  []float64    `json:"price_series,omitempty"`
	OpenPrice    *float64     `json:"open_price,omitempty"`
	ClosePrice   *float64     `json:"close_price,omitempty"`
	Errors       []StageError `json:"errors,omitempty"`
}

// DecisionTrace explains how an analysis was produced without exposing model
// reasoning.
type DecisionTrace struct {
	EvidenceUsed   []Headline     `json:"evidence_used"`
	NumericSignals map[string]any `json:"numeric_signals_used"`
	RulesTriggered []string       `json:"rules_triggered"`
	Explainability string         `json:"explainability_summary"`
}

// Analysis is the synthesized recommendation for one symbol. Produced exactly
// once per ticker by whichever fallback tier succeeds.
type Analysis struct {
	WhyItMoved     string        `json:"why_it_moved"`
	Sentiment      float64       `json:"sentiment"`
	Action         Action        `json:"action"`
	Confidence     float64       `json:"confidence"`
	DecisionTrace  DecisionTrace `json:"decision_trace"`
	ProvenanceURLs []string      `json:"provenance_urls"`
	ModelUsed      string        `json:"model_used"`
	Errors         []StageError  `json:"errors,omitempty"`
}

// TickerRecord is the unit handed to rendering collaborators: task + analysis
// + review flags.
type TickerRecord struct {
	Task              TickerTask `json:"ticker"`
	Analysis          Analysis   `json:"analysis"`
	NeedsReview       bool       `json:"needs_review"`
	NeedsReviewReason []string   `json:"needs_review_reason,omitempty"`
	Tags              []string   `json:"recommendation_tags,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// AllErrors collects errors accumulated across every stage of the record.
func (r *TickerRecord) AllErrors() []StageError {
	out := make([]StageError, 0, len(r.Task.Errors)+len(r.Task.Enrichment.Errors)+len(r.Analysis.Errors))
	out = append(out, r.Task.Errors...)
	out = append(out, r.Task.Enrichment.Errors...)
	out = append(out, r.Analysis.Errors...)
	return out
}

// HasErrors reports whether any stage recorded an error.
func (r *TickerRecord) HasErrors() bool {
	return len(r.Task.Errors) > 0 || len(r.Task.Enrichment.Errors) > 0 || len(r.Analysis.Errors) > 0
}

// RunSummary folds per-ticker outcomes into one run-level status. Derived,
// never mutated after the aggregator finalizes it.
type RunSummary struct {
	Processed   int       `json:"processed"`
	Errored     int       `json:"errored"`
	NeedsReview int       `json:"needs_review"`
	TierCounts  TierUsage `json:"tier_counts"`
	Status      RunStatus `json:"status"`
}

// TierUsage counts which fallback tier produced each record's analysis.
type TierUsage struct {
	Agent      int `json:"agent"`
	DirectLLM  int `json:"direct_llm"`
	Heuristics int `json:"heuristics"`
}

// Aggregate Root: Run
type Run struct {
	ID          RunID          `json:"id"`
	RequestedAt time.Time      `json:"requested_at"`
	Date        string         `json:"date"`
	Mode        string         `json:"mode"`
	Region      string         `json:"region"`
	Top         int            `json:"top"`
	Status      RunStatus      `json:"status"`
	Summary     RunSummary     `json:"summary"`
	Records     []TickerRecord `json:"records,omitempty"`
	ArtifactURL string         `json:"artifact_url,omitempty"`
	DigestURL   string         `json:"digest_url,omitempty"`
	DurationMS  int64          `json:"duration_ms"`
}
