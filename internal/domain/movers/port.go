package movers

import "context"

// Repository port (interface untuk persistence)
type Repository interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id RunID) (*Run, error)
	LatestRuns(ctx context.Context, limit int) ([]*Run, error)
	SaveRecords(ctx context.Context, id RunID, records []TickerRecord) error
	Records(ctx context.Context, id RunID) ([]TickerRecord, error)
	Summary(ctx context.Context, sinceDays int) (runs int, errored int, reviewed int, err error)
}

// Ingestor produces the ordered, deduplicated task list for a run, or fails
// with an *IngestionError that aborts the run before any task starts.
type Ingestor interface {
	Ingest(ctx context.Context, region string, top int) ([]TickerTask, error)
}

// Enricher fills a task's enrichment payload. It never returns an error:
// per-field failures are recorded inside the returned Enrichment.
type Enricher interface {
	Enrich(ctx context.Context, task *TickerTask) Enrichment
}

// ArtifactStore port (interface untuk penyimpanan artefak)
type ArtifactStore interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
	UploadAndCleanup(ctx context.Context, localPath, key string) (string, error)
}
