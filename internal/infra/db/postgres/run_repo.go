package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	domain "github.com/bryanwahyu/daily-movers/internal/domain/movers"
)

type RunRepository struct{ db *sql.DB }

func NewRunRepository(db *sql.DB) *RunRepository { return &RunRepository{db: db} }

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	return db, nil
}

// SaveRun inserts or updates a run header
func (r *RunRepository) SaveRun(ctx context.Context, run *domain.Run) error {
	const q = `
INSERT INTO daily_runs
  (id, requested_at, run_date, mode, region, top_n, status,
   processed, errored, needs_review, tier_agent, tier_direct, tier_heuristics,
   artifact_url, digest_url, duration_ms)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (id) DO UPDATE SET
  status=EXCLUDED.status,
  processed=EXCLUDED.processed, errored=EXCLUDED.errored, needs_review=EXCLUDED.needs_review,
  tier_agent=EXCLUDED.tier_agent, tier_direct=EXCLUDED.tier_direct, tier_heuristics=EXCLUDED.tier_heuristics,
  artifact_url=EXCLUDED.artifact_url, digest_url=EXCLUDED.digest_url, duration_ms=EXCLUDED.duration_ms;
`
	_, err := r.db.ExecContext(ctx, q,
		run.ID, run.RequestedAt, run.Date, run.Mode, run.Region, run.Top, string(run.Status),
		run.Summary.Processed, run.Summary.Errored, run.Summary.NeedsReview,
		run.Summary.TierCounts.Agent, run.Summary.TierCounts.DirectLLM, run.Summary.TierCounts.Heuristics,
		run.ArtifactURL, run.DigestURL, run.DurationMS,
	)
	return err
}

func (r *RunRepository) GetRun(ctx context.Context, id domain.RunID) (*domain.Run, error) {
	const q = `
SELECT id, requested_at, run_date, mode, region, top_n, status,
       processed, errored, needs_review, tier_agent, tier_direct, tier_heuristics,
       artifact_url, digest_url, duration_ms
FROM daily_runs
WHERE id=$1 LIMIT 1;
`
	return scanRun(r.db.QueryRowContext(ctx, q, id))
}

func (r *RunRepository) LatestRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, requested_at, run_date, mode, region, top_n, status,
       processed, errored, needs_review, tier_agent, tier_direct, tier_heuristics,
       artifact_url, digest_url, duration_ms
FROM daily_runs
ORDER BY requested_at DESC LIMIT $1;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *RunRepository) SaveRecords(ctx context.Context, id domain.RunID, records []domain.TickerRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_run_records WHERE run_id=$1;`, id); err != nil {
		return err
	}

	const q = `
INSERT INTO daily_run_records (run_id, ordinal, symbol, needs_review, errored, payload)
VALUES ($1,$2,$3,$4,$5,$6);
`
	for i := range records {
		rec := &records[i]
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", rec.Task.Symbol, err)
		}
		if _, err := tx.ExecContext(ctx, q,
			id, rec.Task.Ordinal, rec.Task.Symbol, rec.NeedsReview, rec.HasErrors(), payload,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *RunRepository) Records(ctx context.Context, id domain.RunID) ([]domain.TickerRecord, error) {
	const q = `SELECT payload FROM daily_run_records WHERE run_id=$1 ORDER BY ordinal ASC;`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TickerRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec domain.TickerRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RunRepository) Summary(ctx context.Context, sinceDays int) (int, int, int, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	const q = `
SELECT COUNT(*), COALESCE(SUM(errored),0), COALESCE(SUM(needs_review),0)
FROM daily_runs
WHERE requested_at >= NOW() - ($1 || ' days')::interval;
`
	var runs, errored, reviewed int
	if err := r.db.QueryRowContext(ctx, q, sinceDays).Scan(&runs, &errored, &reviewed); err != nil {
		return 0, 0, 0, err
	}
	return runs, errored, reviewed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	if err := row.Scan(
		&run.ID, &run.RequestedAt, &run.Date, &run.Mode, &run.Region, &run.Top, &run.Status,
		&run.Summary.Processed, &run.Summary.Errored, &run.Summary.NeedsReview,
		&run.Summary.TierCounts.Agent, &run.Summary.TierCounts.DirectLLM, &run.Summary.TierCounts.Heuristics,
		&run.ArtifactURL, &run.DigestURL, &run.DurationMS,
	); err != nil {
		return nil, err
	}
	run.Summary.Status = run.Status
	return &run, nil
}
