package movers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/daily-movers/internal/domain/analysis"
	domain "github.com/bryanwahyu/daily-movers/internal/domain/movers"
)

// Service implements use-cases untuk daily runs.
// Service is designed to be used concurrently and is thread-safe.
type Service struct {
	Repo       domain.Repository
	Ingestor   domain.Ingestor
	Enricher   domain.Enricher
	Controller *analysis.Controller
	Artifacts  domain.ArtifactStore
	Renderer   Renderer
	Clock      Clock
	Log        zerolog.Logger

	Workers     int
	TaskTimeout time.Duration
	Thresholds  domain.HITLThresholds
}

// Clock abstraction supaya gampang ditest
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Renderer produces the run artifacts on local disk and returns their paths.
type Renderer interface {
	RenderDigest(run *domain.Run, dir string) (string, error)
	RenderArchive(run *domain.Run, dir string) (string, error)
}

//
// ==== USE CASES ====
//

// Command untuk trigger run
type TriggerRunCommand struct {
	Date   string
	Mode   string
	Region string
	Top    int
}

type TriggerRunResult struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	Summary     domain.RunSummary `json:"summary"`
	ArtifactURL string            `json:"artifact_url,omitempty"`
	DigestURL   string            `json:"digest_url,omitempty"`
	DurationMS  int64             `json:"duration_ms"`
}

// TriggerRunUntilDone jalanin run dengan context.Background(),
// cocok dipanggil dari goroutine di router supaya gak kena context canceled.
func (s *Service) TriggerRunUntilDone(cmd TriggerRunCommand) (TriggerRunResult, error) {
	return s.TriggerRun(context.Background(), cmd)
}

// TriggerRun executes a full pipeline pass: ingest, enrich and analyze every
// ticker, tag and review the batch, aggregate, render artifacts, persist.
func (s *Service) TriggerRun(ctx context.Context, cmd TriggerRunCommand) (TriggerRunResult, error) {
	start := s.Clock.Now()
	run := &domain.Run{
		ID:          domain.RunID(uuid.NewString()),
		RequestedAt: start,
		Date:        s.runDate(cmd.Date, start),
		Mode:        defaultString(cmd.Mode, "movers"),
		Region:      defaultString(cmd.Region, "us"),
		Top:         defaultInt(cmd.Top, 25),
	}

	s.Log.Info().
		Str("run_id", string(run.ID)).
		Str("mode", run.Mode).
		Str("region", run.Region).
		Int("top", run.Top).
		Msg("run started")

	tasks, err := s.Ingestor.Ingest(ctx, run.Region, run.Top)
	if err != nil {
		return s.finishFailed(ctx, run, start, err)
	}
	if len(tasks) == 0 {
		return s.finishFailed(ctx, run, start, &domain.IngestionError{Message: "ingestion resolved zero symbols"})
	}

	sched := newScheduler(s.Workers, s.TaskTimeout, s.Log)
	records := sched.run(ctx, tasks, s.processTask)

	analysis.ApplyTags(records)
	for i := range records {
		domain.ApplyHITL(&records[i], s.Thresholds)
	}

	run.Records = records
	run.Summary = domain.Aggregate(records)
	run.Status = run.Summary.Status
	s.renderAndUpload(ctx, run)
	run.DurationMS = s.Clock.Now().Sub(start).Milliseconds()

	if err := s.persist(ctx, run); err != nil {
		s.Log.Error().Err(err).Str("run_id", string(run.ID)).Msg("run persisted partially")
	}

	s.Log.Info().
		Str("run_id", string(run.ID)).
		Str("status", string(run.Status)).
		Int("processed", run.Summary.Processed).
		Int("errored", run.Summary.Errored).
		Int("needs_review", run.Summary.NeedsReview).
		Int64("duration_ms", run.DurationMS).
		Msg("run finished")

	return resultOf(run), nil
}

// processTask runs inside a pool worker. Enrichment failures become record
// errors; analysis always produces something through the fallback chain.
func (s *Service) processTask(ctx context.Context, task domain.TickerTask) domain.TickerRecord {
	task.Enrichment = s.Enricher.Enrich(ctx, &task)

	result, degradations := s.Controller.Produce(ctx, task)
	result.Errors = degradations

	return domain.TickerRecord{
		Task:      task,
		Analysis:  result,
		CreatedAt: s.Clock.Now(),
	}
}

// GetRun returns a stored run with its records.
func (s *Service) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	run, err := s.Repo.GetRun(ctx, domain.RunID(id))
	if err != nil {
		return nil, err
	}
	records, err := s.Repo.Records(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Records = records
	return run, nil
}

// LatestRuns lists recent runs without their record payloads.
func (s *Service) LatestRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.Repo.LatestRuns(ctx, limit)
}

type UsageSummary struct {
	Runs     int `json:"runs"`
	Errored  int `json:"errored"`
	Reviewed int `json:"reviewed"`
}

// Summary agregasi ringan untuk dashboard.
func (s *Service) Summary(ctx context.Context, sinceDays int) (UsageSummary, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	runs, errored, reviewed, err := s.Repo.Summary(ctx, sinceDays)
	if err != nil {
		return UsageSummary{}, err
	}
	return UsageSummary{Runs: runs, Errored: errored, Reviewed: reviewed}, nil
}

func (s *Service) finishFailed(ctx context.Context, run *domain.Run, start time.Time, cause error) (TriggerRunResult, error) {
	run.Summary = domain.Aggregate(nil)
	run.Status = run.Summary.Status
	run.DurationMS = s.Clock.Now().Sub(start).Milliseconds()

	s.Log.Error().Err(cause).Str("run_id", string(run.ID)).Msg("run failed before any task started")
	if err := s.persist(ctx, run); err != nil {
		s.Log.Error().Err(err).Str("run_id", string(run.ID)).Msg("failed run not persisted")
	}
	return resultOf(run), fmt.Errorf("ingestion: %w", cause)
}

func (s *Service) persist(ctx context.Context, run *domain.Run) error {
	if s.Repo == nil {
		return nil
	}
	if err := s.Repo.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if len(run.Records) > 0 {
		if err := s.Repo.SaveRecords(ctx, run.ID, run.Records); err != nil {
			return fmt.Errorf("save records: %w", err)
		}
	}
	return nil
}

// renderAndUpload builds the digest and archive artifacts and ships them to
// object storage. Artifact failures are logged, never fatal to the run.
func (s *Service) renderAndUpload(ctx context.Context, run *domain.Run) {
	if s.Renderer == nil || s.Artifacts == nil {
		return
	}
	dir, err := os.MkdirTemp("", "daily-movers-*")
	if err != nil {
		s.Log.Warn().Err(err).Msg("artifact workspace unavailable")
		return
	}
	defer os.RemoveAll(dir)

	if path, err := s.Renderer.RenderDigest(run, dir); err != nil {
		s.Log.Warn().Err(err).Str("run_id", string(run.ID)).Msg("digest render failed")
	} else {
		key := filepath.Join("runs", run.Date, string(run.ID), "digest.html")
		if url, err := s.Artifacts.UploadAndCleanup(ctx, path, key); err != nil {
			s.Log.Warn().Err(err).Str("run_id", string(run.ID)).Msg("digest upload failed")
		} else {
			run.DigestURL = url
		}
	}

	if path, err := s.Renderer.RenderArchive(run, dir); err != nil {
		s.Log.Warn().Err(err).Str("run_id", string(run.ID)).Msg("archive render failed")
	} else {
		key := filepath.Join("runs", run.Date, string(run.ID), "archive.jsonl")
		if url, err := s.Artifacts.UploadAndCleanup(ctx, path, key); err != nil {
			s.Log.Warn().Err(err).Str("run_id", string(run.ID)).Msg("archive upload failed")
		} else {
			run.ArtifactURL = url
		}
	}
}

func (s *Service) runDate(requested string, now time.Time) string {
	if requested != "" {
		return requested
	}
	return now.Format("2006-01-02")
}

func resultOf(run *domain.Run) TriggerRunResult {
	return TriggerRunResult{
		ID:          string(run.ID),
		Status:      string(run.Status),
		Summary:     run.Summary,
		ArtifactURL: run.ArtifactURL,
		DigestURL:   run.DigestURL,
		DurationMS:  run.DurationMS,
	}
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
