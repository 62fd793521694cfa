package movers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/daily-movers/internal/domain/analysis"
	domain "github.com/bryanwahyu/daily-movers/internal/domain/movers"
)

// processFunc turns one task into a finished record. It runs inside a worker
// and must tolerate cancellation via ctx.
type processFunc func(ctx context.Context, task domain.TickerTask) domain.TickerRecord

// scheduler is a fixed-size worker pool with per-task isolation: a panic or a
// blown wall-clock ceiling in one task produces an errored record for that
// ticker and never disturbs its siblings. Output keeps input order.
type scheduler struct {
	workers     int
	taskTimeout time.Duration
	log         zerolog.Logger
}

func newScheduler(workers int, taskTimeout time.Duration, log zerolog.Logger) *scheduler {
	if workers < 1 {
		workers = 1
	}
	return &scheduler{workers: workers, taskTimeout: taskTimeout, log: log}
}

func (s *scheduler) run(ctx context.Context, tasks []domain.TickerTask, process processFunc) []domain.TickerRecord {
	if len(tasks) == 0 {
		return nil
	}

	type job struct {
		index int
		task  domain.TickerTask
	}

	jobs := make(chan job)
	records := make([]domain.TickerRecord, len(tasks))

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				records[j.index] = s.runOne(ctx, j.task, process)
			}
		}()
	}

	for i, task := range tasks {
		jobs <- job{index: i, task: task}
	}
	close(jobs)
	wg.Wait()

	return records
}

// runOne executes a single task under its wall-clock ceiling with panic
// capture. The inner goroutine may outlive the ceiling; its result is then
// discarded in favor of a timeout record.
func (s *scheduler) runOne(ctx context.Context, task domain.TickerTask, process processFunc) domain.TickerRecord {
	taskCtx := ctx
	var cancel context.CancelFunc
	if s.taskTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, s.taskTimeout)
		defer cancel()
	}

	done := make(chan domain.TickerRecord, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Str("symbol", task.Symbol).Interface("panic", r).Msg("worker panic captured")
				done <- failedRecord(task, "panic", fmt.Sprintf("worker panic: %v", r))
			}
		}()
		done <- process(taskCtx, task)
	}()

	select {
	case record := <-done:
		return record
	case <-taskCtx.Done():
		s.log.Warn().Str("symbol", task.Symbol).Dur("ceiling", s.taskTimeout).Msg("task exceeded wall clock ceiling")
		return failedRecord(task, "timeout", fmt.Sprintf("task exceeded %s ceiling", s.taskTimeout))
	}
}

// failedRecord still carries a heuristic analysis so downstream consumers
// never see a record without a recommendation.
func failedRecord(task domain.TickerTask, errType, message string) domain.TickerRecord {
	task.Errors = append(task.Errors, domain.StageError{
		Stage:        domain.StageProcessing,
		ErrorType:    errType,
		ErrorMessage: message,
	})
	return domain.TickerRecord{
		Task:     task,
		Analysis: analysis.AnalyzeWithHeuristics(&task),
	}
}
