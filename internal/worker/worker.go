package worker

import (
	"context"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/betassistant/server/internal/domain/importjob"
	"github.com/betassistant/server/internal/platform/logging"
	"github.com/betassistant/server/internal/usecase"
)

// CompletionNotifier is invoked after a job reaches a terminal status.
// Failures are logged and dropped; notification is never on the import path.
type CompletionNotifier interface {
	NotifyJobFinished(ctx context.Context, job *importjob.Job) error
}

type NoopNotifier struct{}

func (NoopNotifier) NotifyJobFinished(context.Context, *importjob.Job) error { return nil }

type Config struct {
	PollInterval time.Duration
	// HookWorkers bounds the goroutines running completion hooks.
	HookWorkers int
}

// Worker polls for pending jobs and runs them one at a time. The process
// claim flag plus the repository's atomic claim guarantee a single in-flight
// job even with several worker processes.
type Worker struct {
	jobs         importjob.Repository
	jobService   *usecase.JobService
	orchestrator *usecase.ImportOrchestratorService
	notifier     CompletionNotifier
	logger       *logging.Logger

	pollInterval time.Duration
	processing   atomicJobID
	hooks        *ants.Pool
}

func New(
	jobs importjob.Repository,
	jobService *usecase.JobService,
	orchestrator *usecase.ImportOrchestratorService,
	notifier CompletionNotifier,
	logger *logging.Logger,
	cfg Config,
) (*Worker, error) {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	workers := cfg.HookWorkers
	if workers <= 0 {
		workers = 2
	}

	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	return &Worker{
		jobs:         jobs,
		jobService:   jobService,
		orchestrator: orchestrator,
		notifier:     notifier,
		logger:       logger,
		pollInterval: interval,
		hooks:        pool,
	}, nil
}

// Run blocks until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("import worker started", "poll_interval", w.pollInterval.String())
	defer w.hooks.Release()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("import worker stopping")
			return ctx.Err()
		case <-timer.C:
		}

		again := w.pollOnce(ctx)
		if ctx.Err() != nil {
			w.logger.Info("import worker stopping")
			return ctx.Err()
		}

		if again {
			// A queued job was promoted; pick it up now instead of
			// sleeping a full interval.
			timer.Reset(0)
			continue
		}
		timer.Reset(w.pollInterval)
	}
}

// pollOnce claims at most one job and runs it to a stopping point. Returns
// true when another poll should happen immediately.
func (w *Worker) pollOnce(ctx context.Context) bool {
	if !w.processing.TryAcquire() {
		return false
	}
	defer w.processing.Release()

	job, err := w.jobs.ClaimNextPending(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "claim pending job failed", "error", err)
		return false
	}
	if job == nil {
		// Nothing claimable, but the slot may have been freed between
		// polls (pause, cancel); the queue must still drain.
		return w.promoteNext(ctx)
	}

	w.processing.Set(job.ID)
	w.logger.InfoContext(ctx, "job claimed", "job_id", job.ID, "type", job.Type)

	final, err := w.orchestrator.ExecuteJob(ctx, job.ID)
	if err != nil {
		w.logger.ErrorContext(ctx, "job run ended with error", "job_id", job.ID, "error", err)
	}
	if final != nil && final.Status.Terminal() {
		w.dispatchHooks(final)
	}

	return w.promoteNext(ctx)
}

// promoteNext drains the queue by one. Returns true when a job was promoted,
// so the caller re-polls immediately instead of sleeping.
func (w *Worker) promoteNext(ctx context.Context) bool {
	promoted, err := w.jobService.PromoteNext(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "promote next job failed", "error", err)
		return false
	}
	return promoted != nil
}

// ProcessingJobID reports the id of the job currently running in this
// process, or zero.
func (w *Worker) ProcessingJobID() int64 {
	return w.processing.Current()
}

func (w *Worker) dispatchHooks(job *importjob.Job) {
	snapshot := *job
	err := w.hooks.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := w.notifier.NotifyJobFinished(ctx, &snapshot); err != nil {
			w.logger.Warn("completion hook failed", "job_id", snapshot.ID, "error", err)
		}
	})
	if err != nil {
		w.logger.Warn("completion hook dropped", "job_id", job.ID, "error", err)
	}
}
