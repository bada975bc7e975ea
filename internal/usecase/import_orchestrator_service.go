package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/betassistant/server/internal/domain/importjob"
	"github.com/betassistant/server/internal/domain/league"
	"github.com/betassistant/server/internal/platform/logging"
)

type runVerdict string

const (
	verdictDone       runVerdict = "done"
	verdictMore       runVerdict = "more"
	verdictReschedule runVerdict = "reschedule"
	verdictStopped    runVerdict = "stopped"
)

type ImportOrchestratorConfig struct {
	PreemptiveThreshold int
	// RescheduleDelay is used when the provider gave no reset time.
	RescheduleDelay time.Duration
	// MaxBackoff caps how long the synchronous path sleeps on an exhausted
	// budget before probing again.
	MaxBackoff time.Duration
}

// ImportOrchestratorService owns the league loop of a job run: picking the
// next league, handing it to the league importer and deciding whether to
// continue, finish, stop or back off.
type ImportOrchestratorService struct {
	jobs           importjob.Repository
	leagues        league.Repository
	provider       SportsDataProvider
	monitor        *RateLimitMonitor
	leagueImporter *LeagueImportService
	logger         *logging.Logger

	preemptiveThreshold int
	rescheduleDelay     time.Duration
	maxBackoff          time.Duration

	runs  sync.Map
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewImportOrchestratorService(
	jobs importjob.Repository,
	leagues league.Repository,
	provider SportsDataProvider,
	monitor *RateLimitMonitor,
	leagueImporter *LeagueImportService,
	logger *logging.Logger,
	cfg ImportOrchestratorConfig,
) *ImportOrchestratorService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.PreemptiveThreshold <= 0 {
		cfg.PreemptiveThreshold = 10
	}
	if cfg.RescheduleDelay <= 0 {
		cfg.RescheduleDelay = 15 * time.Minute
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Hour
	}
	return &ImportOrchestratorService{
		jobs:                jobs,
		leagues:             leagues,
		provider:            provider,
		monitor:             monitor,
		leagueImporter:      leagueImporter,
		logger:              logger,
		preemptiveThreshold: cfg.PreemptiveThreshold,
		rescheduleDelay:     cfg.RescheduleDelay,
		maxBackoff:          cfg.MaxBackoff,
		now:                 time.Now,
		sleep:               sleepContext,
	}
}

// RequestStop flips the stop flag of a run executing in this process.
// Implements StopNotifier for the job service.
func (s *ImportOrchestratorService) RequestStop(jobID int64) {
	if value, ok := s.runs.Load(jobID); ok {
		value.(*importRun).RequestStop()
	}
}

// ExecuteJob drives a claimed job until it completes, stops or backs off.
// The worker invokes this after claiming; the job is already running.
func (s *ImportOrchestratorService) ExecuteJob(ctx context.Context, jobID int64) (*importjob.Job, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ImportOrchestratorService.ExecuteJob")
	defer span.End()

	run, err := s.beginRun(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer s.runs.Delete(jobID)

	for {
		verdict, err := s.processLeagueOnce(ctx, run)
		if err != nil {
			return run.job, s.failJob(ctx, run.job, err)
		}

		switch verdict {
		case verdictMore:
			continue
		case verdictDone:
			return run.job, s.completeJob(ctx, run.job)
		case verdictStopped:
			s.logger.InfoContext(ctx, "import run stopped", "job_id", run.job.ID)
			return run.job, nil
		case verdictReschedule:
			if err := s.rescheduleJob(ctx, run.job); err != nil {
				return run.job, err
			}
			return run.job, nil
		}
	}
}

// ImportDateRange is the synchronous entry point: it runs the job to the end
// in this call, sleeping through exhausted budgets instead of handing the
// job back to the scheduler.
func (s *ImportOrchestratorService) ImportDateRange(ctx context.Context, jobID int64) (*importjob.Job, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ImportOrchestratorService.ImportDateRange")
	defer span.End()

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job %d", ErrNotFound, jobID)
	}
	switch job.Status {
	case importjob.StatusPending, importjob.StatusInQueue, importjob.StatusRateLimited:
	default:
		return nil, fmt.Errorf("%w: job %d is %s", ErrConflict, jobID, job.Status)
	}

	job.Status = importjob.StatusRunning
	if job.StartedAt == nil {
		started := s.now().UTC()
		job.StartedAt = &started
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("mark job running: %w", err)
	}

	run, err := s.beginRun(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer s.runs.Delete(jobID)

	for {
		verdict, err := s.processLeagueOnce(ctx, run)
		if err != nil {
			return run.job, s.failJob(ctx, run.job, err)
		}

		switch verdict {
		case verdictMore:
			continue
		case verdictDone:
			return run.job, s.completeJob(ctx, run.job)
		case verdictStopped:
			return run.job, nil
		case verdictReschedule:
			if err := s.backoffInline(ctx, run); err != nil {
				return run.job, err
			}
		}
	}
}

func (s *ImportOrchestratorService) beginRun(ctx context.Context, jobID int64) (*importRun, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job %d", ErrNotFound, jobID)
	}

	var targets []league.League
	if len(job.LeagueIDs) > 0 {
		targets, err = s.leagues.ListByIDs(ctx, job.LeagueIDs)
	} else {
		targets, err = s.leagues.ListEnabled(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve leagues: %w", err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no leagues to import", ErrInvalidInput)
	}

	run := newImportRun(job, targets, s.provider)
	s.runs.Store(job.ID, run)
	return run, nil
}

// processLeagueOnce handles exactly one league of the run. A fresh status is
// read first so a pause issued by another process is observed between
// leagues.
func (s *ImportOrchestratorService) processLeagueOnce(ctx context.Context, run *importRun) (runVerdict, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	fresh, err := s.jobs.GetByID(ctx, run.job.ID)
	if err != nil {
		return "", fmt.Errorf("reload job: %w", err)
	}
	if fresh == nil {
		return "", fmt.Errorf("%w: job %d", ErrNotFound, run.job.ID)
	}
	if fresh.Status != importjob.StatusRunning {
		return verdictStopped, nil
	}
	if run.Stopped() {
		return verdictStopped, nil
	}

	lg, ok := s.nextLeague(run)
	if !ok {
		return verdictDone, nil
	}

	if s.monitor.BelowThreshold(s.preemptiveThreshold) {
		return verdictReschedule, nil
	}

	job := run.job
	job.CurrentLeagueID = &lg.ID
	if err := s.jobs.Update(ctx, job); err != nil {
		return "", fmt.Errorf("persist current league: %w", err)
	}

	importErr := s.leagueImporter.ImportLeague(ctx, run, lg)
	switch {
	case importErr == nil:
		job.MarkLeagueCompleted(lg.ID)
		job.CurrentLeagueID = nil
		job.CurrentDate = nil
		if err := s.jobs.Update(ctx, job); err != nil {
			return "", fmt.Errorf("persist league completion: %w", err)
		}
		return verdictMore, nil

	case errors.Is(importErr, errRunStopped):
		return verdictStopped, nil

	case isRateLimitError(importErr):
		return verdictReschedule, nil

	case errors.Is(importErr, context.Canceled), errors.Is(importErr, context.DeadlineExceeded):
		return "", importErr

	default:
		// A broken league must not sink the whole job: record it, move on.
		job.ErrorCount++
		message := fmt.Sprintf("league %d: %v", lg.ID, importErr)
		job.LastError = &message
		job.MarkLeagueCompleted(lg.ID)
		job.CurrentLeagueID = nil
		job.CurrentDate = nil
		if err := s.jobs.Update(ctx, job); err != nil {
			return "", fmt.Errorf("persist league failure: %w", err)
		}
		s.logger.ErrorContext(ctx, "league import failed",
			"job_id", job.ID, "league_id", lg.ID, "error", importErr)
		return verdictMore, nil
	}
}

func (s *ImportOrchestratorService) nextLeague(run *importRun) (league.League, bool) {
	job := run.job
	if job.CurrentLeagueID != nil && !job.LeagueCompleted(*job.CurrentLeagueID) {
		for _, lg := range run.leagues {
			if lg.ID == *job.CurrentLeagueID {
				return lg, true
			}
		}
	}
	for _, lg := range run.leagues {
		if !job.LeagueCompleted(lg.ID) {
			return lg, true
		}
	}
	return league.League{}, false
}

func (s *ImportOrchestratorService) completeJob(ctx context.Context, job *importjob.Job) error {
	job.Status = importjob.StatusCompleted
	job.CurrentLeagueID = nil
	job.CurrentDate = nil
	finished := s.now().UTC()
	job.FinishedAt = &finished
	job.RateLimitRemaining, job.RateLimitResetAt = s.monitor.Snapshot()
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}

	s.logger.InfoContext(ctx, "import job completed",
		"job_id", job.ID, "imported", job.ImportedCount, "updated", job.UpdatedCount,
		"skipped", job.SkippedCount, "errors", job.ErrorCount)
	return nil
}

func (s *ImportOrchestratorService) failJob(ctx context.Context, job *importjob.Job, cause error) error {
	if errors.Is(cause, context.Canceled) {
		// Shutdown, not failure: leave the job as is so the next worker
		// claim resumes it.
		job.Status = importjob.StatusPending
		if err := s.jobs.Update(ctx, job); err != nil {
			s.logger.Error("release interrupted job failed", "job_id", job.ID, "error", err)
		}
		return cause
	}

	job.Status = importjob.StatusFailed
	message := cause.Error()
	job.LastError = &message
	finished := s.now().UTC()
	job.FinishedAt = &finished
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.ErrorContext(ctx, "mark job failed failed", "job_id", job.ID, "error", err)
	}

	s.logger.ErrorContext(ctx, "import job failed", "job_id", job.ID, "error", cause)
	return cause
}

// rescheduleJob parks the job until the budget recovers; the scheduler picks
// it up again once the reset time passes.
func (s *ImportOrchestratorService) rescheduleJob(ctx context.Context, job *importjob.Job) error {
	job.Status = importjob.StatusRateLimited
	job.RateLimitRemaining, job.RateLimitResetAt = s.monitor.Snapshot()
	if job.RateLimitResetAt == nil || job.RateLimitResetAt.IsZero() {
		resetAt := s.now().UTC().Add(s.rescheduleDelay)
		job.RateLimitResetAt = &resetAt
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("mark job rate limited: %w", err)
	}

	s.logger.WarnContext(ctx, "import job rate limited",
		"job_id", job.ID, "reset_at", job.RateLimitResetAt)
	return nil
}

// backoffInline sleeps through the budget window for the synchronous path,
// then resumes the same run.
func (s *ImportOrchestratorService) backoffInline(ctx context.Context, run *importRun) error {
	job := run.job
	if err := s.rescheduleJob(ctx, job); err != nil {
		return err
	}

	wait := s.rescheduleDelay
	if job.RateLimitResetAt != nil {
		if until := job.RateLimitResetAt.Sub(s.now()); until > 0 {
			wait = until
		}
	}
	if wait > s.maxBackoff {
		wait = s.maxBackoff
	}

	s.logger.InfoContext(ctx, "waiting for request budget",
		"job_id", job.ID, "wait", wait.String())
	if err := s.sleep(ctx, wait); err != nil {
		return err
	}
	if run.Stopped() {
		return nil
	}

	job.Status = importjob.StatusRunning
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("resume job after backoff: %w", err)
	}
	return nil
}

func isRateLimitError(err error) bool {
	var rateLimited *RateLimitError
	return errors.As(err, &rateLimited)
}
