package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/betassistant/server/internal/domain/importjob"
	"github.com/betassistant/server/internal/domain/league"
	"github.com/betassistant/server/internal/platform/logging"
)

// StopNotifier lets the job service interrupt a run that is executing in
// this process. Cross-process pauses are picked up when the run reloads the
// job between leagues.
type StopNotifier interface {
	RequestStop(jobID int64)
}

type noopStopNotifier struct{}

func (noopStopNotifier) RequestStop(int64) {}

type CreateJobInput struct {
	Type      importjob.Type
	FromDate  time.Time
	ToDate    time.Time
	LeagueIDs []int64
}

type JobService struct {
	jobs     importjob.Repository
	failures importjob.FailureRepository
	leagues  league.Repository
	notifier StopNotifier
	logger   *logging.Logger
	now      func() time.Time
}

func NewJobService(
	jobs importjob.Repository,
	failures importjob.FailureRepository,
	leagues league.Repository,
	notifier StopNotifier,
	logger *logging.Logger,
) *JobService {
	if notifier == nil {
		notifier = noopStopNotifier{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &JobService{
		jobs:     jobs,
		failures: failures,
		leagues:  leagues,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Create validates the request and stores the job. When another job already
// occupies the import slot the new job waits in the queue.
func (s *JobService) Create(ctx context.Context, input CreateJobInput) (*importjob.Job, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobService.Create")
	defer span.End()

	if !input.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown job type %q", ErrInvalidInput, input.Type)
	}
	if input.FromDate.IsZero() || input.ToDate.IsZero() {
		return nil, fmt.Errorf("%w: date range is required", ErrInvalidInput)
	}
	from := truncateToDate(input.FromDate)
	to := truncateToDate(input.ToDate)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: to_date is before from_date", ErrInvalidInput)
	}

	if len(input.LeagueIDs) > 0 {
		known, err := s.leagues.ListByIDs(ctx, input.LeagueIDs)
		if err != nil {
			return nil, fmt.Errorf("resolve league filter: %w", err)
		}
		if len(known) != len(dedupeIDs(input.LeagueIDs)) {
			return nil, fmt.Errorf("%w: league filter references unknown leagues", ErrInvalidInput)
		}
	}

	active, err := s.jobs.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active jobs: %w", err)
	}

	status := importjob.StatusPending
	if active > 0 {
		status = importjob.StatusInQueue
	}

	job := &importjob.Job{
		Type:      input.Type,
		Status:    status,
		FromDate:  from,
		ToDate:    to,
		LeagueIDs: dedupeIDs(input.LeagueIDs),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.logger.InfoContext(ctx, "import job created",
		"job_id", job.ID, "type", job.Type, "status", job.Status,
		"from", from.Format("2006-01-02"), "to", to.Format("2006-01-02"))
	return job, nil
}

func (s *JobService) Get(ctx context.Context, id int64) (*importjob.Job, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobService.Get")
	defer span.End()

	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job %d", ErrNotFound, id)
	}
	return job, nil
}

func (s *JobService) List(ctx context.Context, includeHidden bool, limit int) ([]*importjob.Job, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobService.List")
	defer span.End()

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.jobs.List(ctx, includeHidden, limit)
}

func (s *JobService) ListFailures(ctx context.Context, jobID int64, limit int) ([]*importjob.Failure, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobService.ListFailures")
	defer span.End()

	if _, err := s.Get(ctx, jobID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.failures.ListByJob(ctx, jobID, limit)
}

// Pause asks a waiting or running job to stop. The checkpoint stays, so a
// later resume continues where the run left off.
func (s *JobService) Pause(ctx context.Context, id int64) (*importjob.Job, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobService.Pause")
	defer span.End()

	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case importjob.StatusPending, importjob.StatusRunning, importjob.StatusRateLimited, importjob.StatusInQueue:
	default:
		return nil, fmt.Errorf("%w: cannot pause job in status %s", ErrConflict, job.Status)
	}

	job.Status = importjob.StatusPaused
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("pause job: %w", err)
	}
	s.notifier.RequestStop(job.ID)
	s.promoteAfterSlotRelease(ctx)

	s.logger.InfoContext(ctx, "import job paused", "job_id", job.ID)
	return job, nil
}

// Resume puts a paused, rate-limited or failed job back in line for the
// worker without touching its checkpoint.
func (s *JobService) Resume(ctx context.Context, id int64) (*importjob.Job, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobService.Resume")
	defer span.End()

	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case importjob.StatusPaused, importjob.StatusRateLimited, importjob.StatusFailed:
	default:
		return nil, fmt.Errorf("%w: cannot resume job in status %s", ErrConflict, job.Status)
	}

	job.Status = importjob.StatusPending
	job.LastError = nil
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("resume job: %w", err)
	}

	s.logger.InfoContext(ctx, "import job resumed", "job_id", job.ID)
	return job, nil
}

// Retry requeues a finished job keeping checkpoint and counters, so it picks
// up whatever was left undone.
func (s *JobService) Retry(ctx context.Context, id int64) (*importjob.Job, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobService.Retry")
	defer span.End()

	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !job.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot retry job in status %s", ErrConflict, job.Status)
	}

	job.Status = importjob.StatusPending
	job.LastError = nil
	job.FinishedAt = nil
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("retry job: %w", err)
	}

	s.logger.InfoContext(ctx, "import job queued for retry", "job_id", job.ID)
	return job, nil
}

// Restart requeues the job from scratch: checkpoint and counters are wiped.
func (s *JobService) Restart(ctx context.Context, id int64) (*importjob.Job, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobService.Restart")
	defer span.End()

	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case importjob.StatusCompleted, importjob.StatusFailed, importjob.StatusPaused, importjob.StatusRateLimited:
	default:
		return nil, fmt.Errorf("%w: cannot restart job in status %s", ErrConflict, job.Status)
	}

	job.ResetProgress()
	job.Status = importjob.StatusPending
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("restart job: %w", err)
	}

	s.logger.InfoContext(ctx, "import job restarted", "job_id", job.ID)
	return job, nil
}

func (s *JobService) Cancel(ctx context.Context, id int64) (*importjob.Job, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobService.Cancel")
	defer span.End()

	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if job.Status.Terminal() {
		return nil, fmt.Errorf("%w: job already in status %s", ErrConflict, job.Status)
	}

	job.Status = importjob.StatusFailed
	message := "canceled"
	job.LastError = &message
	now := s.now().UTC()
	job.FinishedAt = &now
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("cancel job: %w", err)
	}
	s.notifier.RequestStop(job.ID)
	s.promoteAfterSlotRelease(ctx)

	s.logger.InfoContext(ctx, "import job canceled", "job_id", job.ID)
	return job, nil
}

func (s *JobService) SetHidden(ctx context.Context, id int64, hidden bool) (*importjob.Job, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobService.SetHidden")
	defer span.End()

	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	job.Hidden = hidden
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("update job visibility: %w", err)
	}
	return job, nil
}

func (s *JobService) Delete(ctx context.Context, id int64) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobService.Delete")
	defer span.End()

	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !job.Status.Terminal() {
		return fmt.Errorf("%w: cannot delete job in status %s", ErrConflict, job.Status)
	}
	if err := s.jobs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}

	s.logger.InfoContext(ctx, "import job deleted", "job_id", id)
	return nil
}

// promoteAfterSlotRelease drains the queue once a job stops occupying the
// import slot. Best effort: the repository refuses the promotion while
// another job still runs, and the worker retries on its next poll anyway.
func (s *JobService) promoteAfterSlotRelease(ctx context.Context) {
	if _, err := s.PromoteNext(ctx); err != nil {
		s.logger.WarnContext(ctx, "promote queued job failed", "error", err)
	}
}

// PromoteNext moves the oldest queued job to pending. Returns nil when the
// queue is empty.
func (s *JobService) PromoteNext(ctx context.Context) (*importjob.Job, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JobService.PromoteNext")
	defer span.End()

	promoted, err := s.jobs.PromoteOldestQueued(ctx)
	if err != nil {
		return nil, fmt.Errorf("promote queued job: %w", err)
	}
	if promoted != nil {
		s.logger.InfoContext(ctx, "queued job promoted", "job_id", promoted.ID)
	}
	return promoted, nil
}

func truncateToDate(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func dedupeIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
