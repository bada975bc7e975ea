package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/betassistant/server/internal/domain/importjob"
)

// ImportJobRepository is the in-memory mirror of the postgres store, used by
// tests and by dev mode when no database is configured.
type ImportJobRepository struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*importjob.Job
	now    func() time.Time
}

func NewImportJobRepository() *ImportJobRepository {
	return &ImportJobRepository{
		nextID: 1,
		jobs:   make(map[int64]*importjob.Job),
		now:    time.Now,
	}
}

func (r *ImportJobRepository) Create(_ context.Context, job *importjob.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job.ID = r.nextID
	r.nextID++
	now := r.now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *ImportJobRepository) GetByID(_ context.Context, id int64) (*importjob.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	return cloneJob(job), nil
}

func (r *ImportJobRepository) Update(_ context.Context, job *importjob.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return nil
	}
	job.UpdatedAt = r.now().UTC()
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *ImportJobRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.jobs, id)
	return nil
}

func (r *ImportJobRepository) List(_ context.Context, includeHidden bool, limit int) ([]*importjob.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*importjob.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if !includeHidden && job.Hidden {
			continue
		}
		out = append(out, cloneJob(job))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ImportJobRepository) CountActive(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, job := range r.jobs {
		if job.Status.Active() {
			count++
		}
	}
	return count, nil
}

// ClaimNextPending mirrors the postgres claim: a rate-limited job whose
// reset time has passed comes first, and a pending job is only claimable
// while no job holds the running/rate_limited slot.
func (r *ImportJobRepository) ClaimNextPending(_ context.Context) (*importjob.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	candidate := r.oldestWhere(func(job *importjob.Job) bool {
		if job.Status != importjob.StatusRateLimited {
			return false
		}
		return job.RateLimitResetAt == nil || !job.RateLimitResetAt.After(now)
	})
	if candidate == nil && !r.slotHeldLocked() {
		candidate = r.oldestWhere(func(job *importjob.Job) bool {
			return job.Status == importjob.StatusPending
		})
	}
	if candidate == nil {
		return nil, nil
	}

	candidate.Status = importjob.StatusRunning
	candidate.RateLimitRemaining = nil
	candidate.RateLimitResetAt = nil
	if candidate.StartedAt == nil {
		candidate.StartedAt = &now
	}
	candidate.UpdatedAt = now
	return cloneJob(candidate), nil
}

func (r *ImportJobRepository) PromoteOldestQueued(_ context.Context) (*importjob.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slotHeldLocked() {
		return nil, nil
	}
	candidate := r.oldestWhere(func(job *importjob.Job) bool {
		return job.Status == importjob.StatusInQueue
	})
	if candidate == nil {
		return nil, nil
	}

	candidate.Status = importjob.StatusPending
	candidate.UpdatedAt = r.now().UTC()
	return cloneJob(candidate), nil
}

// slotHeldLocked reports whether any job occupies the single import slot.
// Callers must hold r.mu.
func (r *ImportJobRepository) slotHeldLocked() bool {
	for _, job := range r.jobs {
		if job.Status == importjob.StatusRunning || job.Status == importjob.StatusRateLimited {
			return true
		}
	}
	return false
}

func (r *ImportJobRepository) oldestWhere(matches func(*importjob.Job) bool) *importjob.Job {
	var candidate *importjob.Job
	for _, job := range r.jobs {
		if !matches(job) {
			continue
		}
		if candidate == nil ||
			job.CreatedAt.Before(candidate.CreatedAt) ||
			(job.CreatedAt.Equal(candidate.CreatedAt) && job.ID < candidate.ID) {
			candidate = job
		}
	}
	return candidate
}

func cloneJob(job *importjob.Job) *importjob.Job {
	clone := *job
	clone.LeagueIDs = append([]int64(nil), job.LeagueIDs...)
	clone.CompletedLeagues = append([]int64(nil), job.CompletedLeagues...)
	clone.CurrentLeagueID = cloneInt64Ptr(job.CurrentLeagueID)
	clone.CurrentDate = cloneTimePtr(job.CurrentDate)
	clone.RateLimitRemaining = cloneIntPtr(job.RateLimitRemaining)
	clone.RateLimitResetAt = cloneTimePtr(job.RateLimitResetAt)
	clone.LastError = cloneStringPtr(job.LastError)
	clone.StartedAt = cloneTimePtr(job.StartedAt)
	clone.FinishedAt = cloneTimePtr(job.FinishedAt)
	return &clone
}

type ImportFailureRepository struct {
	mu       sync.Mutex
	nextID   int64
	failures []*importjob.Failure
}

func NewImportFailureRepository() *ImportFailureRepository {
	return &ImportFailureRepository{nextID: 1}
}

func (r *ImportFailureRepository) Record(_ context.Context, failure *importjob.Failure) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	failure.ID = r.nextID
	r.nextID++
	clone := *failure
	r.failures = append(r.failures, &clone)
	return nil
}

func (r *ImportFailureRepository) ListByJob(_ context.Context, jobID int64, limit int) ([]*importjob.Failure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*importjob.Failure, 0, limit)
	for i := len(r.failures) - 1; i >= 0; i-- {
		if r.failures[i].JobID != jobID {
			continue
		}
		clone := *r.failures[i]
		out = append(out, &clone)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func cloneInt64Ptr(v *int64) *int64 {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}

func cloneIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}

func cloneStringPtr(v *string) *string {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}

func cloneTimePtr(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}
