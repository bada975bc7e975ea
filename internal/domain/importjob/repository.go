package importjob

import "context"

type Repository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id int64) (*Job, error)
	Update(ctx context.Context, job *Job) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, includeHidden bool, limit int) ([]*Job, error)

	// CountActive counts jobs in pending, running or rate_limited status.
	CountActive(ctx context.Context) (int, error)

	// ClaimNextPending atomically moves the oldest pending job to running and
	// returns it, or nil when nothing is pending. The claim must be safe
	// against concurrent worker processes.
	ClaimNextPending(ctx context.Context) (*Job, error)

	// PromoteOldestQueued moves the oldest in_queue job to pending and returns
	// it, or nil when the queue is empty.
	PromoteOldestQueued(ctx context.Context) (*Job, error)
}

type FailureRepository interface {
	Record(ctx context.Context, failure *Failure) error
	ListByJob(ctx context.Context, jobID int64, limit int) ([]*Failure, error)
}
