package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/betassistant/server/internal/domain/importjob"
	qb "github.com/betassistant/server/internal/platform/querybuilder"
)

type ImportJobRepository struct {
	db *sqlx.DB
}

func NewImportJobRepository(db *sqlx.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db}
}

func (r *ImportJobRepository) Create(ctx context.Context, job *importjob.Job) error {
	if job == nil {
		return fmt.Errorf("job is required")
	}

	model := importJobInsertModel{
		JobType:          string(job.Type),
		Status:           string(job.Status),
		FromDate:         job.FromDate.UTC(),
		ToDate:           job.ToDate.UTC(),
		LeagueIDs:        pq.Int64Array(job.LeagueIDs),
		CompletedLeagues: pq.Int64Array{},
		Hidden:           job.Hidden,
	}

	query, args, err := qb.InsertModel("import_jobs", model, "RETURNING id, created_at, updated_at")
	if err != nil {
		return fmt.Errorf("build insert job query: %w", err)
	}

	row := r.db.QueryRowxContext(ctx, query, args...)
	if err := row.Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return fmt.Errorf("insert import job: %w", err)
	}
	return nil
}

func (r *ImportJobRepository) GetByID(ctx context.Context, id int64) (*importjob.Job, error) {
	query, args, err := qb.Select(importJobColumns...).
		From("import_jobs").
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select job query: %w", err)
	}

	var model importJobRowModel
	if err := r.db.GetContext(ctx, &model, query, args...); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("select import job id=%d: %w", id, err)
	}
	return model.toDomain(), nil
}

func (r *ImportJobRepository) Update(ctx context.Context, job *importjob.Job) error {
	if job == nil || job.ID <= 0 {
		return fmt.Errorf("persisted job is required")
	}

	query, args, err := qb.Update("import_jobs").
		Set("status", string(job.Status)).
		Set("league_ids", pq.Int64Array(job.LeagueIDs)).
		Set("completed_leagues", pq.Int64Array(job.CompletedLeagues)).
		Set("current_league_id", job.CurrentLeagueID).
		Set("checkpoint_date", job.CurrentDate).
		Set("imported_count", job.ImportedCount).
		Set("updated_count", job.UpdatedCount).
		Set("skipped_count", job.SkippedCount).
		Set("error_count", job.ErrorCount).
		Set("rate_limit_remaining", job.RateLimitRemaining).
		Set("rate_limit_reset_at", job.RateLimitResetAt).
		Set("last_error", job.LastError).
		Set("hidden", job.Hidden).
		Set("started_at", job.StartedAt).
		Set("finished_at", job.FinishedAt).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", job.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update job query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update import job id=%d: %w", job.ID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("import job id=%d not found", job.ID)
	}
	return nil
}

func (r *ImportJobRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM import_jobs WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete import job id=%d: %w", id, err)
	}
	return nil
}

func (r *ImportJobRepository) List(ctx context.Context, includeHidden bool, limit int) ([]*importjob.Job, error) {
	builder := qb.Select(importJobColumns...).
		From("import_jobs").
		OrderBy("created_at DESC", "id DESC").
		Limit(limit)
	if !includeHidden {
		builder = builder.Where(qb.Eq("hidden", false))
	}

	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list jobs query: %w", err)
	}

	var models []importJobRowModel
	if err := r.db.SelectContext(ctx, &models, query, args...); err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}

	out := make([]*importjob.Job, 0, len(models))
	for _, model := range models {
		out = append(out, model.toDomain())
	}
	return out, nil
}

func (r *ImportJobRepository) CountActive(ctx context.Context) (int, error) {
	query, args, err := qb.Select("COUNT(*)").
		From("import_jobs").
		Where(qb.In("status", []any{
			string(importjob.StatusInQueue),
			string(importjob.StatusPending),
			string(importjob.StatusRunning),
			string(importjob.StatusRateLimited),
		})).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count active query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

// ClaimNextPending flips the oldest eligible job to running in one statement.
// A rate-limited job whose reset time has passed comes first; a pending job
// is claimable only while no other job holds the running/rate_limited slot,
// which keeps the system single-flight even across stateless polls. SKIP
// LOCKED keeps concurrent worker processes from claiming the same row.
func (r *ImportJobRepository) ClaimNextPending(ctx context.Context) (*importjob.Job, error) {
	query := fmt.Sprintf(`UPDATE import_jobs
SET status = 'running',
    rate_limit_remaining = NULL,
    rate_limit_reset_at = NULL,
    started_at = COALESCE(started_at, NOW()),
    updated_at = NOW()
WHERE id = (
    SELECT id FROM import_jobs
    WHERE (status = 'rate_limited' AND (rate_limit_reset_at IS NULL OR rate_limit_reset_at <= NOW()))
       OR (status = 'pending' AND NOT EXISTS (
           SELECT 1 FROM import_jobs held
           WHERE held.status IN ('running', 'rate_limited')
       ))
    ORDER BY CASE WHEN status = 'rate_limited' THEN 0 ELSE 1 END, created_at, id
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING %s`, strings.Join(importJobColumns, ", "))

	var model importJobRowModel
	if err := r.db.GetContext(ctx, &model, query); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim pending job: %w", err)
	}
	return model.toDomain(), nil
}

// PromoteOldestQueued moves the oldest queued job to pending, but only while
// no job is running or rate-limited: a held slot means the queue must keep
// waiting.
func (r *ImportJobRepository) PromoteOldestQueued(ctx context.Context) (*importjob.Job, error) {
	query := fmt.Sprintf(`UPDATE import_jobs
SET status = 'pending',
    updated_at = NOW()
WHERE id = (
    SELECT id FROM import_jobs
    WHERE status = 'in_queue'
      AND NOT EXISTS (
          SELECT 1 FROM import_jobs held
          WHERE held.status IN ('running', 'rate_limited')
      )
    ORDER BY created_at, id
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING %s`, strings.Join(importJobColumns, ", "))

	var model importJobRowModel
	if err := r.db.GetContext(ctx, &model, query); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("promote queued job: %w", err)
	}
	return model.toDomain(), nil
}

type ImportFailureRepository struct {
	db *sqlx.DB
}

func NewImportFailureRepository(db *sqlx.DB) *ImportFailureRepository {
	return &ImportFailureRepository{db: db}
}

func (r *ImportFailureRepository) Record(ctx context.Context, failure *importjob.Failure) error {
	if failure == nil {
		return fmt.Errorf("failure is required")
	}

	occurredAt := failure.OccurredAt.UTC()
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	model := importFailureInsertModel{
		JobID:      failure.JobID,
		FixtureID:  failure.FixtureID,
		LeagueID:   failure.LeagueID,
		Reason:     string(failure.Reason),
		Detail:     failure.Detail,
		OccurredAt: occurredAt,
	}

	query, args, err := qb.InsertModel("import_failures", model, "RETURNING id")
	if err != nil {
		return fmt.Errorf("build insert failure query: %w", err)
	}
	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&failure.ID); err != nil {
		return fmt.Errorf("insert import failure job_id=%d fixture_id=%d: %w", failure.JobID, failure.FixtureID, err)
	}
	return nil
}

func (r *ImportFailureRepository) ListByJob(ctx context.Context, jobID int64, limit int) ([]*importjob.Failure, error) {
	query, args, err := qb.Select(importFailureColumns...).
		From("import_failures").
		Where(qb.Eq("job_id", jobID)).
		OrderBy("occurred_at DESC", "id DESC").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list failures query: %w", err)
	}

	var models []importFailureRowModel
	if err := r.db.SelectContext(ctx, &models, query, args...); err != nil {
		return nil, fmt.Errorf("list import failures job_id=%d: %w", jobID, err)
	}

	out := make([]*importjob.Failure, 0, len(models))
	for _, model := range models {
		out = append(out, model.toDomain())
	}
	return out, nil
}
