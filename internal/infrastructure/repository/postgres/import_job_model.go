package postgres

import (
	"time"

	"github.com/lib/pq"

	"github.com/betassistant/server/internal/domain/importjob"
)

// checkpoint_date instead of current_date: CURRENT_DATE is reserved SQL.
var importJobColumns = []string{
	"id", "job_type", "status", "from_date", "to_date", "league_ids",
	"completed_leagues", "current_league_id", "checkpoint_date",
	"imported_count", "updated_count", "skipped_count", "error_count",
	"rate_limit_remaining", "rate_limit_reset_at", "last_error", "hidden",
	"created_at", "updated_at", "started_at", "finished_at",
}

type importJobRowModel struct {
	ID                 int64         `db:"id"`
	JobType            string        `db:"job_type"`
	Status             string        `db:"status"`
	FromDate           time.Time     `db:"from_date"`
	ToDate             time.Time     `db:"to_date"`
	LeagueIDs          pq.Int64Array `db:"league_ids"`
	CompletedLeagues   pq.Int64Array `db:"completed_leagues"`
	CurrentLeagueID    *int64        `db:"current_league_id"`
	CheckpointDate     *time.Time    `db:"checkpoint_date"`
	ImportedCount      int           `db:"imported_count"`
	UpdatedCount       int           `db:"updated_count"`
	SkippedCount       int           `db:"skipped_count"`
	ErrorCount         int           `db:"error_count"`
	RateLimitRemaining *int          `db:"rate_limit_remaining"`
	RateLimitResetAt   *time.Time    `db:"rate_limit_reset_at"`
	LastError          *string       `db:"last_error"`
	Hidden             bool          `db:"hidden"`
	CreatedAt          time.Time     `db:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at"`
	StartedAt          *time.Time    `db:"started_at"`
	FinishedAt         *time.Time    `db:"finished_at"`
}

type importJobInsertModel struct {
	JobType          string        `db:"job_type"`
	Status           string        `db:"status"`
	FromDate         time.Time     `db:"from_date"`
	ToDate           time.Time     `db:"to_date"`
	LeagueIDs        pq.Int64Array `db:"league_ids"`
	CompletedLeagues pq.Int64Array `db:"completed_leagues"`
	Hidden           bool          `db:"hidden"`
}

func (m importJobRowModel) toDomain() *importjob.Job {
	return &importjob.Job{
		ID:                 m.ID,
		Type:               importjob.Type(m.JobType),
		Status:             importjob.Status(m.Status),
		FromDate:           m.FromDate.UTC(),
		ToDate:             m.ToDate.UTC(),
		LeagueIDs:          []int64(m.LeagueIDs),
		CompletedLeagues:   []int64(m.CompletedLeagues),
		CurrentLeagueID:    m.CurrentLeagueID,
		CurrentDate:        utcTimePtr(m.CheckpointDate),
		ImportedCount:      m.ImportedCount,
		UpdatedCount:       m.UpdatedCount,
		SkippedCount:       m.SkippedCount,
		ErrorCount:         m.ErrorCount,
		RateLimitRemaining: m.RateLimitRemaining,
		RateLimitResetAt:   utcTimePtr(m.RateLimitResetAt),
		LastError:          m.LastError,
		Hidden:             m.Hidden,
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
		StartedAt:          utcTimePtr(m.StartedAt),
		FinishedAt:         utcTimePtr(m.FinishedAt),
	}
}

func utcTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

var importFailureColumns = []string{
	"id", "job_id", "fixture_id", "league_id", "reason", "detail", "occurred_at",
}

type importFailureRowModel struct {
	ID         int64     `db:"id"`
	JobID      int64     `db:"job_id"`
	FixtureID  int64     `db:"fixture_id"`
	LeagueID   int64     `db:"league_id"`
	Reason     string    `db:"reason"`
	Detail     string    `db:"detail"`
	OccurredAt time.Time `db:"occurred_at"`
}

type importFailureInsertModel struct {
	JobID      int64     `db:"job_id"`
	FixtureID  int64     `db:"fixture_id"`
	LeagueID   int64     `db:"league_id"`
	Reason     string    `db:"reason"`
	Detail     string    `db:"detail"`
	OccurredAt time.Time `db:"occurred_at"`
}

func (m importFailureRowModel) toDomain() *importjob.Failure {
	return &importjob.Failure{
		ID:         m.ID,
		JobID:      m.JobID,
		FixtureID:  m.FixtureID,
		LeagueID:   m.LeagueID,
		Reason:     importjob.FailureReason(m.Reason),
		Detail:     m.Detail,
		OccurredAt: m.OccurredAt.UTC(),
	}
}
