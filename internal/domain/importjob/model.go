package importjob

import "time"

type Type string

const (
	TypeNewMatches    Type = "new_matches"
	TypeUpdateResults Type = "update_results"
)

func (t Type) Valid() bool {
	return t == TypeNewMatches || t == TypeUpdateResults
}

type Status string

const (
	StatusInQueue     Status = "in_queue"
	StatusPending     Status = "pending"
	StatusRunning     Status = "running"
	StatusRateLimited Status = "rate_limited"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Terminal reports whether the job will never run again without an explicit
// retry or restart.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Active reports whether the job holds or waits for the single import slot.
// A new job starts pending only when no active job exists; queued jobs count
// so a newcomer cannot jump ahead of them. Paused jobs do not block.
func (s Status) Active() bool {
	return s == StatusInQueue || s == StatusPending || s == StatusRunning || s == StatusRateLimited
}

// Job is a resumable import of a date range. Progress is checkpointed per
// league and per date so an interrupted run continues where it stopped.
type Job struct {
	ID     int64
	Type   Type
	Status Status

	FromDate time.Time
	ToDate   time.Time

	// LeagueIDs filters the import; empty means all enabled leagues.
	LeagueIDs []int64

	CompletedLeagues []int64
	CurrentLeagueID  *int64
	CurrentDate      *time.Time

	ImportedCount int
	UpdatedCount  int
	SkippedCount  int
	ErrorCount    int

	RateLimitRemaining *int
	RateLimitResetAt   *time.Time

	LastError *string
	Hidden    bool

	CreatedAt  time.Time
	UpdatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

func (j *Job) LeagueCompleted(leagueID int64) bool {
	for _, id := range j.CompletedLeagues {
		if id == leagueID {
			return true
		}
	}
	return false
}

func (j *Job) MarkLeagueCompleted(leagueID int64) {
	if j.LeagueCompleted(leagueID) {
		return
	}
	j.CompletedLeagues = append(j.CompletedLeagues, leagueID)
}

// ResetProgress clears the checkpoint and counters for a restart.
func (j *Job) ResetProgress() {
	j.CompletedLeagues = nil
	j.CurrentLeagueID = nil
	j.CurrentDate = nil
	j.ImportedCount = 0
	j.UpdatedCount = 0
	j.SkippedCount = 0
	j.ErrorCount = 0
	j.RateLimitRemaining = nil
	j.RateLimitResetAt = nil
	j.LastError = nil
	j.StartedAt = nil
	j.FinishedAt = nil
}
