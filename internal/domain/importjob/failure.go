package importjob

import "time"

type FailureReason string

const (
	FailureNoStatistics    FailureReason = "NO_STATISTICS"
	FailureNoOdds          FailureReason = "NO_ODDS"
	FailureDatabaseError   FailureReason = "DATABASE_ERROR"
	FailureNetworkError    FailureReason = "NETWORK_ERROR"
	FailureRateLimit       FailureReason = "RATE_LIMIT"
	FailureValidationError FailureReason = "VALIDATION_ERROR"
	FailureOther           FailureReason = "OTHER"
)

// Failure records why a single fixture could not be fully imported. Soft
// reasons (NO_STATISTICS, NO_ODDS) mean the fixture was still saved with the
// data that existed.
type Failure struct {
	ID         int64
	JobID      int64
	FixtureID  int64
	LeagueID   int64
	Reason     FailureReason
	Detail     string
	OccurredAt time.Time
}
