package match

import (
	"context"
	"time"
)

type Repository interface {
	// Upsert inserts the record or updates the existing row for the same
	// fixture id. Volatile fields (goals, result, statistics, is_finished)
	// overwrite; enrichment fields (odds, standings) only fill gaps, so a
	// partial re-import never erases previously saved enrichment.
	Upsert(ctx context.Context, record *Record) error

	GetByFixtureID(ctx context.Context, fixtureID int64) (*Record, error)

	// ListUnfinished returns stored fixtures in the date range for the league
	// that are not finished yet. Used by update_results imports.
	ListUnfinished(ctx context.Context, leagueID int64, from, to time.Time) ([]*Record, error)
}
