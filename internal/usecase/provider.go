package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/betassistant/server/internal/domain/match"
)

// ProviderFixture is one fixture as reported by the sports data provider.
type ProviderFixture struct {
	FixtureID  int64
	LeagueID   int64
	LeagueName string
	Country    string
	Season     int
	Date       time.Time

	HomeTeamID int64
	AwayTeamID int64
	HomeTeam   string
	AwayTeam   string

	HomeGoals         *int
	AwayGoals         *int
	HalfTimeHomeGoals *int
	HalfTimeAwayGoals *int

	Finished bool
}

// ProviderTeamStatistics is one side's statistics block for a fixture.
type ProviderTeamStatistics struct {
	TeamID int64
	Stats  match.TeamStats
}

// ProviderOdds carries pre-match 1X2 prices.
type ProviderOdds struct {
	Home float64
	Draw float64
	Away float64
}

// ProviderStandingRow is one row of a league table.
type ProviderStandingRow struct {
	TeamID   int64
	TeamName string
	Position int
}

// Quota is the provider's remaining request budget, taken from the most
// recent response headers. Zero Remaining with a zero ResetAt means the
// counters are not known yet.
type Quota struct {
	Remaining int
	ResetAt   time.Time
	Known     bool
}

// SportsDataProvider is the single external data source of the import
// pipeline.
type SportsDataProvider interface {
	FixturesByLeague(ctx context.Context, leagueID int64, season int, from, to time.Time) ([]ProviderFixture, error)
	FixtureStatistics(ctx context.Context, fixtureID int64) ([]ProviderTeamStatistics, error)
	FixtureOdds(ctx context.Context, fixtureID int64) (*ProviderOdds, error)
	Standings(ctx context.Context, leagueID int64, season int) ([]ProviderStandingRow, error)

	// Quota reports the request budget observed on the last response.
	Quota() Quota
}

// RateLimitError signals the provider refused the request because the
// request budget is exhausted. Callers match it with errors.As; data fetched
// before the refusal must still be persisted.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return "provider rate limit exhausted"
	}
	return fmt.Sprintf("provider rate limit exhausted until %s", e.ResetAt.Format(time.RFC3339))
}
