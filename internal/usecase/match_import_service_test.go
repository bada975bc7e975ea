package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/betassistant/server/internal/domain/importjob"
	"github.com/betassistant/server/internal/domain/league"
	"github.com/betassistant/server/internal/domain/match"
	"github.com/betassistant/server/internal/infrastructure/repository/memory"
	"github.com/betassistant/server/internal/platform/logging"
)

type matchImportEnv struct {
	svc      *MatchImportService
	matches  *memory.MatchRepository
	failures *memory.ImportFailureRepository
	provider *stubProvider
}

func newMatchImportEnv(t *testing.T, provider *stubProvider) *matchImportEnv {
	t.Helper()

	matches := memory.NewMatchRepository()
	failures := memory.NewImportFailureRepository()
	svc := NewMatchImportService(matches, failures, provider, logging.NewNop(), MatchImportConfig{})
	svc.sleep = noSleep

	return &matchImportEnv{svc: svc, matches: matches, failures: failures, provider: provider}
}

func newRunForType(provider *stubProvider, jobType importjob.Type) *importRun {
	job := &importjob.Job{
		ID:       1,
		Type:     jobType,
		Status:   importjob.StatusRunning,
		FromDate: day("2025-09-01"),
		ToDate:   day("2025-09-30"),
	}
	targets := []league.League{{ID: 39, Name: "Premier League", Enabled: true}}
	return newImportRun(job, targets, provider)
}

func fullStatsFor(fixture ProviderFixture) []ProviderTeamStatistics {
	return []ProviderTeamStatistics{
		{TeamID: fixture.HomeTeamID, Stats: match.TeamStats{
			Shots:         intPtr(14),
			ShotsOnTarget: intPtr(6),
			Possession:    intPtr(58),
			ExpectedGoals: floatPtr(1.9),
		}},
		{TeamID: fixture.AwayTeamID, Stats: match.TeamStats{
			Shots:         intPtr(7),
			ShotsOnTarget: intPtr(2),
			Possession:    intPtr(42),
			ExpectedGoals: floatPtr(0.8),
		}},
	}
}

func TestMatchImport_NewFinishedFixtureFullyEnriched(t *testing.T) {
	t.Parallel()

	fixture := finishedFixture(5001, 39, "2025-09-13")
	provider := &stubProvider{
		statsFn: func(int64) ([]ProviderTeamStatistics, error) { return fullStatsFor(fixture), nil },
		oddsFn:  func(int64) (*ProviderOdds, error) { return &ProviderOdds{Home: 1.95, Draw: 3.4, Away: 3.9}, nil },
		standingsFn: func(int64, int) ([]ProviderStandingRow, error) {
			return []ProviderStandingRow{
				{TeamID: fixture.HomeTeamID, TeamName: "Home", Position: 3},
				{TeamID: fixture.AwayTeamID, TeamName: "Away", Position: 11},
			}, nil
		},
	}
	env := newMatchImportEnv(t, provider)
	run := newRunForType(provider, importjob.TypeNewMatches)

	outcome, err := env.svc.ImportFixture(context.Background(), run, fixture)
	if err != nil {
		t.Fatalf("import fixture: %v", err)
	}
	if outcome != OutcomeImported {
		t.Fatalf("outcome = %s, want imported", outcome)
	}

	stored, err := env.matches.GetByFixtureID(context.Background(), fixture.FixtureID)
	if err != nil || stored == nil {
		t.Fatalf("fixture not stored: %v", err)
	}
	if stored.Result == nil || *stored.Result != match.ResultHome {
		t.Fatalf("result = %v, want H for 2-1", stored.Result)
	}
	if !stored.HasStatistics() || !stored.HasOdds() || !stored.HasStandings() {
		t.Fatalf("stored fixture missing enrichment: stats=%v odds=%v standings=%v",
			stored.HasStatistics(), stored.HasOdds(), stored.HasStandings())
	}
	if stored.HomeStanding == nil || *stored.HomeStanding != 3 {
		t.Fatalf("home standing = %v, want 3", stored.HomeStanding)
	}
}

func TestMatchImport_SkipsFullyEnrichedStoredFixture(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{}
	env := newMatchImportEnv(t, provider)
	run := newRunForType(provider, importjob.TypeNewMatches)

	fixture := finishedFixture(5002, 39, "2025-09-13")
	existing := buildRecord(fixture)
	existing.OddsHome = floatPtr(2.0)
	existing.OddsDraw = floatPtr(3.3)
	existing.OddsAway = floatPtr(3.7)
	existing.HomeStanding = intPtr(1)
	existing.AwayStanding = intPtr(8)
	if err := env.matches.Upsert(context.Background(), existing); err != nil {
		t.Fatalf("seed fixture: %v", err)
	}

	outcome, err := env.svc.ImportFixture(context.Background(), run, fixture)
	if err != nil {
		t.Fatalf("import fixture: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("outcome = %s, want skipped", outcome)
	}
	if provider.StatsCallCount() != 0 || provider.StandingsCallCount() != 0 {
		t.Fatalf("complete fixture must not spend provider requests")
	}
}

func TestMatchImport_SkipsStoredFixtureWithPartialOdds(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{}
	env := newMatchImportEnv(t, provider)
	run := newRunForType(provider, importjob.TypeNewMatches)

	// Only the home quote made it in; one odds value plus standings is
	// enough to consider the row enriched.
	fixture := finishedFixture(5007, 39, "2025-09-13")
	existing := buildRecord(fixture)
	existing.OddsHome = floatPtr(2.0)
	existing.HomeStanding = intPtr(1)
	existing.AwayStanding = intPtr(8)
	if err := env.matches.Upsert(context.Background(), existing); err != nil {
		t.Fatalf("seed fixture: %v", err)
	}

	outcome, err := env.svc.ImportFixture(context.Background(), run, fixture)
	if err != nil {
		t.Fatalf("import fixture: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("outcome = %s, want skipped", outcome)
	}
	if provider.StatsCallCount() != 0 || provider.OddsCallCount() != 0 || provider.StandingsCallCount() != 0 {
		t.Fatalf("partially quoted fixture must not spend provider requests")
	}
}

func TestMatchImport_UpdateResultsSkipsUnknownAndFinished(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{}
	env := newMatchImportEnv(t, provider)
	run := newRunForType(provider, importjob.TypeUpdateResults)
	ctx := context.Background()

	fixture := finishedFixture(5003, 39, "2025-09-13")

	t.Run("unknown fixture", func(t *testing.T) {
		outcome, err := env.svc.ImportFixture(ctx, run, fixture)
		if err != nil || outcome != OutcomeSkipped {
			t.Fatalf("outcome = %s err = %v, want skipped", outcome, err)
		}
	})

	t.Run("already finished", func(t *testing.T) {
		if err := env.matches.Upsert(ctx, buildRecord(fixture)); err != nil {
			t.Fatalf("seed fixture: %v", err)
		}
		outcome, err := env.svc.ImportFixture(ctx, run, fixture)
		if err != nil || outcome != OutcomeSkipped {
			t.Fatalf("outcome = %s err = %v, want skipped", outcome, err)
		}
	})
}

func TestMatchImport_UpdateResultsOverwritesVolatileFields(t *testing.T) {
	t.Parallel()

	fixture := finishedFixture(5004, 39, "2025-09-13")
	provider := &stubProvider{
		statsFn: func(int64) ([]ProviderTeamStatistics, error) { return fullStatsFor(fixture), nil },
	}
	env := newMatchImportEnv(t, provider)
	run := newRunForType(provider, importjob.TypeUpdateResults)
	ctx := context.Background()

	// Stored as a future fixture with odds from the new_matches import.
	pending := ProviderFixture{
		FixtureID:  fixture.FixtureID,
		LeagueID:   fixture.LeagueID,
		Season:     fixture.Season,
		Date:       fixture.Date,
		HomeTeamID: fixture.HomeTeamID,
		AwayTeamID: fixture.AwayTeamID,
		HomeTeam:   fixture.HomeTeam,
		AwayTeam:   fixture.AwayTeam,
	}
	existing := buildRecord(pending)
	existing.OddsHome = floatPtr(1.85)
	existing.OddsDraw = floatPtr(3.5)
	existing.OddsAway = floatPtr(4.1)
	if err := env.matches.Upsert(ctx, existing); err != nil {
		t.Fatalf("seed fixture: %v", err)
	}

	outcome, err := env.svc.ImportFixture(ctx, run, fixture)
	if err != nil {
		t.Fatalf("import fixture: %v", err)
	}
	if outcome != OutcomeUpdated {
		t.Fatalf("outcome = %s, want updated", outcome)
	}

	stored, _ := env.matches.GetByFixtureID(ctx, fixture.FixtureID)
	if !stored.IsFinished {
		t.Fatalf("is_finished must be overwritten to true")
	}
	if stored.HomeGoals == nil || *stored.HomeGoals != 2 {
		t.Fatalf("home goals = %v, want 2", stored.HomeGoals)
	}
	// COALESCE semantics: the odds saved earlier survive the update run.
	if stored.OddsHome == nil || *stored.OddsHome != 1.85 {
		t.Fatalf("odds home = %v, want kept 1.85", stored.OddsHome)
	}
}

func TestMatchImport_RateLimitSavesPartialRecord(t *testing.T) {
	t.Parallel()

	fixture := finishedFixture(5005, 39, "2025-09-13")
	provider := &stubProvider{
		statsFn: func(int64) ([]ProviderTeamStatistics, error) { return fullStatsFor(fixture), nil },
		oddsFn: func(int64) (*ProviderOdds, error) {
			return nil, &RateLimitError{Remaining: 0}
		},
	}
	env := newMatchImportEnv(t, provider)
	run := newRunForType(provider, importjob.TypeNewMatches)

	outcome, err := env.svc.ImportFixture(context.Background(), run, fixture)
	var rateLimited *RateLimitError
	if !errors.As(err, &rateLimited) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if outcome != OutcomeImported {
		t.Fatalf("outcome = %s, want imported (partial save)", outcome)
	}

	stored, _ := env.matches.GetByFixtureID(context.Background(), fixture.FixtureID)
	if stored == nil || !stored.HasStatistics() {
		t.Fatalf("statistics fetched before the refusal must be saved")
	}
	if stored.HasOdds() {
		t.Fatalf("odds must be absent after the refusal")
	}
	if provider.StandingsCallCount() != 0 {
		t.Fatalf("no further requests after the first refusal")
	}
}

func TestMatchImport_DuplicateInsertRaceIsSkipped(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{}
	failures := memory.NewImportFailureRepository()
	svc := NewMatchImportService(duplicateMatchRepo{}, failures, provider, logging.NewNop(), MatchImportConfig{})
	svc.sleep = noSleep
	run := newRunForType(provider, importjob.TypeNewMatches)

	outcome, err := svc.ImportFixture(context.Background(), run, finishedFixture(5006, 39, "2025-09-13"))
	if err != nil {
		t.Fatalf("import fixture: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("outcome = %s, want skipped on duplicate key", outcome)
	}
}

func TestMatchImport_NoStatisticsProbeIsMemoized(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{
		statsFn: func(int64) ([]ProviderTeamStatistics, error) { return nil, nil },
	}
	env := newMatchImportEnv(t, provider)
	run := newRunForType(provider, importjob.TypeNewMatches)
	ctx := context.Background()

	if _, err := env.svc.ImportFixture(ctx, run, finishedFixture(5007, 39, "2025-09-13")); err != nil {
		t.Fatalf("first fixture: %v", err)
	}
	if _, err := env.svc.ImportFixture(ctx, run, finishedFixture(5008, 39, "2025-09-20")); err != nil {
		t.Fatalf("second fixture: %v", err)
	}

	if provider.StatsCallCount() != 1 {
		t.Fatalf("stats calls = %d, want 1 (league probed once per run)", provider.StatsCallCount())
	}

	recorded, err := env.failures.ListByJob(ctx, run.job.ID, 0)
	if err != nil {
		t.Fatalf("list failures: %v", err)
	}
	statsFailures := 0
	for _, failure := range recorded {
		if failure.Reason == importjob.FailureNoStatistics {
			statsFailures++
		}
	}
	if statsFailures != 2 {
		t.Fatalf("NO_STATISTICS failures = %d, want one per fixture", statsFailures)
	}
}

func TestMatchImport_MissingOddsRecordedAsNoOdds(t *testing.T) {
	t.Parallel()

	fixture := finishedFixture(5009, 39, "2025-09-13")
	provider := &stubProvider{
		statsFn: func(int64) ([]ProviderTeamStatistics, error) { return fullStatsFor(fixture), nil },
		oddsFn:  func(int64) (*ProviderOdds, error) { return nil, nil },
	}
	env := newMatchImportEnv(t, provider)
	run := newRunForType(provider, importjob.TypeNewMatches)
	ctx := context.Background()

	outcome, err := env.svc.ImportFixture(ctx, run, fixture)
	if err != nil {
		t.Fatalf("import fixture: %v", err)
	}
	if outcome != OutcomeImported {
		t.Fatalf("outcome = %s, want imported (NO_ODDS is soft)", outcome)
	}

	recorded, err := env.failures.ListByJob(ctx, run.job.ID, 0)
	if err != nil {
		t.Fatalf("list failures: %v", err)
	}
	found := false
	for _, failure := range recorded {
		if failure.Reason == importjob.FailureNoOdds && failure.FixtureID == fixture.FixtureID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a NO_ODDS failure for fixture %d", fixture.FixtureID)
	}
}

// duplicateMatchRepo simulates losing an insert race to a concurrent writer.
type duplicateMatchRepo struct{}

func (duplicateMatchRepo) Upsert(context.Context, *match.Record) error {
	return match.ErrDuplicate
}

func (duplicateMatchRepo) GetByFixtureID(context.Context, int64) (*match.Record, error) {
	return nil, nil
}

func (duplicateMatchRepo) ListUnfinished(context.Context, int64, time.Time, time.Time) ([]*match.Record, error) {
	return nil, nil
}
