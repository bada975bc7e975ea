package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/betassistant/server/internal/domain/importjob"
	"github.com/betassistant/server/internal/domain/match"
	"github.com/betassistant/server/internal/platform/logging"
)

type ImportOutcome string

const (
	OutcomeImported ImportOutcome = "imported"
	OutcomeUpdated  ImportOutcome = "updated"
	OutcomeSkipped  ImportOutcome = "skipped"
	OutcomeFailed   ImportOutcome = "failed"
)

type MatchImportConfig struct {
	// RequestDelay spaces out statistics/odds calls so bursts do not trip
	// the provider's per-minute window.
	RequestDelay time.Duration
}

type MatchImportService struct {
	matches  match.Repository
	failures importjob.FailureRepository
	provider SportsDataProvider
	logger   *logging.Logger

	requestDelay time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewMatchImportService(
	matches match.Repository,
	failures importjob.FailureRepository,
	provider SportsDataProvider,
	logger *logging.Logger,
	cfg MatchImportConfig,
) *MatchImportService {
	if logger == nil {
		logger = logging.Default()
	}
	delay := cfg.RequestDelay
	if delay <= 0 {
		delay = 300 * time.Millisecond
	}
	return &MatchImportService{
		matches:      matches,
		failures:     failures,
		provider:     provider,
		logger:       logger,
		requestDelay: delay,
		sleep:        sleepContext,
	}
}

// ImportFixture runs one fixture through fetch, enrich and save. A rate
// limit refusal is returned to the caller, but whatever was fetched before
// it is saved first so the retry does not repeat paid requests.
func (s *MatchImportService) ImportFixture(ctx context.Context, run *importRun, fixture ProviderFixture) (ImportOutcome, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchImportService.ImportFixture")
	defer span.End()

	stored, err := s.matches.GetByFixtureID(ctx, fixture.FixtureID)
	if err != nil {
		s.recordFailure(ctx, run, fixture, importjob.FailureDatabaseError, fmt.Sprintf("load fixture: %v", err))
		return OutcomeFailed, nil
	}

	switch run.job.Type {
	case importjob.TypeUpdateResults:
		if stored == nil || stored.IsFinished {
			return OutcomeSkipped, nil
		}
	default:
		if stored.HasAnyOdds() && stored.HasStandings() {
			return OutcomeSkipped, nil
		}
	}

	record := buildRecord(fixture)

	// The first rate-limit refusal stops further provider calls for this
	// fixture; the partial record is still saved below.
	var rateLimited *RateLimitError

	if fixture.Finished {
		s.fetchStatistics(ctx, run, fixture, record, &rateLimited)
	}
	if rateLimited == nil && shouldFetchOdds(run.job.Type, stored) {
		s.fetchOdds(ctx, run, fixture, record, &rateLimited)
	}
	if rateLimited == nil {
		s.fetchStandings(ctx, run, fixture, record, &rateLimited)
	}

	if err := s.matches.Upsert(ctx, record); err != nil {
		if errors.Is(err, match.ErrDuplicate) {
			// Lost an insert race; the row exists, nothing to do.
			return OutcomeSkipped, nil
		}
		s.recordFailure(ctx, run, fixture, importjob.FailureDatabaseError, fmt.Sprintf("save fixture: %v", err))
		return OutcomeFailed, nil
	}

	outcome := OutcomeUpdated
	if stored == nil {
		outcome = OutcomeImported
	}
	if rateLimited != nil {
		return outcome, rateLimited
	}
	return outcome, nil
}

func (s *MatchImportService) fetchStatistics(ctx context.Context, run *importRun, fixture ProviderFixture, record *match.Record, rateLimited **RateLimitError) {
	available, probed := run.StatisticsAvailable(fixture.LeagueID)
	if probed && !available {
		s.recordFailure(ctx, run, fixture, importjob.FailureNoStatistics, "league carries no statistics")
		return
	}

	if err := s.sleep(ctx, s.requestDelay); err != nil {
		return
	}
	stats, err := s.provider.FixtureStatistics(ctx, fixture.FixtureID)
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) {
			*rateLimited = rl
			return
		}
		s.recordFailure(ctx, run, fixture, ClassifyFailure(err), fmt.Sprintf("fetch statistics: %v", err))
		return
	}

	if len(stats) == 0 {
		if !probed {
			run.SetStatisticsAvailable(fixture.LeagueID, false)
		}
		s.recordFailure(ctx, run, fixture, importjob.FailureNoStatistics, "provider returned no statistics")
		return
	}

	if !probed {
		run.SetStatisticsAvailable(fixture.LeagueID, true)
	}
	for _, teamStats := range stats {
		block := teamStats.Stats
		switch teamStats.TeamID {
		case fixture.HomeTeamID:
			record.HomeStats = &block
		case fixture.AwayTeamID:
			record.AwayStats = &block
		}
	}
}

func (s *MatchImportService) fetchOdds(ctx context.Context, run *importRun, fixture ProviderFixture, record *match.Record, rateLimited **RateLimitError) {
	available, probed := run.OddsAvailable(fixture.LeagueID)
	if probed && !available {
		s.recordFailure(ctx, run, fixture, importjob.FailureNoOdds, "league carries no odds")
		return
	}

	if err := s.sleep(ctx, s.requestDelay); err != nil {
		return
	}
	odds, err := s.provider.FixtureOdds(ctx, fixture.FixtureID)
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) {
			*rateLimited = rl
			return
		}
		s.recordFailure(ctx, run, fixture, ClassifyFailure(err), fmt.Sprintf("fetch odds: %v", err))
		return
	}

	if odds == nil {
		if !probed {
			run.SetOddsAvailable(fixture.LeagueID, false)
		}
		s.recordFailure(ctx, run, fixture, importjob.FailureNoOdds, "no bookmaker quotes the match")
		return
	}

	if !probed {
		run.SetOddsAvailable(fixture.LeagueID, true)
	}
	record.OddsHome = &odds.Home
	record.OddsDraw = &odds.Draw
	record.OddsAway = &odds.Away
}

func (s *MatchImportService) fetchStandings(ctx context.Context, run *importRun, fixture ProviderFixture, record *match.Record, rateLimited **RateLimitError) {
	byTeam, err := run.Standings(ctx, fixture.LeagueID, fixture.Season)
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) {
			*rateLimited = rl
			return
		}
		s.recordFailure(ctx, run, fixture, ClassifyFailure(err), fmt.Sprintf("fetch standings: %v", err))
		return
	}

	if position, ok := byTeam[fixture.HomeTeamID]; ok {
		record.HomeStanding = &position
	}
	if position, ok := byTeam[fixture.AwayTeamID]; ok {
		record.AwayStanding = &position
	}
}

// recordFailure is best effort: a failure we cannot persist must not abort
// the fixture.
func (s *MatchImportService) recordFailure(ctx context.Context, run *importRun, fixture ProviderFixture, reason importjob.FailureReason, detail string) {
	failure := &importjob.Failure{
		JobID:      run.job.ID,
		FixtureID:  fixture.FixtureID,
		LeagueID:   fixture.LeagueID,
		Reason:     reason,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.failures.Record(ctx, failure); err != nil {
		s.logger.WarnContext(ctx, "record import failure failed",
			"job_id", run.job.ID, "fixture_id", fixture.FixtureID, "reason", reason, "error", err)
	}
}

func shouldFetchOdds(jobType importjob.Type, stored *match.Record) bool {
	if jobType == importjob.TypeUpdateResults {
		return !stored.HasOdds()
	}
	return stored == nil || !stored.HasOdds()
}

func buildRecord(fixture ProviderFixture) *match.Record {
	record := &match.Record{
		FixtureID:         fixture.FixtureID,
		Date:              fixture.Date,
		Season:            fixture.Season,
		LeagueID:          fixture.LeagueID,
		LeagueName:        fixture.LeagueName,
		Country:           fixture.Country,
		HomeTeam:          fixture.HomeTeam,
		AwayTeam:          fixture.AwayTeam,
		HomeGoals:         fixture.HomeGoals,
		AwayGoals:         fixture.AwayGoals,
		HalfTimeHomeGoals: fixture.HalfTimeHomeGoals,
		HalfTimeAwayGoals: fixture.HalfTimeAwayGoals,
		IsFinished:        fixture.Finished,
	}

	if fixture.HomeGoals != nil && fixture.AwayGoals != nil && fixture.Finished {
		result := match.ResultFromGoals(*fixture.HomeGoals, *fixture.AwayGoals)
		record.Result = &result
	}
	if fixture.HalfTimeHomeGoals != nil && fixture.HalfTimeAwayGoals != nil {
		result := match.ResultFromGoals(*fixture.HalfTimeHomeGoals, *fixture.HalfTimeAwayGoals)
		record.HalfTimeResult = &result
	}

	return record
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
