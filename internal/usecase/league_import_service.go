package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/betassistant/server/internal/domain/importjob"
	"github.com/betassistant/server/internal/domain/league"
	"github.com/betassistant/server/internal/platform/logging"
)

// errRunStopped aborts a league mid-way when a pause was requested. The
// checkpoint is already persisted, so the resume re-enters cleanly.
var errRunStopped = errors.New("import run stopped")

type LeagueImportConfig struct {
	// PreemptiveThreshold stops importing before the budget is fully spent,
	// leaving headroom for the requests a fixture needs.
	PreemptiveThreshold int
}

type LeagueImportService struct {
	jobs          importjob.Repository
	matchImporter *MatchImportService
	provider      SportsDataProvider
	monitor       *RateLimitMonitor
	logger        *logging.Logger

	preemptiveThreshold int
}

func NewLeagueImportService(
	jobs importjob.Repository,
	matchImporter *MatchImportService,
	provider SportsDataProvider,
	monitor *RateLimitMonitor,
	logger *logging.Logger,
	cfg LeagueImportConfig,
) *LeagueImportService {
	if logger == nil {
		logger = logging.Default()
	}
	threshold := cfg.PreemptiveThreshold
	if threshold <= 0 {
		threshold = 10
	}
	return &LeagueImportService{
		jobs:                jobs,
		matchImporter:       matchImporter,
		provider:            provider,
		monitor:             monitor,
		logger:              logger,
		preemptiveThreshold: threshold,
	}
}

// ImportLeague walks the job's date range for one league. It checkpoints the
// current date after every fixture, so any abort resumes without losing paid
// requests.
func (s *LeagueImportService) ImportLeague(ctx context.Context, run *importRun, lg league.League) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeagueImportService.ImportLeague")
	defer span.End()

	job := run.job
	fixtures, season, err := s.fetchFixtures(ctx, run, lg)
	if err != nil {
		return err
	}

	logger := s.logger.With("job_id", job.ID, "league_id", lg.ID, "season", season)
	logger.InfoContext(ctx, "league import started",
		"league", lg.Name, "fixtures", len(fixtures), "mode", job.Type)

	for _, fixture := range fixtures {
		if run.Stopped() {
			return errRunStopped
		}
		// Resume point: fixtures before the checkpointed date were handled
		// by a previous run. Same-day fixtures run again; the importer is
		// idempotent.
		if job.CurrentDate != nil && fixture.Date.Before(*job.CurrentDate) {
			continue
		}
		if s.monitor.BelowThreshold(s.preemptiveThreshold) {
			remaining, _ := s.monitor.Remaining()
			return &RateLimitError{ResetAt: s.monitor.ResetAt(), Remaining: remaining}
		}

		outcome, importErr := s.matchImporter.ImportFixture(ctx, run, fixture)
		s.applyOutcome(job, outcome)
		day := truncateToDate(fixture.Date)
		job.CurrentDate = &day
		if updateErr := s.jobs.Update(ctx, job); updateErr != nil {
			return fmt.Errorf("persist job progress: %w", updateErr)
		}

		if importErr != nil {
			return importErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	logger.InfoContext(ctx, "league import finished",
		"imported", job.ImportedCount, "updated", job.UpdatedCount,
		"skipped", job.SkippedCount, "errors", job.ErrorCount)
	return nil
}

// fetchFixtures resolves the season and loads the fixture list. European
// seasons span calendar years, so a January-to-July range whose year has no
// fixtures belongs to the season that started the year before.
func (s *LeagueImportService) fetchFixtures(ctx context.Context, run *importRun, lg league.League) ([]ProviderFixture, int, error) {
	job := run.job
	from := job.FromDate
	to := job.ToDate

	season := from.Year()
	fixtures, err := s.provider.FixturesByLeague(ctx, lg.ID, season, from, to)
	if err != nil {
		return nil, season, err
	}

	if len(fixtures) == 0 && isSpringRange(from, to) {
		fallback := season - 1
		s.logger.DebugContext(ctx, "season empty, trying previous season",
			"league_id", lg.ID, "season", season, "fallback", fallback)
		fixtures, err = s.provider.FixturesByLeague(ctx, lg.ID, fallback, from, to)
		if err != nil {
			return nil, fallback, err
		}
		return fixtures, fallback, nil
	}

	return fixtures, season, nil
}

func (s *LeagueImportService) applyOutcome(job *importjob.Job, outcome ImportOutcome) {
	switch outcome {
	case OutcomeImported:
		job.ImportedCount++
	case OutcomeUpdated:
		job.UpdatedCount++
	case OutcomeSkipped:
		job.SkippedCount++
	case OutcomeFailed:
		job.ErrorCount++
	}
}

func isSpringRange(from, to time.Time) bool {
	return from.Month() <= time.July && to.Month() <= time.July && from.Year() == to.Year()
}
