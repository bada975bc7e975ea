package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/betassistant/server/internal/domain/importjob"
	"github.com/betassistant/server/internal/domain/league"
	"github.com/betassistant/server/internal/platform/cache"
)

// importRun carries all state scoped to one execution of a job: the resolved
// league list, the standings cache, availability memos and the stop flag.
// Nothing here survives the run, so two runs of the same job never share
// stale standings or probe results.
type importRun struct {
	job     *importjob.Job
	leagues []league.League

	provider SportsDataProvider

	standings *cache.Store

	mu            sync.Mutex
	statsByLeague map[int64]bool
	oddsByLeague  map[int64]bool

	stop atomic.Bool
}

func newImportRun(job *importjob.Job, leagues []league.League, provider SportsDataProvider) *importRun {
	return &importRun{
		job:           job,
		leagues:       leagues,
		provider:      provider,
		standings:     cache.NewStore(0),
		statsByLeague: make(map[int64]bool),
		oddsByLeague:  make(map[int64]bool),
	}
}

func (r *importRun) RequestStop() {
	r.stop.Store(true)
}

func (r *importRun) Stopped() bool {
	return r.stop.Load()
}

// Standings returns the league table as position-by-team-id, fetching it at
// most once per run. Empty tables are cached too, and an empty table for the
// requested season falls back to the previous one: early-season imports often
// run before the provider publishes the new table.
func (r *importRun) Standings(ctx context.Context, leagueID int64, season int) (map[int64]int, error) {
	key := fmt.Sprintf("%d-%d", leagueID, season)
	value, err := r.standings.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		rows, err := r.provider.Standings(ctx, leagueID, season)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			rows, err = r.provider.Standings(ctx, leagueID, season-1)
			if err != nil {
				return nil, err
			}
		}

		byTeam := make(map[int64]int, len(rows))
		for _, row := range rows {
			byTeam[row.TeamID] = row.Position
		}
		return byTeam, nil
	})
	if err != nil {
		return nil, err
	}

	byTeam, ok := value.(map[int64]int)
	if !ok {
		return nil, fmt.Errorf("unexpected standings cache entry type %T", value)
	}
	return byTeam, nil
}

// StatisticsAvailable reports the memoized probe result for the league; the
// second return is false until the first fixture has been probed.
func (r *importRun) StatisticsAvailable(leagueID int64) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	available, probed := r.statsByLeague[leagueID]
	return available, probed
}

func (r *importRun) SetStatisticsAvailable(leagueID int64, available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statsByLeague[leagueID] = available
}

func (r *importRun) OddsAvailable(leagueID int64) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	available, probed := r.oddsByLeague[leagueID]
	return available, probed
}

func (r *importRun) SetOddsAvailable(leagueID int64, available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.oddsByLeague[leagueID] = available
}
