package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/betassistant/server/internal/domain/match"
)

type MatchRepository struct {
	mu      sync.Mutex
	records map[int64]*match.Record
	now     func() time.Time
}

func NewMatchRepository() *MatchRepository {
	return &MatchRepository{
		records: make(map[int64]*match.Record),
		now:     time.Now,
	}
}

// Upsert mirrors the postgres semantics: volatile fields overwrite, odds and
// standings only fill gaps.
func (r *MatchRepository) Upsert(_ context.Context, record *match.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	existing, ok := r.records[record.FixtureID]
	if !ok {
		clone := cloneRecord(record)
		clone.CreatedAt = now
		clone.UpdatedAt = now
		r.records[record.FixtureID] = clone
		return nil
	}

	merged := cloneRecord(record)
	merged.CreatedAt = existing.CreatedAt
	merged.UpdatedAt = now
	if merged.OddsHome == nil {
		merged.OddsHome = existing.OddsHome
	}
	if merged.OddsDraw == nil {
		merged.OddsDraw = existing.OddsDraw
	}
	if merged.OddsAway == nil {
		merged.OddsAway = existing.OddsAway
	}
	if merged.HomeStanding == nil {
		merged.HomeStanding = existing.HomeStanding
	}
	if merged.AwayStanding == nil {
		merged.AwayStanding = existing.AwayStanding
	}
	if merged.HomeStats.Empty() {
		merged.HomeStats = existing.HomeStats
	}
	if merged.AwayStats.Empty() {
		merged.AwayStats = existing.AwayStats
	}
	r.records[record.FixtureID] = merged
	return nil
}

func (r *MatchRepository) GetByFixtureID(_ context.Context, fixtureID int64) (*match.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[fixtureID]
	if !ok {
		return nil, nil
	}
	return cloneRecord(record), nil
}

func (r *MatchRepository) ListUnfinished(_ context.Context, leagueID int64, from, to time.Time) ([]*match.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*match.Record, 0, 16)
	for _, record := range r.records {
		if record.LeagueID != leagueID || record.IsFinished {
			continue
		}
		if record.Date.Before(from) || record.Date.After(to) {
			continue
		}
		out = append(out, cloneRecord(record))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].FixtureID < out[j].FixtureID
	})
	return out, nil
}

func cloneRecord(record *match.Record) *match.Record {
	clone := *record
	clone.HomeGoals = cloneIntPtr(record.HomeGoals)
	clone.AwayGoals = cloneIntPtr(record.AwayGoals)
	clone.HalfTimeHomeGoals = cloneIntPtr(record.HalfTimeHomeGoals)
	clone.HalfTimeAwayGoals = cloneIntPtr(record.HalfTimeAwayGoals)
	clone.Result = cloneResultPtr(record.Result)
	clone.HalfTimeResult = cloneResultPtr(record.HalfTimeResult)
	clone.HomeStats = cloneStats(record.HomeStats)
	clone.AwayStats = cloneStats(record.AwayStats)
	clone.OddsHome = cloneFloatPtr(record.OddsHome)
	clone.OddsDraw = cloneFloatPtr(record.OddsDraw)
	clone.OddsAway = cloneFloatPtr(record.OddsAway)
	clone.HomeStanding = cloneIntPtr(record.HomeStanding)
	clone.AwayStanding = cloneIntPtr(record.AwayStanding)
	return &clone
}

func cloneStats(stats *match.TeamStats) *match.TeamStats {
	if stats == nil {
		return nil
	}
	clone := match.TeamStats{
		Shots:         cloneIntPtr(stats.Shots),
		ShotsOnTarget: cloneIntPtr(stats.ShotsOnTarget),
		Possession:    cloneIntPtr(stats.Possession),
		Corners:       cloneIntPtr(stats.Corners),
		Offsides:      cloneIntPtr(stats.Offsides),
		Fouls:         cloneIntPtr(stats.Fouls),
		YellowCards:   cloneIntPtr(stats.YellowCards),
		RedCards:      cloneIntPtr(stats.RedCards),
		ExpectedGoals: cloneFloatPtr(stats.ExpectedGoals),
	}
	return &clone
}

func cloneResultPtr(v *match.Result) *match.Result {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}

func cloneFloatPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}
