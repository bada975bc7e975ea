package usecase

import (
	"context"
	"sync"
	"time"
)

// stubProvider is a programmable SportsDataProvider for tests. Unset
// callbacks return empty results, and every call is counted so tests can
// assert how many paid requests an import would have spent.
type stubProvider struct {
	mu sync.Mutex

	fixturesFn  func(leagueID int64, season int, from, to time.Time) ([]ProviderFixture, error)
	statsFn     func(fixtureID int64) ([]ProviderTeamStatistics, error)
	oddsFn      func(fixtureID int64) (*ProviderOdds, error)
	standingsFn func(leagueID int64, season int) ([]ProviderStandingRow, error)
	quotaFn     func() Quota

	fixtureCalls   []fixtureCall
	statsCalls     int
	oddsCalls      int
	standingsCalls []standingsCall
}

type fixtureCall struct {
	LeagueID int64
	Season   int
}

type standingsCall struct {
	LeagueID int64
	Season   int
}

func (p *stubProvider) FixturesByLeague(_ context.Context, leagueID int64, season int, from, to time.Time) ([]ProviderFixture, error) {
	p.mu.Lock()
	p.fixtureCalls = append(p.fixtureCalls, fixtureCall{LeagueID: leagueID, Season: season})
	fn := p.fixturesFn
	p.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(leagueID, season, from, to)
}

func (p *stubProvider) FixtureStatistics(_ context.Context, fixtureID int64) ([]ProviderTeamStatistics, error) {
	p.mu.Lock()
	p.statsCalls++
	fn := p.statsFn
	p.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(fixtureID)
}

func (p *stubProvider) FixtureOdds(_ context.Context, fixtureID int64) (*ProviderOdds, error) {
	p.mu.Lock()
	p.oddsCalls++
	fn := p.oddsFn
	p.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(fixtureID)
}

func (p *stubProvider) Standings(_ context.Context, leagueID int64, season int) ([]ProviderStandingRow, error) {
	p.mu.Lock()
	p.standingsCalls = append(p.standingsCalls, standingsCall{LeagueID: leagueID, Season: season})
	fn := p.standingsFn
	p.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(leagueID, season)
}

func (p *stubProvider) Quota() Quota {
	p.mu.Lock()
	fn := p.quotaFn
	p.mu.Unlock()

	if fn == nil {
		return Quota{}
	}
	return fn()
}

func (p *stubProvider) FixtureCallCount(leagueID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := 0
	for _, call := range p.fixtureCalls {
		if call.LeagueID == leagueID {
			count++
		}
	}
	return count
}

func (p *stubProvider) StatsCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsCalls
}

func (p *stubProvider) OddsCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.oddsCalls
}

func (p *stubProvider) StandingsCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.standingsCalls)
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func day(value string) time.Time {
	parsed, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		panic(err)
	}
	return parsed
}
