package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/betassistant/server/internal/domain/league"
)

type LeagueRepository struct {
	mu      sync.Mutex
	leagues map[int64]league.League
}

func NewLeagueRepository(seed ...league.League) *LeagueRepository {
	repo := &LeagueRepository{leagues: make(map[int64]league.League, len(seed))}
	for _, lg := range seed {
		repo.leagues[lg.ID] = lg
	}
	return repo
}

func (r *LeagueRepository) Put(lg league.League) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leagues[lg.ID] = lg
}

func (r *LeagueRepository) ListEnabled(_ context.Context) ([]league.League, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]league.League, 0, len(r.leagues))
	for _, lg := range r.leagues {
		if lg.Enabled {
			out = append(out, lg)
		}
	}
	sortLeagues(out)
	return out, nil
}

func (r *LeagueRepository) GetByID(_ context.Context, id int64) (*league.League, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lg, ok := r.leagues[id]
	if !ok {
		return nil, nil
	}
	return &lg, nil
}

func (r *LeagueRepository) ListByIDs(_ context.Context, ids []int64) ([]league.League, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]league.League, 0, len(ids))
	for _, id := range ids {
		if lg, ok := r.leagues[id]; ok {
			out = append(out, lg)
		}
	}
	sortLeagues(out)
	return out, nil
}

func sortLeagues(leagues []league.League) {
	sort.SliceStable(leagues, func(i, j int) bool {
		if leagues[i].Priority != leagues[j].Priority {
			return leagues[i].Priority < leagues[j].Priority
		}
		return leagues[i].ID < leagues[j].ID
	})
}
