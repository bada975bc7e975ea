package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/betassistant/server/internal/domain/league"
	qb "github.com/betassistant/server/internal/platform/querybuilder"
)

type LeagueRepository struct {
	db *sqlx.DB
}

func NewLeagueRepository(db *sqlx.DB) *LeagueRepository {
	return &LeagueRepository{db: db}
}

func (r *LeagueRepository) ListEnabled(ctx context.Context) ([]league.League, error) {
	query, args, err := qb.Select(leagueColumns...).
		From("leagues").
		Where(qb.Eq("enabled", true)).
		OrderBy("priority", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list leagues query: %w", err)
	}

	var models []leagueRowModel
	if err := r.db.SelectContext(ctx, &models, query, args...); err != nil {
		return nil, fmt.Errorf("list enabled leagues: %w", err)
	}

	out := make([]league.League, 0, len(models))
	for _, model := range models {
		out = append(out, model.toDomain())
	}
	return out, nil
}

func (r *LeagueRepository) GetByID(ctx context.Context, id int64) (*league.League, error) {
	query, args, err := qb.Select(leagueColumns...).
		From("leagues").
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select league query: %w", err)
	}

	var model leagueRowModel
	if err := r.db.GetContext(ctx, &model, query, args...); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("select league id=%d: %w", id, err)
	}

	domain := model.toDomain()
	return &domain, nil
}

func (r *LeagueRepository) ListByIDs(ctx context.Context, ids []int64) ([]league.League, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	values := make([]any, 0, len(ids))
	for _, id := range ids {
		values = append(values, id)
	}

	query, args, err := qb.Select(leagueColumns...).
		From("leagues").
		Where(qb.In("id", values)).
		OrderBy("priority", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select leagues query: %w", err)
	}

	var models []leagueRowModel
	if err := r.db.SelectContext(ctx, &models, query, args...); err != nil {
		return nil, fmt.Errorf("list leagues by ids: %w", err)
	}

	out := make([]league.League, 0, len(models))
	for _, model := range models {
		out = append(out, model.toDomain())
	}
	return out, nil
}
