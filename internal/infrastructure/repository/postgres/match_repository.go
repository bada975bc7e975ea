package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/betassistant/server/internal/domain/match"
	qb "github.com/betassistant/server/internal/platform/querybuilder"
)

type MatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// matchUpsertSuffix implements the overwrite/merge split: identity and
// result fields follow the latest import, while statistics, odds and
// standings only fill gaps so a re-import without enrichment never erases
// what a previous run paid requests for.
const matchUpsertSuffix = `ON CONFLICT (fixture_id)
DO UPDATE SET
    match_date = EXCLUDED.match_date,
    season = EXCLUDED.season,
    league_name = EXCLUDED.league_name,
    country = EXCLUDED.country,
    home_team = EXCLUDED.home_team,
    away_team = EXCLUDED.away_team,
    home_goals = EXCLUDED.home_goals,
    away_goals = EXCLUDED.away_goals,
    ht_home_goals = EXCLUDED.ht_home_goals,
    ht_away_goals = EXCLUDED.ht_away_goals,
    result = EXCLUDED.result,
    ht_result = EXCLUDED.ht_result,
    home_shots = COALESCE(EXCLUDED.home_shots, matches.home_shots),
    home_shots_on_target = COALESCE(EXCLUDED.home_shots_on_target, matches.home_shots_on_target),
    home_possession = COALESCE(EXCLUDED.home_possession, matches.home_possession),
    home_corners = COALESCE(EXCLUDED.home_corners, matches.home_corners),
    home_offsides = COALESCE(EXCLUDED.home_offsides, matches.home_offsides),
    home_fouls = COALESCE(EXCLUDED.home_fouls, matches.home_fouls),
    home_yellow_cards = COALESCE(EXCLUDED.home_yellow_cards, matches.home_yellow_cards),
    home_red_cards = COALESCE(EXCLUDED.home_red_cards, matches.home_red_cards),
    home_xg = COALESCE(EXCLUDED.home_xg, matches.home_xg),
    away_shots = COALESCE(EXCLUDED.away_shots, matches.away_shots),
    away_shots_on_target = COALESCE(EXCLUDED.away_shots_on_target, matches.away_shots_on_target),
    away_possession = COALESCE(EXCLUDED.away_possession, matches.away_possession),
    away_corners = COALESCE(EXCLUDED.away_corners, matches.away_corners),
    away_offsides = COALESCE(EXCLUDED.away_offsides, matches.away_offsides),
    away_fouls = COALESCE(EXCLUDED.away_fouls, matches.away_fouls),
    away_yellow_cards = COALESCE(EXCLUDED.away_yellow_cards, matches.away_yellow_cards),
    away_red_cards = COALESCE(EXCLUDED.away_red_cards, matches.away_red_cards),
    away_xg = COALESCE(EXCLUDED.away_xg, matches.away_xg),
    odds_home = COALESCE(EXCLUDED.odds_home, matches.odds_home),
    odds_draw = COALESCE(EXCLUDED.odds_draw, matches.odds_draw),
    odds_away = COALESCE(EXCLUDED.odds_away, matches.odds_away),
    home_standing = COALESCE(EXCLUDED.home_standing, matches.home_standing),
    away_standing = COALESCE(EXCLUDED.away_standing, matches.away_standing),
    is_finished = EXCLUDED.is_finished,
    updated_at = NOW()`

func (r *MatchRepository) Upsert(ctx context.Context, record *match.Record) error {
	if record == nil || record.FixtureID <= 0 {
		return fmt.Errorf("fixture id is required")
	}

	model := matchInsertFromDomain(record)
	query, args, err := qb.InsertModel("matches", model, matchUpsertSuffix)
	if err != nil {
		return fmt.Errorf("build upsert match query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: fixture_id=%d", match.ErrDuplicate, record.FixtureID)
		}
		return fmt.Errorf("upsert match fixture_id=%d: %w", record.FixtureID, err)
	}
	return nil
}

func (r *MatchRepository) GetByFixtureID(ctx context.Context, fixtureID int64) (*match.Record, error) {
	query, args, err := qb.Select(matchColumns...).
		From("matches").
		Where(qb.Eq("fixture_id", fixtureID)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select match query: %w", err)
	}

	var model matchRowModel
	if err := r.db.GetContext(ctx, &model, query, args...); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("select match fixture_id=%d: %w", fixtureID, err)
	}
	return model.toDomain(), nil
}

func (r *MatchRepository) ListUnfinished(ctx context.Context, leagueID int64, from, to time.Time) ([]*match.Record, error) {
	query, args, err := qb.Select(matchColumns...).
		From("matches").
		Where(
			qb.Eq("league_id", leagueID),
			qb.Eq("is_finished", false),
			qb.Expr("match_date >= ?", from.UTC()),
			qb.Expr("match_date <= ?", to.UTC()),
		).
		OrderBy("match_date", "fixture_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list unfinished query: %w", err)
	}

	var models []matchRowModel
	if err := r.db.SelectContext(ctx, &models, query, args...); err != nil {
		return nil, fmt.Errorf("list unfinished matches league_id=%d: %w", leagueID, err)
	}

	out := make([]*match.Record, 0, len(models))
	for _, model := range models {
		out = append(out, model.toDomain())
	}
	return out, nil
}
