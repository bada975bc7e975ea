package postgres

import (
	"time"

	"github.com/betassistant/server/internal/domain/match"
)

var matchColumns = []string{
	"fixture_id", "match_date", "season", "league_id", "league_name", "country",
	"home_team", "away_team",
	"home_goals", "away_goals", "ht_home_goals", "ht_away_goals",
	"result", "ht_result",
	"home_shots", "home_shots_on_target", "home_possession", "home_corners",
	"home_offsides", "home_fouls", "home_yellow_cards", "home_red_cards", "home_xg",
	"away_shots", "away_shots_on_target", "away_possession", "away_corners",
	"away_offsides", "away_fouls", "away_yellow_cards", "away_red_cards", "away_xg",
	"odds_home", "odds_draw", "odds_away",
	"home_standing", "away_standing",
	"is_finished", "created_at", "updated_at",
}

type matchRowModel struct {
	FixtureID  int64     `db:"fixture_id"`
	MatchDate  time.Time `db:"match_date"`
	Season     int       `db:"season"`
	LeagueID   int64     `db:"league_id"`
	LeagueName string    `db:"league_name"`
	Country    string    `db:"country"`
	HomeTeam   string    `db:"home_team"`
	AwayTeam   string    `db:"away_team"`

	HomeGoals   *int    `db:"home_goals"`
	AwayGoals   *int    `db:"away_goals"`
	HTHomeGoals *int    `db:"ht_home_goals"`
	HTAwayGoals *int    `db:"ht_away_goals"`
	Result      *string `db:"result"`
	HTResult    *string `db:"ht_result"`

	HomeShots         *int     `db:"home_shots"`
	HomeShotsOnTarget *int     `db:"home_shots_on_target"`
	HomePossession    *int     `db:"home_possession"`
	HomeCorners       *int     `db:"home_corners"`
	HomeOffsides      *int     `db:"home_offsides"`
	HomeFouls         *int     `db:"home_fouls"`
	HomeYellowCards   *int     `db:"home_yellow_cards"`
	HomeRedCards      *int     `db:"home_red_cards"`
	HomeXG            *float64 `db:"home_xg"`

	AwayShots         *int     `db:"away_shots"`
	AwayShotsOnTarget *int     `db:"away_shots_on_target"`
	AwayPossession    *int     `db:"away_possession"`
	AwayCorners       *int     `db:"away_corners"`
	AwayOffsides      *int     `db:"away_offsides"`
	AwayFouls         *int     `db:"away_fouls"`
	AwayYellowCards   *int     `db:"away_yellow_cards"`
	AwayRedCards      *int     `db:"away_red_cards"`
	AwayXG            *float64 `db:"away_xg"`

	OddsHome *float64 `db:"odds_home"`
	OddsDraw *float64 `db:"odds_draw"`
	OddsAway *float64 `db:"odds_away"`

	HomeStanding *int `db:"home_standing"`
	AwayStanding *int `db:"away_standing"`

	IsFinished bool      `db:"is_finished"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type matchInsertModel struct {
	FixtureID  int64     `db:"fixture_id"`
	MatchDate  time.Time `db:"match_date"`
	Season     int       `db:"season"`
	LeagueID   int64     `db:"league_id"`
	LeagueName string    `db:"league_name"`
	Country    string    `db:"country"`
	HomeTeam   string    `db:"home_team"`
	AwayTeam   string    `db:"away_team"`

	HomeGoals   *int    `db:"home_goals"`
	AwayGoals   *int    `db:"away_goals"`
	HTHomeGoals *int    `db:"ht_home_goals"`
	HTAwayGoals *int    `db:"ht_away_goals"`
	Result      *string `db:"result"`
	HTResult    *string `db:"ht_result"`

	HomeShots         *int     `db:"home_shots"`
	HomeShotsOnTarget *int     `db:"home_shots_on_target"`
	HomePossession    *int     `db:"home_possession"`
	HomeCorners       *int     `db:"home_corners"`
	HomeOffsides      *int     `db:"home_offsides"`
	HomeFouls         *int     `db:"home_fouls"`
	HomeYellowCards   *int     `db:"home_yellow_cards"`
	HomeRedCards      *int     `db:"home_red_cards"`
	HomeXG            *float64 `db:"home_xg"`

	AwayShots         *int     `db:"away_shots"`
	AwayShotsOnTarget *int     `db:"away_shots_on_target"`
	AwayPossession    *int     `db:"away_possession"`
	AwayCorners       *int     `db:"away_corners"`
	AwayOffsides      *int     `db:"away_offsides"`
	AwayFouls         *int     `db:"away_fouls"`
	AwayYellowCards   *int     `db:"away_yellow_cards"`
	AwayRedCards      *int     `db:"away_red_cards"`
	AwayXG            *float64 `db:"away_xg"`

	OddsHome *float64 `db:"odds_home"`
	OddsDraw *float64 `db:"odds_draw"`
	OddsAway *float64 `db:"odds_away"`

	HomeStanding *int `db:"home_standing"`
	AwayStanding *int `db:"away_standing"`

	IsFinished bool `db:"is_finished"`
}

func matchInsertFromDomain(record *match.Record) matchInsertModel {
	model := matchInsertModel{
		FixtureID:    record.FixtureID,
		MatchDate:    record.Date.UTC(),
		Season:       record.Season,
		LeagueID:     record.LeagueID,
		LeagueName:   record.LeagueName,
		Country:      record.Country,
		HomeTeam:     record.HomeTeam,
		AwayTeam:     record.AwayTeam,
		HomeGoals:    record.HomeGoals,
		AwayGoals:    record.AwayGoals,
		HTHomeGoals:  record.HalfTimeHomeGoals,
		HTAwayGoals:  record.HalfTimeAwayGoals,
		Result:       resultToString(record.Result),
		HTResult:     resultToString(record.HalfTimeResult),
		OddsHome:     record.OddsHome,
		OddsDraw:     record.OddsDraw,
		OddsAway:     record.OddsAway,
		HomeStanding: record.HomeStanding,
		AwayStanding: record.AwayStanding,
		IsFinished:   record.IsFinished,
	}

	if stats := record.HomeStats; stats != nil {
		model.HomeShots = stats.Shots
		model.HomeShotsOnTarget = stats.ShotsOnTarget
		model.HomePossession = stats.Possession
		model.HomeCorners = stats.Corners
		model.HomeOffsides = stats.Offsides
		model.HomeFouls = stats.Fouls
		model.HomeYellowCards = stats.YellowCards
		model.HomeRedCards = stats.RedCards
		model.HomeXG = stats.ExpectedGoals
	}
	if stats := record.AwayStats; stats != nil {
		model.AwayShots = stats.Shots
		model.AwayShotsOnTarget = stats.ShotsOnTarget
		model.AwayPossession = stats.Possession
		model.AwayCorners = stats.Corners
		model.AwayOffsides = stats.Offsides
		model.AwayFouls = stats.Fouls
		model.AwayYellowCards = stats.YellowCards
		model.AwayRedCards = stats.RedCards
		model.AwayXG = stats.ExpectedGoals
	}

	return model
}

func (m matchRowModel) toDomain() *match.Record {
	record := &match.Record{
		FixtureID:         m.FixtureID,
		Date:              m.MatchDate.UTC(),
		Season:            m.Season,
		LeagueID:          m.LeagueID,
		LeagueName:        m.LeagueName,
		Country:           m.Country,
		HomeTeam:          m.HomeTeam,
		AwayTeam:          m.AwayTeam,
		HomeGoals:         m.HomeGoals,
		AwayGoals:         m.AwayGoals,
		HalfTimeHomeGoals: m.HTHomeGoals,
		HalfTimeAwayGoals: m.HTAwayGoals,
		Result:            resultFromString(m.Result),
		HalfTimeResult:    resultFromString(m.HTResult),
		OddsHome:          m.OddsHome,
		OddsDraw:          m.OddsDraw,
		OddsAway:          m.OddsAway,
		HomeStanding:      m.HomeStanding,
		AwayStanding:      m.AwayStanding,
		IsFinished:        m.IsFinished,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}

	homeStats := match.TeamStats{
		Shots:         m.HomeShots,
		ShotsOnTarget: m.HomeShotsOnTarget,
		Possession:    m.HomePossession,
		Corners:       m.HomeCorners,
		Offsides:      m.HomeOffsides,
		Fouls:         m.HomeFouls,
		YellowCards:   m.HomeYellowCards,
		RedCards:      m.HomeRedCards,
		ExpectedGoals: m.HomeXG,
	}
	if !homeStats.Empty() {
		record.HomeStats = &homeStats
	}
	awayStats := match.TeamStats{
		Shots:         m.AwayShots,
		ShotsOnTarget: m.AwayShotsOnTarget,
		Possession:    m.AwayPossession,
		Corners:       m.AwayCorners,
		Offsides:      m.AwayOffsides,
		Fouls:         m.AwayFouls,
		YellowCards:   m.AwayYellowCards,
		RedCards:      m.AwayRedCards,
		ExpectedGoals: m.AwayXG,
	}
	if !awayStats.Empty() {
		record.AwayStats = &awayStats
	}

	return record
}

func resultToString(result *match.Result) *string {
	if result == nil {
		return nil
	}
	text := string(*result)
	return &text
}

func resultFromString(text *string) *match.Result {
	if text == nil || *text == "" {
		return nil
	}
	result := match.Result(*text)
	return &result
}
