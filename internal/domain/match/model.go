package match

import "time"

type Result string

const (
	ResultHome Result = "H"
	ResultDraw Result = "D"
	ResultAway Result = "A"
)

func ResultFromGoals(home, away int) Result {
	switch {
	case home > away:
		return ResultHome
	case home < away:
		return ResultAway
	default:
		return ResultDraw
	}
}

// TeamStats holds one side's match statistics. All fields are optional
// because providers report different subsets per league.
type TeamStats struct {
	Shots         *int
	ShotsOnTarget *int
	Possession    *int
	Corners       *int
	Offsides      *int
	Fouls         *int
	YellowCards   *int
	RedCards      *int
	ExpectedGoals *float64
}

func (s *TeamStats) Empty() bool {
	if s == nil {
		return true
	}
	return s.Shots == nil && s.ShotsOnTarget == nil && s.Possession == nil &&
		s.Corners == nil && s.Offsides == nil && s.Fouls == nil &&
		s.YellowCards == nil && s.RedCards == nil && s.ExpectedGoals == nil
}

// Record is one fixture as stored for analysis. Keyed by the provider's
// fixture id.
type Record struct {
	FixtureID int64

	Date       time.Time
	Season     int
	LeagueID   int64
	LeagueName string
	Country    string

	HomeTeam string
	AwayTeam string

	HomeGoals         *int
	AwayGoals         *int
	HalfTimeHomeGoals *int
	HalfTimeAwayGoals *int
	Result            *Result
	HalfTimeResult    *Result

	HomeStats *TeamStats
	AwayStats *TeamStats

	OddsHome *float64
	OddsDraw *float64
	OddsAway *float64

	HomeStanding *int
	AwayStanding *int

	IsFinished bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Record) HasOdds() bool {
	return r != nil && r.OddsHome != nil && r.OddsDraw != nil && r.OddsAway != nil
}

// HasAnyOdds reports whether at least one of the three quotes is stored.
func (r *Record) HasAnyOdds() bool {
	return r != nil && (r.OddsHome != nil || r.OddsDraw != nil || r.OddsAway != nil)
}

func (r *Record) HasStandings() bool {
	return r != nil && r.HomeStanding != nil && r.AwayStanding != nil
}

func (r *Record) HasStatistics() bool {
	return r != nil && (!r.HomeStats.Empty() || !r.AwayStats.Empty())
}
