package postgres

import "github.com/betassistant/server/internal/domain/league"

var leagueColumns = []string{"id", "name", "country", "enabled", "priority"}

type leagueRowModel struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	Country  string `db:"country"`
	Enabled  bool   `db:"enabled"`
	Priority int    `db:"priority"`
}

func (m leagueRowModel) toDomain() league.League {
	return league.League{
		ID:       m.ID,
		Name:     m.Name,
		Country:  m.Country,
		Enabled:  m.Enabled,
		Priority: m.Priority,
	}
}
