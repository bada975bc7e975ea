package memory

import "github.com/betassistant/server/internal/domain/league"

// DefaultLeagues seeds dev mode with the competitions the analysis cares
// about most. IDs follow the provider's league numbering.
func DefaultLeagues() []league.League {
	return []league.League{
		{ID: 39, Name: "Premier League", Country: "England", Enabled: true, Priority: 1},
		{ID: 140, Name: "La Liga", Country: "Spain", Enabled: true, Priority: 2},
		{ID: 78, Name: "Bundesliga", Country: "Germany", Enabled: true, Priority: 3},
		{ID: 135, Name: "Serie A", Country: "Italy", Enabled: true, Priority: 4},
		{ID: 61, Name: "Ligue 1", Country: "France", Enabled: true, Priority: 5},
		{ID: 106, Name: "Ekstraklasa", Country: "Poland", Enabled: true, Priority: 6},
		{ID: 88, Name: "Eredivisie", Country: "Netherlands", Enabled: true, Priority: 7},
		{ID: 94, Name: "Primeira Liga", Country: "Portugal", Enabled: true, Priority: 8},
		{ID: 2, Name: "Champions League", Country: "World", Enabled: false, Priority: 9},
	}
}
