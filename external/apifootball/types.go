package apifootball

import "encoding/json"

// envelope is the common API-Football response wrapper. The errors field is
// an empty array on success and an object keyed by error kind on failure, so
// it has to stay raw until inspected.
type envelope struct {
	Get        string          `json:"get"`
	Errors     json.RawMessage `json:"errors"`
	Results    int             `json:"results"`
	Paging     paging          `json:"paging"`
	RawResults json.RawMessage `json:"response"`
}

type paging struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

type fixtureItem struct {
	Fixture struct {
		ID     int64  `json:"id"`
		Date   string `json:"date"`
		Status struct {
			Short string `json:"short"`
		} `json:"status"`
	} `json:"fixture"`
	League struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Country string `json:"country"`
		Season  int    `json:"season"`
	} `json:"league"`
	Teams struct {
		Home teamRef `json:"home"`
		Away teamRef `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"goals"`
	Score struct {
		Halftime struct {
			Home *int `json:"home"`
			Away *int `json:"away"`
		} `json:"halftime"`
	} `json:"score"`
}

type teamRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type statisticsItem struct {
	Team       teamRef `json:"team"`
	Statistics []struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"statistics"`
}

type oddsItem struct {
	Bookmakers []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
		Bets []struct {
			ID     int64  `json:"id"`
			Name   string `json:"name"`
			Values []struct {
				Value string `json:"value"`
				Odd   string `json:"odd"`
			} `json:"values"`
		} `json:"bets"`
	} `json:"bookmakers"`
}

type standingsItem struct {
	League struct {
		ID        int64  `json:"id"`
		Name      string `json:"name"`
		Season    int    `json:"season"`
		Standings [][]struct {
			Rank int     `json:"rank"`
			Team teamRef `json:"team"`
		} `json:"standings"`
	} `json:"league"`
}
