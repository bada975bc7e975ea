package apifootball

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/betassistant/server/internal/platform/logging"
	"github.com/betassistant/server/internal/platform/resilience"
	"github.com/betassistant/server/internal/usecase"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(ClientConfig{
		HTTPClient: server.Client(),
		BaseURL:    server.URL,
		APIKey:     "test-key",
		Logger:     logging.NewNop(),
	})
}

func writeEnvelope(w http.ResponseWriter, response string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"get":"x","errors":[],"results":1,"paging":{"current":1,"total":1},"response":%s}`, response)
}

func TestClient_FixturesByLeague(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fixtures", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-apisports-key"))
		require.Equal(t, "39", r.URL.Query().Get("league"))
		require.Equal(t, "2025", r.URL.Query().Get("season"))
		require.Equal(t, "2025-09-01", r.URL.Query().Get("from"))
		require.Equal(t, "UTC", r.URL.Query().Get("timezone"))

		w.Header().Set("x-ratelimit-requests-remaining", "96")
		w.Header().Set("X-RateLimit-Remaining", "9")
		writeEnvelope(w, `[
			{
				"fixture": {"id": 2, "date": "2025-09-20T14:00:00+00:00", "status": {"short": "NS"}},
				"league": {"id": 39, "name": "Premier League", "country": "England", "season": 2025},
				"teams": {"home": {"id": 33, "name": "Manchester United"}, "away": {"id": 40, "name": "Liverpool"}},
				"goals": {"home": null, "away": null},
				"score": {"halftime": {"home": null, "away": null}}
			},
			{
				"fixture": {"id": 1, "date": "2025-09-13T16:30:00+00:00", "status": {"short": "FT"}},
				"league": {"id": 39, "name": "Premier League", "country": "England", "season": 2025},
				"teams": {"home": {"id": 42, "name": "Arsenal"}, "away": {"id": 47, "name": "Tottenham"}},
				"goals": {"home": 3, "away": 1},
				"score": {"halftime": {"home": 1, "away": 0}}
			},
			{
				"fixture": {"id": 3, "date": "not-a-date", "status": {"short": "NS"}},
				"league": {"id": 39, "name": "Premier League", "country": "England", "season": 2025},
				"teams": {"home": {"id": 1, "name": "A"}, "away": {"id": 2, "name": "B"}},
				"goals": {"home": null, "away": null},
				"score": {"halftime": {"home": null, "away": null}}
			}
		]`)
	})

	fixtures, err := client.FixturesByLeague(context.Background(), 39, 2025, day("2025-09-01"), day("2025-09-30"))
	require.NoError(t, err)
	require.Len(t, fixtures, 2, "fixture with unparsable date is dropped")

	first := fixtures[0]
	require.Equal(t, int64(1), first.FixtureID, "fixtures sorted by kickoff")
	require.Equal(t, "Arsenal", first.HomeTeam)
	require.True(t, first.Finished)
	require.NotNil(t, first.HomeGoals)
	require.Equal(t, 3, *first.HomeGoals)
	require.NotNil(t, first.HalfTimeHomeGoals)
	require.Equal(t, 1, *first.HalfTimeHomeGoals)

	second := fixtures[1]
	require.False(t, second.Finished)
	require.Nil(t, second.HomeGoals)

	quota := client.Quota()
	require.True(t, quota.Known)
	require.Equal(t, 96, quota.Remaining, "daily window is authoritative while the minute window has headroom")
	require.False(t, quota.ResetAt.IsZero())
}

func TestClient_QuotaPrefersEmptyMinuteWindow(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ratelimit-requests-remaining", "80")
		w.Header().Set("X-RateLimit-Remaining", "0")
		writeEnvelope(w, `[]`)
	})

	_, err := client.FixturesByLeague(context.Background(), 39, 2025, day("2025-09-01"), day("2025-09-30"))
	require.NoError(t, err)

	quota := client.Quota()
	require.True(t, quota.Known)
	require.Equal(t, 0, quota.Remaining)
	require.WithinDuration(t, time.Now().Add(time.Minute), quota.ResetAt, 2*time.Minute,
		"an empty minute window resets at the next minute boundary")
}

func TestClient_EnvelopeRateLimitError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ratelimit-requests-remaining", "0")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"get":"fixtures","errors":{"rateLimit":"Too many requests"},"results":0,"paging":{"current":1,"total":1},"response":[]}`)
	})

	_, err := client.FixturesByLeague(context.Background(), 39, 2025, day("2025-09-01"), day("2025-09-30"))

	var rateLimited *usecase.RateLimitError
	require.ErrorAs(t, err, &rateLimited)
	require.False(t, rateLimited.ResetAt.IsZero())
}

func TestClient_HTTP429IsRateLimitError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.FixtureStatistics(context.Background(), 1001)

	var rateLimited *usecase.RateLimitError
	require.ErrorAs(t, err, &rateLimited)
}

func TestClient_FixtureStatisticsParsing(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fixtures/statistics", r.URL.Path)
		require.Equal(t, "1001", r.URL.Query().Get("fixture"))
		writeEnvelope(w, `[
			{
				"team": {"id": 42, "name": "Arsenal"},
				"statistics": [
					{"type": "Total Shots", "value": 15},
					{"type": "Shots on Goal", "value": 7},
					{"type": "Ball Possession", "value": "58%"},
					{"type": "Corner Kicks", "value": null},
					{"type": "expected_goals", "value": "2.13"},
					{"type": "Something New", "value": 4}
				]
			}
		]`)
	})

	stats, err := client.FixtureStatistics(context.Background(), 1001)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	block := stats[0].Stats
	require.Equal(t, int64(42), stats[0].TeamID)
	require.NotNil(t, block.Shots)
	require.Equal(t, 15, *block.Shots)
	require.NotNil(t, block.ShotsOnTarget)
	require.Equal(t, 7, *block.ShotsOnTarget)
	require.NotNil(t, block.Possession)
	require.Equal(t, 58, *block.Possession)
	require.Nil(t, block.Corners, "null values stay unset")
	require.NotNil(t, block.ExpectedGoals)
	require.InDelta(t, 2.13, *block.ExpectedGoals, 0.0001)
}

func TestClient_FixtureOdds(t *testing.T) {
	t.Parallel()

	t.Run("first complete 1X2 market wins", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/odds", r.URL.Path)
			require.Equal(t, "1", r.URL.Query().Get("bet"))
			writeEnvelope(w, `[
				{
					"bookmakers": [
						{
							"id": 8, "name": "Bet365",
							"bets": [
								{
									"id": 1, "name": "Match Winner",
									"values": [
										{"value": "Home", "odd": "1.95"},
										{"value": "Draw", "odd": "3.40"},
										{"value": "Away", "odd": "3.90"}
									]
								}
							]
						}
					]
				}
			]`)
		})

		odds, err := client.FixtureOdds(context.Background(), 1001)
		require.NoError(t, err)
		require.NotNil(t, odds)
		require.InDelta(t, 1.95, odds.Home, 0.0001)
		require.InDelta(t, 3.40, odds.Draw, 0.0001)
		require.InDelta(t, 3.90, odds.Away, 0.0001)
	})

	t.Run("incomplete market yields nil", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, `[
				{
					"bookmakers": [
						{
							"id": 8, "name": "Bet365",
							"bets": [
								{
									"id": 1, "name": "Match Winner",
									"values": [
										{"value": "Home", "odd": "1.95"},
										{"value": "Draw", "odd": "invalid"}
									]
								}
							]
						}
					]
				}
			]`)
		})

		odds, err := client.FixtureOdds(context.Background(), 1001)
		require.NoError(t, err)
		require.Nil(t, odds)
	})
}

func TestClient_Standings(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/standings", r.URL.Path)
		writeEnvelope(w, `[
			{
				"league": {
					"id": 39, "name": "Premier League", "season": 2025,
					"standings": [
						[
							{"rank": 2, "team": {"id": 40, "name": "Liverpool"}},
							{"rank": 1, "team": {"id": 42, "name": "Arsenal"}}
						],
						[
							{"rank": 1, "team": {"id": 99, "name": "Playoff Group"}}
						]
					]
				}
			}
		]`)
	})

	rows, err := client.Standings(context.Background(), 39, 2025)
	require.NoError(t, err)
	require.Len(t, rows, 2, "only the overall table counts")
	require.Equal(t, int64(42), rows[0].TeamID, "rows sorted by position")
	require.Equal(t, 1, rows[0].Position)
	require.Equal(t, int64(40), rows[1].TeamID)
}

func TestClient_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeEnvelope(w, `[]`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		HTTPClient: server.Client(),
		BaseURL:    server.URL,
		APIKey:     "test-key",
		MaxRetries: 1,
		Logger:     logging.NewNop(),
	})

	rows, err := client.Standings(context.Background(), 39, 2025)
	require.NoError(t, err)
	require.Empty(t, rows)
	require.Equal(t, 2, attempts)
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		HTTPClient: server.Client(),
		BaseURL:    server.URL,
		APIKey:     "test-key",
		MaxRetries: 3,
		Logger:     logging.NewNop(),
	})

	_, err := client.Standings(context.Background(), 39, 2025)
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestClient_CircuitBreakerOpensAfterTransientFailures(t *testing.T) {
	t.Parallel()

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		HTTPClient: server.Client(),
		BaseURL:    server.URL,
		APIKey:     "test-key",
		Logger:     logging.NewNop(),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 1,
			OpenTimeout:      time.Minute,
			HalfOpenMaxReq:   1,
		},
	})

	_, err := client.Standings(context.Background(), 39, 2025)
	require.ErrorIs(t, err, usecase.ErrDependencyUnavailable)
	require.Equal(t, 1, attempts)

	_, err = client.Standings(context.Background(), 39, 2025)
	require.ErrorIs(t, err, usecase.ErrDependencyUnavailable)
	require.Equal(t, 1, attempts, "open breaker must not reach the provider")
}

func TestParseProviderDateTime(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"2025-09-13T16:30:00+00:00", "2025-09-13T16:30:00Z", true},
		{"2025-09-13T18:30:00+02:00", "2025-09-13T16:30:00Z", true},
		{"2025-09-13 16:30:00", "2025-09-13T16:30:00Z", true},
		{"2025-09-13", "2025-09-13T00:00:00Z", true},
		{"", "", false},
		{"next saturday", "", false},
	}

	for _, tc := range cases {
		got := parseProviderDateTime(tc.raw)
		if !tc.ok {
			require.Nil(t, got, "raw=%q", tc.raw)
			continue
		}
		require.NotNil(t, got, "raw=%q", tc.raw)
		require.Equal(t, tc.want, got.Format(time.RFC3339), "raw=%q", tc.raw)
	}
}

func TestSanitizeSensitiveText(t *testing.T) {
	t.Parallel()

	got := sanitizeSensitiveText("request to https://host?key=secret123 failed", "secret123")
	require.NotContains(t, got, "secret123")
	require.Contains(t, got, "REDACTED")
}

func day(value string) time.Time {
	parsed, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		panic(errors.New("bad test date " + value))
	}
	return parsed
}
