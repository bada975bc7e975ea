package apifootball

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/betassistant/server/internal/domain/match"
	"github.com/betassistant/server/internal/platform/logging"
	"github.com/betassistant/server/internal/platform/resilience"
	"github.com/betassistant/server/internal/usecase"
)

const (
	defaultBaseURL = "https://v3.football.api-sports.io"

	// Bet id 1 is the pre-match "Match Winner" (1X2) market.
	matchWinnerBetID = 1

	headerDailyRemaining  = "x-ratelimit-requests-remaining"
	headerMinuteRemaining = "X-RateLimit-Remaining"
)

var errAPIFootballTransient = crerr.New("api-football transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight

	quotaMu         sync.Mutex
	dailyRemaining  *int
	minuteRemaining *int
	quotaSeenAt     time.Time
	now             func() time.Time
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 20 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         strings.TrimSpace(cfg.APIKey),
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
		now:            time.Now,
	}
}

func (c *Client) FixturesByLeague(ctx context.Context, leagueID int64, season int, from, to time.Time) ([]usecase.ProviderFixture, error) {
	if leagueID <= 0 {
		return nil, fmt.Errorf("league id must be greater than zero")
	}
	if season <= 0 {
		return nil, fmt.Errorf("season must be greater than zero")
	}

	query := map[string]string{
		"league":   strconv.FormatInt(leagueID, 10),
		"season":   strconv.Itoa(season),
		"from":     from.Format("2006-01-02"),
		"to":       to.Format("2006-01-02"),
		"timezone": "UTC",
	}

	var items []fixtureItem
	if err := c.doJSON(ctx, "/fixtures", query, &items); err != nil {
		return nil, fmt.Errorf("fetch fixtures league=%d season=%d: %w", leagueID, season, err)
	}

	out := make([]usecase.ProviderFixture, 0, len(items))
	for _, item := range items {
		if item.Fixture.ID <= 0 {
			continue
		}
		date := parseProviderDateTime(item.Fixture.Date)
		if date == nil {
			c.logger.WarnContext(ctx, "skip fixture with unparsable date",
				"fixture_id", item.Fixture.ID, "date", item.Fixture.Date)
			continue
		}
		out = append(out, usecase.ProviderFixture{
			FixtureID:         item.Fixture.ID,
			LeagueID:          item.League.ID,
			LeagueName:        strings.TrimSpace(item.League.Name),
			Country:           strings.TrimSpace(item.League.Country),
			Season:            item.League.Season,
			Date:              *date,
			HomeTeamID:        item.Teams.Home.ID,
			AwayTeamID:        item.Teams.Away.ID,
			HomeTeam:          strings.TrimSpace(item.Teams.Home.Name),
			AwayTeam:          strings.TrimSpace(item.Teams.Away.Name),
			HomeGoals:         item.Goals.Home,
			AwayGoals:         item.Goals.Away,
			HalfTimeHomeGoals: item.Score.Halftime.Home,
			HalfTimeAwayGoals: item.Score.Halftime.Away,
			Finished:          isFinishedStatus(item.Fixture.Status.Short),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].FixtureID < out[j].FixtureID
	})

	return out, nil
}

func (c *Client) FixtureStatistics(ctx context.Context, fixtureID int64) ([]usecase.ProviderTeamStatistics, error) {
	if fixtureID <= 0 {
		return nil, fmt.Errorf("fixture id must be greater than zero")
	}

	query := map[string]string{"fixture": strconv.FormatInt(fixtureID, 10)}
	var items []statisticsItem
	if err := c.doJSON(ctx, "/fixtures/statistics", query, &items); err != nil {
		return nil, fmt.Errorf("fetch statistics fixture=%d: %w", fixtureID, err)
	}

	out := make([]usecase.ProviderTeamStatistics, 0, len(items))
	for _, item := range items {
		if item.Team.ID <= 0 {
			continue
		}
		stats := match.TeamStats{}
		for _, stat := range item.Statistics {
			applyStatistic(&stats, stat.Type, stat.Value)
		}
		out = append(out, usecase.ProviderTeamStatistics{TeamID: item.Team.ID, Stats: stats})
	}

	return out, nil
}

// FixtureOdds returns the first bookmaker's 1X2 prices, or nil when no
// bookmaker quotes the match winner market.
func (c *Client) FixtureOdds(ctx context.Context, fixtureID int64) (*usecase.ProviderOdds, error) {
	if fixtureID <= 0 {
		return nil, fmt.Errorf("fixture id must be greater than zero")
	}

	query := map[string]string{
		"fixture": strconv.FormatInt(fixtureID, 10),
		"bet":     strconv.Itoa(matchWinnerBetID),
	}
	var items []oddsItem
	if err := c.doJSON(ctx, "/odds", query, &items); err != nil {
		return nil, fmt.Errorf("fetch odds fixture=%d: %w", fixtureID, err)
	}

	for _, item := range items {
		for _, bookmaker := range item.Bookmakers {
			for _, bet := range bookmaker.Bets {
				if bet.ID != matchWinnerBetID {
					continue
				}
				odds := usecase.ProviderOdds{}
				found := 0
				for _, value := range bet.Values {
					price, err := strconv.ParseFloat(strings.TrimSpace(value.Odd), 64)
					if err != nil || price <= 1 {
						continue
					}
					switch strings.ToLower(strings.TrimSpace(value.Value)) {
					case "home", "1":
						odds.Home = price
						found++
					case "draw", "x":
						odds.Draw = price
						found++
					case "away", "2":
						odds.Away = price
						found++
					}
				}
				if found == 3 {
					return &odds, nil
				}
			}
		}
	}

	return nil, nil
}

func (c *Client) Standings(ctx context.Context, leagueID int64, season int) ([]usecase.ProviderStandingRow, error) {
	if leagueID <= 0 {
		return nil, fmt.Errorf("league id must be greater than zero")
	}
	if season <= 0 {
		return nil, fmt.Errorf("season must be greater than zero")
	}

	query := map[string]string{
		"league": strconv.FormatInt(leagueID, 10),
		"season": strconv.Itoa(season),
	}
	var items []standingsItem
	if err := c.doJSON(ctx, "/standings", query, &items); err != nil {
		return nil, fmt.Errorf("fetch standings league=%d season=%d: %w", leagueID, season, err)
	}

	out := make([]usecase.ProviderStandingRow, 0, 24)
	for _, item := range items {
		// The first group is the overall table; later groups are
		// conference/playoff splits that the analysis does not use.
		if len(item.League.Standings) == 0 {
			continue
		}
		for _, row := range item.League.Standings[0] {
			if row.Team.ID <= 0 || row.Rank <= 0 {
				continue
			}
			out = append(out, usecase.ProviderStandingRow{
				TeamID:   row.Team.ID,
				TeamName: strings.TrimSpace(row.Team.Name),
				Position: row.Rank,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// Quota reports the request budget from the most recent response. The scarcer
// window wins: when both counters are known, the daily one is authoritative
// unless the per-minute window is already empty.
func (c *Client) Quota() usecase.Quota {
	c.quotaMu.Lock()
	defer c.quotaMu.Unlock()

	if c.dailyRemaining == nil && c.minuteRemaining == nil {
		return usecase.Quota{}
	}

	quota := usecase.Quota{Known: true}
	switch {
	case c.minuteRemaining != nil && *c.minuteRemaining <= 0:
		quota.Remaining = *c.minuteRemaining
		quota.ResetAt = c.quotaSeenAt.Truncate(time.Minute).Add(time.Minute)
	case c.dailyRemaining != nil:
		quota.Remaining = *c.dailyRemaining
		quota.ResetAt = nextMidnightUTC(c.quotaSeenAt)
	default:
		quota.Remaining = *c.minuteRemaining
		quota.ResetAt = c.quotaSeenAt.Truncate(time.Minute).Add(time.Minute)
	}

	return quota
}

func (c *Client) doJSON(ctx context.Context, path string, query map[string]string, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "api-football circuit breaker rejected request", "state", c.breaker.State())
			return fmt.Errorf("%w: sports data provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}

	fullURL := c.baseURL + path
	if encoded := values.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	key := path + "?" + values.Encode()
	out, err, _ := c.flight.Do(key, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && isCircuitFailure(reqErr) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		if isCircuitFailure(err) {
			return fmt.Errorf("%w: %s", usecase.ErrDependencyUnavailable, sanitizeSensitiveText(err.Error(), c.apiKey))
		}
		return err
	}

	raw, ok := out.([]byte)
	if !ok {
		return fmt.Errorf("unexpected response payload type %T", out)
	}

	var env envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode provider envelope: %w", err)
	}
	if err := c.envelopeError(env); err != nil {
		return err
	}
	if len(env.RawResults) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(env.RawResults, target); err != nil {
		return fmt.Errorf("decode provider payload: %w", err)
	}

	return nil
}

// envelopeError surfaces API-level errors, which arrive with HTTP 200. A
// request budget refusal is reported this way too.
func (c *Client) envelopeError(env envelope) error {
	trimmed := strings.TrimSpace(string(env.Errors))
	if trimmed == "" || trimmed == "[]" || trimmed == "{}" || trimmed == "null" {
		return nil
	}

	var byKind map[string]string
	if err := sonic.Unmarshal(env.Errors, &byKind); err != nil {
		return fmt.Errorf("provider error: %s", sanitizeSensitiveText(trimmed, c.apiKey))
	}

	for kind, message := range byKind {
		lower := strings.ToLower(kind)
		if lower == "ratelimit" || lower == "requests" {
			return c.rateLimitError()
		}
		if message != "" {
			return fmt.Errorf("provider error %s: %s", kind, sanitizeSensitiveText(message, c.apiKey))
		}
	}

	return fmt.Errorf("provider error: %s", sanitizeSensitiveText(trimmed, c.apiKey))
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")
		req.Header.Set("x-apisports-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %s", errAPIFootballTransient, sanitizeSensitiveText(err.Error(), c.apiKey))
		} else {
			c.updateQuota(resp.Header)
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 6<<20))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", errAPIFootballTransient, readErr)
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, c.rateLimitError()
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case isRetryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("%w: provider status=%d body=%s", errAPIFootballTransient, resp.StatusCode, abbreviateBody(raw))
			default:
				return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("provider request failed")
	}
	c.logger.WarnContext(ctx, "api-football request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func (c *Client) updateQuota(header http.Header) {
	c.quotaMu.Lock()
	defer c.quotaMu.Unlock()

	c.quotaSeenAt = c.now().UTC()
	if value, err := strconv.Atoi(strings.TrimSpace(header.Get(headerDailyRemaining))); err == nil {
		c.dailyRemaining = &value
	}
	if value, err := strconv.Atoi(strings.TrimSpace(header.Get(headerMinuteRemaining))); err == nil {
		c.minuteRemaining = &value
	}
}

func (c *Client) rateLimitError() error {
	quota := c.Quota()
	resetAt := quota.ResetAt
	if resetAt.IsZero() {
		resetAt = nextMidnightUTC(c.now().UTC())
	}
	return &usecase.RateLimitError{ResetAt: resetAt, Remaining: quota.Remaining}
}

func isFinishedStatus(short string) bool {
	switch strings.ToUpper(strings.TrimSpace(short)) {
	case "FT", "AET", "PEN":
		return true
	default:
		return false
	}
}

// applyStatistic maps one provider statistic row onto the stats struct.
// Values arrive as numbers, "55%" strings or null depending on the type.
func applyStatistic(stats *match.TeamStats, statType string, raw []byte) {
	switch strings.ToLower(strings.TrimSpace(statType)) {
	case "total shots":
		stats.Shots = parseIntValue(raw)
	case "shots on goal":
		stats.ShotsOnTarget = parseIntValue(raw)
	case "ball possession":
		stats.Possession = parseIntValue(raw)
	case "corner kicks":
		stats.Corners = parseIntValue(raw)
	case "offsides":
		stats.Offsides = parseIntValue(raw)
	case "fouls":
		stats.Fouls = parseIntValue(raw)
	case "yellow cards":
		stats.YellowCards = parseIntValue(raw)
	case "red cards":
		stats.RedCards = parseIntValue(raw)
	case "expected_goals":
		stats.ExpectedGoals = parseFloatValue(raw)
	}
}

func parseIntValue(raw []byte) *int {
	text := strings.TrimSpace(strings.Trim(string(raw), `"`))
	text = strings.TrimSuffix(text, "%")
	if text == "" || text == "null" {
		return nil
	}
	value, err := strconv.Atoi(text)
	if err != nil {
		if parsed, floatErr := strconv.ParseFloat(text, 64); floatErr == nil {
			rounded := int(parsed)
			return &rounded
		}
		return nil
	}
	return &value
}

func parseFloatValue(raw []byte) *float64 {
	text := strings.TrimSpace(strings.Trim(string(raw), `"`))
	if text == "" || text == "null" {
		return nil
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil
	}
	return &value
}

func parseProviderDateTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}

func nextMidnightUTC(from time.Time) time.Time {
	from = from.UTC()
	year, month, day := from.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

func sanitizeSensitiveText(value, apiKey string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if apiKey != "" {
		value = strings.ReplaceAll(value, apiKey, "REDACTED")
	}
	return value
}

func isCircuitFailure(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, errAPIFootballTransient)
}

func isRetryableStatus(code int) bool {
	return code >= http.StatusInternalServerError
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}

func maxInt(left, right int) int {
	if left > right {
		return left
	}
	return right
}
