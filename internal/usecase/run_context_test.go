package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/betassistant/server/internal/domain/importjob"
	"github.com/betassistant/server/internal/domain/league"
)

func newStandingsRun(provider *stubProvider) *importRun {
	job := &importjob.Job{ID: 1, Type: importjob.TypeNewMatches, Status: importjob.StatusRunning}
	return newImportRun(job, []league.League{{ID: 39, Enabled: true}}, provider)
}

func TestImportRun_StandingsFetchedOncePerRun(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{
		standingsFn: func(int64, int) ([]ProviderStandingRow, error) {
			return []ProviderStandingRow{
				{TeamID: 10, Position: 1},
				{TeamID: 20, Position: 2},
			}, nil
		},
	}
	run := newStandingsRun(provider)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		byTeam, err := run.Standings(ctx, 39, 2025)
		if err != nil {
			t.Fatalf("standings: %v", err)
		}
		if byTeam[10] != 1 || byTeam[20] != 2 {
			t.Fatalf("unexpected table: %v", byTeam)
		}
	}

	if provider.StandingsCallCount() != 1 {
		t.Fatalf("standings calls = %d, want 1", provider.StandingsCallCount())
	}
}

func TestImportRun_StandingsFallsBackToPreviousSeason(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{
		standingsFn: func(_ int64, season int) ([]ProviderStandingRow, error) {
			// The new season's table is not published yet.
			if season == 2026 {
				return nil, nil
			}
			return []ProviderStandingRow{{TeamID: 10, Position: 5}}, nil
		},
	}
	run := newStandingsRun(provider)

	byTeam, err := run.Standings(context.Background(), 39, 2026)
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	if byTeam[10] != 5 {
		t.Fatalf("position = %d, want 5 from previous season", byTeam[10])
	}
	if provider.StandingsCallCount() != 2 {
		t.Fatalf("standings calls = %d, want 2 (season then fallback)", provider.StandingsCallCount())
	}

	// The fallback result is cached under the requested season.
	if _, err := run.Standings(context.Background(), 39, 2026); err != nil {
		t.Fatalf("cached standings: %v", err)
	}
	if provider.StandingsCallCount() != 2 {
		t.Fatalf("cached lookup must not refetch")
	}
}

func TestImportRun_StandingsErrorIsNotCached(t *testing.T) {
	t.Parallel()

	failing := errors.New("provider down")
	calls := 0
	provider := &stubProvider{}
	provider.standingsFn = func(int64, int) ([]ProviderStandingRow, error) {
		calls++
		if calls == 1 {
			return nil, failing
		}
		return []ProviderStandingRow{{TeamID: 10, Position: 7}}, nil
	}
	run := newStandingsRun(provider)
	ctx := context.Background()

	if _, err := run.Standings(ctx, 39, 2025); !errors.Is(err, failing) {
		t.Fatalf("expected provider error, got %v", err)
	}

	byTeam, err := run.Standings(ctx, 39, 2025)
	if err != nil {
		t.Fatalf("retry after error: %v", err)
	}
	if byTeam[10] != 7 {
		t.Fatalf("position = %d, want 7", byTeam[10])
	}
}

func TestImportRun_AvailabilityMemos(t *testing.T) {
	t.Parallel()

	run := newStandingsRun(&stubProvider{})

	if _, probed := run.StatisticsAvailable(39); probed {
		t.Fatalf("league must start unprobed")
	}
	run.SetStatisticsAvailable(39, false)
	available, probed := run.StatisticsAvailable(39)
	if !probed || available {
		t.Fatalf("memo = (%v, %v), want probed and unavailable", available, probed)
	}

	run.SetOddsAvailable(39, true)
	available, probed = run.OddsAvailable(39)
	if !probed || !available {
		t.Fatalf("odds memo = (%v, %v), want probed and available", available, probed)
	}
	if _, probed := run.OddsAvailable(140); probed {
		t.Fatalf("memo must be per league")
	}
}

func TestRateLimitMonitor(t *testing.T) {
	t.Parallel()

	t.Run("unknown budget never blocks", func(t *testing.T) {
		monitor := NewRateLimitMonitor(&stubProvider{})
		if monitor.BelowThreshold(10) {
			t.Fatalf("unknown quota must not trip the threshold")
		}
		remaining, resetAt := monitor.Snapshot()
		if remaining != nil || resetAt != nil {
			t.Fatalf("snapshot = (%v, %v), want nils", remaining, resetAt)
		}
	})

	t.Run("known budget compares against threshold", func(t *testing.T) {
		resetAt := day("2026-03-02")
		provider := &stubProvider{
			quotaFn: func() Quota { return Quota{Remaining: 7, ResetAt: resetAt, Known: true} },
		}
		monitor := NewRateLimitMonitor(provider)

		if monitor.BelowThreshold(6) {
			t.Fatalf("remaining above threshold must not block")
		}
		if !monitor.BelowThreshold(7) {
			t.Fatalf("remaining at the threshold must block")
		}
		if !monitor.BelowThreshold(8) {
			t.Fatalf("remaining below threshold must block")
		}
		remaining, snapshotReset := monitor.Snapshot()
		if remaining == nil || *remaining != 7 {
			t.Fatalf("snapshot remaining = %v, want 7", remaining)
		}
		if snapshotReset == nil || !snapshotReset.Equal(resetAt) {
			t.Fatalf("snapshot reset = %v, want %v", snapshotReset, resetAt)
		}
	})
}

func TestClassifyFailure(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want importjob.FailureReason
	}{
		{"rate limit", &RateLimitError{}, importjob.FailureRateLimit},
		{"invalid input", ErrInvalidInput, importjob.FailureValidationError},
		{"dependency down", ErrDependencyUnavailable, importjob.FailureNetworkError},
		{"timeout", context.DeadlineExceeded, importjob.FailureNetworkError},
		{"anything else", errors.New("boom"), importjob.FailureOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyFailure(tc.err); got != tc.want {
				t.Fatalf("ClassifyFailure = %s, want %s", got, tc.want)
			}
		})
	}
}
