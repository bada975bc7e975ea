package usecase

import "time"

// RateLimitMonitor exposes the provider's request budget to the import loop.
// It holds no state of its own; the client tracks counters from response
// headers and this wrapper only interprets them.
type RateLimitMonitor struct {
	provider SportsDataProvider
}

func NewRateLimitMonitor(provider SportsDataProvider) *RateLimitMonitor {
	return &RateLimitMonitor{provider: provider}
}

func (m *RateLimitMonitor) Remaining() (int, bool) {
	quota := m.provider.Quota()
	return quota.Remaining, quota.Known
}

func (m *RateLimitMonitor) ResetAt() time.Time {
	return m.provider.Quota().ResetAt
}

// BelowThreshold reports whether the remaining budget is at or below n. An
// unknown budget (no request made yet) never blocks the import.
func (m *RateLimitMonitor) BelowThreshold(n int) bool {
	quota := m.provider.Quota()
	if !quota.Known {
		return false
	}
	return quota.Remaining <= n
}

// Snapshot returns the counters for persisting on the job, or nils when the
// budget is not known yet.
func (m *RateLimitMonitor) Snapshot() (*int, *time.Time) {
	quota := m.provider.Quota()
	if !quota.Known {
		return nil, nil
	}
	remaining := quota.Remaining
	resetAt := quota.ResetAt
	return &remaining, &resetAt
}
