package search

import (
	"sync"
	"time"
)

// ProviderUsage is a snapshot of one provider's request counters.
type ProviderUsage struct {
	Provider     string        `json:"provider"`
	Requests     uint64        `json:"requests"`
	Failures     uint64        `json:"failures"`
	TotalLatency time.Duration `json:"total_latency"`
	LastUsed     time.Time     `json:"last_used"`
	LastError    string        `json:"last_error,omitempty"`
}

// AvgLatency returns the mean request latency, zero when unused.
func (u ProviderUsage) AvgLatency() time.Duration {
	if u.Requests == 0 {
		return 0
	}
	return u.TotalLatency / time.Duration(u.Requests)
}

// UsageTracker records a tick per provider call so engine stats can report
// which backends are actually carrying traffic.
type UsageTracker struct {
	mu    sync.Mutex
	usage map[string]*ProviderUsage
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{usage: make(map[string]*ProviderUsage)}
}

// Record ticks one provider call with its outcome and latency.
func (t *UsageTracker) Record(provider string, err error, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.usage[provider]
	if !ok {
		u = &ProviderUsage{Provider: provider}
		t.usage[provider] = u
	}
	u.Requests++
	u.TotalLatency += latency
	u.LastUsed = time.Now()
	if err != nil {
		u.Failures++
		u.LastError = err.Error()
	}
}

// Stats returns a copy of every provider's counters.
func (t *UsageTracker) Stats() map[string]ProviderUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := make(map[string]ProviderUsage, len(t.usage))
	for name, u := range t.usage {
		stats[name] = *u
	}
	return stats
}
