package ports

// Metrics receives counters from the cache-backed components.
type Metrics interface {
	RateLimitDecision(prefix string, allowed bool)
	// RateLimitFailOpen counts requests admitted because the store was down.
	RateLimitFailOpen(prefix string)
	CacheLookup(key string, hit bool)
	WebhookEvent(eventType, outcome string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RateLimitDecision(string, bool) {}
func (NopMetrics) RateLimitFailOpen(string)       {}
func (NopMetrics) CacheLookup(string, bool)       {}
func (NopMetrics) WebhookEvent(string, string)    {}
