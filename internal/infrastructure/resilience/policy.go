package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// Config tunes retries and the per-operation breakers that guard calls to
// Elasticsearch, Ollama and NATS. Zero values take the defaults.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

const (
	defaultRetryAttempts   = 3
	defaultInitialBackoff  = 100 * time.Millisecond
	defaultMaxBackoff      = 400 * time.Millisecond
	defaultMultiplier      = 2.0
	defaultMinRequests     = 10
	defaultFailureRatio    = 0.5
	defaultOpenTimeout     = 30 * time.Second
	defaultHalfOpenProbing = 2
)

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:        defaultRetryAttempts,
		RetryInitialBackoff:     defaultInitialBackoff,
		RetryMaxBackoff:         defaultMaxBackoff,
		RetryMultiplier:         defaultMultiplier,
		BreakerEnabled:          true,
		BreakerMinRequests:      defaultMinRequests,
		BreakerFailureRatio:     defaultFailureRatio,
		BreakerOpenTimeout:      defaultOpenTimeout,
		BreakerHalfOpenMaxCalls: defaultHalfOpenProbing,
	}
}

func (c Config) normalize() Config {
	c.RetryMaxAttempts = orDefault(c.RetryMaxAttempts, defaultRetryAttempts)
	c.RetryInitialBackoff = orDefault(c.RetryInitialBackoff, defaultInitialBackoff)
	c.RetryMaxBackoff = max(orDefault(c.RetryMaxBackoff, defaultMaxBackoff), c.RetryInitialBackoff)
	if c.RetryMultiplier < 1 {
		c.RetryMultiplier = defaultMultiplier
	}

	c.BreakerMinRequests = orDefault(c.BreakerMinRequests, defaultMinRequests)
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = defaultFailureRatio
	}
	c.BreakerOpenTimeout = orDefault(c.BreakerOpenTimeout, defaultOpenTimeout)
	c.BreakerHalfOpenMaxCalls = orDefault(c.BreakerHalfOpenMaxCalls, defaultHalfOpenProbing)
	return c
}

// backoff is the wait after the given failed attempt (1-based): exponential
// from RetryInitialBackoff, capped at RetryMaxBackoff.
func (c Config) backoff(attempt int) time.Duration {
	wait := float64(c.RetryInitialBackoff)
	for i := 1; i < attempt; i++ {
		wait *= c.RetryMultiplier
		if wait >= float64(c.RetryMaxBackoff) {
			return c.RetryMaxBackoff
		}
	}
	return min(time.Duration(wait), c.RetryMaxBackoff)
}

func (c Config) shouldTrip(counts gobreaker.Counts) bool {
	if counts.Requests < c.BreakerMinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.BreakerFailureRatio
}

func orDefault[T int | uint32 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}
