package redlock

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Defaults applied by New. They follow the canonical Redlock parameters:
// three total attempts spaced ~200ms apart with ±50ms of jitter, and a 1%
// drift margin on the TTL.
const (
	DefaultRetryCount  = 3
	DefaultRetryDelay  = 200 * time.Millisecond
	DefaultRetryJitter = 50 * time.Millisecond
	DefaultDriftFactor = 0.01
)

// Option configures a Redlock coordinator.
type Option func(*Redlock)

// WithRetryCount sets the total number of quorum attempts per call,
// including the first. It must be at least one.
func WithRetryCount(n int) Option {
	return func(r *Redlock) {
		r.retryCount = n
	}
}

// WithRetryDelay sets the base delay between quorum attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Redlock) {
		r.retryDelay = d
	}
}

// WithRetryJitter sets the half-width of the randomized spread applied to
// the retry delay, desynchronizing competing callers.
func WithRetryJitter(d time.Duration) Option {
	return func(r *Redlock) {
		r.retryJitter = d
	}
}

// WithDriftFactor sets the fraction of the TTL reserved as a safety margin
// against clock skew across instances.
func WithDriftFactor(f float64) Option {
	return func(r *Redlock) {
		r.driftFactor = f
	}
}

// WithTokenSource replaces the default crypto/rand token source. Intended
// for tests needing deterministic tokens.
func WithTokenSource(ts TokenSource) Option {
	return func(r *Redlock) {
		r.tokens = ts
	}
}

// WithTracing enables OpenTelemetry tracing for lock operations.
func WithTracing() Option {
	return func(r *Redlock) {
		r.traceEnabled = true
	}
}

// WithMetrics enables per-coordinator Prometheus metrics using the provided
// registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(r *Redlock) {
		r.votesHist = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "redlock_votes",
			Help:    "Votes gathered per quorum attempt",
			Buckets: prometheus.LinearBuckets(0, 1, len(r.instances)+1),
		})
		r.latencyHist = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "redlock_attempt_latency_seconds",
			Help:    "Latency of quorum attempts",
			Buckets: prometheus.DefBuckets,
		})
		reg.MustRegister(r.votesHist, r.latencyHist)
	}
}
