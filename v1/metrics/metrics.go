package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AcquireCounter tracks the number of Lock calls.
	AcquireCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redlock_acquire_total",
		Help: "Total number of lock acquisition calls",
	})
	// AcquireFailureCounter tracks Lock calls that exhausted their retry budget.
	AcquireFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redlock_acquire_failures_total",
		Help: "Total number of lock acquisitions that failed after all retries",
	})
	// ExtendCounter tracks the number of Extend calls.
	ExtendCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redlock_extend_total",
		Help: "Total number of lease extension calls",
	})
	// UnlockCounter tracks the number of Unlock calls.
	UnlockCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redlock_unlock_total",
		Help: "Total number of unlock calls",
	})
	// RetryCounter tracks quorum attempts beyond the first within a call.
	RetryCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redlock_retries_total",
		Help: "Total number of retried quorum attempts",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCoreMetrics registers redlock core metrics on the provided registry.
func RegisterCoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AcquireCounter, AcquireFailureCounter, ExtendCounter, UnlockCounter, RetryCounter)
}
