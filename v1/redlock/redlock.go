package redlock

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mirkobrombin/go-redlock/v1/errors"
	"github.com/mirkobrombin/go-redlock/v1/instance"
	"github.com/mirkobrombin/go-redlock/v1/metrics"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-redlock/v1/redlock")

// clockSkewAllowance is the fixed component of the drift margin, covering
// clock imprecision across instances independent of the TTL.
const clockSkewAllowance = 2 * time.Millisecond

// Lock holds the metadata of an acquired lock. It is valid evidence of
// exclusivity only while time.Now() is before Expiry; the struct does not
// enforce this, callers must check before relying on it.
type Lock struct {
	// Resource is the caller-supplied name the lock was taken on.
	Resource string
	// Token is the unique value stored at the resource key, proof of
	// ownership on release. Exclusive to this Lock.
	Token string
	// TTL is the requested lease duration.
	TTL time.Duration
	// Expiry is the monotonic-clock deadline of the validity window.
	Expiry time.Time
	// Votes is the number of instances that granted the lease.
	Votes int
}

// Valid reports whether the validity window is still open.
func (l *Lock) Valid() bool {
	return l != nil && time.Now().Before(l.Expiry)
}

// Redlock is a distributed lock coordinator over a set of independent
// storage instances. Its state is read-only after New, so one coordinator
// is safe for concurrent use; mutual exclusion between concurrent callers
// emerges from the atomicity of each instance's check-and-set.
//
// Worst-case latency of a Lock or Extend call is bounded by
// retryCount x (slowest instance timeout + retryDelay + retryJitter).
type Redlock struct {
	instances []instance.Instance
	quorum    int

	retryCount  int
	retryDelay  time.Duration
	retryJitter time.Duration
	driftFactor float64
	tokens      TokenSource

	traceEnabled bool
	votesHist    prometheus.Histogram
	latencyHist  prometheus.Histogram
}

// New returns a coordinator over the given instances. The majority
// threshold is fixed at len(instances)/2+1.
func New(instances []instance.Instance, opts ...Option) (*Redlock, error) {
	if len(instances) == 0 {
		return nil, errors.ErrNoInstances
	}
	r := &Redlock{
		instances:   append([]instance.Instance(nil), instances...),
		quorum:      len(instances)/2 + 1,
		retryCount:  DefaultRetryCount,
		retryDelay:  DefaultRetryDelay,
		retryJitter: DefaultRetryJitter,
		driftFactor: DefaultDriftFactor,
		tokens:      CryptoTokenSource{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.retryCount < 1 {
		return nil, fmt.Errorf("%w: retry count must be at least 1", errors.ErrInvalidInput)
	}
	if r.retryDelay < 0 || r.retryJitter < 0 {
		return nil, fmt.Errorf("%w: retry delay and jitter must be non-negative", errors.ErrInvalidInput)
	}
	if r.driftFactor < 0 {
		return nil, fmt.Errorf("%w: drift factor must be non-negative", errors.ErrInvalidInput)
	}
	if r.tokens == nil {
		return nil, fmt.Errorf("%w: token source must not be nil", errors.ErrInvalidInput)
	}
	return r, nil
}

// Quorum returns the majority threshold of the coordinator.
func (r *Redlock) Quorum() int {
	return r.quorum
}

type op int

const (
	opAcquire op = iota
	opExtend
)

// Lock acquires a lease on resource for ttl. It returns a Lock whose Expiry
// accounts for the time the acquisition itself consumed plus the drift
// margin, or ErrUnableToAcquire once the retry budget is exhausted.
func (r *Redlock) Lock(ctx context.Context, resource string, ttl time.Duration) (*Lock, error) {
	metrics.AcquireCounter.Inc()
	if resource == "" {
		return nil, fmt.Errorf("%w: resource name must not be empty", errors.ErrInvalidInput)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", errors.ErrInvalidInput)
	}
	var span trace.Span
	if r.traceEnabled {
		ctx, span = tracer.Start(ctx, "Redlock.Lock",
			trace.WithAttributes(attribute.String("redlock.resource", resource)))
		defer span.End()
	}
	lock, err := r.call(ctx, opAcquire, resource, "", ttl)
	if err != nil {
		metrics.AcquireFailureCounter.Inc()
		return nil, err
	}
	if r.traceEnabled {
		span.SetAttributes(
			attribute.Int("redlock.votes", lock.Votes),
			attribute.Int64("redlock.validity_ms", time.Until(lock.Expiry).Milliseconds()),
		)
	}
	return lock, nil
}

// Extend renews the lease of a previously acquired lock for another ttl,
// keeping its token. It returns a fresh Lock on success and
// ErrUnableToExtend once the retry budget is exhausted, typically because
// the lease already expired and was re-acquired elsewhere.
func (r *Redlock) Extend(ctx context.Context, lock *Lock, ttl time.Duration) (*Lock, error) {
	metrics.ExtendCounter.Inc()
	if lock == nil || lock.Resource == "" || lock.Token == "" {
		return nil, errors.ErrInvalidLock
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", errors.ErrInvalidInput)
	}
	var span trace.Span
	if r.traceEnabled {
		ctx, span = tracer.Start(ctx, "Redlock.Extend",
			trace.WithAttributes(attribute.String("redlock.resource", lock.Resource)))
		defer span.End()
	}
	return r.call(ctx, opExtend, lock.Resource, lock.Token, ttl)
}

// Unlock releases the lock on every instance, matching by token. Release is
// best-effort cleanup, not a safety-critical operation: individual instance
// failures (including leases that already expired) are swallowed, and the
// call errors only on a malformed handle. Safe to call more than once.
func (r *Redlock) Unlock(ctx context.Context, lock *Lock) error {
	metrics.UnlockCounter.Inc()
	if lock == nil || lock.Resource == "" || lock.Token == "" {
		return errors.ErrInvalidLock
	}
	if r.traceEnabled {
		var span trace.Span
		ctx, span = tracer.Start(ctx, "Redlock.Unlock",
			trace.WithAttributes(attribute.String("redlock.resource", lock.Resource)))
		defer span.End()
	}
	r.release(ctx, lock.Resource, lock.Token, nil)
	return nil
}

// call drives the attempt/retry state machine shared by Lock and Extend.
// Acquire draws a fresh token per attempt; Extend keeps the lock's token.
func (r *Redlock) call(ctx context.Context, o op, resource, token string, ttl time.Duration) (*Lock, error) {
	drift := time.Duration(float64(ttl)*r.driftFactor) + clockSkewAllowance
	merr := &errors.MultiError{}

	for attempt := 1; attempt <= r.retryCount; attempt++ {
		if attempt > 1 {
			metrics.RetryCounter.Inc()
			merr.Reset()
			select {
			case <-time.After(r.retryDelay + r.jitter()):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		tok := token
		if o == opAcquire {
			tok = r.tokens.Token()
		}

		start := time.Now()
		votes, granted := r.fanOut(ctx, o, resource, tok, ttl, merr)
		elapsed := time.Since(start)

		if r.latencyHist != nil {
			r.latencyHist.Observe(elapsed.Seconds())
		}
		if r.votesHist != nil {
			r.votesHist.Observe(float64(votes))
		}

		validity := ttl - elapsed - drift
		if votes >= r.quorum && validity > 0 {
			return &Lock{
				Resource: resource,
				Token:    tok,
				TTL:      ttl,
				Expiry:   start.Add(ttl - drift),
				Votes:    votes,
			}, nil
		}

		// Clean up the partial acquisition on instances that granted it so a
		// failed attempt does not hold the resource until TTL expiry.
		r.release(ctx, resource, tok, granted)
	}

	if o == opExtend {
		return nil, fmt.Errorf("%w after %d attempts: %w", errors.ErrUnableToExtend, r.retryCount, merr)
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", errors.ErrUnableToAcquire, r.retryCount, merr)
}

// fanOut issues the attempt against every instance concurrently and joins
// once all have completed or hit their per-instance timeout, so elapsed
// time approximates the slowest instance rather than the sum of all.
// Refusals and transport failures are demoted to missing votes.
func (r *Redlock) fanOut(ctx context.Context, o op, resource, token string, ttl time.Duration, merr *errors.MultiError) (int, []bool) {
	granted := make([]bool, len(r.instances))
	errs := make([]error, len(r.instances))

	var g errgroup.Group
	for i, in := range r.instances {
		i, in := i, in
		g.Go(func() error {
			var err error
			switch o {
			case opAcquire:
				err = in.TryAcquire(ctx, resource, token, ttl)
			case opExtend:
				err = in.TryExtend(ctx, resource, token, ttl)
			}
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", in.Name(), err)
			} else {
				granted[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	votes := 0
	for i, ok := range granted {
		if ok {
			votes++
		} else {
			merr.Push(errs[i])
		}
	}
	return votes, granted
}

// release fans out TryRelease, restricted to instances flagged in only when
// non-nil. Outcomes are intentionally discarded.
func (r *Redlock) release(ctx context.Context, resource, token string, only []bool) {
	var g errgroup.Group
	for i, in := range r.instances {
		if only != nil && !only[i] {
			continue
		}
		in := in
		g.Go(func() error {
			_ = in.TryRelease(ctx, resource, token)
			return nil
		})
	}
	_ = g.Wait()
}

// jitter draws a uniform offset in [-retryJitter, +retryJitter], clamped so
// the resulting delay never goes negative.
func (r *Redlock) jitter() time.Duration {
	if r.retryJitter == 0 {
		return 0
	}
	j := time.Duration((rand.Float64()*2 - 1) * float64(r.retryJitter))
	if r.retryDelay+j < 0 {
		return -r.retryDelay
	}
	return j
}
