// Package instance provides handles to the independent key-value nodes a
// Redlock coordinator spreads its quorum over. The Redis implementation is
// the production backend; the in-memory implementation enforces the same
// atomic check-and-set semantics and is intended for tests and local
// development. Instances must be genuinely independent nodes, not replicas
// of each other, for the quorum math to mean anything.
package instance

import (
	"context"
	"time"
)

// Instance is one independent storage node. All three operations are atomic
// at the node, bounded by the instance's per-operation timeout, and return
// nil on success. ErrResourceLocked and ErrInvalidLease are the expected
// refusals; any other error is a transport failure. The coordinator treats
// every non-nil result as a missing vote, never as a hard failure.
type Instance interface {
	// Name identifies the node, for diagnostics.
	Name() string
	// TryAcquire sets resource to token only if the key is absent, with
	// expiry after ttl.
	TryAcquire(ctx context.Context, resource, token string, ttl time.Duration) error
	// TryExtend resets the expiry of resource to ttl only if the key still
	// holds token.
	TryExtend(ctx context.Context, resource, token string, ttl time.Duration) error
	// TryRelease deletes resource only if the key still holds token.
	TryRelease(ctx context.Context, resource, token string) error
}

// DefaultTimeout bounds each instance operation unless overridden. It must
// stay well below any lock TTL or the validity window can never be positive.
const DefaultTimeout = 250 * time.Millisecond
