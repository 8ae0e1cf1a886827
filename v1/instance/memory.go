package instance

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mirkobrombin/go-redlock/v1/errors"
)

type entry struct {
	token     string
	expiresAt time.Time
}

// Memory implements Instance in local memory with the same atomic
// check-and-set semantics as the Redis backend. Expired keys are treated as
// absent on access, so behaviour is deterministic under a stopped clock.
type Memory struct {
	mu      sync.Mutex
	name    string
	entries map[string]entry
}

// MemoryOption configures a Memory instance.
type MemoryOption func(*Memory)

// WithMemoryName overrides the generated instance name.
func WithMemoryName(name string) MemoryOption {
	return func(m *Memory) {
		m.name = name
	}
}

// NewMemory returns an in-memory instance with a unique generated name.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		name:    "mem-" + uuid.NewString(),
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements Instance.Name.
func (m *Memory) Name() string {
	return m.name
}

// get returns the live entry for resource, dropping it first if expired.
// Callers must hold m.mu.
func (m *Memory) get(resource string) (entry, bool) {
	e, ok := m.entries[resource]
	if !ok {
		return entry{}, false
	}
	if time.Now().After(e.expiresAt) {
		delete(m.entries, resource)
		return entry{}, false
	}
	return e, true
}

// TryAcquire implements Instance.TryAcquire.
func (m *Memory) TryAcquire(ctx context.Context, resource, token string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.get(resource); ok {
		return errors.ErrResourceLocked
	}
	m.entries[resource] = entry{token: token, expiresAt: time.Now().Add(ttl)}
	return nil
}

// TryExtend implements Instance.TryExtend.
func (m *Memory) TryExtend(ctx context.Context, resource, token string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(resource)
	if !ok || e.token != token {
		return errors.ErrInvalidLease
	}
	m.entries[resource] = entry{token: token, expiresAt: time.Now().Add(ttl)}
	return nil
}

// TryRelease implements Instance.TryRelease.
func (m *Memory) TryRelease(ctx context.Context, resource, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(resource)
	if !ok || e.token != token {
		return errors.ErrInvalidLease
	}
	delete(m.entries, resource)
	return nil
}
