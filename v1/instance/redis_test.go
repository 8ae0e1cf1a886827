package instance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	rlerrors "github.com/mirkobrombin/go-redlock/v1/errors"
)

func newRedisInstance(t *testing.T) (*Redis, *miniredis.Miniredis, context.Context) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return NewRedis(client), mr, context.Background()
}

func TestRedisAcquireSetsKeyWithTTL(t *testing.T) {
	r, mr, ctx := newRedisInstance(t)

	if err := r.TryAcquire(ctx, "r", "t1", time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	got, err := mr.Get("r")
	if err != nil || got != "t1" {
		t.Fatalf("expected key value t1, got %q (%v)", got, err)
	}
	if ttl := mr.TTL("r"); ttl <= 0 || ttl > time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}
}

func TestRedisAcquireLockedResource(t *testing.T) {
	r, _, ctx := newRedisInstance(t)

	if err := r.TryAcquire(ctx, "r", "t1", time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := r.TryAcquire(ctx, "r", "t2", time.Second); !errors.Is(err, rlerrors.ErrResourceLocked) {
		t.Fatalf("expected ErrResourceLocked, got %v", err)
	}
}

func TestRedisReleaseMatchesToken(t *testing.T) {
	r, mr, ctx := newRedisInstance(t)

	if err := r.TryAcquire(ctx, "r", "t1", time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := r.TryRelease(ctx, "r", "other"); !errors.Is(err, rlerrors.ErrInvalidLease) {
		t.Fatalf("expected ErrInvalidLease, got %v", err)
	}
	if err := r.TryRelease(ctx, "r", "t1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists("r") {
		t.Fatal("key should be deleted after release")
	}
	if err := r.TryRelease(ctx, "r", "t1"); !errors.Is(err, rlerrors.ErrInvalidLease) {
		t.Fatalf("expected ErrInvalidLease on double release, got %v", err)
	}
}

func TestRedisExtendMatchesToken(t *testing.T) {
	r, mr, ctx := newRedisInstance(t)

	if err := r.TryAcquire(ctx, "r", "t1", time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := r.TryExtend(ctx, "r", "other", 2*time.Second); !errors.Is(err, rlerrors.ErrInvalidLease) {
		t.Fatalf("expected ErrInvalidLease, got %v", err)
	}
	if err := r.TryExtend(ctx, "r", "t1", 2*time.Second); err != nil {
		t.Fatalf("extend: %v", err)
	}
	if ttl := mr.TTL("r"); ttl <= time.Second {
		t.Fatalf("expected ttl refreshed beyond 1s, got %v", ttl)
	}
}

func TestRedisExtendExpiredLease(t *testing.T) {
	r, mr, ctx := newRedisInstance(t)

	if err := r.TryAcquire(ctx, "r", "t1", 50*time.Millisecond); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	mr.FastForward(100 * time.Millisecond)
	if err := r.TryExtend(ctx, "r", "t1", time.Second); !errors.Is(err, rlerrors.ErrInvalidLease) {
		t.Fatalf("expected ErrInvalidLease after expiry, got %v", err)
	}
}

func TestRedisUnreachableNode(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	r := NewRedis(client, WithTimeout(50*time.Millisecond))

	err = r.TryAcquire(context.Background(), "r", "t1", time.Second)
	if err == nil {
		t.Fatal("expected transport error from unreachable node")
	}
	if errors.Is(err, rlerrors.ErrResourceLocked) {
		t.Fatalf("transport failure must not masquerade as a refusal: %v", err)
	}
}

func TestRedisNameDefaultsToAddr(t *testing.T) {
	r, mr, _ := newRedisInstance(t)
	if r.Name() != mr.Addr() {
		t.Fatalf("expected name %q, got %q", mr.Addr(), r.Name())
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	named := NewRedis(client, WithName("primary"))
	if named.Name() != "primary" {
		t.Fatalf("expected name override, got %q", named.Name())
	}
}
