package redlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	rlerrors "github.com/mirkobrombin/go-redlock/v1/errors"
	"github.com/mirkobrombin/go-redlock/v1/instance"
)

func newRedisCluster(t *testing.T, n int) ([]instance.Instance, []*miniredis.Miniredis) {
	t.Helper()
	nodes := make([]instance.Instance, n)
	servers := make([]*miniredis.Miniredis, n)
	for i := 0; i < n; i++ {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("miniredis run: %v", err)
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() {
			_ = client.Close()
			mr.Close()
		})
		nodes[i] = instance.NewRedis(client)
		servers[i] = mr
	}
	return nodes, servers
}

func TestRedisClusterLockUnlock(t *testing.T) {
	nodes, servers := newRedisCluster(t, 3)
	r, err := New(nodes, fastOpts()...)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	lock, err := r.Lock(ctx, "job-42", time.Second)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	for _, mr := range servers {
		got, err := mr.Get("job-42")
		if err != nil || got != lock.Token {
			t.Fatalf("expected token %q stored, got %q (%v)", lock.Token, got, err)
		}
	}

	// A competing coordinator over the same nodes must not get the lock.
	other, err := New(nodes, fastOpts(WithRetryCount(1))...)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := other.Lock(ctx, "job-42", time.Second); !errors.Is(err, rlerrors.ErrUnableToAcquire) {
		t.Fatalf("expected contention failure, got %v", err)
	}

	if err := r.Unlock(ctx, lock); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	for _, mr := range servers {
		if mr.Exists("job-42") {
			t.Fatal("key must be removed from every node after unlock")
		}
	}
}

func TestRedisClusterExtend(t *testing.T) {
	nodes, servers := newRedisCluster(t, 3)
	r, err := New(nodes, fastOpts()...)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	lock, err := r.Lock(ctx, "job-42", time.Second)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	renewed, err := r.Extend(ctx, lock, 5*time.Second)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if renewed.Token != lock.Token {
		t.Fatalf("extend must keep the token")
	}
	for _, mr := range servers {
		if ttl := mr.TTL("job-42"); ttl <= time.Second {
			t.Fatalf("expected refreshed ttl on every node, got %v", ttl)
		}
	}
}

func TestRedisClusterMinorityDown(t *testing.T) {
	nodes, servers := newRedisCluster(t, 3)
	servers[2].Close()

	r, err := New(nodes, fastOpts()...)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	lock, err := r.Lock(context.Background(), "job-42", time.Second)
	if err != nil {
		t.Fatalf("quorum of 2/3 should still succeed: %v", err)
	}
	if lock.Votes != 2 {
		t.Fatalf("expected 2 votes, got %d", lock.Votes)
	}
}
