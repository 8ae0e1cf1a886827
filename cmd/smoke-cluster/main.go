package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/go-redlock/v1/instance"
	"github.com/mirkobrombin/go-redlock/v1/redlock"
)

func main() {
	addrs := flag.String("addrs", "127.0.0.1:6379,127.0.0.1:6389,127.0.0.1:6399", "Comma-separated redis addresses")
	resource := flag.String("resource", "smoke-lock", "Resource name to lock")
	ttl := flag.Duration("ttl", time.Second, "Lock TTL")
	hold := flag.Duration("hold", 200*time.Millisecond, "How long to hold the lock before extending")
	timeout := flag.Duration("timeout", instance.DefaultTimeout, "Per-instance operation timeout")
	flag.Parse()

	var nodes []instance.Instance
	for _, addr := range strings.Split(*addrs, ",") {
		client := redis.NewClient(&redis.Options{Addr: strings.TrimSpace(addr)})
		nodes = append(nodes, instance.NewRedis(client, instance.WithTimeout(*timeout)))
	}

	dlm, err := redlock.New(nodes)
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	start := time.Now()
	lock, err := dlm.Lock(ctx, *resource, *ttl)
	if err != nil {
		log.Fatalf("lock: %v", err)
	}
	fmt.Printf("locked %q in %v: token=%s votes=%d/%d validity=%v\n",
		lock.Resource, time.Since(start).Round(time.Millisecond),
		lock.Token, lock.Votes, len(nodes), time.Until(lock.Expiry).Round(time.Millisecond))

	time.Sleep(*hold)

	lock, err = dlm.Extend(ctx, lock, *ttl)
	if err != nil {
		log.Fatalf("extend: %v", err)
	}
	fmt.Printf("extended: validity=%v\n", time.Until(lock.Expiry).Round(time.Millisecond))

	if err := dlm.Unlock(ctx, lock); err != nil {
		log.Fatalf("unlock: %v", err)
	}
	fmt.Println("unlocked")
}
