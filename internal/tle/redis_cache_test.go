package tle

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

// Requires a reachable Redis; set TRACK_REDIS_ADDR to run.
func TestRedisCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("TRACK_REDIS_ADDR")
	if addr == "" {
		t.Skip("TRACK_REDIS_ADDR not set")
	}
	client := NewRedisClient(addr, "", 0)
	defer client.Close()

	ctx := context.Background()
	c := NewRedisCache(client, "track-test:"+t.Name(), time.Minute)
	t.Cleanup(func() { client.Del(context.Background(), c.key("starlink")) })

	if _, _, err := c.Latest(ctx, "starlink"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Latest on empty cache error = %v, want ErrCacheMiss", err)
	}

	fetchedAt := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	if err := c.Put(ctx, "starlink", []byte(tleText("STARLINK-1007")), fetchedAt); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, ts, err := c.Latest(ctx, "starlink")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if string(data) != tleText("STARLINK-1007") || !ts.Equal(fetchedAt) {
		t.Fatalf("Latest = %q at %v", data, ts)
	}
	if ttl := client.TTL(ctx, c.key("starlink")).Val(); ttl <= 0 {
		t.Fatalf("TTL = %v, want positive", ttl)
	}
}
