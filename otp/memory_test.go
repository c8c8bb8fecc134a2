package otp

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheRunSweepsUntilCancelled(t *testing.T) {
	clock := newFakeClock()
	cache, err := NewMemoryCache(Config{TTL: time.Minute, Now: clock.Now})
	if err != nil {
		t.Fatalf("NewMemoryCache error: %v", err)
	}

	if _, err := cache.Issue(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cache.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for cache.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("janitor did not evict expired entry")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
