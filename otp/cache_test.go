package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type cacheFactory func(t *testing.T, cfg Config) Cache

func memoryFactory(t *testing.T, cfg Config) Cache {
	t.Helper()
	c, err := NewMemoryCache(cfg)
	if err != nil {
		t.Fatalf("NewMemoryCache error: %v", err)
	}
	return c
}

func redisFactory(t *testing.T, cfg Config) Cache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	c, err := NewRedisCache(rdb, "", cfg)
	if err != nil {
		t.Fatalf("NewRedisCache error: %v", err)
	}
	return c
}

var factories = map[string]cacheFactory{
	"memory": memoryFactory,
	"redis":  redisFactory,
}

func otherCode(code string) string {
	b := []byte(code)
	if b[0] == '9' {
		b[0] = '0'
	} else {
		b[0]++
	}
	return string(b)
}

func TestCacheIssueThenVerifySucceedsOnce(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cache := factory(t, Config{Digits: 6, TTL: 10 * time.Minute})

			code, err := cache.Issue(ctx, "alice@x.com")
			if err != nil {
				t.Fatalf("Issue error: %v", err)
			}
			if len(code) != 6 {
				t.Fatalf("expected 6 digit code, got %q", code)
			}

			if err := cache.Verify(ctx, "alice@x.com", code); err != nil {
				t.Fatalf("first Verify error: %v", err)
			}
			if err := cache.Verify(ctx, "alice@x.com", code); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound on second verify, got %v", err)
			}
		})
	}
}

func TestCacheMismatchKeepsEntry(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cache := factory(t, Config{})

			code, err := cache.Issue(ctx, "bob@x.com")
			if err != nil {
				t.Fatalf("Issue error: %v", err)
			}

			if err := cache.Verify(ctx, "bob@x.com", otherCode(code)); !errors.Is(err, ErrMismatch) {
				t.Fatalf("expected ErrMismatch, got %v", err)
			}
			if err := cache.Verify(ctx, "bob@x.com", code); err != nil {
				t.Fatalf("expected correct code to still verify, got %v", err)
			}
		})
	}
}

func TestCacheExpiredAlwaysFails(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			cache := factory(t, Config{TTL: 10 * time.Minute, Now: clock.Now})

			code, err := cache.Issue(ctx, "carol@x.com")
			if err != nil {
				t.Fatalf("Issue error: %v", err)
			}

			clock.Advance(10*time.Minute + time.Second)

			if err := cache.Verify(ctx, "carol@x.com", code); !errors.Is(err, ErrExpired) {
				t.Fatalf("expected ErrExpired, got %v", err)
			}
			// expiry evicts the entry
			if err := cache.Verify(ctx, "carol@x.com", code); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after expiry eviction, got %v", err)
			}
		})
	}
}

func TestCacheExpiryBoundaryIsInclusive(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			cache := factory(t, Config{TTL: time.Minute, Now: clock.Now})

			code, err := cache.Issue(ctx, "dave@x.com")
			if err != nil {
				t.Fatalf("Issue error: %v", err)
			}
			clock.Advance(time.Minute)

			if err := cache.Verify(ctx, "dave@x.com", code); err != nil {
				t.Fatalf("expected code at exactly TTL age to verify, got %v", err)
			}
		})
	}
}

func TestCacheReissueOverwrites(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cache := factory(t, Config{})

			old, err := cache.Issue(ctx, "erin@x.com")
			if err != nil {
				t.Fatalf("Issue error: %v", err)
			}
			var fresh string
			for {
				fresh, err = cache.Issue(ctx, "erin@x.com")
				if err != nil {
					t.Fatalf("Issue error: %v", err)
				}
				if fresh != old {
					break
				}
			}

			if err := cache.Verify(ctx, "erin@x.com", old); !errors.Is(err, ErrMismatch) {
				t.Fatalf("expected old code to mismatch, got %v", err)
			}
			if err := cache.Verify(ctx, "erin@x.com", fresh); err != nil {
				t.Fatalf("expected new code to verify, got %v", err)
			}
		})
	}
}

func TestCacheSweepEvictsOnlyExpired(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			cache := factory(t, Config{TTL: 5 * time.Minute, Now: clock.Now})

			if _, err := cache.Issue(ctx, "old@x.com"); err != nil {
				t.Fatalf("Issue error: %v", err)
			}
			clock.Advance(4 * time.Minute)
			fresh, err := cache.Issue(ctx, "fresh@x.com")
			if err != nil {
				t.Fatalf("Issue error: %v", err)
			}
			clock.Advance(2 * time.Minute)

			removed, err := cache.Sweep(ctx)
			if err != nil {
				t.Fatalf("Sweep error: %v", err)
			}
			if removed != 1 {
				t.Fatalf("expected 1 eviction, got %d", removed)
			}

			if err := cache.Verify(ctx, "old@x.com", "000000"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected swept entry to be gone, got %v", err)
			}
			if err := cache.Verify(ctx, "fresh@x.com", fresh); err != nil {
				t.Fatalf("expected fresh entry to survive sweep, got %v", err)
			}
		})
	}
}

func TestCacheConcurrentVerifyConsumesOnce(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cache := factory(t, Config{})

			code, err := cache.Issue(ctx, "race@x.com")
			if err != nil {
				t.Fatalf("Issue error: %v", err)
			}

			const workers = 16
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := cache.Verify(ctx, "race@x.com", code); err == nil {
						mu.Lock()
						successes++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			if successes != 1 {
				t.Fatalf("expected exactly one successful verify, got %d", successes)
			}
		})
	}
}

func TestConfigNormalize(t *testing.T) {
	cfg, err := Config{}.normalize()
	if err != nil {
		t.Fatalf("normalize error: %v", err)
	}
	if cfg.Digits != DefaultDigits || cfg.TTL != DefaultTTL || cfg.Now == nil {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	if _, err := (Config{Digits: 3}).normalize(); err == nil {
		t.Fatal("expected error for 3 digits")
	}
	if _, err := (Config{Digits: 11}).normalize(); err == nil {
		t.Fatal("expected error for 11 digits")
	}
	if _, err := (Config{TTL: -time.Second}).normalize(); err == nil {
		t.Fatal("expected error for negative ttl")
	}
}
