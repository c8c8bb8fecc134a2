package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisCacheKeyLayoutAndRetention(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cache, err := NewRedisCache(rdb, "test-otp", Config{TTL: 10 * time.Minute})
	if err != nil {
		t.Fatalf("NewRedisCache error: %v", err)
	}

	if _, err := cache.Issue(context.Background(), "alice@x.com"); err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if !mr.Exists("test-otp:alice@x.com") {
		t.Fatal("expected key test-otp:alice@x.com to exist")
	}
	if ttl := mr.TTL("test-otp:alice@x.com"); ttl != 20*time.Minute {
		t.Fatalf("expected retention ttl 20m, got %v", ttl)
	}
}

func TestRedisCacheUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()

	cache, err := NewRedisCache(rdb, "", Config{})
	if err != nil {
		t.Fatalf("NewRedisCache error: %v", err)
	}
	mr.Close()

	if _, err := cache.Issue(context.Background(), "a@x.com"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from Issue, got %v", err)
	}
	if err := cache.Verify(context.Background(), "a@x.com", "123456"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from Verify, got %v", err)
	}
}

func TestRedisCacheCorruptRecordIsUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cache, err := NewRedisCache(rdb, "", Config{})
	if err != nil {
		t.Fatalf("NewRedisCache error: %v", err)
	}
	if err := mr.Set("otp:bad@x.com", "garbage"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := cache.Verify(context.Background(), "bad@x.com", "123456"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for corrupt record, got %v", err)
	}

	removed, err := cache.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep error: %v", err)
	}
	if removed != 1 || mr.Exists("otp:bad@x.com") {
		t.Fatalf("expected sweep to drop corrupt record, removed=%d", removed)
	}
}

func TestEntryCodecRoundTrip(t *testing.T) {
	in := Entry{Code: "004213", IssuedAt: time.Unix(1700000000, 123)}
	data, err := encodeEntry(in)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	out, err := decodeEntry(data)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if out.Code != in.Code || !out.IssuedAt.Equal(in.IssuedAt) {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}

	if _, err := decodeEntry(append(data, 0)); err == nil {
		t.Fatal("expected trailing bytes to be rejected")
	}
	data[0] = 9
	if _, err := decodeEntry(data); err == nil {
		t.Fatal("expected unknown version to be rejected")
	}
}

func TestRedisCachePing(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()

	cache, err := NewRedisCache(rdb, "", Config{})
	if err != nil {
		t.Fatalf("NewRedisCache error: %v", err)
	}
	if err := cache.Connect(context.Background()); err != nil {
		t.Fatalf("Connect error: %v", err)
	}

	mr.Close()
	if err := cache.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable after shutdown, got %v", err)
	}
}
