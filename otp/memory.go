package otp

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/otpAuth/internal"
)

// MemoryCache is a process-local [Cache]. Every single-key read-modify-write runs
// under one mutex, so a verify racing a resend observes either the old entry or
// the new one, never a mix.
type MemoryCache struct {
	cfg Config

	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryCache validates cfg and returns an empty cache.
func NewMemoryCache(cfg Config) (*MemoryCache, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	return &MemoryCache{
		cfg:     cfg,
		entries: make(map[string]Entry),
	}, nil
}

// TTL returns the lifetime of an issued code.
func (c *MemoryCache) TTL() time.Duration {
	return c.cfg.TTL
}

// Issue stores a fresh code for email, replacing any pending one.
func (c *MemoryCache) Issue(_ context.Context, email string) (string, error) {
	code, err := internal.NewOTP(c.cfg.Digits)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[email] = Entry{Code: code, IssuedAt: c.cfg.Now()}
	c.mu.Unlock()

	return code, nil
}

// Verify consumes the pending entry when code matches.
func (c *MemoryCache) Verify(_ context.Context, email, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[email]
	if !ok {
		return ErrNotFound
	}
	if entry.expired(c.cfg.Now(), c.cfg.TTL) {
		delete(c.entries, email)
		return ErrExpired
	}
	if !entry.matches(code) {
		return ErrMismatch
	}

	delete(c.entries, email)
	return nil
}

// Sweep evicts every entry older than the TTL and returns how many were removed.
func (c *MemoryCache) Sweep(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.Now()
	removed := 0
	for email, entry := range c.entries {
		if entry.expired(now, c.cfg.TTL) {
			delete(c.entries, email)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of pending entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Run sweeps every interval until ctx is done.
func (c *MemoryCache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.cfg.TTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = c.Sweep(ctx)
		}
	}
}
