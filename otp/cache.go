package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/MrEthical07/otpAuth/internal"
)

const (
	DefaultDigits = 6
	DefaultTTL    = 10 * time.Minute
)

// Cache is the contract the credential engine depends on.
type Cache interface {
	Issue(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, email, code string) error
	Sweep(ctx context.Context) (int, error)
}

// TTLReporter is implemented by caches that know how long an issued code lives.
type TTLReporter interface {
	TTL() time.Duration
}

// Config controls code shape and lifetime. Now is optional and defaults to time.Now.
type Config struct {
	Digits int
	TTL    time.Duration
	Now    func() time.Time
}

// Entry is a pending passcode.
type Entry struct {
	Code     string
	IssuedAt time.Time
}

func (e Entry) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.IssuedAt) > ttl
}

func (e Entry) matches(code string) bool {
	return subtle.ConstantTimeCompare([]byte(e.Code), []byte(code)) == 1
}

func (c Config) normalize() (Config, error) {
	if c.Digits == 0 {
		c.Digits = DefaultDigits
	}
	if c.Digits < internal.MinOTPDigits || c.Digits > internal.MaxOTPDigits {
		return c, errors.New("otp digits must be between 4 and 10")
	}
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.TTL < 0 {
		return c, errors.New("otp ttl must be > 0")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c, nil
}
