package otpAuth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/otpAuth/internal"
	"github.com/MrEthical07/otpAuth/jwt"
)

// Config defines a public type used by otpAuth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT          JWTConfig
	Password     PasswordConfig
	OTP          OTPConfig
	Notification NotificationConfig
	Store        StoreConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by otpAuth APIs.
//
// Secret is mandatory. For "hs256" it is the shared key (at least 32 bytes); for
// "ed25519" it is the private key and PublicKey must be set too.
type JWTConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	Secret        []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by otpAuth APIs.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
	MaxLength   int
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls the verification code. SweepInterval only applies to the
// in-process cache the builder creates when none is supplied; zero disables the
// janitor.
type OTPConfig struct {
	Digits        int
	TTL           time.Duration
	SweepInterval time.Duration
}

/*
====================================
NOTIFICATION CONFIG
====================================
*/

// NotificationConfig sizes the asynchronous notification queue.
type NotificationConfig struct {
	AppName     string
	SendTimeout time.Duration
	QueueSize   int
	Workers     int
}

// StoreConfig bounds every AccountStore call.
type StoreConfig struct {
	OperationTimeout time.Duration
}

// AuditConfig defines a public type used by otpAuth APIs.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by otpAuth APIs.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a Config with every field except JWT.Secret populated.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TTL:           jwt.DefaultTTL,
			SigningMethod: string(jwt.MethodHS256),
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   6,
			MaxLength:   1024,
		},
		OTP: OTPConfig{
			Digits:        6,
			TTL:           10 * time.Minute,
			SweepInterval: time.Minute,
		},
		Notification: NotificationConfig{
			AppName:     "otpAuth",
			SendTimeout: 10 * time.Second,
			QueueSize:   256,
			Workers:     2,
		},
		Store: StoreConfig{
			OperationTimeout: 5 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate describes the validate operation and its observable behavior.
//
// Validate rejects missing security material and out-of-range settings. There is
// no insecure fallback: a Config without a signing secret never builds.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.TTL <= 0 {
		return errors.New("JWT TTL must be > 0")
	}
	switch jwt.SigningMethod(c.JWT.SigningMethod) {
	case jwt.MethodHS256:
		if len(c.JWT.Secret) == 0 {
			return errors.New("JWT Secret is required")
		}
		if len(c.JWT.Secret) < jwt.MinSecretBytes {
			return fmt.Errorf("JWT Secret must be at least %d bytes", jwt.MinSecretBytes)
		}
	case jwt.MethodEd25519:
		if len(c.JWT.Secret) == 0 {
			return errors.New("ed25519 requires Secret (private key)")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// OTP
	if c.OTP.Digits < internal.MinOTPDigits || c.OTP.Digits > internal.MaxOTPDigits {
		return fmt.Errorf("OTP Digits must be between %d and %d", internal.MinOTPDigits, internal.MaxOTPDigits)
	}
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}
	if c.OTP.SweepInterval < 0 {
		return errors.New("OTP SweepInterval must be >= 0")
	}

	// Notification
	if c.Notification.SendTimeout <= 0 {
		return errors.New("Notification SendTimeout must be > 0")
	}
	if c.Notification.QueueSize <= 0 {
		return errors.New("Notification QueueSize must be > 0")
	}
	if c.Notification.Workers <= 0 {
		return errors.New("Notification Workers must be > 0")
	}

	// Store
	if c.Store.OperationTimeout <= 0 {
		return errors.New("Store OperationTimeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
