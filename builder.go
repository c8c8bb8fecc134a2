package otpAuth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/otpAuth/internal/dispatch"
	"github.com/MrEthical07/otpAuth/internal/logging"
	"github.com/MrEthical07/otpAuth/jwt"
	"github.com/MrEthical07/otpAuth/otp"
	"github.com/MrEthical07/otpAuth/password"
)

// Builder defines a public type used by otpAuth APIs.
//
// A Builder collects dependencies and configuration and produces exactly one
// Engine. The account store and notifier are mandatory; the OTP cache defaults
// to an in-process cache.
type Builder struct {
	config Config

	store     AccountStore
	cache     otp.Cache
	notifier  Notifier
	readiness Readiness
	auditSink AuditSink
	logger    logging.Logger
	now       func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New returns a Builder seeded with DefaultConfig. The JWT secret must still be
// supplied through WithConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The config is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.store = store
	return b
}

// WithOTPCache installs a shared cache such as otp.RedisCache. The cache keeps
// its own digits and TTL settings; a cache implementing otp.TTLReporter also
// sets the expiry quoted in verification emails.
func (b *Builder) WithOTPCache(cache otp.Cache) *Builder {
	b.cache = cache
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithReadiness makes every operation that touches the store fail fast with
// ErrUnavailable while r reports not ready. A supervisor.Supervisor fits.
func (b *Builder) WithReadiness(r Readiness) *Builder {
	b.readiness = r
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	if l == nil {
		b.logger = nil
		return b
	}
	b.logger = logging.NewSlogLogger(l)
	return b
}

// WithClock overrides time.Now for token issuance and the default OTP cache.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration, constructs the hasher, token issuer,
// dispatchers and default cache, and starts the background goroutines owned by
// the Engine. Call Engine.Close to stop them. A Builder can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("account store required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MinPasswordBytes: cfg.Password.MinLength,
		MaxPasswordBytes: cfg.Password.MaxLength,
	})
	if err != nil {
		return nil, err
	}
	decoy, err := decoyHash(ph, cfg.Password.MinLength, cfg.Password.MaxLength)
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.JWT.TTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		Secret:        cloneBytes(cfg.JWT.Secret),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		store:      b.store,
		cache:      b.cache,
		notifier:   b.notifier,
		readiness:  b.readiness,
		hasher:     ph,
		decoyHash:  decoy,
		jwtManager: jm,
		logger:     logging.OrNop(b.logger).With("component", "engine"),
		now:        now,
		metrics:    NewMetrics(cfg.Metrics),
		audit:      newAuditDispatcher(cfg.Audit, b.auditSink),
	}

	var bg context.Context
	bg, engine.stop = context.WithCancel(context.Background())

	if engine.cache == nil {
		mc, err := otp.NewMemoryCache(otp.Config{
			Digits: cfg.OTP.Digits,
			TTL:    cfg.OTP.TTL,
			Now:    now,
		})
		if err != nil {
			engine.stop()
			engine.audit.Close()
			return nil, err
		}
		engine.cache = mc
		if cfg.OTP.SweepInterval > 0 {
			engine.wg.Add(1)
			go func() {
				defer engine.wg.Done()
				mc.Run(bg, cfg.OTP.SweepInterval)
			}()
		}
	}

	engine.otpTTL = cfg.OTP.TTL
	if r, ok := engine.cache.(otp.TTLReporter); ok && r.TTL() > 0 {
		engine.otpTTL = r.TTL()
	}

	engine.dispatcher = dispatch.New(dispatch.Config{
		QueueSize: cfg.Notification.QueueSize,
		Workers:   cfg.Notification.Workers,
		Timeout:   cfg.Notification.SendTimeout,
	})
	engine.wg.Add(1)
	go func() {
		defer engine.wg.Done()
		engine.watchNotifications()
	}()

	b.built = true

	return engine, nil
}

// decoyHash produces a throwaway hash with the live parameters so that a login
// for an unknown email costs the same as one for a known email.
func decoyHash(ph *password.Argon2, minLen, maxLen int) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(buf)
	for len(secret) < minLen {
		secret += secret
	}
	if len(secret) > maxLen {
		secret = secret[:maxLen]
	}
	return ph.Hash(secret)
}
