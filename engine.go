package otpAuth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/otpAuth/internal/dispatch"
	"github.com/MrEthical07/otpAuth/internal/logging"
	"github.com/MrEthical07/otpAuth/jwt"
	"github.com/MrEthical07/otpAuth/otp"
	"github.com/MrEthical07/otpAuth/password"
)

// Engine defines a public type used by otpAuth APIs.
//
// Engine drives the credential lifecycle: Register, VerifyOtp, Login, Logout,
// ResendOtp and ValidateToken. Methods are safe for concurrent use. No engine
// lock is held across hashing, store I/O, notification dispatch or signing.
type Engine struct {
	config     Config
	store      AccountStore
	cache      otp.Cache
	otpTTL     time.Duration
	notifier   Notifier
	readiness  Readiness
	dispatcher *dispatch.Dispatcher
	audit      *auditDispatcher
	metrics    *Metrics
	hasher     *password.Argon2
	decoyHash  string
	jwtManager *jwt.Manager
	logger     logging.Logger
	now        func() time.Time

	stop      context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Close describes the close operation and its observable behavior.
//
// Close waits for queued notifications to finish (each bounded by SendTimeout),
// stops the cache janitor and flushes the audit buffer. Operations called after
// Close still work but their notifications are not queued.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		if e.stop != nil {
			e.stop()
		}
		if e.dispatcher != nil {
			e.dispatcher.Close()
		}
		e.wg.Wait()
		e.audit.Close()
	})
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// NotificationStats exposes the notification queue counters.
func (e *Engine) NotificationStats() dispatch.Stats {
	if e == nil || e.dispatcher == nil {
		return dispatch.Stats{}
	}
	return e.dispatcher.Stats()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// checkReady returns ErrUnavailable while the supervised store is down.
func (e *Engine) checkReady(ctx context.Context, op string) error {
	if e == nil || e.store == nil || e.cache == nil || e.jwtManager == nil {
		return ErrEngineNotReady
	}
	if e.readiness != nil && !e.readiness.Ready() {
		e.metricInc(MetricBackendUnavailable)
		e.logger.Warn(ctx, "request rejected, store not ready", "op", op)
		return ErrUnavailable
	}
	return nil
}

func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Store.OperationTimeout)
}

func (e *Engine) findAccount(ctx context.Context, email string) (Account, error) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()

	acct, err := e.store.FindByEmail(sctx, email)
	if err != nil {
		return Account{}, e.mapStoreError(ctx, "find", err)
	}
	return acct, nil
}

// mapStoreError keeps the store contract sentinels and turns everything else
// into ErrUnavailable, logging the cause.
func (e *Engine) mapStoreError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrAccountExists):
		return err
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return ctx.Err()
	default:
		e.metricInc(MetricBackendUnavailable)
		e.logger.Error(ctx, "account store failure", "op", op, "error", err.Error())
		return fmt.Errorf("%w: account store %s: %v", ErrUnavailable, op, err)
	}
}

func (e *Engine) mapCacheError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, otp.ErrNotFound):
		return ErrOTPNotFound
	case errors.Is(err, otp.ErrExpired):
		return ErrOTPExpired
	case errors.Is(err, otp.ErrMismatch):
		return ErrOTPMismatch
	default:
		e.metricInc(MetricBackendUnavailable)
		e.logger.Error(ctx, "otp cache failure", "error", err.Error())
		return fmt.Errorf("%w: otp cache: %v", ErrUnavailable, err)
	}
}

func (e *Engine) issueToken(ctx context.Context, acct Account) (*AuthResult, error) {
	token, expiresAt, err := e.jwtManager.IssueAt(acct.ID, e.now())
	if err != nil {
		e.logger.Error(ctx, "token issue failed", "account_id", acct.ID, "error", err.Error())
		return nil, fmt.Errorf("%w: issue token: %v", ErrInternal, err)
	}
	return &AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Account:   acct.View(),
	}, nil
}

// normalizeEmail lower-cases and trims email and rejects values that cannot be
// an address. Full syntax checks belong to the transport.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", invalidRequest("email is required")
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return "", invalidRequest("email is malformed")
	}
	return email, nil
}
