package otpAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/otpAuth/jwt"
	"github.com/MrEthical07/otpAuth/password"
)

// Login describes the login operation and its observable behavior.
//
// Login checks the password and returns a fresh session token. An unknown email
// and a wrong password both yield ErrInvalidCredentials and cost one argon2
// verification each. A correct password on an unverified account yields
// ErrAccountUnverified.
func (e *Engine) Login(ctx context.Context, email, pass string) (*AuthResult, error) {
	if err := e.checkReady(ctx, "login"); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricLoginLatency, time.Since(start))
		}
	}()

	email, err := normalizeEmail(email)
	if err != nil {
		e.emitAudit(ctx, auditEventLogin, false, "", "", err, nil)
		return nil, err
	}
	if pass == "" {
		err := invalidRequest("password is required")
		e.emitAudit(ctx, auditEventLogin, false, "", email, err, nil)
		return nil, err
	}

	acct, err := e.findAccount(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			e.emitAudit(ctx, auditEventLogin, false, "", email, err, nil)
			return nil, err
		}
		_, _ = e.hasher.Verify(pass, e.decoyHash)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLogin, false, "", email, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "unknown_email",
			}
		})
		return nil, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(pass, acct.PasswordHash)
	if err != nil && !errors.Is(err, password.ErrPasswordTooLong) {
		e.logger.Error(ctx, "stored password hash unreadable", "account_id", acct.ID, "error", err.Error())
		e.emitAudit(ctx, auditEventLogin, false, acct.ID, email, ErrInternal, nil)
		return nil, fmt.Errorf("%w: password verify: %v", ErrInternal, err)
	}
	if !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLogin, false, acct.ID, email, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "wrong_password",
			}
		})
		return nil, ErrInvalidCredentials
	}

	if !acct.Verified {
		e.metricInc(MetricLoginUnverified)
		e.emitAudit(ctx, auditEventLogin, false, acct.ID, email, ErrAccountUnverified, nil)
		return nil, ErrAccountUnverified
	}

	result, err := e.issueToken(ctx, acct)
	if err != nil {
		e.emitAudit(ctx, auditEventLogin, false, acct.ID, email, err, nil)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLogin, true, acct.ID, email, nil, nil)
	return result, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Sessions are stateless, so Logout only records the event; the transport is
// responsible for discarding the client-held token. A valid token contributes
// its account ID to the audit event.
func (e *Engine) Logout(ctx context.Context, token string) {
	if e == nil {
		return
	}
	accountID := ""
	if token != "" && e.jwtManager != nil {
		if uid, err := e.jwtManager.Verify(token); err == nil {
			accountID = uid
		}
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, accountID, "", nil, nil)
}

// ValidateToken describes the validatetoken operation and its observable behavior.
//
// ValidateToken checks signature and expiry without touching the store.
// Expired tokens yield ErrTokenExpired; every other failure yields
// ErrTokenInvalid.
func (e *Engine) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.Parse(token)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrTokenExpired
		}
		e.logger.Debug(ctx, "token rejected", "error", err.Error())
		return nil, ErrTokenInvalid
	}

	out := &Claims{AccountID: claims.UID}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
