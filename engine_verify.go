package otpAuth

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/otpAuth/internal"
)

// VerifyOtp describes the verifyotp operation and its observable behavior.
//
// VerifyOtp consumes the pending code for email and, on a match, marks the
// account verified and returns a session token. It is the only path that sets
// Verified. A missing, expired or mismatched code leaves the account untouched
// and yields ErrOTPNotFound, ErrOTPExpired or ErrOTPMismatch respectively. An
// expired code is discarded; a mismatched one stays pending. A code with
// anything but ASCII digits is rejected with ErrInvalidRequest before the cache
// is consulted.
func (e *Engine) VerifyOtp(ctx context.Context, email, code string) (*AuthResult, error) {
	if err := e.checkReady(ctx, "verify"); err != nil {
		return nil, err
	}

	email, err := normalizeEmail(email)
	if err != nil {
		e.emitAudit(ctx, auditEventOTPVerify, false, "", "", err, nil)
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		err := invalidRequest("code is required")
		e.emitAudit(ctx, auditEventOTPVerify, false, "", email, err, nil)
		return nil, err
	}
	if !internal.IsNumeric(code) {
		err := invalidRequest("code must be numeric")
		e.emitAudit(ctx, auditEventOTPVerify, false, "", email, err, nil)
		return nil, err
	}

	if err := e.cache.Verify(ctx, email, code); err != nil {
		err = e.mapCacheError(ctx, err)
		switch {
		case errors.Is(err, ErrOTPExpired):
			e.metricInc(MetricOTPExpired)
		case errors.Is(err, ErrUnavailable):
		default:
			e.metricInc(MetricOTPVerifyFailure)
		}
		e.emitAudit(ctx, auditEventOTPVerify, false, "", email, err, nil)
		return nil, err
	}

	sctx, cancel := e.storeContext(ctx)
	acct, err := e.store.UpdateVerified(sctx, email, true)
	cancel()
	if err != nil {
		err = e.mapStoreError(ctx, "update_verified", err)
		e.emitAudit(ctx, auditEventOTPVerify, false, "", email, err, nil)
		return nil, err
	}

	result, err := e.issueToken(ctx, acct)
	if err != nil {
		e.emitAudit(ctx, auditEventOTPVerify, false, acct.ID, email, err, nil)
		return nil, err
	}

	e.metricInc(MetricOTPVerifySuccess)
	e.emitAudit(ctx, auditEventOTPVerify, true, acct.ID, email, nil, nil)
	e.logger.Info(ctx, "account verified", "account_id", acct.ID)

	return result, nil
}
