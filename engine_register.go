package otpAuth

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/otpAuth/internal"
	"github.com/MrEthical07/otpAuth/password"
)

// Register describes the register operation and its observable behavior.
//
// Register creates an unverified account for a fresh email, issues a
// verification code and queues the email carrying it. An existing account,
// verified or not, yields ErrAccountExists. Once the account is created Register
// succeeds even if the code or the email could not be produced; the result's
// NotificationQueued is false in that case and the caller can use ResendOtp.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if err := e.checkReady(ctx, "register"); err != nil {
		return nil, err
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegister, false, "", "", err, nil)
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		err := invalidRequest("name is required")
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegister, false, "", email, err, nil)
		return nil, err
	}

	_, err = e.findAccount(ctx, email)
	switch {
	case err == nil:
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegister, false, "", email, ErrAccountExists, nil)
		return nil, ErrAccountExists
	case !errors.Is(err, ErrAccountNotFound):
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegister, false, "", email, err, nil)
		return nil, err
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) || errors.Is(err, password.ErrPasswordTooLong) {
			err = invalidRequest(err.Error())
		} else {
			e.logger.Error(ctx, "password hash failed", "error", err.Error())
			err = ErrInternal
		}
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegister, false, "", email, err, nil)
		return nil, err
	}

	now := e.now().UTC()
	sctx, cancel := e.storeContext(ctx)
	acct, err := e.store.Create(sctx, Account{
		ID:           internal.NewAccountID(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Verified:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	cancel()
	if err != nil {
		err = e.mapStoreError(ctx, "create", err)
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricRegisterDuplicate)
		} else {
			e.metricInc(MetricRegisterFailure)
		}
		e.emitAudit(ctx, auditEventRegister, false, "", email, err, nil)
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	queued := e.issueAndQueue(ctx, acct)

	e.emitAudit(ctx, auditEventRegister, true, acct.ID, email, nil, func() map[string]string {
		return map[string]string{
			"notification_queued": boolString(queued),
		}
	})
	e.logger.Info(ctx, "account registered", "account_id", acct.ID, "notification_queued", queued)

	return &RegisterResult{
		AccountID:          acct.ID,
		Email:              acct.Email,
		NotificationQueued: queued,
	}, nil
}

// ResendOtp describes the resendotp operation and its observable behavior.
//
// ResendOtp replaces any pending code for email with a fresh one and queues a
// new email. The previous code stops working immediately. Verified accounts are
// served too. Unknown emails yield ErrAccountNotFound and a code that could not
// be issued yields ErrUnavailable. Once the code is issued the call succeeds even
// if the email cannot be queued; that failure is logged, counted and audited.
func (e *Engine) ResendOtp(ctx context.Context, email string) error {
	if err := e.checkReady(ctx, "resend"); err != nil {
		return err
	}

	email, err := normalizeEmail(email)
	if err != nil {
		e.emitAudit(ctx, auditEventOTPResend, false, "", "", err, nil)
		return err
	}

	acct, err := e.findAccount(ctx, email)
	if err != nil {
		e.emitAudit(ctx, auditEventOTPResend, false, "", email, err, nil)
		return err
	}

	code, err := e.cache.Issue(ctx, email)
	if err != nil {
		err = e.mapCacheError(ctx, err)
		e.emitAudit(ctx, auditEventOTPResend, false, acct.ID, email, err, nil)
		return err
	}
	e.metricInc(MetricOTPIssued)

	queued := e.queueOTP(ctx, acct, code)
	if !queued {
		e.logger.Warn(ctx, "resend issued a code but the email was not queued", "account_id", acct.ID)
	}

	e.metricInc(MetricOTPResend)
	e.emitAudit(ctx, auditEventOTPResend, true, acct.ID, email, nil, func() map[string]string {
		meta := map[string]string{
			"verified":            boolString(acct.Verified),
			"notification_queued": boolString(queued),
		}
		if !queued {
			meta["reason"] = "notification_not_queued"
		}
		return meta
	})
	return nil
}

func (e *Engine) issueAndQueue(ctx context.Context, acct Account) bool {
	code, err := e.cache.Issue(ctx, acct.Email)
	if err != nil {
		e.logger.Error(ctx, "otp issue failed after registration", "account_id", acct.ID, "error", err.Error())
		e.metricInc(MetricBackendUnavailable)
		return false
	}
	e.metricInc(MetricOTPIssued)
	return e.queueOTP(ctx, acct, code)
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
