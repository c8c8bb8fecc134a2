package otpAuth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventRegister            = "register"
	auditEventOTPVerify           = "otp_verify"
	auditEventOTPResend           = "otp_resend"
	auditEventLogin               = "login"
	auditEventLogout              = "logout"
	auditEventNotificationFailure = "notification_failure"
)

// AuditErrorCode defines a public type used by otpAuth APIs.
type AuditErrorCode string

const (
	auditErrNotificationFailed AuditErrorCode = "notification_failed"
	auditErrInternal           AuditErrorCode = "internal"
)

var errNotificationDelivery = errors.New("notification delivery failed")

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// auditErrorCode reuses the Kind names so audit consumers and transports share
// one vocabulary.
func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	if errors.Is(err, errNotificationDelivery) {
		return auditErrNotificationFailed
	}
	var target *Error
	if !errors.As(err, &target) {
		return auditErrInternal
	}
	return AuditErrorCode(target.Kind.String())
}
