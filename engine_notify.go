package otpAuth

import (
	"context"
	"fmt"

	"github.com/MrEthical07/otpAuth/internal/dispatch"
	"github.com/MrEthical07/otpAuth/notify"
)

const jobOTPEmail = "otp_email"

// queueOTP renders the verification email and hands it to the dispatch queue.
// It reports whether the job was accepted; delivery happens later.
func (e *Engine) queueOTP(ctx context.Context, acct Account, code string) bool {
	subject, body, err := notify.RenderOTPEmail(notify.OTPEmail{
		AppName:   e.config.Notification.AppName,
		Name:      acct.Name,
		Code:      code,
		ExpiresIn: e.otpTTL,
	})
	if err != nil {
		e.logger.Error(ctx, "render otp email failed", "account_id", acct.ID, "error", err.Error())
		e.metricInc(MetricNotificationRejected)
		return false
	}

	recipient := acct.Email
	err = e.dispatcher.Submit(dispatch.Job{
		Name:    jobOTPEmail,
		Subject: recipient,
		Run: func(ctx context.Context) error {
			return e.notifier.Send(ctx, recipient, subject, body)
		},
	})
	if err != nil {
		e.logger.Warn(ctx, "otp email not queued", "account_id", acct.ID, "error", err.Error())
		e.metricInc(MetricNotificationRejected)
		return false
	}
	e.metricInc(MetricNotificationQueued)
	return true
}

// watchNotifications consumes dispatch failures until the dispatcher is closed.
// A failed delivery never affects the account; it is logged, counted and audited.
func (e *Engine) watchNotifications() {
	ctx := context.Background()
	for failure := range e.dispatcher.Errors() {
		e.metricInc(MetricNotificationFailure)
		e.logger.Error(ctx, "notification delivery failed",
			"job", failure.Job,
			"recipient", failure.Subject,
			"error", failure.Err.Error(),
		)
		cause := fmt.Errorf("%w: %v", errNotificationDelivery, failure.Err)
		e.emitAudit(ctx, auditEventNotificationFailure, false, "", failure.Subject, cause, func() map[string]string {
			return map[string]string{
				"job": failure.Job,
			}
		})
	}
}
