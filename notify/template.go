package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// OTPEmail is the data rendered into the verification message.
type OTPEmail struct {
	AppName   string
	Name      string
	Code      string
	ExpiresIn time.Duration
}

var otpEmailTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: sans-serif; color: #222;">
    <p>Hi {{.Name}},</p>
    <p>Use the code below to verify your {{.AppName}} account.</p>
    <p style="font-size: 28px; font-weight: bold; letter-spacing: 6px;">{{.Code}}</p>
    <p>The code expires in {{.Minutes}} minutes. If you did not sign up, ignore this email.</p>
  </body>
</html>
`))

// RenderOTPEmail returns the subject and HTML body for a verification code.
// Name and AppName are HTML-escaped.
func RenderOTPEmail(data OTPEmail) (string, string, error) {
	if data.Code == "" {
		return "", "", fmt.Errorf("notify: empty code")
	}
	if data.AppName == "" {
		data.AppName = "otpAuth"
	}
	minutes := int(data.ExpiresIn.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	var buf bytes.Buffer
	err := otpEmailTemplate.Execute(&buf, struct {
		OTPEmail
		Minutes int
	}{data, minutes})
	if err != nil {
		return "", "", fmt.Errorf("notify: render otp email: %w", err)
	}

	subject := fmt.Sprintf("Your %s verification code", data.AppName)
	return subject, buf.String(), nil
}
