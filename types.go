package otpAuth

import (
	"context"
	"time"
)

// Account defines a public type used by otpAuth APIs.
//
// Account is the persisted credential record. PasswordHash is an argon2id PHC
// string and never plaintext. Verified flips to true exactly once.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccountView is the public projection returned to clients. It never carries the
// password hash.
type AccountView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (a Account) View() AccountView {
	return AccountView{ID: a.ID, Name: a.Name, Email: a.Email}
}

// RegisterRequest defines a public type used by otpAuth APIs.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResult defines a public type used by otpAuth APIs.
//
// NotificationQueued reports whether the verification email was accepted by the
// dispatch queue. Delivery itself happens later and is not reported here.
type RegisterResult struct {
	AccountID          string `json:"account_id"`
	Email              string `json:"email"`
	NotificationQueued bool   `json:"notification_queued"`
}

// AuthResult is returned by successful verification and login.
type AuthResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Account   AccountView `json:"account"`
}

// Claims is the validated content of a session token.
type Claims struct {
	AccountID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AccountStore defines a public type used by otpAuth APIs.
//
// Implementations must enforce email uniqueness: Create returns ErrAccountExists
// on a duplicate, FindByEmail and UpdateVerified return ErrAccountNotFound for a
// missing email. Emails arrive already normalized.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (Account, error)
	Create(ctx context.Context, account Account) (Account, error)
	UpdateVerified(ctx context.Context, email string, verified bool) (Account, error)
}

// Notifier delivers a rendered HTML message to one recipient.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, htmlBody string) error
}

// Readiness reports whether the backing store is usable right now.
type Readiness interface {
	Ready() bool
}
