// Package memory provides an in-process otpAuth.AccountStore.
//
// It is meant for tests and for running the server without a database. Data is
// lost when the process exits.
package memory

import (
	"context"
	"sync"
	"time"

	otpAuth "github.com/MrEthical07/otpAuth"
)

// Store is a mutex-guarded map of accounts keyed by email.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]otpAuth.Account
	now      func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[string]otpAuth.Account),
		now:      time.Now,
	}
}

// FindByEmail returns otpAuth.ErrAccountNotFound when no account uses email.
func (s *Store) FindByEmail(ctx context.Context, email string) (otpAuth.Account, error) {
	if err := ctx.Err(); err != nil {
		return otpAuth.Account{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[email]
	if !ok {
		return otpAuth.Account{}, otpAuth.ErrAccountNotFound
	}
	return acct, nil
}

// Create inserts account and returns otpAuth.ErrAccountExists for a taken email.
func (s *Store) Create(ctx context.Context, account otpAuth.Account) (otpAuth.Account, error) {
	if err := ctx.Err(); err != nil {
		return otpAuth.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.Email]; ok {
		return otpAuth.Account{}, otpAuth.ErrAccountExists
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = s.now().UTC()
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = account.CreatedAt
	}
	s.accounts[account.Email] = account
	return account, nil
}

// UpdateVerified sets the verified flag and bumps UpdatedAt.
func (s *Store) UpdateVerified(ctx context.Context, email string, verified bool) (otpAuth.Account, error) {
	if err := ctx.Err(); err != nil {
		return otpAuth.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[email]
	if !ok {
		return otpAuth.Account{}, otpAuth.ErrAccountNotFound
	}
	acct.Verified = verified
	acct.UpdatedAt = s.now().UTC()
	s.accounts[email] = acct
	return acct, nil
}

// Len reports the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Connect always succeeds.
func (s *Store) Connect(ctx context.Context) error { return ctx.Err() }

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
