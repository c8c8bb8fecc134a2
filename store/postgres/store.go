// Package postgres provides a PostgreSQL-backed otpAuth.AccountStore.
//
// The store talks to the database through database/sql with the pgx stdlib
// driver and applies its schema with goose from embedded migrations. It also
// satisfies supervisor.Connector so the connection can be established and
// health-checked in the background.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	otpAuth "github.com/MrEthical07/otpAuth"
	"github.com/MrEthical07/otpAuth/store/postgres/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

var (
	// ErrNotConnected is returned by store operations before Connect succeeded.
	ErrNotConnected = errors.New("postgres: not connected")
	errMissingDSN   = errors.New("postgres: dsn is required")
)

// sqlOpen is a seam for testing sql.Open.
var sqlOpen = sql.Open

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Config configures a Store.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// AutoMigrate applies pending migrations after the first successful Connect.
	AutoMigrate bool
}

// Store implements otpAuth.AccountStore on the accounts table.
type Store struct {
	cfg Config
	now func() time.Time

	mu       sync.RWMutex
	db       *sql.DB
	migrated bool

	migrateMu sync.Mutex
}

// New returns a Store that opens its pool lazily on Connect.
func New(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errMissingDSN
	}
	return &Store{cfg: cfg, now: time.Now}, nil
}

// NewWithDB wraps an existing pool. Migrations are not applied automatically.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now, migrated: true}
}

// Connect opens the pool if needed, pings the server and, when AutoMigrate is
// set, applies migrations once. Only opening the pool holds the store lock;
// queries keep running while Connect pings or migrates.
func (s *Store) Connect(ctx context.Context) error {
	db, err := s.open()
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	if s.cfg.AutoMigrate {
		if err := s.migrateOnce(ctx, db); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return nil
}

func (s *Store) open() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}
	db, err := sqlOpen("pgx", s.cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if s.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	}
	if s.cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	}
	if s.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)
	}
	s.db = db
	return db, nil
}

// migrateOnce serializes migration runs on migrateMu and skips them after the
// first success.
func (s *Store) migrateOnce(ctx context.Context, db *sql.DB) error {
	s.migrateMu.Lock()
	defer s.migrateMu.Unlock()

	s.mu.RLock()
	done := s.migrated
	s.mu.RUnlock()
	if done {
		return nil
	}

	if err := runMigrations(ctx, db); err != nil {
		return err
	}
	s.mu.Lock()
	s.migrated = true
	s.mu.Unlock()
	return nil
}

// Ping checks the pool is still usable.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Migrate applies every pending migration.
func (s *Store) Migrate(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if err := runMigrations(ctx, db); err != nil {
		return err
	}
	s.mu.Lock()
	s.migrated = true
	s.mu.Unlock()
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func (s *Store) handle() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrNotConnected
	}
	return s.db, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (otpAuth.Account, error) {
	db, err := s.handle()
	if err != nil {
		return otpAuth.Account{}, err
	}

	query :=
		`SELECT id, email, name, password_hash, verified, created_at, updated_at FROM accounts
		 WHERE email = $1
		 `

	var acct otpAuth.Account
	err = db.QueryRowContext(ctx, query, email).Scan(
		&acct.ID, &acct.Email, &acct.Name, &acct.PasswordHash, &acct.Verified, &acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return otpAuth.Account{}, otpAuth.ErrAccountNotFound
		}
		return otpAuth.Account{}, fmt.Errorf("db error: %w", err)
	}
	return acct, nil
}

// Create inserts account. A unique violation on email maps to
// otpAuth.ErrAccountExists, which also settles racing registrations.
func (s *Store) Create(ctx context.Context, account otpAuth.Account) (otpAuth.Account, error) {
	db, err := s.handle()
	if err != nil {
		return otpAuth.Account{}, err
	}

	if account.CreatedAt.IsZero() {
		account.CreatedAt = s.now().UTC()
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = account.CreatedAt
	}

	query :=
		`INSERT INTO accounts (id, email, name, password_hash, verified, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
		 `

	_, err = db.ExecContext(ctx, query,
		account.ID, account.Email, account.Name, account.PasswordHash, account.Verified, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return otpAuth.Account{}, otpAuth.ErrAccountExists
		}
		return otpAuth.Account{}, fmt.Errorf("db error: %w", err)
	}
	return account, nil
}

func (s *Store) UpdateVerified(ctx context.Context, email string, verified bool) (otpAuth.Account, error) {
	db, err := s.handle()
	if err != nil {
		return otpAuth.Account{}, err
	}

	query :=
		`UPDATE accounts SET verified = $2, updated_at = $3
		 WHERE email = $1
		 RETURNING id, email, name, password_hash, verified, created_at, updated_at
		 `

	var acct otpAuth.Account
	err = db.QueryRowContext(ctx, query, email, verified, s.now().UTC()).Scan(
		&acct.ID, &acct.Email, &acct.Name, &acct.PasswordHash, &acct.Verified, &acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return otpAuth.Account{}, otpAuth.ErrAccountNotFound
		}
		return otpAuth.Account{}, fmt.Errorf("db error: %w", err)
	}
	return acct, nil
}
