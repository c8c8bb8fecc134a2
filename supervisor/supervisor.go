package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/otpAuth/internal/logging"
)

const (
	DefaultAttemptTimeout = 5 * time.Second
	DefaultHealthInterval = 30 * time.Second
)

// Connector is a dependency the supervisor can establish and ping.
type Connector interface {
	Connect(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Config tunes the loop. Zero values fall back to the package defaults.
type Config struct {
	Name           string
	AttemptTimeout time.Duration
	HealthInterval time.Duration
	Backoff        ExponentialBackoff
	Logger         logging.Logger
	// Wait replaces the timer used between attempts.
	Wait WaitFunc
}

// Supervisor owns the connection state of one Connector.
type Supervisor struct {
	connector Connector
	cfg       Config
	log       logging.Logger

	ready    atomic.Bool
	failures atomic.Int64
	running  atomic.Bool

	mu      sync.Mutex
	lastErr error
}

// New validates cfg and returns an idle supervisor. Call Run to start it.
func New(connector Connector, cfg Config) (*Supervisor, error) {
	if connector == nil {
		return nil, errors.New("supervisor: connector is required")
	}
	if cfg.AttemptTimeout < 0 || cfg.HealthInterval < 0 {
		return nil, errors.New("supervisor: timeouts must be >= 0")
	}
	if cfg.Backoff.Base < 0 || cfg.Backoff.Max < 0 {
		return nil, errors.New("supervisor: backoff delays must be >= 0")
	}
	if cfg.Backoff.Base > 0 && cfg.Backoff.Max > 0 && cfg.Backoff.Max < cfg.Backoff.Base {
		return nil, errors.New("supervisor: backoff max must be >= base")
	}
	if cfg.Name == "" {
		cfg.Name = "store"
	}
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.HealthInterval == 0 {
		cfg.HealthInterval = DefaultHealthInterval
	}
	if cfg.Wait == nil {
		cfg.Wait = waitWithContext
	}

	return &Supervisor{
		connector: connector,
		cfg:       cfg,
		log:       logging.OrNop(cfg.Logger).With("component", "supervisor", "target", cfg.Name),
	}, nil
}

// Ready reports whether the last connect or ping succeeded.
func (s *Supervisor) Ready() bool {
	return s.ready.Load()
}

// Failures returns the number of consecutive failed attempts.
func (s *Supervisor) Failures() int {
	return int(s.failures.Load())
}

// LastError returns the most recent attempt error, or nil after a success.
func (s *Supervisor) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Run connects and keeps the connection healthy until ctx is done, then returns
// ctx.Err(). There is no retry limit. Run must not be called concurrently.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("supervisor: already running")
	}
	defer s.running.Store(false)
	defer s.ready.Store(false)

	for {
		op, opName := s.connector.Connect, "connect"
		if s.ready.Load() {
			if err := s.cfg.Wait(ctx, s.cfg.HealthInterval); err != nil {
				return err
			}
			op, opName = s.connector.Ping, "ping"
		}

		err := s.attempt(ctx, op)
		if err == nil {
			s.setLastErr(nil)
			if !s.ready.Load() {
				s.log.Info(ctx, "connection ready", "after_failures", s.failures.Load())
			}
			s.failures.Store(0)
			s.ready.Store(true)
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.setLastErr(err)
		s.ready.Store(false)
		failures := s.failures.Add(1)
		delay := s.cfg.Backoff.NextDelay(int(failures))
		s.log.Warn(ctx, "connection attempt failed",
			"op", opName,
			"failures", failures,
			"retry_in", delay.String(),
			"error", err.Error(),
		)

		if err := s.cfg.Wait(ctx, delay); err != nil {
			return err
		}
	}
}

func (s *Supervisor) attempt(ctx context.Context, op func(context.Context) error) (err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("supervisor: attempt panicked: %v", r)
		}
	}()
	return op(attemptCtx)
}

func (s *Supervisor) setLastErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// All combines connectors so they are connected and pinged in order. The first
// failure stops the sequence.
func All(connectors ...Connector) Connector {
	return group(connectors)
}

type group []Connector

func (g group) Connect(ctx context.Context) error {
	for _, c := range g {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (g group) Ping(ctx context.Context) error {
	for _, c := range g {
		if err := c.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}
