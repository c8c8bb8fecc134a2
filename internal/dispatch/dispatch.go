// Package dispatch runs fire-and-forget jobs on a bounded queue. Each job gets
// its own deadline on a context detached from the submitting request, and
// failures are reported on an error channel rather than to the submitter.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultQueueSize = 64
	DefaultWorkers   = 2
	DefaultTimeout   = 10 * time.Second
)

// ErrQueueFull is returned by Submit when the queue has no free slot.
var ErrQueueFull = errors.New("dispatch: queue full")

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("dispatch: closed")

// Job is one unit of background work.
type Job struct {
	Name string
	// Subject identifies who or what the job concerns, e.g. a recipient.
	Subject string
	Run     func(ctx context.Context) error
}

// Failure describes a job that returned an error, panicked or timed out.
type Failure struct {
	Job     string
	Subject string
	Err     error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Job, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Config sizes the dispatcher. Zero values use the package defaults.
type Config struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// Stats is a point-in-time copy of the dispatcher counters.
type Stats struct {
	Submitted uint64
	Succeeded uint64
	Failed    uint64
	Rejected  uint64
}

// Dispatcher owns a fixed worker pool fed by a buffered queue.
type Dispatcher struct {
	cfg    Config
	jobs   chan Job
	errs   chan Failure
	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool

	submitted atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
}

// New starts the workers.
func New(cfg Config) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	d := &Dispatcher{
		cfg:  cfg,
		jobs: make(chan Job, cfg.QueueSize),
		errs: make(chan Failure, cfg.QueueSize),
		done: make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Submit enqueues job without blocking.
func (d *Dispatcher) Submit(job Job) error {
	if job.Run == nil {
		return errors.New("dispatch: job has no Run func")
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.rejected.Add(1)
		return ErrClosed
	}

	select {
	case d.jobs <- job:
		d.submitted.Add(1)
		return nil
	default:
		d.rejected.Add(1)
		return ErrQueueFull
	}
}

// Errors delivers job failures. When nobody drains it and it fills up, further
// failures are counted but not delivered. The channel is closed by Close.
func (d *Dispatcher) Errors() <-chan Failure {
	return d.errs
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Submitted: d.submitted.Load(),
		Succeeded: d.succeeded.Load(),
		Failed:    d.failed.Load(),
		Rejected:  d.rejected.Load(),
	}
}

// Close stops accepting jobs, waits for queued jobs to finish and closes the
// error channel. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	close(d.errs)
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for job := range d.jobs {
		if err := d.execute(job); err != nil {
			d.failed.Add(1)
			select {
			case d.errs <- Failure{Job: job.Name, Subject: job.Subject, Err: err}:
			default:
			}
			continue
		}
		d.succeeded.Add(1)
	}
}

func (d *Dispatcher) execute(job Job) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.Run(ctx)
}
