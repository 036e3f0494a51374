package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one scheduled unit of work. Jobs run on a single goroutine, so two
// invocations never overlap.
type Job func(ctx context.Context) error

type Status struct {
	Running          bool      `json:"running"`
	Interval         string    `json:"interval"`
	Ticks            int64     `json:"ticks"`
	LastTickAt       time.Time `json:"lastTickAt,omitzero"`
	LastTickDuration string    `json:"lastTickDuration,omitempty"`
	LastError        string    `json:"lastError,omitempty"`
}

type Scheduler struct {
	interval time.Duration
	job      Job

	running atomic.Bool
	ticks   atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	lastMu       sync.RWMutex
	lastTickAt   time.Time
	lastDuration time.Duration
	lastErr      error
}

func New(interval time.Duration, job Job) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if job == nil {
		return nil, errors.New("job must not be nil")
	}
	return &Scheduler{
		interval: interval,
		job:      job,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the job immediately and then every interval until Stop.
// It returns false when the scheduler is already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go s.loop(ctx, s.done)

	return true
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("scheduler started", "interval", s.interval.String())

	s.safeTick(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.safeTick(ctx)
		}
	}
}

// Stop cancels the in-flight job, if any, and waits for the loop to exit.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	slog.Info("scheduler stopped", "ticks", s.ticks.Load())
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) Status() Status {
	st := Status{
		Running:  s.running.Load(),
		Interval: s.interval.String(),
		Ticks:    s.ticks.Load(),
	}

	s.lastMu.RLock()
	defer s.lastMu.RUnlock()

	st.LastTickAt = s.lastTickAt
	if !s.lastTickAt.IsZero() {
		st.LastTickDuration = s.lastDuration.String()
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Scheduler) safeTick(ctx context.Context) {
	start := time.Now()

	var err error
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler tick panic recovered", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
		s.record(start, err)
	}()

	err = s.job(ctx)
}

func (s *Scheduler) record(start time.Time, err error) {
	d := time.Since(start)
	s.ticks.Add(1)

	s.lastMu.Lock()
	s.lastTickAt = start
	s.lastDuration = d
	s.lastErr = err
	s.lastMu.Unlock()

	if err != nil {
		slog.Error("scheduler tick failed", "duration_ms", d.Milliseconds(), "error", err)
		return
	}
	slog.Info("scheduler tick completed", "duration_ms", d.Milliseconds())
}
