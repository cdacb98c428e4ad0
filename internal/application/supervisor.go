package application

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/bryanwahyu/synthpanel/internal/logger"
)

// ErrSupervisorClosed is returned by Go after Shutdown has started.
var ErrSupervisorClosed = errors.New("supervisor is shutting down")

// TaskError carries the name of the task that failed.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string { return fmt.Sprintf("task %s: %v", e.Task, e.Err) }
func (e *TaskError) Unwrap() error { return e.Err }

// Supervisor runs background tasks detached from the request that started
// them. Tasks share a context owned by the supervisor, which is cancelled on
// Shutdown; panics are recovered and reported like errors.
type Supervisor struct {
	log    *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
	errs   chan error

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	drain  sync.WaitGroup
}

func NewSupervisor(log *logger.Logger) *Supervisor {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{log: log, ctx: ctx, cancel: cancel, errs: make(chan error, 64)}
	s.drain.Add(1)
	go s.report()
	return s
}

// Go starts task in the background.
func (s *Supervisor) Go(name string, task func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSupervisorClosed
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.run(name, task); err != nil {
			s.errs <- &TaskError{Task: name, Err: err}
		}
	}()
	return nil
}

func (s *Supervisor) run(name string, task func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("task panicked", "task", name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(s.ctx)
}

func (s *Supervisor) report() {
	defer s.drain.Done()
	for err := range s.errs {
		var te *TaskError
		if errors.As(err, &te) && errors.Is(te.Err, context.Canceled) {
			s.log.Warn("task cancelled", "task", te.Task)
			continue
		}
		s.log.Error("background task failed", "error", err)
	}
}

// Shutdown cancels running tasks and waits for them to return, or for ctx.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(s.errs)
		s.drain.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
