package services

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultReadyDelay emulates kitchen preparation time between the confirmed
// and ready transitions.
const DefaultReadyDelay = 30 * time.Second

// ReadyScheduler defers the confirmed → ready transition as an in-process
// timer decoupled from the request that confirmed the order. Scheduled timers
// are not cancellable and are not persisted across restarts; duplicate firing
// is harmless because MarkReady guards on the current status.
type ReadyScheduler struct {
	delay  time.Duration
	logger func(ctx context.Context, event string, fields map[string]any)

	mu      sync.Mutex
	handler func(ctx context.Context, orderID string)
	closed  bool

	wg sync.WaitGroup
}

// ReadySchedulerDeps configures the scheduler.
type ReadySchedulerDeps struct {
	Delay  time.Duration
	Logger func(ctx context.Context, event string, fields map[string]any)
}

// NewReadyScheduler constructs a scheduler. Bind must be called before the
// first Schedule takes effect.
func NewReadyScheduler(deps ReadySchedulerDeps) *ReadyScheduler {
	delay := deps.Delay
	if delay <= 0 {
		delay = DefaultReadyDelay
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &ReadyScheduler{
		delay:  delay,
		logger: logger,
	}
}

// Bind registers the transition handler. It exists so the scheduler can be
// constructed before the order service that both uses it and serves it.
func (s *ReadyScheduler) Bind(handler func(ctx context.Context, orderID string)) error {
	if handler == nil {
		return errors.New("ready scheduler: handler is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
	return nil
}

// Schedule arms a timer that fires the ready transition after the configured
// delay. The transition runs with a background context so it survives the
// triggering request completing.
func (s *ReadyScheduler) Schedule(orderID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger(context.Background(), "ready_scheduler.rejected.shutting_down", map[string]any{"orderId": orderID})
		return
	}
	handler := s.handler
	if handler == nil {
		s.mu.Unlock()
		s.logger(context.Background(), "ready_scheduler.rejected.unbound", map[string]any{"orderId": orderID})
		return
	}
	// Registering the timer under the lock keeps Shutdown from returning
	// between the closed check and the Add.
	s.wg.Add(1)
	s.mu.Unlock()
	time.AfterFunc(s.delay, func() {
		defer s.wg.Done()
		handler(context.Background(), orderID)
	})
}

// Shutdown stops accepting new timers and waits for armed ones to fire, or
// for the context to expire.
func (s *ReadyScheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
