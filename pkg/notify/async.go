package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultQueueSize bounds pending deliveries per Async display.
	DefaultQueueSize = 64
	// DefaultDeliveryDeadline caps one delivery including its retries.
	DefaultDeliveryDeadline = 15 * time.Second
)

var (
	// ErrQueueFull is returned when an Async display cannot accept more work.
	ErrQueueFull = errors.New("delivery queue full")
	// ErrDisplayClosed is returned for deliveries after Close.
	ErrDisplayClosed = errors.New("display closed")
)

// Async hands badge updates and notifications to a background worker so a
// slow display never holds up a run. Deliveries are made in order.
type Async struct {
	next     Display
	deadline time.Duration
	logger   zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan func(ctx context.Context) error
	done   chan struct{}
}

func NewAsync(next Display, deadline time.Duration, logger zerolog.Logger) *Async {
	if deadline <= 0 {
		deadline = DefaultDeliveryDeadline
	}
	a := &Async{
		next:     next,
		deadline: deadline,
		logger:   logger.With().Str("component", "async_display").Logger(),
		queue:    make(chan func(ctx context.Context) error, DefaultQueueSize),
		done:     make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Async) SetBadge(_ context.Context, b Badge) error {
	return a.enqueue(func(ctx context.Context) error { return a.next.SetBadge(ctx, b) })
}

func (a *Async) Notify(_ context.Context, n Notification) error {
	return a.enqueue(func(ctx context.Context) error { return a.next.Notify(ctx, n) })
}

func (a *Async) enqueue(job func(ctx context.Context) error) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrDisplayClosed
	}
	select {
	case a.queue <- job:
		return nil
	default:
		a.logger.Warn().Msg("dropping delivery, queue full")
		return ErrQueueFull
	}
}

func (a *Async) loop() {
	defer close(a.done)
	for job := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.deadline)
		if err := job(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("delivery failed")
		}
		cancel()
	}
}

// Close stops accepting work and waits for queued deliveries or ctx.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
