// Package gate provides an admission gate that caps how many actions may start
// within a rolling time window.
package gate

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Gate admits at most capacity callers in any trailing window of the
// configured duration.
//
// # Algorithm
//
// Admissions are recorded as timestamps in a fixed-size ring (the ledger).
// An entry stops counting once it is window old and is dropped lazily the
// next time anyone inspects the ledger. When the ledger is full, callers
// queue in arrival order. Only the head of the queue may be admitted: it
// sleeps until the oldest entry expires, admits itself, and then wakes the
// next waiter so that one can re-check. New arrivals never overtake the
// queue, even when a slot happens to be free.
//
// # Thread Safety
//
// Gate is safe for concurrent use from multiple goroutines. The mutex covers
// only the prune/check/append step and queue edits; it is never held while a
// caller sleeps.
//
// # Example
//
//	g, err := gate.New(10, time.Second) // 10 calls per second
//	if err != nil {
//	    return err
//	}
//	if err := g.Acquire(ctx); err != nil {
//	    return err // ctx ended before a slot was granted
//	}
//	// perform the rate-limited call
type Gate struct {
	capacity int
	window   time.Duration
	clock    clock.Clock
	logger   *zap.Logger

	mu      sync.Mutex
	ledger  *ledger
	queue   *list.List // of *waiter, in ticket order
	tickets uint64

	admitted  uint64
	cancelled uint64
	waitTotal time.Duration

	// admitHook observes every recorded admission under mu. Tests only.
	admitHook func(time.Time)
}

type waiter struct {
	ticket uint64
	wake   chan struct{}
	elem   *list.Element
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock sets the time source. Tests pass clock.NewMock().
func WithClock(c clock.Clock) Option {
	return func(g *Gate) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithLogger sets the logger used for wait and cancellation events.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a gate allowing capacity admissions per window.
//
// Both values must be positive; otherwise New returns a *ConfigError.
func New(capacity int, window time.Duration, opts ...Option) (*Gate, error) {
	if capacity <= 0 {
		return nil, &ConfigError{Field: "capacity", Value: capacity}
	}
	if window <= 0 {
		return nil, &ConfigError{Field: "window", Value: window}
	}

	g := &Gate{
		capacity: capacity,
		window:   window,
		clock:    clock.New(),
		logger:   zap.NewNop(),
		ledger:   newLedger(capacity),
		queue:    list.New(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Capacity returns the number of admissions allowed per window.
func (g *Gate) Capacity() int {
	return g.capacity
}

// Window returns the length of the rolling window.
func (g *Gate) Window() time.Duration {
	return g.window
}

// Acquire blocks until the caller may proceed and records the admission.
//
// It returns nil once admitted. If ctx is done first, Acquire returns an
// error matching ErrCanceled and leaves no trace in the gate.
func (g *Gate) Acquire(ctx context.Context) error {
	if ctx.Err() != nil {
		return canceled(context.Cause(ctx))
	}

	g.mu.Lock()
	g.tickets++
	ticket := g.tickets
	now := g.clock.Now()
	g.ledger.prune(now.Add(-g.window))

	if g.queue.Len() == 0 && !g.ledger.full() {
		g.admitLocked(now)
		g.mu.Unlock()
		return nil
	}

	w := &waiter{ticket: ticket, wake: make(chan struct{}, 1)}
	w.elem = g.queue.PushBack(w)
	start := now
	g.logger.Debug("gate saturated, queueing caller",
		zap.Uint64("ticket", ticket),
		zap.Int("waiting", g.queue.Len()),
		zap.Int("capacity", g.capacity),
	)

	for {
		var timer *clock.Timer
		if g.queue.Front() == w.elem {
			now = g.clock.Now()
			g.ledger.prune(now.Add(-g.window))
			if !g.ledger.full() {
				g.queue.Remove(w.elem)
				g.admitLocked(now)
				waited := now.Sub(start)
				g.waitTotal += waited
				g.notifyHeadLocked()
				g.mu.Unlock()
				g.logger.Debug("gate admitted queued caller",
					zap.Uint64("ticket", ticket),
					zap.Duration("waited", waited),
				)
				return nil
			}
			// Armed under mu so the deadline and the timer agree on "now".
			timer = g.clock.Timer(g.ledger.oldest().Add(g.window).Sub(now))
		}
		g.mu.Unlock()

		var expired <-chan time.Time
		if timer != nil {
			expired = timer.C
		}
		select {
		case <-w.wake:
		case <-expired:
		case <-ctx.Done():
		}
		if timer != nil {
			timer.Stop()
		}

		g.mu.Lock()
		if ctx.Err() != nil {
			g.abandonLocked(w)
			g.mu.Unlock()
			g.logger.Debug("gate wait canceled",
				zap.Uint64("ticket", ticket),
				zap.Error(ctx.Err()),
			)
			return canceled(context.Cause(ctx))
		}
	}
}

// TryAcquire admits the caller only if a slot is free and nobody is queued.
// It never blocks.
func (g *Gate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.ledger.prune(now.Add(-g.window))
	if g.queue.Len() > 0 || g.ledger.full() {
		return false
	}
	g.tickets++
	g.admitLocked(now)
	return true
}

func (g *Gate) admitLocked(now time.Time) {
	g.ledger.push(now)
	g.admitted++
	if g.admitHook != nil {
		g.admitHook(now)
	}
}

// notifyHeadLocked nudges the current head to re-check the ledger.
func (g *Gate) notifyHeadLocked() {
	front := g.queue.Front()
	if front == nil {
		return
	}
	select {
	case front.Value.(*waiter).wake <- struct{}{}:
	default:
	}
}

func (g *Gate) abandonLocked(w *waiter) {
	wasHead := g.queue.Front() == w.elem
	g.queue.Remove(w.elem)
	g.cancelled++
	if wasHead {
		g.notifyHeadLocked()
	}
}

// Stats contains a point-in-time view of the gate.
type Stats struct {
	Capacity  int           `json:"capacity"`
	Window    time.Duration `json:"window"`
	InWindow  int           `json:"inWindow"`  // Admissions still inside the window
	Waiting   int           `json:"waiting"`   // Callers currently queued
	Admitted  uint64        `json:"admitted"`  // Total admissions since construction
	Canceled  uint64        `json:"canceled"`  // Total abandoned waits
	TotalWait time.Duration `json:"totalWait"` // Summed wait of queued callers that were admitted
	NextSlot  time.Time     `json:"nextSlot"`  // When the oldest entry expires; zero if a slot is free
}

// Stats returns a snapshot of the gate's state.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.ledger.prune(now.Add(-g.window))

	s := Stats{
		Capacity:  g.capacity,
		Window:    g.window,
		InWindow:  g.ledger.len(),
		Waiting:   g.queue.Len(),
		Admitted:  g.admitted,
		Canceled:  g.cancelled,
		TotalWait: g.waitTotal,
	}
	if g.ledger.full() {
		s.NextSlot = g.ledger.oldest().Add(g.window)
	}
	return s
}
