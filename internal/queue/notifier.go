package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notifier delivers attendance events.  Implementations may fail; callers
// on the check-in path wrap them in Async so a broker outage never blocks
// or rolls back a transition.
type Notifier interface {
	Notify(ctx context.Context, ev AttendanceEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, AttendanceEvent) error { return nil }

// Async is a fire-and-forget Notifier.  Each event is delivered on its own
// goroutine with a bounded timeout; errors are logged and swallowed.
type Async struct {
	next    Notifier
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsync wraps next.  A zero timeout defaults to five seconds.
func NewAsync(next Notifier, log *zap.Logger, timeout time.Duration) *Async {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{next: next, log: log, timeout: timeout}
}

// Notify schedules delivery and returns immediately.
func (a *Async) Notify(_ context.Context, ev AttendanceEvent) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.log.Error("notifier panicked", zap.Any("panic", r), zap.String("type", ev.Type))
			}
		}()
		// Detached from the request context: the request may finish first.
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.next.Notify(ctx, ev); err != nil {
			a.log.Warn("notification failed",
				zap.String("type", ev.Type),
				zap.Uint64("business_id", ev.BusinessID),
				zap.Uint64("reservation_id", ev.ReservationID),
				zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until every scheduled delivery finished.
func (a *Async) Wait() { a.wg.Wait() }

// Recorder keeps events in memory.  Used by tests and local runs.
type Recorder struct {
	mu     sync.Mutex
	events []AttendanceEvent
}

func (r *Recorder) Notify(_ context.Context, ev AttendanceEvent) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []AttendanceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AttendanceEvent(nil), r.events...)
}
