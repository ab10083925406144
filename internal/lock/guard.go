// Package lock provides the per-reservation serialization point shared by
// live scans, check-in transitions and repair.  Every writer of a
// reservation's token counter or attendance record runs inside
// Guard.Do for that reservation's key.
package lock

import (
	"context"
	"errors"
	"fmt"
)

// ErrTimeout is returned when a lock could not be obtained in time.
var ErrTimeout = errors.New("lock wait timeout")

// Release gives a lock back.  Calling it more than once is harmless.
type Release func()

// Locker hands out exclusive locks by key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// ReservationKey is the lock key of a reservation.
func ReservationKey(businessID, reservationID uint64) string {
	return fmt.Sprintf("reservation:%d:%d", businessID, reservationID)
}

// Guard runs functions under a key's lock.  It is re-entrant per context:
// a nested Do for a key already held by ctx runs directly, so a scan that
// triggers reconciliation does not deadlock on its own lock.
type Guard struct {
	locker Locker
}

// NewGuard wraps locker.
func NewGuard(locker Locker) *Guard { return &Guard{locker: locker} }

type heldKey struct{}

type held struct {
	key    string
	parent *held
}

func holds(ctx context.Context, key string) bool {
	h, _ := ctx.Value(heldKey{}).(*held)
	for ; h != nil; h = h.parent {
		if h.key == key {
			return true
		}
	}
	return false
}

// Do runs fn while holding key.
func (g *Guard) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if holds(ctx, key) {
		return fn(ctx)
	}
	release, err := g.locker.Acquire(ctx, key)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", key, err)
	}
	defer release()
	parent, _ := ctx.Value(heldKey{}).(*held)
	return fn(context.WithValue(ctx, heldKey{}, &held{key: key, parent: parent}))
}
