// Package lifecycle owns reservation status changes.  Every change goes
// through a conditional update from the expected current status and runs
// under the reservation's lock, so concurrent callers cannot both win the
// same transition.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-attendance/internal/clock"
	"github.com/iliyamo/venue-attendance/internal/ledger"
	"github.com/iliyamo/venue-attendance/internal/lock"
	"github.com/iliyamo/venue-attendance/internal/model"
	"github.com/iliyamo/venue-attendance/internal/queue"
	"github.com/iliyamo/venue-attendance/internal/repository"
)

// Store is the persistence port for reservations.
type Store interface {
	GetReservation(ctx context.Context, businessID, id uint64) (*model.Reservation, error)
	UpdateReservationStatus(ctx context.Context, businessID, id uint64, from, to model.ReservationStatus, at time.Time) error
	ListReservations(ctx context.Context, businessID uint64, f repository.ReservationFilter) ([]model.Reservation, error)
}

// CheckInMethod records what triggered a check-in.
type CheckInMethod string

const (
	ByScan   CheckInMethod = "scan"
	ByManual CheckInMethod = "manual"
)

// Config holds lifecycle timing.
type Config struct {
	// TokenTTL sets the QR token expiry relative to ReservedAt.  Zero
	// issues tokens without expiry.
	TokenTTL time.Duration
	// NoShowGrace is how long after ReservedAt a CONFIRMED reservation
	// without scans is swept to NO_SHOW.
	NoShowGrace time.Duration
}

// Lifecycle is the reservation state machine.
type Lifecycle struct {
	store    Store
	ledger   *ledger.Ledger
	guard    *lock.Guard
	clock    clock.Clock
	notifier queue.Notifier
	cfg      Config
	log      *zap.Logger
}

// New builds a Lifecycle.  A nil notifier drops events.
func New(store Store, l *ledger.Ledger, guard *lock.Guard, clk clock.Clock, notifier queue.Notifier, cfg Config, log *zap.Logger) *Lifecycle {
	if store == nil || l == nil || guard == nil {
		panic("nil dependency passed to lifecycle.New")
	}
	if clk == nil {
		clk = clock.System{}
	}
	if notifier == nil {
		notifier = queue.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.NoShowGrace <= 0 {
		cfg.NoShowGrace = 2 * time.Hour
	}
	return &Lifecycle{store: store, ledger: l, guard: guard, clock: clk, notifier: notifier, cfg: cfg, log: log}
}

// Get loads a reservation within a tenant.
func (lc *Lifecycle) Get(ctx context.Context, businessID, id uint64) (*model.Reservation, error) {
	return lc.store.GetReservation(ctx, businessID, id)
}

// Confirm moves a PENDING reservation to CONFIRMED and issues its QR token.
func (lc *Lifecycle) Confirm(ctx context.Context, businessID, id uint64) (*model.Reservation, *model.CheckInToken, error) {
	var (
		res *model.Reservation
		tok *model.CheckInToken
	)
	err := lc.guard.Do(ctx, lock.ReservationKey(businessID, id), func(ctx context.Context) error {
		r, err := lc.store.GetReservation(ctx, businessID, id)
		if err != nil {
			return err
		}
		if r.BusinessID == 0 {
			return fmt.Errorf("%w: reservation %d has no business", ErrInvalidReservation, id)
		}
		if r.ExpectedGuestCount < 1 {
			return fmt.Errorf("%w: expected guest count %d", ErrInvalidReservation, r.ExpectedGuestCount)
		}
		if err := lc.transition(ctx, r, model.StatusConfirmed); err != nil {
			return err
		}
		t, err := lc.ledger.Issue(ctx, r, lc.tokenExpiry(r))
		if err != nil {
			return err
		}
		res, tok = r, t
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return res, tok, nil
}

// Token returns the QR token of a reservation that can still be scanned,
// issuing it when a confirmed reservation has none yet.
func (lc *Lifecycle) Token(ctx context.Context, businessID, id uint64) (*model.CheckInToken, error) {
	var tok *model.CheckInToken
	err := lc.guard.Do(ctx, lock.ReservationKey(businessID, id), func(ctx context.Context) error {
		r, err := lc.store.GetReservation(ctx, businessID, id)
		if err != nil {
			return err
		}
		t, err := lc.ledger.TokenFor(ctx, businessID, id)
		if err == nil {
			tok = t
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if r.Status != model.StatusConfirmed && r.Status != model.StatusCheckedIn {
			return repository.ErrNotFound
		}
		tok, err = lc.ledger.Issue(ctx, r, lc.tokenExpiry(r))
		return err
	})
	return tok, err
}

// CheckIn moves a CONFIRMED reservation to CHECKED_IN.  The scan path
// calls it on the first accepted scan; staff may call it manually.
func (lc *Lifecycle) CheckIn(ctx context.Context, businessID, id uint64, method CheckInMethod) (*model.Reservation, error) {
	var res *model.Reservation
	var scans int
	err := lc.guard.Do(ctx, lock.ReservationKey(businessID, id), func(ctx context.Context) error {
		r, err := lc.store.GetReservation(ctx, businessID, id)
		if err != nil {
			return err
		}
		if err := lc.transition(ctx, r, model.StatusCheckedIn); err != nil {
			return err
		}
		if scans, err = lc.ledger.ScanCount(ctx, businessID, id); err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	lc.log.Info("reservation checked in",
		zap.Uint64("business_id", businessID),
		zap.Uint64("reservation_id", id),
		zap.String("method", string(method)))
	lc.notify(ctx, queue.EventCheckedIn, res, scans, method)
	return res, nil
}

// Complete closes out a CHECKED_IN reservation.  Guest counts are not
// touched; the token stops accepting scans.
func (lc *Lifecycle) Complete(ctx context.Context, businessID, id uint64) (*model.Reservation, error) {
	var res *model.Reservation
	err := lc.guard.Do(ctx, lock.ReservationKey(businessID, id), func(ctx context.Context) error {
		r, err := lc.store.GetReservation(ctx, businessID, id)
		if err != nil {
			return err
		}
		if err := lc.transition(ctx, r, model.StatusCompleted); err != nil {
			return err
		}
		if err := lc.ledger.MarkUsed(ctx, businessID, id); err != nil {
			return fmt.Errorf("close token: %w", err)
		}
		res = r
		return nil
	})
	return res, err
}

// Cancel moves any non-terminal reservation to CANCELLED and cancels its
// token.  An existing attendance record is kept for the audit trail.
func (lc *Lifecycle) Cancel(ctx context.Context, businessID, id uint64) (*model.Reservation, error) {
	var res *model.Reservation
	err := lc.guard.Do(ctx, lock.ReservationKey(businessID, id), func(ctx context.Context) error {
		r, err := lc.store.GetReservation(ctx, businessID, id)
		if err != nil {
			return err
		}
		if err := lc.transition(ctx, r, model.StatusCancelled); err != nil {
			return err
		}
		if err := lc.ledger.Cancel(ctx, businessID, id); err != nil {
			return fmt.Errorf("cancel token: %w", err)
		}
		res = r
		return nil
	})
	if err == nil {
		lc.log.Info("reservation cancelled", zap.Uint64("business_id", businessID), zap.Uint64("reservation_id", id))
	}
	return res, err
}

// SweepSummary reports a no-show sweep.
type SweepSummary struct {
	Scanned int          `json:"scanned"`
	Marked  int          `json:"marked"`
	Skipped int          `json:"skipped"`
	Errors  []SweepError `json:"errors"`
}

// SweepError is a per-reservation sweep failure.
type SweepError struct {
	ReservationID uint64 `json:"reservation_id"`
	Error         string `json:"error"`
}

// SweepNoShows marks CONFIRMED reservations whose window (ReservedAt +
// NoShowGrace) elapsed with zero scans as NO_SHOW and expires their
// tokens.  Reservations are processed independently; ctx is checked
// between them.
func (lc *Lifecycle) SweepNoShows(ctx context.Context, businessID uint64) (SweepSummary, error) {
	sum := SweepSummary{Errors: []SweepError{}}
	cutoff := lc.clock.Now().Add(-lc.cfg.NoShowGrace)
	candidates, err := lc.store.ListReservations(ctx, businessID, repository.ReservationFilter{
		To:       cutoff,
		Statuses: []model.ReservationStatus{model.StatusConfirmed},
	})
	if err != nil {
		return sum, fmt.Errorf("list sweep candidates: %w", err)
	}
	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Scanned++
		marked, err := lc.markNoShow(ctx, businessID, candidates[i].ID, cutoff)
		switch {
		case errors.Is(err, repository.ErrTenantMismatch):
			return sum, err
		case err != nil:
			sum.Errors = append(sum.Errors, SweepError{ReservationID: candidates[i].ID, Error: err.Error()})
		case marked:
			sum.Marked++
		default:
			sum.Skipped++
		}
	}
	lc.log.Info("no-show sweep finished",
		zap.Uint64("business_id", businessID),
		zap.Int("scanned", sum.Scanned),
		zap.Int("marked", sum.Marked),
		zap.Int("skipped", sum.Skipped),
		zap.Int("errors", len(sum.Errors)))
	return sum, nil
}

func (lc *Lifecycle) markNoShow(ctx context.Context, businessID, id uint64, cutoff time.Time) (bool, error) {
	var res *model.Reservation
	err := lc.guard.Do(ctx, lock.ReservationKey(businessID, id), func(ctx context.Context) error {
		r, err := lc.store.GetReservation(ctx, businessID, id)
		if err != nil {
			return err
		}
		// Re-check under the lock: a scan may have checked it in since listing.
		if r.Status != model.StatusConfirmed || !r.ReservedAt.Before(cutoff) {
			return nil
		}
		scans, err := lc.ledger.ScanCount(ctx, businessID, id)
		if err != nil {
			return err
		}
		if scans > 0 {
			lc.log.Warn("confirmed reservation has scans, not sweeping",
				zap.Uint64("business_id", businessID),
				zap.Uint64("reservation_id", id),
				zap.Int("scan_count", scans))
			return nil
		}
		if err := lc.transition(ctx, r, model.StatusNoShow); err != nil {
			return err
		}
		if err := lc.ledger.Expire(ctx, businessID, id); err != nil {
			return fmt.Errorf("expire token: %w", err)
		}
		res = r
		return nil
	})
	if err != nil || res == nil {
		return false, err
	}
	lc.notify(ctx, queue.EventNoShow, res, 0, "")
	return true, nil
}

func (lc *Lifecycle) tokenExpiry(r *model.Reservation) *time.Time {
	if lc.cfg.TokenTTL <= 0 {
		return nil
	}
	t := r.ReservedAt.Add(lc.cfg.TokenTTL)
	return &t
}

func (lc *Lifecycle) transition(ctx context.Context, r *model.Reservation, to model.ReservationStatus) error {
	if !CanTransition(r.Status, to) {
		return &InvalidTransitionError{ReservationID: r.ID, From: r.Status, To: to}
	}
	now := lc.clock.Now()
	if err := lc.store.UpdateReservationStatus(ctx, r.BusinessID, r.ID, r.Status, to, now); err != nil {
		return fmt.Errorf("update status %s -> %s: %w", r.Status, to, err)
	}
	r.Status = to
	r.UpdatedAt = now
	return nil
}

func (lc *Lifecycle) notify(ctx context.Context, typ string, r *model.Reservation, scans int, method CheckInMethod) {
	ev := queue.AttendanceEvent{
		Type:               typ,
		BusinessID:         r.BusinessID,
		ReservationID:      r.ID,
		ExpectedGuestCount: r.ExpectedGuestCount,
		ScanCount:          scans,
		Method:             string(method),
		ReservedAt:         r.ReservedAt.UTC().Format(time.RFC3339),
		OccurredAt:         lc.clock.Now().UTC().Format(time.RFC3339),
	}
	if r.CustomerRef != nil {
		ev.CustomerRef = *r.CustomerRef
	}
	if err := lc.notifier.Notify(ctx, ev); err != nil {
		lc.log.Warn("notification failed", zap.String("type", typ), zap.Uint64("reservation_id", r.ID), zap.Error(err))
	}
}
