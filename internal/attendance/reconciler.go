// Package attendance derives the canonical "who actually came" count of a
// reservation from its scan ledger, lets staff override it by hand, and
// classifies reconciled reservations for reporting.
//
// The expected guest count (booking time) and the scan counter are
// written independently; the Reconciler is the only place that turns
// them into an AttendanceRecord.  Provenance is kept in
// AttendanceRecord.Source rather than in separate tables.
package attendance

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-attendance/internal/clock"
	"github.com/iliyamo/venue-attendance/internal/ledger"
	"github.com/iliyamo/venue-attendance/internal/lifecycle"
	"github.com/iliyamo/venue-attendance/internal/lock"
	"github.com/iliyamo/venue-attendance/internal/model"
	"github.com/iliyamo/venue-attendance/internal/repository"
)

// ErrNotEligible is returned when a reservation's status does not allow
// the requested attendance change.
var ErrNotEligible = errors.New("reservation not eligible for attendance")

// ErrInvalidCount is returned for a negative manual guest count.
var ErrInvalidCount = errors.New("guest count must be >= 0")

// ErrReconciliationSkipped is informational: a manual override kept the
// record from being re-derived.  Reconcile never returns it; see
// Result.Err.
var ErrReconciliationSkipped = errors.New("reconciliation skipped: manual override present")

// Store is the persistence port for attendance records.  SaveAttendance
// upserts on (business, reservation).
type Store interface {
	GetAttendance(ctx context.Context, businessID, reservationID uint64) (*model.AttendanceRecord, error)
	SaveAttendance(ctx context.Context, rec *model.AttendanceRecord) error
}

// Outcome describes what a reconciliation did.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeSkipped means a manual override is present.  It is
	// informational, not a failure.
	OutcomeSkipped Outcome = "skipped"
)

// Result is a reconciled record and what happened to it.
type Result struct {
	Record  model.AttendanceRecord `json:"record"`
	Outcome Outcome                `json:"outcome"`
}

// Err returns ErrReconciliationSkipped for a skipped result and nil
// otherwise.
func (r Result) Err() error {
	if r.Outcome == OutcomeSkipped {
		return ErrReconciliationSkipped
	}
	return nil
}

// Reconciler owns AttendanceRecord writes.
type Reconciler struct {
	store     Store
	lifecycle *lifecycle.Lifecycle
	ledger    *ledger.Ledger
	guard     *lock.Guard
	clock     clock.Clock
	log       *zap.Logger
}

// NewReconciler builds a Reconciler.  guard must be the instance the
// ledger uses, so a reconciliation never reads a scan count that a live
// scan is about to change.
func NewReconciler(store Store, lc *lifecycle.Lifecycle, l *ledger.Ledger, guard *lock.Guard, clk clock.Clock, log *zap.Logger) *Reconciler {
	if store == nil || lc == nil || l == nil || guard == nil {
		panic("nil dependency passed to attendance.NewReconciler")
	}
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{store: store, lifecycle: lc, ledger: l, guard: guard, clock: clk, log: log}
}

// Get returns the reservation's attendance record.
func (rc *Reconciler) Get(ctx context.Context, businessID, reservationID uint64) (*model.AttendanceRecord, error) {
	return rc.store.GetAttendance(ctx, businessID, reservationID)
}

// Reconcile derives the attendance record from the ledger.  Without a
// record one is created (only once the reservation is checked in or
// completed); a scan-derived record follows the scan count; a manual
// record is left alone.
func (rc *Reconciler) Reconcile(ctx context.Context, businessID, reservationID uint64) (Result, error) {
	var out Result
	err := rc.guard.Do(ctx, lock.ReservationKey(businessID, reservationID), func(ctx context.Context) error {
		r, err := rc.lifecycle.Get(ctx, businessID, reservationID)
		if err != nil {
			return err
		}
		out, err = rc.derive(ctx, r, model.SourceScan)
		return err
	})
	return out, err
}

// RepairMissing is Reconcile for the repair job: it only runs for
// CHECKED_IN or COMPLETED reservations, and a record it creates is tagged
// REPAIR.  Running it twice with no scans in between returns the same
// record.
func (rc *Reconciler) RepairMissing(ctx context.Context, businessID, reservationID uint64) (Result, error) {
	var out Result
	err := rc.guard.Do(ctx, lock.ReservationKey(businessID, reservationID), func(ctx context.Context) error {
		r, err := rc.lifecycle.Get(ctx, businessID, reservationID)
		if err != nil {
			return err
		}
		if r.Status != model.StatusCheckedIn && r.Status != model.StatusCompleted {
			return fmt.Errorf("%w: status %s", ErrNotEligible, r.Status)
		}
		out, err = rc.derive(ctx, r, model.SourceRepair)
		return err
	})
	return out, err
}

// SetManualAttendance records a staff-entered count.  It is the only way
// to bring the count below the scan-derived value, and it sticks until
// ClearManualOverride.
func (rc *Reconciler) SetManualAttendance(ctx context.Context, businessID, reservationID uint64, count int) (model.AttendanceRecord, error) {
	if count < 0 {
		return model.AttendanceRecord{}, ErrInvalidCount
	}
	var rec model.AttendanceRecord
	err := rc.guard.Do(ctx, lock.ReservationKey(businessID, reservationID), func(ctx context.Context) error {
		r, err := rc.lifecycle.Get(ctx, businessID, reservationID)
		if err != nil {
			return err
		}
		switch r.Status {
		case model.StatusCheckedIn, model.StatusCompleted, model.StatusNoShow:
		default:
			return fmt.Errorf("%w: status %s", ErrNotEligible, r.Status)
		}
		rec = model.AttendanceRecord{
			BusinessID:       r.BusinessID,
			ReservationID:    r.ID,
			ActualGuestCount: count,
			IsManualOverride: true,
			Source:           model.SourceManual,
			RecordedAt:       rc.clock.Now(),
		}
		return rc.store.SaveAttendance(ctx, &rec)
	})
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	rc.log.Info("manual attendance set",
		zap.Uint64("business_id", businessID),
		zap.Uint64("reservation_id", reservationID),
		zap.Int("count", count))
	return rec, nil
}

// ClearManualOverride drops the manual flag and re-derives the count from
// the ledger in the same critical section.
func (rc *Reconciler) ClearManualOverride(ctx context.Context, businessID, reservationID uint64) (Result, error) {
	var out Result
	err := rc.guard.Do(ctx, lock.ReservationKey(businessID, reservationID), func(ctx context.Context) error {
		r, err := rc.lifecycle.Get(ctx, businessID, reservationID)
		if err != nil {
			return err
		}
		existing, err := rc.store.GetAttendance(ctx, businessID, reservationID)
		if err != nil {
			return err
		}
		if existing.IsManualOverride {
			existing.IsManualOverride = false
			existing.Source = model.SourceScan
			if err := rc.store.SaveAttendance(ctx, existing); err != nil {
				return err
			}
		}
		out, err = rc.derive(ctx, r, model.SourceScan)
		return err
	})
	return out, err
}

// derive must run under the reservation's lock.
func (rc *Reconciler) derive(ctx context.Context, r *model.Reservation, createAs model.AttendanceSource) (Result, error) {
	scans, err := rc.ledger.ScanCount(ctx, r.BusinessID, r.ID)
	if err != nil {
		return Result{}, fmt.Errorf("read scan count: %w", err)
	}
	existing, err := rc.store.GetAttendance(ctx, r.BusinessID, r.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Result{}, err
	}

	if existing == nil {
		if r.Status != model.StatusCheckedIn && r.Status != model.StatusCompleted {
			return Result{}, fmt.Errorf("%w: status %s", ErrNotEligible, r.Status)
		}
		rec := model.AttendanceRecord{
			BusinessID:       r.BusinessID,
			ReservationID:    r.ID,
			ActualGuestCount: scans,
			Source:           createAs,
			RecordedAt:       rc.clock.Now(),
		}
		if err := rc.store.SaveAttendance(ctx, &rec); err != nil {
			return Result{}, fmt.Errorf("create attendance: %w", err)
		}
		rc.log.Info("attendance created",
			zap.Uint64("business_id", r.BusinessID),
			zap.Uint64("reservation_id", r.ID),
			zap.Int("count", scans),
			zap.String("source", string(createAs)))
		return Result{Record: rec, Outcome: OutcomeCreated}, nil
	}

	if existing.BusinessID != r.BusinessID || existing.ReservationID != r.ID {
		return Result{}, repository.ErrTenantMismatch
	}
	if existing.IsManualOverride {
		rc.log.Debug("reconciliation skipped, manual override",
			zap.Uint64("business_id", r.BusinessID),
			zap.Uint64("reservation_id", r.ID))
		return Result{Record: *existing, Outcome: OutcomeSkipped}, nil
	}
	if existing.ActualGuestCount == scans {
		return Result{Record: *existing, Outcome: OutcomeUnchanged}, nil
	}
	existing.ActualGuestCount = scans
	existing.Source = model.SourceScan
	existing.RecordedAt = rc.clock.Now()
	if err := rc.store.SaveAttendance(ctx, existing); err != nil {
		return Result{}, fmt.Errorf("update attendance: %w", err)
	}
	return Result{Record: *existing, Outcome: OutcomeUpdated}, nil
}
