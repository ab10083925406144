// Package repair backfills attendance records that the live path missed,
// for example after a bulk import of checked-in reservations.
package repair

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-attendance/internal/attendance"
	"github.com/iliyamo/venue-attendance/internal/model"
	"github.com/iliyamo/venue-attendance/internal/repository"
)

// ErrInvalidWindow is returned when To is not after From.
var ErrInvalidWindow = errors.New("invalid repair window")

// Store is the read side the job scans.
type Store interface {
	ListReservations(ctx context.Context, businessID uint64, f repository.ReservationFilter) ([]model.Reservation, error)
	ListAttendance(ctx context.Context, businessID uint64, reservationIDs []uint64) (map[uint64]model.AttendanceRecord, error)
}

// Repairer creates the missing record for one reservation.
// *attendance.Reconciler satisfies it.
type Repairer interface {
	RepairMissing(ctx context.Context, businessID, reservationID uint64) (attendance.Result, error)
}

// Window selects reservations by ReservedAt in [From, To).
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ItemError is the failure of one reservation.  It does not stop the batch.
type ItemError struct {
	ReservationID uint64 `json:"reservation_id"`
	Error         string `json:"error"`
}

// Summary reports one run.
type Summary struct {
	Scanned   int         `json:"scanned"`
	Repaired  int         `json:"repaired"`
	AlreadyOK int         `json:"alreadyOk"`
	Errors    []ItemError `json:"errors"`
	// Cancelled is set when the run stopped early on ctx cancellation or
	// the job timeout; the counters cover what was processed.
	Cancelled bool `json:"cancelled"`
}

// Job runs repairs for one business at a time.
type Job struct {
	store    Store
	repairer Repairer
	timeout  time.Duration
	log      *zap.Logger
}

// NewJob builds a Job.  A non-positive timeout means no deadline beyond
// the caller's context.
func NewJob(store Store, repairer Repairer, timeout time.Duration, log *zap.Logger) *Job {
	if store == nil || repairer == nil {
		panic("nil dependency passed to repair.NewJob")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Job{store: store, repairer: repairer, timeout: timeout, log: log}
}

// Run repairs every CHECKED_IN or COMPLETED reservation in w that has no
// attendance record.  Reservations that already have one, manual or not,
// count as AlreadyOK and are not touched.  Cancellation is checked between
// reservations.  Only a tenant mismatch or a failed listing aborts the
// run; any other failure is collected into Summary.Errors.
func (j *Job) Run(ctx context.Context, businessID uint64, w Window) (Summary, error) {
	sum := Summary{Errors: []ItemError{}}
	if businessID == 0 {
		return sum, repository.ErrMissingTenant
	}
	if !w.To.After(w.From) {
		return sum, fmt.Errorf("%w: %s is not after %s", ErrInvalidWindow, w.To, w.From)
	}
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	candidates, err := j.store.ListReservations(ctx, businessID, repository.ReservationFilter{
		From:     w.From,
		To:       w.To,
		Statuses: []model.ReservationStatus{model.StatusCheckedIn, model.StatusCompleted},
	})
	if err != nil {
		return sum, fmt.Errorf("list repair candidates: %w", err)
	}
	ids := make([]uint64, 0, len(candidates))
	for i := range candidates {
		ids = append(ids, candidates[i].ID)
	}
	existing, err := j.store.ListAttendance(ctx, businessID, ids)
	if err != nil {
		return sum, fmt.Errorf("list attendance: %w", err)
	}

	start := time.Now()
	for _, id := range ids {
		if ctx.Err() != nil {
			sum.Cancelled = true
			break
		}
		sum.Scanned++
		if _, ok := existing[id]; ok {
			sum.AlreadyOK++
			continue
		}
		res, err := j.repairer.RepairMissing(ctx, businessID, id)
		switch {
		case errors.Is(err, repository.ErrTenantMismatch):
			j.log.Error("tenant mismatch during repair",
				zap.Uint64("business_id", businessID),
				zap.Uint64("reservation_id", id))
			return sum, err
		case err != nil:
			j.log.Warn("repair failed",
				zap.Uint64("business_id", businessID),
				zap.Uint64("reservation_id", id),
				zap.Error(err))
			sum.Errors = append(sum.Errors, ItemError{ReservationID: id, Error: err.Error()})
		case res.Outcome == attendance.OutcomeCreated:
			sum.Repaired++
		default:
			// Created concurrently by a live scan since the listing.
			sum.AlreadyOK++
		}
	}

	j.log.Info("repair finished",
		zap.Uint64("business_id", businessID),
		zap.Int("scanned", sum.Scanned),
		zap.Int("repaired", sum.Repaired),
		zap.Int("already_ok", sum.AlreadyOK),
		zap.Int("errors", len(sum.Errors)),
		zap.Bool("cancelled", sum.Cancelled),
		zap.Duration("took", time.Since(start)))
	return sum, nil
}
