// Package checkin is the door-side entry point: one QR scan in, one
// decision out.  A scan is counted by the ledger, flips a confirmed
// reservation to CHECKED_IN on acceptance and re-derives the attendance
// record, all inside the reservation's critical section.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-attendance/internal/attendance"
	"github.com/iliyamo/venue-attendance/internal/ledger"
	"github.com/iliyamo/venue-attendance/internal/lifecycle"
	"github.com/iliyamo/venue-attendance/internal/lock"
	"github.com/iliyamo/venue-attendance/internal/model"
	"github.com/iliyamo/venue-attendance/internal/repository"
)

// ErrEmptyToken is returned for a blank scan payload.
var ErrEmptyToken = errors.New("token is required")

// Outcome is what the door device is told after a scan.
type Outcome struct {
	Accepted      bool                    `json:"accepted"`
	Reason        ledger.RejectReason     `json:"reason,omitempty"`
	ReservationID uint64                  `json:"reservation_id,omitempty"`
	ScanCount     int                     `json:"scan_count"`
	FirstScan     bool                    `json:"first_scan"`
	CheckedIn     bool                    `json:"checked_in"`
	Status        model.ReservationStatus `json:"status,omitempty"`
	Attendance    *model.AttendanceRecord `json:"attendance,omitempty"`
}

// Service handles scans and staff check-ins.
type Service struct {
	ledger     *ledger.Ledger
	lifecycle  *lifecycle.Lifecycle
	reconciler *attendance.Reconciler
	guard      *lock.Guard
	log        *zap.Logger
}

// NewService wires a Service.  All collaborators must share guard.
func NewService(l *ledger.Ledger, lc *lifecycle.Lifecycle, rc *attendance.Reconciler, guard *lock.Guard, log *zap.Logger) *Service {
	if l == nil || lc == nil || rc == nil || guard == nil {
		panic("nil dependency passed to checkin.NewService")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{ledger: l, lifecycle: lc, reconciler: rc, guard: guard, log: log}
}

// Scan records one scan of token for businessID.  A rejected scan is not
// an error: the Outcome carries the reason.  Errors are reserved for
// storage failures and cross-tenant access.
func (s *Service) Scan(ctx context.Context, businessID uint64, token string) (Outcome, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Outcome{}, ErrEmptyToken
	}
	if businessID == 0 {
		return Outcome{}, repository.ErrMissingTenant
	}
	tok, err := s.ledger.Lookup(ctx, businessID, token)
	if errors.Is(err, repository.ErrNotFound) {
		return Outcome{Reason: ledger.ReasonNotFound}, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	var out Outcome
	err = s.guard.Do(ctx, lock.ReservationKey(businessID, tok.ReservationID), func(ctx context.Context) error {
		scan, err := s.ledger.RecordScan(ctx, businessID, token)
		if err != nil {
			return err
		}
		out = Outcome{
			Accepted:      scan.Accepted,
			Reason:        scan.Reason,
			ReservationID: scan.ReservationID,
			ScanCount:     scan.ScanCount,
			FirstScan:     scan.FirstScan,
		}
		r, err := s.lifecycle.Get(ctx, businessID, tok.ReservationID)
		if err != nil {
			return err
		}
		if !scan.Accepted {
			out.Status = r.Status
			return nil
		}
		if r.Status == model.StatusConfirmed {
			if r, err = s.lifecycle.CheckIn(ctx, businessID, r.ID, lifecycle.ByScan); err != nil {
				return fmt.Errorf("check in: %w", err)
			}
			out.CheckedIn = true
		}
		out.Status = r.Status
		if r.Status != model.StatusCheckedIn && r.Status != model.StatusCompleted {
			return nil
		}
		res, err := s.reconciler.Reconcile(ctx, businessID, r.ID)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		out.Attendance = &res.Record
		return nil
	})
	if err != nil {
		s.log.Error("scan failed",
			zap.Uint64("business_id", businessID),
			zap.Uint64("reservation_id", tok.ReservationID),
			zap.Error(err))
		return Outcome{}, err
	}
	return out, nil
}

// ManualCheckIn checks a reservation in without a scan and reconciles it.
// The attendance count stays scan-derived (possibly zero) until staff set
// it by hand.
func (s *Service) ManualCheckIn(ctx context.Context, businessID, reservationID uint64) (*model.Reservation, *model.AttendanceRecord, error) {
	var (
		res *model.Reservation
		rec *model.AttendanceRecord
	)
	err := s.guard.Do(ctx, lock.ReservationKey(businessID, reservationID), func(ctx context.Context) error {
		r, err := s.lifecycle.CheckIn(ctx, businessID, reservationID, lifecycle.ByManual)
		if err != nil {
			return err
		}
		out, err := s.reconciler.Reconcile(ctx, businessID, reservationID)
		if err != nil {
			return err
		}
		res, rec = r, &out.Record
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return res, rec, nil
}
