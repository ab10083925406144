package attendance

import (
	"errors"

	"github.com/iliyamo/venue-attendance/internal/model"
	"github.com/iliyamo/venue-attendance/internal/repository"
)

// ErrRecordMismatch is returned when an attendance record belongs to a
// different reservation than the one being classified.
var ErrRecordMismatch = errors.New("attendance record does not belong to reservation")

// Classify buckets a reservation for reporting.  Rules, first match wins:
//
//	status CANCELLED             -> cancelled
//	no record or actual == 0     -> no_show
//	actual == expected           -> completed
//	actual >  expected           -> overflow
//	0 < actual < expected        -> partial
//
// Cancellation therefore beats any scans the reservation collected.
// att may be nil.
func Classify(r *model.Reservation, att *model.AttendanceRecord) (model.Classification, error) {
	if att != nil {
		if att.BusinessID != r.BusinessID {
			return "", repository.ErrTenantMismatch
		}
		if att.ReservationID != r.ID {
			return "", ErrRecordMismatch
		}
	}
	if r.Status == model.StatusCancelled {
		return model.ClassCancelled, nil
	}
	if att == nil || att.ActualGuestCount <= 0 {
		return model.ClassNoShow, nil
	}
	switch {
	case att.ActualGuestCount == r.ExpectedGuestCount:
		return model.ClassCompleted, nil
	case att.ActualGuestCount > r.ExpectedGuestCount:
		return model.ClassOverflow, nil
	default:
		return model.ClassPartial, nil
	}
}
