package lifecycle

import (
	"errors"
	"fmt"

	"github.com/iliyamo/venue-attendance/internal/model"
)

// ErrInvalidTransition matches every *InvalidTransitionError.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrInvalidReservation is returned when a reservation cannot be confirmed
// because its booking data is incomplete.
var ErrInvalidReservation = errors.New("invalid reservation")

// InvalidTransitionError reports a rejected status change.  The
// reservation is left untouched.
type InvalidTransitionError struct {
	ReservationID uint64
	From          model.ReservationStatus
	To            model.ReservationStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("reservation %d: invalid transition %s -> %s", e.ReservationID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

var transitions = map[model.ReservationStatus][]model.ReservationStatus{
	model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCheckedIn, model.StatusNoShow, model.StatusCancelled},
	model.StatusCheckedIn: {model.StatusCompleted, model.StatusCancelled},
}

// CanTransition reports whether from -> to is a legal change.
func CanTransition(from, to model.ReservationStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
