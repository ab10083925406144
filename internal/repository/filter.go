package repository

import (
    "time"

    "github.com/iliyamo/venue-attendance/internal/model"
)

// ReservationFilter narrows ListReservations.  From is inclusive and To
// exclusive on reserved_at; zero values leave that side open.  An empty
// Statuses slice matches every status.
type ReservationFilter struct {
    From     time.Time
    To       time.Time
    Statuses []model.ReservationStatus
}

// Match reports whether r passes the filter.
func (f ReservationFilter) Match(r *model.Reservation) bool {
    if !f.From.IsZero() && r.ReservedAt.Before(f.From) {
        return false
    }
    if !f.To.IsZero() && !r.ReservedAt.Before(f.To) {
        return false
    }
    if len(f.Statuses) == 0 {
        return true
    }
    for _, s := range f.Statuses {
        if r.Status == s {
            return true
        }
    }
    return false
}
