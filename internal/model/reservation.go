package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
    StatusPending   ReservationStatus = "PENDING"
    StatusConfirmed ReservationStatus = "CONFIRMED"
    StatusCheckedIn ReservationStatus = "CHECKED_IN"
    StatusCompleted ReservationStatus = "COMPLETED"
    StatusNoShow    ReservationStatus = "NO_SHOW"
    StatusCancelled ReservationStatus = "CANCELLED"
)

// Terminal reports whether no further transition may leave s.
func (s ReservationStatus) Terminal() bool {
    switch s {
    case StatusCompleted, StatusNoShow, StatusCancelled:
        return true
    }
    return false
}

// Valid reports whether s is one of the known statuses.
func (s ReservationStatus) Valid() bool {
    switch s {
    case StatusPending, StatusConfirmed, StatusCheckedIn, StatusCompleted, StatusNoShow, StatusCancelled:
        return true
    }
    return false
}

// Reservation records a party's booking at a business (tenant).  It is
// never physically deleted; cancellation is a terminal status.
//
// Fields:
//  ID                 – primary key identifier, unique per tenant.
//  BusinessID         – owning tenant; immutable after creation.
//  CustomerRef        – weak reference to a customer record (nullable).
//  ExpectedGuestCount – party size supplied at booking time (>= 1).
//  ReservedAt         – instant the party is expected.
//  Status             – lifecycle state (see ReservationStatus).
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
type Reservation struct {
    ID                 uint64            `json:"id"`                   // reservations.id
    BusinessID         uint64            `json:"business_id"`          // reservations.business_id
    CustomerRef        *string           `json:"customer_ref,omitempty"` // reservations.customer_ref (nullable)
    ExpectedGuestCount int               `json:"expected_guest_count"` // reservations.expected_guest_count
    ReservedAt         time.Time         `json:"reserved_at"`          // reservations.reserved_at
    Status             ReservationStatus `json:"status"`               // reservations.status
    CreatedAt          time.Time         `json:"created_at"`           // reservations.created_at
    UpdatedAt          time.Time         `json:"updated_at"`           // reservations.updated_at
}
