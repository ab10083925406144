// Package queue defines the attendance notification payloads exchanged over
// the message broker, the publisher that emits them and a consumer that
// records them.
package queue

// Routing keys (also the queue names on the default exchange).
const (
    EventCheckedIn = "attendance.checked_in"
    EventNoShow    = "attendance.no_show"
)

// AttendanceEvent is published when a reservation is checked in or swept
// as a no-show.  It carries enough for downstream consumers (messaging,
// analytics) to act without querying the primary database.
type AttendanceEvent struct {
    Type               string `json:"type"`
    BusinessID         uint64 `json:"business_id"`
    ReservationID      uint64 `json:"reservation_id"`
    CustomerRef        string `json:"customer_ref,omitempty"`
    ExpectedGuestCount int    `json:"expected_guest_count"`
    ScanCount          int    `json:"scan_count"`
    Method             string `json:"method,omitempty"` // scan or manual, for check-ins
    ReservedAt         string `json:"reserved_at"`
    OccurredAt         string `json:"occurred_at"`
}
