package model

import "time"

// AttendanceSource tags where an attendance count came from.
type AttendanceSource string

const (
    SourceScan   AttendanceSource = "SCAN"
    SourceManual AttendanceSource = "MANUAL"
    SourceRepair AttendanceSource = "REPAIR"
)

// AttendanceRecord is the reconciled number of guests that actually showed
// up for a reservation.  There is at most one record per
// (BusinessID, ReservationID).
type AttendanceRecord struct {
    BusinessID       uint64           `json:"business_id"`
    ReservationID    uint64           `json:"reservation_id"`
    ActualGuestCount int              `json:"actual_guest_count"`
    IsManualOverride bool             `json:"is_manual_override"`
    Source           AttendanceSource `json:"source"`
    RecordedAt       time.Time        `json:"recorded_at"`
}

// Classification is the reporting bucket of a reconciled reservation.
type Classification string

const (
    ClassCompleted Classification = "completed"
    ClassOverflow  Classification = "overflow"
    ClassPartial   Classification = "partial"
    ClassNoShow    Classification = "no_show"
    ClassCancelled Classification = "cancelled"
)

// Classifications lists every bucket in reporting order.
var Classifications = []Classification{ClassCompleted, ClassOverflow, ClassPartial, ClassNoShow, ClassCancelled}
