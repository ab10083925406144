package ledger

import (
	"errors"
	"fmt"
)

// RejectReason explains why a scan was not counted.
type RejectReason string

const (
	ReasonNone      RejectReason = ""
	ReasonExpired   RejectReason = "expired"
	ReasonCancelled RejectReason = "cancelled"
	ReasonUsed      RejectReason = "used"
	ReasonNotFound  RejectReason = "not_found"
)

// ErrTokenRejected matches every *RejectedError.
var ErrTokenRejected = errors.New("token rejected")

// RejectedError reports a scan that was not counted.
type RejectedError struct {
	Reason RejectReason
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("token rejected: %s", e.Reason)
}

func (e *RejectedError) Is(target error) bool { return target == ErrTokenRejected }

// ScanResult is the outcome of one RecordScan call.  FirstScan is set on
// exactly one accepted scan per token: the one that moved the counter
// from zero to one.
type ScanResult struct {
	Accepted      bool         `json:"accepted"`
	ScanCount     int          `json:"scan_count"`
	Reason        RejectReason `json:"reason,omitempty"`
	FirstScan     bool         `json:"first_scan"`
	BusinessID    uint64       `json:"-"`
	ReservationID uint64       `json:"reservation_id,omitempty"`
	Token         string       `json:"-"`
}

// Err returns a *RejectedError for a rejected scan and nil otherwise.
func (r ScanResult) Err() error {
	if r.Accepted {
		return nil
	}
	return &RejectedError{Reason: r.Reason}
}
