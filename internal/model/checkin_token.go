package model

import "time"

// TokenStatus is the state of a QR check-in token.
type TokenStatus string

const (
    TokenActive    TokenStatus = "ACTIVE"
    TokenUsed      TokenStatus = "USED"
    TokenExpired   TokenStatus = "EXPIRED"
    TokenCancelled TokenStatus = "CANCELLED"
)

// CheckInToken is the QR code issued for a reservation.  Each accepted
// scan increments ScanCount; the counter never decreases.
//
// Fields:
//  Token         – opaque value encoded in the QR image.
//  BusinessID    – tenant of the parent reservation.
//  ReservationID – parent reservation (1:1).
//  Status        – ACTIVE, USED, EXPIRED or CANCELLED.
//  ScanCount     – number of accepted scans.
//  ExpiresAt     – optional expiry instant; nil means no expiry.
//  LastScanAt    – time of the latest accepted scan (nullable).
//  CreatedAt     – creation timestamp.
type CheckInToken struct {
    Token         string      `json:"token"`
    BusinessID    uint64      `json:"business_id"`
    ReservationID uint64      `json:"reservation_id"`
    Status        TokenStatus `json:"status"`
    ScanCount     int         `json:"scan_count"`
    ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
    LastScanAt    *time.Time  `json:"last_scan_at,omitempty"`
    CreatedAt     time.Time   `json:"created_at"`
}

// ExpiredAt reports whether the token's expiry has elapsed at now.
func (t *CheckInToken) ExpiredAt(now time.Time) bool {
    return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}
