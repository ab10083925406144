package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"

    "github.com/iliyamo/venue-attendance/internal/model"
)

// listChunk caps the number of IDs bound into one IN clause.
const listChunk = 500

// AttendanceRepo persists reconciled attendance, one row per reservation.
type AttendanceRepo struct {
    db *sql.DB
}

// NewAttendanceRepo returns a new AttendanceRepo bound to the given database.
func NewAttendanceRepo(db *sql.DB) *AttendanceRepo { return &AttendanceRepo{db: db} }

const attendanceColumns = `business_id, reservation_id, actual_guest_count, is_manual_override, source, recorded_at`

func scanAttendance(s rowScanner) (*model.AttendanceRecord, error) {
    var (
        a      model.AttendanceRecord
        source string
    )
    if err := s.Scan(&a.BusinessID, &a.ReservationID, &a.ActualGuestCount, &a.IsManualOverride, &source, &a.RecordedAt); err != nil {
        return nil, err
    }
    a.Source = model.AttendanceSource(source)
    return &a, nil
}

// GetAttendance returns the record of a reservation.  A reservation owned
// by another business yields ErrTenantMismatch.
func (r *AttendanceRepo) GetAttendance(ctx context.Context, businessID, reservationID uint64) (*model.AttendanceRecord, error) {
    if businessID == 0 {
        return nil, ErrMissingTenant
    }
    const q = `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE reservation_id = ? AND business_id = ?`
    a, err := scanAttendance(r.db.QueryRowContext(ctx, q, reservationID, businessID))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, missingOrForeign(ctx, r.db, businessID, reservationID)
    }
    if err != nil {
        return nil, err
    }
    return a, nil
}

// SaveAttendance upserts the record of a reservation after checking that
// the reservation belongs to rec.BusinessID.
func (r *AttendanceRepo) SaveAttendance(ctx context.Context, rec *model.AttendanceRecord) error {
    if rec.BusinessID == 0 {
        return ErrMissingTenant
    }
    owner, err := reservationBusiness(ctx, r.db, rec.ReservationID)
    if err != nil {
        return err
    }
    if owner != rec.BusinessID {
        return ErrTenantMismatch
    }
    const q = `INSERT INTO attendance_records (` + attendanceColumns + `)
               VALUES (?, ?, ?, ?, ?, ?)
               ON DUPLICATE KEY UPDATE
                 actual_guest_count = VALUES(actual_guest_count),
                 is_manual_override = VALUES(is_manual_override),
                 source = VALUES(source),
                 recorded_at = VALUES(recorded_at)`
    _, err = r.db.ExecContext(ctx, q,
        rec.BusinessID, rec.ReservationID, rec.ActualGuestCount, rec.IsManualOverride, string(rec.Source), rec.RecordedAt.UTC())
    return err
}

// ListAttendance returns the records of the given reservations keyed by
// reservation ID.  Reservations without a record are absent from the map.
func (r *AttendanceRepo) ListAttendance(ctx context.Context, businessID uint64, reservationIDs []uint64) (map[uint64]model.AttendanceRecord, error) {
    if businessID == 0 {
        return nil, ErrMissingTenant
    }
    out := make(map[uint64]model.AttendanceRecord, len(reservationIDs))
    for start := 0; start < len(reservationIDs); start += listChunk {
        end := start + listChunk
        if end > len(reservationIDs) {
            end = len(reservationIDs)
        }
        chunk := reservationIDs[start:end]
        args := make([]any, 0, len(chunk)+1)
        args = append(args, businessID)
        for _, id := range chunk {
            args = append(args, id)
        }
        q := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE business_id = ? AND reservation_id IN (?` +
            strings.Repeat(`, ?`, len(chunk)-1) + `)`
        if err := r.collect(ctx, q, args, out); err != nil {
            return nil, err
        }
    }
    return out, nil
}

func (r *AttendanceRepo) collect(ctx context.Context, q string, args []any, out map[uint64]model.AttendanceRecord) error {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return err
    }
    defer rows.Close()
    for rows.Next() {
        a, err := scanAttendance(rows)
        if err != nil {
            return err
        }
        out[a.ReservationID] = *a
    }
    return rows.Err()
}
