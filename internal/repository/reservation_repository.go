package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/iliyamo/venue-attendance/internal/model"
)

// ReservationRepo provides tenant-scoped access to the reservations table.
// All timestamp fields are assumed to be stored in UTC.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, business_id, customer_ref, expected_guest_count, reserved_at, status, created_at, updated_at`

type rowScanner interface {
    Scan(dest ...any) error
}

func scanReservation(s rowScanner) (*model.Reservation, error) {
    var (
        r      model.Reservation
        ref    sql.NullString
        status string
    )
    if err := s.Scan(&r.ID, &r.BusinessID, &ref, &r.ExpectedGuestCount, &r.ReservedAt, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
        return nil, err
    }
    if ref.Valid {
        v := ref.String
        r.CustomerRef = &v
    }
    r.Status = model.ReservationStatus(status)
    return &r, nil
}

// GetReservation loads a reservation.  It returns ErrNotFound when the ID
// does not exist and ErrTenantMismatch when it belongs to another
// business.
func (r *ReservationRepo) GetReservation(ctx context.Context, businessID, id uint64) (*model.Reservation, error) {
    if businessID == 0 {
        return nil, ErrMissingTenant
    }
    const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? AND business_id = ?`
    res, err := scanReservation(r.db.QueryRowContext(ctx, q, id, businessID))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, missingOrForeign(ctx, r.db, businessID, id)
    }
    if err != nil {
        return nil, err
    }
    return res, nil
}

// UpdateReservationStatus moves a reservation from one status to another.
// The update is conditional on the current status; when no row changes the
// reservation is re-read to report ErrNotFound, ErrTenantMismatch or
// ErrConflict.
func (r *ReservationRepo) UpdateReservationStatus(ctx context.Context, businessID, id uint64, from, to model.ReservationStatus, at time.Time) error {
    if businessID == 0 {
        return ErrMissingTenant
    }
    const q = `UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND business_id = ? AND status = ?`
    result, err := r.db.ExecContext(ctx, q, string(to), at.UTC(), id, businessID, string(from))
    if err != nil {
        return err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if n == 1 {
        return nil
    }
    if _, err := r.GetReservation(ctx, businessID, id); err != nil {
        return err
    }
    return ErrConflict
}

// ListReservations returns a business's reservations matching f, ordered
// by reserved_at then id.
func (r *ReservationRepo) ListReservations(ctx context.Context, businessID uint64, f ReservationFilter) ([]model.Reservation, error) {
    if businessID == 0 {
        return nil, ErrMissingTenant
    }
    var (
        sb   strings.Builder
        args = []any{businessID}
    )
    sb.WriteString(`SELECT ` + reservationColumns + ` FROM reservations WHERE business_id = ?`)
    if !f.From.IsZero() {
        sb.WriteString(` AND reserved_at >= ?`)
        args = append(args, f.From.UTC())
    }
    if !f.To.IsZero() {
        sb.WriteString(` AND reserved_at < ?`)
        args = append(args, f.To.UTC())
    }
    if len(f.Statuses) > 0 {
        sb.WriteString(` AND status IN (?` + strings.Repeat(`, ?`, len(f.Statuses)-1) + `)`)
        for _, s := range f.Statuses {
            args = append(args, string(s))
        }
    }
    sb.WriteString(` ORDER BY reserved_at, id`)

    rows, err := r.db.QueryContext(ctx, sb.String(), args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Reservation, 0)
    for rows.Next() {
        res, err := scanReservation(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *res)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// missingOrForeign explains an empty tenant-scoped read of reservation id:
// ErrTenantMismatch when another business owns it, ErrNotFound otherwise.
func missingOrForeign(ctx context.Context, db *sql.DB, businessID, id uint64) error {
    owner, err := reservationBusiness(ctx, db, id)
    if err != nil {
        return err
    }
    if owner != businessID {
        return ErrTenantMismatch
    }
    return ErrNotFound
}

// reservationBusiness returns the owning business of a reservation.
func reservationBusiness(ctx context.Context, db *sql.DB, id uint64) (uint64, error) {
    var owner uint64
    err := db.QueryRowContext(ctx, `SELECT business_id FROM reservations WHERE id = ?`, id).Scan(&owner)
    if errors.Is(err, sql.ErrNoRows) {
        return 0, ErrNotFound
    }
    return owner, err
}
