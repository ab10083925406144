package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/venue-attendance/internal/model"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// TokenRepo persists QR check-in tokens (one row per reservation).
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

const tokenColumns = `token, business_id, reservation_id, status, scan_count, expires_at, last_scan_at, created_at`

func scanToken(s rowScanner) (*model.CheckInToken, error) {
	var (
		t        model.CheckInToken
		status   string
		expires  sql.NullTime
		lastScan sql.NullTime
	)
	if err := s.Scan(&t.Token, &t.BusinessID, &t.ReservationID, &status, &t.ScanCount, &expires, &lastScan, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Status = model.TokenStatus(status)
	if expires.Valid {
		v := expires.Time
		t.ExpiresAt = &v
	}
	if lastScan.Valid {
		v := lastScan.Time
		t.LastScanAt = &v
	}
	return &t, nil
}

func (r *TokenRepo) getBy(ctx context.Context, businessID uint64, where string, arg any) (*model.CheckInToken, error) {
	if businessID == 0 {
		return nil, ErrMissingTenant
	}
	t, err := scanToken(r.DB.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM checkin_tokens WHERE "+where+" AND business_id=? LIMIT 1", arg, businessID))
	if errors.Is(err, sql.ErrNoRows) {
		var owner uint64
		err = r.DB.QueryRowContext(ctx, "SELECT business_id FROM checkin_tokens WHERE "+where+" LIMIT 1", arg).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, ErrTenantMismatch
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetToken resolves a token value.
func (r *TokenRepo) GetToken(ctx context.Context, businessID uint64, token string) (*model.CheckInToken, error) {
	return r.getBy(ctx, businessID, "token=?", token)
}

// GetTokenByReservation returns the token issued for a reservation.
func (r *TokenRepo) GetTokenByReservation(ctx context.Context, businessID, reservationID uint64) (*model.CheckInToken, error) {
	return r.getBy(ctx, businessID, "reservation_id=?", reservationID)
}

// CreateToken inserts a token.  A second token for the same reservation
// yields ErrConflict.
func (r *TokenRepo) CreateToken(ctx context.Context, t *model.CheckInToken) error {
	if t.BusinessID == 0 {
		return ErrMissingTenant
	}
	owner, err := reservationBusiness(ctx, r.DB, t.ReservationID)
	if err != nil {
		return err
	}
	if owner != t.BusinessID {
		return ErrTenantMismatch
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO checkin_tokens (token, business_id, reservation_id, status, scan_count, expires_at, created_at) VALUES (?,?,?,?,?,?,?)",
		t.Token, t.BusinessID, t.ReservationID, string(t.Status), t.ScanCount, t.ExpiresAt, t.CreatedAt.UTC())
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return ErrConflict
	}
	return err
}

// IncrementScan adds one accepted scan to an ACTIVE, unexpired token in a
// single statement and returns the new count.  LAST_INSERT_ID(expr)
// hands the incremented value back through the OK packet, so no second
// read is needed.  ok is false when no row qualified.
func (r *TokenRepo) IncrementScan(ctx context.Context, businessID uint64, token string, now time.Time) (int, bool, error) {
	if businessID == 0 {
		return 0, false, ErrMissingTenant
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE checkin_tokens SET scan_count = LAST_INSERT_ID(scan_count + 1), last_scan_at = ?
		 WHERE token = ? AND business_id = ? AND status = 'ACTIVE' AND (expires_at IS NULL OR expires_at > ?)`,
		now.UTC(), token, businessID, now.UTC())
	if err != nil {
		return 0, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil
	}
	count, err := res.LastInsertId()
	if err != nil {
		return 0, false, err
	}
	return int(count), true, nil
}

// SetTokenStatus overwrites a token's status.
func (r *TokenRepo) SetTokenStatus(ctx context.Context, businessID uint64, token string, status model.TokenStatus) error {
	if businessID == 0 {
		return ErrMissingTenant
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE checkin_tokens SET status=? WHERE token=? AND business_id=?",
		string(status), token, businessID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n == 1 {
		return err
	}
	// Zero rows: missing, foreign, or already in that status.
	_, err = r.GetToken(ctx, businessID, token)
	return err
}
