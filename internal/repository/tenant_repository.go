package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/venue-attendance/internal/model"
)

// TenantRepo reads per-business settings from the businesses table.
type TenantRepo struct{ db *sql.DB }

func NewTenantRepo(db *sql.DB) *TenantRepo { return &TenantRepo{db: db} }

// TenantSettings returns the stored settings of a business.  NULL columns
// come back as unset fields.
func (r *TenantRepo) TenantSettings(ctx context.Context, businessID uint64) (*model.TenantSettings, error) {
	if businessID == 0 {
		return nil, ErrMissingTenant
	}
	var (
		tz           sql.NullString
		hour, minute sql.NullInt32
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT timezone, reset_hour, reset_minute FROM businesses WHERE id=?", businessID).
		Scan(&tz, &hour, &minute)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ts := &model.TenantSettings{BusinessID: businessID, Timezone: tz.String}
	if hour.Valid {
		h := int(hour.Int32)
		ts.ResetHour = &h
	}
	if minute.Valid {
		m := int(minute.Int32)
		ts.ResetMinute = &m
	}
	return ts, nil
}
