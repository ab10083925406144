package repository

import "database/sql"

// Store bundles the MySQL repositories behind every persistence port the
// services use.
type Store struct {
	*ReservationRepo
	*TokenRepo
	*AttendanceRepo
	*TenantRepo
}

// NewStore returns a Store sharing db across repositories.
func NewStore(db *sql.DB) *Store {
	return &Store{
		ReservationRepo: NewReservationRepo(db),
		TokenRepo:       NewTokenRepo(db),
		AttendanceRepo:  NewAttendanceRepo(db),
		TenantRepo:      NewTenantRepo(db),
	}
}
