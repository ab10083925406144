// Package memory is an in-process implementation of the persistence port.
// It backs STORE_DRIVER=memory and the service tests.  It enforces the
// same tenant rules as the MySQL repositories: every call needs a
// business ID and a record of another business yields ErrTenantMismatch.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/venue-attendance/internal/model"
	"github.com/iliyamo/venue-attendance/internal/repository"
)

type attendanceKey struct {
	businessID    uint64
	reservationID uint64
}

// Store holds every table in maps guarded by one mutex.
type Store struct {
	mu           sync.RWMutex
	nextID       uint64
	reservations map[uint64]model.Reservation
	tokens       map[string]model.CheckInToken
	tokenByRes   map[uint64]string
	attendance   map[attendanceKey]model.AttendanceRecord
	tenants      map[uint64]model.TenantSettings
	failures     map[uint64]error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		reservations: make(map[uint64]model.Reservation),
		tokens:       make(map[string]model.CheckInToken),
		tokenByRes:   make(map[uint64]string),
		attendance:   make(map[attendanceKey]model.AttendanceRecord),
		tenants:      make(map[uint64]model.TenantSettings),
		failures:     make(map[uint64]error),
	}
}

// AddReservation inserts r, assigning an ID when r.ID is zero.
func (s *Store) AddReservation(r model.Reservation) (model.Reservation, error) {
	if r.BusinessID == 0 {
		return model.Reservation{}, repository.ErrMissingTenant
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		s.nextID++
		r.ID = s.nextID
	} else if r.ID > s.nextID {
		s.nextID = r.ID
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = r.ReservedAt
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	s.reservations[r.ID] = r
	return r, nil
}

// PutTenantSettings stores the settings of a business.
func (s *Store) PutTenantSettings(ts model.TenantSettings) {
	s.mu.Lock()
	s.tenants[ts.BusinessID] = ts
	s.mu.Unlock()
}

// FailReservation makes every read of reservation id return err.  Used to
// exercise partial failures.
func (s *Store) FailReservation(id uint64, err error) {
	s.mu.Lock()
	s.failures[id] = err
	s.mu.Unlock()
}

func (s *Store) GetReservation(_ context.Context, businessID, id uint64) (*model.Reservation, error) {
	if businessID == 0 {
		return nil, repository.ErrMissingTenant
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failures[id]; err != nil {
		return nil, err
	}
	r, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if r.BusinessID != businessID {
		return nil, repository.ErrTenantMismatch
	}
	return &r, nil
}

func (s *Store) UpdateReservationStatus(_ context.Context, businessID, id uint64, from, to model.ReservationStatus, at time.Time) error {
	if businessID == 0 {
		return repository.ErrMissingTenant
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return repository.ErrNotFound
	}
	if r.BusinessID != businessID {
		return repository.ErrTenantMismatch
	}
	if r.Status != from {
		return repository.ErrConflict
	}
	r.Status = to
	r.UpdatedAt = at
	s.reservations[id] = r
	return nil
}

func (s *Store) ListReservations(_ context.Context, businessID uint64, f repository.ReservationFilter) ([]model.Reservation, error) {
	if businessID == 0 {
		return nil, repository.ErrMissingTenant
	}
	s.mu.RLock()
	out := make([]model.Reservation, 0)
	for _, r := range s.reservations {
		if r.BusinessID != businessID {
			continue
		}
		if f.Match(&r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReservedAt.Equal(out[j].ReservedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ReservedAt.Before(out[j].ReservedAt)
	})
	return out, nil
}

func (s *Store) GetToken(_ context.Context, businessID uint64, token string) (*model.CheckInToken, error) {
	if businessID == 0 {
		return nil, repository.ErrMissingTenant
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if t.BusinessID != businessID {
		return nil, repository.ErrTenantMismatch
	}
	return &t, nil
}

func (s *Store) GetTokenByReservation(_ context.Context, businessID, reservationID uint64) (*model.CheckInToken, error) {
	if businessID == 0 {
		return nil, repository.ErrMissingTenant
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	tv, ok := s.tokenByRes[reservationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t := s.tokens[tv]
	if t.BusinessID != businessID {
		return nil, repository.ErrTenantMismatch
	}
	return &t, nil
}

func (s *Store) CreateToken(_ context.Context, t *model.CheckInToken) error {
	if t.BusinessID == 0 {
		return repository.ErrMissingTenant
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[t.ReservationID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.BusinessID != t.BusinessID {
		return repository.ErrTenantMismatch
	}
	if _, dup := s.tokenByRes[t.ReservationID]; dup {
		return repository.ErrConflict
	}
	if _, dup := s.tokens[t.Token]; dup {
		return repository.ErrConflict
	}
	s.tokens[t.Token] = *t
	s.tokenByRes[t.ReservationID] = t.Token
	return nil
}

// SetScanCount overwrites a token's counter.  Seeding helper for imports.
func (s *Store) SetScanCount(reservationID uint64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tv, ok := s.tokenByRes[reservationID]
	if !ok {
		return
	}
	t := s.tokens[tv]
	t.ScanCount = n
	s.tokens[tv] = t
}

func (s *Store) IncrementScan(_ context.Context, businessID uint64, token string, now time.Time) (int, bool, error) {
	if businessID == 0 {
		return 0, false, repository.ErrMissingTenant
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok || t.BusinessID != businessID {
		return 0, false, nil
	}
	if t.Status != model.TokenActive || t.ExpiredAt(now) {
		return 0, false, nil
	}
	t.ScanCount++
	at := now
	t.LastScanAt = &at
	s.tokens[token] = t
	return t.ScanCount, true, nil
}

func (s *Store) SetTokenStatus(_ context.Context, businessID uint64, token string, status model.TokenStatus) error {
	if businessID == 0 {
		return repository.ErrMissingTenant
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return repository.ErrNotFound
	}
	if t.BusinessID != businessID {
		return repository.ErrTenantMismatch
	}
	t.Status = status
	s.tokens[token] = t
	return nil
}

func (s *Store) GetAttendance(_ context.Context, businessID, reservationID uint64) (*model.AttendanceRecord, error) {
	if businessID == 0 {
		return nil, repository.ErrMissingTenant
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.attendance[attendanceKey{businessID, reservationID}]
	if !ok {
		if r, exists := s.reservations[reservationID]; exists && r.BusinessID != businessID {
			return nil, repository.ErrTenantMismatch
		}
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (s *Store) SaveAttendance(_ context.Context, rec *model.AttendanceRecord) error {
	if rec.BusinessID == 0 {
		return repository.ErrMissingTenant
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[rec.ReservationID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.BusinessID != rec.BusinessID {
		return repository.ErrTenantMismatch
	}
	s.attendance[attendanceKey{rec.BusinessID, rec.ReservationID}] = *rec
	return nil
}

func (s *Store) ListAttendance(_ context.Context, businessID uint64, reservationIDs []uint64) (map[uint64]model.AttendanceRecord, error) {
	if businessID == 0 {
		return nil, repository.ErrMissingTenant
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint64]model.AttendanceRecord, len(reservationIDs))
	for _, id := range reservationIDs {
		if rec, ok := s.attendance[attendanceKey{businessID, id}]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

// AttendanceCount returns how many attendance rows exist for a business.
func (s *Store) AttendanceCount(businessID uint64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.attendance {
		if k.businessID == businessID {
			n++
		}
	}
	return n
}

func (s *Store) TenantSettings(_ context.Context, businessID uint64) (*model.TenantSettings, error) {
	if businessID == 0 {
		return nil, repository.ErrMissingTenant
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.tenants[businessID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ts, nil
}
