// Package ledger counts accepted QR scans per reservation token.  The
// counter only ever grows; a rejected scan is informational and leaves it
// untouched.  Repeated scans of the same code are counted on purpose
// (re-entries, party members scanning one by one); deduplication is a
// policy for callers above this package.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-attendance/internal/clock"
	"github.com/iliyamo/venue-attendance/internal/lock"
	"github.com/iliyamo/venue-attendance/internal/model"
	"github.com/iliyamo/venue-attendance/internal/repository"
)

// Store is the persistence port for check-in tokens.
type Store interface {
	GetToken(ctx context.Context, businessID uint64, token string) (*model.CheckInToken, error)
	GetTokenByReservation(ctx context.Context, businessID, reservationID uint64) (*model.CheckInToken, error)
	CreateToken(ctx context.Context, t *model.CheckInToken) error
	// IncrementScan atomically adds one to the scan count when the token
	// is ACTIVE and not expired at now.  ok is false when nothing changed.
	IncrementScan(ctx context.Context, businessID uint64, token string, now time.Time) (count int, ok bool, err error)
	SetTokenStatus(ctx context.Context, businessID uint64, token string, status model.TokenStatus) error
}

// Ledger is the scan counter.
type Ledger struct {
	store Store
	guard *lock.Guard
	clock clock.Clock
	log   *zap.Logger
}

// New builds a Ledger.  guard must be the same instance used by every
// other writer of reservation attendance.
func New(store Store, guard *lock.Guard, clk clock.Clock, log *zap.Logger) *Ledger {
	if store == nil || guard == nil {
		panic("nil dependency passed to ledger.New")
	}
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{store: store, guard: guard, clock: clk, log: log}
}

// Issue returns the reservation's token, creating it on first need.
func (l *Ledger) Issue(ctx context.Context, res *model.Reservation, expiresAt *time.Time) (*model.CheckInToken, error) {
	existing, err := l.store.GetTokenByReservation(ctx, res.BusinessID, res.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	t := &model.CheckInToken{
		Token:         uuid.NewString(),
		BusinessID:    res.BusinessID,
		ReservationID: res.ID,
		Status:        model.TokenActive,
		ExpiresAt:     expiresAt,
		CreatedAt:     l.clock.Now(),
	}
	if err := l.store.CreateToken(ctx, t); err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	l.log.Info("check-in token issued",
		zap.Uint64("business_id", res.BusinessID),
		zap.Uint64("reservation_id", res.ID))
	return t, nil
}

// Lookup resolves a token within businessID.
func (l *Ledger) Lookup(ctx context.Context, businessID uint64, token string) (*model.CheckInToken, error) {
	return l.store.GetToken(ctx, businessID, token)
}

// TokenFor returns the reservation's token, or repository.ErrNotFound when
// none was issued.
func (l *Ledger) TokenFor(ctx context.Context, businessID, reservationID uint64) (*model.CheckInToken, error) {
	return l.store.GetTokenByReservation(ctx, businessID, reservationID)
}

// RecordScan counts one scan of token.  An unknown token yields a
// rejected result with ReasonNotFound; a token owned by another business
// is a hard error.  The increment runs under the reservation's lock, so
// exactly one concurrent caller observes FirstScan.
func (l *Ledger) RecordScan(ctx context.Context, businessID uint64, token string) (ScanResult, error) {
	res := ScanResult{BusinessID: businessID, Token: token}
	tok, err := l.store.GetToken(ctx, businessID, token)
	if errors.Is(err, repository.ErrNotFound) {
		res.Reason = ReasonNotFound
		l.log.Info("scan rejected", zap.Uint64("business_id", businessID), zap.String("reason", string(res.Reason)))
		return res, nil
	}
	if err != nil {
		if errors.Is(err, repository.ErrTenantMismatch) {
			l.log.Error("scan of token owned by another business", zap.Uint64("business_id", businessID), zap.String("token", token))
		}
		return res, err
	}
	res.ReservationID = tok.ReservationID

	err = l.guard.Do(ctx, lock.ReservationKey(businessID, tok.ReservationID), func(ctx context.Context) error {
		now := l.clock.Now()
		count, ok, err := l.store.IncrementScan(ctx, businessID, token, now)
		if err != nil {
			return fmt.Errorf("increment scan: %w", err)
		}
		if ok {
			res.Accepted = true
			res.ScanCount = count
			res.FirstScan = count == 1
			return nil
		}
		current, err := l.store.GetToken(ctx, businessID, token)
		if err != nil {
			return err
		}
		res.ScanCount = current.ScanCount
		res.Reason = reasonFor(current, now)
		if res.Reason == ReasonExpired && current.Status == model.TokenActive {
			if err := l.store.SetTokenStatus(ctx, businessID, token, model.TokenExpired); err != nil {
				return fmt.Errorf("expire token: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return ScanResult{BusinessID: businessID, Token: token, ReservationID: tok.ReservationID}, err
	}
	if !res.Accepted {
		l.log.Info("scan rejected",
			zap.Uint64("business_id", businessID),
			zap.Uint64("reservation_id", res.ReservationID),
			zap.String("reason", string(res.Reason)))
	}
	return res, nil
}

// ScanCount returns the accepted scans for a reservation; zero when it has
// no token.
func (l *Ledger) ScanCount(ctx context.Context, businessID, reservationID uint64) (int, error) {
	tok, err := l.store.GetTokenByReservation(ctx, businessID, reservationID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return tok.ScanCount, nil
}

// Cancel stops a reservation's token from accepting scans.  No-op when the
// reservation has no token.
func (l *Ledger) Cancel(ctx context.Context, businessID, reservationID uint64) error {
	return l.setStatus(ctx, businessID, reservationID, model.TokenCancelled)
}

// MarkUsed closes an ACTIVE token after the visit ended.
func (l *Ledger) MarkUsed(ctx context.Context, businessID, reservationID uint64) error {
	return l.setStatus(ctx, businessID, reservationID, model.TokenUsed)
}

// Expire closes an ACTIVE token whose reservation window ended unused.
func (l *Ledger) Expire(ctx context.Context, businessID, reservationID uint64) error {
	return l.setStatus(ctx, businessID, reservationID, model.TokenExpired)
}

func (l *Ledger) setStatus(ctx context.Context, businessID, reservationID uint64, status model.TokenStatus) error {
	tok, err := l.store.GetTokenByReservation(ctx, businessID, reservationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if tok.Status == status {
		return nil
	}
	// Only cancellation may override a token that is already closed.
	if tok.Status != model.TokenActive && status != model.TokenCancelled {
		return nil
	}
	return l.store.SetTokenStatus(ctx, businessID, tok.Token, status)
}

func reasonFor(t *model.CheckInToken, now time.Time) RejectReason {
	switch t.Status {
	case model.TokenCancelled:
		return ReasonCancelled
	case model.TokenUsed:
		return ReasonUsed
	case model.TokenExpired:
		return ReasonExpired
	}
	if t.ExpiredAt(now) {
		return ReasonExpired
	}
	// Only reachable when the row was changed outside the lock between
	// the increment and this read.
	return ReasonNotFound
}
