// Package reporting builds per-business-day rollups of reservations and
// their reconciled attendance.  It only reads and never takes a
// reservation lock, so dashboards cannot slow down the scan path.
package reporting

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-attendance/internal/attendance"
	"github.com/iliyamo/venue-attendance/internal/businessday"
	"github.com/iliyamo/venue-attendance/internal/clock"
	"github.com/iliyamo/venue-attendance/internal/model"
	"github.com/iliyamo/venue-attendance/internal/repository"
)

// MaxPeriodDays bounds a single rollup request.
const MaxPeriodDays = 366

// ErrInvalidPeriod is returned for an empty, inverted or oversized period.
var ErrInvalidPeriod = errors.New("invalid reporting period")

// Store is the read side the aggregator needs.
type Store interface {
	ListReservations(ctx context.Context, businessID uint64, f repository.ReservationFilter) ([]model.Reservation, error)
	ListAttendance(ctx context.Context, businessID uint64, reservationIDs []uint64) (map[uint64]model.AttendanceRecord, error)
}

// Period is an inclusive range of business days.
type Period struct {
	From businessday.Date
	To   businessday.Date
}

// Days returns the number of business days in p.
func (p Period) Days() int { return p.From.DaysUntil(p.To) + 1 }

func (p Period) validate() error {
	if p.To.Before(p.From) {
		return fmt.Errorf("%w: %s is before %s", ErrInvalidPeriod, p.To, p.From)
	}
	if p.Days() > MaxPeriodDays {
		return fmt.Errorf("%w: %d days exceeds %d", ErrInvalidPeriod, p.Days(), MaxPeriodDays)
	}
	return nil
}

// Aggregator computes DailyRollups.
type Aggregator struct {
	store    Store
	resolver *businessday.ConfigResolver
	cache    Cache
	clock    clock.Clock
	log      *zap.Logger
}

// NewAggregator builds an Aggregator.  A nil cache disables caching.
func NewAggregator(store Store, resolver *businessday.ConfigResolver, cache Cache, clk clock.Clock, log *zap.Logger) *Aggregator {
	if store == nil || resolver == nil {
		panic("nil dependency passed to reporting.NewAggregator")
	}
	if cache == nil {
		cache = noCache{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{store: store, resolver: resolver, cache: cache, clock: clk, log: log}
}

// Rollup returns one entry per business day of p in ascending order.  In
// dense mode every day of the period is present; otherwise only days with
// at least one reservation.  Cancelled reservations are counted in
// TotalReservations and their bucket but add nothing to the guest totals.
func (a *Aggregator) Rollup(ctx context.Context, businessID uint64, p Period, dense bool) ([]model.DailyRollup, error) {
	if businessID == 0 {
		return nil, repository.ErrMissingTenant
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	cfg, err := a.resolver.Resolve(ctx, businessID)
	if err != nil {
		return nil, err
	}
	first, err := businessday.Range(p.From, cfg)
	if err != nil {
		return nil, err
	}
	last, err := businessday.Range(p.To, cfg)
	if err != nil {
		return nil, err
	}

	// Only closed periods are cached; today's numbers still move.
	cacheable := !last.End.After(a.clock.Now())
	key := cacheKey(businessID, cfg, p, dense)
	if cacheable {
		if cached, ok, err := a.cache.Get(ctx, key); err != nil {
			a.log.Warn("rollup cache read failed", zap.Uint64("business_id", businessID), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	rows, err := a.compute(ctx, businessID, cfg, p, first, last, dense)
	if err != nil {
		return nil, err
	}
	if cacheable {
		if err := a.cache.Set(ctx, key, rows); err != nil {
			a.log.Warn("rollup cache write failed", zap.Uint64("business_id", businessID), zap.Error(err))
		}
	}
	return rows, nil
}

func (a *Aggregator) compute(ctx context.Context, businessID uint64, cfg model.BusinessDayConfig, p Period, first, last businessday.Result, dense bool) ([]model.DailyRollup, error) {
	reservations, err := a.store.ListReservations(ctx, businessID, repository.ReservationFilter{
		From: first.Start,
		To:   last.End,
	})
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	ids := make([]uint64, 0, len(reservations))
	for i := range reservations {
		ids = append(ids, reservations[i].ID)
	}
	records, err := a.store.ListAttendance(ctx, businessID, ids)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}

	days := make([]model.DailyRollup, p.Days())
	for i := range days {
		day, err := businessday.Range(p.From.AddDays(i), cfg)
		if err != nil {
			return nil, err
		}
		days[i] = model.DailyRollup{
			Label:      day.Label(),
			Weekday:    day.Weekday.String(),
			RangeStart: day.Start,
			RangeEnd:   day.End,
		}
	}

	for i := range reservations {
		r := &reservations[i]
		if r.BusinessID != businessID {
			a.log.Error("reservation of another business in rollup",
				zap.Uint64("business_id", businessID),
				zap.Uint64("reservation_id", r.ID))
			return nil, repository.ErrTenantMismatch
		}
		bd, err := businessday.Resolve(r.ReservedAt, cfg)
		if err != nil {
			return nil, err
		}
		idx := p.From.DaysUntil(bd.Date)
		if idx < 0 || idx >= len(days) {
			continue
		}
		var att *model.AttendanceRecord
		if rec, ok := records[r.ID]; ok {
			att = &rec
		}
		cls, err := attendance.Classify(r, att)
		if err != nil {
			return nil, fmt.Errorf("classify reservation %d: %w", r.ID, err)
		}
		row := &days[idx]
		row.TotalReservations++
		row.ByClassification.Add(cls)
		if cls == model.ClassCancelled {
			continue
		}
		row.TotalExpected += r.ExpectedGuestCount
		if att != nil {
			row.TotalActual += att.ActualGuestCount
		}
	}

	if dense {
		return days, nil
	}
	sparse := make([]model.DailyRollup, 0, len(days))
	for _, d := range days {
		if d.TotalReservations > 0 {
			sparse = append(sparse, d)
		}
	}
	return sparse, nil
}
