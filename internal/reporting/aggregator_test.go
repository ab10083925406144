package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-attendance/internal/businessday"
	"github.com/iliyamo/venue-attendance/internal/clock"
	"github.com/iliyamo/venue-attendance/internal/model"
	"github.com/iliyamo/venue-attendance/internal/repository"
	"github.com/iliyamo/venue-attendance/internal/repository/memory"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func date(t *testing.T, s string) businessday.Date {
	t.Helper()
	d, err := businessday.ParseDate(s)
	require.NoError(t, err)
	return d
}

type seeder struct {
	t     *testing.T
	store *memory.Store
}

func (s seeder) add(businessID uint64, at time.Time, status model.ReservationStatus, expected int, actual *int) model.Reservation {
	s.t.Helper()
	r, err := s.store.AddReservation(model.Reservation{
		BusinessID:         businessID,
		ExpectedGuestCount: expected,
		ReservedAt:         at,
		Status:             status,
	})
	require.NoError(s.t, err)
	if actual != nil {
		require.NoError(s.t, s.store.SaveAttendance(context.Background(), &model.AttendanceRecord{
			BusinessID:       businessID,
			ReservationID:    r.ID,
			ActualGuestCount: *actual,
			Source:           model.SourceScan,
			RecordedAt:       at,
		}))
	}
	return r
}

func intp(n int) *int { return &n }

func newAggregator(t *testing.T, cache Cache, now time.Time) (*Aggregator, seeder, *clock.Fixed) {
	t.Helper()
	store := memory.New()
	store.PutTenantSettings(model.TenantSettings{BusinessID: 1, Timezone: "America/Guayaquil"})
	clk := clock.NewFixed(now)
	agg := NewAggregator(store, businessday.NewConfigResolver(store, "UTC"), cache, clk, zap.NewNop())
	return agg, seeder{t: t, store: store}, clk
}

func TestRollup_BucketsAtLocalReset(t *testing.T) {
	gye := mustLoc(t, "America/Guayaquil")
	agg, s, _ := newAggregator(t, nil, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC))

	s.add(1, time.Date(2024, 11, 4, 3, 59, 0, 0, gye), model.StatusCompleted, 2, intp(2))
	s.add(1, time.Date(2024, 11, 4, 4, 0, 0, 0, gye), model.StatusCompleted, 3, intp(3))

	rows, err := agg.Rollup(context.Background(), 1, Period{From: date(t, "2024-11-03"), To: date(t, "2024-11-04")}, true)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2024-11-03", rows[0].Label)
	assert.Equal(t, "Sunday", rows[0].Weekday)
	assert.Equal(t, 1, rows[0].TotalReservations)
	assert.Equal(t, 2, rows[0].TotalActual)

	assert.Equal(t, "2024-11-04", rows[1].Label)
	assert.Equal(t, 1, rows[1].TotalReservations)
	assert.Equal(t, 3, rows[1].TotalActual)
	assert.True(t, rows[1].RangeStart.Equal(time.Date(2024, 11, 4, 9, 0, 0, 0, time.UTC)))
}

func TestRollup_MidnightResetOnDSTStart(t *testing.T) {
	scl := mustLoc(t, "America/Santiago")
	agg, s, _ := newAggregator(t, nil, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC))
	midnight := 0
	s.store.PutTenantSettings(model.TenantSettings{BusinessID: 3, Timezone: "America/Santiago", ResetHour: &midnight})

	s.add(3, time.Date(2024, 9, 7, 23, 30, 0, 0, scl), model.StatusCompleted, 2, intp(2))

	rows, err := agg.Rollup(context.Background(), 3, Period{From: date(t, "2024-09-07"), To: date(t, "2024-09-07")}, true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].TotalReservations)
	assert.Equal(t, 2, rows[0].TotalActual)

	rows, err = agg.Rollup(context.Background(), 3, Period{From: date(t, "2024-09-08"), To: date(t, "2024-09-08")}, true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0, rows[0].TotalReservations)
}

func TestRollup_TotalsAndClassifications(t *testing.T) {
	gye := mustLoc(t, "America/Guayaquil")
	agg, s, _ := newAggregator(t, nil, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC))
	evening := time.Date(2024, 11, 10, 20, 0, 0, 0, gye)

	s.add(1, evening, model.StatusCompleted, 4, intp(4)) // completed
	s.add(1, evening, model.StatusCompleted, 2, intp(5)) // overflow
	s.add(1, evening, model.StatusCheckedIn, 4, intp(1)) // partial
	s.add(1, evening, model.StatusNoShow, 3, nil)        // no_show
	s.add(1, evening, model.StatusCancelled, 2, intp(2)) // cancelled, scans ignored
	s.add(2, evening, model.StatusCompleted, 9, intp(9)) // other tenant

	rows, err := agg.Rollup(context.Background(), 1, Period{From: date(t, "2024-11-10"), To: date(t, "2024-11-10")}, false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, 5, r.TotalReservations)
	assert.Equal(t, 4+2+4+3, r.TotalExpected)
	assert.Equal(t, 4+5+1, r.TotalActual)
	assert.Equal(t, model.ClassificationCounts{Completed: 1, Overflow: 1, Partial: 1, NoShow: 1, Cancelled: 1}, r.ByClassification)
}

func TestRollup_DenseAndSparse(t *testing.T) {
	agg, s, _ := newAggregator(t, nil, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC))
	gye := mustLoc(t, "America/Guayaquil")
	s.add(1, time.Date(2024, 11, 12, 19, 0, 0, 0, gye), model.StatusCompleted, 2, intp(2))
	p := Period{From: date(t, "2024-11-10"), To: date(t, "2024-11-16")}

	dense, err := agg.Rollup(context.Background(), 1, p, true)
	require.NoError(t, err)
	require.Len(t, dense, 7)
	for i, row := range dense {
		assert.Equal(t, p.From.AddDays(i).String(), row.Label)
		if i > 0 {
			assert.True(t, row.RangeStart.Equal(dense[i-1].RangeEnd), "days must tile")
		}
	}
	assert.Zero(t, dense[0].TotalReservations)

	sparse, err := agg.Rollup(context.Background(), 1, p, false)
	require.NoError(t, err)
	require.Len(t, sparse, 1)
	assert.Equal(t, "2024-11-12", sparse[0].Label)
}

func TestRollup_InvalidInput(t *testing.T) {
	agg, _, _ := newAggregator(t, nil, time.Now())
	ctx := context.Background()

	_, err := agg.Rollup(ctx, 1, Period{From: date(t, "2024-11-10"), To: date(t, "2024-11-09")}, true)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = agg.Rollup(ctx, 1, Period{From: date(t, "2023-01-01"), To: date(t, "2024-12-31")}, true)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = agg.Rollup(ctx, 0, Period{From: date(t, "2024-11-10"), To: date(t, "2024-11-10")}, true)
	assert.ErrorIs(t, err, repository.ErrMissingTenant)
}

func TestRollup_CachesClosedPeriodsOnly(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := NewRedisCache(rdb, "rollup", time.Minute)

	gye := mustLoc(t, "America/Guayaquil")
	now := time.Date(2024, 11, 20, 12, 0, 0, 0, time.UTC)
	agg, s, _ := newAggregator(t, cache, now)
	ctx := context.Background()

	closed := Period{From: date(t, "2024-11-10"), To: date(t, "2024-11-10")}
	s.add(1, time.Date(2024, 11, 10, 20, 0, 0, 0, gye), model.StatusCompleted, 2, intp(2))
	first, err := agg.Rollup(ctx, 1, closed, true)
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 1)

	// A late write is not visible until the entry expires.
	s.add(1, time.Date(2024, 11, 10, 21, 0, 0, 0, gye), model.StatusCompleted, 2, intp(2))
	cached, err := agg.Rollup(ctx, 1, closed, true)
	require.NoError(t, err)
	assert.Equal(t, first[0].TotalReservations, cached[0].TotalReservations)

	mr.FastForward(2 * time.Minute)
	fresh, err := agg.Rollup(ctx, 1, closed, true)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh[0].TotalReservations)

	open := Period{From: date(t, "2024-11-20"), To: date(t, "2024-11-20")}
	_, err = agg.Rollup(ctx, 1, open, true)
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 1)
}

func TestRedisCache_Miss(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	_, ok, err := NewRedisCache(rdb, "", 0).Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}
