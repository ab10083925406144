package businessday

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-attendance/internal/model"
	"github.com/iliyamo/venue-attendance/internal/repository"
)

func cfg(tz string, h, m int) model.BusinessDayConfig {
	return model.BusinessDayConfig{ResetHour: h, ResetMinute: m, Timezone: tz}
}

func TestResolve_ResetBoundary(t *testing.T) {
	gye, err := time.LoadLocation("America/Guayaquil")
	require.NoError(t, err)
	c := cfg("America/Guayaquil", 4, 0)

	before, err := Resolve(time.Date(2024, 11, 4, 3, 59, 59, 0, gye), c)
	require.NoError(t, err)
	assert.Equal(t, "2024-11-03", before.Label())
	assert.Equal(t, time.Sunday, before.Weekday)

	at, err := Resolve(time.Date(2024, 11, 4, 4, 0, 0, 0, gye), c)
	require.NoError(t, err)
	assert.Equal(t, "2024-11-04", at.Label())
	assert.Equal(t, time.Monday, at.Weekday)
	assert.True(t, at.Start.Equal(time.Date(2024, 11, 4, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, 24*time.Hour, at.End.Sub(at.Start))
}

// The same UTC instant can land on different business days depending on
// the tenant zone; the host zone never matters.
func TestResolve_UsesTenantZoneNotUTC(t *testing.T) {
	ts := time.Date(2024, 11, 4, 6, 30, 0, 0, time.UTC)

	utc, err := Resolve(ts, cfg("UTC", 4, 0))
	require.NoError(t, err)
	assert.Equal(t, "2024-11-04", utc.Label())

	gye, err := Resolve(ts, cfg("America/Guayaquil", 4, 0))
	require.NoError(t, err)
	assert.Equal(t, "2024-11-03", gye.Label())

	tokyo, err := Resolve(ts, cfg("Asia/Tokyo", 4, 0))
	require.NoError(t, err)
	assert.Equal(t, "2024-11-04", tokyo.Label())
}

func TestResolve_Properties(t *testing.T) {
	zones := []string{"UTC", "America/Guayaquil", "America/New_York", "America/Santiago", "America/Havana", "Europe/Berlin", "Australia/Lord_Howe", "Asia/Kathmandu"}
	resets := [][2]int{{0, 0}, {4, 0}, {2, 30}, {23, 59}}
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, tz := range zones {
		for _, rs := range resets {
			c := cfg(tz, rs[0], rs[1])
			loc, err := Location(c)
			require.NoError(t, err)
			for ts := start; ts.Before(start.AddDate(0, 9, 0)); ts = ts.Add(173 * time.Minute) {
				r, err := Resolve(ts, c)
				require.NoError(t, err)
				require.True(t, r.Contains(ts), "%s %v: %v not in [%v, %v)", tz, rs, ts, r.Start, r.End)

				// A reset inside a DST gap moves forward, never to another date.
				assert.Equal(t, r.Date, DateOf(r.Start.In(loc)), tz)

				next, err := Resolve(r.End, c)
				require.NoError(t, err)
				require.Equal(t, r.Date.AddDays(1), next.Date, "%s: days must be consecutive", tz)
				require.True(t, next.Start.Equal(r.End), "%s: days must tile", tz)
			}
		}
	}
}

// In some zones the clock jumps at local midnight, so a 00:00 reset does
// not exist on the day DST starts.  That day begins at the jump.
func TestResolve_ResetInsideMidnightGap(t *testing.T) {
	cases := []struct {
		tz       string
		late     time.Time // 23:30 local, the evening before the jump
		nextDay  Date
		boundary time.Time
	}{
		{"America/Santiago", time.Date(2024, 9, 8, 3, 30, 0, 0, time.UTC), Date{2024, time.September, 8}, time.Date(2024, 9, 8, 4, 0, 0, 0, time.UTC)},
		{"America/Havana", time.Date(2024, 3, 10, 4, 30, 0, 0, time.UTC), Date{2024, time.March, 10}, time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.tz, func(t *testing.T) {
			c := cfg(tc.tz, 0, 0)
			r, err := Resolve(tc.late, c)
			require.NoError(t, err)
			assert.Equal(t, tc.nextDay.AddDays(-1), r.Date)
			assert.True(t, r.Contains(tc.late), "%v not in [%v, %v)", tc.late, r.Start, r.End)
			assert.True(t, r.End.Equal(tc.boundary), "end %v", r.End)

			next, err := Range(tc.nextDay, c)
			require.NoError(t, err)
			assert.True(t, next.Start.Equal(r.End), "days must tile")

			at, err := Resolve(tc.boundary, c)
			require.NoError(t, err)
			assert.Equal(t, tc.nextDay, at.Date)
		})
	}
}

func TestRange_DSTDayLength(t *testing.T) {
	c := cfg("America/New_York", 4, 0)

	spring, err := Range(Date{2024, time.March, 9}, c)
	require.NoError(t, err)
	assert.Equal(t, 23*time.Hour, spring.End.Sub(spring.Start))

	fall, err := Range(Date{2024, time.November, 2}, c)
	require.NoError(t, err)
	assert.Equal(t, 25*time.Hour, fall.End.Sub(fall.Start))

	// 02:30 does not exist on 2024-03-10; the day starts at the 03:00 jump.
	gap, err := Range(Date{2024, time.March, 10}, cfg("America/New_York", 2, 30))
	require.NoError(t, err)
	assert.True(t, gap.Start.Equal(time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)), "start %v", gap.Start)
}

func TestLocation_Invalid(t *testing.T) {
	for _, c := range []model.BusinessDayConfig{
		cfg("UTC", 24, 0),
		cfg("UTC", -1, 0),
		cfg("UTC", 4, 60),
		cfg("", 4, 0),
		cfg("Mars/Olympus", 4, 0),
	} {
		_, err := Location(c)
		assert.ErrorIs(t, err, ErrInvalidConfig, "%+v", c)
	}
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2024-02-28")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.AddDays(1).String())
	assert.Equal(t, "2024-03-01", d.AddDays(2).String())
	assert.Equal(t, 2, d.DaysUntil(d.AddDays(2)))
	assert.Equal(t, -1, d.DaysUntil(d.AddDays(-1)))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))

	_, err = ParseDate("2024-13-01")
	assert.Error(t, err)
}

type settingsStub map[uint64]model.TenantSettings

func (s settingsStub) TenantSettings(_ context.Context, id uint64) (*model.TenantSettings, error) {
	ts, ok := s[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ts, nil
}

func TestConfigResolver(t *testing.T) {
	h := 6
	r := NewConfigResolver(settingsStub{
		1: {BusinessID: 1, Timezone: "Europe/Berlin", ResetHour: &h},
		2: {BusinessID: 2, Timezone: "Nowhere/Land"},
	}, "America/Guayaquil")
	ctx := context.Background()

	got, err := r.Resolve(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.BusinessDayConfig{ResetHour: 6, ResetMinute: 0, Timezone: "Europe/Berlin"}, got)

	got, err = r.Resolve(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, model.BusinessDayConfig{ResetHour: DefaultResetHour, ResetMinute: DefaultResetMinute, Timezone: "America/Guayaquil"}, got)

	_, err = r.Resolve(ctx, 2)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = r.Resolve(ctx, 0)
	assert.ErrorIs(t, err, repository.ErrMissingTenant)
}
