// Package businessday maps instants onto a tenant's business days.  A
// business day is a bucket that starts at a configured local reset time
// instead of local midnight, so a venue open past midnight reports the
// late hours on the evening they belong to.
//
// All computations happen in the tenant's configured timezone.  The host
// clock's zone is never consulted.
package businessday

import (
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/venue-attendance/internal/model"
)

// Default reset time applied when a tenant has none configured.
const (
	DefaultResetHour   = 4
	DefaultResetMinute = 0
)

// ErrInvalidConfig is returned for out-of-range reset values or an unknown
// timezone.
var ErrInvalidConfig = errors.New("invalid business day config")

// Result is the business day an instant belongs to.
type Result struct {
	Date    Date
	Weekday time.Weekday
	// Start is inclusive, End is exclusive.  End is the next day's reset
	// on the local wall clock, not Start+24h: a day that spans a DST
	// change lasts 23h or 25h so consecutive days tile.
	Start time.Time
	End   time.Time
}

// Label returns the canonical YYYY-MM-DD label of the business day.
func (r Result) Label() string { return r.Date.String() }

// Contains reports whether t falls in [Start, End).
func (r Result) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Location validates cfg and loads its timezone.
func Location(cfg model.BusinessDayConfig) (*time.Location, error) {
	if cfg.ResetHour < 0 || cfg.ResetHour > 23 {
		return nil, fmt.Errorf("%w: reset hour %d", ErrInvalidConfig, cfg.ResetHour)
	}
	if cfg.ResetMinute < 0 || cfg.ResetMinute > 59 {
		return nil, fmt.Errorf("%w: reset minute %d", ErrInvalidConfig, cfg.ResetMinute)
	}
	if cfg.Timezone == "" {
		return nil, fmt.Errorf("%w: empty timezone", ErrInvalidConfig)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, cfg.Timezone, err)
	}
	return loc, nil
}

// Resolve returns the business day containing ts.  A local time of day
// before the reset belongs to the previous calendar day; the reset instant
// itself belongs to the current one.
func Resolve(ts time.Time, cfg model.BusinessDayConfig) (Result, error) {
	loc, err := Location(cfg)
	if err != nil {
		return Result{}, err
	}
	local := ts.In(loc)
	d := DateOf(local)
	if local.Before(resetOn(d, cfg, loc)) {
		d = d.AddDays(-1)
	}
	r := resultFor(d, cfg, loc)
	switch {
	case ts.Before(r.Start):
		r = resultFor(d.AddDays(-1), cfg, loc)
	case !ts.Before(r.End):
		r = resultFor(d.AddDays(1), cfg, loc)
	}
	return r, nil
}

// Range returns the business day labelled d.
func Range(d Date, cfg model.BusinessDayConfig) (Result, error) {
	loc, err := Location(cfg)
	if err != nil {
		return Result{}, err
	}
	return resultFor(d, cfg, loc), nil
}

// resultFor builds the [start, end) range of d.  End is the next day's
// reset on the local wall clock: 24h later except across a DST change,
// where consecutive days still tile without gaps or overlaps.
func resultFor(d Date, cfg model.BusinessDayConfig, loc *time.Location) Result {
	start := resetOn(d, cfg, loc)
	end := resetOn(d.AddDays(1), cfg, loc)
	return Result{
		Date:    d,
		Weekday: d.Weekday(),
		Start:   start,
		End:     end,
	}
}

// resetOn returns the first instant of d's business day.  When the reset
// wall time does not exist on d because the clock jumps over it, the day
// starts at the jump, which is still on d.
func resetOn(d Date, cfg model.BusinessDayConfig, loc *time.Location) time.Time {
	t := time.Date(d.Year, d.Month, d.Day, cfg.ResetHour, cfg.ResetMinute, 0, 0, loc)
	want := time.Date(d.Year, d.Month, d.Day, cfg.ResetHour, cfg.ResetMinute, 0, 0, time.UTC)
	got := wallClock(t.In(loc))
	if got.Equal(want) {
		return t
	}
	start, end := t.ZoneBounds()
	if got.Before(want) {
		// t was normalized backwards, before the transition.
		return end
	}
	return start
}

// wallClock reads the local date and time of t as if it were UTC.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
