package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-attendance/internal/clock"
	"github.com/iliyamo/venue-attendance/internal/ledger"
	"github.com/iliyamo/venue-attendance/internal/lock"
	"github.com/iliyamo/venue-attendance/internal/model"
	"github.com/iliyamo/venue-attendance/internal/queue"
	"github.com/iliyamo/venue-attendance/internal/repository"
	"github.com/iliyamo/venue-attendance/internal/repository/memory"
)

var t0 = time.Date(2024, 2, 14, 19, 30, 0, 0, time.UTC)

func newLifecycle(t *testing.T) (*Lifecycle, *ledger.Ledger, *memory.Store, *clock.Fixed, *queue.Recorder) {
	t.Helper()
	store := memory.New()
	clk := clock.NewFixed(t0)
	guard := lock.NewGuard(lock.NewLocal())
	led := ledger.New(store, guard, clk, zap.NewNop())
	rec := &queue.Recorder{}
	lc := New(store, led, guard, clk, rec, Config{TokenTTL: 4 * time.Hour, NoShowGrace: 2 * time.Hour}, zap.NewNop())
	return lc, led, store, clk, rec
}

func add(t *testing.T, store *memory.Store, businessID uint64, status model.ReservationStatus, at time.Time) model.Reservation {
	t.Helper()
	r, err := store.AddReservation(model.Reservation{BusinessID: businessID, ExpectedGuestCount: 2, ReservedAt: at, Status: status})
	require.NoError(t, err)
	return r
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to model.ReservationStatus
		ok       bool
	}{
		{model.StatusPending, model.StatusConfirmed, true},
		{model.StatusPending, model.StatusCheckedIn, false},
		{model.StatusConfirmed, model.StatusCheckedIn, true},
		{model.StatusConfirmed, model.StatusNoShow, true},
		{model.StatusCheckedIn, model.StatusCompleted, true},
		{model.StatusCheckedIn, model.StatusNoShow, false},
		{model.StatusCompleted, model.StatusCancelled, false},
		{model.StatusNoShow, model.StatusCheckedIn, false},
		{model.StatusCancelled, model.StatusConfirmed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestConfirm_IssuesToken(t *testing.T) {
	lc, _, store, _, _ := newLifecycle(t)
	r := add(t, store, 1, model.StatusPending, t0)

	res, tok, err := lc.Confirm(context.Background(), 1, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, res.Status)
	require.NotNil(t, tok.ExpiresAt)
	assert.Equal(t, t0.Add(4*time.Hour), *tok.ExpiresAt)

	again, err := lc.Token(context.Background(), 1, r.ID)
	require.NoError(t, err)
	assert.Equal(t, tok.Token, again.Token)
}

func TestConfirm_RejectsBadReservation(t *testing.T) {
	lc, _, store, _, _ := newLifecycle(t)
	r, err := store.AddReservation(model.Reservation{BusinessID: 1, ExpectedGuestCount: 0, ReservedAt: t0, Status: model.StatusPending})
	require.NoError(t, err)

	_, _, err = lc.Confirm(context.Background(), 1, r.ID)
	assert.ErrorIs(t, err, ErrInvalidReservation)
}

func TestIllegalTransitionLeavesReservation(t *testing.T) {
	lc, _, store, _, _ := newLifecycle(t)
	ctx := context.Background()
	r := add(t, store, 1, model.StatusCompleted, t0)

	_, err := lc.Cancel(ctx, 1, r.ID)
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, model.StatusCompleted, ite.From)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := lc.Get(ctx, 1, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestToken_IssuesLazily(t *testing.T) {
	lc, led, store, _, _ := newLifecycle(t)
	ctx := context.Background()
	r := add(t, store, 1, model.StatusConfirmed, t0)

	tok, err := lc.Token(ctx, 1, r.ID)
	require.NoError(t, err)
	got, err := led.TokenFor(ctx, 1, r.ID)
	require.NoError(t, err)
	assert.Equal(t, tok.Token, got.Token)

	pending := add(t, store, 1, model.StatusPending, t0)
	_, err = lc.Token(ctx, 1, pending.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCompleteAndCancelCloseToken(t *testing.T) {
	lc, led, store, _, rec := newLifecycle(t)
	ctx := context.Background()

	a := add(t, store, 1, model.StatusPending, t0)
	_, _, err := lc.Confirm(ctx, 1, a.ID)
	require.NoError(t, err)
	_, err = lc.CheckIn(ctx, 1, a.ID, ByManual)
	require.NoError(t, err)
	_, err = lc.Complete(ctx, 1, a.ID)
	require.NoError(t, err)
	tok, err := led.TokenFor(ctx, 1, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TokenUsed, tok.Status)

	b := add(t, store, 1, model.StatusPending, t0)
	_, _, err = lc.Confirm(ctx, 1, b.ID)
	require.NoError(t, err)
	_, err = lc.Cancel(ctx, 1, b.ID)
	require.NoError(t, err)
	tok, err = led.TokenFor(ctx, 1, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TokenCancelled, tok.Status)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "manual", events[0].Method)
}

func TestSweepNoShows(t *testing.T) {
	lc, led, store, clk, rec := newLifecycle(t)
	ctx := context.Background()

	stale := add(t, store, 1, model.StatusPending, t0)
	_, _, err := lc.Confirm(ctx, 1, stale.ID)
	require.NoError(t, err)

	scanned := add(t, store, 1, model.StatusPending, t0)
	_, tok, err := lc.Confirm(ctx, 1, scanned.ID)
	require.NoError(t, err)
	_, err = led.RecordScan(ctx, 1, tok.Token)
	require.NoError(t, err)

	fresh := add(t, store, 1, model.StatusConfirmed, t0.Add(3*time.Hour))
	otherTenant := add(t, store, 2, model.StatusConfirmed, t0)

	clk.Advance(150 * time.Minute)
	sum, err := lc.SweepNoShows(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Scanned)
	assert.Equal(t, 1, sum.Marked)
	assert.Equal(t, 1, sum.Skipped)
	assert.Empty(t, sum.Errors)

	got, err := lc.Get(ctx, 1, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoShow, got.Status)
	staleTok, err := led.TokenFor(ctx, 1, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TokenExpired, staleTok.Status)

	for _, id := range []uint64{scanned.ID, fresh.ID} {
		got, err := lc.Get(ctx, 1, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, got.Status)
	}
	got, err = lc.Get(ctx, 2, otherTenant.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, queue.EventNoShow, events[0].Type)

	again, err := lc.SweepNoShows(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, again.Marked)
}

func TestSweepNoShows_ContextCancelled(t *testing.T) {
	lc, _, store, clk, _ := newLifecycle(t)
	add(t, store, 1, model.StatusConfirmed, t0)
	clk.Advance(3 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := lc.SweepNoShows(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
