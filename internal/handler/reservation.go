package handler

// Reservation endpoints used by the front desk: the lifecycle transitions
// and on-demand reconciliation.  Every call is scoped to the business of
// the caller's token.

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/venue-attendance/internal/attendance"
    "github.com/iliyamo/venue-attendance/internal/checkin"
    "github.com/iliyamo/venue-attendance/internal/lifecycle"
)

// ReservationHandler groups the services behind /v1/reservations.
type ReservationHandler struct {
    Lifecycle  *lifecycle.Lifecycle
    Reconciler *attendance.Reconciler
    CheckIn    *checkin.Service
    Log        *zap.Logger
}

// NewReservationHandler panics if any service is nil.
func NewReservationHandler(lc *lifecycle.Lifecycle, rc *attendance.Reconciler, ci *checkin.Service, log *zap.Logger) *ReservationHandler {
    if lc == nil || rc == nil || ci == nil {
        panic("nil service passed to NewReservationHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &ReservationHandler{Lifecycle: lc, Reconciler: rc, CheckIn: ci, Log: log}
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
    bid, id, ok, err := scoped(c)
    if !ok {
        return err
    }
    r, err := h.Lifecycle.Get(c.Request().Context(), bid, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, r)
}

// Token handles GET /v1/reservations/:id/token.  It returns the QR token,
// issuing one for a confirmed reservation that has none.
func (h *ReservationHandler) Token(c echo.Context) error {
    bid, id, ok, err := scoped(c)
    if !ok {
        return err
    }
    tok, err := h.Lifecycle.Token(c.Request().Context(), bid, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, tok)
}

// Confirm handles POST /v1/reservations/:id/confirm.
func (h *ReservationHandler) Confirm(c echo.Context) error {
    bid, id, ok, err := scoped(c)
    if !ok {
        return err
    }
    r, tok, err := h.Lifecycle.Confirm(c.Request().Context(), bid, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservation": r, "token": tok})
}

// CheckInManual handles POST /v1/reservations/:id/check-in for guests
// admitted without a scan.
func (h *ReservationHandler) CheckInManual(c echo.Context) error {
    bid, id, ok, err := scoped(c)
    if !ok {
        return err
    }
    r, rec, err := h.CheckIn.ManualCheckIn(c.Request().Context(), bid, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservation": r, "attendance": rec})
}

// Complete handles POST /v1/reservations/:id/complete.  The reservation is
// reconciled once more after closing so the stored count is final.
func (h *ReservationHandler) Complete(c echo.Context) error {
    bid, id, ok, err := scoped(c)
    if !ok {
        return err
    }
    ctx := c.Request().Context()
    r, err := h.Lifecycle.Complete(ctx, bid, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    res, err := h.Reconciler.Reconcile(ctx, bid, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservation": r, "attendance": res.Record, "outcome": res.Outcome})
}

// Cancel handles POST /v1/reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    bid, id, ok, err := scoped(c)
    if !ok {
        return err
    }
    r, err := h.Lifecycle.Cancel(c.Request().Context(), bid, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, r)
}

// Reconcile handles POST /v1/reservations/:id/reconcile.  A skipped
// result (manual override present) is a normal 200 response.
func (h *ReservationHandler) Reconcile(c echo.Context) error {
    bid, id, ok, err := scoped(c)
    if !ok {
        return err
    }
    res, err := h.Reconciler.Reconcile(c.Request().Context(), bid, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, res)
}
