package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/venue-attendance/internal/attendance"
    "github.com/iliyamo/venue-attendance/internal/lifecycle"
    "github.com/iliyamo/venue-attendance/internal/model"
    "github.com/iliyamo/venue-attendance/internal/repository"
)

// AttendanceHandler exposes the reconciled attendance of a reservation.
type AttendanceHandler struct {
    Lifecycle  *lifecycle.Lifecycle
    Reconciler *attendance.Reconciler
    Log        *zap.Logger
}

func NewAttendanceHandler(lc *lifecycle.Lifecycle, rc *attendance.Reconciler, log *zap.Logger) *AttendanceHandler {
    if lc == nil || rc == nil {
        panic("nil service passed to NewAttendanceHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &AttendanceHandler{Lifecycle: lc, Reconciler: rc, Log: log}
}

type attendanceView struct {
    Reservation    *model.Reservation      `json:"reservation"`
    Record         *model.AttendanceRecord `json:"record"`
    Classification model.Classification    `json:"classification"`
}

// Get handles GET /v1/reservations/:id/attendance.  The record is null
// when none exists yet; the classification is always present.
func (h *AttendanceHandler) Get(c echo.Context) error {
    bid, id, ok, err := scoped(c)
    if !ok {
        return err
    }
    ctx := c.Request().Context()
    r, err := h.Lifecycle.Get(ctx, bid, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    rec, err := h.Reconciler.Get(ctx, bid, id)
    if err != nil && !errors.Is(err, repository.ErrNotFound) {
        return respondError(c, h.Log, err)
    }
    cls, err := attendance.Classify(r, rec)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, attendanceView{Reservation: r, Record: rec, Classification: cls})
}

type manualAttendanceRequest struct {
    ActualGuestCount *int `json:"actual_guest_count"`
}

// SetManual handles PUT /v1/reservations/:id/attendance.
func (h *AttendanceHandler) SetManual(c echo.Context) error {
    bid, id, ok, err := scoped(c)
    if !ok {
        return err
    }
    var req manualAttendanceRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json body"})
    }
    if req.ActualGuestCount == nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "actual_guest_count is required"})
    }
    rec, err := h.Reconciler.SetManualAttendance(c.Request().Context(), bid, id, *req.ActualGuestCount)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, rec)
}

// ClearOverride handles DELETE /v1/reservations/:id/attendance/override.
func (h *AttendanceHandler) ClearOverride(c echo.Context) error {
    bid, id, ok, err := scoped(c)
    if !ok {
        return err
    }
    res, err := h.Reconciler.ClearManualOverride(c.Request().Context(), bid, id)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, res)
}
