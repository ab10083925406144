package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/venue-attendance/internal/lifecycle"
    "github.com/iliyamo/venue-attendance/internal/repair"
)

// AdminHandler exposes the batch jobs to managers.
type AdminHandler struct {
    Job       *repair.Job
    Lifecycle *lifecycle.Lifecycle
    Log       *zap.Logger
}

func NewAdminHandler(job *repair.Job, lc *lifecycle.Lifecycle, log *zap.Logger) *AdminHandler {
    if job == nil || lc == nil {
        panic("nil dependency passed to NewAdminHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &AdminHandler{Job: job, Lifecycle: lc, Log: log}
}

type repairRequest struct {
    From time.Time `json:"from"`
    To   time.Time `json:"to"`
}

// Repair handles POST /v1/admin/repair with {"from": RFC3339, "to": RFC3339}.
// Per-reservation failures are listed in the summary; the response is 200
// unless the whole run was rejected.
func (h *AdminHandler) Repair(c echo.Context) error {
    bid, err := tenant(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req repairRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json body"})
    }
    sum, err := h.Job.Run(c.Request().Context(), bid, repair.Window{From: req.From, To: req.To})
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, sum)
}

// SweepNoShows handles POST /v1/admin/no-show-sweep.
func (h *AdminHandler) SweepNoShows(c echo.Context) error {
    bid, err := tenant(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    sum, err := h.Lifecycle.SweepNoShows(c.Request().Context(), bid)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, sum)
}
