package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/venue-attendance/internal/checkin"
)

// ScanHandler serves the door scanners.
type ScanHandler struct {
    Service *checkin.Service
    Log     *zap.Logger
}

// NewScanHandler panics when svc is nil.
func NewScanHandler(svc *checkin.Service, log *zap.Logger) *ScanHandler {
    if svc == nil {
        panic("nil service passed to NewScanHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &ScanHandler{Service: svc, Log: log}
}

type scanRequest struct {
    Token string `json:"token"`
}

// Scan handles POST /v1/scan.  The body is always the scan outcome; a
// rejected scan is answered with a status specific to its reason (404
// unknown token, 410 expired, 409 cancelled or already used) so staff can
// decide whether to admit the guest by hand.
func (h *ScanHandler) Scan(c echo.Context) error {
    bid, err := tenant(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req scanRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json body"})
    }
    out, err := h.Service.Scan(c.Request().Context(), bid, req.Token)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    if !out.Accepted {
        h.Log.Info("scan rejected",
            zap.Uint64("business_id", bid),
            zap.Uint64("reservation_id", out.ReservationID),
            zap.String("reason", string(out.Reason)))
        return c.JSON(rejectStatus(out.Reason), out)
    }
    return c.JSON(http.StatusOK, out)
}
