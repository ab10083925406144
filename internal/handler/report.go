package handler

import (
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/venue-attendance/internal/businessday"
    "github.com/iliyamo/venue-attendance/internal/reporting"
)

// ReportHandler serves dashboard rollups.
type ReportHandler struct {
    Aggregator *reporting.Aggregator
    Log        *zap.Logger
}

func NewReportHandler(a *reporting.Aggregator, log *zap.Logger) *ReportHandler {
    if a == nil {
        panic("nil aggregator passed to NewReportHandler")
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &ReportHandler{Aggregator: a, Log: log}
}

// Daily handles GET /v1/reports/daily?from=YYYY-MM-DD&to=YYYY-MM-DD&dense=true.
// Both bounds are inclusive business-day labels.  With dense=true every
// day of the period is returned, including empty ones.
func (h *ReportHandler) Daily(c echo.Context) error {
    bid, err := tenant(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    from, err := businessday.ParseDate(c.QueryParam("from"))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be YYYY-MM-DD"})
    }
    to := from
    if s := c.QueryParam("to"); s != "" {
        if to, err = businessday.ParseDate(s); err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be YYYY-MM-DD"})
        }
    }
    dense := false
    if s := c.QueryParam("dense"); s != "" {
        if dense, err = strconv.ParseBool(s); err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "dense must be a boolean"})
        }
    }
    rows, err := h.Aggregator.Rollup(c.Request().Context(), bid, reporting.Period{From: from, To: to}, dense)
    if err != nil {
        return respondError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": rows, "count": len(rows)})
}
