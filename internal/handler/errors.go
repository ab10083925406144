package handler // handler defines the HTTP adapter over the attendance services

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/venue-attendance/internal/attendance"
    "github.com/iliyamo/venue-attendance/internal/businessday"
    "github.com/iliyamo/venue-attendance/internal/checkin"
    "github.com/iliyamo/venue-attendance/internal/ledger"
    "github.com/iliyamo/venue-attendance/internal/lifecycle"
    "github.com/iliyamo/venue-attendance/internal/lock"
    "github.com/iliyamo/venue-attendance/internal/repair"
    "github.com/iliyamo/venue-attendance/internal/reporting"
    "github.com/iliyamo/venue-attendance/internal/repository"
)

// statusFor maps a service error to an HTTP status and a client message.
func statusFor(err error) (int, string) {
    var rej *ledger.RejectedError
    switch {
    case errors.Is(err, repository.ErrNotFound):
        return http.StatusNotFound, "not found"
    case errors.Is(err, repository.ErrTenantMismatch):
        return http.StatusForbidden, "forbidden"
    case errors.Is(err, repository.ErrMissingTenant):
        return http.StatusUnauthorized, "unauthorized"
    case errors.Is(err, lifecycle.ErrInvalidTransition),
        errors.Is(err, repository.ErrConflict),
        errors.Is(err, attendance.ErrNotEligible):
        return http.StatusConflict, err.Error()
    case errors.As(err, &rej):
        return rejectStatus(rej.Reason), err.Error()
    case errors.Is(err, lifecycle.ErrInvalidReservation),
        errors.Is(err, attendance.ErrInvalidCount),
        errors.Is(err, reporting.ErrInvalidPeriod),
        errors.Is(err, repair.ErrInvalidWindow),
        errors.Is(err, checkin.ErrEmptyToken):
        return http.StatusBadRequest, err.Error()
    case errors.Is(err, lock.ErrTimeout):
        return http.StatusServiceUnavailable, "reservation busy, retry"
    case errors.Is(err, businessday.ErrInvalidConfig):
        return http.StatusInternalServerError, "business day configuration is invalid"
    }
    return http.StatusInternalServerError, "internal error"
}

// rejectStatus is the status of a scan rejected for reason.
func rejectStatus(reason ledger.RejectReason) int {
    switch reason {
    case ledger.ReasonNotFound:
        return http.StatusNotFound
    case ledger.ReasonExpired:
        return http.StatusGone
    case ledger.ReasonCancelled, ledger.ReasonUsed:
        return http.StatusConflict
    }
    return http.StatusOK
}

// respondError writes err as {"error": msg}.  Tenant mismatches and
// unexpected failures are logged at Error.
func respondError(c echo.Context, log *zap.Logger, err error) error {
    status, msg := statusFor(err)
    if status >= http.StatusInternalServerError || errors.Is(err, repository.ErrTenantMismatch) {
        log.Error("request failed",
            zap.String("route", c.Path()),
            zap.String("id", c.Param("id")),
            zap.Int("status", status),
            zap.Error(err))
    }
    return c.JSON(status, echo.Map{"error": msg})
}
