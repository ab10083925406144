package middleware

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"
)

// RequestLogger logs one line per request.  5xx responses log at Error,
// 4xx at Info and the rest at Debug.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
    if log == nil {
        log = zap.NewNop()
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                // Let the error handler write the response so the status is final.
                c.Error(err)
            }
            status := c.Response().Status
            fields := []zap.Field{
                zap.String("method", c.Request().Method),
                zap.String("route", c.Path()),
                zap.Int("status", status),
                zap.Duration("latency", time.Since(start)),
                zap.String("staff_id", StaffID(c)),
            }
            if bid := BusinessID(c); bid != 0 {
                fields = append(fields, zap.Uint64("business_id", bid))
            }
            switch {
            case status >= 500:
                log.Error("request", append(fields, zap.Error(err))...)
            case status >= 400:
                log.Info("request", fields...)
            default:
                log.Debug("request", fields...)
            }
            return nil
        }
    }
}

// Recover turns a handler panic into a 500 and logs it with the stack.
func Recover(log *zap.Logger) echo.MiddlewareFunc {
    if log == nil {
        log = zap.NewNop()
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) (err error) {
            defer func() {
                if r := recover(); r != nil {
                    log.Error("handler panicked",
                        zap.String("route", c.Path()),
                        zap.Any("panic", r),
                        zap.Stack("stack"))
                    err = echo.NewHTTPError(http.StatusInternalServerError, "internal error")
                }
            }()
            return next(c)
        }
    }
}
