package middleware

// identity.go exposes the values JWTAuth stores on the Echo context.

import "github.com/labstack/echo/v4"

// BusinessID returns the tenant of the authenticated caller, or zero when
// the request is unauthenticated.
func BusinessID(c echo.Context) uint64 {
    if v, ok := c.Get(CtxBusinessID).(uint64); ok {
        return v
    }
    return 0
}

// StaffID returns the token subject, or "anon".
func StaffID(c echo.Context) string {
    if v, ok := c.Get(CtxStaffID).(string); ok && v != "" {
        return v
    }
    return "anon"
}
