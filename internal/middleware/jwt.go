package middleware // middleware provides shared request processing for handlers

import (
    "net/http"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
    CtxStaffID    = "user_id"
    CtxBusinessID = "business_id"
    CtxRole       = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer staff token
// and injects its subject, business and role claims into the request
// context.  A token without a business_id claim is rejected: every
// downstream operation is tenant scoped and there is no global scope.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }
            bid, ok := uintClaim(claims["business_id"])
            if !ok || bid == 0 {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token has no business scope"})
            }
            sub, _ := claims.GetSubject()

            c.Set(CtxStaffID, sub)
            c.Set(CtxBusinessID, bid)
            c.Set(CtxRole, claims["role"])
            return next(c)
        }
    }
}

// uintClaim converts a numeric claim.  JSON numbers decode as float64.
func uintClaim(v interface{}) (uint64, bool) {
    switch t := v.(type) {
    case float64:
        if t < 0 || t != float64(uint64(t)) {
            return 0, false
        }
        return uint64(t), true
    case int64:
        if t < 0 {
            return 0, false
        }
        return uint64(t), true
    case uint64:
        return t, true
    }
    return 0, false
}
