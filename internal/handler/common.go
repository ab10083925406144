package handler

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/venue-attendance/internal/middleware"
)

var errNoTenant = errors.New("no business scope on request")

// tenant returns the business of the authenticated caller.
func tenant(c echo.Context) (uint64, error) {
    bid := middleware.BusinessID(c)
    if bid == 0 {
        return 0, errNoTenant
    }
    return bid, nil
}

// pathID parses the :id path parameter.
func pathID(c echo.Context) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// scoped resolves the tenant and :id, writing 401/400 itself.  ok is
// false when a response has already been written.
func scoped(c echo.Context) (businessID, id uint64, ok bool, err error) {
    businessID, err = tenant(c)
    if err != nil {
        return 0, 0, false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, valid := pathID(c)
    if !valid {
        return 0, 0, false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
    }
    return businessID, id, true, nil
}
