package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-attendance/internal/handler"
	"github.com/iliyamo/venue-attendance/internal/middleware"
	"github.com/iliyamo/venue-attendance/internal/utils"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Scan         *handler.ScanHandler
	Reservations *handler.ReservationHandler
	Attendance   *handler.AttendanceHandler
	Reports      *handler.ReportHandler
	Admin        *handler.AdminHandler
}

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAPI mounts the tenant-scoped API under /v1.  Every route requires
// a staff token; the admin group additionally requires MANAGER.  scanLimit
// wraps only the scan route.
func RegisterAPI(e *echo.Echo, h Handlers, jwtSecret string, scanLimit echo.MiddlewareFunc) {
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.Use(middleware.RequireRole(utils.RoleStaff, utils.RoleManager))

	if scanLimit != nil {
		v1.POST("/scan", h.Scan.Scan, scanLimit)
	} else {
		v1.POST("/scan", h.Scan.Scan)
	}

	res := v1.Group("/reservations")
	res.GET("/:id", h.Reservations.Get)
	res.GET("/:id/token", h.Reservations.Token)
	res.POST("/:id/confirm", h.Reservations.Confirm)
	res.POST("/:id/check-in", h.Reservations.CheckInManual)
	res.POST("/:id/complete", h.Reservations.Complete)
	res.POST("/:id/cancel", h.Reservations.Cancel)
	res.POST("/:id/reconcile", h.Reservations.Reconcile)

	res.GET("/:id/attendance", h.Attendance.Get)
	res.PUT("/:id/attendance", h.Attendance.SetManual)
	res.DELETE("/:id/attendance/override", h.Attendance.ClearOverride)

	v1.GET("/reports/daily", h.Reports.Daily)

	admin := v1.Group("/admin", middleware.RequireRole(utils.RoleManager))
	admin.POST("/repair", h.Admin.Repair)
	admin.POST("/no-show-sweep", h.Admin.SweepNoShows)
}
