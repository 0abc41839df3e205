package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/middleware"
)

// RegisterAuth mounts /auth.  Register and login are public and rate
// limited per client; /auth/me needs a token of any role.
func RegisterAuth(e *echo.Echo, d Deps) {
	a := d.Handlers.Auth
	g := e.Group("/auth")

	limited := middleware.NewTokenBucket(d.Config.RateLimit, d.Redis, d.Log)
	g.POST("/register", a.Register, limited, invalidatesDashboard(d))
	g.POST("/login", a.Login, limited)

	g.GET("/me", a.Me, authenticated(d)...)
}
