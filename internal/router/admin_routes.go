package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/model"
)

// RegisterAdmin mounts /admin.  Every route requires the ADMIN role.
func RegisterAdmin(e *echo.Echo, d Deps) {
	h := d.Handlers.Admin
	g := e.Group("/admin", authenticated(d, model.RoleAdmin)...)
	g.Use(invalidatesDashboard(d))

	// ---- Users ----
	g.POST("/users", h.CreateUser)
	g.GET("/users", h.ListUsers)
	g.GET("/users/:id", h.GetUser)
	g.PUT("/users/:id", h.UpdateUser)
	g.DELETE("/users/:id", h.DeleteUser)

	// ---- Stores ----
	g.POST("/stores", h.CreateStore)
	g.GET("/stores", h.ListStores)
	g.PUT("/stores/:id", h.UpdateStore)
	g.DELETE("/stores/:id", h.DeleteStore)

	// counts are identical for every admin, so one shared cache entry serves all
	g.GET("/dashboard", h.Dashboard, d.Cache.Middleware)
}
