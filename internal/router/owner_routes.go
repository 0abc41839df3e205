package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/model"
)

// RegisterOwner mounts /owner.  All routes require a valid JWT and the OWNER
// role; store ids are checked against the caller inside the service.
func RegisterOwner(e *echo.Echo, d Deps) {
	o := d.Handlers.Owner
	g := e.Group("/owner", authenticated(d, model.RoleOwner)...)
	g.Use(invalidatesDashboard(d))

	g.GET("/stores", o.ListStores)
	g.POST("/stores", o.CreateStore)
	g.DELETE("/stores/:id", o.DeleteStore)
	g.GET("/stores/:id/ratings", o.StoreRatings)
	g.GET("/stores/:id/average", o.StoreAverage)
	g.GET("/dashboard", o.Dashboard)

	g.PUT("/password", d.Handlers.Account.ChangePassword)
}
