package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/middleware"
	"github.com/iliyamo/store-rating/internal/model"
)

// RegisterUser mounts /user.  Browsing and rating are USER only; password
// and profile changes are open to every authenticated role.
func RegisterUser(e *echo.Echo, d Deps) {
	u := d.Handlers.User
	acc := d.Handlers.Account
	g := e.Group("/user", authenticated(d)...)
	g.Use(invalidatesDashboard(d))

	g.PUT("/password", acc.ChangePassword)
	g.PUT("/profile", acc.UpdateProfile)

	onlyUsers := middleware.RequireRole(model.RoleUser)
	g.GET("/stores", u.ListStores, onlyUsers)
	g.GET("/stores/:id", u.GetStore, onlyUsers)
	g.POST("/stores/:id/rating", u.SubmitRating, onlyUsers)
	g.PUT("/stores/:id/rating", u.SubmitRating, onlyUsers)
}
