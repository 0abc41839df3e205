package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/model"
)

// identityKey is the echo.Context key under which JWTAuth stores the caller.
const identityKey = "identity"

// SetIdentity attaches the authenticated caller to c.
func SetIdentity(c echo.Context, id model.Identity) {
	c.Set(identityKey, id)
}

// IdentityFrom returns the caller stored by JWTAuth.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok
}

// userID returns the caller's id for cache and rate-limit keys, "anon" when
// the request is not authenticated.
func userID(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return id.ID.String()
	}
	return "anon"
}
