package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/apperr"
	"github.com/iliyamo/store-rating/internal/model"
)

// RequireRole lets the request through only when the caller's role is one
// of roles.  It must run after JWTAuth; without an identity the request is
// unauthenticated (401), with the wrong role it is forbidden (403).
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return apperr.New(apperr.CodeUnauthorized, "authentication required")
			}
			if _, ok := allowed[id.Role]; !ok {
				return apperr.New(apperr.CodeForbidden, "access denied for role "+id.Role.String())
			}
			return next(c)
		}
	}
}
