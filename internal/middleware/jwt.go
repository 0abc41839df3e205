package middleware

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/apperr"
	"github.com/iliyamo/store-rating/internal/logger"
	"github.com/iliyamo/store-rating/internal/model"
	"github.com/iliyamo/store-rating/internal/utils"
)

// JWTAuth validates the Bearer access token and stores the caller's
// model.Identity in the context, where handlers read it with IdentityFrom.
// Missing, malformed and expired tokens are rejected with 401.  log may be
// nil; when set, the request logger gains a user_id field.
func JWTAuth(secret string, log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, raw, ok := strings.Cut(auth, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				return apperr.New(apperr.CodeUnauthorized, "missing bearer token")
			}

			claims, err := utils.ParseAccessToken(secret, strings.TrimSpace(raw))
			if err != nil {
				if errors.Is(err, utils.ErrExpiredToken) {
					return apperr.New(apperr.CodeUnauthorized, "token expired")
				}
				return apperr.New(apperr.CodeUnauthorized, "invalid token")
			}
			id, err := claims.UserID()
			if err != nil {
				return apperr.New(apperr.CodeUnauthorized, "invalid token")
			}

			SetIdentity(c, model.Identity{ID: id, Role: claims.Role, Email: claims.Email, Name: claims.Name})
			if log != nil {
				req := c.Request()
				ctx := log.WithFields(req.Context(), map[string]any{"user_id": id.String(), "role": string(claims.Role)})
				c.SetRequest(req.WithContext(ctx))
			}
			return next(c)
		}
	}
}
