package handler

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/apperr"
	"github.com/iliyamo/store-rating/internal/middleware"
	"github.com/iliyamo/store-rating/internal/model"
)

// requestTimeout bounds every service call made from a handler.
const requestTimeout = 5 * time.Second

type messageResponse struct {
	Message string `json:"message"`
}

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// bindAndValidate decodes the request into dst and runs the registered
// validator.  Both failures surface as 400.
func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid request body")
	}
	if err := c.Validate(dst); err != nil {
		return err
	}
	return nil
}

// pathUUID parses the named path parameter.
func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		return uuid.Nil, apperr.New(apperr.CodeValidation, "invalid "+name)
	}
	return id, nil
}

// currentIdentity returns the authenticated caller set by JWTAuth.
func currentIdentity(c echo.Context) (model.Identity, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return model.Identity{}, apperr.New(apperr.CodeUnauthorized, "authentication required")
	}
	return id, nil
}

// sortOrder reads ?order=asc|desc; anything else is ascending.
func sortOrder(c echo.Context) bool {
	return strings.EqualFold(strings.TrimSpace(c.QueryParam("order")), "desc")
}
