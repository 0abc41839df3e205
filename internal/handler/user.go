package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/model"
	"github.com/iliyamo/store-rating/internal/service"
)

type browseService interface {
	ListStores(ctx context.Context, viewer uuid.UUID, search string) ([]model.StoreAggregate, error)
	GetStore(ctx context.Context, viewer, storeID uuid.UUID) (*model.StoreAggregate, error)
	SubmitRating(ctx context.Context, who model.Identity, storeID uuid.UUID, value int) (*service.RatingResult, error)
}

// UserHandler serves the store browsing and rating endpoints under /user.
type UserHandler struct {
	svc browseService
}

func NewUserHandler(svc browseService) *UserHandler {
	if svc == nil {
		panic("nil browse service passed to NewUserHandler")
	}
	return &UserHandler{svc: svc}
}

type ratingReq struct {
	RatingValue *int `json:"ratingValue" validate:"required"`
}

// ListStores returns every store sorted by name, optionally narrowed by
// ?search=, with the caller's own rating attached.
func (h *UserHandler) ListStores(c echo.Context) error {
	who, err := currentIdentity(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	stores, err := h.svc.ListStores(ctx, who.ID, strings.TrimSpace(c.QueryParam("search")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stores)
}

func (h *UserHandler) GetStore(c echo.Context) error {
	who, err := currentIdentity(c)
	if err != nil {
		return err
	}
	storeID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	st, err := h.svc.GetStore(ctx, who.ID, storeID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

// SubmitRating answers both POST and PUT: 201 when the rating was created,
// 200 when an existing one was replaced.
func (h *UserHandler) SubmitRating(c echo.Context) error {
	who, err := currentIdentity(c)
	if err != nil {
		return err
	}
	storeID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req ratingReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.svc.SubmitRating(ctx, who, storeID, *req.RatingValue)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, res)
}
