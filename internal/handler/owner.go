package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/model"
	"github.com/iliyamo/store-rating/internal/service"
)

type ownerService interface {
	ListStores(ctx context.Context, ownerID uuid.UUID) ([]model.StoreAggregate, error)
	CreateStore(ctx context.Context, ownerID uuid.UUID, in service.CreateStoreInput) (*model.Store, error)
	DeleteStore(ctx context.Context, ownerID, storeID uuid.UUID) error
	StoreRatings(ctx context.Context, ownerID, storeID uuid.UUID) (*service.StoreRatings, error)
	StoreAverage(ctx context.Context, ownerID, storeID uuid.UUID) (*service.StoreAverage, error)
	Dashboard(ctx context.Context, ownerID uuid.UUID) (*model.OwnerDashboard, error)
}

// OwnerHandler serves /owner.  Every call is scoped to the caller's id.
type OwnerHandler struct {
	svc ownerService
}

func NewOwnerHandler(svc ownerService) *OwnerHandler {
	if svc == nil {
		panic("nil owner service passed to NewOwnerHandler")
	}
	return &OwnerHandler{svc: svc}
}

type ownerStoreReq struct {
	Name    string `json:"name" validate:"required,min=3,max=60"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Address string `json:"address" validate:"max=400"`
}

type ownerStoreResp struct {
	Message string      `json:"message"`
	Store   model.Store `json:"store"`
}

func (h *OwnerHandler) ListStores(c echo.Context) error {
	who, err := currentIdentity(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	stores, err := h.svc.ListStores(ctx, who.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stores)
}

func (h *OwnerHandler) CreateStore(c echo.Context) error {
	who, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req ownerStoreReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	st, err := h.svc.CreateStore(ctx, who.ID, service.CreateStoreInput{
		Name:    req.Name,
		Email:   req.Email,
		Address: req.Address,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ownerStoreResp{Message: "Store created successfully", Store: *st})
}

func (h *OwnerHandler) DeleteStore(c echo.Context) error {
	who, storeID, err := h.scope(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.svc.DeleteStore(ctx, who.ID, storeID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Store deleted successfully"})
}

func (h *OwnerHandler) StoreRatings(c echo.Context) error {
	who, storeID, err := h.scope(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.svc.StoreRatings(ctx, who.ID, storeID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *OwnerHandler) StoreAverage(c echo.Context) error {
	who, storeID, err := h.scope(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.svc.StoreAverage(ctx, who.ID, storeID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *OwnerHandler) Dashboard(c echo.Context) error {
	who, err := currentIdentity(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.svc.Dashboard(ctx, who.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// scope returns the caller and the :id store parameter.
func (h *OwnerHandler) scope(c echo.Context) (model.Identity, uuid.UUID, error) {
	who, err := currentIdentity(c)
	if err != nil {
		return model.Identity{}, uuid.Nil, err
	}
	storeID, err := pathUUID(c, "id")
	if err != nil {
		return model.Identity{}, uuid.Nil, err
	}
	return who, storeID, nil
}
