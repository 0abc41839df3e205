package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/apperr"
	"github.com/iliyamo/store-rating/internal/model"
	"github.com/iliyamo/store-rating/internal/service"
)

type adminService interface {
	CreateUser(ctx context.Context, in service.CreateUserInput) (*model.User, error)
	ListUsers(ctx context.Context, f model.UserFilter) ([]model.UserListItem, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.UserListItem, error)
	UpdateUser(ctx context.Context, id uuid.UUID, in service.UpdateUserInput) (*model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	CreateStore(ctx context.Context, in service.CreateStoreInput) (*model.Store, error)
	ListStores(ctx context.Context, f model.StoreFilter) ([]model.StoreAggregate, error)
	UpdateStore(ctx context.Context, id uuid.UUID, in service.UpdateStoreInput) (*model.Store, error)
	DeleteStore(ctx context.Context, id uuid.UUID) error
	Dashboard(ctx context.Context) (model.AdminStats, error)
}

// AdminHandler serves /admin.  Routes are mounted behind RequireRole(ADMIN).
type AdminHandler struct {
	svc adminService
}

func NewAdminHandler(svc adminService) *AdminHandler {
	if svc == nil {
		panic("nil admin service passed to NewAdminHandler")
	}
	return &AdminHandler{svc: svc}
}

// ----- DTOs -----

type createUserReq struct {
	Name     string `json:"name" validate:"required,max=60"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,password"`
	Address  string `json:"address" validate:"max=400"`
	Role     string `json:"role" validate:"required,role"`
}

type updateUserReq struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=60"`
	Email   *string `json:"email" validate:"omitempty,email,max=255"`
	Address *string `json:"address" validate:"omitempty,max=400"`
	Role    *string `json:"role" validate:"omitempty,role"`
}

type createStoreReq struct {
	Name    string `json:"name" validate:"required,min=3,max=60"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Address string `json:"address" validate:"max=400"`
	OwnerID string `json:"ownerId" validate:"required,uuid"`
}

type updateStoreReq struct {
	Name    *string `json:"name" validate:"omitempty,min=3,max=60"`
	Email   *string `json:"email" validate:"omitempty,email,max=255"`
	Address *string `json:"address" validate:"omitempty,max=400"`
	OwnerID *string `json:"ownerId" validate:"omitempty,uuid"`
}

type createdUserResp struct {
	Message string    `json:"message"`
	UserID  uuid.UUID `json:"userId"`
}

type createdStoreResp struct {
	Message string    `json:"message"`
	StoreID uuid.UUID `json:"storeId"`
}

func (h *AdminHandler) CreateUser(c echo.Context) error {
	var req createUserReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.svc.CreateUser(ctx, service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Address:  req.Address,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createdUserResp{Message: "User created successfully", UserID: u.ID})
}

// ListUsers supports ?name= &email= &address= (substring), ?role= (exact),
// ?sort= and ?order=asc|desc.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	f := model.UserFilter{
		Name:    strings.TrimSpace(c.QueryParam("name")),
		Email:   strings.TrimSpace(c.QueryParam("email")),
		Address: strings.TrimSpace(c.QueryParam("address")),
		Sort:    strings.TrimSpace(c.QueryParam("sort")),
		Desc:    sortOrder(c),
	}
	if raw := strings.TrimSpace(c.QueryParam("role")); raw != "" {
		role, ok := model.ParseRole(raw)
		if !ok {
			return apperr.New(apperr.CodeValidation, "invalid role filter")
		}
		f.Role = role
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	users, err := h.svc.ListUsers(ctx, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) GetUser(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.svc.GetUser(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req updateUserReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.svc.UpdateUser(ctx, id, service.UpdateUserInput{
		Name:    req.Name,
		Email:   req.Email,
		Address: req.Address,
		Role:    req.Role,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.svc.DeleteUser(ctx, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "User deleted successfully"})
}

func (h *AdminHandler) CreateStore(c echo.Context) error {
	var req createStoreReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		return apperr.New(apperr.CodeValidation, "invalid ownerId")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	st, err := h.svc.CreateStore(ctx, service.CreateStoreInput{
		Name:    req.Name,
		Email:   req.Email,
		Address: req.Address,
		OwnerID: ownerID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createdStoreResp{Message: "Store created successfully", StoreID: st.ID})
}

// ListStores supports ?search= over name, email and address plus ?sort= and
// ?order=.
func (h *AdminHandler) ListStores(c echo.Context) error {
	f := model.StoreFilter{
		Search: strings.TrimSpace(c.QueryParam("search")),
		Sort:   strings.TrimSpace(c.QueryParam("sort")),
		Desc:   sortOrder(c),
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	stores, err := h.svc.ListStores(ctx, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stores)
}

func (h *AdminHandler) UpdateStore(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	var req updateStoreReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	in := service.UpdateStoreInput{Name: req.Name, Email: req.Email, Address: req.Address}
	if req.OwnerID != nil {
		ownerID, err := uuid.Parse(*req.OwnerID)
		if err != nil {
			return apperr.New(apperr.CodeValidation, "invalid ownerId")
		}
		in.OwnerID = &ownerID
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	st, err := h.svc.UpdateStore(ctx, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (h *AdminHandler) DeleteStore(c echo.Context) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.svc.DeleteStore(ctx, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Store deleted successfully"})
}

func (h *AdminHandler) Dashboard(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	stats, err := h.svc.Dashboard(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
