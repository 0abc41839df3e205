package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/store-rating/internal/model"
	"github.com/iliyamo/store-rating/internal/service"
)

type accountService interface {
	ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error
	UpdateProfile(ctx context.Context, id uuid.UUID, in service.ProfileInput) (*model.User, error)
}

// AccountHandler lets any authenticated caller manage their own account.
type AccountHandler struct {
	svc accountService
}

func NewAccountHandler(svc accountService) *AccountHandler {
	if svc == nil {
		panic("nil account service passed to NewAccountHandler")
	}
	return &AccountHandler{svc: svc}
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,password"`
}

type profileReq struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=60"`
	Email   *string `json:"email" validate:"omitempty,email,max=255"`
	Address *string `json:"address" validate:"omitempty,max=400"`
}

func (h *AccountHandler) ChangePassword(c echo.Context) error {
	who, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req changePasswordReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.svc.ChangePassword(ctx, who.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Password updated successfully"})
}

func (h *AccountHandler) UpdateProfile(c echo.Context) error {
	who, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req profileReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.svc.UpdateProfile(ctx, who.ID, service.ProfileInput{
		Name:    req.Name,
		Email:   req.Email,
		Address: req.Address,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}
