package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/store-rating/internal/apperr"
	"github.com/iliyamo/store-rating/internal/model"
	"github.com/iliyamo/store-rating/internal/utils"
)

// ProfileInput carries the self-editable profile fields; nil means keep.
type ProfileInput struct {
	Name    *string
	Email   *string
	Address *string
}

// AccountService lets any authenticated caller manage their own account.
type AccountService struct {
	users      userRepository
	bcryptCost int
}

func NewAccountService(users userRepository, bcryptCost int) (*AccountService, error) {
	if users == nil {
		return nil, fmt.Errorf("account service: user repository is required")
	}
	return &AccountService{users: users, bcryptCost: bcryptCost}, nil
}

// ChangePassword replaces the caller's password after checking the current
// one.  The old hash is overwritten.
func (s *AccountService) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return translate(err, msgUserNotFound)
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return apperr.New(apperr.CodeUnauthorized, "current password incorrect")
	}
	hash, err := utils.HashPassword(next, s.bcryptCost)
	if err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "new password is required")
	}
	return translate(s.users.UpdatePassword(ctx, id, hash), msgUserNotFound)
}

// UpdateProfile edits name, email and address.  Role is never touched here.
func (s *AccountService) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, msgUserNotFound)
	}
	applyString(&u.Name, in.Name)
	applyString(&u.Address, in.Address)
	if in.Email != nil {
		taken, err := emailTaken(ctx, s.users, *in.Email, u.ID)
		if err != nil {
			return nil, translate(err, msgUserNotFound)
		}
		if taken {
			return nil, apperr.New(apperr.CodeConflict, msgEmailExists)
		}
		u.Email = *in.Email
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, translate(err, msgUserNotFound)
	}
	return u, nil
}
