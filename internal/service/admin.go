package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/store-rating/internal/apperr"
	"github.com/iliyamo/store-rating/internal/model"
)

// CreateUserInput is an admin-add request.  Role is required and must be
// USER or OWNER.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Address  string
	Role     string
}

// UpdateUserInput carries the fields an admin may change; nil means keep.
type UpdateUserInput struct {
	Name    *string
	Email   *string
	Address *string
	Role    *string
}

// CreateStoreInput creates a store.  OwnerID is ignored when an owner
// creates their own store.
type CreateStoreInput struct {
	Name    string
	Email   string
	Address string
	OwnerID uuid.UUID
}

type UpdateStoreInput struct {
	Name    *string
	Email   *string
	Address *string
	OwnerID *uuid.UUID
}

// AdminService implements the ADMIN endpoints.
type AdminService struct {
	users      userRepository
	stores     storeRepository
	stats      statsRepository
	bcryptCost int
}

func NewAdminService(users userRepository, stores storeRepository, stats statsRepository, bcryptCost int) (*AdminService, error) {
	if users == nil || stores == nil || stats == nil {
		return nil, fmt.Errorf("admin service: repositories are required")
	}
	return &AdminService{users: users, stores: stores, stats: stats, bcryptCost: bcryptCost}, nil
}

// CreateUser adds a USER or OWNER account.  Any other role is refused with
// FORBIDDEN: admins cannot mint other admins.
func (s *AdminService) CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error) {
	role, ok := model.ParseRole(in.Role)
	if !ok || !role.Assignable() {
		return nil, apperr.New(apperr.CodeForbidden, "admins may only create USER or OWNER accounts")
	}
	u := &model.User{
		Name:    strings.TrimSpace(in.Name),
		Email:   in.Email,
		Address: strings.TrimSpace(in.Address),
		Role:    role,
	}
	if err := createAccount(ctx, s.users, u, in.Password, s.bcryptCost); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AdminService) ListUsers(ctx context.Context, f model.UserFilter) ([]model.UserListItem, error) {
	list, err := s.users.List(ctx, f)
	if err != nil {
		return nil, translate(err, msgUserNotFound)
	}
	return list, nil
}

func (s *AdminService) GetUser(ctx context.Context, id uuid.UUID) (*model.UserListItem, error) {
	item, err := s.users.GetListItem(ctx, id)
	if err != nil {
		return nil, translate(err, msgUserNotFound)
	}
	return item, nil
}

// mutableTarget loads id and refuses ADMIN accounts.
func (s *AdminService) mutableTarget(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, msgUserNotFound)
	}
	if u.Role == model.RoleAdmin {
		return nil, apperr.New(apperr.CodeForbidden, msgAdminImmutable)
	}
	return u, nil
}

// UpdateUser edits a USER or OWNER.  An owner who still holds a store cannot
// be turned into a USER; the store would be left with a non-owner.
func (s *AdminService) UpdateUser(ctx context.Context, id uuid.UUID, in UpdateUserInput) (*model.User, error) {
	u, err := s.mutableTarget(ctx, id)
	if err != nil {
		return nil, err
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
	if in.Role != nil {
		role, ok := model.ParseRole(*in.Role)
		if !ok || !role.Assignable() {
			return nil, apperr.New(apperr.CodeForbidden, "role may only be USER or OWNER")
		}
		if u.Role == model.RoleOwner && role != model.RoleOwner {
			has, err := s.stores.ExistsForOwner(ctx, u.ID, uuid.Nil)
			if err != nil {
				return nil, translate(err, msgUserNotFound)
			}
			if has {
				return nil, apperr.New(apperr.CodeConflict, "owner still has a store")
			}
		}
		u.Role = role
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, translate(err, msgUserNotFound)
	}
	return u, nil
}

// DeleteUser removes a USER or OWNER together with their store and ratings.
func (s *AdminService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := s.mutableTarget(ctx, id); err != nil {
		return err
	}
	return translate(s.users.Delete(ctx, id), msgUserNotFound)
}

// CreateStore adds a store for an OWNER who has none yet.
func (s *AdminService) CreateStore(ctx context.Context, in CreateStoreInput) (*model.Store, error) {
	if err := requireOwnerCandidate(ctx, s.users, s.stores, in.OwnerID, uuid.Nil); err != nil {
		return nil, err
	}
	st := &model.Store{
		Name:    strings.TrimSpace(in.Name),
		Email:   in.Email,
		Address: strings.TrimSpace(in.Address),
		OwnerID: in.OwnerID,
	}
	if err := s.stores.Create(ctx, st); err != nil {
		return nil, translate(err, msgOwnerNotFound)
	}
	return st, nil
}

func (s *AdminService) ListStores(ctx context.Context, f model.StoreFilter) ([]model.StoreAggregate, error) {
	list, err := s.stores.List(ctx, f, nil)
	if err != nil {
		return nil, translate(err, msgStoreNotFound)
	}
	return list, nil
}

// UpdateStore edits a store.  Reassigning it re-validates the new owner,
// ignoring the store being edited when checking for an existing store.
func (s *AdminService) UpdateStore(ctx context.Context, id uuid.UUID, in UpdateStoreInput) (*model.Store, error) {
	st, err := s.stores.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, msgStoreNotFound)
	}
	applyString(&st.Name, in.Name)
	applyString(&st.Email, in.Email)
	applyString(&st.Address, in.Address)
	if in.OwnerID != nil && *in.OwnerID != st.OwnerID {
		if err := requireOwnerCandidate(ctx, s.users, s.stores, *in.OwnerID, st.ID); err != nil {
			return nil, err
		}
		st.OwnerID = *in.OwnerID
	}
	if err := s.stores.Update(ctx, st); err != nil {
		return nil, translate(err, msgStoreNotFound)
	}
	return st, nil
}

// DeleteStore removes a store and, by cascade, its ratings.
func (s *AdminService) DeleteStore(ctx context.Context, id uuid.UUID) error {
	return translate(s.stores.Delete(ctx, id), msgStoreNotFound)
}

func (s *AdminService) Dashboard(ctx context.Context) (model.AdminStats, error) {
	st, err := s.stats.Counts(ctx)
	if err != nil {
		return model.AdminStats{}, translate(err, "stats unavailable")
	}
	return st, nil
}
