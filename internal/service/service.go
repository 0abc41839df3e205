// Package service holds the business rules of the store-rating API: who may
// do what, the uniqueness checks that give friendly conflicts, and the
// aggregation views.  Services depend on the small repository interfaces
// below so they can be tested against in-memory fakes.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/store-rating/internal/apperr"
	"github.com/iliyamo/store-rating/internal/model"
	"github.com/iliyamo/store-rating/internal/queue"
	"github.com/iliyamo/store-rating/internal/repository"
)

type userRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, f model.UserFilter) ([]model.UserListItem, error)
	GetListItem(ctx context.Context, id uuid.UUID) (*model.UserListItem, error)
	Update(ctx context.Context, u *model.User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type storeRepository interface {
	Create(ctx context.Context, s *model.Store) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Store, error)
	GetByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*model.Store, error)
	ExistsForOwner(ctx context.Context, ownerID, exclude uuid.UUID) (bool, error)
	List(ctx context.Context, f model.StoreFilter, viewer *uuid.UUID) ([]model.StoreAggregate, error)
	GetAggregate(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*model.StoreAggregate, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.StoreAggregate, error)
	Update(ctx context.Context, s *model.Store) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) error
}

type ratingRepository interface {
	Upsert(ctx context.Context, r *model.Rating) (bool, error)
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]model.RatingWithRater, error)
	AverageForStore(ctx context.Context, storeID uuid.UUID) (float64, int, error)
}

type statsRepository interface {
	Counts(ctx context.Context) (model.AdminStats, error)
}

type ratingPublisher interface {
	PublishRatingSubmitted(ctx context.Context, ev queue.RatingSubmittedEvent) error
}

type ratingRecorder interface {
	IncSubmitted(created bool)
}

// Messages shared by several services.
const (
	msgUserNotFound   = "user not found"
	msgStoreNotFound  = "store not found"
	msgOwnerNotFound  = "owner not found"
	msgEmailExists    = "email already exists"
	msgOwnerHasStore  = "owner already has a store"
	msgStoreEmail     = "store email already exists"
	msgAdminImmutable = "admin accounts cannot be modified"
)

// translate maps repository sentinels to typed API errors.  notFound is the
// message used for ErrNotFound; anything unrecognised becomes an internal
// error whose cause is only logged.
func translate(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if apperr.As(err) != nil {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.New(apperr.CodeNotFound, notFound)
	case errors.Is(err, repository.ErrEmailExists):
		return apperr.New(apperr.CodeConflict, msgEmailExists)
	case errors.Is(err, repository.ErrOwnerHasStore):
		return apperr.New(apperr.CodeConflict, msgOwnerHasStore)
	case errors.Is(err, repository.ErrStoreEmailExists):
		return apperr.New(apperr.CodeConflict, msgStoreEmail)
	case errors.Is(err, repository.ErrForbidden):
		return apperr.New(apperr.CodeForbidden, "forbidden")
	case errors.Is(err, repository.ErrConflict):
		return apperr.New(apperr.CodeConflict, "conflict")
	}
	return apperr.Internal(err, "database error")
}

// emailTaken reports whether email belongs to a user other than self.
func emailTaken(ctx context.Context, users userRepository, email string, self uuid.UUID) (bool, error) {
	u, err := users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.ID != self, nil
}

// requireOwnerCandidate checks that ownerID names an OWNER without a store
// other than exclude.
func requireOwnerCandidate(ctx context.Context, users userRepository, stores storeRepository, ownerID, exclude uuid.UUID) error {
	owner, err := users.GetByID(ctx, ownerID)
	if err != nil {
		return translate(err, msgOwnerNotFound)
	}
	if owner.Role != model.RoleOwner {
		return apperr.New(apperr.CodeValidation, "store owner must have role OWNER")
	}
	has, err := stores.ExistsForOwner(ctx, ownerID, exclude)
	if err != nil {
		return translate(err, msgOwnerNotFound)
	}
	if has {
		return apperr.New(apperr.CodeConflict, msgOwnerHasStore)
	}
	return nil
}

func applyString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
