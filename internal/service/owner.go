package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/store-rating/internal/apperr"
	"github.com/iliyamo/store-rating/internal/model"
)

// StoreRatings is an owned store with every rating it received.
type StoreRatings struct {
	Store   model.Store             `json:"store"`
	Ratings []model.RatingWithRater `json:"ratings"`
}

// StoreAverage is the average rating of one owned store.
type StoreAverage struct {
	Store         model.Store `json:"store"`
	AverageRating float64     `json:"averageRating"`
	RatingCount   int         `json:"ratingCount"`
}

// OwnerService implements the OWNER endpoints.  Every operation is scoped to
// the caller's own store; a store owned by someone else is reported as not
// found.
type OwnerService struct {
	stores  storeRepository
	ratings ratingRepository
}

func NewOwnerService(stores storeRepository, ratings ratingRepository) (*OwnerService, error) {
	if stores == nil || ratings == nil {
		return nil, fmt.Errorf("owner service: repositories are required")
	}
	return &OwnerService{stores: stores, ratings: ratings}, nil
}

func (s *OwnerService) ListStores(ctx context.Context, ownerID uuid.UUID) ([]model.StoreAggregate, error) {
	list, err := s.stores.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, translate(err, msgStoreNotFound)
	}
	return list, nil
}

// CreateStore creates the caller's store.  The explicit existence check
// gives the usual conflict; the unique index on owner_id settles races.
func (s *OwnerService) CreateStore(ctx context.Context, ownerID uuid.UUID, in CreateStoreInput) (*model.Store, error) {
	has, err := s.stores.ExistsForOwner(ctx, ownerID, uuid.Nil)
	if err != nil {
		return nil, translate(err, msgStoreNotFound)
	}
	if has {
		return nil, apperr.New(apperr.CodeConflict, "you already have a store")
	}
	st := &model.Store{
		Name:    strings.TrimSpace(in.Name),
		Email:   in.Email,
		Address: strings.TrimSpace(in.Address),
		OwnerID: ownerID,
	}
	if err := s.stores.Create(ctx, st); err != nil {
		return nil, translate(err, msgOwnerNotFound)
	}
	return st, nil
}

func (s *OwnerService) DeleteStore(ctx context.Context, ownerID, storeID uuid.UUID) error {
	return translate(s.stores.DeleteByIDAndOwner(ctx, storeID, ownerID), msgStoreNotFound)
}

func (s *OwnerService) StoreRatings(ctx context.Context, ownerID, storeID uuid.UUID) (*StoreRatings, error) {
	st, err := s.stores.GetByIDAndOwner(ctx, storeID, ownerID)
	if err != nil {
		return nil, translate(err, msgStoreNotFound)
	}
	ratings, err := s.ratings.ListByStore(ctx, st.ID)
	if err != nil {
		return nil, translate(err, msgStoreNotFound)
	}
	return &StoreRatings{Store: *st, Ratings: ratings}, nil
}

func (s *OwnerService) StoreAverage(ctx context.Context, ownerID, storeID uuid.UUID) (*StoreAverage, error) {
	st, err := s.stores.GetByIDAndOwner(ctx, storeID, ownerID)
	if err != nil {
		return nil, translate(err, msgStoreNotFound)
	}
	avg, count, err := s.ratings.AverageForStore(ctx, st.ID)
	if err != nil {
		return nil, translate(err, msgStoreNotFound)
	}
	return &StoreAverage{Store: *st, AverageRating: model.Round1(avg), RatingCount: count}, nil
}

// Dashboard reports each owned store with its raters and ratings.  The
// overall average is the mean of the rounded per-store averages (stores
// without ratings count as 0), not the mean over individual ratings.
func (s *OwnerService) Dashboard(ctx context.Context, ownerID uuid.UUID) (*model.OwnerDashboard, error) {
	stores, err := s.stores.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, translate(err, msgStoreNotFound)
	}

	out := &model.OwnerDashboard{Stores: make([]model.OwnerStoreReport, 0, len(stores))}
	var sum float64
	for _, st := range stores {
		ratings, err := s.ratings.ListByStore(ctx, st.ID)
		if err != nil {
			return nil, translate(err, msgStoreNotFound)
		}
		report := model.OwnerStoreReport{
			ID:          st.ID,
			Name:        st.Name,
			Email:       st.Email,
			Address:     st.Address,
			AvgRating:   model.Round1(st.AvgRating),
			RatingCount: st.RatingCount,
			Users:       distinctRaters(ratings),
			Ratings:     ratings,
		}
		out.Stores = append(out.Stores, report)
		out.Stats.TotalRatings += st.RatingCount
		sum += report.AvgRating
	}
	out.Stats.TotalStores = len(stores)
	if len(stores) > 0 {
		out.Stats.AvgRating = model.Round1(sum / float64(len(stores)))
	}
	return out, nil
}

func distinctRaters(ratings []model.RatingWithRater) []model.Rater {
	seen := make(map[uuid.UUID]struct{}, len(ratings))
	out := make([]model.Rater, 0, len(ratings))
	for _, r := range ratings {
		if _, ok := seen[r.User.ID]; ok {
			continue
		}
		seen[r.User.ID] = struct{}{}
		out = append(out, r.User)
	}
	return out
}
