package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/store-rating/internal/apperr"
	"github.com/iliyamo/store-rating/internal/logger"
	"github.com/iliyamo/store-rating/internal/model"
	"github.com/iliyamo/store-rating/internal/queue"
)

const publishTimeout = 5 * time.Second

// RatingResult is the outcome of a rating submission.
type RatingResult struct {
	Message     string `json:"message"`
	RatingValue int    `json:"ratingValue"`
	Created     bool   `json:"created"`
}

// BrowseService implements the USER endpoints: browsing stores with their
// aggregates and submitting ratings.
type BrowseService struct {
	stores  storeRepository
	ratings ratingRepository
	events  ratingPublisher
	metrics ratingRecorder
	log     *logger.Logger
}

// BrowseParams bundles the dependencies of NewBrowseService.  Events and
// Metrics are optional.
type BrowseParams struct {
	Stores  storeRepository
	Ratings ratingRepository
	Events  ratingPublisher
	Metrics ratingRecorder
	Log     *logger.Logger
}

func NewBrowseService(p BrowseParams) (*BrowseService, error) {
	if p.Stores == nil || p.Ratings == nil {
		return nil, fmt.Errorf("browse service: repositories are required")
	}
	if p.Log == nil {
		p.Log = logger.Nop()
	}
	return &BrowseService{stores: p.Stores, ratings: p.Ratings, events: p.Events, metrics: p.Metrics, log: p.Log}, nil
}

// ListStores returns every store (optionally filtered by search) with its
// average, count and the caller's own rating.
func (s *BrowseService) ListStores(ctx context.Context, viewer uuid.UUID, search string) ([]model.StoreAggregate, error) {
	list, err := s.stores.List(ctx, model.StoreFilter{Search: search, Sort: "name"}, &viewer)
	if err != nil {
		return nil, translate(err, msgStoreNotFound)
	}
	return list, nil
}

func (s *BrowseService) GetStore(ctx context.Context, viewer, storeID uuid.UUID) (*model.StoreAggregate, error) {
	a, err := s.stores.GetAggregate(ctx, storeID, &viewer)
	if err != nil {
		return nil, translate(err, msgStoreNotFound)
	}
	return a, nil
}

// SubmitRating creates or replaces the caller's rating of a store in one
// atomic upsert.  Values outside [1,5] are rejected before anything is
// written.
func (s *BrowseService) SubmitRating(ctx context.Context, who model.Identity, storeID uuid.UUID, value int) (*RatingResult, error) {
	if !model.ValidRatingValue(value) {
		return nil, apperr.New(apperr.CodeValidation,
			fmt.Sprintf("rating must be between %d and %d", model.MinRating, model.MaxRating))
	}
	st, err := s.stores.GetByID(ctx, storeID)
	if err != nil {
		return nil, translate(err, msgStoreNotFound)
	}

	rt := &model.Rating{StoreID: st.ID, UserID: who.ID, Value: value}
	created, err := s.ratings.Upsert(ctx, rt)
	if err != nil {
		return nil, translate(err, msgStoreNotFound)
	}
	if s.metrics != nil {
		s.metrics.IncSubmitted(created)
	}
	s.publish(ctx, queue.RatingSubmittedEvent{
		RatingID:    rt.ID.String(),
		StoreID:     st.ID.String(),
		StoreName:   st.Name,
		UserID:      who.ID.String(),
		UserEmail:   who.Email,
		RatingValue: value,
		Created:     created,
		SubmittedAt: time.Now().UTC(),
	})

	res := &RatingResult{RatingValue: value, Created: created, Message: "Rating updated successfully"}
	if created {
		res.Message = "Rating submitted successfully"
	}
	return res, nil
}

// publish hands ev to the broker without delaying the response.  Failures
// are logged by the publisher and never surface to the client.
func (s *BrowseService) publish(ctx context.Context, ev queue.RatingSubmittedEvent) {
	if s.events == nil {
		return
	}
	go func() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := s.events.PublishRatingSubmitted(pctx, ev); err != nil {
			s.log.Debug(pctx, "rating event dropped")
		}
	}()
}
