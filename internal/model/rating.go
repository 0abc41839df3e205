package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Rating is one user's score for one store (`ratings` table).  The pair
// (store_id, user_id) is unique: resubmitting overwrites Value.
//
// Fields:
//
//	ID        – UUID primary key.
//	StoreID   – rated store.
//	UserID    – rating user.
//	Value     – integer score in [1,5].
//	CreatedAt – first submission.
//	UpdatedAt – last change.
type Rating struct {
	ID        uuid.UUID `json:"id"`          // ratings.id
	StoreID   uuid.UUID `json:"storeId"`     // ratings.store_id
	UserID    uuid.UUID `json:"userId"`      // ratings.user_id
	Value     int       `json:"ratingValue"` // ratings.rating_value
	CreatedAt time.Time `json:"createdAt"`   // ratings.created_at
	UpdatedAt time.Time `json:"updatedAt"`   // ratings.updated_at
}

// ValidRatingValue reports whether v is an allowed score.
func ValidRatingValue(v int) bool {
	return v >= MinRating && v <= MaxRating
}

// RatingWithRater is a rating joined with the identity of its author, as
// shown to store owners.
type RatingWithRater struct {
	ID        uuid.UUID `json:"id"`
	Value     int       `json:"ratingValue"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	User      Rater     `json:"user"`
}

// Round1 rounds to one decimal place, the precision the owner dashboard
// reports averages with.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
