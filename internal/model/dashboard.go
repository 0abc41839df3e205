package model

import "github.com/google/uuid"

// AdminStats holds the global counters shown on the admin dashboard.
type AdminStats struct {
	TotalUsers   int `json:"totalUsers"`
	TotalStores  int `json:"totalStores"`
	TotalRatings int `json:"totalRatings"`
}

// OwnerStoreReport is one store on the owner dashboard.  AvgRating is rounded
// to one decimal; Users lists each distinct rater once.
type OwnerStoreReport struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Address     string            `json:"address"`
	AvgRating   float64           `json:"avgRating"`
	RatingCount int               `json:"ratingCount"`
	Users       []Rater           `json:"users"`
	Ratings     []RatingWithRater `json:"ratings"`
}

// OwnerStats summarises every store of one owner.  AvgRating is the mean of
// the per-store averages, not the mean over all individual ratings.
type OwnerStats struct {
	TotalStores  int     `json:"totalStores"`
	TotalRatings int     `json:"totalRatings"`
	AvgRating    float64 `json:"avgRating"`
}

type OwnerDashboard struct {
	Stores []OwnerStoreReport `json:"stores"`
	Stats  OwnerStats         `json:"stats"`
}
