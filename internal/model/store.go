package model

import (
	"time"

	"github.com/google/uuid"
)

// Store represents a rated shop owned by a single OWNER.  This struct
// corresponds to a row in the `stores` table; owner_id carries a unique index
// so an owner can never hold two stores.
//
// Fields:
//
//	ID        – UUID primary key.
//	Name      – store name.
//	Email     – unique contact email.
//	Address   – optional address.
//	OwnerID   – users.id of the owner (role OWNER).
//	CreatedAt – timestamp when the store was created.
//	UpdatedAt – timestamp of last update.
type Store struct {
	ID        uuid.UUID `json:"id"`        // stores.id
	Name      string    `json:"name"`      // stores.name
	Email     string    `json:"email"`     // stores.email
	Address   string    `json:"address"`   // stores.address
	OwnerID   uuid.UUID `json:"ownerId"`   // stores.owner_id
	CreatedAt time.Time `json:"createdAt"` // stores.created_at
	UpdatedAt time.Time `json:"updatedAt"` // stores.updated_at
}

// StoreAggregate is a store with its rating aggregate.  UserRating is only
// populated for the browse endpoints; it is 0 when the caller has not rated
// the store.  AvgRating is 0 for a store without ratings.
type StoreAggregate struct {
	Store
	AvgRating   float64 `json:"avgRating"`
	RatingCount int     `json:"ratingCount"`
	UserRating  *int    `json:"userRating,omitempty"`
}

// StoreFilter narrows store listings.  Search matches name, email or address
// as a case-insensitive substring.
type StoreFilter struct {
	Search string
	Sort   string // name | email | address | avgRating | ratingCount | createdAt
	Desc   bool
}
