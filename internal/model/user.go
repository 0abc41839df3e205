package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account as stored in the `users` table.  The password
// hash is tagged `json:"-"` so that a User can be rendered directly without
// leaking the credential.
//
// Fields:
//
//	ID           – UUID primary key.
//	Name         – display name.
//	Email        – unique, lower-cased email address.
//	Address      – optional postal address.
//	PasswordHash – bcrypt hash of the password.
//	Role         – ADMIN, USER or OWNER.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uuid.UUID `json:"id"`        // users.id
	Name         string    `json:"name"`      // users.name
	Email        string    `json:"email"`     // users.email
	Address      string    `json:"address"`   // users.address (NULL -> "")
	PasswordHash string    `json:"-"`         // users.password_hash
	Role         Role      `json:"role"`      // users.role
	CreatedAt    time.Time `json:"createdAt"` // users.created_at
	UpdatedAt    time.Time `json:"updatedAt"` // users.updated_at
}

// UserFilter narrows the admin user listing.  String fields match as
// case-insensitive substrings; Role matches exactly when set.
type UserFilter struct {
	Name    string
	Email   string
	Address string
	Role    Role
	Sort    string // name | email | address | role | createdAt
	Desc    bool
}

// OwnedStoreSummary is attached to OWNER rows of the admin user listing.
type OwnedStoreSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	AvgRating float64   `json:"avgRating"`
}

// UserListItem is a user plus, for owners, the store they own.
type UserListItem struct {
	User
	Store *OwnedStoreSummary `json:"store,omitempty"`
}

// Rater is the public identity of a user who submitted a rating.
type Rater struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}
