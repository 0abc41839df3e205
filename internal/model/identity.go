package model

import "github.com/google/uuid"

// Identity is the authenticated caller as carried by an access token.
type Identity struct {
	ID    uuid.UUID
	Role  Role
	Email string
	Name  string
}

// Is reports whether the caller has role r.
func (i Identity) Is(r Role) bool { return i.Role == r }
