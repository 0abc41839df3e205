package model

import "strings"

// Role is the closed set of account roles.  Middleware and services match on
// these constants only; unknown strings never grant access.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
	RoleOwner Role = "OWNER"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleUser, RoleOwner}

// ParseRole normalises s (trim + upper-case) and reports whether it names a
// valid role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleOwner:
		return true
	}
	return false
}

// Assignable reports whether r may be given to an account by registration or
// by an admin.  ADMIN accounts are only created by seeding.
func (r Role) Assignable() bool {
	switch r {
	case RoleUser, RoleOwner:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }
