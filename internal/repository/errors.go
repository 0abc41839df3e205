// Package repository holds the MySQL data access for users, stores and
// ratings.  Repositories return the sentinel errors below so that the service
// layer can tell failure scenarios apart without inspecting driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist (or, for the
// owner-scoped queries, is not owned by the caller).
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when a user insert or update collides with the
// unique index on users.email.
var ErrEmailExists = errors.New("email already exists")

// ErrStoreEmailExists is the stores.email counterpart of ErrEmailExists.
var ErrStoreEmailExists = errors.New("store email already exists")

// ErrOwnerHasStore is returned when the unique index on stores.owner_id
// rejects a second store for the same owner.
var ErrOwnerHasStore = errors.New("owner already has a store")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they may not touch.  Handlers translate it into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot proceed because of conflicting
// state.  Handlers translate it into HTTP 409.
var ErrConflict = errors.New("conflict")

const (
	mysqlErrDuplicateEntry = 1062
	mysqlErrNoReferenced   = 1452
)

func mysqlErr(err error) (*mysql.MySQLError, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}

// isDuplicate reports whether err is a unique-index violation.  When key is
// non-empty the violated index name must also contain it.
func isDuplicate(err error, key string) bool {
	me, ok := mysqlErr(err)
	if !ok || me.Number != mysqlErrDuplicateEntry {
		return false
	}
	return key == "" || strings.Contains(me.Message, key)
}

// isMissingReference reports whether err is a foreign-key failure caused by
// a referenced row that does not exist.
func isMissingReference(err error) bool {
	me, ok := mysqlErr(err)
	return ok && me.Number == mysqlErrNoReferenced
}

// likePattern wraps s for a substring LIKE match, escaping the wildcards.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}

// orderDirection returns the SQL keyword for desc.
func orderDirection(desc bool) string {
	if desc {
		return "DESC"
	}
	return "ASC"
}

type scanner interface {
	Scan(dest ...any) error
}
