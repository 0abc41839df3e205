package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/store-rating/internal/model"
	"github.com/iliyamo/store-rating/internal/utils"
)

// ErrSeedOwnerRole is returned by Seed when the owner email already belongs
// to an account that is not a store owner.
var ErrSeedOwnerRole = errors.New("seed owner is not a store owner")

// SeedAccount describes one account created by Seed.
type SeedAccount struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
}

// SeedData is the initial data set: an admin, an owner with one store and a
// regular user.  Admin accounts cannot be created through the API, so this
// is how the first admin comes to exist.
type SeedData struct {
	Admin      SeedAccount
	Owner      SeedAccount
	User       SeedAccount
	StoreName  string
	StoreEmail string
	StoreAddr  string
	BcryptCost int
}

// DefaultSeed returns the development data set with the given passwords.
func DefaultSeed(adminPass, ownerPass, userPass string, cost int) SeedData {
	return SeedData{
		Admin:      SeedAccount{Name: "Admin User", Email: "admin@example.com", Password: adminPass, Role: model.RoleAdmin},
		Owner:      SeedAccount{Name: "Store Owner", Email: "owner@example.com", Password: ownerPass, Role: model.RoleOwner},
		User:       SeedAccount{Name: "Normal User", Email: "user@example.com", Password: userPass, Role: model.RoleUser},
		StoreName:  "Store One",
		StoreEmail: "storeone@example.com",
		StoreAddr:  "123 Store St",
		BcryptCost: cost,
	}
}

// Seed inserts the data set inside one transaction.  Rows whose email already
// exists are left untouched, so running it twice is harmless.
func Seed(ctx context.Context, db *sql.DB, data SeedData) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	for _, acc := range []SeedAccount{data.Admin, data.Owner, data.User} {
		if err = seedAccount(ctx, tx, acc, data.BcryptCost); err != nil {
			return err
		}
	}

	var ownerID, role string
	err = tx.QueryRowContext(ctx, `SELECT id, role FROM users WHERE email = ?`, data.Owner.Email).Scan(&ownerID, &role)
	if err != nil {
		return fmt.Errorf("load seeded owner: %w", err)
	}
	// An existing account with the owner's email keeps its role; a store
	// must never hang off a non-owner.
	if model.Role(role) != model.RoleOwner {
		return fmt.Errorf("%w: %s has role %s", ErrSeedOwnerRole, data.Owner.Email, role)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO stores (id, name, email, address, owner_id) VALUES (?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE id = id`,
		uuid.NewString(), data.StoreName, data.StoreEmail, data.StoreAddr, ownerID)
	if err != nil {
		return fmt.Errorf("seed store: %w", err)
	}
	return nil
}

func seedAccount(ctx context.Context, tx *sql.Tx, acc SeedAccount, cost int) error {
	hash, err := utils.HashPassword(acc.Password, cost)
	if err != nil {
		return fmt.Errorf("hash password for %s: %w", acc.Email, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, role) VALUES (?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE id = id`,
		uuid.NewString(), acc.Name, acc.Email, hash, string(acc.Role))
	if err != nil {
		return fmt.Errorf("seed user %s: %w", acc.Email, err)
	}
	return nil
}
