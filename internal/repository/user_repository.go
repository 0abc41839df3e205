package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/store-rating/internal/model"
)

// UserRepo reads and writes the `users` table.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = "id, name, email, address, password_hash, role, created_at, updated_at"

// userSortColumns whitelists the ORDER BY targets of List.
var userSortColumns = map[string]string{
	"name":      "u.name",
	"email":     "u.email",
	"address":   "u.address",
	"role":      "u.role",
	"createdAt": "u.created_at",
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nullable(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func scanUser(s scanner) (*model.User, error) {
	var (
		u       model.User
		id      string
		address sql.NullString
		role    string
	)
	if err := s.Scan(&id, &u.Name, &u.Email, &address, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	u.ID = parsed
	u.Address = address.String
	u.Role = model.Role(role)
	return &u, nil
}

// Create inserts u.  A zero ID is replaced by a fresh UUID; the email is
// normalised and the timestamps are filled in on success.  PasswordHash must
// already be a bcrypt hash.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = normalizeEmail(u.Email)
	now := time.Now().UTC().Truncate(time.Second)

	const q = `INSERT INTO users (id, name, email, address, password_hash, role, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		u.ID.String(), u.Name, u.Email, nullable(u.Address), u.PasswordHash, string(u.Role), now, now)
	if err != nil {
		if isDuplicate(err, "") {
			return ErrEmailExists
		}
		return err
	}
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	q := "SELECT " + userColumns + " FROM users WHERE id = ? LIMIT 1"
	u, err := scanUser(r.db.QueryRowContext(ctx, q, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// GetByEmail fetches a user by normalised email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	q := "SELECT " + userColumns + " FROM users WHERE email = ? LIMIT 1"
	u, err := scanUser(r.db.QueryRowContext(ctx, q, normalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// listSelect joins every user with the store they own (if any) and that
// store's average rating.
const listSelect = `SELECT u.id, u.name, u.email, u.address, u.password_hash, u.role, u.created_at, u.updated_at,
		s.id, s.name,
		(SELECT COALESCE(AVG(r.rating_value), 0) FROM ratings r WHERE r.store_id = s.id)
	FROM users u
	LEFT JOIN stores s ON s.owner_id = u.id`

func scanListItem(s scanner) (model.UserListItem, error) {
	var (
		item             model.UserListItem
		id, role         string
		address          sql.NullString
		storeID, storeNm sql.NullString
		avg              sql.NullFloat64
	)
	err := s.Scan(&id, &item.Name, &item.Email, &address, &item.PasswordHash, &role,
		&item.CreatedAt, &item.UpdatedAt, &storeID, &storeNm, &avg)
	if err != nil {
		return item, err
	}
	if item.ID, err = uuid.Parse(id); err != nil {
		return item, err
	}
	item.Address = address.String
	item.Role = model.Role(role)
	if storeID.Valid {
		sid, err := uuid.Parse(storeID.String)
		if err != nil {
			return item, err
		}
		item.Store = &model.OwnedStoreSummary{ID: sid, Name: storeNm.String, AvgRating: avg.Float64}
	}
	return item, nil
}

// List returns users matching f.  Owners carry a summary of their store.
func (r *UserRepo) List(ctx context.Context, f model.UserFilter) ([]model.UserListItem, error) {
	where := []string{}
	args := []any{}
	if f.Name != "" {
		where = append(where, "LOWER(u.name) LIKE ?")
		args = append(args, likePattern(f.Name))
	}
	if f.Email != "" {
		where = append(where, "LOWER(u.email) LIKE ?")
		args = append(args, likePattern(f.Email))
	}
	if f.Address != "" {
		where = append(where, "LOWER(u.address) LIKE ?")
		args = append(args, likePattern(f.Address))
	}
	if f.Role != "" {
		where = append(where, "u.role = ?")
		args = append(args, string(f.Role))
	}

	q := listSelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	col, ok := userSortColumns[f.Sort]
	if !ok {
		col = "u.name"
	}
	q += " ORDER BY " + col + " " + orderDirection(f.Desc) + ", u.id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.UserListItem{}
	for rows.Next() {
		item, err := scanListItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetListItem is the single-user form of List.
func (r *UserRepo) GetListItem(ctx context.Context, id uuid.UUID) (*model.UserListItem, error) {
	item, err := scanListItem(r.db.QueryRowContext(ctx, listSelect+" WHERE u.id = ?", id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Update writes name, email, address and role of u.  Existence is the
// caller's concern; a colliding email yields ErrEmailExists.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	u.Email = normalizeEmail(u.Email)
	now := time.Now().UTC().Truncate(time.Second)
	const q = `UPDATE users
	           SET name = ?, email = ?, address = ?, role = ?, updated_at = ?
	           WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, u.Name, u.Email, nullable(u.Address), string(u.Role), now, u.ID.String())
	if err != nil {
		if isDuplicate(err, "") {
			return ErrEmailExists
		}
		return err
	}
	u.UpdatedAt = now
	return nil
}

// UpdatePassword replaces the stored hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	const q = `UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, hash, id.String())
	return err
}

// Delete removes a user.  Stores they own and ratings they made go with
// them through ON DELETE CASCADE.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
