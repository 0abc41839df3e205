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

// StoreRepo reads and writes the `stores` table and computes the rating
// aggregates derived from `ratings`.
type StoreRepo struct{ db *sql.DB }

func NewStoreRepo(db *sql.DB) *StoreRepo { return &StoreRepo{db: db} }

const storeColumns = "id, name, email, address, owner_id, created_at, updated_at"

var storeSortColumns = map[string]string{
	"name":        "s.name",
	"email":       "s.email",
	"address":     "s.address",
	"avgRating":   "avg_rating",
	"ratingCount": "rating_count",
	"createdAt":   "s.created_at",
}

// storeWriteErr maps index violations of a store insert/update.
func storeWriteErr(err error) error {
	switch {
	case isDuplicate(err, "uq_stores_owner"):
		return ErrOwnerHasStore
	case isDuplicate(err, ""):
		return ErrStoreEmailExists
	case isMissingReference(err):
		return ErrNotFound
	}
	return err
}

func scanStoreInto(s *model.Store, id, ownerID string, address sql.NullString) error {
	var err error
	if s.ID, err = uuid.Parse(id); err != nil {
		return err
	}
	if s.OwnerID, err = uuid.Parse(ownerID); err != nil {
		return err
	}
	s.Address = address.String
	return nil
}

func scanStore(row scanner) (*model.Store, error) {
	var (
		s           model.Store
		id, ownerID string
		address     sql.NullString
	)
	if err := row.Scan(&id, &s.Name, &s.Email, &address, &ownerID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if err := scanStoreInto(&s, id, ownerID, address); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts s.  Owner uniqueness is enforced by the unique index on
// owner_id; callers should still check ExistsForOwner first so the common
// case gets a friendly error without relying on the constraint.
func (r *StoreRepo) Create(ctx context.Context, s *model.Store) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.Email = normalizeEmail(s.Email)
	now := time.Now().UTC().Truncate(time.Second)

	const q = `INSERT INTO stores (id, name, email, address, owner_id, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		s.ID.String(), s.Name, s.Email, nullable(s.Address), s.OwnerID.String(), now, now)
	if err != nil {
		return storeWriteErr(err)
	}
	s.CreatedAt, s.UpdatedAt = now, now
	return nil
}

// GetByID fetches a store by id.
func (r *StoreRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Store, error) {
	q := "SELECT " + storeColumns + " FROM stores WHERE id = ?"
	s, err := scanStore(r.db.QueryRowContext(ctx, q, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// GetByIDAndOwner fetches a store only if it belongs to ownerID.
func (r *StoreRepo) GetByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*model.Store, error) {
	q := "SELECT " + storeColumns + " FROM stores WHERE id = ? AND owner_id = ?"
	s, err := scanStore(r.db.QueryRowContext(ctx, q, id.String(), ownerID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// ExistsForOwner reports whether ownerID already owns a store other than
// exclude.  Pass uuid.Nil to consider every store.
func (r *StoreRepo) ExistsForOwner(ctx context.Context, ownerID, exclude uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM stores WHERE owner_id = ? AND id <> ?)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, ownerID.String(), exclude.String()).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// aggregateQuery builds the store listing statement.  When viewer is set the
// viewer's own rating is fetched by a correlated subquery bound to the same
// statement, so the caller's id is a parameter and never spliced into SQL.
func aggregateQuery(viewer *uuid.UUID, where []string, whereArgs []any, order string) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(whereArgs)+1)

	b.WriteString(`SELECT s.id, s.name, s.email, s.address, s.owner_id, s.created_at, s.updated_at,
		COALESCE(AVG(r.rating_value), 0) AS avg_rating,
		COUNT(r.id) AS rating_count`)
	if viewer != nil {
		b.WriteString(`,
		COALESCE((SELECT ur.rating_value FROM ratings ur WHERE ur.store_id = s.id AND ur.user_id = ?), 0) AS user_rating`)
		args = append(args, viewer.String())
	}
	b.WriteString(`
	FROM stores s
	LEFT JOIN ratings r ON r.store_id = s.id`)
	if len(where) > 0 {
		b.WriteString("\n\tWHERE " + strings.Join(where, " AND "))
		args = append(args, whereArgs...)
	}
	b.WriteString("\n\tGROUP BY s.id")
	if order != "" {
		b.WriteString("\n\tORDER BY " + order)
	}
	return b.String(), args
}

func scanAggregate(row scanner, withViewer bool) (model.StoreAggregate, error) {
	var (
		a           model.StoreAggregate
		id, ownerID string
		address     sql.NullString
		userRating  int
	)
	dest := []any{&id, &a.Name, &a.Email, &address, &ownerID, &a.CreatedAt, &a.UpdatedAt, &a.AvgRating, &a.RatingCount}
	if withViewer {
		dest = append(dest, &userRating)
	}
	if err := row.Scan(dest...); err != nil {
		return a, err
	}
	if err := scanStoreInto(&a.Store, id, ownerID, address); err != nil {
		return a, err
	}
	if withViewer {
		a.UserRating = &userRating
	}
	return a, nil
}

func (r *StoreRepo) queryAggregates(ctx context.Context, viewer *uuid.UUID, where []string, args []any, order string) ([]model.StoreAggregate, error) {
	q, all := aggregateQuery(viewer, where, args, order)
	rows, err := r.db.QueryContext(ctx, q, all...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.StoreAggregate{}
	for rows.Next() {
		a, err := scanAggregate(rows, viewer != nil)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every store matching f with its average and rating count.
// A non-nil viewer adds the viewer's own rating (0 when none).
func (r *StoreRepo) List(ctx context.Context, f model.StoreFilter, viewer *uuid.UUID) ([]model.StoreAggregate, error) {
	var (
		where []string
		args  []any
	)
	if f.Search != "" {
		p := likePattern(f.Search)
		where = append(where, "(LOWER(s.name) LIKE ? OR LOWER(s.email) LIKE ? OR LOWER(s.address) LIKE ?)")
		args = append(args, p, p, p)
	}
	col, ok := storeSortColumns[f.Sort]
	if !ok {
		col = "s.name"
	}
	return r.queryAggregates(ctx, viewer, where, args, col+" "+orderDirection(f.Desc)+", s.id")
}

// GetAggregate returns one store with its aggregate.
func (r *StoreRepo) GetAggregate(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*model.StoreAggregate, error) {
	q, args := aggregateQuery(viewer, []string{"s.id = ?"}, []any{id.String()}, "")
	a, err := scanAggregate(r.db.QueryRowContext(ctx, q, args...), viewer != nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListByOwner returns the stores owned by ownerID with their aggregates.
func (r *StoreRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.StoreAggregate, error) {
	return r.queryAggregates(ctx, nil, []string{"s.owner_id = ?"}, []any{ownerID.String()}, "s.name ASC, s.id")
}

// Update writes name, email, address and owner of s.
func (r *StoreRepo) Update(ctx context.Context, s *model.Store) error {
	s.Email = normalizeEmail(s.Email)
	now := time.Now().UTC().Truncate(time.Second)
	const q = `UPDATE stores
	           SET name = ?, email = ?, address = ?, owner_id = ?, updated_at = ?
	           WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, q, s.Name, s.Email, nullable(s.Address), s.OwnerID.String(), now, s.ID.String()); err != nil {
		return storeWriteErr(err)
	}
	s.UpdatedAt = now
	return nil
}

// Delete removes a store; its ratings follow by cascade.
func (r *StoreRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stores WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByIDAndOwner removes a store provided it belongs to ownerID.  A store
// owned by someone else is reported as ErrNotFound so its existence is not
// disclosed.
func (r *StoreRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stores WHERE id = ? AND owner_id = ?`, id.String(), ownerID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
