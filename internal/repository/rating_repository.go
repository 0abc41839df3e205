package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/iliyamo/store-rating/internal/model"
)

// RatingRepo reads and writes the `ratings` table.
type RatingRepo struct{ db *sql.DB }

func NewRatingRepo(db *sql.DB) *RatingRepo { return &RatingRepo{db: db} }

// Upsert stores rt as the rating of rt.UserID for rt.StoreID in a single
// statement keyed on the unique (store_id, user_id) index, so two concurrent
// submissions can never produce two rows.  created is true when a new row
// was inserted.  A missing store or user yields ErrNotFound.
//
// MySQL reports 1 affected row for an insert, 2 for an update that changed
// the row and 0 for one that left it as is.  On the update path rt.ID is
// reloaded so it names the existing row.
func (r *RatingRepo) Upsert(ctx context.Context, rt *model.Rating) (created bool, err error) {
	if rt.ID == uuid.Nil {
		rt.ID = uuid.New()
	}
	const q = `INSERT INTO ratings (id, store_id, user_id, rating_value)
	           VALUES (?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE rating_value = VALUES(rating_value), updated_at = CURRENT_TIMESTAMP`
	res, err := r.db.ExecContext(ctx, q, rt.ID.String(), rt.StoreID.String(), rt.UserID.String(), rt.Value)
	if err != nil {
		if isMissingReference(err) {
			return false, ErrNotFound
		}
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	var id string
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM ratings WHERE store_id = ? AND user_id = ?`,
		rt.StoreID.String(), rt.UserID.String(),
	).Scan(&id)
	if err != nil {
		return false, err
	}
	if rt.ID, err = uuid.Parse(id); err != nil {
		return false, err
	}
	return false, nil
}

// ListByStore returns the ratings of a store joined with their authors,
// most recently changed first.
func (r *RatingRepo) ListByStore(ctx context.Context, storeID uuid.UUID) ([]model.RatingWithRater, error) {
	const q = `SELECT r.id, r.rating_value, r.created_at, r.updated_at, u.id, u.name, u.email
	           FROM ratings r
	           JOIN users u ON u.id = r.user_id
	           WHERE r.store_id = ?
	           ORDER BY r.updated_at DESC, r.id`
	rows, err := r.db.QueryContext(ctx, q, storeID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RatingWithRater{}
	for rows.Next() {
		var (
			rw          model.RatingWithRater
			id, raterID string
		)
		if err := rows.Scan(&id, &rw.Value, &rw.CreatedAt, &rw.UpdatedAt, &raterID, &rw.User.Name, &rw.User.Email); err != nil {
			return nil, err
		}
		if rw.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if rw.User.ID, err = uuid.Parse(raterID); err != nil {
			return nil, err
		}
		out = append(out, rw)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AverageForStore returns the average rating (0 when there are none) and the
// number of ratings of a store.
func (r *RatingRepo) AverageForStore(ctx context.Context, storeID uuid.UUID) (float64, int, error) {
	const q = `SELECT COALESCE(AVG(rating_value), 0), COUNT(*) FROM ratings WHERE store_id = ?`
	var (
		avg   float64
		count int
	)
	if err := r.db.QueryRowContext(ctx, q, storeID.String()).Scan(&avg, &count); err != nil {
		return 0, 0, err
	}
	return avg, count, nil
}

// StatsRepo computes the global counters of the admin dashboard.
type StatsRepo struct{ db *sql.DB }

func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// Counts returns the number of users, stores and ratings.
func (r *StatsRepo) Counts(ctx context.Context) (model.AdminStats, error) {
	const q = `SELECT
	             (SELECT COUNT(*) FROM users),
	             (SELECT COUNT(*) FROM stores),
	             (SELECT COUNT(*) FROM ratings)`
	var s model.AdminStats
	err := r.db.QueryRowContext(ctx, q).Scan(&s.TotalUsers, &s.TotalStores, &s.TotalRatings)
	return s, err
}
