package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/store-rating/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func dupErr(key string) error {
	return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key '" + key + "'"}
}

var fkErr = &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row: a foreign key constraint fails"}

func TestUserCreateNormalisesEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "Jane Doe", "jane@x.com", sqlmock.AnyArg(), "hash", "OWNER", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &model.User{Name: "Jane Doe", Email: "  Jane@X.com ", PasswordHash: "hash", Role: model.RoleOwner}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.Equal(t, "jane@x.com", u.Email)
	assert.False(t, u.CreatedAt.IsZero())
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).WillReturnError(dupErr("users.uq_users_email"))

	err := repo.Create(context.Background(), &model.User{Name: "a", Email: "a@x.com", Role: model.RoleUser})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserGetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ?")).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserGetByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ?")).
		WithArgs("jane@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "address", "password_hash", "role", "created_at", "updated_at"}).
			AddRow(id.String(), "Jane Doe", "jane@x.com", nil, "hash", "OWNER", now, now))

	u, err := repo.GetByEmail(context.Background(), "JANE@x.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, model.RoleOwner, u.Role)
	assert.Equal(t, "", u.Address)
	assert.Equal(t, "hash", u.PasswordHash)
}

func TestUserListFiltersAndSort(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	now := time.Now().UTC()
	ownerID, userID, storeID := uuid.New(), uuid.New(), uuid.New()

	cols := []string{"id", "name", "email", "address", "password_hash", "role", "created_at", "updated_at", "s.id", "s.name", "avg"}
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN stores s ON s.owner_id = u.id WHERE LOWER(u.name) LIKE ? AND u.role = ? ORDER BY u.email DESC, u.id")).
		WithArgs("%ja\\_ne%", "OWNER").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(ownerID.String(), "Jane", "jane@x.com", "1 Road", "h", "OWNER", now, now, storeID.String(), "Jane's Shop", 3.5).
			AddRow(userID.String(), "Jan", "jan@x.com", nil, "h", "OWNER", now, now, nil, nil, 0.0))

	items, err := repo.List(context.Background(), model.UserFilter{Name: "Ja_ne", Role: model.RoleOwner, Sort: "email", Desc: true})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].Store)
	assert.Equal(t, storeID, items[0].Store.ID)
	assert.Equal(t, 3.5, items[0].Store.AvgRating)
	assert.Nil(t, items[1].Store)
}

func TestUserListUnknownSortFallsBackToName(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY u.name ASC, u.id")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	items, err := repo.List(context.Background(), model.UserFilter{Sort: "password_hash; DROP TABLE users"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestUserDeleteMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = ?")).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), uuid.New()), ErrNotFound)
}

func TestStoreCreateErrorMapping(t *testing.T) {
	cases := map[string]struct {
		err  error
		want error
	}{
		"second store for owner": {dupErr("stores.uq_stores_owner"), ErrOwnerHasStore},
		"duplicate store email":  {dupErr("stores.uq_stores_email"), ErrStoreEmailExists},
		"unknown owner":          {fkErr, ErrNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewStoreRepo(db)
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stores")).WillReturnError(tc.err)

			err := repo.Create(context.Background(), &model.Store{Name: "Shop", Email: "s@x.com", OwnerID: uuid.New()})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestStoreExistsForOwner(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStoreRepo(db)
	owner, exclude := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM stores WHERE owner_id = ? AND id <> ?)")).
		WithArgs(owner.String(), exclude.String()).
		WillReturnRows(sqlmock.NewRows([]string{"e"}).AddRow(true))

	ok, err := repo.ExistsForOwner(context.Background(), owner, exclude)
	require.NoError(t, err)
	assert.True(t, ok)
}

var aggCols = []string{"id", "name", "email", "address", "owner_id", "created_at", "updated_at", "avg_rating", "rating_count"}

func TestStoreListWithViewerBindsCorrelatedSubquery(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStoreRepo(db)
	viewer, storeID, ownerID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE ur.store_id = s.id AND ur.user_id = ?), 0) AS user_rating")).
		WithArgs(viewer.String(), "%shop%", "%shop%", "%shop%").
		WillReturnRows(sqlmock.NewRows(append(aggCols, "user_rating")).
			AddRow(storeID.String(), "Shop", "s@x.com", "Main St", ownerID.String(), now, now, 0.0, 0, 0))

	list, err := repo.List(context.Background(), model.StoreFilter{Search: "Shop"}, &viewer)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 0.0, list[0].AvgRating)
	assert.Equal(t, 0, list[0].RatingCount)
	require.NotNil(t, list[0].UserRating)
	assert.Equal(t, 0, *list[0].UserRating)
}

func TestStoreListWithoutViewer(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStoreRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY s.id ORDER BY avg_rating DESC, s.id")).
		WithArgs().
		WillReturnRows(sqlmock.NewRows(aggCols).
			AddRow(uuid.NewString(), "A", "a@x.com", nil, uuid.NewString(), now, now, 4.5, 2))

	list, err := repo.List(context.Background(), model.StoreFilter{Sort: "avgRating", Desc: true}, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 4.5, list[0].AvgRating)
	assert.Equal(t, 2, list[0].RatingCount)
	assert.Nil(t, list[0].UserRating)
}

func TestStoreGetAggregateNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStoreRepo(db)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.id = ? GROUP BY s.id")).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(aggCols))

	_, err := repo.GetAggregate(context.Background(), id, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDeleteByIDAndOwnerNotOwned(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStoreRepo(db)
	id, owner := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM stores WHERE id = ? AND owner_id = ?")).
		WithArgs(id.String(), owner.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.DeleteByIDAndOwner(context.Background(), id, owner), ErrNotFound)
}

func TestRatingUpsertReportsCreatedOrUpdated(t *testing.T) {
	cases := map[string]struct {
		affected int64
		created  bool
	}{
		"inserted":  {1, true},
		"updated":   {2, false},
		"unchanged": {0, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewRatingRepo(db)
			storeID, userID := uuid.New(), uuid.New()

			mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE rating_value = VALUES(rating_value)")).
				WithArgs(sqlmock.AnyArg(), storeID.String(), userID.String(), 4).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))
			if !tc.created {
				mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM ratings WHERE store_id = ? AND user_id = ?")).
					WithArgs(storeID.String(), userID.String()).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()))
			}

			created, err := repo.Upsert(context.Background(), &model.Rating{StoreID: storeID, UserID: userID, Value: 4})
			require.NoError(t, err)
			assert.Equal(t, tc.created, created)
		})
	}
}

func TestRatingUpsertUpdateKeepsExistingID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRatingRepo(db)
	storeID, userID, existing := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ratings")).
		WithArgs(sqlmock.AnyArg(), storeID.String(), userID.String(), 2).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM ratings WHERE store_id = ? AND user_id = ?")).
		WithArgs(storeID.String(), userID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(existing.String()))

	rt := &model.Rating{StoreID: storeID, UserID: userID, Value: 2}
	created, err := repo.Upsert(context.Background(), rt)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing, rt.ID)
}

func TestRatingUpsertUnknownStore(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRatingRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ratings")).WillReturnError(fkErr)

	_, err := repo.Upsert(context.Background(), &model.Rating{StoreID: uuid.New(), UserID: uuid.New(), Value: 3})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRatingAverageForStoreWithoutRatings(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRatingRepo(db)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(AVG(rating_value), 0), COUNT(*) FROM ratings WHERE store_id = ?")).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"avg", "count"}).AddRow(0.0, 0))

	avg, count, err := repo.AverageForStore(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0.0, avg)
	assert.Equal(t, 0, count)
}

func TestRatingListByStore(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRatingRepo(db)
	storeID, ratingID, raterID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("JOIN users u ON u.id = r.user_id WHERE r.store_id = ? ORDER BY r.updated_at DESC")).
		WithArgs(storeID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "v", "c", "u", "uid", "name", "email"}).
			AddRow(ratingID.String(), 5, now, now, raterID.String(), "Bob", "bob@x.com"))

	list, err := repo.ListByStore(context.Background(), storeID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 5, list[0].Value)
	assert.Equal(t, raterID, list[0].User.ID)
	assert.Equal(t, "Bob", list[0].User.Name)
}

func TestStatsCounts(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStatsRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("(SELECT COUNT(*) FROM users)")).
		WillReturnRows(sqlmock.NewRows([]string{"u", "s", "r"}).AddRow(3, 1, 7))

	s, err := repo.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.AdminStats{TotalUsers: 3, TotalStores: 1, TotalRatings: 7}, s)
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\% off%`, likePattern(" 50% OFF "))
	assert.Equal(t, `%a\_b%`, likePattern("a_b"))
}
