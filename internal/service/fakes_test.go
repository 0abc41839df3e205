package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/store-rating/internal/model"
	"github.com/iliyamo/store-rating/internal/queue"
	"github.com/iliyamo/store-rating/internal/repository"
)

// memDB mimics the MySQL schema: unique emails, one store per owner, one
// rating per (store, user) and ON DELETE CASCADE.
type memDB struct {
	mu      sync.Mutex
	users   map[uuid.UUID]model.User
	stores  map[uuid.UUID]model.Store
	ratings map[ratingKey]model.Rating
	clock   time.Time
}

type ratingKey struct{ store, user uuid.UUID }

func newMemDB() *memDB {
	return &memDB{
		users:   map[uuid.UUID]model.User{},
		stores:  map[uuid.UUID]model.Store{},
		ratings: map[ratingKey]model.Rating{},
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp so ordering is deterministic.
func (db *memDB) tick() time.Time {
	db.clock = db.clock.Add(time.Second)
	return db.clock
}

type fakeUsers struct{ db *memDB }
type fakeStores struct{ db *memDB }
type fakeRatings struct{ db *memDB }
type fakeStats struct{ db *memDB }

func (f fakeUsers) emailOwner(email string) (uuid.UUID, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	for id, u := range f.db.users {
		if u.Email == email {
			return id, true
		}
	}
	return uuid.Nil, false
}

func (f fakeUsers) Create(_ context.Context, u *model.User) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if _, ok := f.emailOwner(u.Email); ok {
		return repository.ErrEmailExists
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = f.db.tick()
	u.UpdatedAt = u.CreatedAt
	f.db.users[u.ID] = *u
	return nil
}

func (f fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	id, ok := f.emailOwner(email)
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := f.db.users[id]
	return &u, nil
}

func (f fakeUsers) listItem(u model.User) model.UserListItem {
	item := model.UserListItem{User: u}
	for _, s := range f.db.stores {
		if s.OwnerID == u.ID {
			avg, _ := f.db.average(s.ID)
			item.Store = &model.OwnedStoreSummary{ID: s.ID, Name: s.Name, AvgRating: avg}
		}
	}
	return item
}

func (f fakeUsers) List(_ context.Context, flt model.UserFilter) ([]model.UserListItem, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := []model.UserListItem{}
	for _, u := range f.db.users {
		if flt.Role != "" && u.Role != flt.Role {
			continue
		}
		if flt.Name != "" && !strings.Contains(strings.ToLower(u.Name), strings.ToLower(flt.Name)) {
			continue
		}
		out = append(out, f.listItem(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f fakeUsers) GetListItem(_ context.Context, id uuid.UUID) (*model.UserListItem, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	item := f.listItem(u)
	return &item, nil
}

func (f fakeUsers) Update(_ context.Context, u *model.User) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if id, ok := f.emailOwner(u.Email); ok && id != u.ID {
		return repository.ErrEmailExists
	}
	cur := f.db.users[u.ID]
	u.PasswordHash = cur.PasswordHash
	u.UpdatedAt = f.db.tick()
	f.db.users[u.ID] = *u
	return nil
}

func (f fakeUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	f.db.users[id] = u
	return nil
}

func (f fakeUsers) Delete(_ context.Context, id uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.db.users, id)
	for sid, s := range f.db.stores {
		if s.OwnerID == id {
			f.db.deleteStore(sid)
		}
	}
	for k := range f.db.ratings {
		if k.user == id {
			delete(f.db.ratings, k)
		}
	}
	return nil
}

func (db *memDB) deleteStore(id uuid.UUID) {
	delete(db.stores, id)
	for k := range db.ratings {
		if k.store == id {
			delete(db.ratings, k)
		}
	}
}

func (db *memDB) average(storeID uuid.UUID) (float64, int) {
	var sum, n int
	for k, r := range db.ratings {
		if k.store == storeID {
			sum += r.Value
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return float64(sum) / float64(n), n
}

func (db *memDB) aggregate(s model.Store, viewer *uuid.UUID) model.StoreAggregate {
	avg, n := db.average(s.ID)
	a := model.StoreAggregate{Store: s, AvgRating: avg, RatingCount: n}
	if viewer != nil {
		v := db.ratings[ratingKey{s.ID, *viewer}].Value
		a.UserRating = &v
	}
	return a
}

func (f fakeStores) checkUnique(s *model.Store) error {
	if _, ok := f.db.users[s.OwnerID]; !ok {
		return repository.ErrNotFound
	}
	for id, other := range f.db.stores {
		if id == s.ID {
			continue
		}
		if other.OwnerID == s.OwnerID {
			return repository.ErrOwnerHasStore
		}
		if other.Email == s.Email {
			return repository.ErrStoreEmailExists
		}
	}
	return nil
}

func (f fakeStores) Create(_ context.Context, s *model.Store) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if err := f.checkUnique(s); err != nil {
		return err
	}
	s.CreatedAt = f.db.tick()
	s.UpdatedAt = s.CreatedAt
	f.db.stores[s.ID] = *s
	return nil
}

func (f fakeStores) GetByID(_ context.Context, id uuid.UUID) (*model.Store, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.stores[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (f fakeStores) GetByIDAndOwner(_ context.Context, id, ownerID uuid.UUID) (*model.Store, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.stores[id]
	if !ok || s.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (f fakeStores) ExistsForOwner(_ context.Context, ownerID, exclude uuid.UUID) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for id, s := range f.db.stores {
		if s.OwnerID == ownerID && id != exclude {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeStores) List(_ context.Context, flt model.StoreFilter, viewer *uuid.UUID) ([]model.StoreAggregate, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := []model.StoreAggregate{}
	for _, s := range f.db.stores {
		if flt.Search != "" && !strings.Contains(strings.ToLower(s.Name+" "+s.Address), strings.ToLower(flt.Search)) {
			continue
		}
		out = append(out, f.db.aggregate(s, viewer))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f fakeStores) GetAggregate(_ context.Context, id uuid.UUID, viewer *uuid.UUID) (*model.StoreAggregate, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.stores[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a := f.db.aggregate(s, viewer)
	return &a, nil
}

func (f fakeStores) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]model.StoreAggregate, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := []model.StoreAggregate{}
	for _, s := range f.db.stores {
		if s.OwnerID == ownerID {
			out = append(out, f.db.aggregate(s, nil))
		}
	}
	return out, nil
}

func (f fakeStores) Update(_ context.Context, s *model.Store) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	if err := f.checkUnique(s); err != nil {
		return err
	}
	s.UpdatedAt = f.db.tick()
	f.db.stores[s.ID] = *s
	return nil
}

func (f fakeStores) Delete(_ context.Context, id uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.stores[id]; !ok {
		return repository.ErrNotFound
	}
	f.db.deleteStore(id)
	return nil
}

func (f fakeStores) DeleteByIDAndOwner(_ context.Context, id, ownerID uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.stores[id]
	if !ok || s.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	f.db.deleteStore(id)
	return nil
}

func (f fakeRatings) Upsert(_ context.Context, r *model.Rating) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.stores[r.StoreID]; !ok {
		return false, repository.ErrNotFound
	}
	if _, ok := f.db.users[r.UserID]; !ok {
		return false, repository.ErrNotFound
	}
	key := ratingKey{r.StoreID, r.UserID}
	now := f.db.tick()
	if cur, ok := f.db.ratings[key]; ok {
		cur.Value = r.Value
		cur.UpdatedAt = now
		f.db.ratings[key] = cur
		r.ID = cur.ID
		return false, nil
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt, r.UpdatedAt = now, now
	f.db.ratings[key] = *r
	return true, nil
}

func (f fakeRatings) ListByStore(_ context.Context, storeID uuid.UUID) ([]model.RatingWithRater, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := []model.RatingWithRater{}
	for k, r := range f.db.ratings {
		if k.store != storeID {
			continue
		}
		u := f.db.users[k.user]
		out = append(out, model.RatingWithRater{
			ID: r.ID, Value: r.Value, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
			User: model.Rater{ID: u.ID, Name: u.Name, Email: u.Email},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f fakeRatings) AverageForStore(_ context.Context, storeID uuid.UUID) (float64, int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	avg, n := f.db.average(storeID)
	return avg, n, nil
}

func (f fakeStats) Counts(context.Context) (model.AdminStats, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return model.AdminStats{
		TotalUsers:   len(f.db.users),
		TotalStores:  len(f.db.stores),
		TotalRatings: len(f.db.ratings),
	}, nil
}

func (db *memDB) ratingCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.ratings)
}

type fakePublisher struct {
	events chan queue.RatingSubmittedEvent
}

func (p *fakePublisher) PublishRatingSubmitted(_ context.Context, ev queue.RatingSubmittedEvent) error {
	p.events <- ev
	return nil
}

type countingRecorder struct {
	mu      sync.Mutex
	created int
	updated int
}

func (c *countingRecorder) IncSubmitted(created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if created {
		c.created++
	} else {
		c.updated++
	}
}
