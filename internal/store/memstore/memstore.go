// Package memstore is an in-memory stand-in for the MongoDB stores, used by
// service tests. Each method is atomic on its own, which is the same guarantee
// the single-document MongoDB commands give.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/estate-market/internal/models"
	"github.com/ayush/estate-market/internal/query"
	"github.com/ayush/estate-market/internal/store"
)

// clock hands out strictly increasing timestamps so creation order is
// always visible in createdAt.
type clock struct {
	last time.Time
}

func (c *clock) now() time.Time {
	t := time.Now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

func parseID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	return oid, err == nil
}

// Listings mirrors store.ListingStore.
type Listings struct {
	mu    sync.Mutex
	clock clock
	docs  map[primitive.ObjectID]models.Listing
}

func NewListings() *Listings {
	return &Listings{docs: map[primitive.ObjectID]models.Listing{}}
}

func (s *Listings) Insert(_ context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = primitive.NewObjectID()
	l.CreatedAt = s.clock.now()
	l.UpdatedAt = l.CreatedAt
	s.docs[l.ID] = cloneListing(*l)
	return nil
}

func (s *Listings) GetByID(_ context.Context, id string) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oid, ok := parseID(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	l, ok := s.docs[oid]
	if !ok {
		return nil, store.ErrNotFound
	}
	l = cloneListing(l)
	return &l, nil
}

func (s *Listings) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oid, ok := parseID(id)
	if !ok {
		return false, nil
	}
	_, ok = s.docs[oid]
	return ok, nil
}

func (s *Listings) Replace(_ context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.docs[l.ID]
	if !ok || cur.UserRef != l.UserRef {
		return store.ErrNotFound
	}
	l.CreatedAt = cur.CreatedAt
	l.UpdatedAt = s.clock.now()
	s.docs[l.ID] = cloneListing(*l)
	return nil
}

func (s *Listings) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oid, ok := parseID(id)
	if !ok {
		return false, nil
	}
	if _, ok := s.docs[oid]; !ok {
		return false, nil
	}
	delete(s.docs, oid)
	return true, nil
}

func (s *Listings) Search(_ context.Context, p query.Params) ([]models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Listing{}
	for _, l := range s.docs {
		if p.Matches(l) {
			out = append(out, cloneListing(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return p.Less(out[i], out[j]) })
	if p.StartIndex >= len(out) {
		return []models.Listing{}, nil
	}
	out = out[p.StartIndex:]
	if len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func (s *Listings) FindByIDs(_ context.Context, ids []string) ([]models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Listing{}
	seen := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		oid, ok := parseID(id)
		if !ok || seen[oid] {
			continue
		}
		seen[oid] = true
		if l, ok := s.docs[oid]; ok {
			out = append(out, cloneListing(l))
		}
	}
	return out, nil
}

func (s *Listings) ListByOwner(_ context.Context, userID string) ([]models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Listing{}
	for _, l := range s.docs {
		if l.UserRef == userID {
			out = append(out, cloneListing(l))
		}
	}
	p := query.Defaults()
	sort.Slice(out, func(i, j int) bool { return p.Less(out[i], out[j]) })
	return out, nil
}

func (s *Listings) DeleteByOwner(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for oid, l := range s.docs {
		if l.UserRef == userID {
			ids = append(ids, oid.Hex())
			delete(s.docs, oid)
		}
	}
	return ids, nil
}

// Len reports how many listings are stored.
func (s *Listings) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func cloneListing(l models.Listing) models.Listing {
	l.ImageURLs = slices.Clone(l.ImageURLs)
	return l
}

// Users mirrors store.UserStore.
type Users struct {
	mu    sync.Mutex
	clock clock
	docs  map[primitive.ObjectID]models.User
}

func NewUsers() *Users {
	return &Users{docs: map[primitive.ObjectID]models.User{}}
}

func (s *Users) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.docs {
		if other.Email == u.Email || other.Username == u.Username || other.Mobile == u.Mobile {
			return store.ErrDuplicate
		}
	}
	u.ID = primitive.NewObjectID()
	u.CreatedAt = s.clock.now()
	u.UpdatedAt = u.CreatedAt
	if u.Avatar == "" {
		u.Avatar = models.DefaultAvatar
	}
	if u.Favorites == nil {
		u.Favorites = []primitive.ObjectID{}
	}
	s.docs[u.ID] = cloneUser(*u)
	return nil
}

func (s *Users) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.docs {
		if u.Email == email {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Users) Update(_ context.Context, id string, up models.UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(id)
	if err != nil {
		return nil, err
	}
	for oid, other := range s.docs {
		if oid == u.ID {
			continue
		}
		if (up.Email != nil && other.Email == *up.Email) || (up.Username != nil && other.Username == *up.Username) {
			return nil, store.ErrDuplicate
		}
	}
	if up.Username != nil {
		u.Username = *up.Username
	}
	if up.Email != nil {
		u.Email = *up.Email
	}
	if up.PasswordHash != nil {
		u.Password = *up.PasswordHash
	}
	if up.Avatar != nil {
		u.Avatar = *up.Avatar
	}
	u.UpdatedAt = s.clock.now()
	s.docs[u.ID] = cloneUser(u)
	return &u, nil
}

func (s *Users) SubmitDocuments(_ context.Context, id string, sub models.DocumentSubmission) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(id)
	if err != nil {
		return nil, err
	}
	for oid, other := range s.docs {
		if oid == u.ID {
			continue
		}
		if (sub.PanNumber != "" && other.PanNumber == sub.PanNumber) ||
			(sub.AadharNumber != "" && other.AadharNumber == sub.AadharNumber) {
			return nil, store.ErrDuplicate
		}
	}
	if sub.PanNumber != "" {
		u.PanNumber, u.PanCardURL, u.PanVerified = sub.PanNumber, sub.PanCardURL, false
	}
	if sub.AadharNumber != "" {
		u.AadharNumber, u.AadharDocURL, u.IsAadharVerified = sub.AadharNumber, sub.AadharDocURL, false
	}
	u.UpdatedAt = s.clock.now()
	s.docs[u.ID] = cloneUser(u)
	return &u, nil
}

func (s *Users) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(id)
	if err != nil {
		return err
	}
	delete(s.docs, u.ID)
	return nil
}

func (s *Users) AddFavorite(_ context.Context, userID, listingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(userID)
	if err != nil {
		return false, err
	}
	lid, ok := parseID(listingID)
	if !ok {
		return false, store.ErrNotFound
	}
	if slices.Contains(u.Favorites, lid) {
		return false, nil
	}
	u.Favorites = append(u.Favorites, lid)
	s.docs[u.ID] = u
	return true, nil
}

func (s *Users) RemoveFavorite(_ context.Context, userID, listingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(userID)
	if err != nil {
		return err
	}
	lid, ok := parseID(listingID)
	if !ok {
		return nil
	}
	u.Favorites = slices.DeleteFunc(u.Favorites, func(oid primitive.ObjectID) bool { return oid == lid })
	s.docs[u.ID] = u
	return nil
}

func (s *Users) Favorites(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(u.Favorites))
	for _, oid := range u.Favorites {
		ids = append(ids, oid.Hex())
	}
	return ids, nil
}

func (s *Users) PullFavorites(_ context.Context, listingIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := map[primitive.ObjectID]bool{}
	for _, id := range listingIDs {
		if oid, ok := parseID(id); ok {
			drop[oid] = true
		}
	}
	var touched int64
	for oid, u := range s.docs {
		before := len(u.Favorites)
		u.Favorites = slices.DeleteFunc(u.Favorites, func(f primitive.ObjectID) bool { return drop[f] })
		if len(u.Favorites) != before {
			touched++
			s.docs[oid] = u
		}
	}
	return touched, nil
}

func (s *Users) CountFavoritedBy(_ context.Context, listingID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lid, ok := parseID(listingID)
	if !ok {
		return 0, nil
	}
	var n int64
	for _, u := range s.docs {
		if slices.Contains(u.Favorites, lid) {
			n++
		}
	}
	return n, nil
}

// All returns a snapshot of every stored user.
func (s *Users) All() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.docs))
	for _, u := range s.docs {
		out = append(out, cloneUser(u))
	}
	return out
}

func (s *Users) get(id string) (models.User, error) {
	oid, ok := parseID(id)
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	u, ok := s.docs[oid]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return cloneUser(u), nil
}

func cloneUser(u models.User) models.User {
	u.Favorites = slices.Clone(u.Favorites)
	return u
}
