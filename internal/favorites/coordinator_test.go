package favorites

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"pgregory.net/rapid"

	"github.com/ayush/estate-market/internal/apierr"
	"github.com/ayush/estate-market/internal/models"
	"github.com/ayush/estate-market/internal/store/memstore"
)

type fixture struct {
	users    *memstore.Users
	listings *memstore.Listings
	coord    *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{users: memstore.NewUsers(), listings: memstore.NewListings()}
	f.coord = NewCoordinator(f.users, f.listings)
	return f
}

func (f *fixture) user(t require.TestingT, name string) string {
	u := &models.User{Username: name, Email: name + "@example.com", Mobile: fmt.Sprintf("9%09d", len(f.users.All())), Password: "x"}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u.ID.Hex()
}

func (f *fixture) listing(t require.TestingT, owner, name string) string {
	l := &models.Listing{UserRef: owner, Name: name, Type: models.ListingTypeSale, RegularPrice: 1000, ImageURLs: []string{"a.png"}}
	require.NoError(t, f.listings.Insert(context.Background(), l))
	return l.ID.Hex()
}

func ids(ls []models.Listing) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.ID.Hex())
	}
	return out
}

func TestAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")
	x := f.listing(t, u, "Seaside villa X")

	added, err := f.coord.Add(ctx, u, u, x)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = f.coord.Add(ctx, u, u, x)
	require.NoError(t, err)
	assert.False(t, added)

	got, err := f.coord.IDs(ctx, u, u)
	require.NoError(t, err)
	assert.Equal(t, []string{x}, got)
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")
	x := f.listing(t, u, "Seaside villa X")

	require.NoError(t, f.coord.Remove(ctx, u, u, x))
	_, err := f.coord.Add(ctx, u, u, x)
	require.NoError(t, err)
	require.NoError(t, f.coord.Remove(ctx, u, u, x))
	require.NoError(t, f.coord.Remove(ctx, u, u, x))

	got, err := f.coord.IDs(ctx, u, u)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAddListRemoveRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")
	a := f.listing(t, u, "Listing number A")
	b := f.listing(t, u, "Listing number B")

	before, err := f.coord.List(ctx, u, u)
	require.NoError(t, err)

	_, err = f.coord.Add(ctx, u, u, b)
	require.NoError(t, err)
	_, err = f.coord.Add(ctx, u, u, a)
	require.NoError(t, err)

	listed, err := f.coord.List(ctx, u, u)
	require.NoError(t, err)
	assert.Equal(t, []string{b, a}, ids(listed), "insertion order")

	require.NoError(t, f.coord.Remove(ctx, u, u, b))
	require.NoError(t, f.coord.Remove(ctx, u, u, a))
	after, err := f.coord.List(ctx, u, u)
	require.NoError(t, err)
	assert.Equal(t, ids(before), ids(after))
}

func TestAddMissingListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")

	_, err := f.coord.Add(ctx, u, u, primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, apierr.ErrNotFound)

	_, err = f.coord.Add(ctx, u, u, "not-an-id")
	assert.ErrorIs(t, err, apierr.ErrNotFound)
}

func TestOtherUsersFavoritesAreForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	x := f.listing(t, alice, "Seaside villa X")

	_, err := f.coord.Add(ctx, bob, alice, x)
	assert.ErrorIs(t, err, apierr.ErrForbidden)
	assert.ErrorIs(t, f.coord.Remove(ctx, bob, alice, x), apierr.ErrForbidden)
	_, err = f.coord.List(ctx, bob, alice)
	assert.ErrorIs(t, err, apierr.ErrForbidden)

	got, err := f.coord.IDs(ctx, alice, alice)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListUnknownUser(t *testing.T) {
	f := newFixture(t)
	ghost := primitive.NewObjectID().Hex()
	_, err := f.coord.List(context.Background(), ghost, ghost)
	assert.ErrorIs(t, err, apierr.ErrNotFound)
}

// Users A and B favorite X, A also favorites Y. Deleting X leaves A=[Y], B=[].
func TestCascadeDeleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	x := f.listing(t, a, "Seaside villa X")
	y := f.listing(t, a, "Mountain cabin Y")

	for _, step := range []struct{ user, listing string }{{a, x}, {a, y}, {b, x}} {
		_, err := f.coord.Add(ctx, step.user, step.user, step.listing)
		require.NoError(t, err)
	}
	n, err := f.coord.FavoritedBy(ctx, x)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	deleted, err := f.listings.Delete(ctx, x)
	require.NoError(t, err)
	require.True(t, deleted)
	require.NoError(t, f.coord.CascadeDeleted(ctx, x))

	got, err := f.coord.IDs(ctx, a, a)
	require.NoError(t, err)
	assert.Equal(t, []string{y}, got)
	got, err = f.coord.IDs(ctx, b, b)
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err = f.coord.FavoritedBy(ctx, x)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListDropsUnresolvedIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")
	x := f.listing(t, u, "Seaside villa X")
	y := f.listing(t, u, "Mountain cabin Y")
	for _, id := range []string{x, y} {
		_, err := f.coord.Add(ctx, u, u, id)
		require.NoError(t, err)
	}

	// Delete without cascading: List must still only return live listings.
	_, err := f.listings.Delete(ctx, x)
	require.NoError(t, err)

	listed, err := f.coord.List(ctx, u, u)
	require.NoError(t, err)
	assert.Equal(t, []string{y}, ids(listed))
}

// racingListings deletes the listing and runs the cascade right after the
// coordinator's first existence check, before its write lands.
type racingListings struct {
	*memstore.Listings
	users *memstore.Users
	once  sync.Once
}

func (r *racingListings) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := r.Listings.Exists(ctx, id)
	r.once.Do(func() {
		r.Listings.Delete(ctx, id)
		r.users.PullFavorites(ctx, []string{id})
	})
	return ok, err
}

func TestAddRacingDeleteLeavesNoDanglingFavorite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "alice")
	x := f.listing(t, u, "Seaside villa X")

	racing := &racingListings{Listings: f.listings, users: f.users}
	coord := NewCoordinator(f.users, racing)

	_, err := coord.Add(ctx, u, u, x)
	assert.ErrorIs(t, err, apierr.ErrNotFound)

	got, err := coord.IDs(ctx, u, u)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestConcurrentAddAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner")

	var fans []string
	for i := 0; i < 8; i++ {
		fans = append(fans, f.user(t, fmt.Sprintf("fan%d", i)))
	}
	for round := 0; round < 20; round++ {
		x := f.listing(t, owner, fmt.Sprintf("Contested listing %02d", round))

		var wg sync.WaitGroup
		for _, fan := range fans {
			wg.Add(1)
			go func(fan string) {
				defer wg.Done()
				f.coord.Add(ctx, fan, fan, x)
			}(fan)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.listings.Delete(ctx, x)
			f.coord.CascadeDeleted(ctx, x)
		}()
		wg.Wait()

		n, err := f.users.CountFavoritedBy(ctx, x)
		require.NoError(t, err)
		require.Zero(t, n, "round %d left a dangling favorite", round)
	}
}

// Favorites always equal the model set built from the same operation sequence,
// minus deleted listings, with no duplicates.
func TestFavoritesMatchModel(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		f := newFixture(t)
		u := f.user(rt, "alice")
		var pool []string
		for i := 0; i < 4; i++ {
			pool = append(pool, f.listing(rt, u, fmt.Sprintf("Generated listing %d", i)))
		}

		var model []string
		deleted := map[string]bool{}
		contains := func(id string) bool {
			for _, m := range model {
				if m == id {
					return true
				}
			}
			return false
		}

		steps := rapid.IntRange(1, 30).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			id := rapid.SampledFrom(pool).Draw(rt, "listing")
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				_, err := f.coord.Add(ctx, u, u, id)
				if deleted[id] {
					if !assert.ErrorIs(rt, err, apierr.ErrNotFound) {
						rt.FailNow()
					}
					continue
				}
				if err != nil {
					rt.Fatalf("add: %v", err)
				}
				if !contains(id) {
					model = append(model, id)
				}
			case 1:
				if err := f.coord.Remove(ctx, u, u, id); err != nil {
					rt.Fatalf("remove: %v", err)
				}
				model = without(model, id)
			case 2:
				f.listings.Delete(ctx, id)
				if err := f.coord.CascadeDeleted(ctx, id); err != nil {
					rt.Fatalf("cascade: %v", err)
				}
				deleted[id] = true
				model = without(model, id)
			}

			got, err := f.coord.IDs(ctx, u, u)
			if err != nil {
				rt.Fatalf("ids: %v", err)
			}
			if len(got) == 0 && len(model) == 0 {
				continue
			}
			if !assert.Equal(rt, model, got) {
				rt.FailNow()
			}
		}
	})
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
