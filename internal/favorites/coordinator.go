// Package favorites maintains the user -> listing favorite relation.
//
// Favorites live only on the user document as a duplicate-free, insertion
// ordered id list. Every mutation is one atomic store command; there is no
// in-process locking. Two rules keep the set free of deleted listings:
//
//   - listing deletion removes the document first, then synchronously pulls
//     the id from every user (CascadeDeleted);
//   - Add writes the id, then re-checks the listing and pulls the id back if
//     it has disappeared in the meantime.
package favorites

import (
	"context"
	"errors"
	"log"

	"github.com/ayush/estate-market/internal/apierr"
	"github.com/ayush/estate-market/internal/models"
	"github.com/ayush/estate-market/internal/store"
)

// UserFavorites is the favorites side of the user store.
type UserFavorites interface {
	AddFavorite(ctx context.Context, userID, listingID string) (bool, error)
	RemoveFavorite(ctx context.Context, userID, listingID string) error
	Favorites(ctx context.Context, userID string) ([]string, error)
	PullFavorites(ctx context.Context, listingIDs []string) (int64, error)
	CountFavoritedBy(ctx context.Context, listingID string) (int64, error)
}

// ListingLookup is the read side of the listing store the coordinator needs.
type ListingLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Listing, error)
}

// Coordinator owns every change to the favorite relation.
type Coordinator struct {
	users    UserFavorites
	listings ListingLookup
}

func NewCoordinator(users UserFavorites, listings ListingLookup) *Coordinator {
	return &Coordinator{users: users, listings: listings}
}

// Add favorites listingID for userID. Adding an existing favorite succeeds
// and reports added=false.
func (c *Coordinator) Add(ctx context.Context, actor, userID, listingID string) (added bool, err error) {
	if actor != userID {
		return false, apierr.Forbidden("You can only change your own favorites")
	}
	if err := c.requireListing(ctx, listingID); err != nil {
		return false, err
	}

	added, err = c.users.AddFavorite(ctx, userID, listingID)
	if err != nil {
		return false, userErr("add favorite", err)
	}

	// The listing may have been deleted, and its cascade already run,
	// between the check above and the write.
	exists, err := c.listings.Exists(ctx, listingID)
	if err != nil {
		return false, apierr.Store("recheck listing", err)
	}
	if !exists {
		if err := c.users.RemoveFavorite(ctx, userID, listingID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return false, apierr.Store("roll back favorite", err)
		}
		return false, apierr.NotFound("Listing not found")
	}
	return added, nil
}

// Remove drops listingID from userID's favorites. Removing an absent id succeeds.
func (c *Coordinator) Remove(ctx context.Context, actor, userID, listingID string) error {
	if actor != userID {
		return apierr.Forbidden("You can only change your own favorites")
	}
	if err := c.users.RemoveFavorite(ctx, userID, listingID); err != nil {
		return userErr("remove favorite", err)
	}
	return nil
}

// IDs returns the stored favorite ids of userID in insertion order.
func (c *Coordinator) IDs(ctx context.Context, actor, userID string) ([]string, error) {
	if actor != userID {
		return nil, apierr.Forbidden("You can only view your own favorites")
	}
	ids, err := c.users.Favorites(ctx, userID)
	if err != nil {
		return nil, userErr("load favorites", err)
	}
	return ids, nil
}

// List resolves userID's favorites into listings, in the order they were favorited.
func (c *Coordinator) List(ctx context.Context, actor, userID string) ([]models.Listing, error) {
	ids, err := c.IDs(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.Listing{}, nil
	}
	found, err := c.listings.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apierr.Store("load favorite listings", err)
	}

	byID := make(map[string]models.Listing, len(found))
	for _, l := range found {
		byID[l.ID.Hex()] = l
	}
	out := make([]models.Listing, 0, len(found))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			out = append(out, l)
		}
	}
	if len(out) < len(ids) {
		log.Printf("favorites: user %s references %d missing listings", userID, len(ids)-len(out))
	}
	return out, nil
}

// CascadeDeleted pulls deleted listings out of every user's favorites. It
// must run after the listing documents are gone.
func (c *Coordinator) CascadeDeleted(ctx context.Context, listingIDs ...string) error {
	if len(listingIDs) == 0 {
		return nil
	}
	n, err := c.users.PullFavorites(ctx, listingIDs)
	if err != nil {
		return apierr.Store("cascade favorites", err)
	}
	if n > 0 {
		log.Printf("favorites: removed %d deleted listings from %d users", len(listingIDs), n)
	}
	return nil
}

// FavoritedBy counts the users that favorite listingID.
func (c *Coordinator) FavoritedBy(ctx context.Context, listingID string) (int64, error) {
	n, err := c.users.CountFavoritedBy(ctx, listingID)
	if err != nil {
		return 0, apierr.Store("count favorited", err)
	}
	return n, nil
}

func (c *Coordinator) requireListing(ctx context.Context, listingID string) error {
	exists, err := c.listings.Exists(ctx, listingID)
	if err != nil {
		return apierr.Store("check listing", err)
	}
	if !exists {
		return apierr.NotFound("Listing not found")
	}
	return nil
}

func userErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierr.NotFound("User not found")
	}
	return apierr.Store(op, err)
}
