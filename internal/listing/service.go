package listing

import (
	"context"
	"errors"
	"mime/multipart"

	"github.com/ayush/estate-market/internal/apierr"
	"github.com/ayush/estate-market/internal/events"
	"github.com/ayush/estate-market/internal/httpx"
	"github.com/ayush/estate-market/internal/intake"
	"github.com/ayush/estate-market/internal/models"
	"github.com/ayush/estate-market/internal/query"
	"github.com/ayush/estate-market/internal/store"
)

// MaxImages is how many images a listing may carry.
const MaxImages = 6

// Store defines the interface for listing persistence.
type Store interface {
	Insert(ctx context.Context, l *models.Listing) error
	GetByID(ctx context.Context, id string) (*models.Listing, error)
	Replace(ctx context.Context, l *models.Listing) error
	Delete(ctx context.Context, id string) (bool, error)
	Search(ctx context.Context, p query.Params) ([]models.Listing, error)
}

// Favorites is the part of the favorites coordinator listings depend on.
type Favorites interface {
	CascadeDeleted(ctx context.Context, listingIDs ...string) error
	FavoritedBy(ctx context.Context, listingID string) (int64, error)
}

// FileIntake stores uploaded files.
type FileIntake interface {
	StoreFile(ctx context.Context, field string, fh *multipart.FileHeader) (string, error)
}

// Service implements listing CRUD, search and the ownership gate.
type Service struct {
	store     Store
	favorites Favorites
	files     FileIntake
	events    events.Publisher
}

func NewService(s Store, favs Favorites, files FileIntake, pub events.Publisher) *Service {
	return &Service{store: s, favorites: favs, files: files, events: pub}
}

// Create stores a new listing owned by actor.
func (s *Service) Create(ctx context.Context, actor string, req models.ListingRequest) (*models.Listing, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	l := &models.Listing{UserRef: actor}
	req.Apply(l)
	if err := s.store.Insert(ctx, l); err != nil {
		return nil, apierr.Store("insert listing", err)
	}
	s.events.Publish(ctx, events.Event{
		Type:      events.ListingCreated,
		UserID:    actor,
		ListingID: l.ID.Hex(),
		Data:      map[string]interface{}{"type": l.Type, "regularPrice": l.RegularPrice},
	})
	return l, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Listing, error) {
	l, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, listingErr("load listing", err)
	}
	return l, nil
}

// Update replaces a listing's fields. Only the owner may update.
func (s *Service) Update(ctx context.Context, actor, id string, req models.ListingRequest) (*models.Listing, error) {
	l, err := s.owned(ctx, actor, id, "You can only update your own listings")
	if err != nil {
		return nil, err
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	req.Apply(l)
	if err := s.store.Replace(ctx, l); err != nil {
		return nil, listingErr("update listing", err)
	}
	return l, nil
}

// Delete removes a listing and then pulls it out of every user's favorites.
// Only the owner may delete.
func (s *Service) Delete(ctx context.Context, actor, id string) error {
	l, err := s.owned(ctx, actor, id, "You can only delete your own listings")
	if err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return apierr.Store("delete listing", err)
	}
	// Cascade even if a concurrent delete won, so no favorite can outlive it.
	if err := s.favorites.CascadeDeleted(ctx, id); err != nil {
		return err
	}
	if !deleted {
		return apierr.NotFound("Listing not found")
	}
	s.events.Publish(ctx, events.Event{Type: events.ListingDeleted, UserID: l.UserRef, ListingID: id})
	return nil
}

// Search runs a Query Builder query. Every call hits the store.
func (s *Service) Search(ctx context.Context, p query.Params) ([]models.Listing, error) {
	out, err := s.store.Search(ctx, p)
	if err != nil {
		return nil, apierr.Store("search listings", err)
	}
	return out, nil
}

// FavoriteCount is how many users currently favorite the listing.
func (s *Service) FavoriteCount(ctx context.Context, id string) (int64, error) {
	return s.favorites.FavoritedBy(ctx, id)
}

// UploadImages stores 1..MaxImages listing images and returns their URLs in
// upload order.
func (s *Service) UploadImages(ctx context.Context, files []*multipart.FileHeader) ([]string, error) {
	if len(files) == 0 {
		return nil, apierr.Validation("at least one image is required")
	}
	if len(files) > MaxImages {
		return nil, apierr.Validation("you can only upload %d images per listing", MaxImages)
	}
	urls := make([]string, 0, len(files))
	for _, fh := range files {
		url, err := s.files.StoreFile(ctx, intake.FieldImages, fh)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (s *Service) owned(ctx context.Context, actor, id, denied string) (*models.Listing, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.UserRef != actor {
		return nil, apierr.Forbidden(denied)
	}
	return l, nil
}

// validate runs tag validation plus the discount rule.
func validate(req models.ListingRequest) error {
	if err := httpx.Validate(req); err != nil {
		return err
	}
	if req.Offer && req.DiscountPrice >= req.RegularPrice {
		return apierr.Validation("Discount price must be lower than regular price")
	}
	return nil
}

func listingErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierr.NotFound("Listing not found")
	}
	return apierr.Store(op, err)
}
