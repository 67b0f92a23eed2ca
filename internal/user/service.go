package user

import (
	"context"
	"errors"
	"log"
	"mime/multipart"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/estate-market/internal/apierr"
	"github.com/ayush/estate-market/internal/events"
	"github.com/ayush/estate-market/internal/httpx"
	"github.com/ayush/estate-market/internal/intake"
	"github.com/ayush/estate-market/internal/models"
	"github.com/ayush/estate-market/internal/store"
)

var (
	panPattern    = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	aadharPattern = regexp.MustCompile(`^[0-9]{12}$`)
)

// UserStore defines the interface for account persistence.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, up models.UserUpdate) (*models.User, error)
	SubmitDocuments(ctx context.Context, id string, sub models.DocumentSubmission) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// ListingStore is the owner-scoped side of listing persistence.
type ListingStore interface {
	ListByOwner(ctx context.Context, userID string) ([]models.Listing, error)
	DeleteByOwner(ctx context.Context, userID string) ([]string, error)
}

// Ledger is the document submission history.
type Ledger interface {
	Record(ctx context.Context, sub *models.Submission) error
	ListByUser(ctx context.Context, userID string) ([]models.Submission, error)
	DeleteByUser(ctx context.Context, userID string) error
}

// Favorites removes deleted listings from every favorites set.
type Favorites interface {
	CascadeDeleted(ctx context.Context, listingIDs ...string) error
}

// SessionRevoker drops every session of a user.
type SessionRevoker interface {
	DeleteUser(ctx context.Context, userID string) error
}

// FileIntake stores uploaded documents and discards ones that were not kept.
type FileIntake interface {
	StoreFile(ctx context.Context, field string, fh *multipart.FileHeader) (string, error)
	Discard(ctx context.Context, field, url string) error
}

type upload struct{ field, url string }

// Deps bundles the collaborators of Service.
type Deps struct {
	Users     UserStore
	Listings  ListingStore
	Ledger    Ledger
	Favorites Favorites
	Sessions  SessionRevoker
	Files     FileIntake
	Events    events.Publisher
}

// Service implements profile management and document submission.
type Service struct {
	Deps
}

func NewService(d Deps) *Service {
	if d.Events == nil {
		d.Events = events.Discard{}
	}
	return &Service{Deps: d}
}

// Get returns a profile. Other users see it without identity documents or favorites.
func (s *Service) Get(ctx context.Context, actor, id string) (*models.User, error) {
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return nil, userErr("load user", err)
	}
	if actor != id {
		u.PanNumber, u.PanCardURL = "", ""
		u.AadharNumber, u.AadharDocURL = "", ""
		u.Favorites = nil
	}
	return u, nil
}

// Update changes the caller's own profile.
func (s *Service) Update(ctx context.Context, actor, id string, req models.UpdateUserRequest) (*models.User, error) {
	if actor != id {
		return nil, apierr.Forbidden("You can only update your own account")
	}
	if err := httpx.Validate(req); err != nil {
		return nil, err
	}
	up := models.UserUpdate{Username: req.Username, Avatar: req.Avatar}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		up.Email = &email
	}
	if req.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, apierr.Store("hash password", err)
		}
		h := string(hashed)
		up.PasswordHash = &h
	}
	if up == (models.UserUpdate{}) {
		return nil, apierr.Validation("nothing to update")
	}

	u, err := s.Users.Update(ctx, id, up)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apierr.Conflict("Username or email already taken")
		}
		return nil, userErr("update user", err)
	}
	return u, nil
}

// Delete removes the caller's account together with their listings, which
// are also pulled from every other user's favorites.
func (s *Service) Delete(ctx context.Context, actor, id string) error {
	if actor != id {
		return apierr.Forbidden("You can only delete your own account")
	}
	if _, err := s.Users.GetByID(ctx, id); err != nil {
		return userErr("load user", err)
	}

	listingIDs, err := s.Listings.DeleteByOwner(ctx, id)
	if err != nil {
		return apierr.Store("delete user listings", err)
	}
	if err := s.Favorites.CascadeDeleted(ctx, listingIDs...); err != nil {
		return err
	}
	if err := s.Users.Delete(ctx, id); err != nil {
		return userErr("delete user", err)
	}
	if err := s.Ledger.DeleteByUser(ctx, id); err != nil {
		return apierr.Store("delete submissions", err)
	}
	if err := s.Sessions.DeleteUser(ctx, id); err != nil {
		log.Printf("revoke sessions for %s: %v", id, err)
	}

	s.Events.Publish(ctx, events.Event{
		Type:   events.UserDeleted,
		UserID: id,
		Data:   map[string]interface{}{"listingsDeleted": len(listingIDs)},
	})
	return nil
}

// OwnListings returns the caller's own listings, newest first.
func (s *Service) OwnListings(ctx context.Context, actor, id string) ([]models.Listing, error) {
	if actor != id {
		return nil, apierr.Forbidden("You can only view your own listings")
	}
	out, err := s.Listings.ListByOwner(ctx, id)
	if err != nil {
		return nil, apierr.Store("list user listings", err)
	}
	return out, nil
}

// VerifyPAN records a PAN number with its document, pending manual review.
func (s *Service) VerifyPAN(ctx context.Context, actor, panNumber string, panDoc *multipart.FileHeader) (*models.User, error) {
	pan, err := normalizePAN(panNumber)
	if err != nil {
		return nil, err
	}
	if panDoc == nil {
		return nil, apierr.Validation("PAN number and document required")
	}
	url, err := s.Files.StoreFile(ctx, intake.FieldPanDocument, panDoc)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, actor, models.DocumentSubmission{PanNumber: pan, PanCardURL: url},
		upload{intake.FieldPanDocument, url})
}

// VerifyDocuments records both PAN and Aadhaar, pending manual review.
func (s *Service) VerifyDocuments(ctx context.Context, actor, panNumber, aadharNumber string, panDoc, aadharDoc *multipart.FileHeader) (*models.User, error) {
	if panDoc == nil || aadharDoc == nil || panNumber == "" || aadharNumber == "" {
		return nil, apierr.Validation("Both PAN and Aadhaar numbers and documents are required")
	}
	pan, err := normalizePAN(panNumber)
	if err != nil {
		return nil, err
	}
	aadhar, err := normalizeAadhar(aadharNumber)
	if err != nil {
		return nil, err
	}

	panURL, err := s.Files.StoreFile(ctx, intake.FieldPanDocument, panDoc)
	if err != nil {
		return nil, err
	}
	aadharURL, err := s.Files.StoreFile(ctx, intake.FieldAadharDocument, aadharDoc)
	if err != nil {
		s.discard(ctx, upload{intake.FieldPanDocument, panURL})
		return nil, err
	}
	return s.submit(ctx, actor, models.DocumentSubmission{
		PanNumber:    pan,
		PanCardURL:   panURL,
		AadharNumber: aadhar,
		AadharDocURL: aadharURL,
	}, upload{intake.FieldPanDocument, panURL}, upload{intake.FieldAadharDocument, aadharURL})
}

// Verification returns the caller's submission history, newest first.
func (s *Service) Verification(ctx context.Context, actor, id string) ([]models.Submission, error) {
	if actor != id {
		return nil, apierr.Forbidden("You can only view your own verification history")
	}
	subs, err := s.Ledger.ListByUser(ctx, id)
	if err != nil {
		return nil, apierr.Store("list submissions", err)
	}
	return subs, nil
}

// submit saves the numbers and document URLs on the user. Uploads are
// discarded when the user record rejects them.
func (s *Service) submit(ctx context.Context, actor string, sub models.DocumentSubmission, uploads ...upload) (*models.User, error) {
	u, err := s.Users.SubmitDocuments(ctx, actor, sub)
	if err != nil {
		s.discard(ctx, uploads...)
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apierr.Conflict("Document number already registered to another account")
		}
		return nil, userErr("submit documents", err)
	}

	var kinds []string
	for _, rec := range []models.Submission{
		{UserID: actor, Kind: models.DocumentPAN, Number: sub.PanNumber, DocumentURL: sub.PanCardURL},
		{UserID: actor, Kind: models.DocumentAadhar, Number: sub.AadharNumber, DocumentURL: sub.AadharDocURL},
	} {
		if rec.Number == "" {
			continue
		}
		if err := s.Ledger.Record(ctx, &rec); err != nil {
			return nil, apierr.Store("record submission", err)
		}
		kinds = append(kinds, string(rec.Kind))
	}

	s.Events.Publish(ctx, events.Event{
		Type:   events.DocumentsSubmitted,
		UserID: actor,
		Data:   map[string]interface{}{"kinds": kinds},
	})
	return u, nil
}

func (s *Service) discard(ctx context.Context, uploads ...upload) {
	ctx = context.WithoutCancel(ctx)
	for _, up := range uploads {
		if err := s.Files.Discard(ctx, up.field, up.url); err != nil {
			log.Printf("discard %s: %v", up.url, err)
		}
	}
}

func normalizePAN(raw string) (string, error) {
	pan := strings.ToUpper(strings.TrimSpace(raw))
	if pan == "" {
		return "", apierr.Validation("PAN number and document required")
	}
	if !panPattern.MatchString(pan) {
		return "", apierr.Validation("PAN number must look like ABCDE1234F")
	}
	return pan, nil
}

func normalizeAadhar(raw string) (string, error) {
	aadhar := strings.Join(strings.Fields(raw), "")
	if !aadharPattern.MatchString(aadhar) {
		return "", apierr.Validation("Aadhaar number must have 12 digits")
	}
	return aadhar, nil
}

func userErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierr.NotFound("User not found")
	}
	return apierr.Store(op, err)
}
