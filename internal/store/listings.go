package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/estate-market/internal/models"
	"github.com/ayush/estate-market/internal/query"
)

const listingsCollection = "listings"

// ListingStore handles listing CRUD and search in MongoDB.
type ListingStore struct {
	col *mongo.Collection
}

func NewListingStore(db *mongo.Database) *ListingStore {
	return &ListingStore{col: db.Collection(listingsCollection)}
}

// Insert stores l and fills in its id and timestamps.
func (s *ListingStore) Insert(ctx context.Context, l *models.Listing) error {
	now := time.Now().UTC()
	l.ID = primitive.NilObjectID
	l.CreatedAt, l.UpdatedAt = now, now
	res, err := s.col.InsertOne(ctx, l)
	if err != nil {
		return translate("mongo insert listing", err)
	}
	l.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *ListingStore) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var l models.Listing
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&l); err != nil {
		return nil, translate("mongo find listing", err)
	}
	return &l, nil
}

func (s *ListingStore) Exists(ctx context.Context, id string) (bool, error) {
	oid, err := objectID(id)
	if err != nil {
		return false, nil
	}
	n, err := s.col.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return false, translate("mongo count listing", err)
	}
	return n > 0, nil
}

// Replace overwrites the mutable fields of l. The owner is part of the
// filter so a listing can only be rewritten under its own userRef.
func (s *ListingStore) Replace(ctx context.Context, l *models.Listing) error {
	l.UpdatedAt = time.Now().UTC()
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": l.ID, "userRef": l.UserRef},
		bson.M{"$set": bson.M{
			"name":          l.Name,
			"description":   l.Description,
			"address":       l.Address,
			"type":          l.Type,
			"bedrooms":      l.Bedrooms,
			"bathrooms":     l.Bathrooms,
			"regularPrice":  l.RegularPrice,
			"discountPrice": l.DiscountPrice,
			"offer":         l.Offer,
			"parking":       l.Parking,
			"furnished":     l.Furnished,
			"imageUrls":     l.ImageURLs,
			"documentUrl":   l.DocumentURL,
			"updatedAt":     l.UpdatedAt,
		}},
	)
	if err != nil {
		return translate("mongo update listing", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a listing and reports whether it existed.
func (s *ListingStore) Delete(ctx context.Context, id string) (bool, error) {
	oid, err := objectID(id)
	if err != nil {
		return false, nil
	}
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, translate("mongo delete listing", err)
	}
	return res.DeletedCount > 0, nil
}

// Search runs a built query. Every call goes to the database.
func (s *ListingStore) Search(ctx context.Context, p query.Params) ([]models.Listing, error) {
	return s.find(ctx, p.Filter(), p.FindOptions())
}

// FindByIDs bulk-loads listings whose id is in ids. Unknown ids are skipped.
func (s *ListingStore) FindByIDs(ctx context.Context, ids []string) ([]models.Listing, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return []models.Listing{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": oids}}, options.Find())
}

func (s *ListingStore) ListByOwner(ctx context.Context, userID string) ([]models.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	return s.find(ctx, bson.M{"userRef": userID}, opts)
}

// DeleteByOwner removes every listing owned by userID and returns their ids.
func (s *ListingStore) DeleteByOwner(ctx context.Context, userID string) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	owned, err := s.find(ctx, bson.M{"userRef": userID}, opts)
	if err != nil {
		return nil, err
	}
	if len(owned) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(owned))
	oids := make([]primitive.ObjectID, 0, len(owned))
	for _, l := range owned {
		ids = append(ids, l.ID.Hex())
		oids = append(oids, l.ID)
	}
	if _, err := s.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}}); err != nil {
		return nil, translate("mongo delete owner listings", err)
	}
	return ids, nil
}

func (s *ListingStore) find(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]models.Listing, error) {
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, translate("mongo find listings", err)
	}
	defer cur.Close(ctx)

	listings := []models.Listing{}
	if err := cur.All(ctx, &listings); err != nil {
		return nil, translate("mongo decode listings", err)
	}
	return listings, nil
}
