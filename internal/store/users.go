package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/estate-market/internal/models"
)

const usersCollection = "users"

// UserStore handles account documents, including the favorites set, in MongoDB.
// Favorites are only ever changed with single-document $addToSet/$pull
// commands so concurrent requests cannot lose each other's updates.
type UserStore struct {
	col *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{col: db.Collection(usersCollection)}
}

// Create inserts u with empty favorites and the default avatar when unset.
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	u.ID = primitive.NilObjectID
	u.CreatedAt, u.UpdatedAt = now, now
	if u.Avatar == "" {
		u.Avatar = models.DefaultAvatar
	}
	if u.Favorites == nil {
		u.Favorites = []primitive.ObjectID{}
	}
	res, err := s.col.InsertOne(ctx, u)
	if err != nil {
		return translate("mongo insert user", err)
	}
	u.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// Update applies the non-nil profile fields and returns the updated document.
func (s *UserStore) Update(ctx context.Context, id string, up models.UserUpdate) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if up.Username != nil {
		set["username"] = *up.Username
	}
	if up.Email != nil {
		set["email"] = *up.Email
	}
	if up.PasswordHash != nil {
		set["password"] = *up.PasswordHash
	}
	if up.Avatar != nil {
		set["avatar"] = *up.Avatar
	}
	return s.findOneAndSet(ctx, id, set)
}

// SubmitDocuments stores document numbers and URLs and resets the matching
// verified flags to false, pending manual review.
func (s *UserStore) SubmitDocuments(ctx context.Context, id string, sub models.DocumentSubmission) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if sub.PanNumber != "" {
		set["panNumber"] = sub.PanNumber
		set["panCardUrl"] = sub.PanCardURL
		set["panVerified"] = false
	}
	if sub.AadharNumber != "" {
		set["aadharNumber"] = sub.AadharNumber
		set["aadharDocUrl"] = sub.AadharDocURL
		set["isAadharVerified"] = false
	}
	return s.findOneAndSet(ctx, id, set)
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return translate("mongo delete user", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AddFavorite appends listingID to the user's favorites unless already
// present. added is false when the id was already there.
func (s *UserStore) AddFavorite(ctx context.Context, userID, listingID string) (bool, error) {
	uid, err := objectID(userID)
	if err != nil {
		return false, err
	}
	lid, err := objectID(listingID)
	if err != nil {
		return false, err
	}
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": uid},
		bson.M{"$addToSet": bson.M{"favorites": lid}},
	)
	if err != nil {
		return false, translate("mongo add favorite", err)
	}
	if res.MatchedCount == 0 {
		return false, ErrNotFound
	}
	return res.ModifiedCount > 0, nil
}

// RemoveFavorite pulls listingID from the user's favorites. Removing an
// absent id succeeds.
func (s *UserStore) RemoveFavorite(ctx context.Context, userID, listingID string) error {
	uid, err := objectID(userID)
	if err != nil {
		return err
	}
	lid, err := primitive.ObjectIDFromHex(listingID)
	if err != nil {
		// Nothing malformed can be stored, so there is nothing to pull.
		return s.ensureExists(ctx, uid)
	}
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": uid},
		bson.M{"$pull": bson.M{"favorites": lid}},
	)
	if err != nil {
		return translate("mongo remove favorite", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Favorites returns the user's favorite listing ids in insertion order.
func (s *UserStore) Favorites(ctx context.Context, userID string) ([]string, error) {
	uid, err := objectID(userID)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Favorites []primitive.ObjectID `bson:"favorites"`
	}
	opts := options.FindOne().SetProjection(bson.M{"favorites": 1})
	if err := s.col.FindOne(ctx, bson.M{"_id": uid}, opts).Decode(&doc); err != nil {
		return nil, translate("mongo find favorites", err)
	}
	ids := make([]string, 0, len(doc.Favorites))
	for _, oid := range doc.Favorites {
		ids = append(ids, oid.Hex())
	}
	return ids, nil
}

// PullFavorites removes the given listing ids from every user's favorites
// and returns how many users were touched.
func (s *UserStore) PullFavorites(ctx context.Context, listingIDs []string) (int64, error) {
	oids := objectIDs(listingIDs)
	if len(oids) == 0 {
		return 0, nil
	}
	res, err := s.col.UpdateMany(ctx,
		bson.M{"favorites": bson.M{"$in": oids}},
		bson.M{"$pull": bson.M{"favorites": bson.M{"$in": oids}}},
	)
	if err != nil {
		return 0, translate("mongo pull favorites", err)
	}
	return res.ModifiedCount, nil
}

// CountFavoritedBy is the derived reverse lookup: how many users favorite listingID.
func (s *UserStore) CountFavoritedBy(ctx context.Context, listingID string) (int64, error) {
	lid, err := primitive.ObjectIDFromHex(listingID)
	if err != nil {
		return 0, nil
	}
	n, err := s.col.CountDocuments(ctx, bson.M{"favorites": lid})
	if err != nil {
		return 0, translate("mongo count favorited", err)
	}
	return n, nil
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.col.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, translate("mongo find user", err)
	}
	return &u, nil
}

func (s *UserStore) findOneAndSet(ctx context.Context, id string, set bson.M) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	if err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&u); err != nil {
		return nil, translate("mongo update user", err)
	}
	return &u, nil
}

func (s *UserStore) ensureExists(ctx context.Context, uid primitive.ObjectID) error {
	n, err := s.col.CountDocuments(ctx, bson.M{"_id": uid}, options.Count().SetLimit(1))
	if err != nil {
		return translate("mongo count user", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
