package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListingType enumerates what a listing offers.
type ListingType string

const (
	ListingTypeSale ListingType = "sale"
	ListingTypeRent ListingType = "rent"
)

// Listing is a property document in the MongoDB listings collection.
type Listing struct {
	ID            primitive.ObjectID `json:"_id"                   bson:"_id,omitempty"`
	UserRef       string             `json:"userRef"               bson:"userRef"`
	Name          string             `json:"name"                  bson:"name"`
	Description   string             `json:"description"           bson:"description"`
	Address       string             `json:"address"               bson:"address"`
	Type          ListingType        `json:"type"                  bson:"type"`
	Bedrooms      int                `json:"bedrooms"              bson:"bedrooms"`
	Bathrooms     int                `json:"bathrooms"             bson:"bathrooms"`
	RegularPrice  int64              `json:"regularPrice"          bson:"regularPrice"`
	DiscountPrice int64              `json:"discountPrice"         bson:"discountPrice"`
	Offer         bool               `json:"offer"                 bson:"offer"`
	Parking       bool               `json:"parking"               bson:"parking"`
	Furnished     bool               `json:"furnished"             bson:"furnished"`
	ImageURLs     []string           `json:"imageUrls"             bson:"imageUrls"`
	DocumentURL   string             `json:"documentUrl,omitempty" bson:"documentUrl,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"             bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"             bson:"updatedAt"`
}

// ListingRequest is the JSON body for creating or replacing a listing.
type ListingRequest struct {
	Name          string      `json:"name"          validate:"required,min=10,max=62"`
	Description   string      `json:"description"   validate:"required"`
	Address       string      `json:"address"       validate:"required"`
	Type          ListingType `json:"type"          validate:"required,oneof=sale rent"`
	Bedrooms      int         `json:"bedrooms"      validate:"min=1,max=10"`
	Bathrooms     int         `json:"bathrooms"     validate:"min=1,max=10"`
	RegularPrice  int64       `json:"regularPrice"  validate:"gt=0"`
	DiscountPrice int64       `json:"discountPrice" validate:"gte=0"`
	Offer         bool        `json:"offer"`
	Parking       bool        `json:"parking"`
	Furnished     bool        `json:"furnished"`
	ImageURLs     []string    `json:"imageUrls"     validate:"min=1,max=6,dive,required"`
	DocumentURL   string      `json:"documentUrl"`
}

// Apply copies the request onto l. A discount only survives when the listing is on offer.
func (r ListingRequest) Apply(l *Listing) {
	l.Name = r.Name
	l.Description = r.Description
	l.Address = r.Address
	l.Type = r.Type
	l.Bedrooms = r.Bedrooms
	l.Bathrooms = r.Bathrooms
	l.RegularPrice = r.RegularPrice
	l.DiscountPrice = 0
	if r.Offer {
		l.DiscountPrice = r.DiscountPrice
	}
	l.Offer = r.Offer
	l.Parking = r.Parking
	l.Furnished = r.Furnished
	l.ImageURLs = append([]string(nil), r.ImageURLs...)
	l.DocumentURL = r.DocumentURL
}
