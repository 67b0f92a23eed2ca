// Package query turns listing search parameters into a MongoDB filter with
// deterministic ordering and pagination.
package query

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/estate-market/internal/apierr"
	"github.com/ayush/estate-market/internal/models"
)

const (
	DefaultLimit = 9
	MaxLimit     = 100
	DefaultSort  = "createdAt"
)

// sortable lists the fields a client may sort by.
var sortable = map[string]bool{
	"createdAt":     true,
	"updatedAt":     true,
	"regularPrice":  true,
	"discountPrice": true,
	"name":          true,
	"bedrooms":      true,
	"bathrooms":     true,
}

// Params is a parsed listing search. Nil tri-state filters match both values.
type Params struct {
	SearchTerm string
	Type       models.ListingType // empty means all types
	Parking    *bool
	Furnished  *bool
	Offer      *bool
	Sort       string
	Desc       bool
	Limit      int
	StartIndex int
}

// Defaults returns the parameters of an empty query string.
func Defaults() Params {
	return Params{Sort: DefaultSort, Desc: true, Limit: DefaultLimit}
}

// Parse reads the recognized query parameters. Only an unknown type is
// rejected; every other malformed or absent value falls back to its default.
func Parse(q url.Values) (Params, error) {
	p := Defaults()
	p.SearchTerm = strings.TrimSpace(q.Get("searchTerm"))

	switch t := q.Get("type"); t {
	case "", "all":
	case string(models.ListingTypeSale), string(models.ListingTypeRent):
		p.Type = models.ListingType(t)
	default:
		return Params{}, apierr.Validation("invalid type %q: must be one of sale, rent, all", t)
	}

	p.Parking = triState(q.Get("parking"))
	p.Furnished = triState(q.Get("furnished"))
	p.Offer = triState(q.Get("offer"))

	if s := q.Get("sort"); sortable[s] {
		p.Sort = s
	}
	p.Desc = q.Get("order") != "asc"

	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		p.Limit = min(n, MaxLimit)
	}
	if n, err := strconv.Atoi(q.Get("startIndex")); err == nil && n > 0 {
		p.StartIndex = n
	}
	return p, nil
}

func triState(v string) *bool {
	switch v {
	case "true":
		b := true
		return &b
	case "false":
		b := false
		return &b
	}
	return nil
}

// Filter builds the MongoDB filter document.
func (p Params) Filter() bson.M {
	filter := bson.M{}
	if p.SearchTerm != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(p.SearchTerm), "$options": "i"}
	}
	if p.Type != "" {
		filter["type"] = p.Type
	}
	if p.Parking != nil {
		filter["parking"] = *p.Parking
	}
	if p.Furnished != nil {
		filter["furnished"] = *p.Furnished
	}
	if p.Offer != nil {
		filter["offer"] = *p.Offer
	}
	return filter
}

// FindOptions sorts by the requested field, then by _id ascending so ties
// come back in insertion order, and applies the page window.
func (p Params) FindOptions() *options.FindOptions {
	dir := 1
	if p.Desc {
		dir = -1
	}
	sort := bson.D{{Key: p.Sort, Value: dir}, {Key: "_id", Value: 1}}
	return options.Find().
		SetSort(sort).
		SetSkip(int64(p.StartIndex)).
		SetLimit(int64(p.Limit))
}

// Matches reports whether l satisfies the filter, with the same semantics as Filter.
func (p Params) Matches(l models.Listing) bool {
	if p.SearchTerm != "" && !strings.Contains(strings.ToLower(l.Name), strings.ToLower(p.SearchTerm)) {
		return false
	}
	if p.Type != "" && l.Type != p.Type {
		return false
	}
	if p.Parking != nil && l.Parking != *p.Parking {
		return false
	}
	if p.Furnished != nil && l.Furnished != *p.Furnished {
		return false
	}
	if p.Offer != nil && l.Offer != *p.Offer {
		return false
	}
	return true
}

// Less orders a before b the way FindOptions sorts.
func (p Params) Less(a, b models.Listing) bool {
	c := compareField(p.Sort, a, b)
	if p.Desc {
		c = -c
	}
	if c != 0 {
		return c < 0
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

func compareField(field string, a, b models.Listing) int {
	switch field {
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "regularPrice":
		return cmpInt(a.RegularPrice, b.RegularPrice)
	case "discountPrice":
		return cmpInt(a.DiscountPrice, b.DiscountPrice)
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "bedrooms":
		return cmpInt(int64(a.Bedrooms), int64(b.Bedrooms))
	case "bathrooms":
		return cmpInt(int64(a.Bathrooms), int64(b.Bathrooms))
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
