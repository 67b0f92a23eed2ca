package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/estate-market/internal/auth"
	"github.com/ayush/estate-market/internal/middleware"
	"github.com/ayush/estate-market/internal/models"
)

// tokenGate treats the bearer token as the user id.
type tokenGate struct{}

func (tokenGate) Authenticate(_ context.Context, token string) (auth.Identity, error) {
	if token == "" || token == "expired" {
		return auth.Identity{}, errors.New("bad token")
	}
	return auth.Identity{UserID: token, SessionID: "s-" + token}, nil
}

func newServer(e *env) http.Handler {
	return NewHandler(e.svc).Routes(middleware.RequireAuth(tokenGate{}))
}

func do(t *testing.T, h http.Handler, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHandlerSearchVillaForRent(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	owner := e.user(t, "owner")

	villaRent := validRequest("Sunny Villa by the lake")
	villaRent.Type = models.ListingTypeRent
	villaSale := validRequest("Old villa near station")
	flatRent := validRequest("Compact city apartment")
	flatRent.Type = models.ListingTypeRent
	for _, req := range []models.ListingRequest{villaRent, villaSale, flatRent} {
		_, err := e.svc.Create(ctx, owner, req)
		require.NoError(t, err)
	}

	rec := do(t, newServer(e), http.MethodGet, "/get?searchTerm=villa&type=rent", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.Listing
	decode(t, rec, &got)
	require.Len(t, got, 1)
	assert.Equal(t, "Sunny Villa by the lake", got[0].Name)
	assert.Equal(t, models.ListingTypeRent, got[0].Type)
}

func TestHandlerSearchRejectsUnknownType(t *testing.T) {
	rec := do(t, newServer(newEnv()), http.MethodGet, "/get?type=lease", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, false, body["success"])
	assert.EqualValues(t, http.StatusBadRequest, body["statusCode"])
}

func TestHandlerCreateRequiresAuth(t *testing.T) {
	e := newEnv()
	rec := do(t, newServer(e), http.MethodPost, "/create", "", validRequest("Harbour view apartment"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, newServer(e), http.MethodPost, "/create", "expired", validRequest("Harbour view apartment"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, e.listings.Len())
}

func TestHandlerCreateGetDelete(t *testing.T) {
	e := newEnv()
	owner := e.user(t, "owner")
	other := e.user(t, "other")
	srv := newServer(e)

	rec := do(t, srv, http.MethodPost, "/create", owner, validRequest("Harbour view apartment"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Success bool           `json:"success"`
		Listing models.Listing `json:"listing"`
	}
	decode(t, rec, &created)
	require.True(t, created.Success)
	id := created.Listing.ID.Hex()
	assert.Equal(t, owner, created.Listing.UserRef)

	_, err := e.coord.Add(context.Background(), other, other, id)
	require.NoError(t, err)

	rec = do(t, srv, http.MethodGet, "/get/"+id, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched struct {
		Listing     models.Listing `json:"listing"`
		FavoritedBy int64          `json:"favoritedBy"`
	}
	decode(t, rec, &fetched)
	assert.Equal(t, id, fetched.Listing.ID.Hex())
	assert.EqualValues(t, 1, fetched.FavoritedBy)

	rec = do(t, srv, http.MethodDelete, "/delete/"+id, other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/delete/"+id, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/get/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	n, err := e.coord.FavoritedBy(context.Background(), id)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandlerCreateRejectsUnknownFields(t *testing.T) {
	e := newEnv()
	owner := e.user(t, "owner")
	body := map[string]interface{}{"name": "Harbour view apartment", "userRef": "someone-else"}
	rec := do(t, newServer(e), http.MethodPost, "/create", owner, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerUploadImages(t *testing.T) {
	e := newEnv()
	h := newServer(e)

	post := func(user string, names ...string) *httptest.ResponseRecorder {
		body, ctype := imageForm(t, names...)
		req := httptest.NewRequest(http.MethodPost, "/upload-images", body)
		req.Header.Set("Content-Type", ctype)
		if user != "" {
			req.Header.Set("Authorization", "Bearer "+user)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, post("", "a.png").Code)
	assert.Equal(t, http.StatusBadRequest, post("owner").Code)

	rec := post("owner", "a.png", "b.jpeg")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Success   bool     `json:"success"`
		ImageURLs []string `json:"imageUrls"`
	}
	decode(t, rec, &body)
	assert.True(t, body.Success)
	require.Len(t, body.ImageURLs, 2)
	for i, key := range e.images.keys {
		assert.Equal(t, "https://cdn.example.com/"+key, body.ImageURLs[i])
	}
}
