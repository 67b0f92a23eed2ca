package intake

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/estate-market/internal/apierr"
	"github.com/ayush/estate-market/internal/store"
)

type memObjects struct {
	prefix string
	objs   map[string][]byte
	types  map[string]string
	err    error
}

func newMemObjects(prefix string) *memObjects {
	return &memObjects{prefix: prefix, objs: map[string][]byte{}, types: map[string]string{}}
}

func (m *memObjects) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.objs[key] = data
	m.types[key] = contentType
	return m.prefix + key, nil
}

func (m *memObjects) Download(_ context.Context, key string) ([]byte, string, error) {
	data, ok := m.objs[key]
	if !ok {
		return nil, "", store.ErrNotFound
	}
	return data, m.types[key], nil
}

func (m *memObjects) Remove(_ context.Context, url string) error {
	delete(m.objs, strings.TrimPrefix(url, m.prefix))
	return nil
}

// putOnly hides Remove from the wrapped store.
type putOnly struct{ m *memObjects }

func (p putOnly) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return p.m.Put(ctx, key, data, contentType)
}

var keyPattern = regexp.MustCompile(`^pancards/1700000000000-[0-9a-f-]{36}\.pdf$`)

func TestStoreRoutesByField(t *testing.T) {
	docs := newMemObjects("/uploads/")
	imgs := newMemObjects("https://cdn.example.com/")
	in := New(docs, imgs)
	in.now = func() time.Time { return time.UnixMilli(1700000000000) }

	path, err := in.Store(context.Background(), FieldPanDocument, []byte("pdf"), "Scan.PDF")
	require.NoError(t, err)
	require.Len(t, docs.objs, 1)
	for key := range docs.objs {
		assert.Regexp(t, keyPattern, key)
		assert.Equal(t, "/uploads/"+key, path)
		assert.Equal(t, "application/pdf", docs.types[key])
	}

	url, err := in.Store(context.Background(), FieldImages, []byte("png"), "front.png")
	require.NoError(t, err)
	assert.Contains(t, url, "https://cdn.example.com/listings/")
	assert.Len(t, imgs.objs, 1)

	_, err = in.Store(context.Background(), FieldAadharDocument, []byte("jpg"), "card.jpeg")
	require.NoError(t, err)
	assert.Len(t, docs.objs, 2)
}

func TestStoreRejects(t *testing.T) {
	in := New(newMemObjects("/uploads/"), nil)
	ctx := context.Background()

	_, err := in.Store(ctx, FieldPanDocument, []byte("x"), "malware.exe")
	assert.ErrorIs(t, err, apierr.ErrValidation)

	_, err = in.Store(ctx, FieldPanDocument, []byte("x"), "noext")
	assert.ErrorIs(t, err, apierr.ErrValidation)

	_, err = in.Store(ctx, FieldPanDocument, make([]byte, MaxFileSize+1), "big.pdf")
	assert.ErrorIs(t, err, apierr.ErrValidation)

	_, err = in.Store(ctx, FieldPanDocument, nil, "empty.pdf")
	assert.ErrorIs(t, err, apierr.ErrValidation)

	_, err = in.Store(ctx, "resume", []byte("x"), "cv.pdf")
	assert.ErrorIs(t, err, apierr.ErrValidation)

	_, err = in.Store(ctx, FieldPanDocument, make([]byte, MaxFileSize), "exact.pdf")
	assert.NoError(t, err)
}

func TestStoreBackendFailure(t *testing.T) {
	docs := newMemObjects("/uploads/")
	docs.err = errors.New("bucket gone")
	_, err := New(docs, nil).Store(context.Background(), FieldPanDocument, []byte("x"), "a.pdf")
	assert.ErrorIs(t, err, apierr.ErrStore)
	assert.Equal(t, http.StatusInternalServerError, apierr.Status(err))
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	docs := newMemObjects("/uploads/")
	imgs := newMemObjects("https://cdn.example.com/")
	in := New(docs, putOnly{imgs})

	kept, err := in.Store(ctx, FieldPanDocument, []byte("keep"), "a.pdf")
	require.NoError(t, err)
	dropped, err := in.Store(ctx, FieldAadharDocument, []byte("drop"), "b.pdf")
	require.NoError(t, err)
	require.Len(t, docs.objs, 2)

	require.NoError(t, in.Discard(ctx, FieldAadharDocument, dropped))
	require.Len(t, docs.objs, 1)
	_, ok := docs.objs[strings.TrimPrefix(kept, "/uploads/")]
	assert.True(t, ok)

	url, err := in.Store(ctx, FieldImages, []byte("png"), "c.png")
	require.NoError(t, err)
	require.NoError(t, in.Discard(ctx, FieldImages, url))
	assert.Len(t, imgs.objs, 1)
}

func TestStoreFileFromMultipart(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(FieldImages, "cover.jpg")
	require.NoError(t, err)
	fw.Write([]byte("jpeg bytes"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	fh := req.MultipartForm.File[FieldImages][0]

	imgs := newMemObjects("/uploads/")
	url, err := New(imgs, nil).StoreFile(context.Background(), FieldImages, fh)
	require.NoError(t, err)
	assert.Contains(t, url, "/uploads/listings/")
	for _, data := range imgs.objs {
		assert.Equal(t, "jpeg bytes", string(data))
	}
}

func TestServeUploads(t *testing.T) {
	docs := newMemObjects("/uploads/")
	docs.objs["pancards/1-a.pdf"] = []byte("pdf body")
	docs.types["pancards/1-a.pdf"] = "application/pdf"

	r := chi.NewRouter()
	r.Get("/uploads/*", ServeUploads(docs))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/pancards/1-a.pdf", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "pdf body", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/pancards/missing.pdf", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
