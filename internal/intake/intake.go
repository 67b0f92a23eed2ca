// Package intake validates uploaded files and hands them to object storage.
package intake

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/estate-market/internal/apierr"
)

// MaxFileSize is the per-file upload cap.
const MaxFileSize = 5 * 1024 * 1024 // 5MB

// Form field names.
const (
	FieldPanDocument    = "panDocument"
	FieldAadharDocument = "aadharDocument"
	FieldImages         = "images"
)

var folders = map[string]string{
	FieldPanDocument:    "pancards",
	FieldAadharDocument: "aadharcards",
	FieldImages:         "listings",
}

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
}

// ObjectStore persists a blob under key and returns the URL or path it is served from.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Remover is implemented by object stores that can delete what they stored.
type Remover interface {
	Remove(ctx context.Context, url string) error
}

// Intake routes identity documents to private storage and listing images to
// the public image host.
type Intake struct {
	documents ObjectStore
	images    ObjectStore
	now       func() time.Time
}

func New(documents, images ObjectStore) *Intake {
	if images == nil {
		images = documents
	}
	return &Intake{documents: documents, images: images, now: time.Now}
}

// Store validates one file received under form field and stores it.
func (in *Intake) Store(ctx context.Context, field string, data []byte, originalName string) (string, error) {
	folder, ok := folders[field]
	if !ok {
		return "", apierr.Validation("unexpected file field %q", field)
	}
	if len(data) == 0 {
		return "", apierr.Validation("%s is empty", field)
	}
	if len(data) > MaxFileSize {
		return "", apierr.Validation("%s exceeds the 5MB limit", field)
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	ctype, ok := contentTypes[ext]
	if !ok {
		return "", apierr.Validation("%s must be a jpg, jpeg, png or pdf file", field)
	}

	key := Key(folder, ext, in.now())
	url, err := in.backend(field).Put(ctx, key, data, ctype)
	if err != nil {
		return "", apierr.Store("store "+field, err)
	}
	return url, nil
}

// Discard deletes a file Store returned url for. Backends without a Remover
// keep the file.
func (in *Intake) Discard(ctx context.Context, field, url string) error {
	r, ok := in.backend(field).(Remover)
	if !ok {
		return nil
	}
	if err := r.Remove(ctx, url); err != nil {
		return apierr.Store("discard "+field, err)
	}
	return nil
}

func (in *Intake) backend(field string) ObjectStore {
	if field == FieldImages {
		return in.images
	}
	return in.documents
}

// StoreFile reads a multipart file header and stores it.
func (in *Intake) StoreFile(ctx context.Context, field string, fh *multipart.FileHeader) (string, error) {
	data, err := ReadFile(field, fh)
	if err != nil {
		return "", err
	}
	return in.Store(ctx, field, data, fh.Filename)
}

// ReadFile loads a multipart file, refusing anything over MaxFileSize.
func ReadFile(field string, fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > MaxFileSize {
		return nil, apierr.Validation("%s exceeds the 5MB limit", field)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apierr.Validation("cannot open %s: %v", field, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, apierr.Validation("cannot read %s: %v", field, err)
	}
	if len(data) > MaxFileSize {
		return nil, apierr.Validation("%s exceeds the 5MB limit", field)
	}
	return data, nil
}

// Key builds the object key <folder>/<unixmilli>-<uuid><ext>.
func Key(folder, ext string, at time.Time) string {
	return fmt.Sprintf("%s/%d-%s%s", folder, at.UnixMilli(), uuid.NewString(), ext)
}
