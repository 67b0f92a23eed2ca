package intake

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/estate-market/internal/apierr"
	"github.com/ayush/estate-market/internal/httpx"
	"github.com/ayush/estate-market/internal/store"
)

// Downloader reads stored objects back.
type Downloader interface {
	Download(ctx context.Context, key string) ([]byte, string, error)
}

// ServeUploads streams /uploads/* objects from storage.
func ServeUploads(d Downloader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := path.Clean("/" + chi.URLParam(r, "*"))
		key = strings.TrimPrefix(key, "/")
		if key == "" || key == "." {
			httpx.WriteError(w, r, apierr.NotFound("File not found"))
			return
		}

		data, ctype, err := d.Download(r.Context(), key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				httpx.WriteError(w, r, apierr.NotFound("File not found"))
				return
			}
			httpx.WriteError(w, r, apierr.Store("download "+key, err))
			return
		}

		if ctype == "" {
			ctype = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ctype)
		w.Header().Set("Cache-Control", "private, max-age=3600")
		w.Write(data)
	}
}
