package listing

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/estate-market/internal/apierr"
	"github.com/ayush/estate-market/internal/httpx"
	"github.com/ayush/estate-market/internal/intake"
	"github.com/ayush/estate-market/internal/middleware"
	"github.com/ayush/estate-market/internal/models"
	"github.com/ayush/estate-market/internal/query"
)

// Handler holds listing HTTP handlers.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the listing endpoints. requireAuth guards the mutations.
func (h *Handler) Routes(requireAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/get", h.Search)
	r.Get("/get/{id}", h.Get)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/create", h.Create)
		r.Post("/update/{id}", h.Update)
		r.Delete("/delete/{id}", h.Delete)
		r.Post("/upload-images", h.UploadImages)
	})
	return r
}

// Search answers GET /listing/get with a bare array.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	p, err := query.Parse(r.URL.Query())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	listings, err := h.svc.Search(r.Context(), p)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, listings)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	l, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	n, err := h.svc.FavoriteCount(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"listing": l, "favoritedBy": n})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.ListingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	l, err := h.svc.Create(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusCreated, "Listing created", map[string]interface{}{"listing": l})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.ListingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	l, err := h.svc.Update(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Listing updated", map[string]interface{}{"listing": l})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Listing has been deleted", nil)
}

// UploadImages accepts multipart "images" files and returns their URLs.
func (h *Handler) UploadImages(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImages*intake.MaxFileSize+(1<<20))
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		httpx.WriteError(w, r, apierr.Validation("invalid multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	urls, err := h.svc.UploadImages(r.Context(), r.MultipartForm.File[intake.FieldImages])
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"imageUrls": urls})
}
