package favorites

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/estate-market/internal/httpx"
	"github.com/ayush/estate-market/internal/middleware"
)

// Handler exposes the coordinator over HTTP. All routes need RequireAuth.
type Handler struct {
	coord *Coordinator
}

func NewHandler(coord *Coordinator) *Handler {
	return &Handler{coord: coord}
}

// Mount registers the favorites routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/favorites/add/{listingId}", h.Add)
	r.Delete("/favorites/remove/{listingId}", h.Remove)
	r.Get("/favorites/{id}", h.List)
}

func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserID(r.Context())
	added, err := h.coord.Add(r.Context(), uid, uid, chi.URLParam(r, "listingId"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	msg := "Added to favorites"
	if !added {
		msg = "Already in favorites"
	}
	httpx.WriteSuccess(w, http.StatusOK, msg, map[string]interface{}{"added": added})
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	uid := middleware.UserID(r.Context())
	if err := h.coord.Remove(r.Context(), uid, uid, chi.URLParam(r, "listingId")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Removed from favorites", nil)
}

// List answers with the resolved listings as a bare array.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	listings, err := h.coord.List(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, listings)
}
