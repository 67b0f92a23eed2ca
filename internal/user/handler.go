package user

import (
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/estate-market/internal/apierr"
	"github.com/ayush/estate-market/internal/auth"
	"github.com/ayush/estate-market/internal/httpx"
	"github.com/ayush/estate-market/internal/intake"
	"github.com/ayush/estate-market/internal/middleware"
	"github.com/ayush/estate-market/internal/models"
)

const (
	formPanNumber    = "pancard"
	formAadharNumber = "aadharcard"
)

// Handler holds /user HTTP handlers.
type Handler struct {
	svc          *Service
	secureCookie bool
}

func NewHandler(svc *Service, secureCookie bool) *Handler {
	return &Handler{svc: svc, secureCookie: secureCookie}
}

// Mount registers the user routes on r, which must already require auth.
// Static paths are registered before /{id} so they win.
func (h *Handler) Mount(r chi.Router) {
	r.Put("/verify-documents", h.VerifyDocuments)
	r.Put("/verify-pan", h.VerifyPAN)
	r.Get("/verification/{id}", h.Verification)
	r.Get("/listings/{id}", h.Listings)
	r.Post("/update/{id}", h.Update)
	r.Delete("/delete/{id}", h.Delete)
	r.Get("/{id}", h.Get)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"user": u})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	u, err := h.svc.Update(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Profile updated", map[string]interface{}{"user": u})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	auth.ClearCookie(w, h.secureCookie)
	httpx.WriteSuccess(w, http.StatusOK, "User has been deleted", nil)
}

// Listings answers with the caller's listings as a bare array.
func (h *Handler) Listings(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.OwnListings(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) VerifyPAN(w http.ResponseWriter, r *http.Request) {
	form, err := parseMultipart(w, r, 1)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	defer form.RemoveAll()

	u, err := h.svc.VerifyPAN(r.Context(), middleware.UserID(r.Context()),
		formValue(form, formPanNumber), formFile(form, intake.FieldPanDocument))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "PAN verification info submitted", map[string]interface{}{
		"user": map[string]interface{}{
			"panNumber":   u.PanNumber,
			"panCardUrl":  u.PanCardURL,
			"panVerified": u.PanVerified,
		},
	})
}

func (h *Handler) VerifyDocuments(w http.ResponseWriter, r *http.Request) {
	form, err := parseMultipart(w, r, 2)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	defer form.RemoveAll()

	u, err := h.svc.VerifyDocuments(r.Context(), middleware.UserID(r.Context()),
		formValue(form, formPanNumber), formValue(form, formAadharNumber),
		formFile(form, intake.FieldPanDocument), formFile(form, intake.FieldAadharDocument))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Documents verification info submitted successfully", map[string]interface{}{
		"user": map[string]interface{}{
			"panNumber":        u.PanNumber,
			"panCardUrl":       u.PanCardURL,
			"panVerified":      u.PanVerified,
			"aadharNumber":     u.AadharNumber,
			"aadharDocUrl":     u.AadharDocURL,
			"isAadharVerified": u.IsAadharVerified,
		},
	})
}

// Verification answers with the caller's submission history as a bare array.
func (h *Handler) Verification(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.Verification(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, subs)
}

func parseMultipart(w http.ResponseWriter, r *http.Request, files int) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(files)*intake.MaxFileSize+(1<<20))
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return nil, apierr.Validation("invalid multipart form: %v", err)
	}
	return r.MultipartForm, nil
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func formFile(form *multipart.Form, key string) *multipart.FileHeader {
	if f := form.File[key]; len(f) > 0 {
		return f[0]
	}
	return nil
}
