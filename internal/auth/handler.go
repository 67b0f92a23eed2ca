package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/estate-market/internal/apierr"
	"github.com/ayush/estate-market/internal/events"
	"github.com/ayush/estate-market/internal/httpx"
	"github.com/ayush/estate-market/internal/models"
	"github.com/ayush/estate-market/internal/store"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Sessions is the server-side session registry.
type Sessions interface {
	Create(ctx context.Context, userID string) (string, error)
	Delete(ctx context.Context, sessionID string) error
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	users        UserStore
	sessions     Sessions
	tokens       *Tokens
	events       events.Publisher
	secureCookie bool
}

func NewHandler(users UserStore, sessions Sessions, tokens *Tokens, pub events.Publisher, secureCookie bool) *Handler {
	return &Handler{users: users, sessions: sessions, tokens: tokens, events: pub, secureCookie: secureCookie}
}

// Signup creates a new user.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httpx.WriteError(w, r, apierr.Store("hash password", err))
		return
	}

	user := &models.User{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: string(hashed),
		Mobile:   req.Mobile,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			httpx.WriteError(w, r, apierr.Conflict("Username, email or mobile already registered"))
			return
		}
		httpx.WriteError(w, r, apierr.Store("create user", err))
		return
	}

	h.events.Publish(r.Context(), events.Event{Type: events.UserRegistered, UserID: user.ID.Hex()})
	httpx.WriteSuccess(w, http.StatusCreated, "User created successfully", map[string]interface{}{"user": user})
}

// Signin authenticates a user, opens a session and sets the access cookie.
func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var req models.SigninRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	user, err := h.users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, r, apierr.Unauthenticated("Invalid credentials"))
			return
		}
		httpx.WriteError(w, r, apierr.Store("load user", err))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		httpx.WriteError(w, r, apierr.Unauthenticated("Invalid credentials"))
		return
	}

	uid := user.ID.Hex()
	sid, err := h.sessions.Create(r.Context(), uid)
	if err != nil {
		httpx.WriteError(w, r, apierr.Store("create session", err))
		return
	}
	token, exp, err := h.tokens.Issue(uid, sid)
	if err != nil {
		httpx.WriteError(w, r, apierr.Store("issue token", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(time.Until(exp) / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	httpx.WriteSuccess(w, http.StatusOK, "Signed in", map[string]interface{}{"user": user})
}

// Signout destroys the current session. It succeeds without a valid token.
func (h *Handler) Signout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(AccessCookie); err == nil {
		if id, err := h.tokens.Parse(c.Value); err == nil {
			if err := h.sessions.Delete(r.Context(), id.SessionID); err != nil {
				log.Printf("signout: delete session %s: %v", id.SessionID, err)
			}
		}
	}
	ClearCookie(w, h.secureCookie)
	httpx.WriteSuccess(w, http.StatusOK, "User has been logged out", nil)
}

// ClearCookie expires the access cookie on the client.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
