package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/estate-market/internal/events"
	"github.com/ayush/estate-market/internal/store/memstore"
)

type memSessions struct {
	next int
	m    map[string]string
}

func (s *memSessions) Create(_ context.Context, userID string) (string, error) {
	s.next++
	sid := fmt.Sprintf("sid-%d", s.next)
	s.m[sid] = userID
	return sid, nil
}

func (s *memSessions) Get(_ context.Context, sid string) (string, error) { return s.m[sid], nil }

func (s *memSessions) Delete(_ context.Context, sid string) error {
	delete(s.m, sid)
	return nil
}

type authEnv struct {
	sessions *memSessions
	tokens   *Tokens
	h        *Handler
}

func newAuthEnv() *authEnv {
	e := &authEnv{sessions: &memSessions{m: map[string]string{}}, tokens: NewTokens("test-secret", time.Hour)}
	e.h = NewHandler(memstore.NewUsers(), e.sessions, e.tokens, events.Discard{}, false)
	return e
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

const aliceSignup = `{"username":"alice","email":"Alice@Example.com","password":"secret1","mobile":"9876543210"}`

func TestSignupSigninSignout(t *testing.T) {
	e := newAuthEnv()

	rec := post(e.h.Signup, aliceSignup)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret1")
	assert.NotContains(t, rec.Body.String(), "password")

	rec = post(e.h.Signin, `{"email":"alice@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == AccessCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.NotContains(t, rec.Body.String(), cookie.Value)

	var body struct {
		User struct {
			ID string `json:"_id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	gate := NewGate(e.tokens, e.sessions)
	id, err := gate.Authenticate(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, body.User.ID, id.UserID)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	e.h.Signout(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err = gate.Authenticate(context.Background(), cookie.Value)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestSignupDuplicate(t *testing.T) {
	e := newAuthEnv()
	require.Equal(t, http.StatusCreated, post(e.h.Signup, aliceSignup).Code)
	assert.Equal(t, http.StatusConflict, post(e.h.Signup, aliceSignup).Code)
}

func TestSignupValidation(t *testing.T) {
	e := newAuthEnv()
	rec := post(e.h.Signup, `{"username":"al","email":"bad","password":"1","mobile":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSigninWrongPassword(t *testing.T) {
	e := newAuthEnv()
	require.Equal(t, http.StatusCreated, post(e.h.Signup, aliceSignup).Code)

	assert.Equal(t, http.StatusUnauthorized, post(e.h.Signin, `{"email":"alice@example.com","password":"wrong-pw"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, post(e.h.Signin, `{"email":"nobody@example.com","password":"secret1"}`).Code)
	assert.Empty(t, e.sessions.m)
}
