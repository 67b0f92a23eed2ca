package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID    string
	SessionID string
}

// Tokens signs and verifies HS256 access tokens. The token id (jti) is the
// Redis session id.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for userID bound to session sid.
func (t *Tokens) Issue(userID, sid string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(t.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ID:        sid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies signature and expiry and returns the identity the token names.
func (t *Tokens) Parse(tokenStr string) (Identity, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return Identity{}, errors.New("token missing subject or id")
	}
	return Identity{UserID: claims.Subject, SessionID: claims.ID}, nil
}

// SessionLookup resolves a session id to its user id ("" when gone).
type SessionLookup interface {
	Get(ctx context.Context, sessionID string) (string, error)
}

// Gate is the identity gate: a valid token whose session is still live.
type Gate struct {
	tokens   *Tokens
	sessions SessionLookup
}

func NewGate(tokens *Tokens, sessions SessionLookup) *Gate {
	return &Gate{tokens: tokens, sessions: sessions}
}

var ErrSessionRevoked = errors.New("session expired")

// Authenticate verifies tokenStr and checks the session still maps to the
// token's subject.
func (g *Gate) Authenticate(ctx context.Context, tokenStr string) (Identity, error) {
	id, err := g.tokens.Parse(tokenStr)
	if err != nil {
		return Identity{}, err
	}
	uid, err := g.sessions.Get(ctx, id.SessionID)
	if err != nil {
		return Identity{}, fmt.Errorf("session lookup: %w", err)
	}
	if uid == "" || uid != id.UserID {
		return Identity{}, ErrSessionRevoked
	}
	return id, nil
}
