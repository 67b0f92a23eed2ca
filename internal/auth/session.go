package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	SessionTTL = 24 * time.Hour
	// AccessCookie carries the signed access token.
	AccessCookie = "access_token"
)

func sessionKey(sid string) string { return "session:" + sid }
func userSessionsKey(uid string) string { return "user_sessions:" + uid }

// SessionStore keeps server-side sessions in Redis so a signed token can be
// revoked before it expires. Each user also has a set of their session ids.
type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

// Create stores a new session mapping sessionID -> userID.
func (s *SessionStore) Create(ctx context.Context, userID string) (string, error) {
	sid := uuid.New().String()
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKey(sid), userID, SessionTTL)
		p.SAdd(ctx, userSessionsKey(userID), sid)
		p.Expire(ctx, userSessionsKey(userID), SessionTTL)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sid, nil
}

// Get returns the userID for a session, or "" if not found / expired.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (string, error) {
	val, err := s.rdb.Get(ctx, sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	uid, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, sessionKey(sessionID))
		if uid != "" {
			p.SRem(ctx, userSessionsKey(uid), sessionID)
		}
		return nil
	})
	return err
}

// DeleteUser revokes every session of userID.
func (s *SessionStore) DeleteUser(ctx context.Context, userID string) error {
	sids, err := s.rdb.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	keys := make([]string, 0, len(sids)+1)
	for _, sid := range sids {
		keys = append(keys, sessionKey(sid))
	}
	keys = append(keys, userSessionsKey(userID))
	return s.rdb.Del(ctx, keys...).Err()
}
