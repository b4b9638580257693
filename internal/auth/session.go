package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/suriekke/shopeasy2-sub000/internal/apperrors"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
)

const sessionPrefix = "session"

type Session struct {
	Token     string    `json:"-"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == models.RoleAdmin
}

// SessionStore maps opaque bearer tokens to users.
type SessionStore struct {
	rdb redis.Cmdable
	ttl time.Duration
	now func() time.Time
}

func NewSessionStore(rdb redis.Cmdable, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: ttl, now: time.Now}
}

func sessionKey(token string) string {
	return keyNamespace + ":" + sessionPrefix + ":" + token
}

func (s *SessionStore) Create(ctx context.Context, user *models.User) (*Session, error) {
	session := &Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Role:      user.Role,
		ExpiresAt: s.now().Add(s.ttl).UTC(),
	}
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(session.Token), data, s.ttl).Err(); err != nil {
		return nil, apperrors.Infrastructure(err, "store session")
	}
	return session, nil
}

func (s *SessionStore) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "missing session token")
	}
	data, err := s.rdb.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.New(apperrors.CodeUnauthorized, "session expired or unknown")
		}
		return nil, apperrors.Infrastructure(err, "load session")
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "session is corrupt")
	}
	session.Token = token
	return &session, nil
}

func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, sessionKey(token)).Err(); err != nil {
		return apperrors.Infrastructure(err, "revoke session")
	}
	return nil
}
