package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a session token does not resolve
var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps authenticated sessions in Redis.
// A session is an opaque random token mapped to a user id with a TTL; the
// active snapshot job-group handle is stored alongside it.
type SessionStore struct {
	redis *RedisStore
	ttl   time.Duration
}

// NewSessionStore creates a session store with the given TTL
func NewSessionStore(redis *RedisStore, ttl time.Duration) *SessionStore {
	return &SessionStore{redis: redis, ttl: ttl}
}

func sessionKey(token string) string {
	return "session:" + token
}

func jobGroupKey(token string) string {
	return "session:" + token + ":jobgroup"
}

// Create establishes a new session for the user and returns its token
func (s *SessionStore) Create(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := s.redis.Client().Set(ctx, sessionKey(token), userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	return token, nil
}

// Get resolves a session token to a user id
func (s *SessionStore) Get(ctx context.Context, token string) (string, error) {
	userID, err := s.redis.Client().Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to read session: %w", err)
	}
	return userID, nil
}

// Delete removes a session and any job-group handle attached to it
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.redis.Client().Del(ctx, sessionKey(token), jobGroupKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SetJobGroup attaches a snapshot job-group handle to a session
func (s *SessionStore) SetJobGroup(ctx context.Context, token, groupID string) error {
	if err := s.redis.Client().Set(ctx, jobGroupKey(token), groupID, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store job group handle: %w", err)
	}
	return nil
}

// GetJobGroup returns the job-group handle attached to a session, or empty
func (s *SessionStore) GetJobGroup(ctx context.Context, token string) (string, error) {
	groupID, err := s.redis.Client().Get(ctx, jobGroupKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read job group handle: %w", err)
	}
	return groupID, nil
}
