package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/taskhub/core/internal/domain/entities"
	"github.com/taskhub/core/internal/infrastructure/logger"
)

func sessionKey(userID, sessionID string) string {
	return "session:" + userID + ":" + sessionID
}

func sessionUserPrefix(userID string) string { return "session:" + userID + ":" }

// RedisSessionStore implements ports.SessionManager on Redis. Sessions are
// disposable state: a lost session only forces a re-login, so Redis TTLs
// double as the expiry mechanism.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewRedisSessionStore creates a session store backed by the shared client
func NewRedisSessionStore(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

// IssueSession stores a new session under its user-scoped key.
func (s *RedisSessionStore) IssueSession(ctx context.Context, session *entities.Session) error {
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = session.CreatedAt.Add(s.ttl)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	key := sessionKey(session.UserID, session.ID)
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

// ListSessions returns the user's live sessions via a prefix scan.
func (s *RedisSessionStore) ListSessions(ctx context.Context, userID string) ([]*entities.Session, error) {
	var sessions []*entities.Session
	var cursor uint64
	pattern := sessionUserPrefix(userID) + "*"

	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan sessions: %w", err)
		}

		for _, key := range keys {
			payload, err := s.client.Get(ctx, key).Bytes()
			if err == redis.Nil {
				continue // expired between scan and get
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read session %s: %w", key, err)
			}

			var session entities.Session
			if err := json.Unmarshal(payload, &session); err != nil {
				s.logger.Warnw("Dropping undecodable session entry", "key", key, "error", err.Error())
				_ = s.client.Del(ctx, key).Err()
				continue
			}
			sessions = append(sessions, &session)
		}

		cursor = next
		if cursor == 0 {
			return sessions, nil
		}
	}
}

// RevokeSession deletes a single session. Revoking an absent session
// reports entities.ErrSessionNotFound.
func (s *RedisSessionStore) RevokeSession(ctx context.Context, userID, sessionID string) error {
	deleted, err := s.client.Del(ctx, sessionKey(userID, sessionID)).Result()
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if deleted == 0 {
		return entities.ErrSessionNotFound
	}
	return nil
}

// SessionActive reports whether the session exists and has not expired.
func (s *RedisSessionStore) SessionActive(ctx context.Context, userID, sessionID string) (bool, error) {
	exists, err := s.client.Exists(ctx, sessionKey(userID, sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return exists > 0, nil
}
