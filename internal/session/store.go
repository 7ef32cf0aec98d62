// Package session provides the Redis-backed session store. A session links a
// signed browser cookie to an authenticated user id and expires after a fixed
// window; Redis TTLs do the reaping.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrInvalidToken = errors.New("invalid session token")
)

type Store struct {
	client *redis.Client
	secret []byte
	ttl    time.Duration
}

func NewStore(client *redis.Client, secret string, ttl time.Duration) *Store {
	return &Store{
		client: client,
		secret: []byte(secret),
		ttl:    ttl,
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

// Create persists a new session for the user and returns the signed token
// placed in the cookie.
func (s *Store) Create(ctx context.Context, userID int64) (string, error) {
	id := uuid.NewString()
	key := sessionKey(id)

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"user_id":    userID,
		"created_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, key, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	return id + "." + s.sign(id), nil
}

// Get resolves a signed token to the owning user id. The signature is checked
// before Redis is consulted, so forged cookies never reach the store.
func (s *Store) Get(ctx context.Context, token string) (int64, error) {
	id, err := s.parse(token)
	if err != nil {
		return 0, err
	}

	val, err := s.client.HGet(ctx, sessionKey(id), "user_id").Result()
	if err == redis.Nil {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get session: %w", err)
	}

	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session record: %w", err)
	}

	return userID, nil
}

// Destroy is idempotent; destroying a missing session is not an error.
func (s *Store) Destroy(ctx context.Context, token string) error {
	id, err := s.parse(token)
	if err != nil {
		return err
	}

	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

func (s *Store) sign(id string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Store) parse(token string) (string, error) {
	id, sig, ok := strings.Cut(token, ".")
	if !ok || id == "" {
		return "", ErrInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(id))) {
		return "", ErrInvalidToken
	}
	return id, nil
}
