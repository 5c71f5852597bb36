package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/joa111/ecom-mang/pkg/errors"
)

const keyPrefix = "guestcart:"

// GuestStorage implements repository.LocalStorage on Redis. It holds guest
// cart snapshots keyed by session ID, expiring after the configured TTL so
// abandoned guest carts clean themselves up.
type GuestStorage struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGuestStorage creates a new Redis-backed guest cart storage.
func NewGuestStorage(client *redis.Client, ttl time.Duration) *GuestStorage {
	return &GuestStorage{
		client: client,
		ttl:    ttl,
	}
}

// Load retrieves the snapshot stored under the given key. Returns ErrNotFound
// when no snapshot exists.
func (s *GuestStorage) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.NotFound("guest cart", key)
		}
		return nil, apperrors.StoreUnavailable(fmt.Errorf("redis get guest cart: %w", err))
	}
	return data, nil
}

// Save stores the snapshot under the given key with the configured TTL.
func (s *GuestStorage) Save(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, keyPrefix+key, data, s.ttl).Err(); err != nil {
		return apperrors.StoreUnavailable(fmt.Errorf("redis set guest cart: %w", err))
	}
	return nil
}

// Delete removes the snapshot under the given key.
func (s *GuestStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return apperrors.StoreUnavailable(fmt.Errorf("redis del guest cart: %w", err))
	}
	return nil
}
