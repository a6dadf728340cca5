package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const humanCodePrefix = "qr:code:"

// HumanCodeStore maps the optional 6-digit human code to its QR token value.
// The mapping is a convenience channel: entries carry the QR TTL and a miss
// simply means the code cannot be used.
type HumanCodeStore interface {
	Save(ctx context.Context, code, tokenValue string, ttl time.Duration) error
	Lookup(ctx context.Context, code string) (string, error)
}

type humanCodeStore struct {
	client *redis.Client
}

// NewHumanCodeStore returns a Redis-backed implementation.
func NewHumanCodeStore(client *redis.Client) HumanCodeStore {
	return &humanCodeStore{client: client}
}

func (s *humanCodeStore) Save(ctx context.Context, code, tokenValue string, ttl time.Duration) error {
	if s.client == nil {
		return errors.New("redis client not configured")
	}
	return s.client.Set(ctx, humanCodePrefix+code, tokenValue, ttl).Err()
}

// Lookup returns the token value for a code, or "" when the code is unknown
// or already evicted.
func (s *humanCodeStore) Lookup(ctx context.Context, code string) (string, error) {
	if s.client == nil {
		return "", nil
	}
	value, err := s.client.Get(ctx, humanCodePrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}
