package calibration

import (
	"context"
	"fmt"
	"strconv"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore keeps offsets in a single redis hash, one field per actuator.
type RedisStore struct {
	client *backend.Client
	key    string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKey sets the hash key.
func WithKey(key string) RedisOption {
	return func(s *RedisStore) {
		if key != "" {
			s.key = key
		}
	}
}

// NewRedisStore connects to the redis server at addr.
func NewRedisStore(addr string, db int, opts ...RedisOption) *RedisStore {
	return NewRedisStoreFromClient(backend.NewClient(&backend.Options{
		Addr: addr,
		DB:   db,
	}), opts...)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		key:    DefaultConfig().RedisKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the whole hash.
func (s *RedisStore) Load(ctx context.Context) (map[string]float64, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load calibration from redis: %w", err)
	}

	offsets := make(map[string]float64, len(fields))
	for id, raw := range fields {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("calibration %q: bad offset %q: %w", id, raw, err)
		}
		offsets[id] = v
	}
	return offsets, nil
}

// Save writes one field.
func (s *RedisStore) Save(ctx context.Context, id string, offset float64) error {
	if id == "" {
		return ErrInvalidKey
	}
	value := strconv.FormatFloat(offset, 'f', -1, 64)
	if err := s.client.HSet(ctx, s.key, id, value).Err(); err != nil {
		return fmt.Errorf("save calibration to redis: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
