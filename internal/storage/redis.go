package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
)

// RedisConfig holds connection settings for RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps the record under a single Redis key.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore connects and verifies the server with a ping.
func NewRedisStore(ctx context.Context, cfg RedisConfig, key string) (*RedisStore, error) {
	if key == "" {
		key = DefaultKey
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{rdb: rdb, key: key}, nil
}

// Load reads the record. A missing key is an empty list.
func (s *RedisStore) Load(ctx context.Context) ([]chat.Session, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return Decode(data)
}

// Save overwrites the record.
func (s *RedisStore) Save(ctx context.Context, sessions []chat.Session) error {
	data, err := Encode(sessions)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
