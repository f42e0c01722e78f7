package redisstore

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/BearBump/ColisBox/internal/models"
)

const defaultKey = "colisbox:packages"

// RedisStore хранит реестр одним JSON-блобом под фиксированным ключом.
type RedisStore struct {
	c   *redis.Client
	key string
}

func New(addr, key string) *RedisStore {
	if key == "" {
		key = defaultKey
	}
	return &RedisStore{
		c:   redis.NewClient(&redis.Options{Addr: addr}),
		key: key,
	}
}

func (s *RedisStore) Load(ctx context.Context) ([]models.PackageRecord, error) {
	data, err := s.c.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}

	var records []models.PackageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "decode records")
	}
	return records, nil
}

func (s *RedisStore) Save(ctx context.Context, records []models.PackageRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return errors.Wrap(err, "encode records")
	}
	if err := s.c.Set(ctx, s.key, data, 0).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}
