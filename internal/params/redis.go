package params

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"pack2mqtt/internal/config"
	"pack2mqtt/internal/core/domain"
	"pack2mqtt/internal/core/port"
)

const (
	redisKeyDevice = "pack2mqtt:device"

	redisFieldParams   = "params"
	redisFieldState    = "state"
	redisFieldCounters = "counters"

	redisOpTimeout = 5 * time.Second
)

// RedisStore keeps the three device documents as JSON blobs in one redis
// hash. Survives agent restarts as long as redis persistence is enabled.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) loadField(field string, out any) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	blob, err := s.client.HGet(ctx, redisKeyDevice, field).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(blob), out); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) saveField(field string, value any) error {
	blob, err := json.Marshal(value)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return s.client.HSet(ctx, redisKeyDevice, field, blob).Err()
}

func (s *RedisStore) LoadParams() (domain.DeviceParams, bool, error) {
	var p domain.DeviceParams
	found, err := s.loadField(redisFieldParams, &p)
	return p, found, err
}

func (s *RedisStore) SaveParams(p domain.DeviceParams) error {
	return s.saveField(redisFieldParams, p)
}

func (s *RedisStore) LoadState() (domain.DeviceState, bool, error) {
	var st domain.DeviceState
	found, err := s.loadField(redisFieldState, &st)
	return st, found, err
}

func (s *RedisStore) SaveState(st domain.DeviceState) error {
	return s.saveField(redisFieldState, st)
}

func (s *RedisStore) LoadCounters() (domain.DeviceCounters, bool, error) {
	var c domain.DeviceCounters
	found, err := s.loadField(redisFieldCounters, &c)
	return c, found, err
}

func (s *RedisStore) SaveCounters(c domain.DeviceCounters) error {
	return s.saveField(redisFieldCounters, c)
}

var _ port.ParamStore = (*RedisStore)(nil)
