package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"
)

const defaultProgressKey = "funnel:progress"

// RedisStore keeps user progress in a single Redis hash, field = user id,
// value = step index. Used instead of SQLite when REDIS_ADDR is set.
type RedisStore struct {
	client  *backend.Client
	key     string
	timeout time.Duration
}

func NewRedisStore(addr, password string, db int) *RedisStore {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(client)
}

func NewRedisStoreFromClient(client *backend.Client) *RedisStore {
	return &RedisStore{
		client:  client,
		key:     defaultProgressKey,
		timeout: 5 * time.Second,
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Get(userID int64) (int, bool, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	value, err := s.client.HGet(ctx, s.key, strconv.FormatInt(userID, 10)).Result()
	if err == backend.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	index, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt progress value %q for user %d: %w", value, userID, err)
	}
	return index, true, nil
}

func (s *RedisStore) Set(userID int64, index int) error {
	ctx, cancel := s.opContext()
	defer cancel()

	return s.client.HSet(ctx, s.key, strconv.FormatInt(userID, 10), index).Err()
}

func (s *RedisStore) LoadAll() (map[int64]int, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}

	all := make(map[int64]int, len(values))
	for field, value := range values {
		userID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt progress field %q: %w", field, err)
		}
		index, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("corrupt progress value %q for user %s: %w", value, field, err)
		}
		all[userID] = index
	}
	return all, nil
}

func (s *RedisStore) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}
