package pricecache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"multiswap/internal/constants"
)

// Store persists price records outside the session so a new session starts
// warm. Implementations are best-effort; the cache logs and continues on
// store errors.
type Store interface {
	Load(ctx context.Context, feedID string) (Record, error)
	Save(ctx context.Context, rec Record) error
}

// RedisStore keeps one JSON record per feed id under price:<feedId> with a
// TTL, shared by every session pointed at the same Redis.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Load(ctx context.Context, feedID string) (Record, error) {
	val, err := s.client.Get(ctx, recordKey(feedID)).Result()
	if err == redis.Nil {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load price record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal price record: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal price record: %w", err)
	}
	if err := s.client.Set(ctx, recordKey(rec.FeedID), b, constants.PriceRecordTTL).Err(); err != nil {
		return fmt.Errorf("save price record: %w", err)
	}
	return nil
}

func recordKey(feedID string) string {
	return constants.RedisKeyPricePrefix + feedID
}
