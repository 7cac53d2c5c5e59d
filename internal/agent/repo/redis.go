package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bookshelf-agent/server/internal/agent/model"
	errx "github.com/bookshelf-agent/server/internal/core/error"
	logx "github.com/bookshelf-agent/server/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisSessionRepository keeps each user's history in a capped Redis list.
type RedisSessionRepository struct {
	rdb        redis.Cmdable
	maxEntries int
	ttl        time.Duration
}

func NewRedisSessionRepository(rdb redis.Cmdable, maxEntries int, ttl time.Duration) *RedisSessionRepository {
	if maxEntries <= 0 {
		maxEntries = model.DefaultMaxEntries
	}
	return &RedisSessionRepository{rdb: rdb, maxEntries: maxEntries, ttl: ttl}
}

func (r *RedisSessionRepository) sessionKey(userID string) string {
	return fmt.Sprintf("session:%s:entries", userID)
}

func (r *RedisSessionRepository) Append(ctx context.Context, userID string, entry model.ConversationEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		logx.Error().Err(err).Str("userID", userID).Msg("failed to marshal conversation entry")
		return fmt.Errorf("marshal entry: %w", err)
	}
	key := r.sessionKey(userID)

	// push, trim and touch in one MULTI/EXEC
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, b)
		pipe.LTrim(ctx, key, int64(-r.maxEntries), -1)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to append conversation entry to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionRepository) History(ctx context.Context, userID string) ([]model.ConversationEntry, error) {
	key := r.sessionKey(userID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []model.ConversationEntry{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load session history from redis")
		return nil, errx.WrapRedis(err)
	}

	entries := make([]model.ConversationEntry, 0, len(rows))
	for i, s := range rows {
		var e model.ConversationEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			logx.Error().Err(err).Str("userID", userID).Int("index", i).Msg("failed to unmarshal conversation entry")
			return nil, fmt.Errorf("unmarshal entry at index %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *RedisSessionRepository) Clear(ctx context.Context, userID string) error {
	key := r.sessionKey(userID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete session history from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionRepository) Count(ctx context.Context, userID string) (int, error) {
	key := r.sessionKey(userID)
	n, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to get session length from redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

var _ model.SessionRepository = (*RedisSessionRepository)(nil)
