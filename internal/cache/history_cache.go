package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"github.com/lucansdev/project-ai-document/internal/model"
)

const (
	historyKeyFmt = "chat:conv:%d:history"
	dirtyKeyFmt   = "chat:conv:%d:dirty"

	minHistoryTTL = 10 * time.Second
	minDirtyTTL   = 2 * time.Second
)

// HistoryCache keeps a conversation's transcript in redis. Message
// persistence is asynchronous, so writers set a short-lived dirty marker
// before publishing a turn; while the marker lives, reads bypass the cache
// and nothing re-caches a possibly incomplete transcript.
type HistoryCache struct {
	client         *redisv9.Client
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewHistoryCache(client *redisv9.Client, historyTTL, dirtyMarkerTTL time.Duration) *HistoryCache {
	if historyTTL < minHistoryTTL {
		historyTTL = time.Minute
	}
	if dirtyMarkerTTL < minDirtyTTL {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &HistoryCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

// GetHistory returns the cached transcript and whether it was present.
func (c *HistoryCache) GetHistory(ctx context.Context, conversationID uint) ([]model.Message, bool, error) {
	raw, err := c.client.Get(ctx, fmt.Sprintf(historyKeyFmt, conversationID)).Bytes()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var messages []model.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		// A corrupt entry is treated as a miss; it ages out via TTL.
		return nil, false, nil
	}
	return messages, true, nil
}

func (c *HistoryCache) SetHistory(ctx context.Context, conversationID uint, messages []model.Message) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, fmt.Sprintf(historyKeyFmt, conversationID), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) DeleteHistory(ctx context.Context, conversationID uint) error {
	if err := c.client.Del(ctx, fmt.Sprintf(historyKeyFmt, conversationID)).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

// MarkDirty flags the conversation and drops its cached transcript in one
// round trip.
func (c *HistoryCache) MarkDirty(ctx context.Context, conversationID uint) error {
	pipe := c.client.Pipeline()
	pipe.Set(ctx, fmt.Sprintf(dirtyKeyFmt, conversationID), "1", c.dirtyMarkerTTL)
	pipe.Del(ctx, fmt.Sprintf(historyKeyFmt, conversationID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis mark dirty failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) IsDirty(ctx context.Context, conversationID uint) (bool, error) {
	exists, err := c.client.Exists(ctx, fmt.Sprintf(dirtyKeyFmt, conversationID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}
