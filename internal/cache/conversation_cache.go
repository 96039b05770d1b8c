package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"docwell/internal/model"
)

type ConversationCache struct {
	client         *redisv9.Client
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewConversationCache(client *redisv9.Client, historyTTL, dirtyMarkerTTL time.Duration) *ConversationCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &ConversationCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *ConversationCache) GetRecent(ctx context.Context, userID string) ([]model.Conversation, bool, error) {
	key := c.historyKey(userID)
	raw, err := c.client.Get(ctx, key).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get conversations failed: %w", err)
	}

	var convs []model.Conversation
	if err := json.Unmarshal([]byte(raw), &convs); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached conversations failed: %w", err)
	}
	return convs, true, nil
}

func (c *ConversationCache) SetRecent(ctx context.Context, userID string, convs []model.Conversation) error {
	key := c.historyKey(userID)
	payload, err := json.Marshal(convs)
	if err != nil {
		return fmt.Errorf("marshal conversation cache failed: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set conversations failed: %w", err)
	}
	return nil
}

func (c *ConversationCache) Invalidate(ctx context.Context, userID string) error {
	key := c.historyKey(userID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete conversations failed: %w", err)
	}
	return nil
}

func (c *ConversationCache) MarkDirty(ctx context.Context, userID string) error {
	key := c.dirtyKey(userID)
	if err := c.client.Set(ctx, key, "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *ConversationCache) IsDirty(ctx context.Context, userID string) (bool, error) {
	key := c.dirtyKey(userID)
	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *ConversationCache) historyKey(userID string) string {
	return fmt.Sprintf("docwell:conversations:%s", userID)
}

func (c *ConversationCache) dirtyKey(userID string) string {
	return fmt.Sprintf("docwell:conversations:dirty:%s", userID)
}
