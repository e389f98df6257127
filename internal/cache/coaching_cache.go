package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trade-coach/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	latestResultKey = "coaching:latest"
	latestResultTTL = 24 * time.Hour
)

// CoachingCache keeps the most recent completed coaching result in Redis
// so restarts and the read API do not need to rerun the pipeline.
type CoachingCache struct {
	client *redis.Client
}

func NewCoachingCache(client *redis.Client) *CoachingCache {
	return &CoachingCache{client: client}
}

func (c *CoachingCache) SetLatest(ctx context.Context, result domain.CoachingResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode coaching result: %w", err)
	}
	if err := c.client.Set(ctx, latestResultKey, payload, latestResultTTL).Err(); err != nil {
		return fmt.Errorf("cache coaching result: %w", err)
	}
	return nil
}

func (c *CoachingCache) Latest(ctx context.Context) (*domain.CoachingResult, error) {
	payload, err := c.client.Get(ctx, latestResultKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached coaching result: %w", err)
	}
	var result domain.CoachingResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode cached coaching result: %w", err)
	}
	return &result, nil
}
