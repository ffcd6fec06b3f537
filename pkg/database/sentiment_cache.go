package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leon-madara/resona-core/internal/records"
)

// sentimentCacheKeyPrefix namespaces sentiment cache entries within the
// Redis keyspace they share with any other user of the same database.
const sentimentCacheKeyPrefix = "sentiment:"

// sentimentCacheTTL bounds how long a shared sentiment cache entry survives;
// process-local LRU eviction already bounds the hot tier, this just stops
// Redis from growing unbounded on a long-lived deployment.
const sentimentCacheTTL = 24 * time.Hour

// RedisSentimentCache implements sentiment.SharedCache: a second-tier cache
// shared across every session-processor instance, keyed only by text-hash
// exactly like the in-process LRU it sits behind.
type RedisSentimentCache struct {
	client *RedisClient
}

// NewRedisSentimentCache constructs a RedisSentimentCache.
func NewRedisSentimentCache(client *RedisClient) *RedisSentimentCache {
	return &RedisSentimentCache{client: client}
}

func (c *RedisSentimentCache) Get(ctx context.Context, key string) (records.SentimentScore, bool, error) {
	result := c.client.Get(ctx, sentimentCacheKeyPrefix+key)
	if errors.Is(result.Err(), redis.Nil) {
		return records.SentimentScore{}, false, nil
	}
	if result.Err() != nil {
		return records.SentimentScore{}, false, fmt.Errorf("get sentiment cache entry: %w", result.Err())
	}

	var score records.SentimentScore
	if err := json.Unmarshal([]byte(result.Val()), &score); err != nil {
		return records.SentimentScore{}, false, fmt.Errorf("unmarshal sentiment cache entry: %w", err)
	}
	return score, true, nil
}

func (c *RedisSentimentCache) Put(ctx context.Context, key string, score records.SentimentScore) error {
	data, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("marshal sentiment cache entry: %w", err)
	}
	return c.client.Set(ctx, sentimentCacheKeyPrefix+key, data, sentimentCacheTTL).Err()
}
