package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"calcReco/business/recommendation"
	"calcReco/domain"

	"github.com/redis/go-redis/v9"
)

const defaultCachePrefix = "calcreco:cache:"

// RecommendationCache stores cached recommendation lists as JSON strings.
type RecommendationCache struct {
	client *redis.Client
	prefix string
}

var _ recommendation.CacheStore = (*RecommendationCache)(nil)

func NewRecommendationCache(client *redis.Client, prefix string) *RecommendationCache {
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	return &RecommendationCache{
		client: client,
		prefix: prefix,
	}
}

func (r *RecommendationCache) Get(ctx context.Context, key string) ([]domain.Recommendation, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cached recommendations: %w", err)
	}

	var recs []domain.Recommendation
	if err := json.Unmarshal([]byte(val), &recs); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached recommendations: %w", err)
	}

	return recs, true, nil
}

// Set stores value under key; a ttl of 0 never expires.
func (r *RecommendationCache) Set(ctx context.Context, key string, value []domain.Recommendation, ttl time.Duration) error {
	if value == nil {
		value = []domain.Recommendation{}
	}

	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	if err := r.client.Set(ctx, r.prefix+key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store recommendations in Redis: %w", err)
	}

	return nil
}

func (r *RecommendationCache) Clear(ctx context.Context) error {
	keys, err := r.scan(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear recommendation cache: %w", err)
	}
	return nil
}

// Keys lists cache keys without the store prefix.
func (r *RecommendationCache) Keys(ctx context.Context) ([]string, error) {
	keys, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, r.prefix))
	}
	sort.Strings(out)
	return out, nil
}

func (r *RecommendationCache) scan(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan recommendation cache: %w", err)
	}
	return keys, nil
}
