// Package cache keeps computed dashboard summaries in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"marrowai-server/internal/analytics"
)

// ErrMiss is returned when no summary is cached.
var ErrMiss = errors.New("cache miss")

// Dashboard caches summaries per user and period.
type Dashboard interface {
	Get(ctx context.Context, userID string, period analytics.Period) (*analytics.Summary, error)
	Set(ctx context.Context, userID string, period analytics.Period, summary *analytics.Summary) error
	Invalidate(ctx context.Context, userID string) error
}

const keyPrefix = "marrowai:dashboard:"

func key(userID string, period analytics.Period) string {
	return keyPrefix + userID + ":" + string(period)
}

// NewRedisClient builds a client for addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// RedisDashboard is a Dashboard backed by Redis.
type RedisDashboard struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisDashboard returns a Redis-backed cache whose entries expire after ttl.
func NewRedisDashboard(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisDashboard {
	return &RedisDashboard{client: client, ttl: ttl, logger: logger}
}

func (d *RedisDashboard) Get(ctx context.Context, userID string, period analytics.Period) (*analytics.Summary, error) {
	val, err := d.client.Get(ctx, key(userID, period)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrMiss
		}
		return nil, err
	}
	var summary analytics.Summary
	if err := json.Unmarshal(val, &summary); err != nil {
		d.logger.Warn("Dropping unreadable dashboard cache entry", zap.String("user_id", userID), zap.Error(err))
		_ = d.client.Del(ctx, key(userID, period)).Err()
		return nil, ErrMiss
	}
	return &summary, nil
}

func (d *RedisDashboard) Set(ctx context.Context, userID string, period analytics.Period, summary *analytics.Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode dashboard summary: %w", err)
	}
	return d.client.Set(ctx, key(userID, period), data, d.ttl).Err()
}

// Invalidate drops every cached period for userID.
func (d *RedisDashboard) Invalidate(ctx context.Context, userID string) error {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := d.client.Scan(ctx, cursor, keyPrefix+userID+":*", 100).Result()
		if err != nil {
			return err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return d.client.Del(ctx, keys...).Err()
}

// Nop is a Dashboard that never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, analytics.Period) (*analytics.Summary, error) {
	return nil, ErrMiss
}

func (Nop) Set(context.Context, string, analytics.Period, *analytics.Summary) error { return nil }

func (Nop) Invalidate(context.Context, string) error { return nil }
