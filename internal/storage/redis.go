package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/maneesh/talentdrop/internal/models"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// CacheTTL is the time-to-live for cached records (5 minutes)
	CacheTTL = 5 * time.Minute
)

// RedisClient caches candidate records and blob metadata
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient initializes a new Redis client
func NewRedisClient(ctx context.Context, addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test the connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// Close closes the Redis connection
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

// GetCandidate returns a cached candidate, or nil on a cache miss
func (rc *RedisClient) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	var c models.Candidate
	hit, err := rc.get(ctx, "candidate:"+id, &c)
	if err != nil || !hit {
		return nil, err
	}
	return &c, nil
}

// SetCandidate caches a candidate record
func (rc *RedisClient) SetCandidate(ctx context.Context, c *models.Candidate) error {
	return rc.set(ctx, "candidate:"+c.ID, c)
}

// InvalidateCandidate drops a cached candidate record
func (rc *RedisClient) InvalidateCandidate(ctx context.Context, id string) error {
	return rc.invalidate(ctx, "candidate:"+id)
}

// GetBlob returns cached blob metadata, or nil on a cache miss
func (rc *RedisClient) GetBlob(ctx context.Context, id string) (*models.Blob, error) {
	var b models.Blob
	hit, err := rc.get(ctx, "blob:"+id, &b)
	if err != nil || !hit {
		return nil, err
	}
	return &b, nil
}

// SetBlob caches blob metadata. Blobs are immutable so entries never go stale.
func (rc *RedisClient) SetBlob(ctx context.Context, b *models.Blob) error {
	return rc.set(ctx, "blob:"+b.ID, b)
}

func (rc *RedisClient) get(ctx context.Context, key string, dst any) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.get",
		trace.WithAttributes(
			attribute.String("key", key),
		),
	)
	defer span.End()

	data, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.String("cache_status", "miss"))
		return false, nil
	} else if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	span.SetAttributes(attribute.String("cache_status", "hit"))
	return true, nil
}

func (rc *RedisClient) set(ctx context.Context, key string, v any) error {
	ctx, span := tracer.Start(ctx, "redis.set",
		trace.WithAttributes(
			attribute.String("key", key),
			attribute.Int64("ttl_seconds", int64(CacheTTL.Seconds())),
		),
	)
	defer span.End()

	data, err := json.Marshal(v)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := rc.client.Set(ctx, key, data, CacheTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

func (rc *RedisClient) invalidate(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "redis.invalidate",
		trace.WithAttributes(
			attribute.String("key", key),
		),
	)
	defer span.End()

	if err := rc.client.Del(ctx, key).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}
