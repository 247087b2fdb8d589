package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Blackmamoth/collably-sub000/internal/model"
)

// DefaultSnapshotTTL bounds how long a cached board snapshot may live.
const DefaultSnapshotTTL = 10 * time.Minute

// RedisClient wraps the Redis client for board snapshot caching
type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect dials Redis and verifies the connection with a ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	log.Printf("[Redis] Connected to %s", addr)
	return client, nil
}

// NewRedisClientWith wraps an existing client.
func NewRedisClientWith(client *redis.Client, ttl time.Duration) *RedisClient {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &RedisClient{client: client, ttl: ttl}
}

func snapshotKey(projectID string) string {
	return "board:" + projectID + ":snapshot"
}

// GetSnapshot returns the cached element list; ok is false on a miss.
func (r *RedisClient) GetSnapshot(ctx context.Context, projectID string) ([]model.Element, bool, error) {
	val, err := r.client.Get(ctx, snapshotKey(projectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var elements []model.Element
	if err := json.Unmarshal(val, &elements); err != nil {
		// 손상된 캐시는 미스로 취급
		log.Printf("[Redis] Dropping unreadable snapshot for %s: %v", projectID, err)
		r.client.Del(ctx, snapshotKey(projectID))
		return nil, false, nil
	}
	return elements, true, nil
}

// SetSnapshot caches the element list for the project.
func (r *RedisClient) SetSnapshot(ctx context.Context, projectID string, elements []model.Element) error {
	if elements == nil {
		elements = []model.Element{}
	}
	data, err := json.Marshal(elements)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, snapshotKey(projectID), data, r.ttl).Err(); err != nil {
		log.Printf("[Redis] Failed to cache snapshot: %v", err)
		return err
	}
	return nil
}

// Invalidate drops the cached snapshot after a mutation.
func (r *RedisClient) Invalidate(ctx context.Context, projectID string) error {
	return r.client.Del(ctx, snapshotKey(projectID)).Err()
}

// Ping checks the connection
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}
