package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tasksync/internal/config"
	"tasksync/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	syncStateKey  = "tasksync:last_result"
	deadLetterKey = "tasksync:deadletter"
)

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// SyncStateRepository caches the last pass result and mirrors dead letters to
// a redis list for external consumers. All methods tolerate a nil client: the
// engine runs fine without redis.
type SyncStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSyncStateRepository(client *redis.Client, ttl time.Duration) *SyncStateRepository {
	return &SyncStateRepository{client: client, ttl: ttl}
}

// SetLastResult stores the most recent pass summary with a TTL.
func (r *SyncStateRepository) SetLastResult(ctx context.Context, result *models.SyncResult) error {
	if r == nil || r.client == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal sync result: %w", err)
	}
	if err := r.client.Set(ctx, syncStateKey, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set sync result in redis: %w", err)
	}
	return nil
}

// GetLastResult returns the cached pass summary, or nil when absent.
func (r *SyncStateRepository) GetLastResult(ctx context.Context) (*models.SyncResult, error) {
	if r == nil || r.client == nil {
		return nil, nil
	}
	val, err := r.client.Get(ctx, syncStateKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync result from redis: %w", err)
	}

	var result models.SyncResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sync result: %w", err)
	}
	return &result, nil
}

// MirrorDeadLetter pushes a copy of an archived mutation to the dead-letter
// list. Implements sync.DeadLetterMirror.
func (r *SyncStateRepository) MirrorDeadLetter(ctx context.Context, dl models.DeadLetter) error {
	if r == nil || r.client == nil {
		return nil
	}
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}
	if err := r.client.LPush(ctx, deadLetterKey, data).Err(); err != nil {
		return fmt.Errorf("failed to push dead letter to redis: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}
