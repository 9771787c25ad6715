// Package repository persists per-session checkout drafts.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"store-assistant/internal/domain"
)

// StoreType selects a draft store driver.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeDynamoDB StoreType = "dynamodb"
)

const defaultTTL = 2 * time.Hour

var (
	ErrInvalidStoreType = errors.New("repository: unknown draft store type")
	ErrInvalidConfig    = errors.New("repository: draft store is missing required configuration")
)

// DraftStore is implemented by every driver. Load returns (nil, nil) when
// the session has no live draft.
type DraftStore interface {
	Load(ctx context.Context, sessionID string) (*domain.Draft, error)
	Save(ctx context.Context, draft domain.Draft) error
	Delete(ctx context.Context, sessionID string) error
}

type StoreOption func(*storeConfig)

type storeConfig struct {
	ttl       time.Duration
	redis     redisAPI
	dynamo    dynamodbAPI
	tableName string
	now       func() time.Time
}

// WithTTL sets how long an untouched draft survives.
func WithTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) { c.ttl = ttl }
}

// WithRedisClient accepts a *redis.Client or anything with its Get/Set/Del.
func WithRedisClient(client redisAPI) StoreOption {
	return func(c *storeConfig) { c.redis = client }
}

// WithDynamoDB accepts a *dynamodb.Client and the table holding drafts.
func WithDynamoDB(api dynamodbAPI, tableName string) StoreOption {
	return func(c *storeConfig) {
		c.dynamo = api
		c.tableName = tableName
	}
}

func withClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) { c.now = now }
}

// NewDraftStore builds the driver named by kind.
func NewDraftStore(kind StoreType, opts ...StoreOption) (DraftStore, error) {
	cfg := &storeConfig{now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.ttl <= 0 {
		cfg.ttl = defaultTTL
	}

	switch StoreType(strings.ToLower(string(kind))) {
	case StoreTypeMemory, "":
		return newMemoryStore(cfg.ttl, cfg.now), nil
	case StoreTypeRedis:
		if cfg.redis == nil {
			return nil, fmt.Errorf("%w: redis client", ErrInvalidConfig)
		}
		return &redisStore{client: cfg.redis, ttl: cfg.ttl}, nil
	case StoreTypeDynamoDB:
		if cfg.dynamo == nil || strings.TrimSpace(cfg.tableName) == "" {
			return nil, fmt.Errorf("%w: dynamodb client and table name", ErrInvalidConfig)
		}
		return &dynamoStore{api: cfg.dynamo, tableName: cfg.tableName, ttl: cfg.ttl, now: cfg.now}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStoreType, kind)
	}
}

func requireSession(op, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("repository: %s: session id must not be empty", op)
	}
	return nil
}
