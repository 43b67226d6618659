package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ikkim/gold-portfolio-backend/config"
	"github.com/ikkim/gold-portfolio-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// 모든 명령은 이 시간 안에 끝나야 한다
const opTimeout = 2 * time.Second

// Client go-redis 클라이언트에 JSON 캐시 헬퍼를 더한 것
type Client struct {
	rdb *redis.Client
}

// NewClient initializes Redis connection
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	logger.Info("Initializing Redis connection", map[string]interface{}{
		"host": cfg.Host,
		"port": cfg.Port,
		"db":   cfg.DB,
	})

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  opTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", err, map[string]interface{}{
			"host": cfg.Host,
			"port": cfg.Port,
		})
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully", nil)
	return &Client{rdb: rdb}, nil
}

// NewFromClient 이미 만들어진 go-redis 클라이언트 사용
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// GetJSON 키가 없으면 (false, nil)
func (c *Client) GetJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON 값을 JSON 으로 저장
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	logger.Info("Closing Redis connection", nil)
	return c.rdb.Close()
}
