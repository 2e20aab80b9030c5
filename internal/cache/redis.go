package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// RedisConfig Redis 缓存后端配置。
type RedisConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Password string `yaml:"password,omitempty" json:"-"`
	DB       int    `yaml:"db,omitempty" json:"db,omitempty"`
}

// RedisStore 基于 Redis 的响应缓存，TTL 交给 Redis 管理。
// 多个进程共享同一缓存时使用。
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore 创建 Redis 缓存并验证连接。
func NewRedisStore(ctx context.Context, cfg *RedisConfig, ttl time.Duration) (*RedisStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis cache: ping %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// Get 查询缓存。
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	raw, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis cache: get: %w", err)
	}
	var entry Entry
	if err := sonic.UnmarshalString(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("redis cache: decode entry: %w", err)
	}
	return &entry, true, nil
}

// Set 写入缓存。
func (s *RedisStore) Set(ctx context.Context, key string, entry *Entry) error {
	now := time.Now()
	stored := *entry
	if stored.StoredAt.IsZero() {
		stored.StoredAt = now
	}
	if stored.ExpiresAt.IsZero() {
		stored.ExpiresAt = stored.StoredAt.Add(s.ttl)
	}
	raw, err := sonic.MarshalString(&stored)
	if err != nil {
		return fmt.Errorf("redis cache: encode entry: %w", err)
	}
	return s.client.Set(ctx, key, raw, s.ttl).Err()
}

// Purge 按键前缀清空本引擎写入的条目。
func (s *RedisStore) Purge(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, "crew:cache:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close 关闭 Redis 连接。
func (s *RedisStore) Close() error {
	return s.client.Close()
}
