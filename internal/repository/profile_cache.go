package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go-user-accounts/internal/model"
)

func NewRedisClient(ctx context.Context, addr string, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// ProfileCache stores channel profiles without the viewer-specific flag.
type ProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProfileCache(client *redis.Client, ttl time.Duration) *ProfileCache {
	return &ProfileCache{client: client, ttl: ttl}
}

// Get returns nil with no error on a cache miss.
func (c *ProfileCache) Get(ctx context.Context, userName string) (*model.ChannelProfile, error) {
	val, err := c.client.Get(ctx, c.key(userName)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached channel: %w", err)
	}

	var profile model.ChannelProfile
	if err := json.Unmarshal(val, &profile); err != nil {
		return nil, fmt.Errorf("decode cached channel: %w", err)
	}
	return &profile, nil
}

func (c *ProfileCache) Set(ctx context.Context, profile model.ChannelProfile) error {
	profile.IsSubscribed = false

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode channel: %w", err)
	}

	if err := c.client.Set(ctx, c.key(profile.UserName), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache channel: %w", err)
	}
	return nil
}

func (c *ProfileCache) Delete(ctx context.Context, userName string) error {
	if err := c.client.Del(ctx, c.key(userName)).Err(); err != nil {
		return fmt.Errorf("evict channel: %w", err)
	}
	return nil
}

func (c *ProfileCache) key(userName string) string {
	return fmt.Sprintf("channel:%s", model.NormalizeUserName(userName))
}
