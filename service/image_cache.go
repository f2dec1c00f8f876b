package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ImageCache stores proxied image bytes by cache key.
// Get reports a miss for anything it cannot read; caching never fails a request.
type ImageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte)
}

// CacheKey derives the cache key for an upstream URL
func CacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// DiskImageCache keeps images as files under a cache directory
type DiskImageCache struct {
	dir string
	ttl time.Duration
	log *zap.Logger
}

// Ensure DiskImageCache implements ImageCache
var _ ImageCache = (*DiskImageCache)(nil)

// NewDiskImageCache creates the cache directory if it doesn't exist.
// A zero ttl keeps entries forever.
func NewDiskImageCache(dir string, ttl time.Duration, log *zap.Logger) (*DiskImageCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &DiskImageCache{dir: dir, ttl: ttl, log: log}, nil
}

// GetCachePath returns the cache file path for a key
func (c *DiskImageCache) GetCachePath(key string) string {
	return filepath.Join(c.dir, "proxy_"+key+".img")
}

// Get reads a cached image that has not expired
func (c *DiskImageCache) Get(ctx context.Context, key string) ([]byte, bool) {
	path := c.GetCachePath(key)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if c.ttl > 0 && time.Since(info.ModTime()) > c.ttl {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		c.log.Warn("⚠️  Failed to read from cache", zap.String("path", path), zap.Error(err))
		return nil, false
	}
	return data, true
}

// Set writes an image to the cache via a temp file and rename
func (c *DiskImageCache) Set(ctx context.Context, key string, data []byte) {
	path := c.GetCachePath(key)
	if err := c.write(path, data); err != nil {
		c.log.Warn("⚠️  Failed to write to cache", zap.String("path", path), zap.Error(err))
		return
	}
	c.log.Debug("✓ Image cached", zap.String("path", path), zap.Int("bytes", len(data)))
}

func (c *DiskImageCache) write(path string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, ".proxy-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// RedisImageCache keeps images in Redis with a TTL
type RedisImageCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	log       *zap.Logger
}

// Ensure RedisImageCache implements ImageCache
var _ ImageCache = (*RedisImageCache)(nil)

// NewRedisImageCache connects to Redis and verifies the connection
func NewRedisImageCache(ctx context.Context, addr, password string, db int, ttl time.Duration, log *zap.Logger) (*RedisImageCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis for image cache: %w", err)
	}

	return NewRedisImageCacheWithClient(client, ttl, log), nil
}

// NewRedisImageCacheWithClient creates an image cache with an existing Redis client
func NewRedisImageCacheWithClient(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisImageCache {
	return &RedisImageCache{
		client:    client,
		keyPrefix: "catalogue:image:",
		ttl:       ttl,
		log:       log,
	}
}

// Get reads a cached image
func (c *RedisImageCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("⚠️  Failed to read from Redis cache", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

// Set stores an image with the cache TTL
func (c *RedisImageCache) Set(ctx context.Context, key string, data []byte) {
	if err := c.client.Set(ctx, c.keyPrefix+key, data, c.ttl).Err(); err != nil {
		c.log.Warn("⚠️  Failed to write to Redis cache", zap.String("key", key), zap.Error(err))
	}
}

// Close closes the Redis connection
func (c *RedisImageCache) Close() error {
	return c.client.Close()
}
