package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Cache backed by Redis, for sharing responses across
// processes or surviving restarts.
type RedisCache struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration

	statsMu sync.RWMutex
	stats   CacheStats
}

// RedisCacheOptions configures a RedisCache.
type RedisCacheOptions struct {
	Addrs    []string // single node: one address; more than one selects cluster mode
	Password string
	DB       int // single node only

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	KeyPrefix  string        // namespace prefix, default "agent-runtime"
	DefaultTTL time.Duration // default 5m
}

// NewRedisCache creates a Redis cache against a single node.
func NewRedisCache(addr, password string, db int, defaultTTL time.Duration) (*RedisCache, error) {
	return NewRedisCacheWithOptions(&RedisCacheOptions{
		Addrs:      []string{addr},
		Password:   password,
		DB:         db,
		DefaultTTL: defaultTTL,
	})
}

// NewRedisCacheWithOptions creates a Redis cache with full options. It pings
// the server before returning so misconfiguration fails fast.
func NewRedisCacheWithOptions(opts *RedisCacheOptions) (*RedisCache, error) {
	if opts == nil {
		return nil, fmt.Errorf("redis cache options cannot be nil")
	}
	if len(opts.Addrs) == 0 {
		opts.Addrs = []string{"localhost:6379"}
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = 10
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = 5
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 3 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 3 * time.Second
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "agent-runtime"
	}
	if opts.DefaultTTL == 0 {
		opts.DefaultTTL = 5 * time.Minute
	}

	var client redis.UniversalClient
	if len(opts.Addrs) == 1 {
		client = redis.NewClient(&redis.Options{
			Addr:         opts.Addrs[0],
			Password:     opts.Password,
			DB:           opts.DB,
			PoolSize:     opts.PoolSize,
			MinIdleConns: opts.MinIdleConns,
			DialTimeout:  opts.DialTimeout,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
		})
	} else {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        opts.Addrs,
			Password:     opts.Password,
			PoolSize:     opts.PoolSize,
			MinIdleConns: opts.MinIdleConns,
			DialTimeout:  opts.DialTimeout,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %v: %w", opts.Addrs, err)
	}

	return &RedisCache{
		client:     client,
		prefix:     opts.KeyPrefix,
		defaultTTL: opts.DefaultTTL,
	}, nil
}

func (c *RedisCache) key(key string) string {
	return c.prefix + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, c.key(key)).Result()
	if err == redis.Nil {
		c.statsMu.Lock()
		c.stats.Misses++
		c.statsMu.Unlock()
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	c.statsMu.Lock()
	c.stats.Hits++
	c.statsMu.Unlock()
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return err
	}
	c.statsMu.Lock()
	c.stats.TotalWrites++
	c.statsMu.Unlock()
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

// Clear removes every key under this cache's prefix using SCAN so it never
// blocks the server the way KEYS would.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	c.statsMu.Lock()
	c.stats = CacheStats{}
	c.statsMu.Unlock()
	return nil
}

func (c *RedisCache) Stats() CacheStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

// Close releases the underlying Redis connections.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
