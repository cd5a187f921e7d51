package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/resumeforge/ResumeForge/internal/pkg/env"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache initializes the connection to the Redis cache server
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	// Test the connection
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("Warning: Could not connect to Redis cache: %v", err)
	} else {
		log.Printf("Successfully connected to Redis cache: %s", pong)
	}
}

// ErrUnavailable is returned by the helper functions when SetupCache has
// not run. Callers treat it like any other cache miss.
var ErrUnavailable = errors.New("cache not configured")

// GetClient returns the Redis client instance, or nil before SetupCache.
func GetClient() *redis.Client {
	return client
}

// Set stores a value in the cache with the given key and expiration time
func Set(key string, value interface{}, expiration time.Duration) error {
	if client == nil {
		return ErrUnavailable
	}
	return client.Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value from the cache by key
func Get(key string) (string, error) {
	if client == nil {
		return "", ErrUnavailable
	}
	return client.Get(ctx, key).Result()
}

// GetInt64 retrieves an integer value from the cache by key
func GetInt64(key string) (int64, error) {
	if client == nil {
		return 0, ErrUnavailable
	}
	return client.Get(ctx, key).Int64()
}

// Delete removes a value from the cache by key
func Delete(key string) error {
	if client == nil {
		return ErrUnavailable
	}
	return client.Del(ctx, key).Err()
}
