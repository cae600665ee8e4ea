package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

// InvalidateClient removes all rate limit keys for a client organization.
// Used when a client's contract quota changes or when manually resetting limits.
func (rl *RateLimiter) InvalidateClient(ctx context.Context, clientID string) error {
	if !rl.redisClient.IsEnabled() {
		rl.fallbackMutex.Lock()
		defer rl.fallbackMutex.Unlock()

		prefix := fmt.Sprintf("ratelimit:client:%s:", clientID)
		for key := range rl.fallbackLimiters {
			if strings.HasPrefix(key, prefix) {
				delete(rl.fallbackLimiters, key)
			}
		}

		slog.Info("Invalidated client rate limits (in-memory)", "client", clientID)
		return nil
	}

	pattern := fmt.Sprintf("ratelimit:client:%s:*", clientID)
	return rl.deleteByPattern(ctx, pattern)
}

// InvalidateIP removes all rate limit keys for a specific IP address
func (rl *RateLimiter) InvalidateIP(ctx context.Context, ip string) error {
	if !rl.redisClient.IsEnabled() {
		rl.fallbackMutex.Lock()
		defer rl.fallbackMutex.Unlock()

		prefix := fmt.Sprintf("ratelimit:ip:%s", ip)
		for key := range rl.fallbackLimiters {
			if strings.HasPrefix(key, prefix) {
				delete(rl.fallbackLimiters, key)
			}
		}

		slog.Info("Invalidated IP rate limits (in-memory)", "ip", ip)
		return nil
	}

	pattern := fmt.Sprintf("ratelimit:ip:%s*", ip)
	return rl.deleteByPattern(ctx, pattern)
}

// ResetOnQuotaChange immediately resets limits when a client's contract quota changes
func (rl *RateLimiter) ResetOnQuotaChange(ctx context.Context, clientID string) error {
	slog.Info("Resetting rate limits for quota change", "client", clientID)
	return rl.InvalidateClient(ctx, clientID)
}

// BumpVersion forces all clients to restart their limit window.
// Used for emergency rate limit policy changes.
func (rl *RateLimiter) BumpVersion(ctx context.Context, scope string) error {
	if !rl.redisClient.IsEnabled() {
		slog.Warn("Version bumping not available in fallback mode", "scope", scope)
		return fmt.Errorf("version bumping requires Redis")
	}

	versionKey := fmt.Sprintf("ratelimit:version:%s", scope)
	result := rl.redisClient.GetClient().Incr(ctx, versionKey)
	if result.Err() != nil {
		return fmt.Errorf("failed to bump version: %w", result.Err())
	}

	slog.Info("Bumped rate limit version", "scope", scope, "version", result.Val())
	return nil
}

// GetVersion returns the current version for a scope
func (rl *RateLimiter) GetVersion(ctx context.Context, scope string) (int64, error) {
	if !rl.redisClient.IsEnabled() {
		return 0, fmt.Errorf("version tracking requires Redis")
	}

	versionKey := fmt.Sprintf("ratelimit:version:%s", scope)
	result := rl.redisClient.GetClient().Get(ctx, versionKey)

	if result.Err() == redis.Nil {
		return 0, nil
	}
	if result.Err() != nil {
		return 0, fmt.Errorf("failed to get version: %w", result.Err())
	}

	version, err := result.Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to parse version: %w", err)
	}

	return version, nil
}

// GetKeyCount returns the number of tracked rate limit keys
func (rl *RateLimiter) GetKeyCount(ctx context.Context) (int, error) {
	if !rl.redisClient.IsEnabled() {
		rl.fallbackMutex.RLock()
		defer rl.fallbackMutex.RUnlock()
		return len(rl.fallbackLimiters), nil
	}

	client := rl.redisClient.GetClient()

	var cursor uint64
	var count int
	for {
		keys, nextCursor, err := client.Scan(ctx, cursor, "ratelimit:*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan keys: %w", err)
		}
		count += len(keys)

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return count, nil
}

// deleteByPattern deletes all Redis keys matching a pattern
func (rl *RateLimiter) deleteByPattern(ctx context.Context, pattern string) error {
	client := rl.redisClient.GetClient()

	// Use SCAN to find matching keys (more efficient than KEYS)
	var cursor uint64
	var deletedCount int

	for {
		keys, nextCursor, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			deleted, err := client.Del(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("failed to delete keys: %w", err)
			}
			deletedCount += int(deleted)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	slog.Info("Deleted rate limit keys by pattern", "pattern", pattern, "count", deletedCount)
	return nil
}

// InvalidateAll removes all rate limit keys (emergency use only)
func (rl *RateLimiter) InvalidateAll(ctx context.Context) error {
	if !rl.redisClient.IsEnabled() {
		rl.fallbackMutex.Lock()
		defer rl.fallbackMutex.Unlock()

		count := len(rl.fallbackLimiters)
		rl.fallbackLimiters = make(map[string]*fallbackEntry)

		slog.Warn("Invalidated all rate limits (in-memory)", "count", count)
		return nil
	}

	pattern := "ratelimit:*"
	slog.Warn("Invalidating ALL rate limits", "pattern", pattern)
	return rl.deleteByPattern(ctx, pattern)
}
