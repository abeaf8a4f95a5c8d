// Package cache provides Redis-based caching for signals and pattern
// match results with graceful degradation. When Redis is unavailable,
// operations return errors that callers should handle by falling back
// to the database.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ark-trading-engine/config"
)

// SignalCache fronts the signal store. A small circuit breaker marks
// Redis unhealthy after repeated failures so a flapping server does not
// add latency to every pipeline run.
type SignalCache struct {
	client       *redis.Client
	config       config.RedisConfig
	logger       zerolog.Logger
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// Key prefixes for different cache types
const (
	PrefixSignal        = "ark:signal:%s"
	PrefixRecentSignals = "ark:signals:recent:%s"
	PrefixPatternMatch  = "ark:match:%s:%s"
)

// Default TTLs
const (
	DefaultSignalTTL = 24 * time.Hour
	DefaultMatchTTL  = 5 * time.Minute
)

// NewSignalCache connects to Redis. Connection failure is not fatal;
// the cache starts in degraded mode and recovers on its own.
func NewSignalCache(cfg config.RedisConfig, logger zerolog.Logger) (*SignalCache, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	sc := &SignalCache{
		client:        client,
		config:        cfg,
		logger:        logger,
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Initial Redis connection failed; cache starts degraded")
		return sc, nil
	}

	sc.healthy = true
	sc.lastCheck = time.Now()
	logger.Info().Str("address", cfg.Address).Msg("Redis connected")

	return sc, nil
}

// IsHealthy returns whether Redis is currently available.
func (sc *SignalCache) IsHealthy() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.healthy
}

func (sc *SignalCache) recordFailure() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.failureCount++
	if sc.failureCount >= sc.maxFailures {
		if sc.healthy {
			sc.logger.Warn().Int("failures", sc.failureCount).
				Msg("Circuit breaker open: Redis marked unhealthy")
		}
		sc.healthy = false
	}
}

func (sc *SignalCache) recordSuccess() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if !sc.healthy {
		sc.logger.Info().Msg("Circuit breaker closed: Redis recovered")
	}
	sc.healthy = true
	sc.failureCount = 0
	sc.lastCheck = time.Now()
}

// checkHealth pings Redis in the background once the check interval has
// elapsed while unhealthy.
func (sc *SignalCache) checkHealth() {
	sc.mu.RLock()
	shouldCheck := !sc.healthy && time.Since(sc.lastCheck) >= sc.checkInterval
	sc.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := sc.client.Ping(pingCtx).Err(); err == nil {
			sc.recordSuccess()
		}
	}()
}

// Get retrieves a raw value from cache.
func (sc *SignalCache) Get(ctx context.Context, key string) (string, error) {
	sc.checkHealth()

	if !sc.IsHealthy() {
		return "", fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	result, err := sc.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			sc.recordFailure()
		}
		return "", err
	}
	sc.recordSuccess()
	return result, nil
}

// Set stores a raw value with a TTL.
func (sc *SignalCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	sc.checkHealth()

	if !sc.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	if err := sc.client.Set(ctx, key, value, ttl).Err(); err != nil {
		sc.recordFailure()
		return err
	}
	sc.recordSuccess()
	return nil
}

// Delete removes a key.
func (sc *SignalCache) Delete(ctx context.Context, key string) error {
	sc.checkHealth()

	if !sc.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	if err := sc.client.Del(ctx, key).Err(); err != nil {
		sc.recordFailure()
		return err
	}
	sc.recordSuccess()
	return nil
}

// GetJSON retrieves and unmarshals a cached value.
func (sc *SignalCache) GetJSON(ctx context.Context, key string, dest any) error {
	raw, err := sc.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), dest)
}

// SetJSON marshals and stores a value.
func (sc *SignalCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return sc.Set(ctx, key, data, ttl)
}

// Close closes the Redis connection.
func (sc *SignalCache) Close() error {
	if sc.client != nil {
		return sc.client.Close()
	}
	return nil
}

// SignalKey builds the cache key for one signal by id.
func SignalKey(id string) string {
	return fmt.Sprintf(PrefixSignal, id)
}

// RecentSignalsKey builds the cache key for a symbol's recent-signals
// list. Use "all" for the unfiltered list.
func RecentSignalsKey(symbol string) string {
	if symbol == "" {
		symbol = "all"
	}
	return fmt.Sprintf(PrefixRecentSignals, symbol)
}

// PatternMatchKey builds the cache key for a symbol/pattern match result.
func PatternMatchKey(symbol, patternID string) string {
	return fmt.Sprintf(PrefixPatternMatch, symbol, patternID)
}
