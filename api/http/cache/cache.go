package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rexbrahh/lp-pricer/api/http/types"
	"github.com/rexbrahh/lp-pricer/pricing"
)

// ErrDisabled indicates the cache layer is disabled via configuration.
var ErrDisabled = errors.New("redis cache disabled")

// Config represents Redis client configuration options.
type Config struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// LoadConfigFromEnv constructs a Config from environment variables.
//
// Recognized variables:
//   - API_REDIS_ADDR (required to enable the cache)
//   - API_REDIS_PASSWORD (optional)
//   - API_REDIS_DB (defaults to 0)
//   - API_REDIS_TTL (parseable duration, defaults to 5m)
func LoadConfigFromEnv() (Config, error) {
	addr := os.Getenv("API_REDIS_ADDR")
	if addr == "" {
		return Config{Enabled: false, TTL: 5 * time.Minute}, nil
	}

	password := os.Getenv("API_REDIS_PASSWORD")

	db := 0
	if rawDB := os.Getenv("API_REDIS_DB"); rawDB != "" {
		parsed, err := strconv.Atoi(rawDB)
		if err != nil {
			return Config{}, fmt.Errorf("invalid API_REDIS_DB: %w", err)
		}
		db = parsed
	}

	ttl := 5 * time.Minute
	if rawTTL := os.Getenv("API_REDIS_TTL"); rawTTL != "" {
		parsed, err := time.ParseDuration(rawTTL)
		if err != nil {
			return Config{}, fmt.Errorf("invalid API_REDIS_TTL: %w", err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("invalid API_REDIS_TTL: must be positive")
		}
		ttl = parsed
	}

	return Config{
		Enabled:  true,
		Addr:     addr,
		Password: password,
		DB:       db,
		TTL:      ttl,
	}, nil
}

// kvStore is the subset of the Redis client the cache uses.
type kvStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Close() error
}

// Cache keeps the latest price per pool, plus a per-token hash of every pool
// pricing that token, in Redis.
type Cache struct {
	client kvStore
	cfg    Config
	now    func() time.Time
}

// New creates a new Cache from the provided configuration.
func New(cfg Config) (*Cache, error) {
	if !cfg.Enabled {
		return &Cache{cfg: cfg, now: time.Now}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newCache(client, cfg), nil
}

func newCache(client kvStore, cfg Config) *Cache {
	return &Cache{client: client, cfg: cfg, now: time.Now}
}

func poolKey(pool string) string {
	return fmt.Sprintf("price:pool:%s", pool)
}

func tokenKey(mint string) string {
	return fmt.Sprintf("price:token:%s", mint)
}

// PublishPrice stores result as the latest price of its pool and token.
func (c *Cache) PublishPrice(ctx context.Context, result *pricing.PriceResult) error {
	if c == nil || c.client == nil {
		return ErrDisabled
	}
	if result == nil {
		return errors.New("nil price")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode price %s: %w", result.Pool, err)
	}

	pool := result.Pool.String()
	if err := c.client.Set(ctx, poolKey(pool), payload, c.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("cache pool price %s: %w", pool, err)
	}

	mint := tokenKey(result.TokenMint.String())
	if err := c.client.HSet(ctx, mint, pool, payload).Err(); err != nil {
		return fmt.Errorf("cache token price %s: %w", result.TokenMint, err)
	}
	if err := c.client.Expire(ctx, mint, c.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("expire token price %s: %w", result.TokenMint, err)
	}
	return nil
}

// PoolPrice returns the cached price for a pool.
func (c *Cache) PoolPrice(ctx context.Context, pool string) (*pricing.PriceResult, error) {
	if c == nil || c.client == nil {
		return nil, ErrDisabled
	}

	payload, err := c.client.Get(ctx, poolKey(pool)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var result pricing.PriceResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decode pool price %s: %w", pool, err)
	}
	return &result, nil
}

// TokenPrice returns the best fresh price among the pools cached for mint:
// vault balances beat pool-state reserves, which beat implied reserves, and
// within a source the deepest SOL side wins. Entries older than the TTL are
// skipped because hash fields do not expire individually.
func (c *Cache) TokenPrice(ctx context.Context, mint string) (*pricing.PriceResult, error) {
	if c == nil || c.client == nil {
		return nil, ErrDisabled
	}

	rows, err := c.client.HGetAll(ctx, tokenKey(mint)).Result()
	if err != nil {
		return nil, err
	}

	cutoff := c.now().Add(-c.cfg.TTL)
	var best *pricing.PriceResult
	for _, payload := range rows {
		var result pricing.PriceResult
		if err := json.Unmarshal([]byte(payload), &result); err != nil {
			continue
		}
		if c.cfg.TTL > 0 && result.ComputedAt.Before(cutoff) {
			continue
		}
		if best == nil || deeper(&result, best) {
			r := result
			best = &r
		}
	}
	if best == nil {
		return nil, types.ErrNotFound
	}
	return best, nil
}

// deeper orders by reserve source, then SOL reserves, then pool address so
// ties are stable.
func deeper(a, b *pricing.PriceResult) bool {
	if ra, rb := sourceRank(a.Source), sourceRank(b.Source); ra != rb {
		return ra < rb
	}
	if a.SOLReserves != b.SOLReserves {
		return a.SOLReserves > b.SOLReserves
	}
	return a.Pool.String() < b.Pool.String()
}

func sourceRank(src pricing.ReserveSource) int {
	switch src {
	case pricing.SourceVaultBalance:
		return 0
	case pricing.SourcePoolState:
		return 1
	case pricing.SourceImplied:
		return 2
	default:
		return 3
	}
}

// Disabled reports whether the cache has no Redis behind it.
func (c *Cache) Disabled() bool {
	return c == nil || c.client == nil
}

func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
