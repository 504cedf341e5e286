package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig configures the Redis-backed directory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// DefaultRedisConfig returns defaults for a local Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr: "127.0.0.1:6379",
		Key:  "lp-pricer:directory",
	}
}

// RedisConfigFromEnv overlays DIRECTORY_REDIS_* variables on the defaults.
func RedisConfigFromEnv() (RedisConfig, error) {
	cfg := DefaultRedisConfig()
	if v := os.Getenv("DIRECTORY_REDIS_ADDR"); v != "" {
		cfg.Addr = v
	}
	cfg.Password = os.Getenv("DIRECTORY_REDIS_PASSWORD")
	if v := os.Getenv("DIRECTORY_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return RedisConfig{}, fmt.Errorf("invalid DIRECTORY_REDIS_DB: %w", err)
		}
		cfg.DB = db
	}
	if v := os.Getenv("DIRECTORY_REDIS_KEY"); v != "" {
		cfg.Key = v
	}
	return cfg, cfg.Validate()
}

func (c RedisConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("directory redis addr is required")
	}
	if c.Key == "" {
		return fmt.Errorf("directory redis key is required")
	}
	if c.DB < 0 {
		return fmt.Errorf("directory redis db must be >= 0")
	}
	return nil
}

// hashStore is the subset of the Redis client the directory uses.
type hashStore interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Close() error
}

// RedisDirectory keeps entries in memory and writes them through to a Redis hash
// keyed by pool address, so a restarted process can reload its tracked pools.
type RedisDirectory struct {
	*MemoryDirectory
	store  hashStore
	key    string
	logger *zap.Logger
}

// NewRedisDirectory connects to Redis with cfg. Call Load to restore entries.
func NewRedisDirectory(cfg RedisConfig, logger *zap.Logger) (*RedisDirectory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisDirectory(client, cfg.Key, logger), nil
}

func newRedisDirectory(store hashStore, key string, logger *zap.Logger) *RedisDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisDirectory{
		MemoryDirectory: NewMemoryDirectory(),
		store:           store,
		key:             key,
		logger:          logger,
	}
}

// Load adds every entry stored in Redis. Corrupt rows are skipped.
func (d *RedisDirectory) Load(ctx context.Context) (int, error) {
	rows, err := d.store.HGetAll(ctx, d.key).Result()
	if err != nil {
		return 0, fmt.Errorf("load directory %s: %w", d.key, err)
	}

	loaded := 0
	d.mu.Lock()
	defer d.mu.Unlock()
	for field, payload := range rows {
		var entry Entry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			d.logger.Warn("skipping unreadable directory entry", zap.String("pool", field), zap.Error(err))
			continue
		}
		d.put(entry)
		loaded++
	}
	return loaded, nil
}

// Put writes entry to Redis, then to memory.
func (d *RedisDirectory) Put(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode directory entry %s: %w", entry.Pool, err)
	}
	if err := d.store.HSet(ctx, d.key, entry.Pool.String(), payload).Err(); err != nil {
		return fmt.Errorf("store directory entry %s: %w", entry.Pool, err)
	}
	return d.MemoryDirectory.Put(ctx, entry)
}

func (d *RedisDirectory) Delete(ctx context.Context, pool solana.PublicKey) error {
	if err := d.store.HDel(ctx, d.key, pool.String()).Err(); err != nil {
		return fmt.Errorf("delete directory entry %s: %w", pool, err)
	}
	return d.MemoryDirectory.Delete(ctx, pool)
}

func (d *RedisDirectory) Close() error {
	return d.store.Close()
}
