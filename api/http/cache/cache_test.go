package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexbrahh/lp-pricer/api/http/types"
	"github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/internal/layouttest"
	"github.com/rexbrahh/lp-pricer/pricing"
)

type fakeRedis struct {
	strings map[string]string
	hashes  map[string]map[string]string
	ttls    map[string]time.Duration
	err     error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		strings: map[string]string{},
		hashes:  map[string]map[string]string{},
		ttls:    map[string]time.Duration{},
	}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.strings[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.strings[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) HSet(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	h, ok := f.hashes[key]
	if !ok {
		h = map[string]string{}
		f.hashes[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		h[values[i].(string)] = string(values[i+1].([]byte))
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (f *fakeRedis) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	if f.err != nil {
		return redis.NewMapStringStringResult(nil, f.err)
	}
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return redis.NewMapStringStringResult(out, nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Close() error { return nil }

var now = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestCache(store kvStore) *Cache {
	c := newCache(store, Config{Enabled: true, TTL: 5 * time.Minute})
	c.now = func() time.Time { return now }
	return c
}

func price(pool solana.PublicKey, solReserves float64, age time.Duration) *pricing.PriceResult {
	return &pricing.PriceResult{
		PriceSOL:      solReserves / 1000,
		SOLReserves:   solReserves,
		TokenReserves: 1000,
		Source:        pricing.SourceVaultBalance,
		Pool:          pool,
		TokenMint:     layouttest.Key(9),
		ProgramKind:   common.RaydiumCpmm,
		Slot:          10,
		ComputedAt:    now.Add(-age),
	}
}

func TestPublishAndPoolPrice(t *testing.T) {
	store := newFakeRedis()
	c := newTestCache(store)
	ctx := context.Background()

	pool := layouttest.Key(1)
	require.NoError(t, c.PublishPrice(ctx, price(pool, 50, 0)))

	got, err := c.PoolPrice(ctx, pool.String())
	require.NoError(t, err)
	assert.Equal(t, pool, got.Pool)
	assert.Equal(t, 0.05, got.PriceSOL)
	assert.Equal(t, 5*time.Minute, store.ttls["price:pool:"+pool.String()])
	assert.Equal(t, 5*time.Minute, store.ttls["price:token:"+layouttest.Key(9).String()])

	_, err = c.PoolPrice(ctx, layouttest.Key(2).String())
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestTokenPricePrefersDeepestFreshPool(t *testing.T) {
	store := newFakeRedis()
	c := newTestCache(store)
	ctx := context.Background()

	shallow := price(layouttest.Key(1), 10, time.Minute)
	deep := price(layouttest.Key(2), 500, 2*time.Minute)
	stale := price(layouttest.Key(3), 9000, 10*time.Minute)
	for _, r := range []*pricing.PriceResult{shallow, deep, stale} {
		require.NoError(t, c.PublishPrice(ctx, r))
	}
	store.hashes["price:token:"+layouttest.Key(9).String()]["junk"] = "{"

	got, err := c.TokenPrice(ctx, layouttest.Key(9).String())
	require.NoError(t, err)
	assert.Equal(t, layouttest.Key(2), got.Pool)
	assert.Equal(t, 500.0, got.SOLReserves)

	_, err = c.TokenPrice(ctx, layouttest.Key(8).String())
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestTokenPricePrefersVaultBalances(t *testing.T) {
	tests := []struct {
		name    string
		prices  []*pricing.PriceResult
		want    solana.PublicKey
		wantSrc pricing.ReserveSource
	}{
		{
			name: "vault beats deeper implied",
			prices: []*pricing.PriceResult{
				withSource(price(layouttest.Key(1), 20, 0), pricing.SourceVaultBalance),
				withSource(price(layouttest.Key(2), 5000, 0), pricing.SourceImplied),
			},
			want:    layouttest.Key(1),
			wantSrc: pricing.SourceVaultBalance,
		},
		{
			name: "pool state beats implied",
			prices: []*pricing.PriceResult{
				withSource(price(layouttest.Key(3), 9000, 0), pricing.SourceImplied),
				withSource(price(layouttest.Key(4), 30, 0), pricing.SourcePoolState),
			},
			want:    layouttest.Key(4),
			wantSrc: pricing.SourcePoolState,
		},
		{
			name: "implied only falls back to deepest",
			prices: []*pricing.PriceResult{
				withSource(price(layouttest.Key(5), 40, 0), pricing.SourceImplied),
				withSource(price(layouttest.Key(6), 80, 0), pricing.SourceImplied),
			},
			want:    layouttest.Key(6),
			wantSrc: pricing.SourceImplied,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCache(newFakeRedis())
			ctx := context.Background()
			for _, r := range tt.prices {
				require.NoError(t, c.PublishPrice(ctx, r))
			}
			got, err := c.TokenPrice(ctx, layouttest.Key(9).String())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Pool)
			assert.Equal(t, tt.wantSrc, got.Source)
		})
	}
}

func withSource(r *pricing.PriceResult, src pricing.ReserveSource) *pricing.PriceResult {
	r.Source = src
	return r
}

func TestCacheErrors(t *testing.T) {
	disabled, err := New(Config{Enabled: false})
	require.NoError(t, err)
	assert.True(t, disabled.Disabled())
	require.ErrorIs(t, disabled.PublishPrice(context.Background(), price(layouttest.Key(1), 1, 0)), ErrDisabled)
	_, err = disabled.PoolPrice(context.Background(), "x")
	require.ErrorIs(t, err, ErrDisabled)
	_, err = disabled.TokenPrice(context.Background(), "x")
	require.ErrorIs(t, err, ErrDisabled)
	require.NoError(t, disabled.Close())

	store := newFakeRedis()
	store.err = errors.New("connection refused")
	c := newTestCache(store)
	require.ErrorContains(t, c.PublishPrice(context.Background(), price(layouttest.Key(1), 1, 0)), "connection refused")
	require.Error(t, c.PublishPrice(context.Background(), nil))

	store.err = nil
	store.strings["price:pool:bad"] = "not json"
	_, err = c.PoolPrice(context.Background(), "bad")
	require.ErrorContains(t, err, "decode pool price")
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("API_REDIS_ADDR", "")
	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)

	t.Setenv("API_REDIS_ADDR", "redis:6379")
	t.Setenv("API_REDIS_DB", "2")
	t.Setenv("API_REDIS_TTL", "30s")
	cfg, err = LoadConfigFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, 30*time.Second, cfg.TTL)

	t.Setenv("API_REDIS_TTL", "-1s")
	_, err = LoadConfigFromEnv()
	require.Error(t, err)
}

func TestPublishedPayloadIsPriceJSON(t *testing.T) {
	store := newFakeRedis()
	c := newTestCache(store)
	pool := layouttest.Key(4)
	require.NoError(t, c.PublishPrice(context.Background(), price(pool, 2, 0)))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(store.strings["price:pool:"+pool.String()]), &decoded))
	assert.Equal(t, "raydium_cpmm", decoded["program_kind"])
}
