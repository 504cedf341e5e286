package rpc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dcommon "github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/internal/layouttest"
)

type fakeClient struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey]*solrpc.Account
	calls    [][]solana.PublicKey
	slot     uint64
	failOn   int
}

func newFakeClient(slot uint64) *fakeClient {
	return &fakeClient{accounts: make(map[solana.PublicKey]*solrpc.Account), slot: slot, failOn: -1}
}

func (c *fakeClient) add(key, owner solana.PublicKey, data []byte) {
	c.accounts[key] = &solrpc.Account{
		Lamports: 2_039_280,
		Owner:    owner,
		Data:     solrpc.DataBytesOrJSONFromBytes(data),
	}
}

func (c *fakeClient) GetMultipleAccountsWithOpts(_ context.Context, keys []solana.PublicKey, opts *solrpc.GetMultipleAccountsOpts) (*solrpc.GetMultipleAccountsResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call := len(c.calls)
	c.calls = append(c.calls, keys)
	if call == c.failOn {
		return nil, errors.New("429 too many requests")
	}
	if opts == nil || opts.Encoding != solana.EncodingBase64 {
		return nil, errors.New("expected base64 encoding")
	}
	res := &solrpc.GetMultipleAccountsResult{Value: make([]*solrpc.Account, len(keys))}
	res.Context.Slot = c.slot
	for i, k := range keys {
		res.Value[i] = c.accounts[k]
	}
	return res, nil
}

func (c *fakeClient) GetSlot(context.Context, solrpc.CommitmentType) (uint64, error) {
	return c.slot, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 1000
	cfg.BatchSize = 2
	return cfg
}

func TestFetchAccountsBatchesAndPreservesOrder(t *testing.T) {
	client := newFakeClient(250_000_000)
	keys := make([]solana.PublicKey, 5)
	for i := range keys {
		keys[i] = layouttest.Key(byte(i + 1))
		if i != 3 {
			client.add(keys[i], dcommon.TokenProgramID, layouttest.TokenAccount(dcommon.NativeMint, uint64(i)))
		}
	}

	reg := prometheus.NewRegistry()
	f, err := NewFetcher(testConfig(), withClient(client), WithRegisterer(reg))
	require.NoError(t, err)
	fixed := time.Date(2025, 10, 16, 0, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return fixed }

	snaps, err := f.FetchAccounts(context.Background(), keys)
	require.NoError(t, err)

	require.Len(t, snaps, 4)
	assert.Equal(t, []solana.PublicKey{keys[0], keys[1], keys[2], keys[4]},
		[]solana.PublicKey{snaps[0].Address, snaps[1].Address, snaps[2].Address, snaps[3].Address})
	for _, s := range snaps {
		assert.Equal(t, uint64(250_000_000), s.Slot)
		assert.Equal(t, dcommon.TokenProgramID, s.Owner)
		assert.Equal(t, fixed, s.FetchedAt)
		assert.Len(t, s.Data, 165)
	}

	amount, err := dcommon.TokenAccountAmount(snaps[3])
	require.NoError(t, err)
	assert.Equal(t, uint64(4), amount)

	assert.Len(t, client.calls, 3)
	for _, call := range client.calls {
		assert.LessOrEqual(t, len(call), 2)
	}
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.fetched))
}

func TestFetchAccountsBatchFailure(t *testing.T) {
	client := newFakeClient(1)
	client.failOn = 0
	f, err := NewFetcher(testConfig(), withClient(client))
	require.NoError(t, err)

	keys := []solana.PublicKey{layouttest.Key(1), layouttest.Key(2), layouttest.Key(3)}
	_, err = f.FetchAccounts(context.Background(), keys)
	require.ErrorContains(t, err, "429")
	assert.GreaterOrEqual(t, testutil.ToFloat64(f.metrics.errors), 1.0)
}

func TestFetchAccountsEmptyAndCancelled(t *testing.T) {
	client := newFakeClient(1)
	f, err := NewFetcher(testConfig(), withClient(client))
	require.NoError(t, err)

	snaps, err := f.FetchAccounts(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, snaps)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.FetchAccounts(ctx, []solana.PublicKey{layouttest.Key(1)})
	require.Error(t, err)
	assert.Empty(t, client.calls)
}

func TestCurrentSlot(t *testing.T) {
	f, err := NewFetcher(testConfig(), withClient(newFakeClient(42)))
	require.NoError(t, err)
	slot, err := f.CurrentSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), slot)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "endpoint", mutate: func(c *Config) { c.Endpoint = "" }},
		{name: "rps", mutate: func(c *Config) { c.RequestsPerSecond = 0 }},
		{name: "batch too large", mutate: func(c *Config) { c.BatchSize = MaxBatchSize + 1 }},
		{name: "batch zero", mutate: func(c *Config) { c.BatchSize = 0 }},
		{name: "concurrency", mutate: func(c *Config) { c.Concurrency = 0 }},
		{name: "timeout", mutate: func(c *Config) { c.RequestTimeout = 0 }},
	}
	require.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
			_, err := NewFetcher(cfg)
			require.Error(t, err)
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(envRPCURL, "https://rpc.example.org")
	t.Setenv(envRPCRPS, "2.5")
	t.Setenv(envRPCBatch, "50")
	t.Setenv(envRPCConcurrency, "8")
	t.Setenv(envRPCTimeoutMS, "1500")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.example.org", cfg.Endpoint)
	assert.Equal(t, 2.5, cfg.RequestsPerSecond)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 1500*time.Millisecond, cfg.RequestTimeout)

	t.Setenv(envRPCBatch, "many")
	_, err = FromEnv()
	require.Error(t, err)
}
