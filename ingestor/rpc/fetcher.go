// Package rpc loads account snapshots over Solana JSON-RPC to warm the ingestor
// account store before the geyser stream takes over.
package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	dcommon "github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/observability"
)

// accountsClient is the subset of the solana-go RPC client the fetcher calls.
type accountsClient interface {
	GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey, opts *solrpc.GetMultipleAccountsOpts) (*solrpc.GetMultipleAccountsResult, error)
	GetSlot(ctx context.Context, commitment solrpc.CommitmentType) (uint64, error)
}

// Fetcher batches getMultipleAccounts calls under a shared rate limit.
type Fetcher struct {
	cfg     Config
	client  accountsClient
	limiter *rate.Limiter
	metrics *fetcherMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// Option customises a Fetcher.
type Option func(*Fetcher)

func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(f *Fetcher) {
		f.metrics = newFetcherMetrics(reg)
	}
}

func withClient(client accountsClient) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// NewFetcher validates cfg and builds a fetcher over a solana-go RPC client.
func NewFetcher(cfg Config, opts ...Option) (*Fetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	f := &Fetcher{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = solrpc.New(cfg.Endpoint)
	}
	if f.metrics == nil {
		f.metrics = newFetcherMetrics(nil)
	}
	return f, nil
}

// FetchAccounts returns snapshots for every key that exists on chain, in key
// order. Accounts the node does not know are omitted. Any failed batch fails
// the whole call.
func (f *Fetcher) FetchAccounts(ctx context.Context, keys []solana.PublicKey) ([]*dcommon.AccountSnapshot, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	var batches [][]solana.PublicKey
	for start := 0; start < len(keys); start += f.cfg.BatchSize {
		end := start + f.cfg.BatchSize
		if end > len(keys) {
			end = len(keys)
		}
		batches = append(batches, keys[start:end])
	}

	results := make([][]*dcommon.AccountSnapshot, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			snaps, err := f.fetchBatch(gctx, batch)
			if err != nil {
				return err
			}
			results[i] = snaps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*dcommon.AccountSnapshot, 0, len(keys))
	for _, snaps := range results {
		out = append(out, snaps...)
	}
	f.logger.Debug("fetched accounts", zap.Int("requested", len(keys)), zap.Int("found", len(out)))
	return out, nil
}

func (f *Fetcher) fetchBatch(ctx context.Context, keys []solana.PublicKey) ([]*dcommon.AccountSnapshot, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	res, err := f.client.GetMultipleAccountsWithOpts(reqCtx, keys, &solrpc.GetMultipleAccountsOpts{
		Commitment: solrpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		f.metrics.errors.Inc()
		return nil, fmt.Errorf("get multiple accounts (%d keys): %w", len(keys), err)
	}
	if res == nil || len(res.Value) != len(keys) {
		f.metrics.errors.Inc()
		return nil, fmt.Errorf("get multiple accounts: unexpected account count for %d keys", len(keys))
	}

	fetchedAt := f.now().UTC()
	snaps := make([]*dcommon.AccountSnapshot, 0, len(keys))
	for i, acc := range res.Value {
		if acc == nil || acc.Data == nil {
			continue
		}
		snaps = append(snaps, &dcommon.AccountSnapshot{
			Address:   keys[i],
			Owner:     acc.Owner,
			Data:      acc.Data.GetBinary(),
			Lamports:  acc.Lamports,
			Slot:      res.Context.Slot,
			FetchedAt: fetchedAt,
		})
	}
	f.metrics.fetched.Add(float64(len(snaps)))
	return snaps, nil
}

// CurrentSlot returns the node's confirmed slot, the natural geyser start point
// after a warm-up.
func (f *Fetcher) CurrentSlot(ctx context.Context) (uint64, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()
	slot, err := f.client.GetSlot(reqCtx, solrpc.CommitmentConfirmed)
	if err != nil {
		f.metrics.errors.Inc()
		return 0, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

type fetcherMetrics struct {
	fetched prometheus.Counter
	errors  prometheus.Counter
}

func newFetcherMetrics(reg prometheus.Registerer) *fetcherMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &fetcherMetrics{
		fetched: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: observability.Namespace,
			Name:      observability.MetricRPCFetchedAccounts,
			Help:      "Accounts loaded over JSON-RPC.",
		}),
		errors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: observability.Namespace,
			Name:      observability.MetricRPCFetchErrors,
			Help:      "Failed JSON-RPC account requests.",
		}),
	}
}
