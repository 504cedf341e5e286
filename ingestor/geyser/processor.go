package geyser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58/base58"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"go.uber.org/zap"

	dcommon "github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/directory"
	"github.com/rexbrahh/lp-pricer/ingestor/common"
	"github.com/rexbrahh/lp-pricer/observability"
	"github.com/rexbrahh/lp-pricer/pricing"
)

// DefaultPruneWindow is how many finalized slots an unpinned account may go
// without an update before it is dropped from the store.
const DefaultPruneWindow = 9000

// dependencyRounds bounds how many hops Track follows when a fetched account
// reveals further dependencies.
const dependencyRounds = 3

// PricePublisher receives every computed price.
type PricePublisher interface {
	PublishPrice(ctx context.Context, result *pricing.PriceResult) error
}

// AccountFetcher loads accounts the stream has not delivered yet.
type AccountFetcher interface {
	FetchAccounts(ctx context.Context, keys []solana.PublicKey) ([]*dcommon.AccountSnapshot, error)
}

// ProcessorConfig wires a Processor.
type ProcessorConfig struct {
	Calculator *pricing.Calculator
	Store      common.AccountStore
	Directory  directory.Directory
	Fetcher    AccountFetcher
	Publishers []PricePublisher

	// Discover tracks any SOL pool seen on the owner filters.
	Discover bool
	// PruneWindow of zero disables pruning.
	PruneWindow uint64

	Logger     *zap.Logger
	Registerer prometheus.Registerer
}

// Processor consumes geyser updates, keeps the account store current, and
// re-prices tracked pools whenever they or their dependencies change.
type Processor struct {
	calc       *pricing.Calculator
	store      common.AccountStore
	dir        directory.Directory
	fetcher    AccountFetcher
	publishers []PricePublisher
	discover   bool
	window     uint64
	logger     *zap.Logger
	metrics    *processorMetrics
	now        func() time.Time

	onTracked func()

	latestSlot    uint64
	finalizedSlot uint64
}

// NewProcessor initialises a Processor. Calculator, Store and Directory default to
// in-memory instances when unset.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.Calculator == nil {
		cfg.Calculator = pricing.NewCalculator(nil)
	}
	if cfg.Store == nil {
		cfg.Store = common.NewMemoryAccountStore()
	}
	if cfg.Directory == nil {
		cfg.Directory = directory.NewMemoryDirectory()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Processor{
		calc:       cfg.Calculator,
		store:      cfg.Store,
		dir:        cfg.Directory,
		fetcher:    cfg.Fetcher,
		publishers: cfg.Publishers,
		discover:   cfg.Discover,
		window:     cfg.PruneWindow,
		logger:     cfg.Logger,
		metrics:    newProcessorMetrics(cfg.Registerer),
		now:        time.Now,
	}
}

// OnTracked registers a hook run after the tracked account set grows.
func (p *Processor) OnTracked(fn func()) {
	p.onTracked = fn
}

// TrackedAccounts lists every pool and dependency as base58 strings, the form the
// geyser account filter expects.
func (p *Processor) TrackedAccounts() []string {
	entries := p.dir.Entries()
	out := make([]string, 0, len(entries)*4)
	for _, e := range entries {
		out = append(out, base58.Encode(e.Pool[:]))
		for _, dep := range e.Dependencies {
			out = append(out, base58.Encode(dep[:]))
		}
	}
	return out
}

// HandleUpdate inspects an incoming geyser update and routes it.
func (p *Processor) HandleUpdate(ctx context.Context, update *pb.SubscribeUpdate) error {
	if update == nil {
		return nil
	}

	switch u := update.GetUpdateOneof().(type) {
	case *pb.SubscribeUpdate_Account:
		return p.handleAccount(ctx, u.Account)
	case *pb.SubscribeUpdate_Slot:
		p.handleSlot(u.Slot)
	}
	return nil
}

func (p *Processor) handleAccount(ctx context.Context, update *pb.SubscribeUpdateAccount) error {
	snap := common.ConvertAccountUpdate(update, p.now())
	if snap == nil {
		return nil
	}
	kind := p.calc.Config().ClassifySnapshot(snap)
	p.metrics.updates.WithLabelValues(kind.String()).Inc()
	if snap.Slot > p.latestSlot {
		p.latestSlot = snap.Slot
	}

	if !p.store.Upsert(snap) {
		return nil
	}
	p.metrics.storeSize.Set(float64(p.store.Size()))

	if entry, ok := p.dir.Get(snap.Address); ok {
		if _, err := p.Track(ctx, entry.Request()); err != nil {
			p.logger.Debug("refresh pool dependencies", zap.Stringer("pool", snap.Address), zap.Error(err))
		}
	} else if p.discover && kind != dcommon.Unknown {
		p.discoverPool(ctx, snap, kind)
	}

	pools := p.dir.PoolsFor(snap.Address)
	if _, ok := p.dir.Get(snap.Address); ok {
		pools = append(pools, snap.Address)
	}
	for _, pool := range pools {
		if err := p.Reprice(ctx, pool); err != nil {
			return err
		}
	}
	return nil
}

// discoverPool tracks an owner-filtered account when it decodes as a pool with a
// SOL side. Accounts that are not pools (configs, bins, curves without a recorded
// mint) are skipped.
func (p *Processor) discoverPool(ctx context.Context, snap *dcommon.AccountSnapshot, kind dcommon.ProgramKind) {
	info, err := p.calc.Decode(dcommon.AccountSet{snap.Address: snap}, kind, snap.Address)
	if err != nil {
		return
	}
	pair, err := dcommon.ResolvePair(info.TokenMint0, info.TokenMint1, p.calc.Config().NativeMint())
	if err != nil {
		return
	}
	req := pricing.PoolRequest{Pool: snap.Address, Kind: kind, BaseMint: pair.BaseMint, QuoteMint: pair.QuoteMint}
	if _, err := p.Track(ctx, req); err != nil {
		p.logger.Debug("discovered pool not tracked", zap.Stringer("pool", snap.Address), zap.Error(err))
		return
	}
	p.logger.Info("discovered pool",
		zap.Stringer("pool", snap.Address),
		zap.String("kind", kind.String()),
		zap.Stringer("token", pair.BaseMint),
	)
}

// Track decodes the pool, loads any dependency the store lacks through the
// fetcher, and records the pool in the directory. Dependencies are pinned so
// pruning never evicts them. The directory is only written when the request or
// the dependency set changed.
func (p *Processor) Track(ctx context.Context, req pricing.PoolRequest) (directory.Entry, error) {
	if err := p.ensure(ctx, []solana.PublicKey{req.Pool}); err != nil {
		return directory.Entry{}, err
	}
	info, err := p.calc.Decode(p.store.Snapshot(req.Pool), req.Kind, req.Pool)
	if err != nil {
		return directory.Entry{}, fmt.Errorf("decode pool %s: %w", req.Pool, err)
	}

	var deps []solana.PublicKey
	for round := 0; round < dependencyRounds; round++ {
		deps = p.calc.Dependencies(info, p.store.Snapshot(append([]solana.PublicKey{req.Pool}, deps...)...))
		before := p.store.Size()
		if err := p.ensure(ctx, deps); err != nil {
			return directory.Entry{}, err
		}
		if p.store.Size() == before {
			break
		}
	}
	deps = p.calc.Dependencies(info, p.store.Snapshot(append([]solana.PublicKey{req.Pool}, deps...)...))

	prev, existed := p.dir.Get(req.Pool)
	if existed && prev.Request() == req && sameKeys(prev.Dependencies, deps) {
		prev.Info = info
		return prev, nil
	}

	entry := directory.Entry{
		Pool:         req.Pool,
		Kind:         req.Kind,
		BaseMint:     req.BaseMint,
		QuoteMint:    req.QuoteMint,
		Info:         info,
		Dependencies: deps,
		UpdatedAt:    p.now().UTC(),
	}
	if err := p.dir.Put(ctx, entry); err != nil {
		return directory.Entry{}, fmt.Errorf("store directory entry: %w", err)
	}
	p.store.Pin(append([]solana.PublicKey{req.Pool}, deps...)...)
	if existed {
		p.releaseDependencies(prev.Dependencies, deps)
	}
	p.metrics.directorySize.Set(float64(p.dir.Len()))

	if (!existed || !sameKeys(prev.Dependencies, deps)) && p.onTracked != nil {
		p.onTracked()
	}
	return entry, nil
}

// releaseDependencies unpins accounts a pool no longer reads, unless another
// tracked pool still reads them or they are pools themselves.
func (p *Processor) releaseDependencies(prev, current []solana.PublicKey) {
	keep := make(map[solana.PublicKey]struct{}, len(current))
	for _, k := range current {
		keep[k] = struct{}{}
	}
	var released []solana.PublicKey
	for _, k := range prev {
		if _, ok := keep[k]; ok {
			continue
		}
		if len(p.dir.PoolsFor(k)) > 0 {
			continue
		}
		if _, isPool := p.dir.Get(k); isPool {
			continue
		}
		released = append(released, k)
	}
	if len(released) > 0 {
		p.store.Unpin(released...)
	}
}

// Reprice prices a tracked pool from the store and publishes the result. Pools
// that cannot be priced are skipped; the calculator records why.
func (p *Processor) Reprice(ctx context.Context, pool solana.PublicKey) error {
	entry, ok := p.dir.Get(pool)
	if !ok {
		return nil
	}
	accounts := p.store.Snapshot(append([]solana.PublicKey{pool}, entry.Dependencies...)...)
	result := p.calc.CalculatePrice(accounts, entry.Kind, entry.BaseMint, entry.QuoteMint, pool)
	if result == nil {
		return nil
	}
	for _, pub := range p.publishers {
		if err := pub.PublishPrice(ctx, result); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.metrics.publishErrors.Inc()
			p.logger.Warn("publish price failed", zap.Stringer("pool", pool), zap.Error(err))
		}
	}
	return nil
}

// RepriceAll prices every tracked pool once.
func (p *Processor) RepriceAll(ctx context.Context) error {
	for _, e := range p.dir.Entries() {
		if err := p.Reprice(ctx, e.Pool); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) ensure(ctx context.Context, keys []solana.PublicKey) error {
	var missing []solana.PublicKey
	for _, k := range keys {
		if _, ok := p.store.Get(k); !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 || p.fetcher == nil {
		return nil
	}
	snaps, err := p.fetcher.FetchAccounts(ctx, missing)
	if err != nil {
		return fmt.Errorf("fetch %d accounts: %w", len(missing), err)
	}
	for _, snap := range snaps {
		p.store.Upsert(snap)
	}
	p.metrics.storeSize.Set(float64(p.store.Size()))
	return nil
}

func (p *Processor) handleSlot(update *pb.SubscribeUpdateSlot) {
	if update == nil {
		return
	}
	slot := update.GetSlot()
	if slot > p.latestSlot {
		p.latestSlot = slot
	}
	if update.GetStatus() != pb.SlotStatus_SLOT_FINALIZED {
		return
	}
	p.finalizedSlot = slot
	p.metrics.slotLag.Set(float64(p.latestSlot - p.finalizedSlot))

	if p.window == 0 || slot <= p.window || slot%100 != 0 {
		return
	}
	if pruned := p.store.PruneBeforeSlot(slot - p.window); pruned > 0 {
		p.logger.Debug("pruned stale accounts", zap.Int("count", pruned), zap.Uint64("finalized_slot", slot))
	}
	p.metrics.storeSize.Set(float64(p.store.Size()))
}

func sameKeys(a, b []solana.PublicKey) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[solana.PublicKey]struct{}, len(a))
	for _, k := range a {
		seen[k] = struct{}{}
	}
	for _, k := range b {
		if _, ok := seen[k]; !ok {
			return false
		}
	}
	return true
}

type processorMetrics struct {
	updates       *prometheus.CounterVec
	slotLag       prometheus.Gauge
	storeSize     prometheus.Gauge
	directorySize prometheus.Gauge
	publishErrors prometheus.Counter
}

func newProcessorMetrics(reg prometheus.Registerer) *processorMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &processorMetrics{
		updates: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: observability.Namespace,
			Name:      observability.MetricIngestorAccountUpdates,
			Help:      "Account updates received from geyser by owning program.",
		}, []string{"program"}),
		slotLag: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: observability.Namespace,
			Name:      observability.MetricIngestorSlotLag,
			Help:      "Slots between the newest seen and the newest finalized.",
		}),
		storeSize: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: observability.Namespace,
			Name:      observability.MetricIngestorStoreSize,
			Help:      "Accounts held in the ingestor account store.",
		}),
		directorySize: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: observability.Namespace,
			Name:      observability.MetricDirectorySize,
			Help:      "Pools tracked in the pool directory.",
		}),
		publishErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: observability.Namespace,
			Name:      observability.MetricIngestorPublishErrors,
			Help:      "Price publications that failed on any publisher.",
		}),
	}
}
