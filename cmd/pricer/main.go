package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/rexbrahh/lp-pricer/api/http/cache"
	"github.com/rexbrahh/lp-pricer/directory"
	"github.com/rexbrahh/lp-pricer/ingestor/common"
	"github.com/rexbrahh/lp-pricer/ingestor/geyser"
	"github.com/rexbrahh/lp-pricer/ingestor/rpc"
	"github.com/rexbrahh/lp-pricer/observability"
	"github.com/rexbrahh/lp-pricer/pricing"
	natsx "github.com/rexbrahh/lp-pricer/sinks/nats"
)

type runner interface {
	Run(ctx context.Context, startSlot uint64) error
}

func main() {
	_ = godotenv.Load()

	logger, err := observability.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("pricer")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if err := run(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("pricer stopped", zap.Error(err))
	}
	logger.Info("pricer stopped")
}

func run(ctx context.Context, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	programs, err := pricing.LoadConfig(os.Getenv("PROGRAMS_YAML_PATH"))
	if err != nil {
		return fmt.Errorf("load programs: %w", err)
	}
	seeds, err := directory.LoadSeeds(os.Getenv("POOL_SEEDS_PATH"))
	if err != nil {
		return err
	}

	calc := pricing.NewCalculator(programs,
		pricing.WithLogger(logger.Named("calculator")),
		pricing.WithMetrics(pricing.NewMetrics(reg)),
	)

	rpcCfg, err := rpc.FromEnv()
	if err != nil {
		return fmt.Errorf("load rpc config: %w", err)
	}
	fetcher, err := rpc.NewFetcher(rpcCfg, rpc.WithLogger(logger.Named("rpc")), rpc.WithRegisterer(reg))
	if err != nil {
		return fmt.Errorf("init rpc fetcher: %w", err)
	}

	dir, closeDir, err := openDirectory(ctx, logger)
	if err != nil {
		return err
	}
	defer closeDir()

	natsCfg, err := natsx.FromEnv()
	if err != nil {
		return fmt.Errorf("load nats config: %w", err)
	}
	publisher, err := natsx.NewPublisher(natsCfg, natsx.WithLogger(logger.Named("nats")), natsx.WithRegisterer(reg))
	if err != nil {
		return fmt.Errorf("init nats publisher: %w", err)
	}
	defer func() { _ = publisher.Close() }()
	publishers := []geyser.PricePublisher{publisher}

	cacheCfg, err := cache.LoadConfigFromEnv()
	if err != nil {
		return fmt.Errorf("load redis cache config: %w", err)
	}
	if cacheCfg.Enabled {
		priceCache, err := cache.New(cacheCfg)
		if err != nil {
			return fmt.Errorf("init redis cache: %w", err)
		}
		defer func() { _ = priceCache.Close() }()
		publishers = append(publishers, priceCache)
	}

	geyserCfg, err := geyser.LoadConfig(programs)
	if err != nil {
		return fmt.Errorf("load geyser config: %w", err)
	}

	pruneWindow := uint64(geyser.DefaultPruneWindow)
	if v := os.Getenv("PRICER_PRUNE_WINDOW"); v != "" {
		if pruneWindow, err = strconv.ParseUint(v, 10, 64); err != nil {
			return fmt.Errorf("invalid PRICER_PRUNE_WINDOW: %w", err)
		}
	}

	processor := geyser.NewProcessor(geyser.ProcessorConfig{
		Calculator:  calc,
		Store:       common.NewMemoryAccountStore(),
		Directory:   dir,
		Fetcher:     fetcher,
		Publishers:  publishers,
		Discover:    geyserCfg.Discover,
		PruneWindow: pruneWindow,
		Logger:      logger.Named("processor"),
		Registerer:  reg,
	})

	warmUp(ctx, processor, fetcher, dir, seeds, logger)

	opts := geyser.ServiceOptions{
		MetricsAddr: os.Getenv("INGESTOR_METRICS_ADDR"),
		Registry:    reg,
		Logger:      logger,
	}

	primary, err := geyser.NewClient(geyserCfg, logger.Named("geyser"))
	if err != nil {
		return fmt.Errorf("init geyser client: %w", err)
	}

	var service runner
	if fallbackCfg := geyser.FallbackConfig(geyserCfg); fallbackCfg != nil {
		logger.Info("geyser fallback enabled", zap.String("fallback", fallbackCfg.String()))
		fallback, err := geyser.NewClient(fallbackCfg, logger.Named("geyser"))
		if err != nil {
			return fmt.Errorf("init fallback client: %w", err)
		}
		service, err = geyser.NewFailoverService(primary, fallback, processor, opts)
		if err != nil {
			return fmt.Errorf("init failover service: %w", err)
		}
	} else {
		service, err = geyser.NewService(primary, processor, opts)
		if err != nil {
			return fmt.Errorf("init service: %w", err)
		}
	}

	return service.Run(ctx, 0)
}

// openDirectory restores tracked pools from Redis when DIRECTORY_REDIS_ADDR is
// set and otherwise starts empty.
func openDirectory(ctx context.Context, logger *zap.Logger) (directory.Directory, func(), error) {
	if os.Getenv("DIRECTORY_REDIS_ADDR") == "" {
		return directory.NewMemoryDirectory(), func() {}, nil
	}
	cfg, err := directory.RedisConfigFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load directory config: %w", err)
	}
	dir, err := directory.NewRedisDirectory(cfg, logger.Named("directory"))
	if err != nil {
		return nil, nil, fmt.Errorf("init directory: %w", err)
	}
	loaded, err := dir.Load(ctx)
	if err != nil {
		_ = dir.Close()
		return nil, nil, err
	}
	logger.Info("directory restored", zap.Int("pools", loaded))
	return dir, func() { _ = dir.Close() }, nil
}

// warmUp tracks restored and seeded pools over RPC and publishes an initial
// price for each. Pools that fail to load are logged and skipped.
func warmUp(ctx context.Context, processor *geyser.Processor, fetcher *rpc.Fetcher, dir directory.Directory, seeds []pricing.PoolRequest, logger *zap.Logger) {
	reqs := make([]pricing.PoolRequest, 0, dir.Len()+len(seeds))
	for _, e := range dir.Entries() {
		reqs = append(reqs, e.Request())
	}
	reqs = append(reqs, seeds...)

	tracked := 0
	for _, req := range reqs {
		if _, err := processor.Track(ctx, req); err != nil {
			logger.Warn("skipping pool", zap.Stringer("pool", req.Pool), zap.String("kind", req.Kind.String()), zap.Error(err))
			continue
		}
		tracked++
	}
	if err := processor.RepriceAll(ctx); err != nil {
		logger.Warn("initial pricing interrupted", zap.Error(err))
	}

	fields := []zap.Field{zap.Int("tracked", tracked), zap.Int("requested", len(reqs))}
	if slot, err := fetcher.CurrentSlot(ctx); err == nil {
		fields = append(fields, zap.Uint64("slot", slot))
	}
	logger.Info("warm-up complete", fields...)
}
