package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rexbrahh/lp-pricer/observability"
	"github.com/rexbrahh/lp-pricer/pricing"
	natsx "github.com/rexbrahh/lp-pricer/sinks/nats"
)

// fixture is one recorded price plus an optional pause before the next one.
type fixture struct {
	pricing.PriceResult
	SleepMillis int `json:"sleep_ms"`
}

func main() {
	inputPath := flag.String("input", "cmd/tools/sinkreplay/testdata/prices.json", "path to price fixture (JSON array)")
	natsURL := flag.String("nats-url", "nats://127.0.0.1:4222", "NATS server URL")
	stream := flag.String("stream", "DEX", "JetStream stream name")
	subjectRoot := flag.String("subject-root", "dex.sol", "subject root for publishing")
	ensureStream := flag.Bool("ensure-stream", true, "create the stream when missing")
	publishDelay := flag.Int("delay-ms", 0, "delay in milliseconds between prices")
	flag.Parse()

	logger, err := observability.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("sinkreplay")

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		logger.Fatal("read input", zap.Error(err))
	}
	var prices []fixture
	if err := json.Unmarshal(data, &prices); err != nil {
		logger.Fatal("decode fixture", zap.Error(err))
	}

	cfg := natsx.DefaultConfig()
	cfg.URL = *natsURL
	cfg.Stream = *stream
	cfg.SubjectRoot = *subjectRoot
	cfg.EnsureStream = *ensureStream
	publisher, err := natsx.NewPublisher(cfg, natsx.WithLogger(logger))
	if err != nil {
		logger.Fatal("connect publisher", zap.Error(err))
	}
	defer func() { _ = publisher.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for idx := range prices {
		p := &prices[idx]
		if p.ComputedAt.IsZero() {
			p.ComputedAt = time.Now().UTC()
		}
		if err := publisher.PublishPrice(ctx, &p.PriceResult); err != nil {
			logger.Fatal("publish price", zap.Int("index", idx), zap.Stringer("pool", p.Pool), zap.Error(err))
		}
		delay := p.SleepMillis
		if delay == 0 {
			delay = *publishDelay
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				logger.Fatal("replay interrupted", zap.Int("published", idx+1))
			case <-time.After(time.Duration(delay) * time.Millisecond):
			}
		}
	}

	logger.Info("replay complete", zap.Int("published", len(prices)))
}
