package parquet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/rexbrahh/lp-pricer/pricing"
)

const (
	envNATSURL       = "PARQUET_NATS_URL"
	envStream        = "PARQUET_NATS_STREAM"
	envSubjectRoot   = "PARQUET_SUBJECT_ROOT"
	envConsumer      = "PARQUET_CONSUMER"
	envPullBatch     = "PARQUET_PULL_BATCH"
	envPullTimeoutMS = "PARQUET_PULL_TIMEOUT_MS"
)

type ServiceConfig struct {
	NATSURL     string
	Stream      string
	SubjectRoot string
	Consumer    string
	PullBatch   int
	PullTimeout time.Duration
	Writer      Config
}

func (c ServiceConfig) Validate() error {
	if c.NATSURL == "" {
		return fmt.Errorf("nats url is required")
	}
	if c.Stream == "" {
		return fmt.Errorf("nats stream is required")
	}
	if c.SubjectRoot == "" {
		return fmt.Errorf("subject root is required")
	}
	if c.Consumer == "" {
		return fmt.Errorf("consumer name is required")
	}
	if c.PullBatch <= 0 {
		return fmt.Errorf("pull batch must be positive")
	}
	if c.PullTimeout <= 0 {
		return fmt.Errorf("pull timeout must be positive")
	}
	return c.Writer.Validate()
}

func ServiceConfigFromEnv() (ServiceConfig, error) {
	cfg := ServiceConfig{
		NATSURL:     os.Getenv(envNATSURL),
		Stream:      valueOrDefault(os.Getenv(envStream), "DEX"),
		SubjectRoot: valueOrDefault(os.Getenv(envSubjectRoot), "dex.sol"),
		Consumer:    valueOrDefault(os.Getenv(envConsumer), "parquet-sink"),
		PullBatch:   256,
		PullTimeout: 500 * time.Millisecond,
	}

	if v := os.Getenv(envPullBatch); v != "" {
		if batch, err := strconv.Atoi(v); err == nil && batch > 0 {
			cfg.PullBatch = batch
		} else {
			return ServiceConfig{}, fmt.Errorf("invalid %s: %q", envPullBatch, v)
		}
	}
	if v := os.Getenv(envPullTimeoutMS); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return ServiceConfig{}, fmt.Errorf("invalid %s: %q", envPullTimeoutMS, v)
		}
		cfg.PullTimeout = time.Duration(ms) * time.Millisecond
	}

	writerCfg, err := FromEnv()
	if err != nil {
		return ServiceConfig{}, err
	}
	cfg.Writer = writerCfg
	return cfg, cfg.Validate()
}

type priceAppender interface {
	AppendPrice(ctx context.Context, result *pricing.PriceResult) error
}

var errMalformed = errors.New("malformed price message")

func decodePrice(data []byte) (*pricing.PriceResult, error) {
	var result pricing.PriceResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if result.Pool.IsZero() || result.PriceSOL <= 0 {
		return nil, fmt.Errorf("%w: pool %s price %v", errMalformed, result.Pool, result.PriceSOL)
	}
	return &result, nil
}

func handlePrice(ctx context.Context, w priceAppender, data []byte) error {
	result, err := decodePrice(data)
	if err != nil {
		return err
	}
	return w.AppendPrice(ctx, result)
}

// Service archives published prices as Parquet files.
type Service struct {
	cfg       ServiceConfig
	conn      *nats.Conn
	sub       *nats.Subscription
	writer    *Writer
	flushTick *time.Ticker
	logger    *zap.Logger
}

func NewService(_ context.Context, cfg ServiceConfig, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	writer, err := NewWriter(cfg.Writer)
	if err != nil {
		return nil, err
	}

	conn, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.Consumer))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	subject := cfg.SubjectRoot + ".price.>"
	sub, err := js.PullSubscribe(subject, cfg.Consumer, nats.BindStream(cfg.Stream), nats.ManualAck())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("pull subscribe: %w", err)
	}

	return &Service{
		cfg:       cfg,
		conn:      conn,
		sub:       sub,
		writer:    writer,
		flushTick: time.NewTicker(cfg.Writer.FlushInterval),
		logger:    logger,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	defer s.flushTick.Stop()
	defer s.conn.Drain()
	defer func() {
		if err := s.writer.Close(); err != nil {
			s.logger.Warn("final parquet flush failed", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.flushTick.C:
			if err := s.writer.Flush(ctx); err != nil {
				return err
			}
		default:
		}

		msgs, err := s.sub.Fetch(s.cfg.PullBatch, nats.MaxWait(s.cfg.PullTimeout))
		if errors.Is(err, nats.ErrTimeout) {
			continue
		}
		if err != nil {
			return fmt.Errorf("fetch messages: %w", err)
		}

		for _, msg := range msgs {
			err := handlePrice(ctx, s.writer, msg.Data)
			switch {
			case errors.Is(err, errMalformed):
				s.logger.Warn("dropping price message", zap.String("subject", msg.Subject), zap.Error(err))
				_ = msg.Term()
			case err != nil:
				_ = msg.Nak()
				return err
			default:
				_ = msg.Ack()
			}
		}
	}
}

func valueOrDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
