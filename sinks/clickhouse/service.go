package clickhouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/rexbrahh/lp-pricer/pricing"
)

type priceWriter interface {
	WritePrices(ctx context.Context, rows []PriceRow) error
	Flush(ctx context.Context) error
}

type processor struct {
	writer priceWriter
}

func newProcessor(writer priceWriter) *processor {
	return &processor{writer: writer}
}

// handlePrice decodes one published price. Malformed payloads are reported
// with errMalformed so the caller can terminate them instead of redelivering.
func (p *processor) handlePrice(ctx context.Context, data []byte) error {
	var result pricing.PriceResult
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if result.Pool.IsZero() || result.PriceSOL <= 0 {
		return fmt.Errorf("%w: pool %s price %v", errMalformed, result.Pool, result.PriceSOL)
	}
	return p.writer.WritePrices(ctx, []PriceRow{RowFromResult(&result)})
}

var errMalformed = errors.New("malformed price message")

// Service drains price messages from JetStream into ClickHouse.
type Service struct {
	cfg       ServiceConfig
	conn      *nats.Conn
	js        nats.JetStreamContext
	sub       *nats.Subscription
	writer    *Writer
	processor *processor
	logger    *zap.Logger
}

func NewService(ctx context.Context, cfg ServiceConfig, logger *zap.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	writer, err := NewWithConfig(ctx, cfg.Writer)
	if err != nil {
		return nil, err
	}

	conn, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.Consumer))
	if err != nil {
		_ = writer.Close(ctx)
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		_ = writer.Close(ctx)
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	subject := cfg.SubjectRoot + ".price.>"
	sub, err := js.PullSubscribe(subject, cfg.Consumer, nats.BindStream(cfg.Stream), nats.ManualAck())
	if err != nil {
		conn.Close()
		_ = writer.Close(ctx)
		return nil, fmt.Errorf("pull subscribe: %w", err)
	}

	return &Service{
		cfg:       cfg,
		conn:      conn,
		js:        js,
		sub:       sub,
		writer:    writer,
		processor: newProcessor(writer),
		logger:    logger,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	flushTicker := time.NewTicker(s.cfg.Writer.FlushInterval)
	defer flushTicker.Stop()
	defer s.conn.Drain()
	defer func() {
		if err := s.writer.Close(context.Background()); err != nil {
			s.logger.Warn("final flush failed", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-flushTicker.C:
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
			err := s.processor.handlePrice(ctx, msg.Data)
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
