// Package natsx publishes price updates to NATS JetStream.
package natsx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/observability"
	"github.com/rexbrahh/lp-pricer/pricing"
)

// ErrClosed is returned when publishing after Close.
var ErrClosed = errors.New("nats publisher closed")

// PriceSubject is the subject a price from kind is published on.
func PriceSubject(root string, kind common.ProgramKind) string {
	return fmt.Sprintf("%s.price.%s", root, kind)
}

// PriceMsgID deduplicates republished prices: one message per pool per slot.
func PriceMsgID(result *pricing.PriceResult) string {
	return fmt.Sprintf("%s:%d", result.Pool, result.Slot)
}

// Publisher emits JSON-encoded pricing.PriceResult messages.
type Publisher struct {
	cfg     Config
	conn    *nats.Conn
	js      nats.JetStreamContext
	metrics *publisherMetrics
	logger  *zap.Logger
}

// Option customises a Publisher.
type Option func(*Publisher)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRegisterer registers publisher metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Publisher) {
		p.metrics = newPublisherMetrics(reg)
	}
}

// NewPublisher validates configuration and connects to JetStream.
func NewPublisher(cfg Config, opts ...Option) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Publisher{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = newPublisherMetrics(nil)
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("lp-pricer-publisher"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if cfg.EnsureStream {
		if err := ensureStream(js, cfg); err != nil {
			conn.Close()
			return nil, err
		}
	}

	p.conn = conn
	p.js = js
	return p, nil
}

func ensureStream(js nats.JetStreamContext, cfg Config) error {
	if _, err := js.StreamInfo(cfg.Stream); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", cfg.Stream, err)
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.SubjectRoot + ".>"},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("add stream %s: %w", cfg.Stream, err)
	}
	return nil
}

// PublishPrice publishes result and waits for the JetStream ack.
func (p *Publisher) PublishPrice(ctx context.Context, result *pricing.PriceResult) error {
	if result == nil {
		return nil
	}
	if p.js == nil {
		return ErrClosed
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode price for %s: %w", result.Pool, err)
	}

	msg := nats.NewMsg(PriceSubject(p.cfg.SubjectRoot, result.ProgramKind))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, PriceMsgID(result))
	msg.Header.Set("Content-Type", "application/json")

	ctx, cancel := p.WithTimeout(ctx)
	defer cancel()
	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		p.metrics.errors.Inc()
		p.logger.Warn("price publish failed",
			zap.String("subject", msg.Subject),
			zap.Stringer("pool", result.Pool),
			zap.Error(err),
		)
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	p.metrics.acks.Inc()
	return nil
}

// WithTimeout returns a context with the publisher's timeout applied.
func (p *Publisher) WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := p.cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return context.WithTimeout(parent, timeout)
}

// Config exposes a copy of the publisher configuration.
func (p *Publisher) Config() Config {
	return p.cfg
}

// Close drains the connection.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	p.conn = nil
	p.js = nil
	return err
}

type publisherMetrics struct {
	acks   prometheus.Counter
	errors prometheus.Counter
}

func newPublisherMetrics(reg prometheus.Registerer) *publisherMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &publisherMetrics{
		acks: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: observability.Namespace,
			Name:      observability.MetricPublisherNATSacksTotal,
			Help:      "Price messages acknowledged by JetStream.",
		}),
		errors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: observability.Namespace,
			Name:      observability.MetricPublisherNATSErrors,
			Help:      "Price messages that failed to publish.",
		}),
	}
}
