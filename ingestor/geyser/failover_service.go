package geyser

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/rexbrahh/lp-pricer/observability"
)

// FailoverService coordinates a primary/fallback client pair and feeds updates
// through a shared processor. When the primary stream exits with an error, the
// service attempts the fallback and periodically retries the primary.
type FailoverService struct {
	primary   ClientInterface
	fallback  ClientInterface
	processor *Processor
	metrics   *failoverMetrics
	endpoint  *metricsEndpoint
	logger    *zap.Logger

	primaryRetryDelay  time.Duration
	fallbackRetryDelay time.Duration
}

// NewFailoverService constructs a failover service. When fallback is nil the
// service keeps retrying the primary.
func NewFailoverService(primary, fallback ClientInterface, processor *Processor, opts ServiceOptions) (*FailoverService, error) {
	if primary == nil {
		return nil, errors.New("primary client is required")
	}
	if processor == nil {
		return nil, errors.New("processor is required")
	}
	opts = opts.withDefaults()

	return &FailoverService{
		primary:            primary,
		fallback:           fallback,
		processor:          processor,
		metrics:            newFailoverMetrics(opts.Registry, primary.Name()),
		endpoint:           newMetricsEndpoint(opts.MetricsAddr, opts.Registry, opts.Logger),
		logger:             opts.Logger,
		primaryRetryDelay:  5 * time.Second,
		fallbackRetryDelay: 3 * time.Second,
	}, nil
}

// Run executes the failover loop until the context is cancelled. startSlot is
// forwarded to both clients (each is responsible for replaying recent slots).
func (s *FailoverService) Run(ctx context.Context, startSlot uint64) error {
	if ctx == nil {
		ctx = context.Background()
	}

	clients := []ClientInterface{s.primary}
	if s.fallback != nil {
		clients = append(clients, s.fallback)
	}

	s.endpoint.start()
	defer s.endpoint.shutdown()

	current := 0
	for {
		client := clients[current]
		s.metrics.setActive(client.Name())

		start := time.Now()
		err := consume(ctx, client, s.processor, startSlot, s.logger)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.metrics.recordFailure(client.Name())
			s.logger.Warn("stream ended",
				zap.String("source", client.Name()),
				zap.Duration("after", time.Since(start).Round(time.Millisecond)),
				zap.Error(err),
			)
		}

		delay := s.primaryRetryDelay
		if len(clients) > 1 {
			current = (current + 1) % len(clients)
			if current != 0 {
				delay = s.fallbackRetryDelay
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

type failoverMetrics struct {
	primary      string
	activeSource prometheus.Gauge
	failures     *prometheus.CounterVec
}

func newFailoverMetrics(reg prometheus.Registerer, primary string) *failoverMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &failoverMetrics{
		primary: primary,
		activeSource: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: observability.Namespace,
			Subsystem: "ingestor",
			Name:      "active_source",
			Help:      "Indicates which ingest source is currently active (1=primary, 2=fallback)",
		}),
		failures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: observability.Namespace,
			Subsystem: "ingestor",
			Name:      "source_failures_total",
			Help:      "Count of stream failures per ingest source.",
		}, []string{"source"}),
	}
}

func (m *failoverMetrics) setActive(source string) {
	if m == nil {
		return
	}
	switch source {
	case "":
		m.activeSource.Set(0)
	case m.primary:
		m.activeSource.Set(1)
	default:
		m.activeSource.Set(2)
	}
}

func (m *failoverMetrics) recordFailure(source string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(source).Inc()
}
