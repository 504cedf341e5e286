package geyser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"go.uber.org/zap"
)

// ClientInterface captures the subset of the geyser client used by the service.
type ClientInterface interface {
	Connect() error
	Subscribe(startSlot uint64) (<-chan *pb.SubscribeUpdate, <-chan error)
	SetAccountSource(src AccountSource)
	Refresh() error
	Close() error
	Name() string
}

// ServiceOptions carries the pieces shared by Service and FailoverService.
type ServiceOptions struct {
	// MetricsAddr enables a Prometheus endpoint when non-empty.
	MetricsAddr string
	Registry    *prometheus.Registry
	Logger      *zap.Logger
}

func (o ServiceOptions) withDefaults() ServiceOptions {
	if o.Registry == nil {
		o.Registry = prometheus.NewRegistry()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Service wires one geyser client to the processor.
type Service struct {
	client    ClientInterface
	processor *Processor
	metrics   *metricsEndpoint
	logger    *zap.Logger
}

// NewService constructs a single-source service.
func NewService(client ClientInterface, processor *Processor, opts ServiceOptions) (*Service, error) {
	if client == nil {
		return nil, errors.New("geyser client is required")
	}
	if processor == nil {
		return nil, errors.New("processor is required")
	}
	opts = opts.withDefaults()
	return &Service{
		client:    client,
		processor: processor,
		metrics:   newMetricsEndpoint(opts.MetricsAddr, opts.Registry, opts.Logger),
		logger:    opts.Logger,
	}, nil
}

// Run connects to geyser, processes updates, and blocks until the context is
// cancelled or an unrecoverable error occurs.
func (s *Service) Run(ctx context.Context, startSlot uint64) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.metrics.start()
	defer s.metrics.shutdown()

	return consume(ctx, s.client, s.processor, startSlot, s.logger)
}

// consume streams one client into the processor until the stream fails or ctx ends.
func consume(ctx context.Context, client ClientInterface, processor *Processor, startSlot uint64, logger *zap.Logger) error {
	client.SetAccountSource(processor.TrackedAccounts)
	processor.OnTracked(func() {
		if err := client.Refresh(); err != nil && !errors.Is(err, errNotSubscribed) {
			logger.Warn("refresh subscription", zap.String("source", client.Name()), zap.Error(err))
		}
	})
	defer processor.OnTracked(nil)

	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect %s: %w", client.Name(), err)
	}
	defer client.Close()

	updates, errs := client.Subscribe(startSlot)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return err
			}
		case update, ok := <-updates:
			if !ok {
				return errors.New("update stream closed")
			}
			if err := processor.HandleUpdate(ctx, update); err != nil {
				return err
			}
		}
	}
}

// metricsEndpoint serves a registry over HTTP. A nil endpoint is a no-op.
type metricsEndpoint struct {
	server *http.Server
	stopCh chan struct{}
	logger *zap.Logger
}

func newMetricsEndpoint(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) *metricsEndpoint {
	if addr == "" {
		return nil
	}
	return &metricsEndpoint{
		server: &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		},
		stopCh: make(chan struct{}),
		logger: logger,
	}
}

func (m *metricsEndpoint) start() {
	if m == nil {
		return
	}
	go func() {
		defer close(m.stopCh)
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Metrics server errors do not kill the run loop.
			m.logger.Error("metrics server error", zap.Error(err))
		}
	}()
}

func (m *metricsEndpoint) shutdown() {
	if m == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = m.server.Shutdown(ctx)
	<-m.stopCh
}
