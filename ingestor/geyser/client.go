package geyser

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
)

const (
	// ReplaySlotWindow defines how many slots to replay on reconnect
	ReplaySlotWindow = 64
	// ReconnectBackoff is the delay between reconnect attempts
	ReconnectBackoff = 5 * time.Second

	trackedFilterName = "tracked"
)

// errNotSubscribed is returned by Refresh when no stream is open.
var errNotSubscribed = errors.New("geyser stream not open")

// tokenAuth implements PerRPCCredentials for x-token authentication
type tokenAuth struct {
	token string
}

func (t tokenAuth) GetRequestMetadata(ctx context.Context, in ...string) (map[string]string, error) {
	return map[string]string{"x-token": t.token}, nil
}

func (tokenAuth) RequireTransportSecurity() bool {
	return true
}

// AccountSource lists the accounts to stream in addition to the owner filters.
type AccountSource func() []string

// Client wraps a Yellowstone Geyser gRPC account subscription with automatic reconnection
type Client struct {
	cfg    *Config
	logger *zap.Logger
	conn   *grpc.ClientConn
	client pb.GeyserClient
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	stream   pb.Geyser_SubscribeClient
	accounts AccountSource
}

// NewClient creates a new Geyser client with the provided configuration
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:    cfg,
		logger: logger.With(zap.String("source", cfg.Name)),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Name identifies the source for failover bookkeeping.
func (c *Client) Name() string {
	return c.cfg.Name
}

// SetAccountSource replaces the static tracked account list with a live one.
func (c *Client) SetAccountSource(src AccountSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts = src
}

// Connect establishes the gRPC connection to the Geyser endpoint with TLS
func (c *Client) Connect() error {
	if c.ctx.Err() != nil {
		c.ctx, c.cancel = context.WithCancel(context.Background())
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             time.Second,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(1024 * 1024 * 1024), // 1GB max message size
		),
		grpc.WithPerRPCCredentials(tokenAuth{token: c.cfg.APIKey}),
	}

	conn, err := grpc.NewClient(c.cfg.Endpoint, opts...)
	if err != nil {
		return fmt.Errorf("failed to dial geyser: %w", err)
	}

	c.conn = conn
	c.client = pb.NewGeyserClient(conn)
	return nil
}

// Subscribe streams account and slot updates, replaying from shortly before startSlot.
func (c *Client) Subscribe(startSlot uint64) (<-chan *pb.SubscribeUpdate, <-chan error) {
	updateCh := make(chan *pb.SubscribeUpdate, 1024)
	errCh := make(chan error, 1)

	go c.subscribeLoop(startSlot, updateCh, errCh)

	return updateCh, errCh
}

// Refresh re-sends the subscription on the open stream so newly tracked accounts
// start streaming without a reconnect. No replay is requested.
func (c *Client) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return errNotSubscribed
	}
	return c.stream.Send(c.buildSubscribeRequestLocked(0))
}

func (c *Client) subscribeLoop(startSlot uint64, updateCh chan<- *pb.SubscribeUpdate, errCh chan<- error) {
	defer close(updateCh)
	defer close(errCh)

	currentSlot := startSlot

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		replaySlot := currentSlot
		if currentSlot > ReplaySlotWindow {
			replaySlot = currentSlot - ReplaySlotWindow
		}

		c.logger.Info("starting geyser subscription",
			zap.Uint64("slot", currentSlot),
			zap.Uint64("replay_from", replaySlot),
		)

		stream, err := c.client.Subscribe(c.ctx)
		if err != nil {
			c.logger.Warn("failed to create subscription", zap.Error(err))
			c.report(errCh, fmt.Errorf("subscribe failed: %w", err))
			if !c.wait() {
				return
			}
			continue
		}

		c.mu.Lock()
		c.stream = stream
		err = stream.Send(c.buildSubscribeRequestLocked(replaySlot))
		c.mu.Unlock()
		if err != nil {
			c.logger.Warn("failed to send subscribe request", zap.Error(err))
			c.report(errCh, fmt.Errorf("send request failed: %w", err))
			c.clearStream()
			if !c.wait() {
				return
			}
			continue
		}

		lastSlot := c.processStream(stream, updateCh, errCh)
		c.clearStream()
		if lastSlot > currentSlot {
			currentSlot = lastSlot
		}

		c.logger.Info("stream ended, reconnecting", zap.Uint64("slot", currentSlot))
		if !c.wait() {
			return
		}
	}
}

func (c *Client) wait() bool {
	select {
	case <-c.ctx.Done():
		return false
	case <-time.After(ReconnectBackoff):
		return true
	}
}

func (c *Client) report(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}

func (c *Client) clearStream() {
	c.mu.Lock()
	c.stream = nil
	c.mu.Unlock()
}

func (c *Client) trackedAccounts() []string {
	seen := make(map[string]struct{}, len(c.cfg.TrackedAccounts))
	var out []string
	add := func(keys []string) {
		for _, k := range keys {
			if _, ok := seen[k]; ok || k == "" {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	add(c.cfg.TrackedAccounts)
	if c.accounts != nil {
		add(c.accounts())
	}
	sort.Strings(out)
	return out
}

// buildSubscribeRequestLocked constructs the subscription request; c.mu must be held.
func (c *Client) buildSubscribeRequestLocked(startSlot uint64) *pb.SubscribeRequest {
	accounts := make(map[string]*pb.SubscribeRequestFilterAccounts)

	for name, programID := range c.cfg.ProgramFilters {
		accounts[name] = &pb.SubscribeRequestFilterAccounts{
			Account: []string{},
			Owner:   []string{programID},
			Filters: []*pb.SubscribeRequestFilterAccountsFilter{},
		}
	}
	if tracked := c.trackedAccounts(); len(tracked) > 0 {
		accounts[trackedFilterName] = &pb.SubscribeRequestFilterAccounts{
			Account: tracked,
			Owner:   []string{},
			Filters: []*pb.SubscribeRequestFilterAccountsFilter{},
		}
	}

	commitment := pb.CommitmentLevel_CONFIRMED

	req := &pb.SubscribeRequest{
		Slots: map[string]*pb.SubscribeRequestFilterSlots{
			"client": {},
		},
		Accounts:           accounts,
		Transactions:       map[string]*pb.SubscribeRequestFilterTransactions{},
		TransactionsStatus: map[string]*pb.SubscribeRequestFilterTransactions{},
		Entry:              map[string]*pb.SubscribeRequestFilterEntry{},
		Blocks:             map[string]*pb.SubscribeRequestFilterBlocks{},
		BlocksMeta:         map[string]*pb.SubscribeRequestFilterBlocksMeta{},
		AccountsDataSlice:  []*pb.SubscribeRequestAccountsDataSlice{},
		Commitment:         &commitment,
	}
	if startSlot > 0 {
		req.FromSlot = &startSlot
	}
	return req
}

// processStream reads messages from the stream and forwards them to the update channel
func (c *Client) processStream(stream pb.Geyser_SubscribeClient, updateCh chan<- *pb.SubscribeUpdate, errCh chan<- error) uint64 {
	var lastSlot uint64

	for {
		select {
		case <-c.ctx.Done():
			return lastSlot
		default:
		}

		update, err := stream.Recv()
		if err == io.EOF {
			c.logger.Info("stream closed by server")
			return lastSlot
		}
		if err != nil {
			c.logger.Warn("stream receive error", zap.Error(err))
			c.report(errCh, fmt.Errorf("stream recv failed: %w", err))
			return lastSlot
		}

		if slot := extractSlotFromUpdate(update); slot > lastSlot {
			lastSlot = slot
		}

		select {
		case updateCh <- update:
		case <-c.ctx.Done():
			return lastSlot
		}
	}
}

// extractSlotFromUpdate extracts the slot number from the update types the pricer streams
func extractSlotFromUpdate(update *pb.SubscribeUpdate) uint64 {
	switch u := update.GetUpdateOneof().(type) {
	case *pb.SubscribeUpdate_Slot:
		return u.Slot.GetSlot()
	case *pb.SubscribeUpdate_Account:
		return u.Account.GetSlot()
	default:
		return 0
	}
}

// Close gracefully shuts down the client
func (c *Client) Close() error {
	c.cancel()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
