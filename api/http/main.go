package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/rexbrahh/lp-pricer/api/http/cache"
	apitypes "github.com/rexbrahh/lp-pricer/api/http/types"
	"github.com/rexbrahh/lp-pricer/observability"
	"github.com/rexbrahh/lp-pricer/pricing"
)

type priceSource interface {
	PoolPrice(ctx context.Context, pool string) (*pricing.PriceResult, error)
	TokenPrice(ctx context.Context, mint string) (*pricing.PriceResult, error)
}

// Server bundles dependencies for the HTTP API.
type Server struct {
	router  *chi.Mux
	prices  priceSource
	logger  *zap.Logger
	started time.Time
}

// NewServer constructs a Server with registered routes.
func NewServer(prices priceSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		router:  chi.NewRouter(),
		prices:  prices,
		logger:  logger,
		started: time.Now(),
	}

	s.router.Get("/healthz", s.healthzHandler)
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/pool/{id}/price", s.poolPriceHandler)
		r.Get("/token/{mint}/price", s.tokenPriceHandler)
	})

	return s
}

// Handler exposes the underlying router for integration tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	resp := apitypes.HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Millisecond).String(),
		Cache:  "enabled",
	}
	if c, ok := s.prices.(*cache.Cache); s.prices == nil || (ok && c.Disabled()) {
		resp.Cache = "disabled"
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) poolPriceHandler(w http.ResponseWriter, r *http.Request) {
	s.servePrice(w, r, chi.URLParam(r, "id"), s.poolPrice)
}

func (s *Server) tokenPriceHandler(w http.ResponseWriter, r *http.Request) {
	s.servePrice(w, r, chi.URLParam(r, "mint"), s.tokenPrice)
}

func (s *Server) poolPrice(ctx context.Context, id string) (*pricing.PriceResult, error) {
	if s.prices == nil {
		return nil, cache.ErrDisabled
	}
	return s.prices.PoolPrice(ctx, id)
}

func (s *Server) tokenPrice(ctx context.Context, id string) (*pricing.PriceResult, error) {
	if s.prices == nil {
		return nil, cache.ErrDisabled
	}
	return s.prices.TokenPrice(ctx, id)
}

func (s *Server) servePrice(w http.ResponseWriter, r *http.Request, id string, lookup func(context.Context, string) (*pricing.PriceResult, error)) {
	if _, err := solana.PublicKeyFromBase58(id); err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "invalid address"})
		return
	}

	result, err := lookup(r.Context(), id)
	switch {
	case errors.Is(err, apitypes.ErrNotFound):
		writeJSON(w, http.StatusNotFound, apitypes.ErrorResponse{Error: "no price for " + id})
		return
	case errors.Is(err, cache.ErrDisabled):
		writeJSON(w, http.StatusServiceUnavailable, apitypes.ErrorResponse{Error: "price cache disabled"})
		return
	case err != nil:
		s.logger.Warn("price lookup failed", zap.String("id", id), zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, apitypes.ErrorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, apitypes.NewPriceResponse(result))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func main() {
	_ = godotenv.Load()

	logger, err := observability.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("api-http")

	cfg, err := cache.LoadConfigFromEnv()
	if err != nil {
		logger.Fatal("load redis config", zap.Error(err))
	}

	cacheClient, err := cache.New(cfg)
	if err != nil {
		logger.Fatal("init redis cache", zap.Error(err))
	}
	defer func() { _ = cacheClient.Close() }()
	if !cfg.Enabled {
		logger.Warn("redis cache disabled: API_REDIS_ADDR not set")
	}

	server := NewServer(cacheClient, logger)

	addr := os.Getenv("API_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}
