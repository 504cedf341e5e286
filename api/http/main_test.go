package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexbrahh/lp-pricer/api/http/cache"
	apitypes "github.com/rexbrahh/lp-pricer/api/http/types"
	"github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/internal/layouttest"
	"github.com/rexbrahh/lp-pricer/pricing"
)

type stubPrices struct {
	pools  map[string]*pricing.PriceResult
	tokens map[string]*pricing.PriceResult
	err    error
}

func (s *stubPrices) PoolPrice(_ context.Context, pool string) (*pricing.PriceResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if r, ok := s.pools[pool]; ok {
		return r, nil
	}
	return nil, apitypes.ErrNotFound
}

func (s *stubPrices) TokenPrice(_ context.Context, mint string) (*pricing.PriceResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if r, ok := s.tokens[mint]; ok {
		return r, nil
	}
	return nil, apitypes.ErrNotFound
}

var (
	apiPool = layouttest.Key(1)
	apiMint = layouttest.Key(2)
)

func samplePrice() *pricing.PriceResult {
	fee := uint32(3000)
	return &pricing.PriceResult{
		PriceSOL:      0.004,
		SOLReserves:   120,
		TokenReserves: 30_000,
		Source:        pricing.SourceVaultBalance,
		Pool:          apiPool,
		TokenMint:     apiMint,
		ProgramKind:   common.OrcaWhirlpool,
		Slot:          99,
		FeeRate:       &fee,
		ComputedAt:    time.Unix(1_700_000_000, 0).UTC(),
	}
}

func newTestServer(prices priceSource) *Server {
	return NewServer(prices, nil)
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthzHandler(t *testing.T) {
	disabled, err := cache.New(cache.Config{TTL: time.Minute})
	require.NoError(t, err)

	rr := get(t, newTestServer(disabled), "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp apitypes.HealthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "disabled", resp.Cache)

	rr = get(t, newTestServer(&stubPrices{}), "/healthz")
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "enabled", resp.Cache)
}

func TestPriceHandlers(t *testing.T) {
	prices := &stubPrices{
		pools:  map[string]*pricing.PriceResult{apiPool.String(): samplePrice()},
		tokens: map[string]*pricing.PriceResult{apiMint.String(): samplePrice()},
	}
	srv := newTestServer(prices)

	for _, path := range []string{
		"/v1/pool/" + apiPool.String() + "/price",
		"/v1/token/" + apiMint.String() + "/price",
	} {
		t.Run(path, func(t *testing.T) {
			rr := get(t, srv, path)
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var resp apitypes.PriceResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, apiPool.String(), resp.Pool)
			assert.Equal(t, apiMint.String(), resp.TokenMint)
			assert.Equal(t, "orca_whirlpool", resp.Program)
			assert.Equal(t, 0.004, resp.PriceSOL)
			assert.Equal(t, "vault_balance", resp.Source)
			require.NotNil(t, resp.FeePPM)
			assert.Equal(t, uint32(3000), *resp.FeePPM)
			assert.Equal(t, uint64(99), resp.Slot)
		})
	}
}

func TestPriceHandlerErrors(t *testing.T) {
	tests := []struct {
		name   string
		prices priceSource
		path   string
		status int
	}{
		{name: "invalid pool address", prices: &stubPrices{}, path: "/v1/pool/not-a-key/price", status: http.StatusBadRequest},
		{name: "invalid mint address", prices: &stubPrices{}, path: "/v1/token/0OIl/price", status: http.StatusBadRequest},
		{name: "unknown pool", prices: &stubPrices{}, path: "/v1/pool/" + apiPool.String() + "/price", status: http.StatusNotFound},
		{name: "unknown token", prices: &stubPrices{}, path: "/v1/token/" + apiMint.String() + "/price", status: http.StatusNotFound},
		{name: "cache disabled", prices: &stubPrices{err: cache.ErrDisabled}, path: "/v1/pool/" + apiPool.String() + "/price", status: http.StatusServiceUnavailable},
		{name: "no cache", prices: nil, path: "/v1/token/" + apiMint.String() + "/price", status: http.StatusServiceUnavailable},
		{name: "redis failure", prices: &stubPrices{err: errors.New("i/o timeout")}, path: "/v1/pool/" + apiPool.String() + "/price", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(t, newTestServer(tt.prices), tt.path)
			require.Equal(t, tt.status, rr.Code)

			var resp apitypes.ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}
