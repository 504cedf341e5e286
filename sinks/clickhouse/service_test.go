package clickhouse

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/internal/layouttest"
	"github.com/rexbrahh/lp-pricer/pricing"
)

type stubWriter struct {
	rows  []PriceRow
	flush int
}

func (s *stubWriter) WritePrices(_ context.Context, rows []PriceRow) error {
	s.rows = append(s.rows, rows...)
	return nil
}

func (s *stubWriter) Flush(_ context.Context) error {
	s.flush++
	return nil
}

func samplePrice() *pricing.PriceResult {
	fee := uint32(2500)
	return &pricing.PriceResult{
		PriceSOL:      0.00002,
		SOLReserves:   1,
		TokenReserves: 50_000,
		Source:        pricing.SourceVaultBalance,
		Pool:          layouttest.Key(1),
		TokenMint:     layouttest.Key(2),
		ProgramKind:   common.RaydiumCpmm,
		Slot:          123,
		FeeRate:       &fee,
		ComputedAt:    time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestProcessorHandlesPrice(t *testing.T) {
	writer := &stubWriter{}
	proc := newProcessor(writer)

	data, err := json.Marshal(samplePrice())
	require.NoError(t, err)
	require.NoError(t, proc.handlePrice(context.Background(), data))

	require.Len(t, writer.rows, 1)
	row := writer.rows[0]
	assert.Equal(t, layouttest.Key(1).String(), row.Pool)
	assert.Equal(t, layouttest.Key(2).String(), row.TokenMint)
	assert.Equal(t, "raydium_cpmm", row.Program)
	assert.Equal(t, "vault_balance", row.Source)
	assert.Equal(t, uint64(123), row.Slot)
	assert.Equal(t, time.Unix(1_700_000_000, 0).UTC(), row.Timestamp)
	assert.Equal(t, 0.00002, row.PriceSOL)
	assert.True(t, row.HasFee)
	assert.Equal(t, uint32(2500), row.FeePPM)
}

func TestProcessorRejectsMalformed(t *testing.T) {
	writer := &stubWriter{}
	proc := newProcessor(writer)

	require.ErrorIs(t, proc.handlePrice(context.Background(), []byte("{not json")), errMalformed)

	zero := samplePrice()
	zero.PriceSOL = 0
	data, err := json.Marshal(zero)
	require.NoError(t, err)
	require.ErrorIs(t, proc.handlePrice(context.Background(), data), errMalformed)
	assert.Empty(t, writer.rows)
}

func TestRowFromResultWithoutFee(t *testing.T) {
	r := samplePrice()
	r.FeeRate = nil
	row := RowFromResult(r)
	assert.False(t, row.HasFee)
	assert.Zero(t, row.FeePPM)
}

func TestServiceConfigFromEnv(t *testing.T) {
	t.Setenv(envSinkNATSURL, "nats://127.0.0.1:4222")
	t.Setenv(envSinkDSN, "clickhouse://localhost:9000/dex")
	t.Setenv(envSinkPricesTable, "prices_v2")
	t.Setenv(envSinkCreateTable, "true")
	t.Setenv(envSinkPullBatch, "64")

	cfg, err := ServiceConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "DEX", cfg.Stream)
	assert.Equal(t, "dex.sol", cfg.SubjectRoot)
	assert.Equal(t, 64, cfg.PullBatch)
	assert.Equal(t, "prices_v2", cfg.Writer.PricesTable)
	assert.True(t, cfg.Writer.CreateTable)

	t.Setenv(envSinkCreateTable, "sometimes")
	_, err = ServiceConfigFromEnv()
	require.Error(t, err)
}

func TestServiceConfigRequiresNATS(t *testing.T) {
	t.Setenv(envSinkNATSURL, "")
	t.Setenv(envSinkDSN, "clickhouse://localhost:9000/dex")
	_, err := ServiceConfigFromEnv()
	require.ErrorContains(t, err, "nats url is required")
}
