package parquet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/internal/layouttest"
	"github.com/rexbrahh/lp-pricer/pricing"
)

type upload struct {
	bucket string
	key    string
	body   []byte
}

type fakeUploader struct {
	uploads []upload
	err     error
}

func (f *fakeUploader) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.uploads = append(f.uploads, upload{bucket: aws.StringValue(in.Bucket), key: aws.StringValue(in.Key), body: body})
	return &s3manager.UploadOutput{}, nil
}

var fixedNow = time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

func newTestWriter(batchRows int, up uploader) *Writer {
	cfg := validConfig()
	cfg.BatchRows = batchRows
	cfg.FlushInterval = time.Hour
	w := newWriter(cfg, up)
	w.now = func() time.Time { return fixedNow }
	w.lastFlush = fixedNow
	return w
}

func price(kind common.ProgramKind, slot uint64, fee *uint32) *pricing.PriceResult {
	return &pricing.PriceResult{
		PriceSOL:      0.25,
		SOLReserves:   10,
		TokenReserves: 40,
		Source:        pricing.SourceVaultBalance,
		Pool:          layouttest.Key(1),
		TokenMint:     layouttest.Key(2),
		ProgramKind:   kind,
		Slot:          slot,
		FeeRate:       fee,
		ComputedAt:    fixedNow.Add(-time.Minute),
	}
}

func readRows(t *testing.T, body []byte) []PriceRow {
	t.Helper()
	rows, err := parquet.Read[PriceRow](bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	return rows
}

func TestWriterValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Endpoint = ""

	w, err := NewWriter(cfg)
	require.ErrorIs(t, err, ErrWriterDisabled)
	assert.Nil(t, w)
}

func TestWriterPartitionsByProgram(t *testing.T) {
	up := &fakeUploader{}
	w := newTestWriter(100, up)
	fee := uint32(2500)

	ctx := context.Background()
	require.NoError(t, w.AppendPrice(ctx, price(common.RaydiumCpmm, 10, &fee)))
	require.NoError(t, w.AppendPrice(ctx, price(common.RaydiumCpmm, 11, nil)))
	require.NoError(t, w.AppendPrice(ctx, price(common.OrcaWhirlpool, 12, nil)))
	assert.Equal(t, 3, w.Pending())
	assert.Empty(t, up.uploads)

	require.NoError(t, w.Flush(ctx))
	assert.Zero(t, w.Pending())
	require.Len(t, up.uploads, 2)

	byKey := map[string][]byte{}
	for _, u := range up.uploads {
		assert.Equal(t, "dex-parquet", u.bucket)
		byKey[u.key] = u.body
	}

	stamp := fixedNow.UnixNano()
	cpmmKey := "dex/prices/program=raydium_cpmm/date=2024-03-09/prices-" + strconv.FormatInt(stamp, 10) + ".parquet"
	require.Contains(t, byKey, cpmmKey)

	rows := readRows(t, byKey[cpmmKey])
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(10), rows[0].Slot)
	assert.Equal(t, layouttest.Key(1).String(), rows[0].Pool)
	assert.Equal(t, "vault_balance", rows[0].Source)
	assert.Equal(t, fixedNow.Add(-time.Minute).UnixMilli(), rows[0].ComputedAtMS)
	require.NotNil(t, rows[0].FeePPM)
	assert.Equal(t, uint32(2500), *rows[0].FeePPM)
	assert.Nil(t, rows[1].FeePPM)
}

func TestWriterFlushesAtBatchRows(t *testing.T) {
	up := &fakeUploader{}
	w := newTestWriter(2, up)

	require.NoError(t, w.AppendPrice(context.Background(), price(common.MeteoraDlmm, 1, nil)))
	assert.Empty(t, up.uploads)
	require.NoError(t, w.AppendPrice(context.Background(), price(common.MeteoraDlmm, 2, nil)))
	require.Len(t, up.uploads, 1)
	assert.Len(t, readRows(t, up.uploads[0].body), 2)
}

func TestWriterKeepsRowsOnUploadFailure(t *testing.T) {
	up := &fakeUploader{err: errors.New("503 slow down")}
	w := newTestWriter(100, up)

	require.NoError(t, w.AppendPrice(context.Background(), price(common.RaydiumCpmm, 1, nil)))
	require.ErrorContains(t, w.Flush(context.Background()), "503 slow down")
	assert.Equal(t, 1, w.Pending())

	up.err = nil
	require.NoError(t, w.Close())
	require.Len(t, up.uploads, 1)
	assert.Zero(t, w.Pending())
}

func TestWriterRejectsNil(t *testing.T) {
	w := newTestWriter(1, &fakeUploader{})
	require.Error(t, w.AppendPrice(context.Background(), nil))
}

func TestHandlePrice(t *testing.T) {
	up := &fakeUploader{}
	w := newTestWriter(100, up)

	data, err := json.Marshal(price(common.RaydiumClmm, 7, nil))
	require.NoError(t, err)
	require.NoError(t, handlePrice(context.Background(), w, data))
	assert.Equal(t, 1, w.Pending())

	require.ErrorIs(t, handlePrice(context.Background(), w, []byte("nope")), errMalformed)

	bad := price(common.RaydiumClmm, 8, nil)
	bad.PriceSOL = -1
	data, err = json.Marshal(bad)
	require.NoError(t, err)
	require.ErrorIs(t, handlePrice(context.Background(), w, data), errMalformed)
	assert.Equal(t, 1, w.Pending())
}
