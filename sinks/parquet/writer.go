package parquet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/snappy"

	"github.com/rexbrahh/lp-pricer/pricing"
)

var ErrWriterDisabled = errors.New("parquet writer disabled: missing configuration")

// uploader is the part of *s3manager.Uploader the writer uses.
type uploader interface {
	UploadWithContext(ctx aws.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// Writer buffers price snapshots and periodically uploads Parquet files to
// S3-compatible storage, one file per program kind and UTC day.
type Writer struct {
	cfg Config

	mu        sync.Mutex
	buckets   map[partition][]PriceRow
	pending   int
	uploader  uploader
	lastFlush time.Time
	now       func() time.Time
}

type partition struct {
	program string
	date    string
}

// PriceRow is the Parquet schema of archived prices.
type PriceRow struct {
	ComputedAtMS  int64   `parquet:"computed_at_ms"`
	Slot          uint64  `parquet:"slot"`
	Pool          string  `parquet:"pool,dict"`
	TokenMint     string  `parquet:"token_mint,dict"`
	Program       string  `parquet:"program,dict"`
	PriceSOL      float64 `parquet:"price_sol"`
	SOLReserves   float64 `parquet:"sol_reserves"`
	TokenReserves float64 `parquet:"token_reserves"`
	Source        string  `parquet:"source,dict"`
	FeePPM        *uint32 `parquet:"fee_ppm,optional"`
}

func rowFromResult(r *pricing.PriceResult) PriceRow {
	row := PriceRow{
		ComputedAtMS:  r.ComputedAt.UTC().UnixMilli(),
		Slot:          r.Slot,
		Pool:          r.Pool.String(),
		TokenMint:     r.TokenMint.String(),
		Program:       r.ProgramKind.String(),
		PriceSOL:      r.PriceSOL,
		SOLReserves:   r.SOLReserves,
		TokenReserves: r.TokenReserves,
		Source:        string(r.Source),
	}
	if r.FeeRate != nil {
		fee := *r.FeeRate
		row.FeePPM = &fee
	}
	return row
}

// NewWriter validates configuration and prepares a Writer.
func NewWriter(cfg Config) (*Writer, error) {
	if !cfg.configured() {
		return nil, ErrWriterDisabled
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg := &aws.Config{
		Endpoint:         aws.String(cfg.Endpoint),
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(true),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return newWriter(cfg, s3manager.NewUploader(sess)), nil
}

func newWriter(cfg Config, up uploader) *Writer {
	return &Writer{
		cfg:       cfg,
		buckets:   make(map[partition][]PriceRow),
		uploader:  up,
		lastFlush: time.Now(),
		now:       time.Now,
	}
}

// AppendPrice buffers one price and flushes when the batch or interval limit
// is reached.
func (w *Writer) AppendPrice(ctx context.Context, result *pricing.PriceResult) error {
	if result == nil {
		return errors.New("nil price")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	row := rowFromResult(result)
	key := partition{
		program: row.Program,
		date:    result.ComputedAt.UTC().Format("2006-01-02"),
	}
	w.buckets[key] = append(w.buckets[key], row)
	w.pending++

	if w.pending >= w.cfg.BatchRows || w.now().Sub(w.lastFlush) >= w.cfg.FlushInterval {
		return w.flushLocked(ctx)
	}
	return nil
}

// Pending reports buffered rows across all partitions.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

func (w *Writer) Close() error {
	return w.Flush(context.Background())
}

// flushLocked uploads every non-empty partition. Partitions that fail to
// upload stay buffered for the next flush.
func (w *Writer) flushLocked(ctx context.Context) error {
	for key, rows := range w.buckets {
		if len(rows) == 0 {
			delete(w.buckets, key)
			continue
		}
		if err := w.writeBucket(ctx, key, rows); err != nil {
			return err
		}
		w.pending -= len(rows)
		delete(w.buckets, key)
	}
	w.lastFlush = w.now()
	return nil
}

func (w *Writer) writeBucket(ctx context.Context, key partition, rows []PriceRow) error {
	buf := bytes.NewBuffer(nil)

	writer := parquet.NewGenericWriter[PriceRow](buf, parquet.Compression(&snappy.Codec{}))
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}

	_, err := w.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(w.cfg.Bucket),
		Key:         aws.String(w.objectKey(key)),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("upload parquet to s3: %w", err)
	}
	return nil
}

func (w *Writer) objectKey(key partition) string {
	prefix := strings.TrimSuffix(w.cfg.Prefix, "/")
	filename := fmt.Sprintf("prices-%d.parquet", w.now().UnixNano())
	return path.Join(prefix, "program="+key.program, "date="+key.date, filename)
}
