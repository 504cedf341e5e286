package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/rexbrahh/lp-pricer/observability"
	sinkparquet "github.com/rexbrahh/lp-pricer/sinks/parquet"
)

type summary struct {
	TotalRows      int      `json:"total_rows"`
	NonPositive    int      `json:"non_positive_price"`
	EmptyPool      int      `json:"empty_pool"`
	MissingFee     int      `json:"missing_fee"`
	MissingSlot    int      `json:"missing_slot"`
	MinSlot        uint64   `json:"min_slot"`
	MaxSlot        uint64   `json:"max_slot"`
	DistinctPools  int      `json:"distinct_pools"`
	DistinctTokens int      `json:"distinct_tokens"`
	UniquePrograms []string `json:"unique_programs"`
	UniqueSources  []string `json:"unique_sources"`

	pools, tokens     map[string]struct{}
	programs, sources map[string]struct{}
}

func newSummary() *summary {
	return &summary{
		pools:    make(map[string]struct{}),
		tokens:   make(map[string]struct{}),
		programs: make(map[string]struct{}),
		sources:  make(map[string]struct{}),
	}
}

func main() {
	pattern := flag.String("pattern", "", "glob pattern selecting parquet files to inspect")
	flag.Parse()

	logger, err := observability.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("parquetinspect")

	if *pattern == "" {
		logger.Fatal("pattern is required")
	}

	files, err := filepath.Glob(*pattern)
	if err != nil {
		logger.Fatal("glob parquet files", zap.Error(err))
	}
	if len(files) == 0 {
		logger.Fatal("no parquet files match pattern", zap.String("pattern", *pattern))
	}

	sum := newSummary()
	for _, path := range files {
		if err := inspectFile(path, sum); err != nil {
			logger.Fatal("inspect file", zap.String("path", path), zap.Error(err))
		}
	}
	sum.finish()

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(sum); err != nil {
		logger.Fatal("encode summary", zap.Error(err))
	}
}

func inspectFile(path string, sum *summary) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewGenericReader[sinkparquet.PriceRow](file)
	defer reader.Close()

	rows := make([]sinkparquet.PriceRow, 128)
	for {
		n, err := reader.Read(rows)
		for i := 0; i < n; i++ {
			sum.add(&rows[i])
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read parquet rows: %w", err)
		}
	}
}

func (s *summary) add(row *sinkparquet.PriceRow) {
	s.TotalRows++

	if row.PriceSOL <= 0 {
		s.NonPositive++
	}
	if row.Pool == "" {
		s.EmptyPool++
	} else {
		s.pools[row.Pool] = struct{}{}
	}
	s.tokens[row.TokenMint] = struct{}{}
	if row.FeePPM == nil {
		s.MissingFee++
	}
	if row.Slot == 0 {
		s.MissingSlot++
	} else {
		if s.MinSlot == 0 || row.Slot < s.MinSlot {
			s.MinSlot = row.Slot
		}
		if row.Slot > s.MaxSlot {
			s.MaxSlot = row.Slot
		}
	}
	s.programs[row.Program] = struct{}{}
	s.sources[row.Source] = struct{}{}
}

func (s *summary) finish() {
	s.DistinctPools = len(s.pools)
	s.DistinctTokens = len(s.tokens)
	s.UniquePrograms = toSortedSlice(s.programs)
	s.UniqueSources = toSortedSlice(s.sources)
}

func toSortedSlice(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for value := range set {
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}
