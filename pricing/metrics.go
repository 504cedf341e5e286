package pricing

import (
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/observability"
)

// DefaultMaxPriceGauges caps how many pools get a per-pool price series.
const DefaultMaxPriceGauges = 1000

// Metrics counts priced and unpriced pools per program.
type Metrics struct {
	prices       *prometheus.CounterVec
	unpriced     *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	priceSOL     *prometheus.GaugeVec

	mu         sync.Mutex
	gauged     map[solana.PublicKey]struct{}
	maxGauges  int
	gaugesFull prometheus.Counter
}

// NewMetrics registers calculator metrics on reg; nil uses a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Metrics{
		prices: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: observability.Namespace,
			Name:      observability.MetricPricerPricesTotal,
			Help:      "Pools priced successfully.",
		}, []string{"program"}),
		unpriced: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: observability.Namespace,
			Name:      observability.MetricPricerUnpricedTotal,
			Help:      "Pools that could not be priced, by reason.",
		}, []string{"program", "reason"}),
		decodeErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: observability.Namespace,
			Name:      observability.MetricPricerDecodeErrorsTotal,
			Help:      "Pool account decode failures.",
		}, []string{"program"}),
		priceSOL: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: observability.Namespace,
			Name:      observability.MetricPricerPriceSOL,
			Help:      "Latest SOL price per whole token, by pool.",
		}, []string{"pool"}),
		gaugesFull: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: observability.Namespace,
			Name:      observability.MetricPricerPriceGaugesDropped,
			Help:      "Prices not exported per pool because the gauge limit was reached.",
		}),
		gauged:    make(map[solana.PublicKey]struct{}),
		maxGauges: DefaultMaxPriceGauges,
	}
}

func (m *Metrics) recordPrice(kind common.ProgramKind, pool solana.PublicKey, price float64) {
	if m == nil {
		return
	}
	m.prices.WithLabelValues(kind.String()).Inc()
	if !m.admitGauge(pool) {
		m.gaugesFull.Inc()
		return
	}
	m.priceSOL.WithLabelValues(pool.String()).Set(price)
}

// admitGauge reports whether pool may have a price series. The first
// maxGauges pools seen keep theirs.
func (m *Metrics) admitGauge(pool solana.PublicKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.gauged[pool]; ok {
		return true
	}
	if len(m.gauged) >= m.maxGauges {
		return false
	}
	m.gauged[pool] = struct{}{}
	return true
}

func (m *Metrics) recordFailure(kind common.ProgramKind, err error) {
	if m == nil {
		return
	}
	var decodeErr *common.DecodeError
	if errors.As(err, &decodeErr) {
		m.decodeErrors.WithLabelValues(kind.String()).Inc()
	}
	m.unpriced.WithLabelValues(kind.String(), FailureReason(err)).Inc()
}

// FailureReason maps a pricing error to a low-cardinality label.
func FailureReason(err error) string {
	var decodeErr *common.DecodeError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, common.ErrMissingAccount):
		return "missing_account"
	case errors.Is(err, common.ErrUnsupportedProgram):
		return "unsupported_program"
	case errors.Is(err, common.ErrWrongOwner):
		return "wrong_owner"
	case errors.Is(err, common.ErrMissingVault):
		return "missing_vault"
	case errors.Is(err, common.ErrPoolDisabled):
		return "pool_disabled"
	case errors.Is(err, common.ErrNotNativePair):
		return "not_native_pair"
	case errors.Is(err, common.ErrMintMismatch):
		return "mint_mismatch"
	case errors.Is(err, common.ErrZeroReserve):
		return "zero_reserve"
	case errors.Is(err, common.ErrUnknownDecimals):
		return "unknown_decimals"
	case errors.Is(err, common.ErrArithmeticOverflow):
		return "overflow"
	case errors.Is(err, ErrInvalidPrice):
		return "invalid_price"
	case errors.As(err, &decodeErr):
		return "decode_error"
	default:
		return "other"
	}
}
