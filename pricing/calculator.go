// Package pricing turns decoded pool accounts into SOL-denominated spot prices.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rexbrahh/lp-pricer/decoder/common"
	"github.com/rexbrahh/lp-pricer/decoder/meteora"
	"github.com/rexbrahh/lp-pricer/decoder/pumpfun"
)

// ErrInvalidPrice is returned when the computed price is non-finite or not positive.
var ErrInvalidPrice = errors.New("invalid price")

// tickDivergenceLimit is the relative gap between sqrt-price and tick prices above
// which a concentrated pool is logged.
const tickDivergenceLimit = 0.01

// ReserveSource tells callers where reserve figures came from.
type ReserveSource string

const (
	SourceVaultBalance ReserveSource = "vault_balance"
	SourcePoolState    ReserveSource = "pool_state"
	SourceImplied      ReserveSource = "implied"
)

// PriceResult is the SOL price of one whole unit of the pool's non-SOL token.
type PriceResult struct {
	PriceSOL      float64            `json:"price_sol"`
	SOLReserves   float64            `json:"sol_reserves"`
	TokenReserves float64            `json:"token_reserves"`
	Source        ReserveSource      `json:"source"`
	Pool          solana.PublicKey   `json:"pool"`
	TokenMint     solana.PublicKey   `json:"token_mint"`
	ProgramKind   common.ProgramKind `json:"program_kind"`
	Slot          uint64             `json:"slot"`
	FeeRate       *uint32            `json:"fee_rate,omitempty"`
	ComputedAt    time.Time          `json:"computed_at"`
}

// Calculator prices pools from caller-supplied account snapshots. It holds no
// mutable state and is safe for concurrent use.
type Calculator struct {
	cfg     *Config
	routes  map[common.ProgramKind]route
	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

// Option customises a Calculator.
type Option func(*Calculator)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Calculator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Calculator) {
		c.metrics = m
	}
}

// WithClock overrides the timestamp source for ComputedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCalculator builds a calculator over cfg; a nil cfg uses DefaultConfig.
func NewCalculator(cfg *Config, opts ...Option) *Calculator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &Calculator{
		cfg:    cfg,
		routes: defaultRoutes(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the calculator's program table.
func (c *Calculator) Config() *Config {
	return c.cfg
}

// CalculatePrice returns the SOL price of the non-SOL side of pool, or nil when the
// pool cannot be priced from accounts. Failures are logged at debug and counted.
func (c *Calculator) CalculatePrice(
	accounts common.AccountSet,
	kind common.ProgramKind,
	baseMint, quoteMint, pool solana.PublicKey,
) *PriceResult {
	result, err := c.Price(accounts, kind, baseMint, quoteMint, pool)
	if err != nil {
		c.metrics.recordFailure(kind, err)
		c.logger.Debug("pool unpriced",
			zap.Stringer("pool", pool),
			zap.String("kind", kind.String()),
			zap.String("reason", FailureReason(err)),
			zap.Error(err),
		)
		return nil
	}
	c.metrics.recordPrice(kind, pool, result.PriceSOL)
	return result
}

// Price is CalculatePrice with the failure returned as a typed error.
func (c *Calculator) Price(
	accounts common.AccountSet,
	kind common.ProgramKind,
	baseMint, quoteMint, pool solana.PublicKey,
) (*PriceResult, error) {
	info, err := c.ResolvePool(accounts, kind, pool)
	if err != nil {
		return nil, err
	}
	if info.Status == common.StatusDisabled {
		return nil, fmt.Errorf("%w: %s", common.ErrPoolDisabled, pool)
	}
	if baseMint.Equals(quoteMint) {
		return nil, fmt.Errorf("%w: base and quote are both %s", common.ErrMintMismatch, baseMint)
	}

	if err := c.fillCurveMint(info, pool, baseMint, quoteMint); err != nil {
		return nil, err
	}
	if !common.MatchesRequest(info.TokenMint0, info.TokenMint1, baseMint, quoteMint) {
		return nil, fmt.Errorf("%w: pool %s/%s requested %s/%s",
			common.ErrMintMismatch, info.TokenMint0, info.TokenMint1, baseMint, quoteMint)
	}
	pair, err := common.ResolvePair(info.TokenMint0, info.TokenMint1, c.cfg.NativeMint())
	if err != nil {
		return nil, err
	}

	var q quote
	switch model := c.routes[kind].model; model {
	case ModelConstantProduct:
		q, err = c.priceConstantProduct(accounts, info, pair)
	case ModelBondingCurve:
		q, err = priceFromReserves(info, pair, info.Reserve0, info.Reserve1, SourcePoolState)
	case ModelVaultShares:
		q, err = c.priceVaultShares(accounts, info, pair)
	case ModelConcentrated:
		q, err = c.priceConcentrated(info, pair)
	case ModelBins:
		q, err = c.priceBins(accounts, info, pair)
	default:
		err = fmt.Errorf("%w: no pricing model %s", common.ErrUnsupportedProgram, model)
	}
	if err != nil {
		return nil, err
	}

	if math.IsNaN(q.price) || math.IsInf(q.price, 0) || q.price <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrice, q.price)
	}

	snap, _ := accounts.Lookup(pool)
	return &PriceResult{
		PriceSOL:      q.price,
		SOLReserves:   q.solReserves,
		TokenReserves: q.tokenReserves,
		Source:        q.source,
		Pool:          pool,
		TokenMint:     pair.BaseMint,
		ProgramKind:   kind,
		Slot:          snap.Slot,
		FeeRate:       info.FeeRate,
		ComputedAt:    c.now().UTC(),
	}, nil
}

// Decode checks the pool account's owner and decodes it without touching any
// auxiliary account. Use it to learn which accounts pricing will need.
func (c *Calculator) Decode(accounts common.AccountSet, kind common.ProgramKind, pool solana.PublicKey) (*common.PoolInfo, error) {
	snap, ok := accounts.Lookup(pool)
	if !ok {
		return nil, fmt.Errorf("%w: pool %s", common.ErrMissingAccount, pool)
	}
	r, ok := c.routes[kind]
	if !ok || kind == common.Unknown {
		return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedProgram, kind)
	}
	if owner := c.cfg.Classify(snap.Owner); owner != kind {
		return nil, fmt.Errorf("%w: pool %s owned by %s (%s), requested %s",
			common.ErrWrongOwner, pool, snap.Owner, owner, kind)
	}

	info, err := r.decode(snap.Data)
	if err != nil {
		return nil, err
	}
	info.PoolAddress = pool
	info.ProgramID = snap.Owner
	return info, nil
}

// ResolvePool decodes the pool account and fills in decimals and fee rate from the
// auxiliary accounts and the mint metadata provider.
func (c *Calculator) ResolvePool(accounts common.AccountSet, kind common.ProgramKind, pool solana.PublicKey) (*common.PoolInfo, error) {
	info, err := c.Decode(accounts, kind, pool)
	if err != nil {
		return nil, err
	}
	r := c.routes[kind]

	if !info.DecimalsKnown {
		if err := c.resolveDecimals(accounts, info); err != nil {
			return nil, err
		}
	}
	if r.feeConfig != nil && !info.AmmConfig.IsZero() {
		if cfgSnap, ok := accounts.Lookup(info.AmmConfig); ok {
			rate, err := r.feeConfig(cfgSnap.Data)
			if err != nil {
				c.logger.Debug("amm config unreadable",
					zap.Stringer("pool", pool),
					zap.Stringer("config", info.AmmConfig),
					zap.Error(err),
				)
			} else {
				info.FeeRate = common.FeeRatePPM(rate)
			}
		}
	}
	return info, nil
}

// Dependencies lists the auxiliary accounts pricing info needs, including second-hop
// accounts only discoverable once the first hop is in accounts.
func (c *Calculator) Dependencies(info *common.PoolInfo, accounts common.AccountSet) []solana.PublicKey {
	deps := info.Dependencies()
	if info.VaultShares != nil {
		for _, vaultKey := range info.Vaults() {
			snap, ok := accounts.Lookup(vaultKey)
			if !ok {
				continue
			}
			if vault, err := meteora.DecodeVault(snap); err == nil && !vault.LpMint.IsZero() {
				deps = append(deps, vault.LpMint)
			}
		}
	}
	return dedupe(deps)
}

func (c *Calculator) resolveDecimals(accounts common.AccountSet, info *common.PoolInfo) error {
	d0, err := c.mintDecimals(accounts, info.TokenMint0)
	if err != nil {
		return err
	}
	d1, err := c.mintDecimals(accounts, info.TokenMint1)
	if err != nil {
		return err
	}
	info.Decimals0, info.Decimals1, info.DecimalsKnown = d0, d1, true
	return nil
}

func (c *Calculator) mintDecimals(accounts common.AccountSet, mint solana.PublicKey) (uint8, error) {
	if mint.Equals(c.cfg.NativeMint()) {
		return common.NativeDecimals, nil
	}
	if snap, ok := accounts.Lookup(mint); ok {
		if d, err := common.MintDecimals(snap); err == nil {
			return d, nil
		}
	}
	d, err := c.cfg.Mints().GetDecimals(mint)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", common.ErrUnknownDecimals, mint)
	}
	return d, nil
}

// fillCurveMint gives a bonding curve's unrecorded token side the requested
// non-native mint, provided the pool is the curve that mint derives to.
func (c *Calculator) fillCurveMint(info *common.PoolInfo, pool, baseMint, quoteMint solana.PublicKey) error {
	if !info.TokenMint0.IsZero() && !info.TokenMint1.IsZero() {
		return nil
	}
	native := c.cfg.NativeMint()
	var token solana.PublicKey
	switch {
	case quoteMint.Equals(native):
		token = baseMint
	case baseMint.Equals(native):
		token = quoteMint
	default:
		return nil
	}

	program, ok := c.cfg.ProgramID(info.ProgramKind)
	if !ok {
		program = info.ProgramID
	}
	curve, err := pumpfun.BondingCurveAddress(token, program)
	if err != nil {
		return err
	}
	if !curve.Equals(pool) {
		return fmt.Errorf("%w: curve for %s is %s, not %s", common.ErrMintMismatch, token, curve, pool)
	}

	if info.TokenMint0.IsZero() {
		info.TokenMint0 = token
	}
	if info.TokenMint1.IsZero() {
		info.TokenMint1 = token
	}
	return nil
}

type quote struct {
	price         float64
	solReserves   float64
	tokenReserves float64
	source        ReserveSource
}

func (c *Calculator) priceConstantProduct(accounts common.AccountSet, info *common.PoolInfo, pair *common.CanonicalPair) (quote, error) {
	var reserves [2]uint64
	mints := info.Mints()
	pending := [2]uint64{info.PendingFees0, info.PendingFees1}
	for i, vaultKey := range info.Vaults() {
		snap, ok := accounts.Lookup(vaultKey)
		if !ok {
			return quote{}, fmt.Errorf("%w: %s", common.ErrMissingVault, vaultKey)
		}
		amount, err := common.TokenAccountAmount(snap)
		if err != nil {
			return quote{}, err
		}
		mint, err := common.TokenAccountMint(snap)
		if err != nil {
			return quote{}, err
		}
		if !mint.Equals(mints[i]) {
			return quote{}, fmt.Errorf("%w: vault %s holds %s, pool side is %s",
				common.ErrMintMismatch, vaultKey, mint, mints[i])
		}
		reserves[i] = saturatingSub(amount, pending[i])
	}
	return priceFromReserves(info, pair, reserves[0], reserves[1], SourceVaultBalance)
}

func (c *Calculator) priceVaultShares(accounts common.AccountSet, info *common.PoolInfo, pair *common.CanonicalPair) (quote, error) {
	lpAccounts := [2]solana.PublicKey{info.VaultShares.LpAccount0, info.VaultShares.LpAccount1}
	var reserves [2]uint64
	for i, vaultKey := range info.Vaults() {
		vaultSnap, _ := accounts.Lookup(vaultKey)
		vault, err := meteora.DecodeVault(vaultSnap)
		if err != nil {
			return quote{}, err
		}
		lpSnap, ok := accounts.Lookup(lpAccounts[i])
		if !ok {
			return quote{}, fmt.Errorf("%w: vault lp account %s", common.ErrMissingVault, lpAccounts[i])
		}
		lpBalance, err := common.TokenAccountAmount(lpSnap)
		if err != nil {
			return quote{}, err
		}
		mintSnap, ok := accounts.Lookup(vault.LpMint)
		if !ok {
			return quote{}, fmt.Errorf("%w: vault lp mint %s", common.ErrMissingVault, vault.LpMint)
		}
		supply, err := common.MintSupply(mintSnap)
		if err != nil {
			return quote{}, err
		}
		if reserves[i], err = vault.ShareAmount(lpBalance, supply); err != nil {
			return quote{}, err
		}
	}
	return priceFromReserves(info, pair, reserves[0], reserves[1], SourceVaultBalance)
}

func priceFromReserves(info *common.PoolInfo, pair *common.CanonicalPair, reserve0, reserve1 uint64, source ReserveSource) (quote, error) {
	reserves := [2]uint64{reserve0, reserve1}
	decimals := [2]uint8{info.Decimals0, info.Decimals1}
	b, s := pair.BaseIndex, pair.QuoteIndex()

	price, err := common.ReservesToPrice(reserves[b], reserves[s], decimals[b], decimals[s])
	if err != nil {
		return quote{}, err
	}
	return quote{
		price:         price,
		solReserves:   common.ScaleAmount(reserves[s], decimals[s]),
		tokenReserves: common.ScaleAmount(reserves[b], decimals[b]),
		source:        source,
	}, nil
}

func (c *Calculator) priceConcentrated(info *common.PoolInfo, pair *common.CanonicalPair) (quote, error) {
	cl := info.Concentrated
	if cl == nil {
		return quote{}, fmt.Errorf("%w: missing concentrated state", common.ErrInvalidLayout)
	}
	if cl.Liquidity.IsZero() || cl.SqrtPriceX64.IsZero() {
		return quote{}, fmt.Errorf("%w: no active liquidity", common.ErrZeroReserve)
	}

	raw := common.SqrtPriceX64ToPrice(cl.SqrtPriceX64)
	if tickRaw := common.TickToPrice(cl.CurrentTick); math.Abs(raw-tickRaw)/raw > tickDivergenceLimit {
		c.logger.Debug("sqrt price diverges from tick",
			zap.Stringer("pool", info.PoolAddress),
			zap.Float64("sqrt_price", raw),
			zap.Float64("tick_price", tickRaw),
			zap.Int32("tick", cl.CurrentTick),
		)
	}

	x, y := common.ImpliedReserves(cl.Liquidity, cl.SqrtPriceX64)
	reserves := [2]float64{
		x / math.Pow10(int(info.Decimals0)),
		y / math.Pow10(int(info.Decimals1)),
	}
	return orient(common.AdjustForDecimals(raw, info.Decimals0, info.Decimals1), pair,
		reserves[pair.QuoteIndex()], reserves[pair.BaseIndex], SourceImplied), nil
}

func (c *Calculator) priceBins(accounts common.AccountSet, info *common.PoolInfo, pair *common.CanonicalPair) (quote, error) {
	b := info.Bins
	if b == nil {
		return quote{}, fmt.Errorf("%w: missing bin state", common.ErrInvalidLayout)
	}
	raw := common.BinIDToPrice(b.ActiveBinID, b.BinStep)
	price := common.AdjustForDecimals(raw, info.Decimals0, info.Decimals1)

	snap0, ok0 := accounts.Lookup(info.TokenVault0)
	snap1, ok1 := accounts.Lookup(info.TokenVault1)
	if !ok0 || !ok1 {
		return orient(price, pair, 0, 0, SourceImplied), nil
	}

	var amounts [2]uint64
	for i, snap := range []*common.AccountSnapshot{snap0, snap1} {
		amount, err := common.TokenAccountAmount(snap)
		if err != nil {
			return quote{}, err
		}
		amounts[i] = amount
	}
	decimals := [2]uint8{info.Decimals0, info.Decimals1}
	s, t := pair.QuoteIndex(), pair.BaseIndex
	if amounts[s] == 0 {
		return quote{}, fmt.Errorf("%w: SOL reserve of %s", common.ErrZeroReserve, info.PoolAddress)
	}
	return orient(price, pair,
		common.ScaleAmount(amounts[s], decimals[s]),
		common.ScaleAmount(amounts[t], decimals[t]),
		SourceVaultBalance), nil
}

// orient converts a token1-per-token0 price into SOL per base token.
func orient(price1Per0 float64, pair *common.CanonicalPair, solReserves, tokenReserves float64, source ReserveSource) quote {
	price := price1Per0
	if pair.Inverted {
		price = 1 / price1Per0
	}
	return quote{
		price:         price,
		solReserves:   solReserves,
		tokenReserves: tokenReserves,
		source:        source,
	}
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

func dedupe(keys []solana.PublicKey) []solana.PublicKey {
	seen := make(map[solana.PublicKey]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if k.IsZero() {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
