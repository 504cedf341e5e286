package pricing

import (
	"context"
	"runtime"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"

	"github.com/rexbrahh/lp-pricer/decoder/common"
)

// PoolRequest names one pool to price and the pair it is expected to hold.
type PoolRequest struct {
	Pool      solana.PublicKey
	Kind      common.ProgramKind
	BaseMint  solana.PublicKey
	QuoteMint solana.PublicKey
}

// PriceBatch prices every request concurrently against the same account set. The
// result slice is index-aligned with reqs; unpriceable pools are nil. Only context
// cancellation stops the batch early.
func (c *Calculator) PriceBatch(ctx context.Context, reqs []PoolRequest, accounts common.AccountSet) ([]*PriceResult, error) {
	results := make([]*PriceResult, len(reqs))
	if len(reqs) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, req := range reqs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = c.CalculatePrice(accounts, req.Kind, req.BaseMint, req.QuoteMint, req.Pool)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
