package router

import (
	"context"
	"fmt"
	"sync"

	"cosmossdk.io/math"
	log "github.com/sirupsen/logrus"
	"simpleswap/pkg"
	"simpleswap/pkg/pool/simpleswap"
)

type SimpleRouter struct {
	Protocols []pkg.Protocol
	Pools     []pkg.Pool
}

func NewSimpleRouter(protocols ...pkg.Protocol) *SimpleRouter {
	return &SimpleRouter{
		Protocols: protocols,
		Pools:     []pkg.Pool{},
	}
}

func (r *SimpleRouter) QueryAllPools(ctx context.Context, baseMint, quoteMint string) error {
	var allPools []pkg.Pool

	for _, proto := range r.Protocols {
		log.Infof("Fetching pools from protocol: %v", proto.ProtocolName())
		pools, err := proto.FetchPoolsByPair(ctx, baseMint, quoteMint)
		if err != nil {
			log.Warnf("error fetching pools from protocol %v: %v", proto.ProtocolName(), err)
			continue
		}
		allPools = append(allPools, pools...)
	}

	r.Pools = allPools
	if len(allPools) == 0 {
		return fmt.Errorf("no pools found for %s/%s", baseMint, quoteMint)
	}
	return nil
}

func (r *SimpleRouter) GetBestPool(ctx context.Context, reader pkg.AccountReader, tokenIn string, amountIn math.Int) (pkg.Pool, math.Int, error) {
	return r.GetBestPoolWithFilter(ctx, reader, tokenIn, amountIn, nil, nil, 0)
}

// GetBestPoolWithFilter quotes every pool that passes the filters concurrently and returns the one
// with the largest output. minLiquidity is in raw units of the output token.
func (r *SimpleRouter) GetBestPoolWithFilter(ctx context.Context, reader pkg.AccountReader, tokenIn string, amountIn math.Int, dexes, excludeDexes []string, minLiquidity uint64) (pkg.Pool, math.Int, error) {
	filteredPools := r.filterPools(dexes, excludeDexes, minLiquidity, tokenIn)

	if len(filteredPools) == 0 {
		return nil, math.ZeroInt(), fmt.Errorf("no pools found after filtering")
	}

	type quoteResult struct {
		pool      pkg.Pool
		outAmount math.Int
		err       error
	}

	resultChan := make(chan quoteResult, len(filteredPools))
	var wg sync.WaitGroup

	for _, pool := range filteredPools {
		wg.Add(1)
		go func(p pkg.Pool) {
			defer wg.Done()
			outAmount, err := p.Quote(ctx, reader, tokenIn, amountIn)
			resultChan <- quoteResult{
				pool:      p,
				outAmount: outAmount,
				err:       err,
			}
		}(pool)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var best pkg.Pool
	maxOut := math.NewInt(0)

	for result := range resultChan {
		if result.err != nil {
			log.Warnf("error quoting pool %s: %v", result.pool.GetID(), result.err)
			continue
		}
		if result.outAmount.GT(maxOut) {
			maxOut = result.outAmount
			best = result.pool
		}
	}

	if best == nil {
		return nil, math.ZeroInt(), fmt.Errorf("no route found")
	}
	return best, maxOut, nil
}

// getPoolLiquidity returns the cached reserve on the output side of tokenIn
func getPoolLiquidity(pool pkg.Pool, tokenIn string) (uint64, bool) {
	switch p := pool.(type) {
	case *simpleswap.SimpleSwapPool:
		reserveA, reserveB := p.Reserves()
		if p.MintA.String() == tokenIn {
			return reserveB, true
		}
		return reserveA, true
	default:
		return 0, false
	}
}

// filterPools filters the pools based on dexes, excludeDexes, and minimum output-side liquidity
func (r *SimpleRouter) filterPools(dexes, excludeDexes []string, minLiquidity uint64, tokenIn string) []pkg.Pool {
	if len(dexes) == 0 && len(excludeDexes) == 0 && minLiquidity == 0 {
		return r.Pools
	}

	var filtered []pkg.Pool

	for _, pool := range r.Pools {
		protocolName := string(pool.ProtocolName())

		if len(dexes) > 0 && !contains(dexes, protocolName) {
			continue
		}
		if contains(excludeDexes, protocolName) {
			continue
		}

		if minLiquidity > 0 {
			// pools whose reserves cannot be read without a round trip are kept
			if liquidity, ok := getPoolLiquidity(pool, tokenIn); ok && liquidity < minLiquidity {
				log.Infof("Filtering out pool %s with low liquidity: %d < %d", pool.GetID(), liquidity, minLiquidity)
				continue
			}
		}

		filtered = append(filtered, pool)
	}

	return filtered
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
