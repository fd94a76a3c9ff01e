package router

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	"simpleswap/pkg"
)

const maxSlippageBps = 10_000

type QuoteResponse struct {
	InputMint            string      `json:"inputMint"`
	OutputMint           string      `json:"outputMint"`
	InAmount             string      `json:"inAmount"`
	OutAmount            string      `json:"outAmount"`
	RoutePlan            []RoutePlan `json:"routePlan"`
	SlippageBps          int         `json:"slippageBps"`
	OtherAmountThreshold string      `json:"otherAmountThreshold"`
}

type RoutePlan struct {
	Protocol   string `json:"protocol"`
	PoolID     string `json:"poolId"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
}

// MinAmountOut applies slippageBps to amountOut, rounding down
func MinAmountOut(amountOut math.Int, slippageBps int) (math.Int, error) {
	if slippageBps < 0 || slippageBps > maxSlippageBps {
		return math.ZeroInt(), fmt.Errorf("slippage must be between 0 and %d bps, got %d", maxSlippageBps, slippageBps)
	}
	return amountOut.Mul(math.NewInt(int64(maxSlippageBps - slippageBps))).Quo(math.NewInt(maxSlippageBps)), nil
}

// Quote picks the best loaded pool for inputMint and describes the route
func (r *SimpleRouter) Quote(ctx context.Context, reader pkg.AccountReader, inputMint string, amountIn math.Int, slippageBps int) (*QuoteResponse, error) {
	if amountIn.IsNil() || !amountIn.IsPositive() {
		return nil, fmt.Errorf("amount must be a positive integer")
	}

	bestPool, amountOut, err := r.GetBestPool(ctx, reader, inputMint, amountIn)
	if err != nil {
		return nil, err
	}

	minAmountOut, err := MinAmountOut(amountOut, slippageBps)
	if err != nil {
		return nil, err
	}

	baseMint, quoteMint := bestPool.GetTokens()
	outputMint := quoteMint
	if inputMint == quoteMint {
		outputMint = baseMint
	}

	return &QuoteResponse{
		InputMint:            inputMint,
		OutputMint:           outputMint,
		InAmount:             amountIn.String(),
		OutAmount:            amountOut.String(),
		SlippageBps:          slippageBps,
		OtherAmountThreshold: minAmountOut.String(),
		RoutePlan: []RoutePlan{
			{
				Protocol:   string(bestPool.ProtocolName()),
				PoolID:     bestPool.GetID(),
				InputMint:  inputMint,
				OutputMint: outputMint,
				InAmount:   amountIn.String(),
				OutAmount:  amountOut.String(),
			},
		},
	}, nil
}
