package simpleswap

import (
	"errors"

	"lukechampine.com/uint128"
)

var (
	ErrCalculation        = errors.New("multiplication overflow in calculation error")
	ErrInsufficientTokenA = errors.New("insufficient amount of token A in the liquidity pool")
	ErrInsufficientTokenB = errors.New("insufficient amount of token B in the liquidity pool")
)

// ConstantProduct returns reserveA * reserveB in 128 bits
func ConstantProduct(reserveA, reserveB uint64) uint128.Uint128 {
	// two u64 factors always fit in u128
	return uint128.From64(reserveA).Mul64(reserveB)
}

// SwapOutput computes how much of the output side the program transfers for amountIn.
// It reproduces the on-chain arithmetic exactly: out = reserveOut - k / (reserveIn + amountIn),
// with no fee and integer division.
func SwapOutput(direction Direction, reserveA, reserveB, amountIn uint64) (uint64, error) {
	k := ConstantProduct(reserveA, reserveB)

	reserveIn, reserveOut := reserveA, reserveB
	insufficient := ErrInsufficientTokenB
	if direction == BForA {
		reserveIn, reserveOut = reserveB, reserveA
		insufficient = ErrInsufficientTokenA
	}

	denominator := uint128.From64(reserveIn).Add64(amountIn)
	if denominator.IsZero() {
		return 0, ErrCalculation
	}
	remaining := k.Div(denominator)

	out128 := uint128.From64(reserveOut)
	if out128.Cmp(remaining) < 0 {
		return 0, ErrCalculation
	}
	give := out128.Sub(remaining)

	if give.Cmp(out128) > 0 {
		return 0, insufficient
	}
	if give.Hi != 0 {
		return 0, ErrCalculation
	}
	return give.Lo, nil
}
