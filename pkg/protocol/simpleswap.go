package protocol

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"
	"simpleswap/pkg"
	"simpleswap/pkg/pool/simpleswap"
)

// SimpleSwapProtocol discovers the pools of one simple token swap deployment
type SimpleSwapProtocol struct {
	Reader    pkg.AccountReader
	ProgramID solana.PublicKey
}

func NewSimpleSwap(reader pkg.AccountReader, programID solana.PublicKey) *SimpleSwapProtocol {
	return &SimpleSwapProtocol{
		Reader:    reader,
		ProgramID: programID,
	}
}

func (p *SimpleSwapProtocol) ProtocolName() pkg.ProtocolName {
	return pkg.ProtocolNameSimpleSwap
}

// FetchPoolsByPair tries both mint orderings; an ordering is a pool when both of its vault token
// accounts exist.
func (p *SimpleSwapProtocol) FetchPoolsByPair(ctx context.Context, baseMint string, quoteMint string) ([]pkg.Pool, error) {
	baseMintPubkey, err := solana.PublicKeyFromBase58(baseMint)
	if err != nil {
		return nil, fmt.Errorf("invalid base mint address: %w", err)
	}
	quoteMintPubkey, err := solana.PublicKeyFromBase58(quoteMint)
	if err != nil {
		return nil, fmt.Errorf("invalid quote mint address: %w", err)
	}
	if baseMintPubkey.Equals(quoteMintPubkey) {
		return nil, fmt.Errorf("base and quote mint are the same")
	}

	candidates := make([]*simpleswap.SimpleSwapPool, 0, 2)
	for _, pair := range [][2]solana.PublicKey{
		{baseMintPubkey, quoteMintPubkey},
		{quoteMintPubkey, baseMintPubkey},
	} {
		pool, err := simpleswap.NewSimpleSwapPool(p.ProgramID, pair[0], pair[1])
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, pool)
	}

	res := make([]pkg.Pool, 0, len(candidates))
	for _, pool := range candidates {
		if err := pool.RefreshReserves(ctx, p.Reader); err != nil {
			log.Debugf("No simple swap pool for mint A %s / mint B %s: %v", pool.MintA, pool.MintB, err)
			continue
		}
		res = append(res, pool)
	}
	return res, nil
}

// FetchPoolByPair returns the pool with the given mint A and mint B, reading its reserves
func (p *SimpleSwapProtocol) FetchPoolByPair(ctx context.Context, mintA, mintB solana.PublicKey) (*simpleswap.SimpleSwapPool, error) {
	pool, err := simpleswap.NewSimpleSwapPool(p.ProgramID, mintA, mintB)
	if err != nil {
		return nil, err
	}
	if err := pool.RefreshReserves(ctx, p.Reader); err != nil {
		return nil, fmt.Errorf("failed to load pool %s: %w", pool.GetID(), err)
	}
	return pool, nil
}
