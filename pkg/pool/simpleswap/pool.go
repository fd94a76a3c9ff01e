package simpleswap

import (
	"context"
	"fmt"
	"sync"
	"time"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"simpleswap/pkg"
	"simpleswap/pkg/token"
)

// SimpleSwapPool is the (mintA, mintB) pair of one program deployment. It has no state account of
// its own; the pool is identified by its vault A token account.
type SimpleSwapPool struct {
	ProgramID solana.PublicKey
	MintA     solana.PublicKey
	MintB     solana.PublicKey
	Vaults    Vaults

	mu       sync.RWMutex
	reserveA uint64
	reserveB uint64

	// Cache tracking for WebSocket updates
	lastCacheUpdate time.Time
	cacheDataFresh  bool
}

// NewSimpleSwapPool derives the vaults of the pair
func NewSimpleSwapPool(programID, mintA, mintB solana.PublicKey) (*SimpleSwapPool, error) {
	vaults, err := DeriveVaults(programID, mintA, mintB)
	if err != nil {
		return nil, err
	}
	return &SimpleSwapPool{
		ProgramID: programID,
		MintA:     mintA,
		MintB:     mintB,
		Vaults:    *vaults,
	}, nil
}

func (p *SimpleSwapPool) ProtocolName() pkg.ProtocolName {
	return pkg.ProtocolNameSimpleSwap
}

func (p *SimpleSwapPool) GetProgramID() solana.PublicKey {
	return p.ProgramID
}

func (p *SimpleSwapPool) GetID() string {
	return p.Vaults.TokenA.Address.String()
}

func (p *SimpleSwapPool) GetTokens() (string, string) {
	return p.MintA.String(), p.MintB.String()
}

// GetBaseVault returns the vault A token account
func (p *SimpleSwapPool) GetBaseVault() string {
	return p.Vaults.TokenA.Address.String()
}

// GetQuoteVault returns the vault B token account
func (p *SimpleSwapPool) GetQuoteVault() string {
	return p.Vaults.TokenB.Address.String()
}

// Reserves returns the cached vault balances
func (p *SimpleSwapPool) Reserves() (uint64, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reserveA, p.reserveB
}

// SetReserves overrides the cached vault balances
func (p *SimpleSwapPool) SetReserves(reserveA, reserveB uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reserveA = reserveA
	p.reserveB = reserveB
	p.lastCacheUpdate = time.Now()
	p.cacheDataFresh = true
}

// LastUpdate returns when reserves were last refreshed
func (p *SimpleSwapPool) LastUpdate() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastCacheUpdate
}

// RefreshReserves reads both vault balances from chain
func (p *SimpleSwapPool) RefreshReserves(ctx context.Context, reader pkg.AccountReader) error {
	accounts := []solana.PublicKey{p.Vaults.TokenA.Address, p.Vaults.TokenB.Address}
	results, err := reader.GetMultipleAccountsWithOpts(ctx, accounts)
	if err != nil {
		return fmt.Errorf("failed to fetch vault balances: %w", err)
	}
	if len(results.Value) != len(accounts) {
		return fmt.Errorf("expected %d vault accounts, got %d", len(accounts), len(results.Value))
	}

	balances := make([]uint64, len(accounts))
	for i, result := range results.Value {
		if result == nil {
			return fmt.Errorf("vault account %s not found", accounts[i])
		}
		balance, err := token.DecodeAmount(result.Data.GetBinary())
		if err != nil {
			return fmt.Errorf("failed to decode vault %s: %w", accounts[i], err)
		}
		balances[i] = balance
	}

	p.SetReserves(balances[0], balances[1])
	return nil
}

func (p *SimpleSwapPool) direction(inputMint string) (Direction, error) {
	switch inputMint {
	case p.MintA.String():
		return AForB, nil
	case p.MintB.String():
		return BForA, nil
	}
	return 0, fmt.Errorf("mint %s is not part of pool %s", inputMint, p.GetID())
}

// QuoteFromReserves applies the swap formula to the cached reserves
func (p *SimpleSwapPool) QuoteFromReserves(inputMint string, amount cosmath.Int) (cosmath.Int, error) {
	direction, err := p.direction(inputMint)
	if err != nil {
		return cosmath.ZeroInt(), err
	}
	if amount.IsNil() || amount.IsNegative() || !amount.IsUint64() {
		return cosmath.ZeroInt(), fmt.Errorf("amount must be a u64, got %v", amount)
	}
	if amount.IsZero() {
		return cosmath.ZeroInt(), nil
	}

	reserveA, reserveB := p.Reserves()
	out, err := SwapOutput(direction, reserveA, reserveB, amount.Uint64())
	if err != nil {
		return cosmath.ZeroInt(), err
	}
	return cosmath.NewIntFromUint64(out), nil
}

func (p *SimpleSwapPool) Quote(ctx context.Context, reader pkg.AccountReader, inputMint string, amount cosmath.Int) (cosmath.Int, error) {
	// Only fetch from RPC if cache is not fresh (older than 5 seconds or never updated)
	p.mu.RLock()
	stale := !p.cacheDataFresh || time.Since(p.lastCacheUpdate) > 5*time.Second
	p.mu.RUnlock()

	if stale {
		if err := p.RefreshReserves(ctx, reader); err != nil {
			return cosmath.ZeroInt(), err
		}
	}
	return p.QuoteFromReserves(inputMint, amount)
}

// BuildSwapInstructions builds the swap for inputMint. userBaseAccount and userQuoteAccount are the
// user's token accounts for mint A and mint B. The program takes no minimum-out argument, so
// minOutputAmount is enforced here against a fresh quote.
func (p *SimpleSwapPool) BuildSwapInstructions(
	ctx context.Context,
	reader pkg.AccountReader,
	user solana.PublicKey,
	inputMint string,
	inputAmount cosmath.Int,
	minOutputAmount cosmath.Int,
	userBaseAccount solana.PublicKey,
	userQuoteAccount solana.PublicKey,
) ([]solana.Instruction, error) {
	direction, err := p.direction(inputMint)
	if err != nil {
		return nil, err
	}
	if inputAmount.IsNil() {
		return nil, fmt.Errorf("input amount is not set")
	}
	if !inputAmount.IsUint64() {
		return nil, fmt.Errorf("input amount %s does not fit in u64", inputAmount)
	}

	if !minOutputAmount.IsNil() && minOutputAmount.IsPositive() {
		if err := p.RefreshReserves(ctx, reader); err != nil {
			return nil, err
		}
		expected, err := p.QuoteFromReserves(inputMint, inputAmount)
		if err != nil {
			return nil, err
		}
		if expected.LT(minOutputAmount) {
			return nil, fmt.Errorf("expected output %s is below minimum %s", expected, minOutputAmount)
		}
	}

	inst, err := NewSwapInstruction(p.ProgramID, direction, SwapAccounts{
		User:              user,
		UserTokenAccountA: userBaseAccount,
		UserTokenAccountB: userQuoteAccount,
		MintA:             p.MintA,
		MintB:             p.MintB,
	}, inputAmount.Uint64())
	if err != nil {
		return nil, err
	}
	return []solana.Instruction{inst}, nil
}

// UpdateFromAccountData implements the PoolStateUpdater interface
func (p *SimpleSwapPool) UpdateFromAccountData(accountID string, data []byte) error {
	isA := accountID == p.Vaults.TokenA.Address.String()
	isB := accountID == p.Vaults.TokenB.Address.String()
	if !isA && !isB {
		return fmt.Errorf("unknown account ID for pool update: %s", accountID)
	}

	amount, err := token.DecodeAmount(data)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if isA {
		p.reserveA = amount
	} else {
		p.reserveB = amount
	}
	p.lastCacheUpdate = time.Now()
	p.cacheDataFresh = true
	return nil
}
