package simpleswap

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// PDAResult is a derived address together with its bump seed
type PDAResult struct {
	Address solana.PublicKey
	Bump    uint8
}

// Vaults groups every program-owned account of one mint pair
type Vaults struct {
	TokenA PDAResult
	TokenB PDAResult
	AuthA  PDAResult
	AuthB  PDAResult
}

func vaultTokenSeed(side Side) ([]byte, error) {
	switch side {
	case SideA:
		return SeedVaultTokenA, nil
	case SideB:
		return SeedVaultTokenB, nil
	}
	return nil, fmt.Errorf("invalid side: %d", side)
}

func vaultAuthSeed(side Side) ([]byte, error) {
	switch side {
	case SideA:
		return SeedVaultAuthA, nil
	case SideB:
		return SeedVaultAuthB, nil
	}
	return nil, fmt.Errorf("invalid side: %d", side)
}

// DeriveVaultTokenAccount derives the vault token account holding one side's liquidity
func DeriveVaultTokenAccount(programID solana.PublicKey, side Side, mint solana.PublicKey) (PDAResult, error) {
	seed, err := vaultTokenSeed(side)
	if err != nil {
		return PDAResult{}, err
	}

	address, bump, err := solana.FindProgramAddress([][]byte{seed, mint[:]}, programID)
	if err != nil {
		return PDAResult{}, fmt.Errorf("failed to find vault token %s PDA: %w", side, err)
	}
	return PDAResult{Address: address, Bump: bump}, nil
}

// DeriveVaultAuthority derives the PDA that owns one side's vault
func DeriveVaultAuthority(programID solana.PublicKey, side Side, mint solana.PublicKey) (PDAResult, error) {
	seed, err := vaultAuthSeed(side)
	if err != nil {
		return PDAResult{}, err
	}

	address, bump, err := solana.FindProgramAddress([][]byte{seed, mint[:]}, programID)
	if err != nil {
		return PDAResult{}, fmt.Errorf("failed to find vault authority %s PDA: %w", side, err)
	}
	return PDAResult{Address: address, Bump: bump}, nil
}

// DeriveVaults derives the four program accounts of the (mintA, mintB) pair
func DeriveVaults(programID, mintA, mintB solana.PublicKey) (*Vaults, error) {
	tokenA, err := DeriveVaultTokenAccount(programID, SideA, mintA)
	if err != nil {
		return nil, err
	}
	tokenB, err := DeriveVaultTokenAccount(programID, SideB, mintB)
	if err != nil {
		return nil, err
	}
	authA, err := DeriveVaultAuthority(programID, SideA, mintA)
	if err != nil {
		return nil, err
	}
	authB, err := DeriveVaultAuthority(programID, SideB, mintB)
	if err != nil {
		return nil, err
	}

	return &Vaults{
		TokenA: tokenA,
		TokenB: tokenB,
		AuthA:  authA,
		AuthB:  authB,
	}, nil
}
