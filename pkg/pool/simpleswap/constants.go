package simpleswap

import "github.com/gagliardetto/solana-go"

// Simple Token Swap program ID (devnet deployment)
const (
	SIMPLE_TOKEN_SWAP_PROGRAM_ID = "3UVpaimGuoKnaJ7pVxKmVKFGVdeZsE4ygV6azibrqgdT"
)

var (
	SimpleTokenSwapProgramID = solana.MustPublicKeyFromBase58(SIMPLE_TOKEN_SWAP_PROGRAM_ID)
)

// PDA seeds
var (
	SeedVaultTokenA = []byte("vaultTokenA")
	SeedVaultTokenB = []byte("vaultTokenB")
	SeedVaultAuthA  = []byte("vault_auth_a")
	SeedVaultAuthB  = []byte("vault_auth_b")
)

// Instruction names as declared by the program
const (
	InstructionInitializeVaultTokenA = "initialize_vault_token_a"
	InstructionInitializeVaultTokenB = "initialize_vault_token_b"
	InstructionDepositTokenA         = "token_a_deposit_in_pda_vault"
	InstructionDepositTokenB         = "token_b_deposit_in_pda_vault"
	InstructionSwapAForB             = "swap_a_for_b"
	InstructionSwapBForA             = "swap_b_for_a"
)

// Side selects one half of the pool
type Side uint8

const (
	SideA Side = iota
	SideB
)

func (s Side) String() string {
	switch s {
	case SideA:
		return "A"
	case SideB:
		return "B"
	default:
		return "unknown"
	}
}

// Direction is the swap direction
type Direction uint8

const (
	AForB Direction = iota
	BForA
)

func (d Direction) String() string {
	if d == AForB {
		return "A->B"
	}
	return "B->A"
}
