package simpleswap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"simpleswap/pkg/anchor"
)

// ProgramInstruction is an Anchor instruction of the swap program: discriminator followed by
// borsh-encoded u64 arguments.
type ProgramInstruction struct {
	Program                 solana.PublicKey
	Name                    string
	Args                    []uint64
	solana.AccountMetaSlice `bin:"-" borsh_skip:"true"`
}

func (inst *ProgramInstruction) ProgramID() solana.PublicKey {
	return inst.Program
}

func (inst *ProgramInstruction) Accounts() (out []*solana.AccountMeta) {
	return inst.AccountMetaSlice
}

func (inst *ProgramInstruction) Data() ([]byte, error) {
	buf := new(bytes.Buffer)

	if _, err := buf.Write(anchor.InstructionDiscriminator(inst.Name)); err != nil {
		return nil, fmt.Errorf("failed to write discriminator: %w", err)
	}

	enc := bin.NewBorshEncoder(buf)
	for _, arg := range inst.Args {
		if err := enc.WriteUint64(arg, binary.LittleEndian); err != nil {
			return nil, fmt.Errorf("failed to encode argument of %s: %w", inst.Name, err)
		}
	}

	return buf.Bytes(), nil
}

// SwapAccounts are the user-supplied accounts of a swap
type SwapAccounts struct {
	User              solana.PublicKey
	UserTokenAccountA solana.PublicKey
	UserTokenAccountB solana.PublicKey
	MintA             solana.PublicKey
	MintB             solana.PublicKey
}

// NewInitializeVaultInstruction creates the vault token account of one side (init_if_needed on-chain)
func NewInitializeVaultInstruction(programID solana.PublicKey, side Side, payer, mint solana.PublicKey) (*ProgramInstruction, error) {
	vault, err := DeriveVaultTokenAccount(programID, side, mint)
	if err != nil {
		return nil, err
	}
	auth, err := DeriveVaultAuthority(programID, side, mint)
	if err != nil {
		return nil, err
	}

	name := InstructionInitializeVaultTokenA
	if side == SideB {
		name = InstructionInitializeVaultTokenB
	}

	return &ProgramInstruction{
		Program: programID,
		Name:    name,
		AccountMetaSlice: solana.AccountMetaSlice{
			solana.NewAccountMeta(vault.Address, true, false),
			solana.NewAccountMeta(auth.Address, false, false),
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(mint, false, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
			solana.NewAccountMeta(solana.TokenProgramID, false, false),
			solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
		},
	}, nil
}

// NewDepositInstruction moves amount from the user's token account into one side's vault
func NewDepositInstruction(programID solana.PublicKey, side Side, user, userTokenAccount, mint solana.PublicKey, amount uint64) (*ProgramInstruction, error) {
	vault, err := DeriveVaultTokenAccount(programID, side, mint)
	if err != nil {
		return nil, err
	}

	name := InstructionDepositTokenA
	if side == SideB {
		name = InstructionDepositTokenB
	}

	return &ProgramInstruction{
		Program: programID,
		Name:    name,
		Args:    []uint64{amount},
		AccountMetaSlice: solana.AccountMetaSlice{
			solana.NewAccountMeta(user, true, true),
			solana.NewAccountMeta(userTokenAccount, true, false),
			solana.NewAccountMeta(vault.Address, true, false),
			solana.NewAccountMeta(mint, false, false),
			solana.NewAccountMeta(solana.TokenProgramID, false, false),
		},
	}, nil
}

// NewSwapInstruction trades amount of the input side against the pool
func NewSwapInstruction(programID solana.PublicKey, direction Direction, accounts SwapAccounts, amount uint64) (*ProgramInstruction, error) {
	vaults, err := DeriveVaults(programID, accounts.MintA, accounts.MintB)
	if err != nil {
		return nil, err
	}

	name := InstructionSwapAForB
	if direction == BForA {
		name = InstructionSwapBForA
	}

	return &ProgramInstruction{
		Program: programID,
		Name:    name,
		Args:    []uint64{amount},
		AccountMetaSlice: solana.AccountMetaSlice{
			solana.NewAccountMeta(accounts.User, true, true),
			solana.NewAccountMeta(accounts.UserTokenAccountA, true, false),
			solana.NewAccountMeta(accounts.UserTokenAccountB, true, false),
			solana.NewAccountMeta(vaults.TokenA.Address, true, false),
			solana.NewAccountMeta(vaults.TokenB.Address, true, false),
			solana.NewAccountMeta(vaults.AuthA.Address, false, false),
			solana.NewAccountMeta(vaults.AuthB.Address, false, false),
			solana.NewAccountMeta(accounts.MintA, false, false),
			solana.NewAccountMeta(accounts.MintB, false, false),
			solana.NewAccountMeta(solana.TokenProgramID, false, false),
		},
	}, nil
}
