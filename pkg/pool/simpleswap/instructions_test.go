package simpleswap

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"simpleswap/pkg/anchor"
)

func TestInitializeVaultInstruction(t *testing.T) {
	payer := solana.NewWallet().PublicKey()

	inst, err := NewInitializeVaultInstruction(SimpleTokenSwapProgramID, SideA, payer, testMintA)
	require.NoError(t, err)
	assert.Equal(t, SimpleTokenSwapProgramID, inst.ProgramID())

	data, err := inst.Data()
	require.NoError(t, err)
	assert.Equal(t, anchor.InstructionDiscriminator("initialize_vault_token_a"), data)

	vault, _ := DeriveVaultTokenAccount(SimpleTokenSwapProgramID, SideA, testMintA)
	auth, _ := DeriveVaultAuthority(SimpleTokenSwapProgramID, SideA, testMintA)

	accounts := inst.Accounts()
	require.Len(t, accounts, 7)
	assert.Equal(t, vault.Address, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsWritable)
	assert.Equal(t, auth.Address, accounts[1].PublicKey)
	assert.Equal(t, payer, accounts[2].PublicKey)
	assert.True(t, accounts[2].IsSigner)
	assert.Equal(t, testMintA, accounts[3].PublicKey)
	assert.Equal(t, solana.SystemProgramID, accounts[4].PublicKey)
	assert.Equal(t, solana.TokenProgramID, accounts[5].PublicKey)
	assert.Equal(t, solana.SysVarRentPubkey, accounts[6].PublicKey)

	instB, err := NewInitializeVaultInstruction(SimpleTokenSwapProgramID, SideB, payer, testMintB)
	require.NoError(t, err)
	dataB, err := instB.Data()
	require.NoError(t, err)
	assert.Equal(t, anchor.InstructionDiscriminator("initialize_vault_token_b"), dataB)
}

func TestDepositInstruction(t *testing.T) {
	user := solana.NewWallet().PublicKey()
	userATA := solana.NewWallet().PublicKey()

	inst, err := NewDepositInstruction(SimpleTokenSwapProgramID, SideB, user, userATA, testMintB, 5_000_000_000)
	require.NoError(t, err)

	data, err := inst.Data()
	require.NoError(t, err)
	require.Len(t, data, 16)
	assert.Equal(t, anchor.InstructionDiscriminator("token_b_deposit_in_pda_vault"), data[:8])
	assert.Equal(t, uint64(5_000_000_000), binary.LittleEndian.Uint64(data[8:]))

	vault, _ := DeriveVaultTokenAccount(SimpleTokenSwapProgramID, SideB, testMintB)
	accounts := inst.Accounts()
	require.Len(t, accounts, 5)
	assert.Equal(t, user, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.Equal(t, userATA, accounts[1].PublicKey)
	assert.Equal(t, vault.Address, accounts[2].PublicKey)
	assert.Equal(t, testMintB, accounts[3].PublicKey)
	assert.Equal(t, solana.TokenProgramID, accounts[4].PublicKey)
}

func TestSwapInstruction(t *testing.T) {
	swap := SwapAccounts{
		User:              solana.NewWallet().PublicKey(),
		UserTokenAccountA: solana.NewWallet().PublicKey(),
		UserTokenAccountB: solana.NewWallet().PublicKey(),
		MintA:             testMintA,
		MintB:             testMintB,
	}

	t.Run("B for A", func(t *testing.T) {
		inst, err := NewSwapInstruction(SimpleTokenSwapProgramID, BForA, swap, 2_000_000_000)
		require.NoError(t, err)

		data, err := inst.Data()
		require.NoError(t, err)
		assert.Equal(t, anchor.InstructionDiscriminator("swap_b_for_a"), data[:8])
		assert.Equal(t, uint64(2_000_000_000), binary.LittleEndian.Uint64(data[8:16]))
	})

	t.Run("A for B accounts", func(t *testing.T) {
		inst, err := NewSwapInstruction(SimpleTokenSwapProgramID, AForB, swap, 1_000_000_000)
		require.NoError(t, err)

		data, err := inst.Data()
		require.NoError(t, err)
		assert.Equal(t, anchor.InstructionDiscriminator("swap_a_for_b"), data[:8])

		vaults, err := DeriveVaults(SimpleTokenSwapProgramID, testMintA, testMintB)
		require.NoError(t, err)

		want := []solana.PublicKey{
			swap.User,
			swap.UserTokenAccountA,
			swap.UserTokenAccountB,
			vaults.TokenA.Address,
			vaults.TokenB.Address,
			vaults.AuthA.Address,
			vaults.AuthB.Address,
			testMintA,
			testMintB,
			solana.TokenProgramID,
		}
		accounts := inst.Accounts()
		require.Len(t, accounts, len(want))
		for i, key := range want {
			assert.Equal(t, key, accounts[i].PublicKey, "account %d", i)
		}
		for i := 0; i < 5; i++ {
			assert.True(t, accounts[i].IsWritable, "account %d must be writable", i)
		}
		assert.False(t, accounts[5].IsWritable)
	})
}
