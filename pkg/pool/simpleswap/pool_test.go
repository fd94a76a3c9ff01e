package simpleswap

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	balances map[solana.PublicKey]uint64
	calls    int
	err      error
}

func (f *fakeReader) GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey) (*rpc.GetMultipleAccountsResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := &rpc.GetMultipleAccountsResult{}
	for _, acc := range accounts {
		balance, ok := f.balances[acc]
		if !ok {
			out.Value = append(out.Value, nil)
			continue
		}
		data := make([]byte, 165)
		binary.LittleEndian.PutUint64(data[64:72], balance)
		out.Value = append(out.Value, &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes(data)})
	}
	return out, nil
}

func newTestPool(t *testing.T) *SimpleSwapPool {
	t.Helper()
	pool, err := NewSimpleSwapPool(SimpleTokenSwapProgramID, testMintA, testMintB)
	require.NoError(t, err)
	return pool
}

func TestPoolIdentity(t *testing.T) {
	pool := newTestPool(t)

	base, quote := pool.GetTokens()
	assert.Equal(t, testMintA.String(), base)
	assert.Equal(t, testMintB.String(), quote)
	assert.Equal(t, pool.Vaults.TokenA.Address.String(), pool.GetID())
	assert.Equal(t, pool.GetID(), pool.GetBaseVault())
	assert.Equal(t, pool.Vaults.TokenB.Address.String(), pool.GetQuoteVault())
	assert.Equal(t, SimpleTokenSwapProgramID, pool.GetProgramID())
}

func TestPoolQuoteFetchesReserves(t *testing.T) {
	pool := newTestPool(t)
	reader := &fakeReader{balances: map[solana.PublicKey]uint64{
		pool.Vaults.TokenA.Address: 5_000_000_000,
		pool.Vaults.TokenB.Address: 5_000_000_000,
	}}

	out, err := pool.Quote(context.Background(), reader, testMintB.String(), cosmath.NewInt(2_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, "1428571429", out.String())
	assert.Equal(t, 1, reader.calls)

	// fresh cache is reused
	_, err = pool.Quote(context.Background(), reader, testMintA.String(), cosmath.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, 1, reader.calls)
}

func TestPoolQuoteErrors(t *testing.T) {
	pool := newTestPool(t)

	_, err := pool.Quote(context.Background(), &fakeReader{err: errors.New("boom")}, testMintA.String(), cosmath.NewInt(1))
	assert.Error(t, err)

	_, err = pool.Quote(context.Background(), &fakeReader{balances: map[solana.PublicKey]uint64{}}, testMintA.String(), cosmath.NewInt(1))
	assert.ErrorContains(t, err, "not found")

	pool.SetReserves(10, 10)
	_, err = pool.QuoteFromReserves(solana.NewWallet().PublicKey().String(), cosmath.NewInt(1))
	assert.ErrorContains(t, err, "not part of pool")

	out, err := pool.QuoteFromReserves(testMintA.String(), cosmath.ZeroInt())
	require.NoError(t, err)
	assert.True(t, out.IsZero())
}

func TestBuildSwapInstructions(t *testing.T) {
	pool := newTestPool(t)
	reader := &fakeReader{balances: map[solana.PublicKey]uint64{
		pool.Vaults.TokenA.Address: 5_000_000_000,
		pool.Vaults.TokenB.Address: 5_000_000_000,
	}}
	user := solana.NewWallet().PublicKey()
	userA := solana.NewWallet().PublicKey()
	userB := solana.NewWallet().PublicKey()

	insts, err := pool.BuildSwapInstructions(context.Background(), reader, user, testMintA.String(),
		cosmath.NewInt(1_000_000_000), cosmath.NewInt(800_000_000), userA, userB)
	require.NoError(t, err)
	require.Len(t, insts, 1)

	inst := insts[0].(*ProgramInstruction)
	assert.Equal(t, InstructionSwapAForB, inst.Name)
	assert.Equal(t, []uint64{1_000_000_000}, inst.Args)

	_, err = pool.BuildSwapInstructions(context.Background(), reader, user, testMintA.String(),
		cosmath.NewInt(1_000_000_000), cosmath.NewInt(900_000_000), userA, userB)
	assert.ErrorContains(t, err, "below minimum")
}

func TestBuildSwapInstructionsRejectsBadAmounts(t *testing.T) {
	pool := newTestPool(t)
	reader := &fakeReader{balances: map[solana.PublicKey]uint64{}}
	user := solana.NewWallet().PublicKey()

	var unset cosmath.Int
	require.NotPanics(t, func() {
		_, err := pool.BuildSwapInstructions(context.Background(), reader, user, testMintA.String(),
			unset, unset, user, user)
		assert.ErrorContains(t, err, "not set")
	})

	_, err := pool.BuildSwapInstructions(context.Background(), reader, user, testMintA.String(),
		cosmath.NewInt(-1), cosmath.Int{}, user, user)
	assert.ErrorContains(t, err, "does not fit in u64")
	assert.Zero(t, reader.calls)
}

func TestUpdateFromAccountData(t *testing.T) {
	pool := newTestPool(t)
	data := make([]byte, 165)
	binary.LittleEndian.PutUint64(data[64:72], 77)

	require.NoError(t, pool.UpdateFromAccountData(pool.GetQuoteVault(), data))
	a, b := pool.Reserves()
	assert.Zero(t, a)
	assert.Equal(t, uint64(77), b)
	assert.False(t, pool.LastUpdate().IsZero())

	assert.Error(t, pool.UpdateFromAccountData(solana.NewWallet().PublicKey().String(), data))
	assert.Error(t, pool.UpdateFromAccountData(pool.GetBaseVault(), data[:10]))
}
