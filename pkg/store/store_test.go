package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"simpleswap/pkg/pool/simpleswap"
	"simpleswap/pkg/runner"
)

func TestNewStepRecord(t *testing.T) {
	sig := solana.Signature{1, 2, 3}
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := NewStepRecord("run-1", simpleswap.SIMPLE_TOKEN_SWAP_PROGRAM_ID, runner.StepResult{
		Step:           runner.StepSwapBForA,
		Signature:      sig,
		Amount:         2_000_000_000,
		ExpectedOutput: 1_428_571_429,
		Balances:       map[string]uint64{runner.BalanceVaultA: 5_000_000_000},
		StartedAt:      started,
		Duration:       1500 * time.Millisecond,
	})

	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, "swap-b-for-a", rec.Step)
	assert.Equal(t, sig.String(), rec.Signature)
	assert.True(t, rec.Success)
	assert.Empty(t, rec.Error)
	assert.Equal(t, TokenAmount(2_000_000_000), rec.Amount)
	assert.Equal(t, TokenAmount(1_428_571_429), rec.ExpectedOutput)
	assert.Equal(t, Balances{"vault_a": 5_000_000_000}, rec.Balances)
	assert.Equal(t, started, rec.StartedAt)
	assert.Equal(t, int64(1500), rec.DurationMs)

	failed := NewStepRecord("run-1", "p", runner.StepResult{Step: runner.StepDepositA, Err: errors.New("boom")})
	assert.False(t, failed.Success)
	assert.Equal(t, "boom", failed.Error)
	assert.Empty(t, failed.Signature)
	assert.Nil(t, failed.Balances)
}

func TestTokenAmountAboveInt64(t *testing.T) {
	rec := NewStepRecord("run-1", "p", runner.StepResult{
		Step:           runner.StepDepositB,
		Amount:         math.MaxUint64,
		ExpectedOutput: math.MaxInt64 + 1,
	})

	v, err := rec.Amount.Value()
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551615", v)
	v, err = rec.ExpectedOutput.Value()
	require.NoError(t, err)
	assert.Equal(t, "9223372036854775808", v)

	var out TokenAmount
	require.NoError(t, out.Scan([]byte("18446744073709551615")))
	assert.Equal(t, TokenAmount(math.MaxUint64), out)
	require.NoError(t, out.Scan("42"))
	assert.Equal(t, TokenAmount(42), out)
	require.NoError(t, out.Scan(int64(7)))
	assert.Equal(t, TokenAmount(7), out)
	require.NoError(t, out.Scan(nil))
	assert.Zero(t, out)

	assert.Error(t, out.Scan("18446744073709551616"))
	assert.Error(t, out.Scan(int64(-1)))
	assert.Error(t, out.Scan(1.5))
}

func TestBalancesValueScan(t *testing.T) {
	in := Balances{"user_a": 1, "user_b": 2}
	v, err := in.Value()
	require.NoError(t, err)

	var out Balances
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)

	require.NoError(t, out.Scan(`{"vault_b":7}`))
	assert.Equal(t, Balances{"vault_b": 7}, out)

	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out)

	assert.Error(t, out.Scan(42))

	v, err = Balances(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStoreRecord(t *testing.T) {
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		t.Skip("DATABASE_DSN not set")
	}

	db, err := Open(dsn)
	require.NoError(t, err)

	runID := fmt.Sprintf("test-%d", time.Now().UnixNano())
	programID := solana.NewWallet().PublicKey().String()
	s := New(db, runID, programID)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, runner.StepResult{
		Step:      runner.StepInitVaultA,
		Signature: solana.Signature{9},
		StartedAt: time.Now(),
	}))
	require.NoError(t, s.Record(ctx, runner.StepResult{
		Step:      runner.StepInitVaultB,
		Amount:    math.MaxUint64,
		Balances:  map[string]uint64{runner.BalanceVaultB: 0},
		StartedAt: time.Now().Add(time.Millisecond),
		Err:       errors.New("confirmation timed out"),
	}))

	records, err := s.Run(ctx, runID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "init-vault-a", records[0].Step)
	assert.False(t, records[1].Success)
	assert.Equal(t, Balances{"vault_b": 0}, records[1].Balances)
	assert.Equal(t, TokenAmount(math.MaxUint64), records[1].Amount)

	last, err := s.LastSuccessful(ctx, runner.StepInitVaultA)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, runID, last.RunID)

	last, err = s.LastSuccessful(ctx, runner.StepInitVaultB)
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, db.Where("run_id = ?", runID).Delete(&StepRecord{}).Error)
}
