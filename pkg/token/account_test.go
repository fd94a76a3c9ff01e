package token

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildAccountData(mint, owner solana.PublicKey, amount uint64) []byte {
	data := make([]byte, AccountSize)
	copy(data[0:32], mint[:])
	copy(data[32:64], owner[:])
	binary.LittleEndian.PutUint64(data[64:72], amount)
	return data
}

func TestDecodeAccount(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()

	acc, err := DecodeAccount(buildAccountData(mint, owner, 5_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, mint, acc.Mint)
	assert.Equal(t, owner, acc.Owner)
	assert.Equal(t, uint64(5_000_000_000), acc.Amount)

	amount, err := DecodeAmount(buildAccountData(mint, owner, 42))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), amount)
}

func TestDecodeShortData(t *testing.T) {
	_, err := DecodeAccount(make([]byte, 71))
	assert.Error(t, err)

	_, err = DecodeAmount(nil)
	assert.Error(t, err)

	_, err = DecodeMintDecimals(make([]byte, 44))
	assert.Error(t, err)
}

func TestDecodeMintDecimals(t *testing.T) {
	data := make([]byte, MintSize)
	data[44] = 9

	decimals, err := DecodeMintDecimals(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(9), decimals)
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		raw      uint64
		decimals uint8
		want     string
	}{
		{5_000_000_000, 9, "5"},
		{2_500_000_000, 9, "2.5"},
		{1, 6, "0.000001"},
		{0, 9, "0"},
		{123, 0, "123"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmount(tt.raw, tt.decimals))
	}
}
