package token

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const (
	// AccountSize is the length of an SPL token account
	AccountSize = 165

	// MintSize is the length of an SPL mint account
	MintSize = 82

	mintOffset     = 0
	ownerOffset    = 32
	amountOffset   = 64
	decimalsOffset = 44
)

// Account holds the fields of an SPL token account this client reads
type Account struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

// DecodeAccount parses mint, owner and amount out of raw token account data
func DecodeAccount(data []byte) (*Account, error) {
	if len(data) < amountOffset+8 {
		return nil, fmt.Errorf("data too short for token account: got %d bytes", len(data))
	}

	acc := &Account{}
	copy(acc.Mint[:], data[mintOffset:mintOffset+32])
	copy(acc.Owner[:], data[ownerOffset:ownerOffset+32])
	acc.Amount = binary.LittleEndian.Uint64(data[amountOffset : amountOffset+8])
	return acc, nil
}

// DecodeAmount returns only the balance of a token account
func DecodeAmount(data []byte) (uint64, error) {
	if len(data) < amountOffset+8 {
		return 0, fmt.Errorf("data too short for token account: got %d bytes", len(data))
	}
	return binary.LittleEndian.Uint64(data[amountOffset : amountOffset+8]), nil
}

// DecodeMintDecimals reads the decimals byte of a mint account
func DecodeMintDecimals(data []byte) (uint8, error) {
	if len(data) < decimalsOffset+1 {
		return 0, fmt.Errorf("data too short for mint: got %d bytes", len(data))
	}
	return data[decimalsOffset], nil
}

// FormatAmount renders a raw amount with the mint's decimals, e.g. 5000000000 @9 -> "5"
func FormatAmount(raw uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(decimals)).String()
}
