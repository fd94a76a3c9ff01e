package pkg

import (
	"context"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type ProtocolName string

const (
	ProtocolNameSimpleSwap ProtocolName = "simple_token_swap"
)

// AccountReader is the subset of the RPC client pools need to refresh their state
type AccountReader interface {
	GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey) (*rpc.GetMultipleAccountsResult, error)
}

// Protocol discovers pools of one program deployment
type Protocol interface {
	ProtocolName() ProtocolName
	FetchPoolsByPair(ctx context.Context, baseMint string, quoteMint string) ([]Pool, error)
}

// Pool is a quotable and tradable liquidity pool
type Pool interface {
	ProtocolName() ProtocolName
	GetProgramID() solana.PublicKey
	GetID() string
	GetTokens() (baseMint, quoteMint string)
	Quote(ctx context.Context, reader AccountReader, inputMint string, amount math.Int) (math.Int, error)
	BuildSwapInstructions(
		ctx context.Context,
		reader AccountReader,
		user solana.PublicKey,
		inputMint string,
		inputAmount math.Int,
		minOutputAmount math.Int,
		userBaseAccount solana.PublicKey,
		userQuoteAccount solana.PublicKey,
	) ([]solana.Instruction, error)
}
