package router

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"simpleswap/pkg"
	"simpleswap/pkg/pool/simpleswap"
	"simpleswap/pkg/protocol"
)

var (
	mintA = solana.MustPublicKeyFromBase58("6brEek47QhmqAxAuqBBnRMjshVM4XphbxFLjdVNE3uiM")
	mintB = solana.MustPublicKeyFromBase58("3vwLsA3XrM6Kqg1v6ACF4qYoZUQTM54i1atCFTPEKZG5")
)

type tokenAccounts map[solana.PublicKey]uint64

func (m tokenAccounts) GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey) (*rpc.GetMultipleAccountsResult, error) {
	out := &rpc.GetMultipleAccountsResult{}
	for _, acc := range accounts {
		amount, ok := m[acc]
		if !ok {
			out.Value = append(out.Value, nil)
			continue
		}
		data := make([]byte, 165)
		binary.LittleEndian.PutUint64(data[64:72], amount)
		out.Value = append(out.Value, &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes(data)})
	}
	return out, nil
}

type failingProtocol struct{}

func (failingProtocol) ProtocolName() pkg.ProtocolName { return "broken" }

func (failingProtocol) FetchPoolsByPair(ctx context.Context, baseMint, quoteMint string) ([]pkg.Pool, error) {
	return nil, errors.New("rpc unavailable")
}

// two deployments of the program with different liquidity for the same pair
func newTwoDeployments(t *testing.T) (tokenAccounts, solana.PublicKey, solana.PublicKey) {
	t.Helper()
	deep := simpleswap.SimpleTokenSwapProgramID
	shallow := solana.NewWallet().PublicKey()

	reader := tokenAccounts{}
	for program, reserve := range map[solana.PublicKey]uint64{deep: 5_000_000_000, shallow: 1_000_000} {
		vaults, err := simpleswap.DeriveVaults(program, mintA, mintB)
		require.NoError(t, err)
		reader[vaults.TokenA.Address] = reserve
		reader[vaults.TokenB.Address] = reserve
	}
	return reader, deep, shallow
}

func TestGetBestPool(t *testing.T) {
	reader, deep, shallow := newTwoDeployments(t)
	r := NewSimpleRouter(
		protocol.NewSimpleSwap(reader, shallow),
		failingProtocol{},
		protocol.NewSimpleSwap(reader, deep),
	)

	require.NoError(t, r.QueryAllPools(context.Background(), mintB.String(), mintA.String()))
	require.Len(t, r.Pools, 2)

	best, out, err := r.GetBestPool(context.Background(), reader, mintB.String(), math.NewInt(2_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, deep, best.GetProgramID())
	assert.Equal(t, "1428571429", out.String())
}

func TestGetBestPoolWithFilter(t *testing.T) {
	reader, deep, shallow := newTwoDeployments(t)
	r := NewSimpleRouter(protocol.NewSimpleSwap(reader, shallow), protocol.NewSimpleSwap(reader, deep))
	require.NoError(t, r.QueryAllPools(context.Background(), mintA.String(), mintB.String()))

	best, _, err := r.GetBestPoolWithFilter(context.Background(), reader, mintA.String(), math.NewInt(1_000), nil, nil, 10_000_000)
	require.NoError(t, err)
	assert.Equal(t, deep, best.GetProgramID())

	_, _, err = r.GetBestPoolWithFilter(context.Background(), reader, mintA.String(), math.NewInt(1_000), nil, []string{string(pkg.ProtocolNameSimpleSwap)}, 0)
	assert.ErrorContains(t, err, "no pools found after filtering")

	_, _, err = r.GetBestPoolWithFilter(context.Background(), reader, mintA.String(), math.NewInt(1_000), []string{"other"}, nil, 0)
	assert.Error(t, err)
}

func TestQueryAllPoolsNone(t *testing.T) {
	r := NewSimpleRouter(protocol.NewSimpleSwap(tokenAccounts{}, simpleswap.SimpleTokenSwapProgramID))
	assert.Error(t, r.QueryAllPools(context.Background(), mintA.String(), mintB.String()))

	_, _, err := r.GetBestPool(context.Background(), tokenAccounts{}, mintA.String(), math.NewInt(1))
	assert.Error(t, err)
}

func TestRouterQuote(t *testing.T) {
	reader, _, shallow := newTwoDeployments(t)
	r := NewSimpleRouter(protocol.NewSimpleSwap(reader, shallow), protocol.NewSimpleSwap(reader, simpleswap.SimpleTokenSwapProgramID))
	require.NoError(t, r.QueryAllPools(context.Background(), mintA.String(), mintB.String()))

	resp, err := r.Quote(context.Background(), reader, mintB.String(), math.NewInt(2_000_000_000), 50)
	require.NoError(t, err)
	assert.Equal(t, mintB.String(), resp.InputMint)
	assert.Equal(t, mintA.String(), resp.OutputMint)
	assert.Equal(t, "1428571429", resp.OutAmount)
	assert.Equal(t, "1421428571", resp.OtherAmountThreshold)
	require.Len(t, resp.RoutePlan, 1)
	assert.Equal(t, string(pkg.ProtocolNameSimpleSwap), resp.RoutePlan[0].Protocol)

	_, err = r.Quote(context.Background(), reader, mintB.String(), math.ZeroInt(), 50)
	assert.Error(t, err)
	_, err = r.Quote(context.Background(), reader, mintB.String(), math.NewInt(1), 10_001)
	assert.Error(t, err)
}

func TestMinAmountOut(t *testing.T) {
	out, err := MinAmountOut(math.NewInt(10_000), 0)
	require.NoError(t, err)
	assert.Equal(t, "10000", out.String())

	out, err = MinAmountOut(math.NewInt(999), 100)
	require.NoError(t, err)
	assert.Equal(t, "989", out.String())

	_, err = MinAmountOut(math.NewInt(1), -1)
	assert.Error(t, err)
}
