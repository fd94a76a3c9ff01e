package sol

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	jitorpc "github.com/jito-labs/jito-go-rpc"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"simpleswap/pkg/token"
)

var (
	ErrTransactionFailed = errors.New("transaction failed")
	ErrConfirmTimeout    = errors.New("transaction confirmation timed out")
)

// DefaultPollInterval is how often ConfirmTransaction polls signature statuses
const DefaultPollInterval = 500 * time.Millisecond

// Client wraps the Solana JSON-RPC client with a request limiter and an optional Jito sender
type Client struct {
	Endpoint     string
	RpcClient    *rpc.Client
	JitoClient   *jitorpc.JitoJsonRpcClient
	limiter      *rate.Limiter
	PollInterval time.Duration
}

// NewClient creates a client for endpoint. jitoRpc may be empty; reqLimitPerSecond <= 0 disables limiting.
func NewClient(ctx context.Context, endpoint string, jitoRpc string, reqLimitPerSecond int) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("empty RPC endpoint")
	}

	limit := rate.Inf
	burst := 1
	if reqLimitPerSecond > 0 {
		limit = rate.Limit(reqLimitPerSecond)
		burst = reqLimitPerSecond
	}

	c := &Client{
		Endpoint:     endpoint,
		RpcClient:    rpc.New(endpoint),
		limiter:      rate.NewLimiter(limit, burst),
		PollInterval: DefaultPollInterval,
	}
	if jitoRpc != "" {
		c.JitoClient = jitorpc.NewJitoJsonRpcClient(jitoRpc, "")
		log.Infof("Jito block engine enabled: %s", jitoRpc)
	}
	return c, nil
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}
	return nil
}

func (c *Client) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.RpcClient.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
}

func (c *Client) GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey) (*rpc.GetMultipleAccountsResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.RpcClient.GetMultipleAccountsWithOpts(ctx, accounts, &rpc.GetMultipleAccountsOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
}

func (c *Client) GetProgramAccountsWithOpts(ctx context.Context, programID solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.RpcClient.GetProgramAccountsWithOpts(ctx, programID, opts)
}

// LatestBlockhash returns a blockhash to build transactions against
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if err := c.wait(ctx); err != nil {
		return solana.Hash{}, err
	}
	res, err := c.RpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	return res.Value.Blockhash, nil
}

// SendTransaction submits a signed transaction, through Jito as a single-transaction bundle when configured
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, fmt.Errorf("transaction is not signed")
	}

	if c.JitoClient != nil {
		bundleID, err := c.sendBundle(tx)
		if err != nil {
			return solana.Signature{}, err
		}
		log.Infof("Submitted Jito bundle %s", bundleID)
		return tx.Signatures[0], nil
	}

	if err := c.wait(ctx); err != nil {
		return solana.Signature{}, err
	}
	sig, err := c.RpcClient.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

func (c *Client) sendBundle(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}

	// sendBundle declares base64 encoding for its transactions
	resp, err := c.JitoClient.SendBundle([][]string{{base64.StdEncoding.EncodeToString(raw)}})
	if err != nil {
		return "", fmt.Errorf("failed to send Jito bundle: %w", err)
	}

	var bundleID string
	if err := json.Unmarshal(resp, &bundleID); err != nil {
		return "", fmt.Errorf("failed to parse Jito bundle id: %w", err)
	}
	return bundleID, nil
}

// SimulateTransaction runs tx against the current bank state and returns the program logs
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) ([]string, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.RpcClient.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:              false,
		Commitment:             rpc.CommitmentConfirmed,
		ReplaceRecentBlockhash: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to simulate transaction: %w", err)
	}
	if resp.Value == nil {
		return nil, fmt.Errorf("empty simulation result")
	}
	if resp.Value.Err != nil {
		return resp.Value.Logs, fmt.Errorf("%w: simulation error %v", ErrTransactionFailed, resp.Value.Err)
	}
	return resp.Value.Logs, nil
}

// ConfirmTransaction polls the signature status until it reaches commitment or timeout elapses.
// It returns ErrConfirmTimeout when timeout elapses, and the parent's error when ctx ends first.
func (c *Client) ConfirmTransaction(parent context.Context, sig solana.Signature, commitment rpc.CommitmentType, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := c.checkSignature(ctx, sig, commitment)
		if err != nil || done {
			return err
		}

		select {
		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return fmt.Errorf("confirmation of %s aborted: %w", sig, err)
			}
			return fmt.Errorf("%w: %s after %s", ErrConfirmTimeout, sig, timeout)
		case <-ticker.C:
		}
	}
}

func (c *Client) checkSignature(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) (bool, error) {
	if err := c.wait(ctx); err != nil {
		// deadline hit while waiting on the limiter is reported by the caller's select
		return false, nil
	}
	res, err := c.RpcClient.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		log.Debugf("GetSignatureStatuses %s: %v", sig, err)
		return false, nil
	}
	if len(res.Value) == 0 || res.Value[0] == nil {
		return false, nil
	}

	status := res.Value[0]
	if status.Err != nil {
		errJSON, _ := json.Marshal(status.Err)
		return true, fmt.Errorf("%w: %s: %s", ErrTransactionFailed, sig, string(errJSON))
	}
	return ReachedCommitment(status.ConfirmationStatus, commitment), nil
}

// ReachedCommitment reports whether status satisfies the wanted commitment level
func ReachedCommitment(status rpc.ConfirmationStatusType, wanted rpc.CommitmentType) bool {
	rank := func(s string) int {
		switch s {
		case string(rpc.ConfirmationStatusProcessed):
			return 1
		case string(rpc.ConfirmationStatusConfirmed):
			return 2
		case string(rpc.ConfirmationStatusFinalized):
			return 3
		}
		return 0
	}
	have := rank(string(status))
	return have > 0 && have >= rank(string(wanted))
}

// GetTokenBalance reads the raw amount held by a token account
func (c *Client) GetTokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	res, err := c.GetAccountInfoWithOpts(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("failed to get token account %s: %w", account, err)
	}
	if res == nil || res.Value == nil {
		return 0, fmt.Errorf("token account %s not found", account)
	}
	return token.DecodeAmount(res.Value.Data.GetBinary())
}

// GetMintDecimals reads the decimals of a mint
func (c *Client) GetMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	res, err := c.GetAccountInfoWithOpts(ctx, mint)
	if err != nil {
		return 0, fmt.Errorf("failed to get mint %s: %w", mint, err)
	}
	if res == nil || res.Value == nil {
		return 0, fmt.Errorf("mint %s not found", mint)
	}
	return token.DecodeMintDecimals(res.Value.Data.GetBinary())
}

// CheckHealth calls getHealth on the endpoint
func (c *Client) CheckHealth(ctx context.Context) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	status, err := c.RpcClient.GetHealth(ctx)
	if err != nil {
		return fmt.Errorf("endpoint %s unhealthy: %w", c.Endpoint, err)
	}
	if status != rpc.HealthOk {
		return fmt.Errorf("endpoint %s reported %s", c.Endpoint, status)
	}
	return nil
}
