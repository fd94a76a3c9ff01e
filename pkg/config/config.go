package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	log "github.com/sirupsen/logrus"
	"simpleswap/pkg/pool/simpleswap"
)

const (
	DefaultTokenAMint = "6brEek47QhmqAxAuqBBnRMjshVM4XphbxFLjdVNE3uiM"
	DefaultTokenBMint = "3vwLsA3XrM6Kqg1v6ACF4qYoZUQTM54i1atCFTPEKZG5"

	DefaultRateLimit      = 20
	DefaultDepositAmount  = uint64(5_000_000_000)
	DefaultSwapBForA      = uint64(2_000_000_000)
	DefaultSwapAForB      = uint64(1_000_000_000)
	DefaultConfirmTimeout = 60 * time.Second
	DefaultRabbitMQQueue  = "simpleswap.steps"
)

// Config is everything the CLIs read from the environment
type Config struct {
	RPCEndpoints []string
	WSEndpoint   string
	RateLimit    int

	JitoRPC         string
	JitoTipAccount  solana.PublicKey
	JitoTipLamports uint64

	ProgramID         solana.PublicKey
	TokenAMint        solana.PublicKey
	TokenBMint        solana.PublicKey
	UserTokenAAccount solana.PublicKey
	UserTokenBAccount solana.PublicKey
	KeypairPath       string
	WalletPrivateKey  string

	DepositAAmount  uint64
	DepositBAmount  uint64
	SwapBForAAmount uint64
	SwapAForBAmount uint64
	Commitment      rpc.CommitmentType
	ConfirmTimeout  time.Duration

	DatabaseDSN   string
	RabbitMQURL   string
	RabbitMQQueue string

	LogLevel log.Level
}

// Load reads Config from the environment, applying defaults for anything unset
func Load() (*Config, error) {
	cfg := &Config{
		RPCEndpoints:  GetRPCEndpoints(),
		JitoRPC:       os.Getenv("JITO_RPC"),
		DatabaseDSN:   os.Getenv("DATABASE_DSN"),
		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		RabbitMQQueue: envOr("RABBITMQ_QUEUE", DefaultRabbitMQQueue),

		WalletPrivateKey: strings.TrimSpace(os.Getenv("WALLET_PRIVATE_KEY")),
	}
	if len(cfg.RPCEndpoints) == 0 {
		return nil, fmt.Errorf("RPC_ENDPOINTS is required")
	}

	var err error
	if cfg.WSEndpoint, err = wsEndpoint(cfg.RPCEndpoints[0]); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = envInt("RPC_RATE_LIMIT", DefaultRateLimit); err != nil {
		return nil, err
	}

	if cfg.JitoTipAccount, err = envPublicKey("JITO_TIP_ACCOUNT", ""); err != nil {
		return nil, err
	}
	if cfg.JitoTipLamports, err = envUint64("JITO_TIP_LAMPORTS", 0); err != nil {
		return nil, err
	}

	if cfg.ProgramID, err = envPublicKey("PROGRAM_ID", simpleswap.SIMPLE_TOKEN_SWAP_PROGRAM_ID); err != nil {
		return nil, err
	}
	if cfg.TokenAMint, err = envPublicKey("TOKEN_A_MINT", DefaultTokenAMint); err != nil {
		return nil, err
	}
	if cfg.TokenBMint, err = envPublicKey("TOKEN_B_MINT", DefaultTokenBMint); err != nil {
		return nil, err
	}
	if cfg.TokenAMint.Equals(cfg.TokenBMint) {
		return nil, fmt.Errorf("TOKEN_A_MINT and TOKEN_B_MINT must differ")
	}
	if cfg.UserTokenAAccount, err = envPublicKey("USER_TOKEN_A_ACCOUNT", ""); err != nil {
		return nil, err
	}
	if cfg.UserTokenBAccount, err = envPublicKey("USER_TOKEN_B_ACCOUNT", ""); err != nil {
		return nil, err
	}

	if cfg.KeypairPath, err = keypairPath(); err != nil {
		return nil, err
	}

	if cfg.DepositAAmount, err = envUint64("DEPOSIT_A_AMOUNT", DefaultDepositAmount); err != nil {
		return nil, err
	}
	if cfg.DepositBAmount, err = envUint64("DEPOSIT_B_AMOUNT", DefaultDepositAmount); err != nil {
		return nil, err
	}
	if cfg.SwapBForAAmount, err = envUint64("SWAP_B_FOR_A_AMOUNT", DefaultSwapBForA); err != nil {
		return nil, err
	}
	if cfg.SwapAForBAmount, err = envUint64("SWAP_A_FOR_B_AMOUNT", DefaultSwapAForB); err != nil {
		return nil, err
	}

	if cfg.Commitment, err = ParseCommitment(envOr("COMMITMENT", string(rpc.CommitmentConfirmed))); err != nil {
		return nil, err
	}
	timeout := envOr("CONFIRM_TIMEOUT", DefaultConfirmTimeout.String())
	if cfg.ConfirmTimeout, err = time.ParseDuration(timeout); err != nil || cfg.ConfirmTimeout <= 0 {
		return nil, fmt.Errorf("invalid CONFIRM_TIMEOUT %q", timeout)
	}

	if cfg.LogLevel, err = log.ParseLevel(envOr("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// TipEnabled reports whether each transaction should carry a Jito tip
func (c *Config) TipEnabled() bool {
	return !c.JitoTipAccount.IsZero() && c.JitoTipLamports > 0
}

// LoadWallet decodes WalletPrivateKey (base58, 64 bytes) when set, otherwise reads the Solana CLI
// keypair file at KeypairPath.
func (c *Config) LoadWallet() (solana.PrivateKey, error) {
	if c.WalletPrivateKey != "" {
		raw, err := base58.Decode(c.WalletPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid WALLET_PRIVATE_KEY: %w", err)
		}
		if len(raw) != 64 {
			return nil, fmt.Errorf("invalid WALLET_PRIVATE_KEY: expected 64 bytes, got %d", len(raw))
		}
		return solana.PrivateKey(raw), nil
	}

	key, err := solana.PrivateKeyFromSolanaKeygenFile(c.KeypairPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", c.KeypairPath, err)
	}
	return key, nil
}

// UserTokenAccounts returns the configured user token accounts, falling back to the owner's
// associated token accounts for mint A and mint B.
func (c *Config) UserTokenAccounts(owner solana.PublicKey) (solana.PublicKey, solana.PublicKey, error) {
	userA, userB := c.UserTokenAAccount, c.UserTokenBAccount
	if userA.IsZero() {
		ata, _, err := solana.FindAssociatedTokenAddress(owner, c.TokenAMint)
		if err != nil {
			return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive token A ATA: %w", err)
		}
		userA = ata
	}
	if userB.IsZero() {
		ata, _, err := solana.FindAssociatedTokenAddress(owner, c.TokenBMint)
		if err != nil {
			return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive token B ATA: %w", err)
		}
		userB = ata
	}
	return userA, userB, nil
}

// ParseCommitment accepts processed, confirmed or finalized
func ParseCommitment(s string) (rpc.CommitmentType, error) {
	switch c := rpc.CommitmentType(strings.ToLower(strings.TrimSpace(s))); c {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
		return c, nil
	}
	return "", fmt.Errorf("invalid COMMITMENT %q", s)
}

// ConfigureLogging applies the level and the text formatter used by every CLI
func ConfigureLogging(level log.Level) {
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envUint64(key string, def uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(strings.ReplaceAll(strings.TrimSpace(v), "_", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envPublicKey(key, def string) (solana.PublicKey, error) {
	v := envOr(key, def)
	if v == "" {
		return solana.PublicKey{}, nil
	}
	pk, err := solana.PublicKeyFromBase58(v)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return pk, nil
}

func keypairPath() (string, error) {
	if p := os.Getenv("KEYPAIR_PATH"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("KEYPAIR_PATH not set and home directory unknown: %w", err)
	}
	return filepath.Join(home, ".config", "solana", "id.json"), nil
}

// wsEndpoint returns WS_ENDPOINT, or the websocket URL matching an http(s) RPC endpoint
func wsEndpoint(rpcEndpoint string) (string, error) {
	if ws := os.Getenv("WS_ENDPOINT"); ws != "" {
		return ws, nil
	}
	switch {
	case strings.HasPrefix(rpcEndpoint, "https://"):
		return "wss://" + strings.TrimPrefix(rpcEndpoint, "https://"), nil
	case strings.HasPrefix(rpcEndpoint, "http://"):
		return "ws://" + strings.TrimPrefix(rpcEndpoint, "http://"), nil
	}
	return "", fmt.Errorf("cannot derive WS_ENDPOINT from %q", rpcEndpoint)
}
