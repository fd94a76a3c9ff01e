package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"
	"simpleswap/pkg/config"
	"simpleswap/pkg/protocol"
	"simpleswap/pkg/router"
	"simpleswap/pkg/sol"
	"simpleswap/pkg/token"
)

type QuoteError struct {
	Error string `json:"error"`
}

func main() {
	rpcEndpoint := flag.String("rpc", "", "Solana RPC endpoint (defaults to the first of RPC_ENDPOINTS)")
	programFlag := flag.String("program", "", "Swap program ID (defaults to PROGRAM_ID)")
	inputMint := flag.String("input", "", "Input token mint address (defaults to TOKEN_B_MINT)")
	amount := flag.String("amount", "", "Input amount in raw units")
	slippageBps := flag.Int("slippage", 50, "Slippage tolerance in basis points")
	rateLimit := flag.Int("ratelimit", config.DefaultRateLimit, "RPC rate limit (requests per second)")
	jsonOutput := flag.Bool("json", true, "Output in JSON format")
	envFile := flag.String("env", ".env", "Env file to load before reading the environment")
	flag.Parse()

	if err := config.LoadEnv(*envFile); err != nil {
		log.Debugf("No env file loaded: %v", err)
	}
	if *rpcEndpoint != "" {
		os.Setenv("RPC_ENDPOINTS", *rpcEndpoint)
	}
	if *programFlag != "" {
		os.Setenv("PROGRAM_ID", *programFlag)
	}

	cfg, err := config.Load()
	if err != nil {
		outputError(*jsonOutput, fmt.Sprintf("invalid configuration: %v", err))
		os.Exit(1)
	}
	config.ConfigureLogging(cfg.LogLevel)
	if *jsonOutput {
		// keep stdout clean for the JSON document
		log.SetLevel(log.WarnLevel)
	}

	if *amount == "" {
		outputError(*jsonOutput, "amount is required")
		os.Exit(1)
	}
	amountIn, ok := math.NewIntFromString(*amount)
	if !ok || !amountIn.IsPositive() {
		outputError(*jsonOutput, fmt.Sprintf("invalid amount: %s", *amount))
		os.Exit(1)
	}

	input := cfg.TokenBMint.String()
	if *inputMint != "" {
		input = *inputMint
	}
	if input != cfg.TokenAMint.String() && input != cfg.TokenBMint.String() {
		outputError(*jsonOutput, fmt.Sprintf("input mint %s is neither TOKEN_A_MINT nor TOKEN_B_MINT", input))
		os.Exit(1)
	}

	ctx := context.Background()
	client, err := sol.NewClient(ctx, cfg.RPCEndpoints[0], "", *rateLimit)
	if err != nil {
		outputError(*jsonOutput, fmt.Sprintf("failed to create client: %v", err))
		os.Exit(1)
	}

	r := router.NewSimpleRouter(protocol.NewSimpleSwap(client, cfg.ProgramID))
	if err := r.QueryAllPools(ctx, cfg.TokenAMint.String(), cfg.TokenBMint.String()); err != nil {
		outputError(*jsonOutput, fmt.Sprintf("failed to query pools: %v", err))
		os.Exit(1)
	}

	resp, err := r.Quote(ctx, client, input, amountIn, *slippageBps)
	if err != nil {
		outputError(*jsonOutput, fmt.Sprintf("failed to get quote: %v", err))
		os.Exit(1)
	}

	if *jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(resp); err != nil {
			outputError(*jsonOutput, fmt.Sprintf("failed to encode response: %v", err))
			os.Exit(1)
		}
		return
	}

	printHuman(ctx, client, resp)
}

func printHuman(ctx context.Context, client *sol.Client, resp *router.QuoteResponse) {
	format := func(mint, raw string) string {
		pk, err := solana.PublicKeyFromBase58(mint)
		if err != nil {
			return raw
		}
		decimals, err := client.GetMintDecimals(ctx, pk)
		if err != nil {
			return raw
		}
		v, ok := math.NewIntFromString(raw)
		if !ok || !v.IsUint64() {
			return raw
		}
		return token.FormatAmount(v.Uint64(), decimals)
	}

	fmt.Printf("Input:  %s %s\n", format(resp.InputMint, resp.InAmount), resp.InputMint)
	fmt.Printf("Output: %s %s\n", format(resp.OutputMint, resp.OutAmount), resp.OutputMint)
	fmt.Printf("Min output (%d bps): %s\n", resp.SlippageBps, format(resp.OutputMint, resp.OtherAmountThreshold))
	for _, step := range resp.RoutePlan {
		fmt.Printf("Route: %s pool %s\n", step.Protocol, step.PoolID)
	}
}

func outputError(jsonOutput bool, message string) {
	if jsonOutput {
		errResp := QuoteError{Error: message}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		encoder.Encode(errResp)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	}
}
