package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"simpleswap/pkg/config"
	"simpleswap/pkg/events"
	"simpleswap/pkg/runner"
	"simpleswap/pkg/sol"
	"simpleswap/pkg/store"
	"simpleswap/pkg/token"
)

func main() {
	stepsFlag := flag.String("steps", "all", "Comma separated steps to run, or 'all' ("+stepNames()+")")
	simulate := flag.Bool("simulate", false, "Simulate every transaction instead of sending it")
	rpcFlag := flag.String("rpc", "", "Solana RPC endpoint (overrides RPC_ENDPOINTS)")
	rateLimit := flag.Int("ratelimit", 0, "RPC requests per second (overrides RPC_RATE_LIMIT)")
	envFile := flag.String("env", ".env", "Env file to load before reading the environment")
	flag.Parse()

	if err := config.LoadEnv(*envFile); err != nil {
		log.Warnf("Failed to load %s: %v", *envFile, err)
	}
	if *rpcFlag != "" {
		os.Setenv("RPC_ENDPOINTS", *rpcFlag)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	config.ConfigureLogging(cfg.LogLevel)
	if *rateLimit > 0 {
		cfg.RateLimit = *rateLimit
	}

	steps, err := runner.ParseSteps(*stepsFlag)
	if err != nil {
		log.Fatalf("Invalid -steps: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, steps, *simulate); err != nil {
		log.Errorf("Scenario failed: %v", err)
		os.Exit(1)
	}
	log.Info("Scenario completed")
}

func run(ctx context.Context, cfg *config.Config, steps []runner.Step, simulate bool) error {
	wallet, err := cfg.LoadWallet()
	if err != nil {
		return err
	}
	userA, userB, err := cfg.UserTokenAccounts(wallet.PublicKey())
	if err != nil {
		return err
	}
	log.Infof("Wallet: %s", wallet.PublicKey())
	log.Infof("User token A account: %s", userA)
	log.Infof("User token B account: %s", userB)

	pool, err := sol.NewRPCPool(ctx, cfg.RPCEndpoints, cfg.JitoRPC, cfg.RateLimit)
	if err != nil {
		return err
	}
	if err := pool.Prune(ctx); err != nil {
		return err
	}
	client := pool.Primary()

	rcfg := runner.Config{
		ProgramID:         cfg.ProgramID,
		MintA:             cfg.TokenAMint,
		MintB:             cfg.TokenBMint,
		UserTokenAccountA: userA,
		UserTokenAccountB: userB,
		DepositAAmount:    cfg.DepositAAmount,
		DepositBAmount:    cfg.DepositBAmount,
		SwapBForAAmount:   cfg.SwapBForAAmount,
		SwapAForBAmount:   cfg.SwapAForBAmount,
		Commitment:        cfg.Commitment,
		ConfirmTimeout:    cfg.ConfirmTimeout,
		Simulate:          simulate,
	}
	if cfg.TipEnabled() {
		rcfg.TipAccount = cfg.JitoTipAccount
		rcfg.TipLamports = cfg.JitoTipLamports
	}

	r, err := runner.New(client, wallet, rcfg)
	if err != nil {
		return err
	}

	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	closers, err := attachRecorders(r, cfg, runID)
	defer func() {
		for _, c := range closers {
			c()
		}
	}()
	if err != nil {
		return err
	}

	log.Infof("Run %s: program %s, steps %s", runID, cfg.ProgramID, joinSteps(steps))
	results, err := r.Run(ctx, steps...)
	printSummary(ctx, client, cfg, results)

	var stepErr *runner.StepError
	if errors.As(err, &stepErr) {
		for _, line := range results[len(results)-1].Logs {
			log.Info(line)
		}
	}
	return err
}

// attachRecorders wires the optional postgres ledger and RabbitMQ publisher
func attachRecorders(r *runner.Runner, cfg *config.Config, runID string) ([]func(), error) {
	var closers []func()

	if cfg.DatabaseDSN != "" {
		db, err := store.Open(cfg.DatabaseDSN)
		if err != nil {
			return closers, err
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, func() { sqlDB.Close() })
		}
		r.AddRecorder(store.New(db, runID, cfg.ProgramID.String()))
		log.Info("Recording steps to postgres")
	}

	if cfg.RabbitMQURL != "" {
		pub, err := events.Dial(cfg.RabbitMQURL, cfg.RabbitMQQueue, runID, cfg.ProgramID.String())
		if err != nil {
			return closers, err
		}
		closers = append(closers, func() { pub.Close() })
		r.AddRecorder(pub)
	}

	return closers, nil
}

func printSummary(ctx context.Context, client *sol.Client, cfg *config.Config, results []runner.StepResult) {
	decimalsA, errA := client.GetMintDecimals(ctx, cfg.TokenAMint)
	decimalsB, errB := client.GetMintDecimals(ctx, cfg.TokenBMint)

	for _, res := range results {
		status := "ok"
		if !res.Succeeded() {
			status = "failed: " + res.Err.Error()
		}
		entry := log.WithFields(log.Fields{
			"step":     res.Step,
			"duration": res.Duration.Round(time.Millisecond),
		})
		if !res.Signature.IsZero() {
			entry = entry.WithField("signature", res.Signature)
		}
		for key, raw := range res.Balances {
			switch {
			case strings.HasSuffix(key, "_a") && errA == nil:
				entry = entry.WithField(key, token.FormatAmount(raw, decimalsA))
			case strings.HasSuffix(key, "_b") && errB == nil:
				entry = entry.WithField(key, token.FormatAmount(raw, decimalsB))
			default:
				entry = entry.WithField(key, raw)
			}
		}
		entry.Info(status)
	}
}

func stepNames() string {
	return joinSteps(runner.AllSteps)
}

func joinSteps(steps []runner.Step) string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = string(s)
	}
	return strings.Join(names, ",")
}
