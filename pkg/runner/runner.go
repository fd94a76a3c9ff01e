package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"
	"simpleswap/pkg/pool/simpleswap"
)

// Balance keys used in StepResult.Balances
const (
	BalanceVaultA = "vault_a"
	BalanceVaultB = "vault_b"
	BalanceUserA  = "user_a"
	BalanceUserB  = "user_b"
)

// Chain is the subset of the RPC client the runner drives
type Chain interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) ([]string, error)
	ConfirmTransaction(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType, timeout time.Duration) error
	GetTokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// Recorder receives every step result, failed ones included
type Recorder interface {
	Record(ctx context.Context, result StepResult) error
}

// Config holds the addresses and amounts of one scenario run
type Config struct {
	ProgramID         solana.PublicKey
	MintA             solana.PublicKey
	MintB             solana.PublicKey
	UserTokenAccountA solana.PublicKey
	UserTokenAccountB solana.PublicKey

	DepositAAmount  uint64
	DepositBAmount  uint64
	SwapBForAAmount uint64
	SwapAForBAmount uint64

	Commitment     rpc.CommitmentType
	ConfirmTimeout time.Duration

	// Optional Jito tip appended to each transaction
	TipAccount  solana.PublicKey
	TipLamports uint64

	Simulate bool
}

// StepResult describes one executed step
type StepResult struct {
	Step           Step
	Signature      solana.Signature
	Simulated      bool
	Logs           []string
	Amount         uint64
	ExpectedOutput uint64
	Balances       map[string]uint64
	StartedAt      time.Time
	Duration       time.Duration
	Err            error
}

// Succeeded reports whether the step completed without error
func (r StepResult) Succeeded() bool {
	return r.Err == nil
}

// StepError is returned by Run for the step that stopped the scenario
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Runner executes scenario steps one after another against a deployed program
type Runner struct {
	chain     Chain
	signer    solana.PrivateKey
	cfg       Config
	vaults    *simpleswap.Vaults
	recorders []Recorder
}

// New validates cfg and derives the program's vault addresses
func New(chain Chain, signer solana.PrivateKey, cfg Config) (*Runner, error) {
	if chain == nil {
		return nil, errors.New("nil chain")
	}
	if len(signer) == 0 {
		return nil, errors.New("missing signer")
	}
	if cfg.MintA.Equals(cfg.MintB) {
		return nil, errors.New("mint A and mint B must differ")
	}
	if cfg.ConfirmTimeout <= 0 {
		return nil, errors.New("confirm timeout must be positive")
	}
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}

	vaults, err := simpleswap.DeriveVaults(cfg.ProgramID, cfg.MintA, cfg.MintB)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vaults: %w", err)
	}

	return &Runner{
		chain:  chain,
		signer: signer,
		cfg:    cfg,
		vaults: vaults,
	}, nil
}

// AddRecorder attaches a recorder called after every step
func (r *Runner) AddRecorder(rec Recorder) {
	r.recorders = append(r.recorders, rec)
}

// Vaults returns the derived vault addresses
func (r *Runner) Vaults() simpleswap.Vaults {
	return *r.vaults
}

// Run executes steps in order. The first failing step stops the run; its error is returned as a
// *StepError together with the results of every step that ran.
func (r *Runner) Run(ctx context.Context, steps ...Step) ([]StepResult, error) {
	if len(steps) == 0 {
		steps = AllSteps
	}
	for _, step := range steps {
		if !step.Valid() {
			return nil, fmt.Errorf("unknown step %q", step)
		}
	}

	log.Infof("Running %d step(s) as %s against program %s", len(steps), r.signer.PublicKey(), r.cfg.ProgramID)

	results := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		result := r.runStep(ctx, step)
		results = append(results, result)
		r.record(ctx, result)

		if result.Err != nil {
			log.Errorf("Step %s failed after %s: %v", step, result.Duration, result.Err)
			return results, &StepError{Step: step, Err: result.Err}
		}
		log.Infof("Step %s done in %s", step, result.Duration)
	}
	return results, nil
}

func (r *Runner) record(ctx context.Context, result StepResult) {
	for _, rec := range r.recorders {
		if err := rec.Record(ctx, result); err != nil {
			log.Warnf("Failed to record step %s: %v", result.Step, err)
		}
	}
}

func (r *Runner) runStep(ctx context.Context, step Step) StepResult {
	result := StepResult{
		Step:      step,
		Simulated: r.cfg.Simulate,
		Balances:  make(map[string]uint64),
		StartedAt: time.Now(),
	}
	result.Err = r.execute(ctx, step, &result)
	result.Duration = time.Since(result.StartedAt)
	return result
}

func (r *Runner) execute(ctx context.Context, step Step, result *StepResult) error {
	payer := r.signer.PublicKey()

	var inst solana.Instruction
	var err error
	switch step {
	case StepInitVaultA, StepInitVaultB:
		side, mint := simpleswap.SideA, r.cfg.MintA
		vault, auth := r.vaults.TokenA, r.vaults.AuthA
		if step == StepInitVaultB {
			side, mint = simpleswap.SideB, r.cfg.MintB
			vault, auth = r.vaults.TokenB, r.vaults.AuthB
		}
		log.Infof("Vault token account for token %s: %s", side, vault.Address)
		log.Infof("Vault authority for token %s: %s", side, auth.Address)
		inst, err = simpleswap.NewInitializeVaultInstruction(r.cfg.ProgramID, side, payer, mint)

	case StepDepositA, StepDepositB:
		side, mint, userAccount, amount := simpleswap.SideA, r.cfg.MintA, r.cfg.UserTokenAccountA, r.cfg.DepositAAmount
		vault := r.vaults.TokenA
		if step == StepDepositB {
			side, mint, userAccount, amount = simpleswap.SideB, r.cfg.MintB, r.cfg.UserTokenAccountB, r.cfg.DepositBAmount
			vault = r.vaults.TokenB
		}
		result.Amount = amount
		log.Infof("Depositing %d of token %s from %s into vault %s", amount, side, userAccount, vault.Address)
		inst, err = simpleswap.NewDepositInstruction(r.cfg.ProgramID, side, payer, userAccount, mint, amount)

	case StepSwapBForA, StepSwapAForB:
		direction, amount := simpleswap.BForA, r.cfg.SwapBForAAmount
		if step == StepSwapAForB {
			direction, amount = simpleswap.AForB, r.cfg.SwapAForBAmount
		}
		result.Amount = amount
		if err := r.quoteSwap(ctx, direction, amount, result); err != nil {
			return err
		}
		inst, err = simpleswap.NewSwapInstruction(r.cfg.ProgramID, direction, simpleswap.SwapAccounts{
			User:              payer,
			UserTokenAccountA: r.cfg.UserTokenAccountA,
			UserTokenAccountB: r.cfg.UserTokenAccountB,
			MintA:             r.cfg.MintA,
			MintB:             r.cfg.MintB,
		}, amount)

	default:
		return fmt.Errorf("unknown step %q", step)
	}
	if err != nil {
		return fmt.Errorf("failed to build instruction: %w", err)
	}

	if err := r.submit(ctx, []solana.Instruction{inst}, result); err != nil {
		return err
	}
	if r.cfg.Simulate {
		return nil
	}

	switch step {
	case StepInitVaultB:
		balance, err := r.readBalance(ctx, BalanceVaultB, r.vaults.TokenB.Address, result)
		if err != nil {
			return err
		}
		log.Infof("Vault token B account balance: %d", balance)
	case StepSwapBForA, StepSwapAForB:
		userA, err := r.readBalance(ctx, BalanceUserA, r.cfg.UserTokenAccountA, result)
		if err != nil {
			return err
		}
		userB, err := r.readBalance(ctx, BalanceUserB, r.cfg.UserTokenAccountB, result)
		if err != nil {
			return err
		}
		log.Infof("User balances after swap: token A %d, token B %d", userA, userB)
	}
	return nil
}

// quoteSwap logs the vault balances and the output the program is expected to transfer
func (r *Runner) quoteSwap(ctx context.Context, direction simpleswap.Direction, amount uint64, result *StepResult) error {
	vaultA, err := r.readBalance(ctx, BalanceVaultA, r.vaults.TokenA.Address, result)
	if err != nil {
		return err
	}
	vaultB, err := r.readBalance(ctx, BalanceVaultB, r.vaults.TokenB.Address, result)
	if err != nil {
		return err
	}
	log.Infof("Vault token A account balance: %d", vaultA)
	log.Infof("Vault token B account balance: %d", vaultB)

	expected, err := simpleswap.SwapOutput(direction, vaultA, vaultB, amount)
	if err != nil {
		// the program would fail with the same error
		return fmt.Errorf("swap %s of %d rejected by pool math: %w", direction, amount, err)
	}
	result.ExpectedOutput = expected
	log.Infof("Swapping %d (%s), expected output %d", amount, direction, expected)
	return nil
}

func (r *Runner) readBalance(ctx context.Context, key string, account solana.PublicKey, result *StepResult) (uint64, error) {
	balance, err := r.chain.GetTokenBalance(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance of %s: %w", account, err)
	}
	result.Balances[key] = balance
	return balance, nil
}

func (r *Runner) submit(ctx context.Context, insts []solana.Instruction, result *StepResult) error {
	payer := r.signer.PublicKey()
	if !r.cfg.TipAccount.IsZero() && r.cfg.TipLamports > 0 {
		tip := system.NewTransferInstruction(r.cfg.TipLamports, payer, r.cfg.TipAccount).Build()
		insts = append(insts, tip)
	}

	blockhash, err := r.chain.LatestBlockhash(ctx)
	if err != nil {
		return err
	}

	tx, err := solana.NewTransaction(insts, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &r.signer
		}
		return nil
	}); err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}

	if r.cfg.Simulate {
		logs, err := r.chain.SimulateTransaction(ctx, tx)
		result.Logs = logs
		for _, line := range logs {
			log.Debugf("  %s", line)
		}
		if err != nil {
			return err
		}
		log.Infof("Simulation succeeded (%d log lines)", len(logs))
		return nil
	}

	sig, err := r.chain.SendTransaction(ctx, tx)
	if err != nil {
		return err
	}
	result.Signature = sig
	log.Infof("Use 'solana confirm -v %s' to see the logs", sig)

	if err := r.chain.ConfirmTransaction(ctx, sig, r.cfg.Commitment, r.cfg.ConfirmTimeout); err != nil {
		return err
	}
	log.Infof("Transaction %s reached %s", sig, r.cfg.Commitment)
	return nil
}
