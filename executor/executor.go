// Package executor signs, submits and supervises trade settlement over the
// direct-broadcast and atomic-bundle paths.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"go.uber.org/zap"

	"solarb/assembler"
	"solarb/config"
	"solarb/flashloan"
	"solarb/ledger"
	"solarb/market"
	"solarb/quote"
)

// State labels the stages of one trade attempt. A failure Result carries the
// stage the attempt failed in; Confirmed and TimedOut are the remaining
// terminal outcomes.
type State string

const (
	StateQuoting              State = "quoting"
	StateAssembling           State = "assembling"
	StateSigning              State = "signing"
	StateSubmitting           State = "submitting"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateConfirmed            State = "confirmed"
	StateFailed               State = "failed"
	StateTimedOut             State = "timed_out"
)

// Settlement methods.
const (
	MethodDirect = "direct"
	MethodBundle = "bundle"
)

// Result is the terminal outcome of one trade attempt. A non-nil Err is
// non-fatal to the process; the orchestrator logs it and moves on.
type Result struct {
	State     State
	Method    string
	Signature solana.Signature
	BundleID  string
	Err       error
}

// Ledger is the chain surface the dispatcher depends on.
type Ledger interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction, maxRetries uint) (solana.Signature, error)
	ConfirmSignature(ctx context.Context, sig solana.Signature, timeout, pollDelay time.Duration) error
	VerifyTokenAccounts(ctx context.Context, owner solana.PublicKey, mints []solana.PublicKey) error
	LookupTables(ctx context.Context, keys []solana.PublicKey) (map[solana.PublicKey]solana.PublicKeySlice, error)
}

// Swapper is the slice of the quoting client the dispatcher depends on.
type Swapper interface {
	GetSwapInstructions(ctx context.Context, user solana.PublicKey, computeUnitPrice uint64, q *quote.Response) (*quote.SwapInstructions, error)
}

// Dispatcher drives one verified opportunity through quoting, assembly,
// signing, submission and confirmation.
type Dispatcher struct {
	cfg       *config.Config
	swapper   Swapper
	chain     Ledger
	bundles   *BundleClient
	assembler *assembler.Assembler
	signer    solana.PrivateKey
	logger    *zap.Logger
}

// NewDispatcher creates an execution dispatcher.
func NewDispatcher(cfg *config.Config, swapper Swapper, chain Ledger, bundles *BundleClient, signer solana.PrivateKey, logger *zap.Logger) *Dispatcher {
	loan := flashloan.NewProgram(
		solana.MustPublicKeyFromBase58(cfg.FlashLoan.Program),
		solana.MustPublicKeyFromBase58(cfg.FlashLoan.Reserve),
	)
	return &Dispatcher{
		cfg:       cfg,
		swapper:   swapper,
		chain:     chain,
		bundles:   bundles,
		assembler: assembler.New(loan, cfg, logger),
		signer:    signer,
		logger:    logger,
	}
}

func failed(state State, method string, err error) *Result {
	return &Result{State: state, Method: method, Err: err}
}

// Execute runs one trade attempt to a terminal state.
func (d *Dispatcher) Execute(ctx context.Context, opp *market.VerifiedOpportunity) *Result {
	method := MethodDirect
	if d.cfg.Bundle.Enabled {
		method = MethodBundle
	}

	// Execution only ever settles two-hop cycles; anything else is a
	// programming error upstream.
	if opp.Legs[0].Quote == nil || opp.Legs[1].Quote == nil {
		return failed(StateFailed, method, fmt.Errorf("opportunity must carry exactly two verified edges"))
	}

	var tables map[solana.PublicKey]solana.PublicKeySlice
	if keys, err := d.cfg.LookupTableKeys(); err != nil {
		return failed(StateQuoting, method, err)
	} else if len(keys) > 0 {
		tables, err = d.chain.LookupTables(ctx, keys)
		if err != nil {
			if method == MethodBundle {
				return failed(StateQuoting, method, fmt.Errorf("bundle settlement requires lookup tables: %w", err))
			}
			d.logger.Warn("Lookup tables unavailable, using legacy encoding", zap.Error(err))
			tables = nil
		}
	}
	// Bundle settlement hard-requires a non-empty compaction table set.
	if method == MethodBundle && len(tables) == 0 {
		return failed(StateQuoting, method, fmt.Errorf("bundle settlement requires a non-empty lookup table set"))
	}

	payer := d.signer.PublicKey()

	// Confirm token accounts for every unique token touched by the cycle,
	// as one concurrent batch, before building anything.
	mints := []solana.PublicKey{opp.Legs[0].Quote.InputMint, opp.Legs[0].Quote.OutputMint}
	if err := d.chain.VerifyTokenAccounts(ctx, payer, mints); err != nil {
		return failed(StateQuoting, method, err)
	}

	// Quoting: turn each verified leg into an executable swap instruction.
	// Setup and cleanup sub-instructions are dropped to minimize size.
	swaps := make([]solana.Instruction, 2)
	for i, leg := range opp.Legs {
		si, err := d.swapper.GetSwapInstructions(ctx, payer, d.cfg.ComputeUnitPrice, leg.Quote)
		if err != nil {
			return failed(StateQuoting, method, fmt.Errorf("swap instruction fetch failed for leg %d: %w", i, err))
		}
		inst, err := si.Swap.Decode()
		if err != nil {
			return failed(StateQuoting, method, fmt.Errorf("swap instruction decode failed for leg %d: %w", i, err))
		}
		swaps[i] = inst
	}

	blockhash, err := d.chain.LatestBlockhash(ctx)
	if err != nil {
		return failed(StateQuoting, method, err)
	}

	tokenAccount, _, err := solana.FindAssociatedTokenAddress(payer, opp.Legs[0].Quote.InputMint)
	if err != nil {
		return failed(StateQuoting, method, err)
	}

	input := assembler.BuildInput{
		Payer:             payer,
		PayerTokenAccount: tokenAccount,
		Blockhash:         blockhash,
		LoanAmount:        opp.Legs[0].AmountIn,
		RepayAmount:       opp.Legs[0].AmountIn + opp.LoanFee,
		SwapFirst:         swaps[0],
		SwapSecond:        swaps[1],
	}

	if method == MethodBundle {
		return d.executeBundle(ctx, opp, input, tables)
	}
	return d.executeDirect(ctx, input, tables)
}

// executeDirect prefers the compacted form and falls back to legacy on any
// assembler failure, including oversize.
func (d *Dispatcher) executeDirect(ctx context.Context, input assembler.BuildInput, tables map[solana.PublicKey]solana.PublicKeySlice) *Result {
	var tx *solana.Transaction
	var err error

	if len(tables) > 0 {
		tx, err = d.assembler.Assemble(input, assembler.CompactedEncoder{Tables: tables})
		if err != nil {
			d.logger.Debug("Compacted assembly failed, falling back to legacy", zap.Error(err))
		}
	}
	if tx == nil {
		tx, err = d.assembler.Assemble(input, assembler.LegacyEncoder{})
		if err != nil {
			return failed(StateAssembling, MethodDirect, err)
		}
	}

	if err := d.sign(tx); err != nil {
		return failed(StateSigning, MethodDirect, err)
	}

	sig, err := d.chain.SendTransaction(ctx, tx, d.cfg.SubmitRetries)
	if err != nil {
		return failed(StateSubmitting, MethodDirect, err)
	}

	d.logger.Info("Transaction submitted",
		zap.String("signature", sig.String()))

	if err := d.chain.ConfirmSignature(ctx, sig, d.cfg.ConfirmTimeout, d.cfg.ConfirmPollDelay); err != nil {
		if errors.Is(err, ledger.ErrUnconfirmed) {
			return &Result{State: StateTimedOut, Method: MethodDirect, Signature: sig, Err: err}
		}
		return &Result{State: StateAwaitingConfirmation, Method: MethodDirect, Signature: sig, Err: err}
	}

	return &Result{State: StateConfirmed, Method: MethodDirect, Signature: sig}
}

// executeBundle assembles the trade and a separate tip payment, then submits
// both as one atomic unit. The block engine settles out-of-band, so
// submission success is terminal for this mode.
func (d *Dispatcher) executeBundle(ctx context.Context, opp *market.VerifiedOpportunity, input assembler.BuildInput, tables map[solana.PublicKey]solana.PublicKeySlice) *Result {
	tx, err := d.assembler.Assemble(input, assembler.CompactedEncoder{Tables: tables})
	if err != nil {
		return failed(StateAssembling, MethodBundle, err)
	}

	tipTx, err := d.buildTipTransaction(input.Blockhash, opp.Tip)
	if err != nil {
		return failed(StateAssembling, MethodBundle, err)
	}

	if err := d.sign(tx); err != nil {
		return failed(StateSigning, MethodBundle, err)
	}
	if err := d.sign(tipTx); err != nil {
		return failed(StateSigning, MethodBundle, err)
	}

	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return failed(StateSubmitting, MethodBundle, err)
	}
	tipBytes, err := tipTx.MarshalBinary()
	if err != nil {
		return failed(StateSubmitting, MethodBundle, err)
	}

	bundleID, err := d.bundles.SendBundle(ctx, [][]byte{txBytes, tipBytes})
	if err != nil {
		return failed(StateSubmitting, MethodBundle, err)
	}

	d.logger.Info("Bundle submitted",
		zap.String("bundle_id", bundleID),
		zap.Uint64("tip", opp.Tip))
	return &Result{State: StateConfirmed, Method: MethodBundle, BundleID: bundleID}
}

// buildTipTransaction pays the block-engine tip to the fixed fee collector.
func (d *Dispatcher) buildTipTransaction(blockhash solana.Hash, tip uint64) (*solana.Transaction, error) {
	payer := d.signer.PublicKey()
	tipAccount := solana.MustPublicKeyFromBase58(d.cfg.Bundle.TipAccount)

	transfer := system.NewTransferInstruction(tip, payer, tipAccount).Build()
	return solana.NewTransaction(
		[]solana.Instruction{transfer},
		blockhash,
		solana.TransactionPayer(payer),
	)
}

func (d *Dispatcher) sign(tx *solana.Transaction) error {
	payer := d.signer.PublicKey()
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &d.signer
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}
