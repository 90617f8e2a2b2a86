// Package assembler builds the minimal on-chain instruction sequence for a
// verified two-hop trade and enforces the wire-size ceiling.
package assembler

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solarb/config"
	"solarb/flashloan"
)

// ErrOversize is returned when the serialized transaction would exceed the
// wire-size ceiling.
var ErrOversize = errors.New("transaction exceeds wire-size ceiling")

// BuildInput carries everything needed to assemble one trade transaction.
type BuildInput struct {
	Payer             solana.PublicKey
	PayerTokenAccount solana.PublicKey
	Blockhash         solana.Hash
	LoanAmount        uint64
	RepayAmount       uint64 // loan plus fee
	SwapFirst         solana.Instruction
	SwapSecond        solana.Instruction
}

// Assembler builds trade transactions in a fixed six-slot layout:
// priority fee, compute limit, borrow, swap, swap, repay.
type Assembler struct {
	loan   *flashloan.Program
	cfg    *config.Config
	logger *zap.Logger
}

// New creates a transaction assembler.
func New(loan *flashloan.Program, cfg *config.Config, logger *zap.Logger) *Assembler {
	return &Assembler{
		loan:   loan,
		cfg:    cfg,
		logger: logger,
	}
}

// Instructions returns the final ordered instruction list. The repay
// instruction's borrow-index byte is computed against this actual ordering,
// with the two budget instructions occupying the leading slots.
func (a *Assembler) Instructions(in BuildInput) []solana.Instruction {
	instructions := []solana.Instruction{
		SetComputeUnitPrice(a.cfg.ComputeUnitPrice),
		SetComputeUnitLimit(a.cfg.ComputeUnitLimit),
	}

	borrowIndex := uint8(len(instructions))
	instructions = append(instructions,
		a.loan.Borrow(in.LoanAmount, in.Payer, in.PayerTokenAccount),
		in.SwapFirst,
		in.SwapSecond,
		a.loan.Repay(in.RepayAmount, borrowIndex, in.Payer, in.PayerTokenAccount),
	)
	return instructions
}

// Assemble compiles the instruction list with the given encoder, serializes
// it unsigned and rejects the result if it exceeds the size ceiling.
func (a *Assembler) Assemble(in BuildInput, enc Encoder) (*solana.Transaction, error) {
	tx, err := enc.Encode(a.Instructions(in), in.Payer, in.Blockhash)
	if err != nil {
		return nil, fmt.Errorf("%s encoding failed: %w", enc.Name(), err)
	}

	size, err := unsignedWireSize(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s transaction: %w", enc.Name(), err)
	}
	if size > config.MaxTransactionSize {
		a.logger.Debug("Assembled transaction oversize",
			zap.String("encoder", enc.Name()),
			zap.Int("size", size),
			zap.Int("ceiling", config.MaxTransactionSize))
		return nil, fmt.Errorf("%w: %d bytes (%s)", ErrOversize, size, enc.Name())
	}

	a.logger.Debug("Assembled transaction",
		zap.String("encoder", enc.Name()),
		zap.Int("size", size))
	return tx, nil
}

// unsignedWireSize measures the serialized length with zeroed signature
// slots, so the check reflects the final signed size.
func unsignedWireSize(tx *solana.Transaction) (int, error) {
	saved := tx.Signatures
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	data, err := tx.MarshalBinary()
	tx.Signatures = saved
	if err != nil {
		return 0, err
	}
	return len(data), nil
}
