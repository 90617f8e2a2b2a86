// Package flashloan builds the borrow and repay instructions for the
// uncollateralized single-transaction loan protocol.
package flashloan

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
)

// Method discriminators, fixed by the loan protocol.
var (
	borrowDiscriminator = [8]byte{0x87, 0xe2, 0x21, 0x9d, 0xc3, 0x5b, 0x8e, 0x13}
	repayDiscriminator  = [8]byte{0xb9, 0x40, 0x5f, 0xcf, 0x06, 0xa5, 0x9e, 0x59}
)

// Program wires the loan protocol's program and reserve accounts.
type Program struct {
	ProgramID solana.PublicKey
	Reserve   solana.PublicKey
}

// NewProgram creates a flash loan program binding.
func NewProgram(programID, reserve solana.PublicKey) *Program {
	return &Program{ProgramID: programID, Reserve: reserve}
}

// BorrowData encodes a borrow payload: discriminator(8) || amount(8, LE).
func BorrowData(amount uint64) []byte {
	data := make([]byte, 16)
	copy(data[:8], borrowDiscriminator[:])
	binary.LittleEndian.PutUint64(data[8:16], amount)
	return data
}

// RepayData encodes a repay payload: discriminator(8) || amount(8, LE) ||
// borrowIndex(1). The trailing byte is the zero-based position of the
// matching borrow instruction within the final instruction list, so the
// protocol can pair borrow and repay inside one transaction.
func RepayData(amount uint64, borrowIndex uint8) []byte {
	data := make([]byte, 17)
	copy(data[:8], repayDiscriminator[:])
	binary.LittleEndian.PutUint64(data[8:16], amount)
	data[16] = borrowIndex
	return data
}

// Borrow builds the loan-borrow instruction for the given borrower token
// account.
func (p *Program) Borrow(amount uint64, borrower, borrowerTokenAccount solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(p.ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(p.Reserve, true, false),
		solana.NewAccountMeta(borrowerTokenAccount, true, false),
		solana.NewAccountMeta(borrower, false, true),
	}, BorrowData(amount))
}

// Repay builds the loan-repay instruction. borrowIndex must reflect the
// actual final ordering of the transaction's instruction list.
func (p *Program) Repay(amount uint64, borrowIndex uint8, borrower, borrowerTokenAccount solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(p.ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(p.Reserve, true, false),
		solana.NewAccountMeta(borrowerTokenAccount, true, false),
		solana.NewAccountMeta(borrower, false, true),
	}, RepayData(amount, borrowIndex))
}

// Fee returns the loan fee for a notional at the given rate, rounded up.
func Fee(notional uint64, feeRate float64) uint64 {
	return uint64(math.Ceil(float64(notional) * feeRate))
}

// ParseBorrowIndex extracts the borrow-index byte from an encoded repay
// payload.
func ParseBorrowIndex(repayData []byte) (uint8, error) {
	if len(repayData) != 17 {
		return 0, fmt.Errorf("repay payload must be 17 bytes, got %d", len(repayData))
	}
	return repayData[16], nil
}
