package assembler

import (
	"github.com/gagliardetto/solana-go"
)

// Encoder compiles an instruction list into a wire transaction. The two
// variants differ only in how account addresses are referenced; branching
// stays out of the assembler itself.
type Encoder interface {
	Name() string
	Encode(instructions []solana.Instruction, payer solana.PublicKey, blockhash solana.Hash) (*solana.Transaction, error)
}

// LegacyEncoder produces the legacy message format with full account
// addresses inline.
type LegacyEncoder struct{}

func (LegacyEncoder) Name() string { return "legacy" }

func (LegacyEncoder) Encode(instructions []solana.Instruction, payer solana.PublicKey, blockhash solana.Hash) (*solana.Transaction, error) {
	return solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer))
}

// CompactedEncoder produces the versioned message format, replacing
// addresses found in the pre-provisioned lookup tables with short indexes.
type CompactedEncoder struct {
	Tables map[solana.PublicKey]solana.PublicKeySlice
}

func (CompactedEncoder) Name() string { return "compacted" }

func (e CompactedEncoder) Encode(instructions []solana.Instruction, payer solana.PublicKey, blockhash solana.Hash) (*solana.Transaction, error) {
	return solana.NewTransaction(instructions, blockhash,
		solana.TransactionPayer(payer),
		solana.TransactionAddressTables(e.Tables),
	)
}
