package quote

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Response is one priced route from the quoting service. Raw carries the
// service's response verbatim so it can be replayed into the
// swap-instruction request unchanged.
type Response struct {
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
	InAmount   uint64
	OutAmount  uint64
	Venues     []string
	Raw        json.RawMessage
}

// quoteEnvelope covers the response fields we read. Older deployments nest
// venue labels under marketInfos instead of routePlan; decode both and
// tolerate either being absent.
type quoteEnvelope struct {
	OutAmount string `json:"outAmount"`
	RoutePlan []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
	MarketInfos []struct {
		Label string `json:"label"`
	} `json:"marketInfos"`
}

func (e *quoteEnvelope) venues() []string {
	var out []string
	for _, step := range e.RoutePlan {
		if step.SwapInfo.Label != "" {
			out = append(out, step.SwapInfo.Label)
		}
	}
	for _, step := range e.MarketInfos {
		if step.Label != "" {
			out = append(out, step.Label)
		}
	}
	return out
}

// InstructionData is the wire form of one instruction returned by the
// swap-instruction endpoint.
type InstructionData struct {
	ProgramID string        `json:"programId"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      string        `json:"data"` // base64
}

type AccountMeta struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

// SwapInstructions is the decoded swap-instruction response. Setup and
// cleanup instructions are retained so callers can decide to drop them.
type SwapInstructions struct {
	Setup   []InstructionData `json:"setupInstructions"`
	Swap    InstructionData   `json:"swapInstruction"`
	Cleanup *InstructionData  `json:"cleanupInstruction"`
}

// Decode converts wire instruction data into a ledger instruction.
func (in *InstructionData) Decode() (solana.Instruction, error) {
	program, err := solana.PublicKeyFromBase58(in.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid program id: %w", err)
	}

	accounts := make(solana.AccountMetaSlice, 0, len(in.Accounts))
	for _, a := range in.Accounts {
		key, err := solana.PublicKeyFromBase58(a.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("invalid account %q: %w", a.Pubkey, err)
		}
		accounts = append(accounts, solana.NewAccountMeta(key, a.IsWritable, a.IsSigner))
	}

	data, err := base64.StdEncoding.DecodeString(in.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid instruction data: %w", err)
	}

	return solana.NewInstruction(program, accounts, data), nil
}
