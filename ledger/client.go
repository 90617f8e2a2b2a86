// Package ledger wraps the chain RPC surface the agent needs: balances,
// blockhashes, lookup tables, raw submission and signature polling.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

// ErrUnconfirmed is returned when a signature does not reach confirmation
// within the polling window. The transaction must not be resubmitted
// verbatim after this.
var ErrUnconfirmed = errors.New("transaction unconfirmed after timeout")

const tableCacheSize = 32

// Client is the ledger RPC client.
type Client struct {
	rpc        *rpc.Client
	logger     *zap.Logger
	tableCache *lru.Cache // lookup table pubkey -> solana.PublicKeySlice
}

// NewClient creates a ledger client for the given RPC endpoint.
func NewClient(endpoint string, logger *zap.Logger) *Client {
	cache, _ := lru.New(tableCacheSize)
	return &Client{
		rpc:        rpc.New(endpoint),
		logger:     logger,
		tableCache: cache,
	}
}

// Balance returns the lamport balance of an account.
func (c *Client) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, account, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return out.Value, nil
}

// LatestBlockhash returns the most recent network checkpoint.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

// SendTransaction submits a signed transaction with preflight checks
// disabled. Skipping the simulation avoids stale-state false negatives and
// keeps submission latency down.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction, maxRetries uint) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight: true,
		MaxRetries:    &maxRetries,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// ConfirmSignature polls signature status until confirmation, the timeout,
// or ctx cancellation. There is no in-flight cancellation; the loop simply
// gives up and reports ErrUnconfirmed.
func (c *Client) ConfirmSignature(ctx context.Context, sig solana.Signature, timeout, pollDelay time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			c.logger.Debug("Signature status query failed", zap.Error(err))
		} else if len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction failed on chain: %v", status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollDelay):
		}
	}

	return ErrUnconfirmed
}

// VerifyTokenAccounts checks that the owner holds an associated token
// account for every mint, issuing the lookups concurrently and awaiting them
// as a batch.
func (c *Client) VerifyTokenAccounts(ctx context.Context, owner solana.PublicKey, mints []solana.PublicKey) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(mints))

	for _, mint := range mints {
		wg.Add(1)
		go func(mint solana.PublicKey) {
			defer wg.Done()
			ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
			if err != nil {
				errCh <- fmt.Errorf("failed to derive token account for %s: %w", mint, err)
				return
			}
			if _, err := c.rpc.GetAccountInfo(ctx, ata); err != nil {
				errCh <- fmt.Errorf("token account missing for mint %s: %w", mint, err)
			}
		}(mint)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}
