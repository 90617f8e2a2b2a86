package ledger

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Lookup table account layout: a 56-byte metadata header followed by a
// packed run of 32-byte addresses.
const lookupTableHeaderLen = 56

// LookupTables fetches and decodes the given address lookup tables,
// serving repeats from the LRU cache. Table contents only ever grow, so a
// cached copy is usable for encoding even if slightly stale.
func (c *Client) LookupTables(ctx context.Context, keys []solana.PublicKey) (map[solana.PublicKey]solana.PublicKeySlice, error) {
	tables := make(map[solana.PublicKey]solana.PublicKeySlice, len(keys))

	for _, key := range keys {
		if cached, ok := c.tableCache.Get(key); ok {
			tables[key] = cached.(solana.PublicKeySlice)
			continue
		}

		info, err := c.rpc.GetAccountInfo(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch lookup table %s: %w", key, err)
		}
		addresses, err := decodeLookupTable(info.Value.Data.GetBinary())
		if err != nil {
			return nil, fmt.Errorf("failed to decode lookup table %s: %w", key, err)
		}

		c.logger.Debug("Loaded lookup table",
			zap.String("table", key.String()),
			zap.Int("addresses", len(addresses)))

		c.tableCache.Add(key, addresses)
		tables[key] = addresses
	}

	return tables, nil
}

func decodeLookupTable(data []byte) (solana.PublicKeySlice, error) {
	if len(data) < lookupTableHeaderLen {
		return nil, fmt.Errorf("account data too short for a lookup table: %d bytes", len(data))
	}
	body := data[lookupTableHeaderLen:]
	if len(body)%solana.PublicKeyLength != 0 {
		return nil, fmt.Errorf("address region not a multiple of %d bytes", solana.PublicKeyLength)
	}

	addresses := make(solana.PublicKeySlice, 0, len(body)/solana.PublicKeyLength)
	for off := 0; off < len(body); off += solana.PublicKeyLength {
		addresses = append(addresses, solana.PublicKeyFromBytes(body[off:off+solana.PublicKeyLength]))
	}
	return addresses, nil
}
