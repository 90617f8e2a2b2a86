// Package market builds the directed rate graph over the base asset and the
// configured tokens, scans it for profitable two-hop cycles and re-prices the
// survivors at the real trade notional.
package market

import (
	"context"
	"math"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solarb/config"
	"solarb/quote"
)

// Token is one tradable asset. Index 0 in a Graph is always the base asset.
type Token struct {
	Mint     solana.PublicKey
	Symbol   string
	Decimals uint8
}

// Edge is one priced direction between two tokens at the probe notional.
// Edges are produced fresh each cycle and never mutated.
type Edge struct {
	From      int
	To        int
	Rate      float64 // destination units per source unit
	QuotedOut uint64  // raw quoted output, minor units
	ProbeIn   uint64  // input amount used for the probe, minor units
	Venues    []string
}

// Graph is the edge set of one scan cycle, restricted to base<->token pairs.
// An N-token market has O(N) two-hop cycles through the base asset; scanning
// only those avoids O(N^2) quote calls.
type Graph struct {
	Tokens []Token
	edges  map[[2]int]Edge
}

// EdgeBetween returns the edge from one token index to another, if present.
func (g *Graph) EdgeBetween(from, to int) (Edge, bool) {
	e, ok := g.edges[[2]int{from, to}]
	return e, ok
}

// Quoter is the slice of the quoting client the market layer depends on.
type Quoter interface {
	GetQuote(ctx context.Context, req quote.Request) (*quote.Response, error)
}

// GraphBuilder queries the quoting service for base<->token rates.
type GraphBuilder struct {
	quoter Quoter
	tokens []Token
	cfg    *config.Config
	logger *zap.Logger
}

// NewGraphBuilder creates a builder over the configured token set. The base
// token occupies index 0.
func NewGraphBuilder(quoter Quoter, cfg *config.Config, logger *zap.Logger) *GraphBuilder {
	tokens := make([]Token, 0, len(cfg.Tokens)+1)
	tokens = append(tokens, Token{
		Mint:     solana.MustPublicKeyFromBase58(cfg.BaseToken.Mint),
		Symbol:   cfg.BaseToken.Symbol,
		Decimals: cfg.BaseToken.Decimals,
	})
	for _, t := range cfg.Tokens {
		tokens = append(tokens, Token{
			Mint:     solana.MustPublicKeyFromBase58(t.Mint),
			Symbol:   t.Symbol,
			Decimals: t.Decimals,
		})
	}
	return &GraphBuilder{
		quoter: quoter,
		tokens: tokens,
		cfg:    cfg,
		logger: logger,
	}
}

// Build issues two probe quotes per non-base token and returns the resulting
// edge set. A failed quote omits that edge; the scanner tolerates holes.
func (b *GraphBuilder) Build(ctx context.Context) *Graph {
	g := &Graph{
		Tokens: b.tokens,
		edges:  make(map[[2]int]Edge),
	}

	for i := 1; i < len(b.tokens); i++ {
		fwd, err := b.quoter.GetQuote(ctx, quote.Request{
			InputMint:      b.tokens[0].Mint,
			OutputMint:     b.tokens[i].Mint,
			Amount:         b.cfg.ProbeNotional,
			SlippageBps:    b.cfg.SlippageBps,
			OnlyDirect:     b.cfg.OnlyDirect,
			MaxAccounts:    b.cfg.MaxAccounts,
			PlatformFeeBps: b.cfg.PlatformFeeBps,
		})
		if err != nil {
			b.logger.Debug("Forward probe failed",
				zap.String("token", b.tokens[i].Symbol),
				zap.Error(err))
			continue
		}
		g.edges[[2]int{0, i}] = Edge{
			From:      0,
			To:        i,
			Rate:      rateOf(b.tokens[0], b.tokens[i], b.cfg.ProbeNotional, fwd.OutAmount),
			QuotedOut: fwd.OutAmount,
			ProbeIn:   b.cfg.ProbeNotional,
			Venues:    fwd.Venues,
		}

		// Reverse probe uses the forward quoted output so both legs reflect
		// the same underlying size.
		rev, err := b.quoter.GetQuote(ctx, quote.Request{
			InputMint:      b.tokens[i].Mint,
			OutputMint:     b.tokens[0].Mint,
			Amount:         fwd.OutAmount,
			SlippageBps:    b.cfg.SlippageBps,
			OnlyDirect:     b.cfg.OnlyDirect,
			MaxAccounts:    b.cfg.MaxAccounts,
			PlatformFeeBps: b.cfg.PlatformFeeBps,
		})
		if err != nil {
			b.logger.Debug("Reverse probe failed",
				zap.String("token", b.tokens[i].Symbol),
				zap.Error(err))
			continue
		}
		g.edges[[2]int{i, 0}] = Edge{
			From:      i,
			To:        0,
			Rate:      rateOf(b.tokens[i], b.tokens[0], fwd.OutAmount, rev.OutAmount),
			QuotedOut: rev.OutAmount,
			ProbeIn:   fwd.OutAmount,
			Venues:    rev.Venues,
		}
	}

	return g
}

// rateOf converts raw minor-unit amounts into a decimal exchange rate.
func rateOf(from, to Token, amountIn, amountOut uint64) float64 {
	in := float64(amountIn) / math.Pow10(int(from.Decimals))
	out := float64(amountOut) / math.Pow10(int(to.Decimals))
	if in == 0 {
		return 0
	}
	return out / in
}
