package market

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"solarb/config"
	"solarb/flashloan"
	"solarb/quote"
)

// topCandidates is how many scanner survivors get re-priced at real size.
const topCandidates = 3

// VerifiedLeg is one hop re-quoted at the real trade notional.
type VerifiedLeg struct {
	Quote     *quote.Response
	AmountIn  uint64
	AmountOut uint64
}

// VerifiedOpportunity is an opportunity whose legs have been re-priced with
// the actual loan notional chained hop to hop. Only a VerifiedOpportunity may
// reach execution.
type VerifiedOpportunity struct {
	Opportunity
	Legs        [2]VerifiedLeg
	GrossProfit int64  // base minor units
	LoanFee     uint64 // base minor units
	Tip         uint64 // lamports, zero unless bundle settlement is enabled
	NetProfit   int64
	GrossPct    float64
}

// Verifier re-prices scanner candidates against live depth at the loan
// notional.
type Verifier struct {
	quoter Quoter
	cfg    *config.Config
	logger *zap.Logger
}

// NewVerifier creates a new opportunity verifier.
func NewVerifier(quoter Quoter, cfg *config.Config, logger *zap.Logger) *Verifier {
	return &Verifier{
		quoter: quoter,
		cfg:    cfg,
		logger: logger,
	}
}

// Verify re-quotes the top candidates at the real loan notional, feeding each
// hop's verified output into the next hop's input. A candidate is kept only
// when its gross profit percentage clears the threshold; net profit is
// informational and may be negative on a kept candidate. Survivors come back
// sorted descending by gross profit percentage.
func (v *Verifier) Verify(ctx context.Context, candidates []Opportunity, baseMint Token) []VerifiedOpportunity {
	if len(candidates) > topCandidates {
		candidates = candidates[:topCandidates]
	}

	var verified []VerifiedOpportunity
	notional := v.cfg.LoanNotional

	for _, cand := range candidates {
		first, err := v.quoter.GetQuote(ctx, quote.Request{
			InputMint:      baseMint.Mint,
			OutputMint:     cand.Token.Mint,
			Amount:         notional,
			SlippageBps:    v.cfg.SlippageBps,
			OnlyDirect:     v.cfg.OnlyDirect,
			MaxAccounts:    v.cfg.MaxAccounts,
			PlatformFeeBps: v.cfg.PlatformFeeBps,
		})
		if err != nil {
			v.logger.Debug("Verification quote failed, skipping candidate",
				zap.String("token", cand.Token.Symbol),
				zap.Error(err))
			continue
		}

		second, err := v.quoter.GetQuote(ctx, quote.Request{
			InputMint:      cand.Token.Mint,
			OutputMint:     baseMint.Mint,
			Amount:         first.OutAmount,
			SlippageBps:    v.cfg.SlippageBps,
			OnlyDirect:     v.cfg.OnlyDirect,
			MaxAccounts:    v.cfg.MaxAccounts,
			PlatformFeeBps: v.cfg.PlatformFeeBps,
		})
		if err != nil {
			v.logger.Debug("Verification quote failed, skipping candidate",
				zap.String("token", cand.Token.Symbol),
				zap.Error(err))
			continue
		}

		gross := int64(second.OutAmount) - int64(notional)
		fee := flashloan.Fee(notional, v.cfg.FlashLoan.FeeRate)
		tip := v.settlementTip(gross)
		net := gross - int64(fee) - int64(tip)
		grossPct := float64(gross) / float64(notional) * 100

		// Execution gates on gross profit only; net is recorded but does not
		// veto the trade.
		if grossPct < v.cfg.MinProfitPct {
			v.logger.Debug("Candidate below threshold at real size",
				zap.String("token", cand.Token.Symbol),
				zap.Float64("gross_pct", grossPct))
			continue
		}
		if net < 0 {
			v.logger.Warn("Executing with negative net profit",
				zap.String("token", cand.Token.Symbol),
				zap.Int64("gross", gross),
				zap.Int64("net", net))
		}

		verified = append(verified, VerifiedOpportunity{
			Opportunity: cand,
			Legs: [2]VerifiedLeg{
				{Quote: first, AmountIn: notional, AmountOut: first.OutAmount},
				{Quote: second, AmountIn: first.OutAmount, AmountOut: second.OutAmount},
			},
			GrossProfit: gross,
			LoanFee:     fee,
			Tip:         tip,
			NetProfit:   net,
			GrossPct:    grossPct,
		})
	}

	sort.SliceStable(verified, func(a, b int) bool {
		return verified[a].GrossPct > verified[b].GrossPct
	})
	return verified
}

// settlementTip returns the block-engine tip for bundle settlement, or zero
// when bundles are disabled.
func (v *Verifier) settlementTip(gross int64) uint64 {
	if !v.cfg.Bundle.Enabled {
		return 0
	}
	share := int64(math.Floor(float64(gross) * v.cfg.Bundle.TipRate))
	if share < int64(v.cfg.Bundle.MinTip) {
		return v.cfg.Bundle.MinTip
	}
	return uint64(share)
}
