package market

import (
	"sort"

	"go.uber.org/zap"
)

// Opportunity is a profitable two-hop cycle found at probe size. Cycles are
// always base -> token -> base; the token index identifies the middle hop.
type Opportunity struct {
	TokenIndex int
	Token      Token
	Forward    Edge // base -> token
	Reverse    Edge // token -> base
	RoundTrip  float64
	ProfitPct  float64
}

// Scanner finds two-hop cycles whose round-trip rate clears the configured
// minimum profit percentage.
type Scanner struct {
	minProfitPct float64
	logger       *zap.Logger
}

// NewScanner creates a new opportunity scanner.
func NewScanner(minProfitPct float64, logger *zap.Logger) *Scanner {
	return &Scanner{
		minProfitPct: minProfitPct,
		logger:       logger,
	}
}

// Scan walks the graph and returns surviving opportunities sorted descending
// by profit percentage, stable by discovery order. An empty result signals
// no opportunity.
func (s *Scanner) Scan(g *Graph) []Opportunity {
	var found []Opportunity

	for i := 1; i < len(g.Tokens); i++ {
		fwd, ok := g.EdgeBetween(0, i)
		if !ok {
			continue
		}
		rev, ok := g.EdgeBetween(i, 0)
		if !ok {
			continue
		}

		roundTrip := fwd.Rate * rev.Rate
		profitPct := (roundTrip - 1) * 100
		if profitPct < s.minProfitPct {
			continue
		}

		s.logger.Debug("Cycle above threshold",
			zap.String("token", g.Tokens[i].Symbol),
			zap.Float64("round_trip", roundTrip),
			zap.Float64("profit_pct", profitPct))

		found = append(found, Opportunity{
			TokenIndex: i,
			Token:      g.Tokens[i],
			Forward:    fwd,
			Reverse:    rev,
			RoundTrip:  roundTrip,
			ProfitPct:  profitPct,
		})
	}

	sort.SliceStable(found, func(a, b int) bool {
		return found[a].ProfitPct > found[b].ProfitPct
	})
	return found
}
