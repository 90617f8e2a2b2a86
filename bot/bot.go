// Package bot drives the scan -> verify -> execute cycle on an interval and
// accumulates run statistics.
package bot

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"solarb/config"
	"solarb/executor"
	"solarb/history"
	"solarb/market"
)

// fingerprintTTL bounds how long a seen opportunity suppresses repeat logs.
const fingerprintTTL = 10 * time.Minute

// Executor is the dispatch surface the orchestrator depends on.
type Executor interface {
	Execute(ctx context.Context, opp *market.VerifiedOpportunity) *executor.Result
}

// Stats accumulates counters across the run.
type Stats struct {
	Cycles        uint64
	Opportunities uint64
	Verified      uint64
	Attempts      uint64
	Confirmed     uint64
	Failed        uint64
	TimedOut      uint64
	GrossProfit   int64
	NetProfit     int64
}

// Bot is the check-loop orchestrator. Checks are strictly sequential: the
// next cycle is scheduled only after the previous one finishes, with a delay.
type Bot struct {
	cfg        *config.Config
	builder    *market.GraphBuilder
	scanner    *market.Scanner
	verifier   *market.Verifier
	dispatcher Executor
	recorder   history.Recorder
	metrics    *Metrics
	logger     *zap.Logger

	mu    sync.Mutex
	stats Stats
	seen  map[uint64]time.Time
}

// New creates the orchestrator.
func New(cfg *config.Config, builder *market.GraphBuilder, scanner *market.Scanner, verifier *market.Verifier, dispatcher Executor, recorder history.Recorder, metrics *Metrics, logger *zap.Logger) *Bot {
	return &Bot{
		cfg:        cfg,
		builder:    builder,
		scanner:    scanner,
		verifier:   verifier,
		dispatcher: dispatcher,
		recorder:   recorder,
		metrics:    metrics,
		logger:     logger,
		seen:       make(map[uint64]time.Time),
	}
}

// Run drives check cycles until ctx is cancelled. A cycle that ends in an
// error backs off longer than a clean miss.
func (b *Bot) Run(ctx context.Context) error {
	if b.cfg.MetricsListen != "" {
		go b.serveMetrics(ctx)
	}

	for {
		err := b.runCycle(ctx)

		delay := b.cfg.CheckInterval
		if err != nil {
			b.logger.Error("Check cycle failed", zap.Error(err))
			delay = b.cfg.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			b.logFinalStats()
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// runCycle performs one scan -> verify -> execute pass. A cycle with no
// opportunity is a clean miss, not an error.
func (b *Bot) runCycle(ctx context.Context) error {
	b.metrics.Cycles.Inc()
	b.mu.Lock()
	b.stats.Cycles++
	b.mu.Unlock()

	graph := b.builder.Build(ctx)
	candidates := b.scanner.Scan(graph)
	if len(candidates) == 0 {
		b.logger.Debug("No opportunity this cycle")
		return nil
	}

	b.metrics.Opportunities.Add(float64(len(candidates)))
	b.mu.Lock()
	b.stats.Opportunities += uint64(len(candidates))
	b.mu.Unlock()
	for i := range candidates {
		b.logOpportunity(&candidates[i])
	}

	verified := b.verifier.Verify(ctx, candidates, graph.Tokens[0])
	if len(verified) == 0 {
		b.logger.Debug("No candidate survived verification")
		return nil
	}

	b.metrics.Verified.Add(float64(len(verified)))
	b.mu.Lock()
	b.stats.Verified += uint64(len(verified))
	b.mu.Unlock()

	best := verified[0]
	start := time.Now()
	result := b.dispatcher.Execute(ctx, &best)
	b.metrics.AttemptLatency.Observe(time.Since(start).Seconds())
	b.metrics.Attempts.WithLabelValues(result.Method, string(result.State)).Inc()

	b.record(&best, result)
	b.tally(&best, result)

	if result.Err != nil {
		return result.Err
	}
	return nil
}

func (b *Bot) tally(opp *market.VerifiedOpportunity, result *executor.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.Attempts++

	switch result.State {
	case executor.StateConfirmed:
		b.stats.Confirmed++
		b.stats.GrossProfit += opp.GrossProfit
		b.stats.NetProfit += opp.NetProfit
		b.metrics.GrossProfitLamport.Add(float64(opp.GrossProfit))
		if opp.NetProfit < 0 {
			b.metrics.NetNegativeTrades.Inc()
		}
	case executor.StateTimedOut:
		b.stats.TimedOut++
	default:
		b.stats.Failed++
	}
}

func (b *Bot) record(opp *market.VerifiedOpportunity, result *executor.Result) {
	rec := history.Record{
		Timestamp:   time.Now().UTC(),
		TradeType:   "two_hop_arbitrage",
		Method:      result.Method,
		Success:     result.State == executor.StateConfirmed,
		LoanAmount:  opp.Legs[0].AmountIn,
		FinalAmount: opp.Legs[1].AmountOut,
		GrossProfit: opp.GrossProfit,
		LoanFee:     opp.LoanFee,
		Tip:         opp.Tip,
		NetProfit:   opp.NetProfit,
		ProfitPct:   opp.GrossPct,
	}
	if !result.Signature.IsZero() {
		rec.Signature = result.Signature.String()
	}
	rec.BundleID = result.BundleID
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}

	if err := b.recorder.Record(rec); err != nil {
		b.logger.Warn("Failed to persist trade record", zap.Error(err))
	}
}

// logOpportunity logs newly seen opportunities at info and repeats at debug,
// keyed by a fingerprint of the cycle and its route venues.
func (b *Bot) logOpportunity(opp *market.Opportunity) {
	fp := xxhash.Sum64String(opp.Token.Mint.String() + "|" +
		strings.Join(opp.Forward.Venues, ",") + "|" +
		strings.Join(opp.Reverse.Venues, ","))

	b.mu.Lock()
	now := time.Now()
	last, repeat := b.seen[fp]
	if repeat && now.Sub(last) > fingerprintTTL {
		repeat = false
	}
	b.seen[fp] = now
	for k, ts := range b.seen {
		if now.Sub(ts) > fingerprintTTL {
			delete(b.seen, k)
		}
	}
	b.mu.Unlock()

	fields := []zap.Field{
		zap.String("token", opp.Token.Symbol),
		zap.Float64("profit_pct", opp.ProfitPct),
		zap.Strings("route", opp.Forward.Venues),
	}
	if repeat {
		b.logger.Debug("Opportunity persists", fields...)
	} else {
		b.logger.Info("Opportunity found", fields...)
	}
}

// Snapshot returns a copy of the accumulated run statistics.
func (b *Bot) Snapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *Bot) logFinalStats() {
	s := b.Snapshot()
	b.logger.Info("Run finished",
		zap.Uint64("cycles", s.Cycles),
		zap.Uint64("opportunities", s.Opportunities),
		zap.Uint64("verified", s.Verified),
		zap.Uint64("attempts", s.Attempts),
		zap.Uint64("confirmed", s.Confirmed),
		zap.Uint64("failed", s.Failed),
		zap.Uint64("timed_out", s.TimedOut),
		zap.Int64("gross_profit", s.GrossProfit),
		zap.Int64("net_profit", s.NetProfit),
	)
}

func (b *Bot) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: b.cfg.MetricsListen, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		b.logger.Warn("Metrics listener failed", zap.Error(err))
	}
}
