package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solarb/config"
	"solarb/executor"
	"solarb/history"
	"solarb/market"
	"solarb/quote"
)

const (
	solMint  = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// pairQuoter prices every request with a fixed multiplier per mint pair.
type pairQuoter struct {
	rates map[string]float64
}

func (q *pairQuoter) GetQuote(_ context.Context, req quote.Request) (*quote.Response, error) {
	mult, ok := q.rates[req.InputMint.String()+"->"+req.OutputMint.String()]
	if !ok {
		return nil, errors.New("no route")
	}
	return &quote.Response{
		InputMint:  req.InputMint,
		OutputMint: req.OutputMint,
		InAmount:   req.Amount,
		OutAmount:  uint64(float64(req.Amount)*mult + 0.5),
		Venues:     []string{"TestAMM"},
	}, nil
}

type stubExecutor struct {
	result *executor.Result
	calls  int
	last   *market.VerifiedOpportunity
}

func (e *stubExecutor) Execute(_ context.Context, opp *market.VerifiedOpportunity) *executor.Result {
	e.calls++
	e.last = opp
	return e.result
}

type captureRecorder struct {
	mu      sync.Mutex
	records []history.Record
}

func (r *captureRecorder) Record(rec history.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *captureRecorder) Close() error { return nil }

func cycleConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseToken = config.TokenConfig{Mint: solMint, Symbol: "SOL", Decimals: 9}
	cfg.Tokens = []config.TokenConfig{{Mint: usdcMint, Symbol: "USDC", Decimals: 9}}
	cfg.ProbeNotional = 1_000_000_000
	cfg.LoanNotional = 1_000_000_000
	cfg.MinProfitPct = 0.1
	cfg.FlashLoan.FeeRate = 0.0009
	cfg.Bundle.Enabled = false
	cfg.CheckInterval = time.Millisecond
	cfg.ErrorBackoff = time.Millisecond
	return cfg
}

func newTestBot(t *testing.T, cfg *config.Config, exec Executor, rec history.Recorder) *Bot {
	t.Helper()
	quoter := &pairQuoter{rates: map[string]float64{
		solMint + "->" + usdcMint: 100,
		usdcMint + "->" + solMint: 0.01005, // round trip 1.005
	}}
	logger := zap.NewNop()
	return New(cfg,
		market.NewGraphBuilder(quoter, cfg, logger),
		market.NewScanner(cfg.MinProfitPct, logger),
		market.NewVerifier(quoter, cfg, logger),
		exec, rec, NewMetrics(prometheus.NewRegistry()), logger)
}

func TestRunCycleConfirmedTrade(t *testing.T) {
	cfg := cycleConfig(t)
	exec := &stubExecutor{result: &executor.Result{
		State:     executor.StateConfirmed,
		Method:    executor.MethodDirect,
		Signature: solana.Signature{1},
	}}
	rec := &captureRecorder{}
	b := newTestBot(t, cfg, exec, rec)

	require.NoError(t, b.runCycle(context.Background()))
	require.Equal(t, 1, exec.calls)

	s := b.Snapshot()
	assert.Equal(t, uint64(1), s.Cycles)
	assert.Equal(t, uint64(1), s.Opportunities)
	assert.Equal(t, uint64(1), s.Verified)
	assert.Equal(t, uint64(1), s.Attempts)
	assert.Equal(t, uint64(1), s.Confirmed)
	assert.Equal(t, int64(5_000_000), s.GrossProfit)
	assert.Equal(t, int64(4_100_000), s.NetProfit)

	require.Len(t, rec.records, 1)
	r := rec.records[0]
	assert.True(t, r.Success)
	assert.Equal(t, executor.MethodDirect, r.Method)
	assert.Equal(t, uint64(1_000_000_000), r.LoanAmount)
	assert.Equal(t, int64(5_000_000), r.GrossProfit)
	assert.Equal(t, uint64(900_000), r.LoanFee)
	assert.NotEmpty(t, r.Signature)
}

func TestRunCycleNoOpportunityIsClean(t *testing.T) {
	cfg := cycleConfig(t)
	exec := &stubExecutor{result: &executor.Result{State: executor.StateConfirmed}}
	rec := &captureRecorder{}
	b := newTestBot(t, cfg, exec, rec)

	// Flatten the reverse rate so the round trip loses money.
	b.builder = market.NewGraphBuilder(&pairQuoter{rates: map[string]float64{
		solMint + "->" + usdcMint: 100,
		usdcMint + "->" + solMint: 0.0099,
	}}, cfg, zap.NewNop())

	require.NoError(t, b.runCycle(context.Background()))
	assert.Zero(t, exec.calls)
	assert.Empty(t, rec.records)
	assert.Equal(t, uint64(1), b.Snapshot().Cycles)
	assert.Zero(t, b.Snapshot().Attempts)
}

func TestRunCyclePropagatesExecutionError(t *testing.T) {
	cfg := cycleConfig(t)
	sendErr := errors.New("broadcast failed")
	exec := &stubExecutor{result: &executor.Result{
		State:  executor.StateSubmitting,
		Method: executor.MethodDirect,
		Err:    sendErr,
	}}
	rec := &captureRecorder{}
	b := newTestBot(t, cfg, exec, rec)

	err := b.runCycle(context.Background())
	require.ErrorIs(t, err, sendErr)

	s := b.Snapshot()
	assert.Equal(t, uint64(1), s.Failed)
	assert.Zero(t, s.Confirmed)
	assert.Zero(t, s.GrossProfit)

	require.Len(t, rec.records, 1)
	assert.False(t, rec.records[0].Success)
	assert.Equal(t, "broadcast failed", rec.records[0].Error)
}

func TestRunCycleTimedOutCountsSeparately(t *testing.T) {
	cfg := cycleConfig(t)
	exec := &stubExecutor{result: &executor.Result{
		State:  executor.StateTimedOut,
		Method: executor.MethodDirect,
	}}
	b := newTestBot(t, cfg, exec, &captureRecorder{})

	require.NoError(t, b.runCycle(context.Background()))
	s := b.Snapshot()
	assert.Equal(t, uint64(1), s.TimedOut)
	assert.Zero(t, s.Confirmed)
	assert.Zero(t, s.Failed)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := cycleConfig(t)
	exec := &stubExecutor{result: &executor.Result{
		State:  executor.StateConfirmed,
		Method: executor.MethodDirect,
	}}
	b := newTestBot(t, cfg, exec, &captureRecorder{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.GreaterOrEqual(t, b.Snapshot().Cycles, uint64(1))
}
