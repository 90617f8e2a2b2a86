package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMint = "So11111111111111111111111111111111111111112"

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.RPCEndpoint = "https://rpc.example.com"
	cfg.QuoteEndpoint = "https://quote.example.com"
	cfg.BaseToken = TokenConfig{Mint: testMint, Symbol: "SOL", Decimals: 9}
	cfg.Tokens = []TokenConfig{{Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Symbol: "USDC", Decimals: 6}}
	cfg.FlashLoan = FlashLoanConfig{Program: testMint, Reserve: testMint, FeeRate: 0.0009}
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejectsMissingEndpoints(t *testing.T) {
	cfg := validConfig()
	cfg.RPCEndpoint = ""
	cfg.QuoteEndpoint = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc_endpoint")
	assert.Contains(t, err.Error(), "quote_endpoint")
}

func TestValidateRejectsInvalidMint(t *testing.T) {
	cfg := validConfig()
	cfg.Tokens = append(cfg.Tokens, TokenConfig{Mint: "not-base58!", Symbol: "BAD"})
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tokens[1]")
}

func TestValidateRejectsZeroSizing(t *testing.T) {
	cfg := validConfig()
	cfg.ProbeNotional = 0
	cfg.LoanNotional = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe_notional")
	assert.Contains(t, err.Error(), "loan_notional")
}

func TestValidateBundleModeRequirements(t *testing.T) {
	cfg := validConfig()
	cfg.Bundle.Enabled = true
	cfg.BundleEndpoint = ""
	cfg.Bundle.TipAccount = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bundle_endpoint")
	assert.Contains(t, err.Error(), "tip account")

	cfg.BundleEndpoint = "https://bundles.example.com"
	cfg.Bundle.TipAccount = testMint
	assert.NoError(t, cfg.Validate())
}

func TestValidateFlashLoanFeeRateRange(t *testing.T) {
	cfg := validConfig()
	cfg.FlashLoan.FeeRate = 1.0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fee rate")
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
rpc_endpoint: https://rpc.example.com
quote_endpoint: https://quote.example.com
base_token:
  mint: ` + testMint + `
  symbol: SOL
  decimals: 9
tokens:
  - mint: EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v
    symbol: USDC
    decimals: 6
flash_loan:
  program: ` + testMint + `
  reserve: ` + testMint + `
  fee_rate: 0.0009
check_interval: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.CheckInterval)
	// Untouched fields keep their defaults.
	assert.Equal(t, uint64(1_000_000_000), cfg.LoanNotional)
	assert.NotZero(t, cfg.QuoteRateLimit.MaxPerWindow)
}

func TestLoadConfigEnvOverridesEndpoints(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
rpc_endpoint: https://file-rpc.example.com
quote_endpoint: https://quote.example.com
base_token:
  mint: ` + testMint + `
  symbol: SOL
  decimals: 9
tokens:
  - mint: EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v
    symbol: USDC
    decimals: 6
flash_loan:
  program: ` + testMint + `
  reserve: ` + testMint + `
  fee_rate: 0.0009
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv(EnvRPCEndpoint, "https://env-rpc.example.com")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env-rpc.example.com", cfg.RPCEndpoint)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open config file")
}
