package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v2"
)

// MaxTransactionSize is the wire-size ceiling for a single serialized
// transaction on the target ledger.
const MaxTransactionSize = 1232

// TokenConfig describes one tradable token loaded from static configuration.
type TokenConfig struct {
	Mint     string `yaml:"mint"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

type Config struct {
	// Ledger and routing endpoints
	RPCEndpoint    string `yaml:"rpc_endpoint"`
	QuoteEndpoint  string `yaml:"quote_endpoint"`
	BundleEndpoint string `yaml:"bundle_endpoint"`

	// Market definition
	BaseToken TokenConfig   `yaml:"base_token"`
	Tokens    []TokenConfig `yaml:"tokens"`

	// Trade sizing and thresholds
	ProbeNotional  uint64  `yaml:"probe_notional"` // minor units, rate probing only
	LoanNotional   uint64  `yaml:"loan_notional"`  // minor units, real trade size
	MinProfitPct   float64 `yaml:"min_profit_pct"`
	SlippageBps    int     `yaml:"slippage_bps"`
	MaxAccounts    int     `yaml:"max_accounts"`
	PlatformFeeBps int     `yaml:"platform_fee_bps"`
	OnlyDirect     bool    `yaml:"only_direct_routes"`

	// Flash loan settings
	FlashLoan FlashLoanConfig `yaml:"flash_loan"`

	// Settlement settings
	Bundle BundleConfig `yaml:"bundle"`

	// Compute budget
	ComputeUnitLimit uint32 `yaml:"compute_unit_limit"`
	ComputeUnitPrice uint64 `yaml:"compute_unit_price"` // micro-lamports per CU

	// Address lookup tables used by the compacted transaction form.
	LookupTables []string `yaml:"lookup_tables"`

	// Orchestrator intervals
	CheckInterval    time.Duration `yaml:"check_interval"`
	ErrorBackoff     time.Duration `yaml:"error_backoff"`
	ConfirmTimeout   time.Duration `yaml:"confirm_timeout"`
	ConfirmPollDelay time.Duration `yaml:"confirm_poll_delay"`
	SubmitRetries    uint          `yaml:"submit_retries"`

	// Quote service throttle
	QuoteRateLimit RateLimitConfig `yaml:"quote_rate_limit"`

	// Trade history file (JSON lines, one record per attempt)
	HistoryFile string `yaml:"history_file"`

	// Metrics endpoint; empty disables the listener.
	MetricsListen string `yaml:"metrics_listen"`
}

type FlashLoanConfig struct {
	Program string  `yaml:"program"`
	Reserve string  `yaml:"reserve"`
	FeeRate float64 `yaml:"fee_rate"` // e.g. 0.0009 for 9 bps
}

type BundleConfig struct {
	Enabled    bool          `yaml:"enabled"`
	TipAccount string        `yaml:"tip_account"`
	MinTip     uint64        `yaml:"min_tip"`  // lamports
	TipRate    float64       `yaml:"tip_rate"` // fraction of gross profit
	MaxRetries int           `yaml:"max_retries"`
	RetryBase  time.Duration `yaml:"retry_base"`
}

type RateLimitConfig struct {
	MinInterval  time.Duration `yaml:"min_interval"`
	Window       time.Duration `yaml:"window"`
	MaxPerWindow int           `yaml:"max_per_window"`
}

func (c *Config) Validate() error {
	var errs []string

	if c.RPCEndpoint == "" {
		errs = append(errs, "rpc_endpoint must be specified")
	}
	if c.QuoteEndpoint == "" {
		errs = append(errs, "quote_endpoint must be specified")
	}
	if c.BaseToken.Mint == "" {
		errs = append(errs, "base_token.mint must be specified")
	}
	if len(c.Tokens) == 0 {
		errs = append(errs, "at least one token must be configured")
	}
	for i, t := range c.Tokens {
		if _, err := solana.PublicKeyFromBase58(t.Mint); err != nil {
			errs = append(errs, fmt.Sprintf("tokens[%d]: invalid mint %q", i, t.Mint))
		}
	}
	if c.ProbeNotional == 0 {
		errs = append(errs, "probe_notional must be positive")
	}
	if c.LoanNotional == 0 {
		errs = append(errs, "loan_notional must be positive")
	}
	if c.MinProfitPct < 0 {
		errs = append(errs, "min_profit_pct must not be negative")
	}
	if c.Bundle.Enabled && c.BundleEndpoint == "" {
		errs = append(errs, "bundle_endpoint must be specified when bundles are enabled")
	}
	if err := c.FlashLoan.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("flash loan config error: %v", err))
	}
	if err := c.Bundle.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("bundle config error: %v", err))
	}
	if err := c.QuoteRateLimit.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("quote rate limit error: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (f *FlashLoanConfig) Validate() error {
	if f.Program == "" {
		return fmt.Errorf("program must be specified")
	}
	if _, err := solana.PublicKeyFromBase58(f.Program); err != nil {
		return fmt.Errorf("invalid program address: %w", err)
	}
	if f.Reserve == "" {
		return fmt.Errorf("reserve must be specified")
	}
	if _, err := solana.PublicKeyFromBase58(f.Reserve); err != nil {
		return fmt.Errorf("invalid reserve address: %w", err)
	}
	if f.FeeRate < 0 || f.FeeRate >= 1 {
		return fmt.Errorf("fee rate must be in [0, 1)")
	}
	return nil
}

func (b *BundleConfig) Validate() error {
	if !b.Enabled {
		return nil
	}
	if b.TipAccount == "" {
		return fmt.Errorf("tip account must be specified when bundles are enabled")
	}
	if _, err := solana.PublicKeyFromBase58(b.TipAccount); err != nil {
		return fmt.Errorf("invalid tip account: %w", err)
	}
	if b.TipRate < 0 || b.TipRate >= 1 {
		return fmt.Errorf("tip rate must be in [0, 1)")
	}
	if b.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	return nil
}

func (r *RateLimitConfig) Validate() error {
	if r.MinInterval <= 0 {
		return fmt.Errorf("min interval must be positive")
	}
	if r.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}
	if r.MaxPerWindow <= 0 {
		return fmt.Errorf("max per window must be positive")
	}
	return nil
}

// LoadConfig reads a YAML config file, applies environment overrides and
// validates the result.
func LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		cfgFile = GetEnvWithDefault(EnvConfigFile, "config.yaml")
	}

	data, err := os.ReadFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	// Endpoints may carry credentials, so env wins over file.
	if v := os.Getenv(EnvRPCEndpoint); v != "" {
		cfg.RPCEndpoint = v
	}
	if v := os.Getenv(EnvQuoteEndpoint); v != "" {
		cfg.QuoteEndpoint = v
	}
	if v := os.Getenv(EnvBundleEndpoint); v != "" {
		cfg.BundleEndpoint = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns a config with conservative defaults; the YAML file
// overlays it.
func DefaultConfig() *Config {
	return &Config{
		ProbeNotional:    100_000_000,   // 0.1 SOL
		LoanNotional:     1_000_000_000, // 1 SOL
		MinProfitPct:     0.1,
		SlippageBps:      50,
		MaxAccounts:      24,
		PlatformFeeBps:   0,
		OnlyDirect:       true, // single-venue legs keep the transaction under the wire ceiling
		ComputeUnitLimit: 400_000,
		ComputeUnitPrice: 1_000,
		CheckInterval:    5 * time.Second,
		ErrorBackoff:     15 * time.Second,
		ConfirmTimeout:   30 * time.Second,
		ConfirmPollDelay: 2 * time.Second,
		SubmitRetries:    3,
		FlashLoan: FlashLoanConfig{
			FeeRate: 0.0009,
		},
		Bundle: BundleConfig{
			Enabled:    false,
			MinTip:     10_000,
			TipRate:    0.5,
			MaxRetries: 5,
			RetryBase:  500 * time.Millisecond,
		},
		QuoteRateLimit: RateLimitConfig{
			MinInterval:  200 * time.Millisecond,
			Window:       time.Minute,
			MaxPerWindow: 60,
		},
		HistoryFile: "trades.jsonl",
	}
}

// BasePubkey returns the parsed base token mint.
func (c *Config) BasePubkey() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(c.BaseToken.Mint)
}

// LookupTableKeys parses the configured lookup table addresses.
func (c *Config) LookupTableKeys() ([]solana.PublicKey, error) {
	keys := make([]solana.PublicKey, 0, len(c.LookupTables))
	for _, s := range c.LookupTables {
		k, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("invalid lookup table address %q: %w", s, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}
