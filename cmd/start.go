package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"solarb/bot"
	"solarb/config"
	"solarb/executor"
	"solarb/history"
	"solarb/ledger"
	"solarb/market"
	"solarb/quote"
	"solarb/ratelimit"
	"solarb/utils"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// minWalletLamports is the minimum wallet balance required at startup; the
// wallet pays transaction fees and bundle tips out of pocket.
const minWalletLamports = 10_000_000

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the arbitrage agent",
	Run: func(cmd *cobra.Command, args []string) {
		log := utils.GetLogger()
		defer utils.CleanupLogger()

		if err := config.LoadEnv(); err != nil {
			log.Debug("No .env file loaded", zap.Error(err))
		}

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			log.Fatal("Failed to load config", zap.Error(err))
		}

		signer, err := loadSigner()
		if err != nil {
			log.Fatal("Failed to load wallet key", zap.Error(err))
		}
		wallet := signer.PublicKey()
		log.Info("Wallet loaded", zap.Stringer("pubkey", wallet))

		chain := ledger.NewClient(cfg.RPCEndpoint, log)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		balance, err := chain.Balance(ctx, wallet)
		if err != nil {
			log.Fatal("Failed to reach RPC endpoint", zap.String("endpoint", cfg.RPCEndpoint), zap.Error(err))
		}
		if balance < minWalletLamports {
			log.Fatal("Insufficient wallet balance",
				zap.Uint64("balance", balance),
				zap.Uint64("required", minWalletLamports))
		}
		log.Info("Wallet funded", zap.Uint64("lamports", balance))

		limiter := ratelimit.New(
			cfg.QuoteRateLimit.MinInterval,
			cfg.QuoteRateLimit.Window,
			cfg.QuoteRateLimit.MaxPerWindow,
		)
		quotes := quote.NewClient(cfg.QuoteEndpoint, limiter, log)

		var bundles *executor.BundleClient
		if cfg.Bundle.Enabled {
			bundles = executor.NewBundleClient(cfg.BundleEndpoint, cfg.Bundle.MaxRetries, cfg.Bundle.RetryBase, log)
		}
		dispatcher := executor.NewDispatcher(cfg, quotes, chain, bundles, signer, log)

		var recorder history.Recorder = history.NopRecorder{}
		if cfg.HistoryFile != "" {
			fileRec, err := history.NewFileRecorder(cfg.HistoryFile)
			if err != nil {
				log.Fatal("Failed to open history file", zap.String("path", cfg.HistoryFile), zap.Error(err))
			}
			defer fileRec.Close()
			recorder = fileRec
		}

		agent := bot.New(cfg,
			market.NewGraphBuilder(quotes, cfg, log),
			market.NewScanner(cfg.MinProfitPct, log),
			market.NewVerifier(quotes, cfg, log),
			dispatcher,
			recorder,
			bot.NewMetrics(prometheus.DefaultRegisterer),
			log,
		)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			log.Info("Shutting down gracefully...")
			cancel()
		}()

		log.Info("Starting check loop",
			zap.Int("tokens", len(cfg.Tokens)),
			zap.Bool("bundle_mode", cfg.Bundle.Enabled),
			zap.Duration("check_interval", cfg.CheckInterval))
		if err := agent.Run(ctx); err != nil && err != context.Canceled {
			log.Fatal("Agent stopped", zap.Error(err))
		}
	},
}

// loadSigner resolves the wallet key from the environment: a base58 private
// key takes precedence over a keygen file path.
func loadSigner() (solana.PrivateKey, error) {
	if raw := os.Getenv(config.EnvPrivateKey); raw != "" {
		return solana.PrivateKeyFromBase58(raw)
	}
	path := config.GetEnvWithDefault(config.EnvKeypairFile, "wallet.json")
	return solana.PrivateKeyFromSolanaKeygenFile(path)
}

func init() {
	rootCmd.AddCommand(startCmd)
}
