package cmd

import (
	"context"

	"solarb/utils"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "solarb",
	Short: "A flash-loan arbitrage agent for Solana",
	Long: `A flash-loan arbitrage agent that scans base/token round trips through
an external quoting service, verifies candidates at real trade size, and
settles atomically via flash-loan transactions or bundles.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initLogging)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or $SOLARB_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initLogging() {
	utils.InitLogger(debug)
}
