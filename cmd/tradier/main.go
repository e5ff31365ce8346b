package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "tradier",
		Short: "Tradier market data streaming client",
		Long: `tradier streams Tradier market events, polls REST quotes and records
both into TimescaleDB.

Configuration is read from a YAML file; ${VAR} references are expanded
from the environment. Without --config every setting uses its default and
the API token is read from TRADIER_API_KEY.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(
		streamCmd(a),
		quoteCmd(a),
		chainCmd(a),
		dividendsCmd(a),
		recordCmd(a),
		versionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}
