// Command server runs the ad space marketplace API and its tooling.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/adspace-marketplace/internal/chain"
	"github.com/iliyamo/adspace-marketplace/internal/config"
	"github.com/iliyamo/adspace-marketplace/internal/logging"
	"github.com/iliyamo/adspace-marketplace/internal/pricing"
)

var (
	logger  *zap.Logger
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "adspace",
	Short:         "Ad space NFT marketplace backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv()

		level := os.Getenv("LOG_LEVEL")
		if verbose {
			level = "debug"
		}
		var err error
		logger, err = logging.New(os.Getenv("APP_ENV"), level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(serveCmd, consumeCmd, quoteCmd, infoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// dialChain connects to the contract and builds the calculator on top of it.
func dialChain(ctx context.Context) (*chain.Client, *pricing.Calculator, error) {
	client, err := chain.Dial(ctx, config.LoadChainConfig(), logger)
	if err != nil {
		return nil, nil, err
	}
	pc := config.LoadPricingConfig()
	params, err := pricing.NewParams(pc.FeeBps, pc.FeeMode, pc.RateEncoding, pc.MinRentalSeconds, pc.MinPaymentWei)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	calc, err := pricing.NewCalculator(client, params)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return client, calc, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
