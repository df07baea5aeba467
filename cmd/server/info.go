package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show contract and pricing configuration",
	RunE:  runInfo,
}

type infoOutput struct {
	Contract         string `json:"contract"`
	Operator         string `json:"operator,omitempty"`
	ReadOnly         bool   `json:"read_only"`
	NextTokenID      uint64 `json:"next_token_id"`
	FeeBps           string `json:"fee_bps"`
	FeeMode          string `json:"fee_mode"`
	RateEncoding     string `json:"rate_encoding"`
	MinRentalSeconds int64  `json:"min_rental_seconds"`
	MinimumPayment   string `json:"minimum_payment_wei"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	client, calc, err := dialChain(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	p := calc.Params()
	out := infoOutput{
		Contract:         client.ContractAddress().Hex(),
		ReadOnly:         !client.CanWrite(),
		FeeBps:           p.FeeBps.String(),
		FeeMode:          string(p.Mode),
		RateEncoding:     string(p.Encoding),
		MinRentalSeconds: p.MinRentalSeconds,
		MinimumPayment:   p.MinimumPayment.String(),
	}
	if op, ok := client.Operator(); ok {
		out.Operator = op.Hex()
	}
	if out.NextTokenID, err = client.NextTokenID(ctx); err != nil {
		logger.Warn("nextTokenId unavailable", zap.Error(err))
	}
	return printJSON(cmd, out)
}
