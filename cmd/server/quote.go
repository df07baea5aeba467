package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/adspace-marketplace/internal/service"
)

var (
	quoteToken    uint64
	quoteStart    int64
	quoteEnd      int64
	quoteDuration time.Duration
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a rental window against the live contract",
	Long: `Computes the wei amount a rental would cost, with the full breakdown.

Either --end or --duration must be given.  --start defaults to now.`,
	RunE: runQuote,
}

func init() {
	quoteCmd.Flags().Uint64Var(&quoteToken, "token", 0, "Ad space token id")
	quoteCmd.Flags().Int64Var(&quoteStart, "start", 0, "Rental start (unix seconds, default now)")
	quoteCmd.Flags().Int64Var(&quoteEnd, "end", 0, "Rental end (unix seconds)")
	quoteCmd.Flags().DurationVar(&quoteDuration, "duration", 0, "Rental length, used when --end is not set")
}

func runQuote(cmd *cobra.Command, args []string) error {
	start := quoteStart
	if start == 0 {
		start = time.Now().Unix()
	}
	end := quoteEnd
	if end == 0 {
		if quoteDuration <= 0 {
			return errors.New("either --end or --duration is required")
		}
		end = start + int64(quoteDuration/time.Second)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	client, calc, err := dialChain(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	market := service.New(service.Deps{Chain: client, Calculator: calc, Log: logger})
	q, err := market.Quote(ctx, quoteToken, start, end)
	if err != nil {
		return err
	}
	return printJSON(cmd, q)
}
