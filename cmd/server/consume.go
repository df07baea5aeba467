package main

import (
	"context"
	"errors"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/adspace-marketplace/internal/config"
	"github.com/iliyamo/adspace-marketplace/internal/queue"
)

const consumerShutdownTimeout = 10 * time.Second

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume marketplace events into the event log",
	RunE:  runConsume,
}

func runConsume(cmd *cobra.Command, args []string) error {
	qcfg := config.LoadQueueConfig()
	consumer := queue.NewConsumer(qcfg, logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()
	logger.Info("consuming events", zap.String("log_dir", qcfg.LogDir))

	wait := gfshutdown.GracefulShutdown(context.Background(), consumerShutdownTimeout, map[string]gfshutdown.Operation{
		"consumer": func(sctx context.Context) error {
			cancel()
			select {
			case err := <-done:
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			case <-sctx.Done():
				return sctx.Err()
			}
		},
	})

	select {
	case err := <-done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case code := <-wait:
		logger.Info("consumer stopped", zap.Int("exit_code", code))
		return nil
	}
}
