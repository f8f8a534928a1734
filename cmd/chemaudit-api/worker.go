package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run batch workers against the shared queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		components, done, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer done()

		if workerConcurrency > 0 {
			components.Config.Worker.Concurrency = workerConcurrency
		}
		zap.S().Infow("Starting workers", "concurrency", components.Config.Worker.Concurrency)
		defer zap.S().Info("workers stopped")

		runErr := components.Pool().Run(ctx)
		if errors.Is(runErr, context.Canceled) {
			runErr = nil
		}

		drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer drainCancel()
		return errors.Join(runErr, components.Close(drainCtx))
	},
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "Number of workers, overrides CHEMAUDIT_WORKER_CONCURRENCY")
}
