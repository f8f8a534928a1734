package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apiserver "github.com/chemaudit/chemaudit/internal/api_server"
	"github.com/chemaudit/chemaudit/pkg/version"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the chemaudit api",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		components, done, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer done()

		cfg := components.Config
		zap.S().Infow("Starting API service", "version", version.Get().String())
		defer zap.S().Info("API service stopped")

		listener, err := newListener(cfg.Service.Address)
		if err != nil {
			_ = components.Close(ctx)
			return err
		}
		metricsListener, err := newListener(cfg.Service.MetricsAddress)
		if err != nil {
			_ = listener.Close()
			_ = components.Close(ctx)
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return apiserver.New(components, listener).Run(gctx)
		})
		g.Go(func() error {
			return apiserver.NewMetricServer(cfg.Service.MetricsAddress, metricsListener, components.Queue).Run(gctx)
		})

		if err := g.Wait(); err != nil {
			zap.S().Errorw("server exited", "error", err)
			return err
		}
		return nil
	},
}
