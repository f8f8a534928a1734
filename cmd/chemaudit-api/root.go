package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apiserver "github.com/chemaudit/chemaudit/internal/api_server"
	"github.com/chemaudit/chemaudit/internal/config"
	"github.com/chemaudit/chemaudit/internal/kvstore"
	"github.com/chemaudit/chemaudit/pkg/log"
)

var rootCmd = &cobra.Command{
	Use:          "chemaudit-api",
	Short:        "Chemical structure validation service",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(workerCmd)
}

// bootstrap loads the configuration, installs the global logger and connects the shared components.
// The returned func flushes the logger.
func bootstrap(ctx context.Context) (*apiserver.Components, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}

	logger := log.InitLog(log.ParseLevel(cfg.Service.LogLevel), cfg.Service.LogFormat)
	undo := zap.ReplaceGlobals(logger)
	done := func() {
		_ = logger.Sync()
		undo()
	}

	namespaces, err := kvstore.NewNamespaces(ctx, cfg)
	if err != nil {
		done()
		return nil, nil, err
	}

	components, err := apiserver.NewComponents(cfg, namespaces)
	if err != nil {
		_ = namespaces.Close()
		done()
		return nil, nil, err
	}
	return components, done, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
