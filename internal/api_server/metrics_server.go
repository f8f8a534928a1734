package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chemaudit/chemaudit/pkg/metrics"
	"github.com/chemaudit/chemaudit/pkg/middleware"
)

// MetricServer serves /metrics on its own listener so scrapes bypass the API middlewares.
type MetricServer struct {
	httpServer *http.Server
	listener   net.Listener
}

// NewMetricServer exposes the default registry plus the queue depths, which are read from the
// store at scrape time.
func NewMetricServer(bindAddress string, listener net.Listener, queues metrics.QueueInspector) *MetricServer {
	queueRegistry := prometheus.NewRegistry()
	queueRegistry.MustRegister(metrics.NewQueueDepthCollector(queues))
	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, queueRegistry}

	router := chi.NewRouter()
	router.Use(middleware.Logger("metrics_server", zapcore.DebugLevel))
	router.Handle("/metrics", promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError}))

	return &MetricServer{
		listener: listener,
		httpServer: &http.Server{
			Addr:              bindAddress,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Run serves until ctx is done.
func (m *MetricServer) Run(ctx context.Context) error {
	logger := zap.S().Named("metrics_server")
	stopped := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		m.httpServer.SetKeepAlivesEnabled(false)
		if err := m.httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("metrics server shutdown", "error", err)
		}
	})
	defer stopped()

	logger.Infow("serving metrics", "address", m.listener.Addr().String())
	err := m.httpServer.Serve(m.listener)
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		logger.Info("metrics server terminated")
		return nil
	}
	return err
}
