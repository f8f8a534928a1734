package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	handlers "github.com/chemaudit/chemaudit/internal/handlers/v1"
	"github.com/chemaudit/chemaudit/pkg/metrics"
	"github.com/chemaudit/chemaudit/pkg/middleware"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
	drainTimeout            = 30 * time.Second
)

type Server struct {
	components *Components
	listener   net.Listener
	metrics    *metrics.Middleware
}

// New returns a new instance of a chemaudit server.
func New(components *Components, listener net.Listener) *Server {
	return &Server{
		components: components,
		listener:   listener,
		metrics:    metrics.NewMiddleware("api_server"),
	}
}

// Router builds the HTTP handler of the API.
func (s *Server) Router() http.Handler {
	cfg := s.components.Config
	router := chi.NewRouter()

	router.Use(
		s.metrics.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Service.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.RequestID,
		middleware.Logger("http", zapcore.InfoLevel),
		chiMiddleware.Recoverer,
	)

	h := handlers.NewServiceHandler(s.components.HandlerServices(), handlers.Options{
		Debug:          cfg.Service.Debug,
		MaxFileSize:    cfg.Batch.MaxFileSize(),
		AllowedOrigins: cfg.Service.AllowedOrigins,
	})
	router.Route("/api/v1", h.Routes)
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, handlers.ErrorResponse{Error: "not found"})
	})
	return router
}

// Run serves the API until ctx is done. With embedded workers configured the worker pool
// runs in the same process.
func (s *Server) Run(ctx context.Context) error {
	logger := zap.S().Named("api_server")
	logger.Info("Initializing API server")
	s.metrics.MustRegisterDefault()

	srv := http.Server{Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}
	g, gctx := errgroup.WithContext(ctx)

	if n := s.components.Config.Service.EmbeddedWorkers; n > 0 {
		s.components.Config.Worker.Concurrency = n
		pool := s.components.Pool()
		g.Go(func() error {
			if err := pool.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		logger.Infow("embedded workers started", "workers", n)
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("Shutdown signal received: %s", gctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		logger.Info("api server terminated")
		return nil
	})

	g.Go(func() error {
		logger.Infof("Listening on %s...", s.listener.Addr().String())
		if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err := g.Wait()
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	return errors.Join(err, s.components.Close(drainCtx))
}
