package apiserver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chemaudit/chemaudit/internal/alerts"
	"github.com/chemaudit/chemaudit/internal/chemkit"
	"github.com/chemaudit/chemaudit/internal/config"
	"github.com/chemaudit/chemaudit/internal/events"
	v1 "github.com/chemaudit/chemaudit/internal/handlers/v1"
	"github.com/chemaudit/chemaudit/internal/jobs"
	"github.com/chemaudit/chemaudit/internal/kvstore"
	"github.com/chemaudit/chemaudit/internal/progress"
	"github.com/chemaudit/chemaudit/internal/service"
	"github.com/chemaudit/chemaudit/internal/service/export"
	"github.com/chemaudit/chemaudit/internal/store"
	"github.com/chemaudit/chemaudit/internal/structure"
	"github.com/chemaudit/chemaudit/internal/usage"
	"github.com/chemaudit/chemaudit/internal/validation/checks"
)

// Components is everything one process shares between the API and its workers.
type Components struct {
	Config     *config.Config
	Namespaces *kvstore.Namespaces
	Store      store.Store
	Producer   *events.EventProducer
	Tracker    *progress.Tracker
	Queue      *jobs.Queue
	Processor  *jobs.Processor
	Dispatcher *jobs.Dispatcher
	Hub        *progress.Hub
	Usage      *usage.Recorder
	Toolkit    chemkit.Toolkit
	Batches    *service.BatchService
}

// NewComponents builds the shared components on top of the KV namespaces.
func NewComponents(cfg *config.Config, namespaces *kvstore.Namespaces) (*Components, error) {
	kit := chemkit.NewBuiltin()
	screener, err := alerts.NewScreener(kit)
	if err != nil {
		return nil, fmt.Errorf("failed to load alert catalogs: %w", err)
	}

	s := store.NewStore(namespaces.Default, store.Options{
		Retention:    cfg.Batch.Retention(),
		CacheTTL:     cfg.Batch.CacheTTL(),
		CacheEnabled: cfg.Batch.CacheEnabled,
	})
	producer := events.NewEventProducer(events.NewKVWriter(namespaces.Default))
	tracker := progress.NewTracker(s, producer)
	queue := jobs.NewQueue(namespaces.Default, cfg.Worker.MaxDeliveries, cfg.Worker.PollInterval)
	processor := jobs.NewProcessor(structure.NewParser(kit, cfg.Batch.MaxStructureLength), checks.NewEngine(), screener, s.Cache())
	dispatcher := jobs.NewDispatcher(queue, tracker, cfg.Batch.ChunkSize, cfg.Batch.SmallJobThreshold)
	recorder := usage.NewRecorder(namespaces.Default, cfg.Batch.Retention()*7)

	c := &Components{
		Config:     cfg,
		Namespaces: namespaces,
		Store:      s,
		Producer:   producer,
		Tracker:    tracker,
		Queue:      queue,
		Processor:  processor,
		Dispatcher: dispatcher,
		Hub:        progress.NewHub(namespaces.Default, s.Jobs()),
		Usage:      recorder,
		Toolkit:    kit,
	}
	c.Batches = service.NewBatchService(s, processor, dispatcher, tracker, recorder, service.BatchLimits{
		MaxFileSize:  cfg.Batch.MaxFileSize(),
		MaxBatchSize: cfg.Batch.MaxBatchSize,
	})
	zap.S().Named("components").Infow("components initialized", "toolkit", kit.Name(), "catalogs", len(screener.Catalogs()),
		"checks", len(processor.Engine().Names()))
	return c, nil
}

// HandlerServices builds the services behind the /api/v1 handlers.
func (c *Components) HandlerServices() v1.Services {
	parser := c.Processor.Parser()
	return v1.Services{
		Validation:  service.NewValidationService(c.Processor, c.Dispatcher, c.Usage),
		Batches:     c.Batches,
		Exports:     service.NewExportService(c.Batches, c.Store, export.NewFactory(parser)),
		Alerts:      service.NewAlertsService(parser, c.Processor.Screener()),
		Standardize: service.NewStandardizeService(parser, c.Processor.Pipeline()),
		Health:      service.NewHealthService(c.Namespaces, c.Queue, c.Toolkit),
		Hub:         c.Hub,
	}
}

func (c *Components) Pool() *jobs.Pool {
	w := c.Config.Worker
	return jobs.NewPool(c.Queue, c.Processor, c.Store, c.Tracker, jobs.PoolOptions{
		Concurrency:     w.Concurrency,
		ReservedHigh:    w.ReservedHigh,
		LeaseTTL:        w.LeaseTTL,
		HeartbeatPeriod: w.HeartbeatPeriod,
		ReaperInterval:  w.ReaperInterval,
		Worker:          jobs.WorkerOptions{WriteRetries: w.WriteRetries, WriteBackoff: w.WriteRetryBackoff},
	})
}

// Close drains the background work in dependency order and closes the connections.
func (c *Components) Close(ctx context.Context) error {
	c.Hub.Close()
	return errors.Join(
		c.Batches.Close(ctx),
		c.Usage.Close(ctx),
		c.Producer.Close(),
		c.Namespaces.Close(),
	)
}
