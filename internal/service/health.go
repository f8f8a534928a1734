package service

import (
	"context"

	"github.com/chemaudit/chemaudit/internal/chemkit"
	"github.com/chemaudit/chemaudit/internal/jobs"
	"github.com/chemaudit/chemaudit/internal/kvstore"
	"github.com/chemaudit/chemaudit/pkg/version"
)

const (
	HealthStatusHealthy  = "healthy"
	HealthStatusDegraded = "degraded"
)

type HealthReport struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Toolkit    string            `json:"toolkit"`
	Redis      map[string]string `json:"redis"`
	Queues     map[string]int64  `json:"queues,omitempty"`
	DeadLetter int64             `json:"dead_letter"`
}

type HealthService struct {
	namespaces *kvstore.Namespaces
	queue      *jobs.Queue
	kit        chemkit.Toolkit
}

func NewHealthService(namespaces *kvstore.Namespaces, queue *jobs.Queue, kit chemkit.Toolkit) *HealthService {
	return &HealthService{namespaces: namespaces, queue: queue, kit: kit}
}

// Check pings both namespaces and reads the queue depths. It never fails, problems
// degrade the report.
func (s *HealthService) Check(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Status:  HealthStatusHealthy,
		Version: version.Get().GitVersion,
		Toolkit: s.kit.Name() + " " + s.kit.Version(),
		Redis:   map[string]string{},
	}
	for name, kv := range map[string]kvstore.Store{"default": s.namespaces.Default, "ratelimit": s.namespaces.RateLimit} {
		if err := kv.Ping(ctx); err != nil {
			report.Redis[name] = err.Error()
			report.Status = HealthStatusDegraded
			continue
		}
		report.Redis[name] = "ok"
	}
	if depths, err := s.queue.Depths(ctx); err == nil {
		report.Queues = depths
	} else {
		report.Status = HealthStatusDegraded
	}
	if n, err := s.queue.DeadLetterDepth(ctx); err == nil {
		report.DeadLetter = n
	}
	return report
}
