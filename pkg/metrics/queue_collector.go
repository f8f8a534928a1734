package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// QueueInspector reports the backlog of the work queues.
type QueueInspector interface {
	Depths(ctx context.Context) (map[string]int64, error)
	DeadLetterDepth(ctx context.Context) (int64, error)
}

type queueDepthCollector struct {
	inspector  QueueInspector
	depth      *prometheus.Desc
	deadLetter *prometheus.Desc
}

// NewQueueDepthCollector returns a collector reading the queue lengths at scrape time.
func NewQueueDepthCollector(inspector QueueInspector) prometheus.Collector {
	fqName := func(name string) string {
		return fmt.Sprintf("%s_queue_%s", chemaudit, name)
	}

	return &queueDepthCollector{
		inspector: inspector,
		depth: prometheus.NewDesc(
			fqName("depth"),
			"Number of tasks waiting in a queue tier.",
			[]string{queueLabel},
			prometheus.Labels{},
		),
		deadLetter: prometheus.NewDesc(
			fqName("dead_letter_depth"),
			"Number of tasks parked in the dead-letter queue.",
			nil,
			prometheus.Labels{},
		),
	}
}

func (c *queueDepthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.depth
	ch <- c.deadLetter
}

// Collect implements Collector.
func (c *queueDepthCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	depths, err := c.inspector.Depths(ctx)
	if err != nil {
		zap.S().Named("queue_collector").Errorf("failed to collect queue depth: %s", err)
		return
	}
	for queue, depth := range depths {
		ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue, float64(depth), queue)
	}

	dead, err := c.inspector.DeadLetterDepth(ctx)
	if err != nil {
		zap.S().Named("queue_collector").Errorf("failed to collect dead-letter depth: %s", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.deadLetter, prometheus.GaugeValue, float64(dead))
}
