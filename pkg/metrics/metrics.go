package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	chemaudit = "chemaudit"

	batchesSubmittedTotal   = "batches_submitted_total"
	batchesFinishedTotal    = "batches_finished_total"
	moleculesProcessed      = "molecules_processed_total"
	chunkDurationSeconds    = "chunk_duration_seconds"
	websocketSubscribers    = "websocket_subscribers"
	progressMessagesDropped = "progress_messages_dropped_total"
	cacheLookupsTotal       = "cache_lookups_total"

	// Labels
	queueLabel  = "queue"
	statusLabel = "status"
	resultLabel = "result"
)

/**
* Metrics definition
**/
var batchesSubmittedMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: chemaudit,
		Name:      batchesSubmittedTotal,
		Help:      "number of batch jobs submitted, partitioned by routing queue",
	},
	[]string{queueLabel},
)

var batchesFinishedMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: chemaudit,
		Name:      batchesFinishedTotal,
		Help:      "number of batch jobs that reached a terminal state",
	},
	[]string{statusLabel},
)

var moleculesProcessedMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: chemaudit,
		Name:      moleculesProcessed,
		Help:      "number of structures processed by workers, partitioned by item status",
	},
	[]string{statusLabel},
)

var chunkDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: chemaudit,
		Name:      chunkDurationSeconds,
		Help:      "time spent processing one chunk",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60},
	},
	[]string{queueLabel},
)

var websocketSubscribersMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: chemaudit,
		Name:      websocketSubscribers,
		Help:      "number of live progress subscribers",
	},
)

var progressDroppedMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: chemaudit,
		Name:      progressMessagesDropped,
		Help:      "progress messages dropped because the publish buffer was full",
	},
)

var cacheLookupsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: chemaudit,
		Name:      cacheLookupsTotal,
		Help:      "validation cache lookups partitioned by hit or miss",
	},
	[]string{resultLabel},
)

func IncreaseBatchesSubmitted(queue string) {
	batchesSubmittedMetric.With(prometheus.Labels{queueLabel: queue}).Inc()
}

func IncreaseBatchesFinished(status string) {
	batchesFinishedMetric.With(prometheus.Labels{statusLabel: status}).Inc()
}

func AddMoleculesProcessed(status string, count int) {
	moleculesProcessedMetric.With(prometheus.Labels{statusLabel: status}).Add(float64(count))
}

func ObserveChunkDuration(queue string, seconds float64) {
	chunkDurationMetric.With(prometheus.Labels{queueLabel: queue}).Observe(seconds)
}

func IncreaseWebsocketSubscribers() {
	websocketSubscribersMetric.Inc()
}

func DecreaseWebsocketSubscribers() {
	websocketSubscribersMetric.Dec()
}

func IncreaseProgressDropped() {
	progressDroppedMetric.Inc()
}

func IncreaseCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsMetric.With(prometheus.Labels{resultLabel: result}).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(batchesSubmittedMetric)
	prometheus.MustRegister(batchesFinishedMetric)
	prometheus.MustRegister(moleculesProcessedMetric)
	prometheus.MustRegister(chunkDurationMetric)
	prometheus.MustRegister(websocketSubscribersMetric)
	prometheus.MustRegister(progressDroppedMetric)
	prometheus.MustRegister(cacheLookupsMetric)
}
