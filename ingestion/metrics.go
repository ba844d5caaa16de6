package ingestion

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsNamespace = "mindex"
	metricsSubsystem = "ingestion"
)

// Metrics holds the Prometheus collectors for a Manager.
type Metrics struct {
	JobsSubmitted       prometheus.Counter
	JobsFinished        *prometheus.CounterVec
	ChunksProcessed     prometheus.Counter
	StepDuration        *prometheus.HistogramVec
	GraphUpdateFailures prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		JobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "jobs_submitted_total",
			Help:      "Total number of ingestion jobs submitted",
		}),
		JobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "jobs_finished_total",
			Help:      "Total number of ingestion jobs reaching a terminal status",
		}, []string{"status"}),
		ChunksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "chunks_processed_total",
			Help:      "Total number of chunks embedded and indexed",
		}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "step_duration_seconds",
			Help:      "Duration of embedder and vector store calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		GraphUpdateFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "graph_update_failures_total",
			Help:      "Total number of failed knowledge graph updates after completed jobs",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.JobsSubmitted, m.JobsFinished, m.ChunksProcessed, m.StepDuration, m.GraphUpdateFailures,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
