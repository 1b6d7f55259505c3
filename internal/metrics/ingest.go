package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/promptvault/promptvault/internal/models"
)

// IngestCollector exposes Prometheus metrics for the ingestion pipeline.
type IngestCollector struct {
	pagesTotal       prometheus.Counter
	itemsFetched     prometheus.Counter
	recordsInserted  prometheus.Counter
	recordsSkipped   prometheus.Counter
	recordErrors     prometheus.Counter
	recordsRejected  *prometheus.CounterVec
	runsTotal        *prometheus.CounterVec
	pageFetchSeconds prometheus.Histogram
}

// NewIngestCollector constructs a collector and registers it on the registry.
func NewIngestCollector(registry *prometheus.Registry) (*IngestCollector, error) {
	c := &IngestCollector{
		pagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "pages_total",
			Help:      "Total number of pages fetched from the provider.",
		}),
		itemsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "items_fetched_total",
			Help:      "Total number of raw items received from the provider.",
		}),
		recordsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_inserted_total",
			Help:      "Total number of new records written to the sink.",
		}),
		recordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_skipped_total",
			Help:      "Total number of records skipped because their id was already stored.",
		}),
		recordErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "record_errors_total",
			Help:      "Total number of records that failed to embed or write.",
		}),
		recordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_rejected_total",
			Help:      "Total number of raw items dropped at normalization, by reason.",
		}, []string{"reason"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Total number of ingestion runs, by terminal status.",
		}, []string{"status"}),
		pageFetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "page_fetch_seconds",
			Help:      "Latency distribution for provider page fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{
		c.pagesTotal,
		c.itemsFetched,
		c.recordsInserted,
		c.recordsSkipped,
		c.recordErrors,
		c.recordsRejected,
		c.runsTotal,
		c.pageFetchSeconds,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// ObservePage records one successfully fetched page.
func (c *IngestCollector) ObservePage(items int, duration time.Duration) {
	c.pagesTotal.Inc()
	c.itemsFetched.Add(float64(items))
	c.pageFetchSeconds.Observe(duration.Seconds())
}

// ObserveBatch records the outcome of one ingested batch along with the
// items rejected while normalizing the page it came from.
func (c *IngestCollector) ObserveBatch(result models.IngestResult, rejected map[models.RejectReason]int) {
	c.recordsInserted.Add(float64(result.Inserted))
	c.recordsSkipped.Add(float64(result.Skipped))
	c.recordErrors.Add(float64(result.Failed))
	for reason, n := range rejected {
		c.recordsRejected.WithLabelValues(string(reason)).Add(float64(n))
	}
}

// ObserveRun records a finished run with its terminal status.
func (c *IngestCollector) ObserveRun(status string) {
	c.runsTotal.WithLabelValues(status).Inc()
}
