// Package metrics exposes Prometheus counters for synchronization runs. All
// collectors are registered on the default registry; serve them with
// promhttp.Handler when a metrics address is configured.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsDownloaded counts entities received from the provider API,
	// whether or not they were already known locally.
	RowsDownloaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "libsync",
		Name:      "rows_downloaded_total",
		Help:      "Entities received from the provider API, by entity type.",
	}, []string{"entity"})

	// RowsInserted counts entities newly added to the local store.
	RowsInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "libsync",
		Name:      "rows_inserted_total",
		Help:      "Entities newly inserted into the local store, by entity type.",
	}, []string{"entity"})

	// RowsExisting counts entities skipped because they were already stored.
	RowsExisting = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "libsync",
		Name:      "rows_existing_total",
		Help:      "Entities skipped as already present, by entity type.",
	}, []string{"entity"})

	// CacheHits counts listing and detail requests served from the response cache.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "libsync",
		Name:      "cache_hits_total",
		Help:      "API requests answered from the response cache.",
	})

	// CacheMisses counts requests that had to go to the network.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "libsync",
		Name:      "cache_misses_total",
		Help:      "API requests that required a network fetch.",
	})

	// FetchRetries counts retried provider requests.
	FetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "libsync",
		Name:      "fetch_retries_total",
		Help:      "Provider API requests that were retried.",
	})

	// EnrichUpdates counts successful per-item metadata updates.
	EnrichUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "libsync",
		Name:      "enrich_updates_total",
		Help:      "Successful metadata enrichment updates, by entity type.",
	}, []string{"entity"})

	// EnrichFailures counts per-item enrichment failures (logged, not fatal).
	EnrichFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "libsync",
		Name:      "enrich_failures_total",
		Help:      "Metadata enrichment failures, by entity type.",
	}, []string{"entity"})

	// EpgEntries records the programme count of the last guide import.
	EpgEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "libsync",
		Name:      "epg_entries",
		Help:      "Programme entries stored by the most recent guide import.",
	})
)
