package symdump

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/symdump/pkg/stabs"
)

type metrics struct {
	binariesTotal      *prometheus.CounterVec
	identifiersTotal   *prometheus.CounterVec
	identifierCacheHit prometheus.Counter
	dumpDuration       prometheus.Histogram
	inputBytes         prometheus.Histogram

	stabs *stabs.Metrics
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		binariesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symdump_binaries_total",
			Help: "Total number of binaries processed, by outcome",
		}, []string{"status"}),
		identifiersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symdump_identifiers_total",
			Help: "Total number of identifiers computed, by source",
		}, []string{"source"}),
		identifierCacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symdump_identifier_cache_hits_total",
			Help: "Total number of identifiers served from the cache",
		}),
		dumpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "symdump_dump_duration_seconds",
			Help:    "Time spent dumping a single binary",
			Buckets: prometheus.DefBuckets,
		}),
		inputBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "symdump_input_bytes",
			Help:    "Size of the binaries read, after decompression",
			Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8),
		}),
		stabs: stabs.NewMetrics(reg),
	}

	if reg != nil {
		reg.MustRegister(
			m.binariesTotal,
			m.identifiersTotal,
			m.identifierCacheHit,
			m.dumpDuration,
			m.inputBytes,
		)
	}

	return m
}
