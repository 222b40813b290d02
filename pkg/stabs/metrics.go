package stabs

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Functions        prometheus.Counter
	DroppedFunctions prometheus.Counter
	FallbackSizes    prometheus.Counter
	Warnings         prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Functions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symdump_stabs_functions_total",
			Help: "Total number of functions added to symbol modules from STABS",
		}),
		DroppedFunctions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symdump_stabs_dropped_functions_total",
			Help: "Total number of functions below their compilation unit base address that were left out",
		}),
		FallbackSizes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symdump_stabs_fallback_sizes_total",
			Help: "Total number of functions with no following boundary that got the fallback size",
		}),
		Warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symdump_stabs_warnings_total",
			Help: "Total number of non-fatal problems reported while reading STABS",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Functions,
			m.DroppedFunctions,
			m.FallbackSizes,
			m.Warnings,
		)
	}

	return m
}
