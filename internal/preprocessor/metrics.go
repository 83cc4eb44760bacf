package preprocessor

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cppx_runs_total",
			Help: "Completed preprocessing runs by result",
		}, []string{"result"},
	)

	macroExpansions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cppx_macro_expansions_total",
			Help: "Macro replacements performed by macro kind",
		}, []string{"kind"},
	)

	diagnosticsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cppx_diagnostics_total",
			Help: "Diagnostics reported by kind and severity",
		}, []string{"kind", "severity"},
	)

	includesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cppx_includes_total",
			Help: "Files entered through #include",
		},
	)

	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cppx_run_duration_seconds",
			Help:    "Wall time of preprocessing runs",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(runsTotal, macroExpansions, diagnosticsTotal, includesTotal, runDuration)
}
