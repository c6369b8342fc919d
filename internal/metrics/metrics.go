// Package metrics exposes Prometheus counters for import runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FilesProcessed counts import runs by terminal status.
	FilesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moneta",
		Subsystem: "import",
		Name:      "files_processed_total",
		Help:      "Import runs by status.",
	}, []string{"status"})

	// RowsProcessed counts rows by outcome across all runs.
	RowsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moneta",
		Subsystem: "import",
		Name:      "rows_processed_total",
		Help:      "Rows processed by outcome (imported, invalid, duplicate).",
	}, []string{"outcome"})
)
