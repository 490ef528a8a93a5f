package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veritas",
		Name:      "analyses_total",
		Help:      "Completed analyses by kind and outcome.",
	}, []string{"kind", "outcome"})

	exportTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veritas",
		Name:      "exports_total",
		Help:      "Export downloads by format.",
	}, []string{"format"})
)
