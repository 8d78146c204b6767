package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Vote metrics
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "constituant_votes_total",
		Help: "Votes cast, by outcome (created, updated, rejected)",
	}, []string{"action"})

	// Ingestion metrics
	RecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "constituant_ingested_records_total",
		Help: "Records processed by ingestion, by source and action",
	}, []string{"source", "action"})

	SourceRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "constituant_source_runs_total",
		Help: "Source runs, by source and final status",
	}, []string{"source", "status"})

	SourceRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "constituant_source_run_duration_seconds",
		Help:    "Duration of one source run",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"source"})

	StatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "constituant_status_transitions_total",
		Help: "Bills moved forward by the status job, by new status",
	}, []string{"status"})

	// Classification metrics
	ClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "constituant_classifications_total",
		Help: "Classification calls, by outcome (success, fallback, disabled)",
	}, []string{"outcome"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
