package places

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "places_search_pages_fetched_total",
		Help: "Text search pages fetched from the Places API",
	})

	detailOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "places_detail_fetches_total",
		Help: "Detail enrichments by outcome",
	}, []string{"outcome"}) // ok, fallback, cache_hit

	businessesUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "places_businesses_upserted_total",
		Help: "Businesses written by the ingestion pipeline",
	})

	pipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "places_pipeline_duration_seconds",
		Help:    "End-to-end pipeline run duration",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
	}, []string{"outcome"}) // ok, invalid, upstream_error, store_error
)
