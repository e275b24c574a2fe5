package keycache

import "github.com/prometheus/client_golang/prometheus"

var (
	lookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stricklysoft",
		Subsystem: "keycache",
		Name:      "lookups_total",
		Help:      "Key set lookups by result (hit, miss, failure_cached).",
	}, []string{"result"})

	fetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stricklysoft",
		Subsystem: "keycache",
		Name:      "fetches_total",
		Help:      "Key set loads by source (http, store) and outcome (success, failure).",
	}, []string{"source", "outcome"})

	fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stricklysoft",
		Subsystem: "keycache",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of JWKS HTTP fetches.",
		Buckets:   prometheus.DefBuckets,
	})

	refreshesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stricklysoft",
		Subsystem: "keycache",
		Name:      "kid_refreshes_total",
		Help:      "Forced re-fetches triggered by an unknown key id.",
	})
)

func init() {
	prometheus.MustRegister(lookupsTotal, fetchesTotal, fetchDuration, refreshesTotal)
}
