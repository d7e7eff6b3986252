package pagefetcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultOK    = "ok"
	resultError = "error"
	resultStale = "stale"
)

var (
	counterPageRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bigdata_page_requests",
			Help: "Number of page requests issued, by result.",
		},
		[]string{"result"},
	)
	gaugePageRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bigdata_page_requests_in_flight",
			Help: "Number of page requests waiting for a response.",
		},
	)
	latencyPageRequest = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bigdata_page_request_latency",
			Help:    "The latency of fetching and loading one page in ms.",
			Buckets: prometheus.ExponentialBuckets(0.1, 1.5, 32),
		},
	)
)

func init() {
	prometheus.MustRegister(counterPageRequests)
	prometheus.MustRegister(gaugePageRequestsInFlight)
	prometheus.MustRegister(latencyPageRequest)
}

func recordPageRequest(result string, since time.Time) {
	counterPageRequests.WithLabelValues(result).Inc()
	latencyPageRequest.Observe(float64(time.Since(since).Microseconds()) / 1000)
}
