package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

var counterPagesServed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bigdata_fixture_pages_served",
		Help: "Number of fixture pages served, by status.",
	},
	[]string{"status"},
)

func init() {
	prometheus.MustRegister(counterPagesServed)
}
