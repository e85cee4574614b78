package gindex

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/go-gindex/metrics"
)

const (
	subsystem     = "indexer"
	categoryLabel = "category"
)

var (
	planBuilds = metrics.NewCounter(
		"plan_builds_total",
		subsystem,
		"exchange plans built",
		[]string{categoryLabel, "result"},
	)
	planRequests = metrics.NewCounter(
		"plan_requests_total",
		subsystem,
		"requested elements by locality",
		[]string{categoryLabel, "locality"},
	)
	takes = metrics.NewCounter(
		"takes_total",
		subsystem,
		"take calls",
		[]string{categoryLabel, "result"},
	)
	takeLatency = metrics.NewHistogramWithBuckets(
		"take_latency_seconds",
		subsystem,
		"duration of take calls",
		[]string{categoryLabel},
		metrics.LatencyBuckets,
	)
)

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

type tracker struct {
	takeOK, takeFailed prometheus.Counter
	takeLatency        prometheus.Observer
}

func newTracker(category string) *tracker {
	return &tracker{
		takeOK:      takes.WithLabelValues(category, resultLabel(nil)),
		takeFailed:  takes.WithLabelValues(category, "failure"),
		takeLatency: takeLatency.WithLabelValues(category),
	}
}
