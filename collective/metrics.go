package collective

import (
	"github.com/spacemeshos/go-gindex/metrics"
)

const (
	subsystem = "collective"
	opLabel   = "op"
)

var (
	rounds = metrics.NewCounter(
		"rounds_total",
		subsystem,
		"collective rounds by operation and result",
		[]string{opLabel, "result"},
	)
	roundBytes = metrics.NewCounter(
		"round_bytes_total",
		subsystem,
		"body bytes exchanged with peers by operation and direction",
		[]string{opLabel, "dir"},
	)
	roundLatency = metrics.NewHistogramWithBuckets(
		"round_latency_seconds",
		subsystem,
		"time from entering a round until all peers were heard from",
		[]string{opLabel},
		metrics.LatencyBuckets,
	)
)
