package p2p

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/go-gindex/metrics"
)

const (
	subsystem  = "p2p"
	protoLabel = "protocol"
)

var (
	frames = metrics.NewCounter(
		"frames_total",
		subsystem,
		"frames by state",
		[]string{protoLabel, "state"},
	)
	wireBytes = metrics.NewCounter(
		"wire_bytes_total",
		subsystem,
		"encoded frame bytes by direction",
		[]string{protoLabel, "dir"},
	)
	sendLatency = metrics.NewHistogramWithBuckets(
		"send_latency_seconds",
		subsystem,
		"time to write one frame, including stream setup",
		[]string{protoLabel},
		metrics.LatencyBuckets,
	)
)

func newTracker(protocol string) *tracker {
	return &tracker{
		sent:        frames.WithLabelValues(protocol, "sent"),
		received:    frames.WithLabelValues(protocol, "received"),
		dropped:     frames.WithLabelValues(protocol, "dropped"),
		compressed:  frames.WithLabelValues(protocol, "compressed"),
		sentBytes:   wireBytes.WithLabelValues(protocol, "sent"),
		recvBytes:   wireBytes.WithLabelValues(protocol, "received"),
		sendLatency: sendLatency.WithLabelValues(protocol),
	}
}

type tracker struct {
	sent, received, dropped, compressed prometheus.Counter
	sentBytes, recvBytes                prometheus.Counter
	sendLatency                         prometheus.Observer
}
