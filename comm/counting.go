package comm

import (
	"context"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/go-gindex/metrics"
)

const subsystem = "comm"

var (
	messages = metrics.NewCounter(
		"messages_total",
		subsystem,
		"point-to-point messages by direction",
		[]string{"dir"},
	)
	messageBytes = metrics.NewCounter(
		"message_bytes_total",
		subsystem,
		"point-to-point payload bytes by direction",
		[]string{"dir"},
	)
	sentMessages = messages.WithLabelValues("sent")
	recvMessages = messages.WithLabelValues("received")
	sentBytes    = messageBytes.WithLabelValues("sent")
	recvBytes    = messageBytes.WithLabelValues("received")
)

// Counting wraps a Communicator and counts the traffic passing through it.
type Counting struct {
	Communicator

	sends, recvs         atomic.Int64
	sentBytes, recvBytes atomic.Int64
}

var _ Communicator = (*Counting)(nil)

// NewCounting instruments c.
func NewCounting(c Communicator) *Counting {
	return &Counting{Communicator: c}
}

// Send implements Communicator.
func (c *Counting) Send(ctx context.Context, dst int, tag Tag, msg []byte) error {
	if err := c.Communicator.Send(ctx, dst, tag, msg); err != nil {
		return err
	}
	c.sends.Add(1)
	c.sentBytes.Add(int64(len(msg)))
	observe(sentMessages, sentBytes, len(msg))
	return nil
}

// Recv implements Communicator.
func (c *Counting) Recv(ctx context.Context, src int, tag Tag) ([]byte, error) {
	msg, err := c.Communicator.Recv(ctx, src, tag)
	if err != nil {
		return nil, err
	}
	c.recvs.Add(1)
	c.recvBytes.Add(int64(len(msg)))
	observe(recvMessages, recvBytes, len(msg))
	return msg, nil
}

func observe(count, bytes prometheus.Counter, n int) {
	count.Inc()
	bytes.Add(float64(n))
}

// Sends is the number of successful Send calls.
func (c *Counting) Sends() int64 { return c.sends.Load() }

// Recvs is the number of successful Recv calls.
func (c *Counting) Recvs() int64 { return c.recvs.Load() }

// SentBytes is the total size of sent messages.
func (c *Counting) SentBytes() int64 { return c.sentBytes.Load() }

// ReceivedBytes is the total size of received messages.
func (c *Counting) ReceivedBytes() int64 { return c.recvBytes.Load() }
