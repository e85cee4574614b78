// Package local implements an in-process communicator group. Every endpoint
// is meant to be driven by its own goroutine, standing in for one worker
// process.
package local

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-gindex/comm"
	"github.com/spacemeshos/go-gindex/log"
)

// Opt configures a Group.
type Opt func(g *Group)

// WithJitter delays every delivery by a random duration up to max, so that
// messages of one round arrive in arbitrary order.
func WithJitter(max time.Duration) Opt {
	return func(g *Group) {
		g.jitter = max
	}
}

// WithLogger sets the logger used to report lost deliveries.
func WithLogger(logger *zap.Logger) Opt {
	return func(g *Group) {
		g.logger = logger
	}
}

// Group is a set of connected endpoints.
type Group struct {
	logger    *zap.Logger
	endpoints []*Endpoint
	jitter    time.Duration

	inflight sync.WaitGroup
	dropped  atomic.Int64
}

// NewGroup creates a group of size endpoints with ranks 0..size-1.
func NewGroup(size int, opts ...Opt) *Group {
	if size < 1 {
		panic("local: group size must be positive")
	}
	g := &Group{
		logger:    zap.NewNop(),
		endpoints: make([]*Endpoint, size),
	}
	for _, opt := range opts {
		opt(g)
	}
	for rank := range g.endpoints {
		g.endpoints[rank] = &Endpoint{
			rank:  rank,
			group: g,
			inbox: comm.NewMailbox(),
		}
	}
	return g
}

// Self returns the single endpoint of a group of size one.
func Self() *Endpoint {
	return NewGroup(1).Endpoint(0)
}

// Size is the number of endpoints.
func (g *Group) Size() int {
	return len(g.endpoints)
}

// Endpoint returns the endpoint with the given rank.
func (g *Group) Endpoint(rank int) *Endpoint {
	return g.endpoints[rank]
}

// Endpoints returns all endpoints ordered by rank.
func (g *Group) Endpoints() []*Endpoint {
	return append([]*Endpoint(nil), g.endpoints...)
}

// Dropped is the number of delayed deliveries that could not be queued at
// the destination.
func (g *Group) Dropped() int64 {
	return g.dropped.Load()
}

// Close waits for delayed deliveries and closes every endpoint.
func (g *Group) Close() {
	g.inflight.Wait()
	for _, ep := range g.endpoints {
		ep.inbox.Close()
	}
}

// Endpoint is one member of a Group.
type Endpoint struct {
	rank  int
	group *Group
	inbox *comm.Mailbox
}

var _ comm.Communicator = (*Endpoint)(nil)

// Rank implements comm.Communicator.
func (e *Endpoint) Rank() int { return e.rank }

// Size implements comm.Communicator.
func (e *Endpoint) Size() int { return e.group.Size() }

// Send implements comm.Communicator.
func (e *Endpoint) Send(ctx context.Context, dst int, tag comm.Tag, msg []byte) error {
	if err := comm.CheckRank(e, dst); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	buf := append([]byte(nil), msg...)
	inbox := e.group.endpoints[dst].inbox
	if e.group.jitter <= 0 {
		return inbox.Deliver(e.rank, tag, buf)
	}
	delay := rand.N(e.group.jitter)
	e.group.inflight.Add(1)
	time.AfterFunc(delay, func() {
		defer e.group.inflight.Done()
		if err := inbox.Deliver(e.rank, tag, buf); err != nil {
			e.group.dropped.Add(1)
			e.group.logger.Debug("delayed delivery dropped",
				log.Rank(e.rank),
				log.Peer(dst),
				zap.Uint64("tag", uint64(tag)),
				zap.Error(err),
			)
		}
	})
	return nil
}

// Recv implements comm.Communicator.
func (e *Endpoint) Recv(ctx context.Context, src int, tag comm.Tag) ([]byte, error) {
	if err := comm.CheckRank(e, src); err != nil {
		return nil, err
	}
	return e.inbox.Recv(ctx, src, tag)
}

// Pending returns the number of (source, tag) pairs this endpoint has queued
// or is waiting on.
func (e *Endpoint) Pending() int {
	return e.inbox.Pending()
}
