// Package collective implements the collective rounds used to exchange data
// between all members of a communicator.
//
// Every method of Exchanger is collective: all workers of the group must call
// the same methods in the same order. Each call is one round. A round is
// tagged with a sequence number that every worker advances in lockstep, so
// messages of different rounds never mix even when the transport reorders
// them. A worker that cannot take part in a round because of a local error
// still joins it through Abort, and its peers fail with ErrPeerAborted
// instead of blocking.
package collective

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/go-gindex/codec"
	"github.com/spacemeshos/go-gindex/comm"
	"github.com/spacemeshos/go-gindex/log"
)

var (
	// ErrProtocolViolation is returned when peers are observed to be out of
	// step: a message for a different operation, an unexpected size, or a
	// malformed envelope.
	ErrProtocolViolation = errors.New("collective protocol violation")
	// ErrExchangeTimeout is returned when a round does not complete within
	// the configured timeout.
	ErrExchangeTimeout = errors.New("collective exchange timed out")
	// ErrPeerAborted is returned when a peer joined the round with an abort.
	ErrPeerAborted = errors.New("peer aborted collective")
	// ErrBroken is returned by every call after a round failed in a way that
	// leaves peers out of step.
	ErrBroken = errors.New("exchanger is broken")
)

// Opt configures an Exchanger.
type Opt func(e *Exchanger)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(e *Exchanger) {
		e.logger = logger
	}
}

// WithTimeout bounds every round. Zero disables the bound, a missing peer
// then blocks the round until ctx is done.
func WithTimeout(timeout time.Duration) Opt {
	return func(e *Exchanger) {
		e.timeout = timeout
	}
}

// Exchanger runs collective rounds over a communicator. It is owned by one
// worker and must not be used concurrently.
type Exchanger struct {
	logger  *zap.Logger
	comm    comm.Communicator
	timeout time.Duration

	seq    uint64
	broken error
}

// New creates an Exchanger over c.
func New(c comm.Communicator, opts ...Opt) *Exchanger {
	e := &Exchanger{
		logger: zap.NewNop(),
		comm:   c,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(log.Rank(c.Rank()), log.Size(c.Size()))
	return e
}

// Rank is the rank of the local worker.
func (e *Exchanger) Rank() int { return e.comm.Rank() }

// Size is the number of workers.
func (e *Exchanger) Size() int { return e.comm.Size() }

// Seq is the number of rounds this worker has entered.
func (e *Exchanger) Seq() uint64 { return e.seq }

// AllToAll sends send[p] to every worker p and returns the value each worker
// sent to this one. It is the fixed-size count phase that sizes a later
// AllToAllv.
func (e *Exchanger) AllToAll(ctx context.Context, op Op, send []uint64) ([]uint64, error) {
	if len(send) != e.Size() {
		return nil, e.Abort(ctx, op, fmt.Errorf("all-to-all: %d values for %d workers", len(send), e.Size()))
	}
	out := make([][]byte, e.Size())
	for p, v := range send {
		out[p] = codec.EncodeNumbers([]uint64{v})
	}
	in, err := e.round(ctx, op, out, nil)
	if err != nil {
		return nil, err
	}
	recv := make([]uint64, e.Size())
	for p, body := range in {
		values, err := codec.DecodeNumbers[uint64](body, 1)
		if err != nil {
			return nil, fmt.Errorf("%w: %s from %d: %w", ErrProtocolViolation, op, p, err)
		}
		recv[p] = values[0]
	}
	return recv, nil
}

// AllToAllv sends send[p] to every worker p and returns what each worker
// sent to this one. recvSizes[p] is the number of bytes expected from worker
// p, as agreed in an earlier count phase. A body of any other size fails the
// round with ErrProtocolViolation.
func (e *Exchanger) AllToAllv(ctx context.Context, op Op, send [][]byte, recvSizes []int) ([][]byte, error) {
	if len(send) != e.Size() || len(recvSizes) != e.Size() {
		return nil, e.Abort(ctx, op, fmt.Errorf("all-to-allv: %d bodies and %d sizes for %d workers",
			len(send), len(recvSizes), e.Size()))
	}
	if self := e.Rank(); len(send[self]) != recvSizes[self] {
		return nil, e.Abort(ctx, op, fmt.Errorf("all-to-allv: self body has %d bytes, expected %d",
			len(send[self]), recvSizes[self]))
	}
	in, err := e.round(ctx, op, send, nil)
	if err != nil {
		return nil, err
	}
	for p, body := range in {
		if len(body) != recvSizes[p] {
			return nil, fmt.Errorf("%w: %s from %d: got %d bytes, expected %d",
				ErrProtocolViolation, op, p, len(body), recvSizes[p])
		}
	}
	return in, nil
}

// AllGather sends data to every worker and returns the data of all workers
// ordered by rank.
func (e *Exchanger) AllGather(ctx context.Context, op Op, data []byte) ([][]byte, error) {
	out := make([][]byte, e.Size())
	for p := range out {
		out[p] = data
	}
	return e.round(ctx, op, out, nil)
}

// Abort joins the current round without data so that peers fail together
// with ErrPeerAborted. It returns cause.
func (e *Exchanger) Abort(ctx context.Context, op Op, cause error) error {
	if cause == nil {
		cause = errors.New("aborted")
	}
	e.logger.Debug("aborting collective round",
		log.Op(op.String()),
		log.Seq(e.seq+1),
		zap.Error(cause),
	)
	if _, err := e.round(ctx, op, nil, cause); err != nil && !errors.Is(err, cause) {
		e.logger.Warn("abort round failed", log.Op(op.String()), zap.Error(err))
	}
	return cause
}

// round is one exchange step. When cause is set the worker sends abort
// envelopes instead of out and returns cause after draining its peers.
func (e *Exchanger) round(ctx context.Context, op Op, out [][]byte, cause error) ([][]byte, error) {
	if e.broken != nil {
		return nil, e.broken
	}
	e.seq++
	seq := e.seq
	rank, size := e.Rank(), e.Size()
	start := time.Now()

	in := make([][]byte, size)
	if size == 1 {
		if cause != nil {
			rounds.WithLabelValues(op.String(), "aborted").Inc()
			return nil, cause
		}
		in[rank] = out[rank]
		rounds.WithLabelValues(op.String(), "ok").Inc()
		return in, nil
	}

	parent := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var reason []byte
	if cause != nil {
		reason = []byte(cause.Error())
		if len(reason) > maxReasonSize {
			reason = reason[:maxReasonSize]
		}
	} else {
		in[rank] = out[rank]
	}

	tag := comm.Tag(seq)
	aborted := make([]bool, size)
	reasons := make([][]byte, size)
	var sent, received int
	sizes := make([]int, size)
	eg, ectx := errgroup.WithContext(ctx)
	for peer := range size {
		if peer == rank {
			continue
		}
		env := envelope{Seq: seq, Op: op, Reason: reason}
		if cause != nil {
			env.Flags |= flagAbort
		} else {
			env.Body = out[peer]
			sent += len(env.Body)
		}
		eg.Go(func() error {
			buf, err := codec.Encode(&env)
			if err != nil {
				return fmt.Errorf("encode %s for %d: %w", op, peer, err)
			}
			if err := e.comm.Send(ectx, peer, tag, buf); err != nil {
				return fmt.Errorf("send %s to %d: %w", op, peer, err)
			}
			return nil
		})
		eg.Go(func() error {
			buf, err := e.comm.Recv(ectx, peer, tag)
			if err != nil {
				return fmt.Errorf("recv %s from %d: %w", op, peer, err)
			}
			var got envelope
			if err := codec.Decode(buf, &got); err != nil {
				return fmt.Errorf("%w: %s from %d: %w", ErrProtocolViolation, op, peer, err)
			}
			if got.Seq != seq {
				return fmt.Errorf("%w: %s from %d: sequence %d, expected %d",
					ErrProtocolViolation, op, peer, got.Seq, seq)
			}
			if got.Op != op {
				return fmt.Errorf("%w: rank %d is in %s while rank %d is in %s (sequence %d)",
					ErrProtocolViolation, peer, got.Op, rank, op, seq)
			}
			if got.aborted() {
				aborted[peer] = true
				reasons[peer] = got.Reason
				return nil
			}
			in[peer] = got.Body
			sizes[peer] = len(got.Body)
			return nil
		})
	}
	err := eg.Wait()
	for _, n := range sizes {
		received += n
	}
	roundLatency.WithLabelValues(op.String()).Observe(time.Since(start).Seconds())
	roundBytes.WithLabelValues(op.String(), "sent").Add(float64(sent))
	roundBytes.WithLabelValues(op.String(), "received").Add(float64(received))

	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil:
		e.broken = fmt.Errorf("%w: %w: %s round %d after %v", ErrBroken, ErrExchangeTimeout, op, seq, e.timeout)
		rounds.WithLabelValues(op.String(), "timeout").Inc()
		e.logger.Warn("collective round timed out",
			log.Op(op.String()),
			log.Seq(seq),
			zap.Duration("timeout", e.timeout),
		)
		return nil, fmt.Errorf("%w: %s round %d after %v: %w", ErrExchangeTimeout, op, seq, e.timeout, err)
	case err != nil:
		// peers are in an unknown state, later rounds would pair up wrong
		// messages or block forever
		e.broken = fmt.Errorf("%w: %s round %d: %w", ErrBroken, op, seq, err)
		rounds.WithLabelValues(op.String(), "failed").Inc()
		e.logger.Debug("collective round failed", log.Op(op.String()), log.Seq(seq), zap.Error(err))
		return nil, err
	case cause != nil:
		rounds.WithLabelValues(op.String(), "aborted").Inc()
		return nil, cause
	}
	for peer, reason := range reasons {
		if aborted[peer] {
			rounds.WithLabelValues(op.String(), "peer_aborted").Inc()
			e.logger.Debug("peer aborted collective round",
				log.Op(op.String()),
				log.Seq(seq),
				log.Peer(peer),
				zap.ByteString("reason", reason),
			)
			return nil, fmt.Errorf("%w: %s round %d: rank %d: %s", ErrPeerAborted, op, seq, peer, reason)
		}
	}
	rounds.WithLabelValues(op.String(), "ok").Inc()
	return in, nil
}
