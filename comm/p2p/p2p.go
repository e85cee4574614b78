// Package p2p implements comm.Communicator over libp2p streams.
//
// Every worker runs its own host. Ranks are positions in an ordered list of
// peer IDs that all workers agree on. Each rank keeps one outbound stream per
// peer and writes varint length-prefixed frames to it; inbound frames are
// queued in a mailbox until the matching Recv.
package p2p

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-varint"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spacemeshos/go-gindex/codec"
	"github.com/spacemeshos/go-gindex/comm"
	"github.com/spacemeshos/go-gindex/log"
)

// ProtocolID is the default stream protocol.
const ProtocolID = "/gindex/exchange/1"

// ErrUnknownHost is returned when the host is not part of the rank table.
var ErrUnknownHost = errors.New("host is not in the rank table")

// Opt configures a Transport.
type Opt func(t *Transport)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithProtocol overrides the stream protocol, so that independent groups can
// share hosts.
func WithProtocol(proto string) Opt {
	return func(t *Transport) {
		t.protocol = proto
	}
}

// WithCompression compresses message bodies of at least threshold bytes with
// zstd. Receivers decompress regardless of their own setting.
func WithCompression(threshold int) Opt {
	return func(t *Transport) {
		t.compressAbove = threshold
	}
}

// WithRateLimit limits outbound frames to n per interval, across all peers.
// n <= 0 or interval <= 0 disables the limit.
func WithRateLimit(n int, interval time.Duration) Opt {
	return func(t *Transport) {
		if n <= 0 || interval <= 0 {
			t.limiter = nil
			return
		}
		t.limiter = rate.NewLimiter(rate.Every(interval/time.Duration(n)), n)
	}
}

type outbound struct {
	mu     sync.Mutex
	stream network.Stream
	wr     *bufio.Writer
}

// Transport is the communicator of one rank.
type Transport struct {
	logger        *zap.Logger
	protocol      string
	compressAbove int
	limiter       *rate.Limiter

	h     host.Host
	rank  int
	peers []peer.ID
	ranks map[peer.ID]int

	inbox *comm.Mailbox
	out   []outbound

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	metrics *tracker

	closeOnce sync.Once
	closeErr  error
}

var _ comm.Communicator = (*Transport)(nil)

// New registers the stream handler on h and returns the communicator of the
// rank h holds in peers.
func New(h host.Host, peers []peer.ID, opts ...Opt) (*Transport, error) {
	t := &Transport{
		logger:   zap.NewNop(),
		protocol: ProtocolID,
		h:        h,
		rank:     -1,
		peers:    append([]peer.ID(nil), peers...),
		ranks:    make(map[peer.ID]int, len(peers)),
		inbox:    comm.NewMailbox(),
		out:      make([]outbound, len(peers)),
	}
	for _, opt := range opts {
		opt(t)
	}
	for rank, id := range peers {
		if _, ok := t.ranks[id]; ok {
			return nil, fmt.Errorf("peer %s listed twice", id)
		}
		t.ranks[id] = rank
		if id == h.ID() {
			t.rank = rank
		}
	}
	if t.rank < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHost, h.ID())
	}
	var err error
	if t.compressAbove > 0 {
		t.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, fmt.Errorf("create compressor: %w", err)
		}
	}
	t.decoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxFrameSize))
	if err != nil {
		return nil, fmt.Errorf("create decompressor: %w", err)
	}
	t.metrics = newTracker(t.protocol)
	t.logger = t.logger.With(log.Rank(t.rank))
	h.SetStreamHandler(protocol.ID(t.protocol), t.handle)
	return t, nil
}

// Rank implements comm.Communicator.
func (t *Transport) Rank() int { return t.rank }

// Size implements comm.Communicator.
func (t *Transport) Size() int { return len(t.peers) }

// Send implements comm.Communicator. Messages to the same destination are
// written in call order on a single stream.
func (t *Transport) Send(ctx context.Context, dst int, tag comm.Tag, msg []byte) error {
	if err := comm.CheckRank(t, dst); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if dst == t.rank {
		return t.inbox.Deliver(t.rank, tag, append([]byte(nil), msg...))
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	f := frame{Source: uint32(t.rank), Tag: uint64(tag), Body: msg}
	if t.encoder != nil && len(msg) >= t.compressAbove {
		f.Body = t.encoder.EncodeAll(msg, nil)
		f.Flags |= flagCompressed
		t.metrics.compressed.Inc()
	}
	buf, err := codec.Encode(&f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	start := time.Now()
	if err := t.write(ctx, dst, buf); err != nil {
		return fmt.Errorf("send to %d (%s): %w", dst, t.peers[dst], err)
	}
	t.metrics.sendLatency.Observe(time.Since(start).Seconds())
	t.metrics.sent.Inc()
	t.metrics.sentBytes.Add(float64(len(buf)))
	return nil
}

func (t *Transport) write(ctx context.Context, dst int, buf []byte) error {
	out := &t.out[dst]
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.stream == nil {
		stream, err := t.h.NewStream(ctx, t.peers[dst], protocol.ID(t.protocol))
		if err != nil {
			return err
		}
		out.stream = stream
		out.wr = bufio.NewWriter(stream)
	}
	deadline, _ := ctx.Deadline()
	if err := out.stream.SetWriteDeadline(deadline); err != nil {
		t.logger.Debug("set write deadline", zap.Error(err))
	}
	err := writeFrame(out.wr, buf)
	if err != nil {
		out.stream.Reset()
		out.stream, out.wr = nil, nil
	}
	return err
}

func writeFrame(wr *bufio.Writer, buf []byte) error {
	if _, err := wr.Write(varint.ToUvarint(uint64(len(buf)))); err != nil {
		return err
	}
	if _, err := wr.Write(buf); err != nil {
		return err
	}
	return wr.Flush()
}

// Recv implements comm.Communicator.
func (t *Transport) Recv(ctx context.Context, src int, tag comm.Tag) ([]byte, error) {
	if err := comm.CheckRank(t, src); err != nil {
		return nil, err
	}
	return t.inbox.Recv(ctx, src, tag)
}

func (t *Transport) handle(stream network.Stream) {
	remote := stream.Conn().RemotePeer()
	src, ok := t.ranks[remote]
	if !ok {
		t.logger.Warn("stream from peer outside the rank table", zap.Stringer("remote", remote))
		stream.Reset()
		return
	}
	logger := t.logger.With(log.Peer(src), zap.Stringer("remote", remote))
	rd := bufio.NewReader(stream)
	for {
		size, err := varint.ReadUvarint(rd)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("read frame length", zap.Error(err))
			}
			stream.Close()
			return
		}
		if size > maxFrameSize {
			logger.Warn("frame size limit exceeded", zap.Uint64("frame", size))
			t.metrics.dropped.Inc()
			stream.Reset()
			return
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(rd, buf); err != nil {
			logger.Debug("read frame", zap.Error(err))
			stream.Reset()
			return
		}
		if err := t.receive(src, buf); err != nil {
			logger.Warn("dropping stream", zap.Error(err))
			t.metrics.dropped.Inc()
			stream.Reset()
			return
		}
	}
}

func (t *Transport) receive(src int, buf []byte) error {
	var f frame
	if err := codec.Decode(buf, &f); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	if int(f.Source) != src {
		return fmt.Errorf("frame claims source %d on stream of %d", f.Source, src)
	}
	body := f.Body
	if f.compressed() {
		var err error
		body, err = t.decoder.DecodeAll(f.Body, nil)
		if err != nil {
			return fmt.Errorf("decompress frame: %w", err)
		}
	}
	if err := t.inbox.Deliver(src, comm.Tag(f.Tag), body); err != nil {
		return err
	}
	t.metrics.received.Inc()
	t.metrics.recvBytes.Add(float64(len(buf)))
	return nil
}

// Close stops accepting frames, closes outbound streams and fails pending
// and future Recv calls with comm.ErrClosed. The host is left running.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.h.RemoveStreamHandler(protocol.ID(t.protocol))
		t.inbox.Close()
		var errs []error
		for dst := range t.out {
			out := &t.out[dst]
			out.mu.Lock()
			if out.stream != nil {
				errs = append(errs, out.stream.Close())
				out.stream, out.wr = nil, nil
			}
			out.mu.Unlock()
		}
		if t.encoder != nil {
			errs = append(errs, t.encoder.Close())
		}
		t.decoder.Close()
		t.closeErr = errors.Join(errs...)
	})
	return t.closeErr
}

// NumReceived returns the number of frames delivered by all transports of
// this protocol in the process. It is used for testing.
func (t *Transport) NumReceived() int {
	m := &dto.Metric{}
	if err := t.metrics.received.Write(m); err != nil {
		panic("failed to get metric: " + err.Error())
	}
	return int(m.Counter.GetValue())
}
