package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/go-gindex/collective"
	"github.com/spacemeshos/go-gindex/comm"
	"github.com/spacemeshos/go-gindex/comm/local"
	"github.com/spacemeshos/go-gindex/comm/p2p"
	"github.com/spacemeshos/go-gindex/distribution"
	"github.com/spacemeshos/go-gindex/gindex"
	"github.com/spacemeshos/go-gindex/log"
)

const (
	transportLocal = "local"
	transportP2P   = "p2p"
)

// ErrMismatch is returned when a distributed centroid differs from the
// serial one.
var ErrMismatch = errors.New("centroid mismatch")

// Config of a simulation run.
type Config struct {
	Workers     int           `mapstructure:"workers"`
	NX          int           `mapstructure:"nx"`
	NY          int           `mapstructure:"ny"`
	Transport   string        `mapstructure:"transport"`
	Compression int           `mapstructure:"compression"`
	LogLevel    string        `mapstructure:"log-level"`
	LogJSON     bool          `mapstructure:"log-json"`
	MetricsAddr string        `mapstructure:"metrics-addr"`
	Indexer     gindex.Config `mapstructure:"indexer"`
}

// DefaultConfig returns the configuration used when no flags or file are
// given.
func DefaultConfig() Config {
	cfg := Config{
		Workers:   4,
		NX:        64,
		NY:        64,
		Transport: transportLocal,
		LogLevel:  "info",
		Indexer:   gindex.DefaultConfig(),
	}
	cfg.Indexer.Timeout = 30 * time.Second
	return cfg
}

func (cfg *Config) validate() error {
	switch {
	case cfg.Workers < 1:
		return fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	case cfg.NX < 1 || cfg.NY < 1:
		return fmt.Errorf("mesh must have at least one cell, got %dx%d", cfg.NX, cfg.NY)
	case cfg.Transport != transportLocal && cfg.Transport != transportP2P:
		return fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	return nil
}

// Report summarizes a simulation run.
type Report struct {
	Workers    int
	Cells      int
	Vertices   int
	Requested  int
	Fetched    int
	Remote     int
	Messages   int64
	Rounds     uint64
	Mismatches int
}

func (r *Report) String() string {
	return fmt.Sprintf("workers=%d cells=%d vertices=%d requested=%d fetched=%d remote=%d messages=%d rounds=%d",
		r.Workers, r.Cells, r.Vertices, r.Requested, r.Fetched, r.Remote, r.Messages, r.Rounds)
}

type workerReport struct {
	stats      gindex.Stats
	rounds     uint64
	mismatches int
}

// Run distributes the mesh over cfg.Workers workers, pulls the corner
// coordinates of every local cell with one indexer and checks the resulting
// centroids against a serial computation.
func Run(ctx context.Context, logger *zap.Logger, cfg Config) (*Report, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	mesh := NewMesh(cfg.NX, cfg.NY)
	expected := mesh.Centroids()
	cells, err := distribution.Build(split(len(mesh.Cells), cfg.Workers), distribution.WithCategory("Cell"))
	if err != nil {
		return nil, err
	}
	vertexCounts := split(mesh.Vertices(), cfg.Workers)

	comms, cleanup, err := connect(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	reports := make([]workerReport, cfg.Workers)
	var eg errgroup.Group
	for rank, c := range comms {
		eg.Go(func() error {
			w := &worker{
				logger:   logger.Named("worker").With(log.Rank(rank)),
				cfg:      cfg,
				mesh:     mesh,
				cells:    cells,
				expected: expected,
			}
			var err error
			reports[rank], err = w.run(ctx, c, vertexCounts[rank])
			if err != nil {
				return fmt.Errorf("worker %d: %w", rank, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Workers: cfg.Workers, Cells: len(mesh.Cells), Vertices: mesh.Vertices()}
	for rank, r := range reports {
		report.Requested += r.stats.Requested
		report.Fetched += r.stats.Fetched
		report.Remote += r.stats.Remote
		report.Rounds = max(report.Rounds, r.rounds)
		report.Mismatches += r.mismatches
		report.Messages += comms[rank].Sends()
	}
	if report.Mismatches > 0 {
		return report, fmt.Errorf("%w: %d cells", ErrMismatch, report.Mismatches)
	}
	return report, nil
}

type worker struct {
	logger   *zap.Logger
	cfg      Config
	mesh     *Mesh
	cells    *distribution.Table
	expected [][3]float64
}

func (w *worker) run(ctx context.Context, c comm.Communicator, vertexCount uint64) (workerReport, error) {
	var report workerReport
	rank := c.Rank()
	ex := collective.New(c,
		collective.WithLogger(w.logger.Named("collective")),
		collective.WithTimeout(w.cfg.Indexer.Timeout),
	)
	// every worker only knows its own vertex count
	vertices, err := distribution.FromLocalCount(ctx, ex, vertexCount, distribution.WithCategory("Vertex"))
	if err != nil {
		return report, err
	}
	vlo, vhi := vertices.Range(rank)
	clo, chi := w.cells.Range(rank)

	connectivity := make([]int64, 0, 4*(chi-clo))
	for _, cell := range w.mesh.Cells[clo:chi] {
		connectivity = append(connectivity, cell[:]...)
	}
	requested, err := gindex.FromOneBased(connectivity)
	if err != nil {
		return report, err
	}
	ix, err := gindex.New(ctx, c, vertices, requested,
		gindex.WithLogger(w.logger),
		gindex.WithConfig(w.cfg.Indexer),
		gindex.WithExchanger(ex),
	)
	if err != nil {
		return report, err
	}
	var coords [3][]float64
	for axis, global := range [3][]float64{w.mesh.X, w.mesh.Y, w.mesh.Z} {
		coords[axis], err = gindex.Take(ctx, ix, global[vlo:vhi])
		if err != nil {
			return report, fmt.Errorf("take axis %d: %w", axis, err)
		}
	}
	for k := range int(chi - clo) {
		got := centroid(coords[0], coords[1], coords[2], 4*k)
		if want := w.expected[int(clo)+k]; got != want {
			report.mismatches++
			w.logger.Warn("centroid mismatch",
				zap.Uint64("cell", clo+uint64(k)),
				zap.Float64s("got", got[:]),
				zap.Float64s("want", want[:]),
			)
		}
	}
	report.stats = ix.Plan().Stats()
	report.rounds = ex.Seq()
	w.logger.Debug("worker done",
		zap.Uint64("cells", chi-clo),
		zap.Uint64("vertices", vhi-vlo),
		zap.Int("remote", report.stats.Remote),
		zap.Int("peers", report.stats.Peers),
	)
	return report, nil
}

// connect builds one counting communicator per worker.
func connect(ctx context.Context, logger *zap.Logger, cfg Config) ([]*comm.Counting, func(), error) {
	comms := make([]*comm.Counting, cfg.Workers)
	if cfg.Transport == transportLocal {
		g := local.NewGroup(cfg.Workers)
		for rank, ep := range g.Endpoints() {
			comms[rank] = comm.NewCounting(ep)
		}
		return comms, g.Close, nil
	}

	var (
		hosts      []host.Host
		transports []*p2p.Transport
	)
	cleanup := func() {
		for _, tr := range transports {
			if err := tr.Close(); err != nil {
				logger.Debug("close transport", zap.Error(err))
			}
		}
		for _, h := range hosts {
			h.Close()
		}
	}
	for range cfg.Workers {
		h, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("create host: %w", err)
		}
		hosts = append(hosts, h)
	}
	peers := make([]peer.ID, len(hosts))
	for i, h := range hosts {
		peers[i] = h.ID()
	}
	for i, h := range hosts {
		for _, other := range hosts[i+1:] {
			if err := h.Connect(ctx, peer.AddrInfo{ID: other.ID(), Addrs: other.Addrs()}); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("connect %s to %s: %w", h.ID(), other.ID(), err)
			}
		}
	}
	opts := []p2p.Opt{p2p.WithLogger(logger.Named("p2p"))}
	if cfg.Compression > 0 {
		opts = append(opts, p2p.WithCompression(cfg.Compression))
	}
	for rank, h := range hosts {
		tr, err := p2p.New(h, peers, opts...)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		transports = append(transports, tr)
		comms[rank] = comm.NewCounting(tr)
	}
	return comms, cleanup, nil
}
