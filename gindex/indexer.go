// Package gindex lets a worker that owns a contiguous slice of a distributed
// array read arbitrary elements of that array by global index, wherever they
// are stored.
//
// An Indexer is created collectively from a distribution table and the list
// of global indices the worker needs. Creating it resolves owners and agrees
// with every peer on who sends what; afterwards each Take pulls one array
// with that pattern in a single exchange round:
//
//	ix, err := gindex.New(ctx, c, vertices, connectivity)
//	xs, err := gindex.Take(ctx, ix, localX)
//	ys, err := gindex.Take(ctx, ix, localY)
//
// New and Take are collective: every worker of the communicator calls them,
// in the same order and the same number of times.
package gindex

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-gindex/collective"
	"github.com/spacemeshos/go-gindex/comm"
	"github.com/spacemeshos/go-gindex/distribution"
	"github.com/spacemeshos/go-gindex/log"
)

// Opt configures an Indexer.
type Opt func(ix *Indexer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(ix *Indexer) {
		ix.logger = logger
	}
}

// WithConfig replaces the configuration.
func WithConfig(cfg Config) Opt {
	return func(ix *Indexer) {
		ix.cfg = cfg
	}
}

// WithTimeout bounds every collective round.
func WithTimeout(timeout time.Duration) Opt {
	return func(ix *Indexer) {
		ix.cfg.Timeout = timeout
	}
}

// WithDeduplication requests each distinct element once per owner.
func WithDeduplication() Opt {
	return func(ix *Indexer) {
		ix.cfg.Deduplicate = true
	}
}

// WithExchanger shares an existing exchanger, so that several indexers over
// one communicator keep a single round sequence. The communicator passed to
// New is ignored.
func WithExchanger(ex *collective.Exchanger) Opt {
	return func(ix *Indexer) {
		ix.ex = ex
	}
}

// Indexer pulls elements of distributed arrays by global index. It is owned
// by one worker and must not be used concurrently.
type Indexer struct {
	logger  *zap.Logger
	cfg     Config
	ex      *collective.Exchanger
	table   *distribution.Table
	plan    *Plan
	tracker *tracker
}

// New validates table across the group and builds the exchange plan for
// requested. requested holds 0-based global indices; duplicates and any
// order are allowed. The slice may be reused by the caller once New
// returns.
func New(
	ctx context.Context,
	c comm.Communicator,
	table *distribution.Table,
	requested []uint64,
	opts ...Opt,
) (*Indexer, error) {
	ix := &Indexer{
		logger: zap.NewNop(),
		cfg:    DefaultConfig(),
		table:  table,
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.ex == nil {
		ix.ex = collective.New(c,
			collective.WithLogger(ix.logger.Named("collective")),
			collective.WithTimeout(ix.cfg.Timeout),
		)
	}
	ix.logger = ix.logger.With(log.Rank(ix.ex.Rank()), log.Category(table.Category()))
	ix.tracker = newTracker(table.Category())

	if ix.cfg.VerifyTable {
		if err := distribution.Verify(ctx, ix.ex, table); err != nil {
			return nil, err
		}
	}
	planOpts := []PlanOpt{PlanWithLogger(ix.logger)}
	if ix.cfg.Deduplicate {
		planOpts = append(planOpts, PlanWithDeduplication())
	}
	plan, err := BuildPlan(ctx, ix.ex, table, requested, planOpts...)
	if err != nil {
		return nil, fmt.Errorf("build plan for %s: %w", table, err)
	}
	ix.plan = plan
	return ix, nil
}

// Plan returns the exchange plan.
func (ix *Indexer) Plan() *Plan { return ix.plan }

// Table returns the distribution table.
func (ix *Indexer) Table() *distribution.Table { return ix.table }

// Exchanger returns the exchanger the indexer runs its rounds on.
func (ix *Indexer) Exchanger() *collective.Exchanger { return ix.ex }

// Take returns the requested elements of a distributed array in request
// order. local is this worker's slice of the array.
func Take[T Number](ctx context.Context, ix *Indexer, local []T) ([]T, error) {
	result := make([]T, ix.plan.Len())
	if err := TakeInto(ctx, ix, local, result); err != nil {
		return nil, err
	}
	return result, nil
}

// TakeInto is Take writing into a caller-provided result of Plan().Len()
// elements.
func TakeInto[T Number](ctx context.Context, ix *Indexer, local, result []T) error {
	start := time.Now()
	err := Exchange(ctx, ix.ex, ix.plan, local, result)
	ix.tracker.takeLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		ix.tracker.takeFailed.Inc()
		ix.logger.Debug("take failed", zap.Error(err))
		return err
	}
	ix.tracker.takeOK.Inc()
	return nil
}
