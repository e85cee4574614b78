package gindex

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-gindex/codec"
	"github.com/spacemeshos/go-gindex/collective"
	"github.com/spacemeshos/go-gindex/distribution"
	"github.com/spacemeshos/go-gindex/log"
)

// PlanOpt configures BuildPlan.
type PlanOpt func(o *planOptions)

type planOptions struct {
	logger *zap.Logger
	dedup  bool
}

// PlanWithLogger sets the logger used while building the plan.
func PlanWithLogger(logger *zap.Logger) PlanOpt {
	return func(o *planOptions) {
		o.logger = logger
	}
}

// PlanWithDeduplication requests each distinct offset once per owner.
func PlanWithDeduplication() PlanOpt {
	return func(o *planOptions) {
		o.dedup = true
	}
}

// Stats summarizes a plan.
type Stats struct {
	// Requested is the number of requested indices, duplicates included.
	Requested int
	// Fetched is the number of elements pulled from owners. It is below
	// Requested only with deduplication.
	Fetched int
	// Local is the number of fetched elements owned by this worker.
	Local int
	// Remote is the number of fetched elements owned by other workers.
	Remote int
	// Peers is the number of other workers this one requests from.
	Peers int
	// Served is the number of elements other workers request from this one.
	Served int
}

// Plan is the routing metadata of one request pattern. It is built once,
// collectively, and reused by any number of Take calls while the
// distribution and the request pattern stay the same. Values of the
// distributed arrays may change freely between calls.
type Plan struct {
	rank  int
	owned uint64
	n     int

	// requests[p] are the offsets asked of worker p, in payload order.
	requests [][]uint64
	// positions[p][j] is the result position filled by the j-th request
	// entry routed to p.
	positions [][]int
	// slots[p][j] is the payload slot of that entry. nil means slot j.
	slots [][]int
	// serves[p] are the offsets worker p asked of this one.
	serves [][]uint64

	stats Stats
}

// Len is the number of requested indices and the length of every Take
// result.
func (p *Plan) Len() int { return p.n }

// Owned is the length of the local array Take expects.
func (p *Plan) Owned() uint64 { return p.owned }

// Requests returns the offsets this worker asks of rank.
func (p *Plan) Requests(rank int) []uint64 {
	return append([]uint64(nil), p.requests[rank]...)
}

// Serves returns the offsets rank asks of this worker.
func (p *Plan) Serves(rank int) []uint64 {
	return append([]uint64(nil), p.serves[rank]...)
}

// Stats returns a summary of the plan.
func (p *Plan) Stats() Stats { return p.stats }

// route groups requested indices by owner.
func route(table *distribution.Table, rank int, requested []uint64, dedup bool) (*Plan, error) {
	size := table.Size()
	p := &Plan{
		rank:      rank,
		owned:     table.Count(rank),
		n:         len(requested),
		requests:  make([][]uint64, size),
		positions: make([][]int, size),
		serves:    make([][]uint64, size),
	}
	var seen []map[uint64]int
	if dedup {
		p.slots = make([][]int, size)
		seen = make([]map[uint64]int, size)
	}
	resolver := distribution.NewResolver(table)
	for pos, index := range requested {
		owner, offset, err := resolver.Locate(index)
		if err != nil {
			return nil, fmt.Errorf("requested position %d: %w", pos, err)
		}
		p.positions[owner] = append(p.positions[owner], pos)
		if !dedup {
			p.requests[owner] = append(p.requests[owner], offset)
			continue
		}
		if seen[owner] == nil {
			seen[owner] = make(map[uint64]int)
		}
		slot, ok := seen[owner][offset]
		if !ok {
			slot = len(p.requests[owner])
			seen[owner][offset] = slot
			p.requests[owner] = append(p.requests[owner], offset)
		}
		p.slots[owner] = append(p.slots[owner], slot)
	}
	p.stats.Requested = len(requested)
	for owner, offsets := range p.requests {
		p.stats.Fetched += len(offsets)
		switch {
		case owner == rank:
			p.stats.Local += len(offsets)
		case len(offsets) > 0:
			p.stats.Remote += len(offsets)
			p.stats.Peers++
		}
	}
	return p, nil
}

// BuildPlan builds the exchange plan for requested collectively. Every
// worker of the group must call it, including workers that request nothing.
//
// The counts of requested elements are exchanged first so that every worker
// knows how many offsets to expect from each peer; the offset lists follow
// in a second round. A third, empty round confirms that every worker
// accepted the offsets it was asked for. No array data moves.
func BuildPlan(
	ctx context.Context,
	ex *collective.Exchanger,
	table *distribution.Table,
	requested []uint64,
	opts ...PlanOpt,
) (*Plan, error) {
	o := planOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	category := table.Category()
	plan, err := buildPlan(ctx, ex, table, requested, o)
	planBuilds.WithLabelValues(category, resultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}
	planRequests.WithLabelValues(category, "local").Add(float64(plan.stats.Local))
	planRequests.WithLabelValues(category, "remote").Add(float64(plan.stats.Remote))
	o.logger.Debug("exchange plan built",
		log.Category(category),
		zap.Int("requested", plan.stats.Requested),
		zap.Int("fetched", plan.stats.Fetched),
		zap.Int("remote", plan.stats.Remote),
		zap.Int("peers", plan.stats.Peers),
		zap.Int("served", plan.stats.Served),
	)
	return plan, nil
}

func buildPlan(
	ctx context.Context,
	ex *collective.Exchanger,
	table *distribution.Table,
	requested []uint64,
	o planOptions,
) (*Plan, error) {
	if table.Size() != ex.Size() {
		return nil, ex.Abort(ctx, collective.OpPlanCounts, fmt.Errorf("%w: %s has %d slices for %d workers",
			ErrInconsistentDistribution, table, table.Size(), ex.Size()))
	}
	rank, size := ex.Rank(), ex.Size()
	plan, err := route(table, rank, requested, o.dedup)
	if err != nil {
		return nil, ex.Abort(ctx, collective.OpPlanCounts, err)
	}

	counts := make([]uint64, size)
	for peer, offsets := range plan.requests {
		counts[peer] = uint64(len(offsets))
	}
	incoming, err := ex.AllToAll(ctx, collective.OpPlanCounts, counts)
	if err != nil {
		return nil, fmt.Errorf("exchange request counts: %w", err)
	}

	width := codec.SizeOf[uint64]()
	send := make([][]byte, size)
	recvSizes := make([]int, size)
	for peer := range size {
		send[peer] = codec.EncodeNumbers(plan.requests[peer])
		if incoming[peer] > uint64(math.MaxInt/width) {
			// still join the offsets round so that peers are not left waiting
			return nil, ex.Abort(ctx, collective.OpPlanOffsets, fmt.Errorf("%w: rank %d announced %d requests",
				ErrProtocolViolation, peer, incoming[peer]))
		}
		recvSizes[peer] = int(incoming[peer]) * width
	}
	bodies, err := ex.AllToAllv(ctx, collective.OpPlanOffsets, send, recvSizes)
	if err != nil {
		return nil, fmt.Errorf("exchange request offsets: %w", err)
	}
	if err := plan.accept(bodies, incoming); err != nil {
		// peers already hold a plan, fail the confirm round for all of them
		return nil, ex.Abort(ctx, collective.OpPlanConfirm, err)
	}
	if _, err := ex.AllGather(ctx, collective.OpPlanConfirm, nil); err != nil {
		return nil, fmt.Errorf("confirm plan: %w", err)
	}
	return plan, nil
}

// accept validates the offsets every peer asked of this worker and stores
// them as the serve lists.
func (p *Plan) accept(bodies [][]byte, incoming []uint64) error {
	for peer, body := range bodies {
		offsets, err := codec.DecodeNumbers[uint64](body, int(incoming[peer]))
		if err != nil {
			return fmt.Errorf("%w: offsets from %d: %w", ErrProtocolViolation, peer, err)
		}
		for _, offset := range offsets {
			if offset >= p.owned {
				return fmt.Errorf("%w: rank %d requested offset %d, rank %d owns %d",
					ErrProtocolViolation, peer, offset, p.rank, p.owned)
			}
		}
		p.serves[peer] = offsets
		if peer != p.rank {
			p.stats.Served += len(offsets)
		}
	}
	return nil
}
