package distribution

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spacemeshos/go-gindex/codec"
	"github.com/spacemeshos/go-gindex/collective"
)

// Verify checks collectively that every worker holds the same table and that
// the table has one slice per worker. On disagreement all workers fail with
// ErrInconsistentDistribution.
func Verify(ctx context.Context, ex *collective.Exchanger, t *Table) error {
	if t.Size() != ex.Size() {
		return ex.Abort(ctx, collective.OpVerifyTable, fmt.Errorf("%w: %s has %d slices for %d workers",
			ErrInconsistentDistribution, t, t.Size(), ex.Size()))
	}
	digest := t.Digest()
	all, err := ex.AllGather(ctx, collective.OpVerifyTable, digest[:])
	if err != nil {
		return fmt.Errorf("verify %s: %w", t, err)
	}
	for peer, other := range all {
		if !bytes.Equal(other, digest[:]) {
			return fmt.Errorf("%w: rank %d has %s, rank %d has digest %x",
				ErrInconsistentDistribution, ex.Rank(), t, peer, other)
		}
	}
	return nil
}

// FromLocalCount builds the table collectively from the number of elements
// each worker owns.
func FromLocalCount(ctx context.Context, ex *collective.Exchanger, count uint64, opts ...Opt) (*Table, error) {
	all, err := ex.AllGather(ctx, collective.OpTableCounts, codec.EncodeNumbers([]uint64{count}))
	if err != nil {
		return nil, fmt.Errorf("gather counts: %w", err)
	}
	counts := make([]uint64, len(all))
	for p, body := range all {
		v, err := codec.DecodeNumbers[uint64](body, 1)
		if err != nil {
			return nil, fmt.Errorf("%w: count from %d: %w", collective.ErrProtocolViolation, p, err)
		}
		counts[p] = v[0]
	}
	return Build(counts, opts...)
}
