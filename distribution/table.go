// Package distribution describes how a global index range is split into
// contiguous slices owned by the workers of a group.
package distribution

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/spacemeshos/go-gindex/codec"
	"github.com/spacemeshos/go-gindex/hash"
)

var (
	// ErrInvalidDistribution is returned for malformed counts or bounds.
	ErrInvalidDistribution = errors.New("invalid distribution")
	// ErrInconsistentDistribution is returned when workers disagree on the
	// table.
	ErrInconsistentDistribution = errors.New("inconsistent distribution")
	// ErrIndexOutOfRange is returned for a global index outside of [0, N).
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Opt configures a Table.
type Opt func(t *Table)

// WithCategory names the entity category the table distributes, e.g.
// "Vertex" or "Cell".
func WithCategory(name string) Opt {
	return func(t *Table) {
		t.category = name
	}
}

// Table is an immutable contiguous partition of [0, N) over P workers.
// Worker p owns [bounds[p], bounds[p+1]).
type Table struct {
	category string
	bounds   []uint64
	digest   hash.Hash32
}

// Build computes the table from the number of elements owned by each worker.
func Build(counts []uint64, opts ...Opt) (*Table, error) {
	if len(counts) == 0 {
		return nil, fmt.Errorf("%w: no workers", ErrInvalidDistribution)
	}
	bounds := make([]uint64, len(counts)+1)
	for p, c := range counts {
		if c > math.MaxUint64-bounds[p] {
			return nil, fmt.Errorf("%w: total count overflows at worker %d", ErrInvalidDistribution, p)
		}
		bounds[p+1] = bounds[p] + c
	}
	return newTable(bounds, opts), nil
}

// BuildInts is Build for signed counts as they come from external sources.
// Negative counts are rejected.
func BuildInts(counts []int64, opts ...Opt) (*Table, error) {
	unsigned := make([]uint64, len(counts))
	for p, c := range counts {
		if c < 0 {
			return nil, fmt.Errorf("%w: negative count %d for worker %d", ErrInvalidDistribution, c, p)
		}
		unsigned[p] = uint64(c)
	}
	return Build(unsigned, opts...)
}

// FromBounds validates a table given as P+1 offsets.
func FromBounds(bounds []uint64, opts ...Opt) (*Table, error) {
	if len(bounds) < 2 {
		return nil, fmt.Errorf("%w: %d bounds, need at least 2", ErrInvalidDistribution, len(bounds))
	}
	if bounds[0] != 0 {
		return nil, fmt.Errorf("%w: first bound is %d, not 0", ErrInvalidDistribution, bounds[0])
	}
	for p := 1; p < len(bounds); p++ {
		if bounds[p] < bounds[p-1] {
			return nil, fmt.Errorf("%w: bound %d (%d) is below bound %d (%d)",
				ErrInvalidDistribution, p, bounds[p], p-1, bounds[p-1])
		}
	}
	return newTable(append([]uint64(nil), bounds...), opts), nil
}

func newTable(bounds []uint64, opts []Opt) *Table {
	t := &Table{bounds: bounds}
	for _, opt := range opts {
		opt(t)
	}
	t.digest = hash.Sum(codec.EncodeNumbers(bounds))
	return t
}

// Size is the number of workers P.
func (t *Table) Size() int {
	return len(t.bounds) - 1
}

// Len is the global length N.
func (t *Table) Len() uint64 {
	return t.bounds[len(t.bounds)-1]
}

// Range returns the half-open global range owned by rank.
func (t *Table) Range(rank int) (lo, hi uint64) {
	return t.bounds[rank], t.bounds[rank+1]
}

// Count returns the number of elements owned by rank.
func (t *Table) Count(rank int) uint64 {
	return t.bounds[rank+1] - t.bounds[rank]
}

// Bounds returns a copy of the P+1 offsets.
func (t *Table) Bounds() []uint64 {
	return append([]uint64(nil), t.bounds...)
}

// Category returns the entity category, empty if none was set.
func (t *Table) Category() string {
	return t.category
}

// Digest fingerprints the bounds. Tables with equal bounds have equal
// digests regardless of category.
func (t *Table) Digest() hash.Hash32 {
	return t.digest
}

// OwnerOf returns the rank owning global index i.
func (t *Table) OwnerOf(i uint64) (int, error) {
	if i >= t.Len() {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, t.Len())
	}
	// first rank whose upper bound is past i; empty slices are skipped
	// because their upper bound equals their lower bound
	return sort.Search(t.Size(), func(p int) bool {
		return t.bounds[p+1] > i
	}), nil
}

// Locate returns the owner of global index i and the offset of i within the
// owner's slice.
func (t *Table) Locate(i uint64) (rank int, offset uint64, err error) {
	rank, err = t.OwnerOf(i)
	if err != nil {
		return 0, 0, err
	}
	return rank, i - t.bounds[rank], nil
}

// Global converts a local offset of rank back to a global index.
func (t *Table) Global(rank int, offset uint64) uint64 {
	return t.bounds[rank] + offset
}

func (t *Table) String() string {
	name := t.category
	if name == "" {
		name = "table"
	}
	return fmt.Sprintf("%s{n=%d p=%d digest=%s}", name, t.Len(), t.Size(), t.digest.ShortString())
}
