package distribution

import (
	"math"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
)

func TestBuildPrefixSums(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(1, 32).Funcs(
		func(c *uint64, cont fuzz.Continue) {
			*c = uint64(cont.Intn(1000))
		},
	)
	for range 100 {
		var counts []uint64
		f.Fuzz(&counts)
		table, err := Build(counts)
		require.NoError(t, err)
		require.Equal(t, len(counts), table.Size())

		var sum uint64
		for p, c := range counts {
			lo, hi := table.Range(p)
			require.Equal(t, sum, lo)
			require.Equal(t, c, table.Count(p))
			sum += c
			require.Equal(t, sum, hi)
		}
		require.Equal(t, sum, table.Len())
	}
}

func TestExampleTable(t *testing.T) {
	table, err := Build([]uint64{3, 3}, WithCategory("Vertex"))
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 3, 6}, table.Bounds())
	require.Equal(t, "Vertex", table.Category())

	for i, owner := range []int{0, 0, 0, 1, 1, 1} {
		rank, err := table.OwnerOf(uint64(i))
		require.NoError(t, err)
		require.Equal(t, owner, rank)
	}
	rank, offset, err := table.Locate(5)
	require.NoError(t, err)
	require.Equal(t, 1, rank)
	require.EqualValues(t, 2, offset)
	require.EqualValues(t, 5, table.Global(rank, offset))

	_, err = table.OwnerOf(6)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, _, err = table.Locate(math.MaxUint64)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestOwnerSkipsEmptySlices(t *testing.T) {
	table, err := Build([]uint64{0, 2, 0, 0, 1, 0})
	require.NoError(t, err)
	expected := []int{1, 1, 4}
	for i, owner := range expected {
		rank, err := table.OwnerOf(uint64(i))
		require.NoError(t, err)
		require.Equal(t, owner, rank, "index %d", i)
	}

	empty, err := Build([]uint64{0, 0})
	require.NoError(t, err)
	_, err = empty.OwnerOf(0)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestInvalidDistribution(t *testing.T) {
	_, err := Build(nil)
	require.ErrorIs(t, err, ErrInvalidDistribution)

	_, err = Build([]uint64{math.MaxUint64, 1})
	require.ErrorIs(t, err, ErrInvalidDistribution)

	_, err = BuildInts([]int64{4, -1, 2})
	require.ErrorIs(t, err, ErrInvalidDistribution)
	require.ErrorContains(t, err, "negative count -1 for worker 1")

	table, err := BuildInts([]int64{4, 0, 2})
	require.NoError(t, err)
	require.EqualValues(t, 6, table.Len())

	for _, bounds := range [][]uint64{nil, {0}, {1, 2}, {0, 5, 3}} {
		_, err := FromBounds(bounds)
		require.ErrorIs(t, err, ErrInvalidDistribution, "bounds %v", bounds)
	}
}

func TestFromBounds(t *testing.T) {
	bounds := []uint64{0, 3, 3, 10}
	table, err := FromBounds(bounds, WithCategory("Cell"))
	require.NoError(t, err)
	bounds[1] = 9
	require.Equal(t, []uint64{0, 3, 3, 10}, table.Bounds(), "table must not alias input")

	built, err := Build([]uint64{3, 0, 7})
	require.NoError(t, err)
	require.Equal(t, built.Digest(), table.Digest())
	require.Contains(t, table.String(), "Cell{n=10 p=3")

	other, err := Build([]uint64{3, 1, 6})
	require.NoError(t, err)
	require.NotEqual(t, built.Digest(), other.Digest())
}

func TestResolverMatchesTable(t *testing.T) {
	table, err := Build([]uint64{5, 0, 1, 7, 3})
	require.NoError(t, err)
	r := NewResolver(table)
	indices := []uint64{0, 1, 4, 5, 6, 15, 2, 12, 6, 6, 0, 16, 3}
	for _, i := range indices {
		rank, offset, err := r.Locate(i)
		expRank, expOffset, expErr := table.Locate(i)
		if expErr != nil {
			require.ErrorIs(t, err, ErrIndexOutOfRange)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, expRank, rank, "index %d", i)
		require.Equal(t, expOffset, offset, "index %d", i)
	}
}
