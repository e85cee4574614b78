package gindex

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/go-gindex/comm"
	"github.com/spacemeshos/go-gindex/comm/local"
	"github.com/spacemeshos/go-gindex/distribution"
	"github.com/spacemeshos/go-gindex/log/logtest"
)

// runWorld runs fn once per rank of an in-process group of the given size.
func runWorld(t *testing.T, size int, fn func(c *comm.Counting) error) []error {
	t.Helper()
	g := local.NewGroup(size, local.WithJitter(500*time.Microsecond))
	t.Cleanup(g.Close)
	errs := make([]error, size)
	var eg errgroup.Group
	for _, ep := range g.Endpoints() {
		c := comm.NewCounting(ep)
		eg.Go(func() error {
			errs[ep.Rank()] = fn(c)
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	return errs
}

func requireNoErrors(t *testing.T, errs []error) {
	t.Helper()
	for rank, err := range errs {
		require.NoError(t, err, "rank %d", rank)
	}
}

// slice returns the part of global owned by rank.
func slice[T any](table *distribution.Table, rank int, global []T) []T {
	lo, hi := table.Range(rank)
	return global[lo:hi]
}

func TestSingleWorkerRoundTrip(t *testing.T) {
	table, err := distribution.Build([]uint64{5})
	require.NoError(t, err)
	ix, err := New(context.Background(), local.Self(), table, []uint64{0, 1, 2, 3, 4},
		WithLogger(logtest.New(t)))
	require.NoError(t, err)

	in := []float64{1.5, -2, 3.25, math.Pi, 0}
	out, err := Take(context.Background(), ix, in)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestTwoWorkerExample(t *testing.T) {
	owned := [][]float64{{10, 20, 30}, {40, 50, 60}}
	requests := [][]uint64{{5, 0, 5, 2}, {1}}
	expected := [][]float64{{60, 10, 60, 30}, {20}}

	results := make([][]float64, 2)
	errs := runWorld(t, 2, func(c *comm.Counting) error {
		ctx := context.Background()
		table, err := distribution.Build([]uint64{3, 3}, distribution.WithCategory("Vertex"))
		if err != nil {
			return err
		}
		ix, err := New(ctx, c, table, requests[c.Rank()], WithLogger(logtest.New(t)))
		if err != nil {
			return err
		}
		results[c.Rank()], err = Take(ctx, ix, owned[c.Rank()])
		return err
	})
	requireNoErrors(t, errs)
	require.Equal(t, expected, results)
}

func TestOrderPreservation(t *testing.T) {
	for _, size := range []int{1, 2, 3, 5} {
		for _, dedup := range []bool{false, true} {
			t.Run(fmt.Sprintf("workers=%d/dedup=%v", size, dedup), func(t *testing.T) {
				rng := rand.New(rand.NewPCG(uint64(size), 7))
				counts := make([]uint64, size)
				for p := range counts {
					// some workers own nothing
					if rng.IntN(4) > 0 {
						counts[p] = uint64(rng.IntN(20))
					}
				}
				counts[size-1]++
				table, err := distribution.Build(counts)
				require.NoError(t, err)

				global := make([]float64, table.Len())
				for i := range global {
					global[i] = float64(i)*1.25 - 3
				}
				requests := make([][]uint64, size)
				for p := range requests {
					n := rng.IntN(40)
					for range n {
						requests[p] = append(requests[p], uint64(rng.IntN(int(table.Len()))))
					}
				}

				results := make([][]float64, size)
				opts := []Opt{WithLogger(logtest.New(t)), WithTimeout(10 * time.Second)}
				if dedup {
					opts = append(opts, WithDeduplication())
				}
				errs := runWorld(t, size, func(c *comm.Counting) error {
					ctx := context.Background()
					ix, err := New(ctx, c, table, requests[c.Rank()], opts...)
					if err != nil {
						return err
					}
					results[c.Rank()], err = Take(ctx, ix, slice(table, c.Rank(), global))
					return err
				})
				requireNoErrors(t, errs)

				for p, req := range requests {
					expected := make([]float64, len(req))
					for i, index := range req {
						expected[i] = global[index]
					}
					if diff := cmp.Diff(expected, results[p]); diff != "" {
						t.Errorf("rank %d result mismatch (-want +got):\n%s", p, diff)
					}
				}
			})
		}
	}
}

func TestDeterministicTakes(t *testing.T) {
	const size = 3
	table, err := distribution.Build([]uint64{4, 4, 4})
	require.NoError(t, err)
	global := make([]float64, table.Len())
	for i := range global {
		global[i] = math.Sqrt(float64(i)) / 3
	}
	errs := runWorld(t, size, func(c *comm.Counting) error {
		ctx := context.Background()
		requested := []uint64{11, 0, 5, 5, 7, 3, 11}
		ix, err := New(ctx, c, table, requested)
		if err != nil {
			return err
		}
		local := slice(table, c.Rank(), global)
		first, err := Take(ctx, ix, local)
		if err != nil {
			return err
		}
		for range 5 {
			again, err := Take(ctx, ix, local)
			if err != nil {
				return err
			}
			for i := range first {
				if math.Float64bits(first[i]) != math.Float64bits(again[i]) {
					return fmt.Errorf("position %d differs: %v != %v", i, first[i], again[i])
				}
			}
		}
		return nil
	})
	requireNoErrors(t, errs)
}

func TestPlanReuse(t *testing.T) {
	const size = 4
	table, err := distribution.Build([]uint64{3, 5, 2, 6}, distribution.WithCategory("Vertex"))
	require.NoError(t, err)
	coords := make([][]float64, 3)
	for axis := range coords {
		coords[axis] = make([]float64, table.Len())
		for i := range coords[axis] {
			coords[axis][i] = float64(100*axis + i)
		}
	}
	requests := [][]uint64{{15, 0, 9}, {2, 2}, {}, {8, 1, 14, 3, 3, 10}}

	errs := runWorld(t, size, func(c *comm.Counting) error {
		ctx := context.Background()
		ix, err := New(ctx, c, table, requests[c.Rank()])
		if err != nil {
			return err
		}
		sends, recvs, seq := c.Sends(), c.Recvs(), ix.Exchanger().Seq()
		for axis, global := range coords {
			got, err := Take(ctx, ix, slice(table, c.Rank(), global))
			if err != nil {
				return err
			}
			for i, index := range requests[c.Rank()] {
				if got[i] != global[index] {
					return fmt.Errorf("axis %d position %d: %v != %v", axis, i, got[i], global[index])
				}
			}
		}
		// one message to and from every peer per take, nothing else
		if got := c.Sends() - sends; got != 3*(size-1) {
			return fmt.Errorf("takes sent %d messages", got)
		}
		if got := c.Recvs() - recvs; got != 3*(size-1) {
			return fmt.Errorf("takes received %d messages", got)
		}
		if got := ix.Exchanger().Seq() - seq; got != 3 {
			return fmt.Errorf("takes used %d rounds", got)
		}
		return nil
	})
	requireNoErrors(t, errs)
}

func TestPlanBuildRounds(t *testing.T) {
	const size = 3
	table, err := distribution.Build([]uint64{1, 1, 1})
	require.NoError(t, err)
	errs := runWorld(t, size, func(c *comm.Counting) error {
		ix, err := New(context.Background(), c, table, []uint64{0, 1, 2})
		if err != nil {
			return err
		}
		// verify, counts, offsets, confirm
		if seq := ix.Exchanger().Seq(); seq != 4 {
			return fmt.Errorf("seq %d", seq)
		}
		if sends := c.Sends(); sends != 4*(size-1) {
			return fmt.Errorf("sent %d", sends)
		}
		return nil
	})
	requireNoErrors(t, errs)
}

func TestWorkerWithoutRequests(t *testing.T) {
	table, err := distribution.Build([]uint64{2, 2})
	require.NoError(t, err)
	results := make([][]int32, 2)
	errs := runWorld(t, 2, func(c *comm.Counting) error {
		ctx := context.Background()
		var requested []uint64
		if c.Rank() == 0 {
			requested = []uint64{3, 2}
		}
		ix, err := New(ctx, c, table, requested)
		if err != nil {
			return err
		}
		local := []int32{int32(10 * c.Rank()), int32(10*c.Rank() + 1)}
		results[c.Rank()], err = Take(ctx, ix, local)
		return err
	})
	requireNoErrors(t, errs)
	require.Equal(t, []int32{11, 10}, results[0])
	require.Empty(t, results[1])
}

func TestIndexOutOfRangeFailsTogether(t *testing.T) {
	table, err := distribution.Build([]uint64{3, 3})
	require.NoError(t, err)
	errs := runWorld(t, 2, func(c *comm.Counting) error {
		requested := []uint64{1}
		if c.Rank() == 0 {
			requested = []uint64{6}
		}
		_, err := New(context.Background(), c, table, requested, WithTimeout(5*time.Second))
		return err
	})
	require.ErrorIs(t, errs[0], ErrIndexOutOfRange)
	require.ErrorIs(t, errs[1], ErrPeerAborted)
}

func TestInvalidOffsetsFailTogether(t *testing.T) {
	// rank 1 disagrees on the partition and asks rank 0 for an offset it
	// does not own
	tables := [][]uint64{{3, 3, 2}, {5, 1, 2}, {3, 3, 2}}
	requests := [][]uint64{{0, 7}, {4}, {1}}
	errs := runWorld(t, 3, func(c *comm.Counting) error {
		table, err := distribution.Build(tables[c.Rank()])
		if err != nil {
			return err
		}
		cfg := DefaultConfig()
		cfg.VerifyTable = false
		cfg.Timeout = 5 * time.Second
		_, err = New(context.Background(), c, table, requests[c.Rank()], WithConfig(cfg))
		return err
	})
	require.ErrorIs(t, errs[0], ErrProtocolViolation)
	require.ErrorContains(t, errs[0], "rank 1 requested offset 4, rank 0 owns 3")
	for _, rank := range []int{1, 2} {
		require.ErrorIs(t, errs[rank], ErrPeerAborted, "rank %d", rank)
		require.NotErrorIs(t, errs[rank], ErrExchangeTimeout, "rank %d", rank)
	}
}

func TestShapeMismatch(t *testing.T) {
	table, err := distribution.Build([]uint64{2, 3})
	require.NoError(t, err)
	errs := runWorld(t, 2, func(c *comm.Counting) error {
		ctx := context.Background()
		ix, err := New(ctx, c, table, []uint64{4, 0}, WithTimeout(5*time.Second))
		if err != nil {
			return err
		}
		good := make([]float32, table.Count(c.Rank()))
		bad := good
		if c.Rank() == 1 {
			bad = good[:1]
		}
		_, takeErr := Take(ctx, ix, bad)
		// the group is still in step after the failed take
		if _, err := Take(ctx, ix, good); err != nil {
			return fmt.Errorf("take after failure: %w", err)
		}
		return takeErr
	})
	require.ErrorIs(t, errs[1], ErrShapeMismatch)
	require.ErrorIs(t, errs[0], ErrPeerAborted)
}

func TestTakeIntoWrongResultLength(t *testing.T) {
	table, err := distribution.Build([]uint64{2})
	require.NoError(t, err)
	ix, err := New(context.Background(), local.Self(), table, []uint64{1, 1, 0})
	require.NoError(t, err)
	err = TakeInto(context.Background(), ix, []uint64{7, 8}, make([]uint64, 2))
	require.ErrorIs(t, err, ErrShapeMismatch)

	result := make([]uint64, 3)
	require.NoError(t, TakeInto(context.Background(), ix, []uint64{7, 8}, result))
	require.Equal(t, []uint64{8, 8, 7}, result)
}

func TestMissingTakeTimesOut(t *testing.T) {
	table, err := distribution.Build([]uint64{1, 1})
	require.NoError(t, err)
	errs := runWorld(t, 2, func(c *comm.Counting) error {
		ctx := context.Background()
		ix, err := New(ctx, c, table, []uint64{0, 1}, WithTimeout(100*time.Millisecond))
		if err != nil {
			return err
		}
		if c.Rank() == 1 {
			// skips the take its peer waits for
			return nil
		}
		_, err = Take(ctx, ix, []float64{1})
		return err
	})
	require.NoError(t, errs[1])
	require.ErrorIs(t, errs[0], ErrExchangeTimeout)
}

func TestInconsistentTables(t *testing.T) {
	errs := runWorld(t, 2, func(c *comm.Counting) error {
		counts := []uint64{3, 3}
		if c.Rank() == 1 {
			counts = []uint64{2, 4}
		}
		table, err := distribution.Build(counts)
		if err != nil {
			return err
		}
		_, err = New(context.Background(), c, table, nil)
		return err
	})
	for _, err := range errs {
		require.ErrorIs(t, err, ErrInconsistentDistribution)
	}
}

func TestDeduplicatedPlanStats(t *testing.T) {
	table, err := distribution.Build([]uint64{4, 4})
	require.NoError(t, err)
	requested := []uint64{5, 5, 5, 1, 1, 6}
	stats := make([]Stats, 2)
	errs := runWorld(t, 2, func(c *comm.Counting) error {
		ix, err := New(context.Background(), c, table, requested, WithDeduplication())
		if err != nil {
			return err
		}
		stats[c.Rank()] = ix.Plan().Stats()
		got, err := Take(context.Background(), ix, []uint16{
			uint16(10 * c.Rank()), uint16(10*c.Rank() + 1), uint16(10*c.Rank() + 2), uint16(10*c.Rank() + 3),
		})
		if err != nil {
			return err
		}
		expected := []uint16{11, 11, 11, 1, 1, 12}
		if !cmp.Equal(expected, got) {
			return fmt.Errorf("got %v", got)
		}
		return nil
	})
	requireNoErrors(t, errs)
	require.Equal(t, Stats{Requested: 6, Fetched: 3, Local: 1, Remote: 2, Peers: 1, Served: 1}, stats[0])
	require.Equal(t, Stats{Requested: 6, Fetched: 3, Local: 2, Remote: 1, Peers: 1, Served: 2}, stats[1])
}

func TestPlanAccessors(t *testing.T) {
	table, err := distribution.Build([]uint64{2, 2})
	require.NoError(t, err)
	plans := make([]*Plan, 2)
	errs := runWorld(t, 2, func(c *comm.Counting) error {
		ix, err := New(context.Background(), c, table, []uint64{3, 0, 2})
		if err != nil {
			return err
		}
		plans[c.Rank()] = ix.Plan()
		return nil
	})
	requireNoErrors(t, errs)
	require.Equal(t, []uint64{0}, plans[0].Requests(0))
	require.Equal(t, []uint64{1, 0}, plans[0].Requests(1))
	require.Equal(t, []uint64{1, 0}, plans[1].Serves(0))
	require.Equal(t, 3, plans[1].Len())
	require.EqualValues(t, 2, plans[1].Owned())
}

func TestFromOneBased(t *testing.T) {
	out, err := FromOneBased([]int32{1, 4, 2})
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 3, 1}, out)

	_, err = FromOneBased([]int64{3, 0})
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = FromOneBased([]uint32{0})
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}
