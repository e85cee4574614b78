package gindex

import (
	"context"
	"fmt"

	"github.com/spacemeshos/go-gindex/codec"
	"github.com/spacemeshos/go-gindex/collective"
)

// Number is the set of element types Take can move.
type Number = codec.Number

// Exchange pulls the requested elements of a distributed array into result,
// in request order. local is this worker's slice of the array and must have
// plan.Owned() elements; result must have plan.Len() elements.
//
// Exchange is collective and moves data in a single round: the payload sizes
// are already known from the plan. Every worker must call it as many times
// as its peers do.
func Exchange[T Number](ctx context.Context, ex *collective.Exchanger, plan *Plan, local, result []T) error {
	if uint64(len(local)) != plan.owned {
		return ex.Abort(ctx, collective.OpTake, fmt.Errorf("%w: local array has %d elements, rank %d owns %d",
			ErrShapeMismatch, len(local), plan.rank, plan.owned))
	}
	if len(result) != plan.n {
		return ex.Abort(ctx, collective.OpTake, fmt.Errorf("%w: result has %d elements, plan requests %d",
			ErrShapeMismatch, len(result), plan.n))
	}
	size := len(plan.requests)
	width := codec.SizeOf[T]()
	send := make([][]byte, size)
	recvSizes := make([]int, size)
	buf := make([]T, 0)
	for peer, offsets := range plan.serves {
		if peer == plan.rank {
			continue
		}
		buf = buf[:0]
		for _, offset := range offsets {
			buf = append(buf, local[offset])
		}
		send[peer] = codec.EncodeNumbers(buf)
		recvSizes[peer] = len(plan.requests[peer]) * width
	}
	bodies, err := ex.AllToAllv(ctx, collective.OpTake, send, recvSizes)
	if err != nil {
		return fmt.Errorf("exchange payload: %w", err)
	}
	for peer := range size {
		if peer == plan.rank {
			scatter(plan, peer, result, func(slot int) T {
				return local[plan.requests[peer][slot]]
			})
			continue
		}
		values, err := codec.DecodeNumbers[T](bodies[peer], len(plan.requests[peer]))
		if err != nil {
			return fmt.Errorf("%w: payload from %d: %w", ErrProtocolViolation, peer, err)
		}
		scatter(plan, peer, result, func(slot int) T {
			return values[slot]
		})
	}
	return nil
}

// scatter writes the values of peer's payload to their result positions.
func scatter[T Number](plan *Plan, peer int, result []T, value func(slot int) T) {
	var slots []int
	if plan.slots != nil {
		slots = plan.slots[peer]
	}
	for j, pos := range plan.positions[peer] {
		slot := j
		if slots != nil {
			slot = slots[j]
		}
		result[pos] = value(slot)
	}
}
