package gindex

import "fmt"

// FromOneBased converts 1-based global indices, as stored by many mesh
// formats, to the 0-based indices New expects.
func FromOneBased[I ~int32 | ~int64 | ~uint32 | ~uint64](indices []I) ([]uint64, error) {
	out := make([]uint64, len(indices))
	for i, v := range indices {
		if v < 1 {
			return nil, fmt.Errorf("%w: 1-based index %d at position %d", ErrIndexOutOfRange, v, i)
		}
		out[i] = uint64(v) - 1
	}
	return out, nil
}
