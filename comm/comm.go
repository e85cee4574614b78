// Package comm defines the point-to-point communicator that collective
// exchanges run over.
//
// A communicator is a fixed group of Size() workers, each addressed by a rank
// in [0, Size()). Messages are addressed by (source, tag); a receiver asks for
// a specific source and tag and gets messages from that pair in the order they
// were sent. Send is eager: it returns once the message is handed to the
// transport and never waits for a matching Recv.
package comm

import (
	"context"
	"errors"
	"fmt"
)

//go:generate mockgen -typed -package=mocks -destination=./mocks/mocks.go -source=./comm.go

var (
	// ErrClosed is returned by operations on a closed communicator.
	ErrClosed = errors.New("communicator closed")
	// ErrInvalidRank is returned when a rank is outside of [0, Size()).
	ErrInvalidRank = errors.New("invalid rank")
)

// Tag separates independent message streams between the same pair of ranks.
type Tag uint64

// Communicator is the process-group handle collective operations use.
type Communicator interface {
	// Rank is the rank of the local worker.
	Rank() int
	// Size is the number of workers in the group.
	Size() int
	// Send delivers msg to dst under tag. The caller may reuse msg after Send
	// returns.
	Send(ctx context.Context, dst int, tag Tag, msg []byte) error
	// Recv blocks until a message from src with the given tag arrives or ctx
	// is done.
	Recv(ctx context.Context, src int, tag Tag) ([]byte, error)
}

// CheckRank validates that rank addresses a member of c.
func CheckRank(c Communicator, rank int) error {
	if rank < 0 || rank >= c.Size() {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidRank, rank, c.Size())
	}
	return nil
}
