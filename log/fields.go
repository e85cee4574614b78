package log

import "go.uber.org/zap"

// Rank is the rank of the local worker.
func Rank(rank int) zap.Field {
	return zap.Int("rank", rank)
}

// Peer is the rank of a remote worker.
func Peer(rank int) zap.Field {
	return zap.Int("peer", rank)
}

// Size is the number of workers in the group.
func Size(size int) zap.Field {
	return zap.Int("size", size)
}

// Seq is the sequence number of a collective round.
func Seq(seq uint64) zap.Field {
	return zap.Uint64("seq", seq)
}

// Op names the collective operation a round belongs to.
func Op(op string) zap.Field {
	return zap.String("op", op)
}

// Category is the entity category of a distribution, e.g. "Vertex".
func Category(name string) zap.Field {
	return zap.String("category", name)
}
