package distribution

// Resolver locates streams of global indices. Consecutive indices usually
// share an owner, so the last owner is checked before searching the table.
// A Resolver is not safe for concurrent use.
type Resolver struct {
	table *Table
	last  int
}

// NewResolver creates a Resolver over t.
func NewResolver(t *Table) *Resolver {
	return &Resolver{table: t}
}

// Locate is Table.Locate.
func (r *Resolver) Locate(i uint64) (rank int, offset uint64, err error) {
	b := r.table.bounds
	if lo, hi := b[r.last], b[r.last+1]; lo <= i && i < hi {
		return r.last, i - lo, nil
	}
	rank, offset, err = r.table.Locate(i)
	if err != nil {
		return 0, 0, err
	}
	r.last = rank
	return rank, offset, nil
}
