package main

import (
	"math"
)

// Mesh is a structured quad mesh of NX*NY cells on (NX+1)*(NY+1) vertices.
// Vertices are numbered row by row; Cells holds 1-based vertex numbers in
// counter-clockwise order.
type Mesh struct {
	NX, NY  int
	X, Y, Z []float64
	Cells   [][4]int64
}

// NewMesh builds the mesh over the unit square with a bumped z coordinate.
func NewMesh(nx, ny int) *Mesh {
	m := &Mesh{NX: nx, NY: ny}
	nv := (nx + 1) * (ny + 1)
	m.X = make([]float64, 0, nv)
	m.Y = make([]float64, 0, nv)
	m.Z = make([]float64, 0, nv)
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			x, y := float64(i)/float64(nx), float64(j)/float64(ny)
			m.X = append(m.X, x)
			m.Y = append(m.Y, y)
			m.Z = append(m.Z, math.Sin(math.Pi*x)*math.Cos(math.Pi*y))
		}
	}
	vertex := func(i, j int) int64 { return int64(j*(nx+1)+i) + 1 }
	m.Cells = make([][4]int64, 0, nx*ny)
	for j := range ny {
		for i := range nx {
			m.Cells = append(m.Cells, [4]int64{
				vertex(i, j), vertex(i+1, j), vertex(i+1, j+1), vertex(i, j+1),
			})
		}
	}
	return m
}

// Vertices is the number of vertices.
func (m *Mesh) Vertices() int { return len(m.X) }

// centroid averages the four corners stored at offset in xs, ys and zs.
func centroid(xs, ys, zs []float64, offset int) [3]float64 {
	var sum [3]float64
	for k := range 4 {
		sum[0] += xs[offset+k]
		sum[1] += ys[offset+k]
		sum[2] += zs[offset+k]
	}
	return [3]float64{sum[0] / 4, sum[1] / 4, sum[2] / 4}
}

// Centroids computes every cell centroid serially.
func (m *Mesh) Centroids() [][3]float64 {
	out := make([][3]float64, len(m.Cells))
	xs, ys, zs := make([]float64, 4), make([]float64, 4), make([]float64, 4)
	for c, cell := range m.Cells {
		for k, v := range cell {
			xs[k], ys[k], zs[k] = m.X[v-1], m.Y[v-1], m.Z[v-1]
		}
		out[c] = centroid(xs, ys, zs, 0)
	}
	return out
}

// split divides n items into p contiguous near-equal slices.
func split(n, p int) []uint64 {
	counts := make([]uint64, p)
	for r := range counts {
		counts[r] = uint64(n / p)
		if r < n%p {
			counts[r]++
		}
	}
	return counts
}
