package reco

import (
	"math"
	"sort"
)

// DBSCANClusterer labels obstacles with density-based clustering over
// the planar (x, y) coordinates of above-ground returns. Z only
// contributes to cluster features, not to the neighborhood metric.
// Compared to the grid clusterer it is insensitive to the polar grid
// layout, at the cost of two tuning knobs (eps, minPts).
type DBSCANClusterer struct {
	// Eps is the neighborhood radius in metres.
	Eps float64
	// MinPts is the minimum neighborhood size for a core point.
	MinPts int
}

// NewDBSCANClusterer constructs a density clusterer with explicit
// parameters. Zero values fall back to the frame config at run time.
func NewDBSCANClusterer(eps float64, minPts int) *DBSCANClusterer {
	return &DBSCANClusterer{Eps: eps, MinPts: minPts}
}

// Name implements Clusterer.
func (c *DBSCANClusterer) Name() string { return "dbscan" }

// Cluster implements Clusterer. Returns that no cluster will accept
// are flagged as noise. Cluster IDs are relabeled by ascending
// centroid (X, then Y) so output is reproducible regardless of point
// order within the frame.
func (c *DBSCANClusterer) Cluster(f *Frame) (int, error) {
	if err := f.requireGridded("Cluster"); err != nil {
		return 0, err
	}

	eps := c.Eps
	if eps <= 0 {
		eps = f.cfg.Eps
	}
	minPts := c.MinPts
	if minPts <= 0 {
		minPts = f.cfg.MinPts
	}

	// Candidate set: everything above the tight ground tolerance.
	cand := make([]int, 0, f.N/4)
	for i := 0; i < f.N; i++ {
		if f.AboveGround(i) {
			cand = append(cand, i)
		}
	}
	if len(cand) == 0 {
		return 0, nil
	}

	idx := newPlanarIndex(f, cand, eps)

	// labels: 0 unvisited, -1 noise, >0 cluster ID (indices into cand).
	labels := make([]int, len(cand))
	clusterID := 0
	eps2 := eps * eps

	for k := range cand {
		if labels[k] != 0 {
			continue
		}
		neighbors := idx.query(k, eps2, nil)
		if len(neighbors) < minPts {
			labels[k] = -1
			continue
		}
		clusterID++
		labels[k] = clusterID

		// Queue-based expansion; the slice doubles as the queue.
		for j := 0; j < len(neighbors); j++ {
			nk := neighbors[j]
			if labels[nk] == -1 {
				labels[nk] = clusterID // noise becomes a border point
			}
			if labels[nk] != 0 {
				continue
			}
			labels[nk] = clusterID
			more := idx.query(nk, eps2, nil)
			if len(more) >= minPts {
				neighbors = append(neighbors, more...)
			}
		}
	}

	remap := c.centroidOrder(f, cand, labels, clusterID)

	for k, i := range cand {
		switch {
		case labels[k] > 0:
			f.ClusterID[i] = remap[labels[k]]
		default:
			f.Flags[i] |= FlagNoise
		}
	}

	return clusterID, nil
}

// centroidOrder returns a relabeling of 1..clusterID sorted by cluster
// centroid (X, then Y).
func (c *DBSCANClusterer) centroidOrder(f *Frame, cand, labels []int, clusterID int) []int {
	type centroid struct {
		id   int
		x, y float64
		n    int
	}
	cents := make([]centroid, clusterID+1)
	for k, i := range cand {
		if labels[k] <= 0 {
			continue
		}
		ce := &cents[labels[k]]
		ce.id = labels[k]
		ce.x += f.X[i]
		ce.y += f.Y[i]
		ce.n++
	}
	order := make([]centroid, 0, clusterID)
	for id := 1; id <= clusterID; id++ {
		ce := cents[id]
		if ce.n > 0 {
			ce.x /= float64(ce.n)
			ce.y /= float64(ce.n)
		}
		order = append(order, ce)
	}
	sort.Slice(order, func(a, b int) bool {
		if order[a].x != order[b].x {
			return order[a].x < order[b].x
		}
		return order[a].y < order[b].y
	})

	remap := make([]int, clusterID+1)
	for rank, ce := range order {
		remap[ce.id] = rank + 1
	}
	return remap
}

// planarIndex is a uniform-grid spatial index over the planar
// coordinates of a candidate subset of frame points. Cell size matches
// the query radius so a neighborhood scan touches at most 3×3 cells.
type planarIndex struct {
	f        *Frame
	cand     []int
	cellSize float64
	grid     map[cellKey][]int // cell → candidate positions
}

func newPlanarIndex(f *Frame, cand []int, cellSize float64) *planarIndex {
	idx := &planarIndex{
		f:        f,
		cand:     cand,
		cellSize: cellSize,
		grid:     make(map[cellKey][]int, len(cand)/4+1),
	}
	for k, i := range cand {
		key := idx.keyFor(f.X[i], f.Y[i])
		idx.grid[key] = append(idx.grid[key], k)
	}
	return idx
}

func (idx *planarIndex) keyFor(x, y float64) cellKey {
	return cellKey{
		ix: int(math.Floor(x / idx.cellSize)),
		iy: int(math.Floor(y / idx.cellSize)),
	}
}

// query appends to dst the candidate positions within sqrt(eps2) of
// candidate k and returns the extended slice.
func (idx *planarIndex) query(k int, eps2 float64, dst []int) []int {
	i := idx.cand[k]
	px, py := idx.f.X[i], idx.f.Y[i]
	base := idx.keyFor(px, py)

	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for _, nk := range idx.grid[cellKey{base.ix + dx, base.iy + dy}] {
				ni := idx.cand[nk]
				ddx := idx.f.X[ni] - px
				ddy := idx.f.Y[ni] - py
				if ddx*ddx+ddy*ddy <= eps2 {
					dst = append(dst, nk)
				}
			}
		}
	}
	return dst
}
