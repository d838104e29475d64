package reco

// Clusterer assigns obstacle cluster IDs to the above-ground returns
// of a gridded, ground-detected frame. IDs start at 1; 0 means
// unclustered. Implementations must be deterministic for a given
// frame so replayed runs produce identical output.
type Clusterer interface {
	// Cluster labels f.ClusterID in place and returns the number of
	// clusters assigned.
	Cluster(f *Frame) (int, error)
	// Name identifies the algorithm for run records and logs.
	Name() string
}

// GridClusterer labels obstacles by walking the polar grid: 2×2 cell
// windows of base-band returns are merged into connected components,
// then each component claims higher returns layer by layer. It is the
// cheapest clusterer and needs no tuning beyond the grid itself.
type GridClusterer struct{}

// Name implements Clusterer.
func (GridClusterer) Name() string { return "grid" }

// Cluster implements Clusterer.
func (GridClusterer) Cluster(f *Frame) (int, error) {
	if err := f.requireGridded("Cluster"); err != nil {
		return 0, err
	}
	n := f.seedClusters()
	f.growClusters(n)
	return n, nil
}

// inBaseBand reports whether point i sits in the cluster seeding band:
// above the tight ground tolerance but below the base height cut.
func (f *Frame) inBaseBand(i int) bool {
	return f.Height[i] >= f.cfg.DZLocal && f.Height[i] < f.cfg.BaseHeightCut
}

// seedClusters merges base-band returns through overlapping 2×2 cell
// windows. A window inherits the highest cluster ID already present in
// it; a window with no labeled points opens a new cluster when it
// holds at least MinSamples returns. Overlap between consecutive
// windows is what stitches neighboring cells into one component.
func (f *Frame) seedClusters() int {
	cfg := f.cfg
	nextID := 1

	var window []int
	for ix := 1; ix < cfg.NAngularGrids; ix++ {
		for iy := 1; iy < cfg.NDistGrids; iy++ {
			window = window[:0]
			for dx := -1; dx <= 0; dx++ {
				for dy := -1; dy <= 0; dy++ {
					for _, i := range f.cell(ix+dx, iy+dy) {
						if f.inBaseBand(i) {
							window = append(window, i)
						}
					}
				}
			}
			if len(window) == 0 {
				continue
			}

			id := 0
			for _, i := range window {
				if f.ClusterID[i] > id {
					id = f.ClusterID[i]
				}
			}
			if id == 0 {
				if len(window) < cfg.MinSamples {
					continue
				}
				id = nextID
				nextID++
			}
			for _, i := range window {
				f.ClusterID[i] = id
			}
		}
	}

	return nextID - 1
}

// growClusters extends each seeded cluster upward. Starting from the
// cluster's returns in the connection band just below the base cut,
// every height layer claims unlabeled returns in the 3×3 cell
// neighborhood of the cluster's occupied cells; growth stops at the
// first layer that adds nothing or at the max height cut.
func (f *Frame) growClusters(clusterCount int) {
	cfg := f.cfg
	connectFloor := cfg.BaseHeightCut - cfg.DZGlobal

	// Occupied cells per cluster within the connection band.
	type gridSet map[cellKey]struct{}

	for id := 1; id <= clusterCount; id++ {
		grids := gridSet{}
		for i := 0; i < f.N; i++ {
			if f.ClusterID[i] == id && f.Height[i] > connectFloor && f.XIdx[i] >= 0 {
				grids[cellKey{f.XIdx[i], f.YIdx[i]}] = struct{}{}
			}
		}
		if len(grids) == 0 {
			continue
		}

		var nearby []int
		for h0 := cfg.BaseHeightCut; h0 < cfg.MaxHeightCut; h0 += cfg.HeightGridSize {
			h1 := h0 + cfg.HeightGridSize
			next := gridSet{}
			for g := range grids {
				nearby = f.neighborhood(nearby[:0], g.ix, g.iy, 1)
				for _, i := range nearby {
					if f.Height[i] < h0 || f.Height[i] >= h1 {
						continue
					}
					f.ClusterID[i] = id
					next[cellKey{f.XIdx[i], f.YIdx[i]}] = struct{}{}
				}
			}
			if len(next) == 0 {
				break
			}
			grids = next
		}
	}
}
