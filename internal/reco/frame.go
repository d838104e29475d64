package reco

import (
	"fmt"
	"math"
)

// Frame is one full-coverage rotation frame compacted to valid returns.
// Column arrays all have length N. Height and Flags are populated by
// DetectGround; ClusterID by a Clusterer.
type Frame struct {
	cfg Config

	// N is the number of valid returns kept from the raw frame.
	N int

	X, Y, Z   []float64
	Intensity []float64
	Time      []float64 // nil when the source had no per-point timestamps

	// DistXY is the planar range sqrt(x²+y²), precomputed once.
	DistXY []float64

	// Height is elevation above the fitted ground surface. Before
	// DetectGround runs it holds elevation above the nominal plane
	// z = -LidarHeight.
	Height []float64

	Flags     []PointFlag
	ClusterID []int

	// Polar grid assignment, valid after Gridding.
	Theta      []float64
	XIdx, YIdx []int

	// cells buckets point indices by (xIdx, yIdx), valid after Gridding.
	cells map[cellKey][]int

	// Ground holds the global plane fit z = a·x + b·y + c, valid after
	// DetectGround. Before the fit it is the nominal mount plane.
	Ground PlaneCoeffs

	gridded bool
}

type cellKey struct{ ix, iy int }

// PlaneCoeffs describes a plane z = A·x + B·y + C with the residual of
// the fit that produced it.
type PlaneCoeffs struct {
	A    float64 `json:"a"`
	B    float64 `json:"b"`
	C    float64 `json:"c"`
	RMSE float64 `json:"rmse"`
}

// Config returns the tuning the frame was built with.
func (f *Frame) Config() Config { return f.cfg }

// NewFrame compacts raw returns into a working frame, dropping entries
// marked invalid. When the valid set exceeds cfg.MaxPoints the excess
// is truncated (the decoder preserves scan order, so truncation drops
// the tail of the rotation).
func NewFrame(raw RawPoints, cfg Config) (*Frame, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := raw.Validate(); err != nil {
		return nil, err
	}

	n := 0
	for _, bad := range raw.Invalid {
		if !bad {
			n++
		}
	}
	if cfg.MaxPoints > 0 && n > cfg.MaxPoints {
		n = cfg.MaxPoints
	}

	f := &Frame{
		cfg:       cfg,
		N:         n,
		X:         make([]float64, 0, n),
		Y:         make([]float64, 0, n),
		Z:         make([]float64, 0, n),
		Intensity: make([]float64, 0, n),
		DistXY:    make([]float64, 0, n),
		Height:    make([]float64, n),
		Flags:     make([]PointFlag, n),
		ClusterID: make([]int, n),
		Ground:    PlaneCoeffs{C: -cfg.LidarHeight},
	}
	if raw.Time != nil {
		f.Time = make([]float64, 0, n)
	}

	for i := range raw.X {
		if raw.Invalid[i] {
			continue
		}
		if len(f.X) == n {
			break
		}
		f.X = append(f.X, raw.X[i])
		f.Y = append(f.Y, raw.Y[i])
		f.Z = append(f.Z, raw.Z[i])
		f.Intensity = append(f.Intensity, raw.Intensity[i])
		f.DistXY = append(f.DistXY, math.Hypot(raw.X[i], raw.Y[i]))
		if f.Time != nil {
			f.Time = append(f.Time, raw.Time[i])
		}
	}

	// Nominal heights until DetectGround refines them.
	for i := 0; i < f.N; i++ {
		f.Height[i] = f.Z[i] + cfg.LidarHeight
	}

	return f, nil
}

// Gridding assigns every return to a polar grid cell: angular index
// from the bearing asin(x / distXY), radial index from the planar
// range. Returns that fall outside the configured grid, or sit too
// close to the sensor to have a defined bearing, are flagged as noise
// and left out of the cell buckets.
func (f *Frame) Gridding() {
	f.Theta = make([]float64, f.N)
	f.XIdx = make([]int, f.N)
	f.YIdx = make([]int, f.N)
	f.cells = make(map[cellKey][]int, f.cfg.NAngularGrids*f.cfg.NDistGrids/4+1)

	for i := 0; i < f.N; i++ {
		d := f.DistXY[i]
		if d < f.cfg.MinDist {
			f.Flags[i] |= FlagNoise
			f.XIdx[i], f.YIdx[i] = -1, -1
			continue
		}

		sinTheta := f.X[i] / d
		if sinTheta > 1 {
			sinTheta = 1
		} else if sinTheta < -1 {
			sinTheta = -1
		}
		theta := math.Asin(sinTheta)
		f.Theta[i] = theta

		ix := int((theta + f.cfg.MaxTheta) / f.cfg.ThetaGridSize)
		iy := int((d - f.cfg.MinDist) / f.cfg.DistGridSize)
		if ix < 0 || ix >= f.cfg.NAngularGrids || iy < 0 || iy >= f.cfg.NDistGrids {
			f.Flags[i] |= FlagNoise
			f.XIdx[i], f.YIdx[i] = -1, -1
			continue
		}

		f.XIdx[i] = ix
		f.YIdx[i] = iy
		k := cellKey{ix, iy}
		f.cells[k] = append(f.cells[k], i)
	}

	f.gridded = true
}

// cell returns the point indices bucketed at (ix, iy). Out-of-range
// cells return nil.
func (f *Frame) cell(ix, iy int) []int {
	return f.cells[cellKey{ix, iy}]
}

// neighborhood appends to dst the indices of all points whose grid
// cell lies within the given Chebyshev radius of (ix, iy).
func (f *Frame) neighborhood(dst []int, ix, iy, radius int) []int {
	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			dst = append(dst, f.cell(ix+dx, iy+dy)...)
		}
	}
	return dst
}

// requireGridded is the precondition shared by the grid-walking stages.
func (f *Frame) requireGridded(op string) error {
	if !f.gridded {
		return fmt.Errorf("reco: %s requires Gridding to have run", op)
	}
	return nil
}

// CountFlagged returns how many points carry every bit in mask.
func (f *Frame) CountFlagged(mask PointFlag) int {
	n := 0
	for _, fl := range f.Flags {
		if fl&mask == mask {
			n++
		}
	}
	return n
}

// AboveGround reports whether point i sits above the tight ground
// tolerance, i.e. is a candidate obstacle return.
func (f *Frame) AboveGround(i int) bool {
	return f.Height[i] >= f.cfg.DZLocal && f.Flags[i]&FlagNoise == 0
}

// MaxClusterID returns the highest assigned cluster ID, 0 when the
// frame has not been clustered.
func (f *Frame) MaxClusterID() int {
	maxID := 0
	for _, id := range f.ClusterID {
		if id > maxID {
			maxID = id
		}
	}
	return maxID
}
