package reco

import (
	"math"
	"testing"
)

func TestNewFrameDropsInvalid(t *testing.T) {
	raw := RawPoints{
		X:         []float64{1, 2, 3, 4},
		Y:         []float64{5, 5, 5, 5},
		Z:         []float64{0, 0, 0, 0},
		Intensity: []float64{10, 20, 30, 40},
		Invalid:   []bool{false, true, false, true},
	}

	f, err := NewFrame(raw, DefaultConfig())
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	if f.N != 2 {
		t.Fatalf("N = %d, want 2", f.N)
	}
	if f.X[0] != 1 || f.X[1] != 3 {
		t.Errorf("X = %v, want [1 3]", f.X)
	}
	if f.Intensity[0] != 10 || f.Intensity[1] != 30 {
		t.Errorf("Intensity = %v, want [10 30]", f.Intensity)
	}
	want := math.Hypot(3, 5)
	if math.Abs(f.DistXY[1]-want) > 1e-12 {
		t.Errorf("DistXY[1] = %g, want %g", f.DistXY[1], want)
	}
}

func TestNewFrameTruncatesAtMaxPoints(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPoints = 10

	var raw RawPoints
	for i := 0; i < 50; i++ {
		raw.X = append(raw.X, float64(i))
		raw.Y = append(raw.Y, 1)
		raw.Z = append(raw.Z, 0)
		raw.Intensity = append(raw.Intensity, 0)
		raw.Invalid = append(raw.Invalid, false)
	}

	f, err := NewFrame(raw, cfg)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	if f.N != 10 {
		t.Errorf("N = %d, want 10", f.N)
	}
	// Scan order preserved: the head of the sweep survives.
	if f.X[9] != 9 {
		t.Errorf("X[9] = %g, want 9", f.X[9])
	}
}

func TestNewFrameRejectsMismatchedColumns(t *testing.T) {
	raw := RawPoints{
		X:         []float64{1, 2},
		Y:         []float64{1},
		Z:         []float64{1, 2},
		Intensity: []float64{0, 0},
		Invalid:   []bool{false, false},
	}
	if _, err := NewFrame(raw, DefaultConfig()); err == nil {
		t.Error("expected error for mismatched columns")
	}
}

func TestNewFrameRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThetaGridSize = -1
	if _, err := NewFrame(RawPoints{}, cfg); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestGriddingFlagsOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	raw := RawPoints{
		// In grid; too close; beyond the radial grid.
		X:         []float64{1, 0.05, 0},
		Y:         []float64{10, 0.05, 500},
		Z:         []float64{0, 0, 0},
		Intensity: []float64{0, 0, 0},
		Invalid:   []bool{false, false, false},
	}

	f, err := NewFrame(raw, cfg)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	f.Gridding()

	if f.Flags[0]&FlagNoise != 0 {
		t.Error("in-grid point flagged as noise")
	}
	if f.Flags[1]&FlagNoise == 0 {
		t.Error("near-sensor point not flagged as noise")
	}
	if f.Flags[2]&FlagNoise == 0 {
		t.Error("out-of-range point not flagged as noise")
	}
	if f.XIdx[1] != -1 || f.YIdx[2] != -1 {
		t.Errorf("noise points kept grid indices: xIdx=%d yIdx=%d", f.XIdx[1], f.YIdx[2])
	}
}

func TestGriddingBucketsNeighborhood(t *testing.T) {
	cfg := DefaultConfig()
	f := mustFrame(t, makeScene(cfg.LidarHeight), cfg)

	// Neighborhood of a mid-grid cell includes the cell's own points.
	for key, members := range f.cells {
		got := f.neighborhood(nil, key.ix, key.iy, 1)
		if len(got) < len(members) {
			t.Fatalf("neighborhood(%d, %d) = %d points, cell alone has %d",
				key.ix, key.iy, len(got), len(members))
		}
		break
	}
}

func TestRawPointsValidateTimeColumn(t *testing.T) {
	raw := RawPoints{
		X:         []float64{1, 2},
		Y:         []float64{1, 2},
		Z:         []float64{0, 0},
		Intensity: []float64{0, 0},
		Invalid:   []bool{false, false},
		Time:      []float64{0.1},
	}
	if err := raw.Validate(); err == nil {
		t.Error("expected error for short time column")
	}
}
