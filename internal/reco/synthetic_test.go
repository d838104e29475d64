package reco

import (
	"math"
	"testing"
)

// sceneBox describes a rectangular obstacle for synthetic frames.
type sceneBox struct {
	cx, cy float64 // center, world XY
	lx, ly float64 // extents
	height float64 // top of the box above ground
	step   float64
}

// makeScene builds raw points for a flat ground plane at z = -height
// plus the given boxes. Points are emitted in polar scan order so
// grid assignment resembles a real sweep.
func makeScene(lidarHeight float64, boxes ...sceneBox) RawPoints {
	var raw RawPoints

	add := func(x, y, z, intensity float64) {
		raw.X = append(raw.X, x)
		raw.Y = append(raw.Y, y)
		raw.Z = append(raw.Z, z)
		raw.Intensity = append(raw.Intensity, intensity)
		raw.Invalid = append(raw.Invalid, false)
	}

	// Ground sweep: bearings within the default FoV, ranges within
	// the default radial grid.
	for d := 2.0; d < 45; d += 0.4 {
		for theta := -0.4; theta < 0.4; theta += 0.012 {
			add(d*math.Sin(theta), d*math.Cos(theta), -lidarHeight, 12)
		}
	}

	for _, b := range boxes {
		step := b.step
		if step <= 0 {
			step = 0.15
		}
		// Boxes start above the ground candidate band so the plane
		// fit stays unbiased.
		for dx := -b.lx / 2; dx <= b.lx/2; dx += step {
			for dy := -b.ly / 2; dy <= b.ly/2; dy += step {
				for h := 0.6; h <= b.height; h += step {
					add(b.cx+dx, b.cy+dy, -lidarHeight+h, 80)
				}
			}
		}
	}

	return raw
}

// mustFrame builds, grids and ground-detects a frame from raw points.
func mustFrame(t testing.TB, raw RawPoints, cfg Config) *Frame {
	t.Helper()
	f, err := NewFrame(raw, cfg)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	f.Gridding()
	if err := f.DetectGround(); err != nil {
		t.Fatalf("DetectGround: %v", err)
	}
	return f
}
