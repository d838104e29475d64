package reco

import (
	"math"
	"sort"
	"testing"
)

func TestDBSCANClustererSeparatesObstacles(t *testing.T) {
	cfg := DefaultConfig()
	raw := makeScene(cfg.LidarHeight,
		sceneBox{cx: 2, cy: 10, lx: 1.2, ly: 1.2, height: 1.8},
		sceneBox{cx: -2, cy: 10, lx: 1.2, ly: 1.2, height: 1.8},
	)
	f := mustFrame(t, raw, cfg)

	n, err := NewDBSCANClusterer(0, 0).Cluster(f)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if n != 2 {
		t.Fatalf("cluster count = %d, want 2", n)
	}

	// Relabeled by centroid: cluster 1 must be the box with the
	// smaller X.
	var sumX1, sumX2 float64
	var n1, n2 int
	for i := 0; i < f.N; i++ {
		switch f.ClusterID[i] {
		case 1:
			sumX1 += f.X[i]
			n1++
		case 2:
			sumX2 += f.X[i]
			n2++
		}
	}
	if n1 == 0 || n2 == 0 {
		t.Fatalf("empty cluster: n1=%d n2=%d", n1, n2)
	}
	if sumX1/float64(n1) >= sumX2/float64(n2) {
		t.Errorf("cluster order not by centroid X: %g vs %g", sumX1/float64(n1), sumX2/float64(n2))
	}
}

func TestDBSCANClustererFlagsIsolatedNoise(t *testing.T) {
	cfg := DefaultConfig()
	raw := makeScene(cfg.LidarHeight, sceneBox{cx: 2, cy: 10, lx: 1.2, ly: 1.2, height: 1.8})
	// One stray return far from everything.
	raw.X = append(raw.X, -3)
	raw.Y = append(raw.Y, 30)
	raw.Z = append(raw.Z, -cfg.LidarHeight+1)
	raw.Intensity = append(raw.Intensity, 5)
	raw.Invalid = append(raw.Invalid, false)
	strayIdx := len(raw.X) - 1

	f := mustFrame(t, raw, cfg)
	if _, err := NewDBSCANClusterer(0, 0).Cluster(f); err != nil {
		t.Fatalf("Cluster: %v", err)
	}

	// The stray point survived compaction at the same position since
	// nothing before it was invalid.
	if f.ClusterID[strayIdx] != 0 {
		t.Errorf("stray point got cluster %d, want 0", f.ClusterID[strayIdx])
	}
	if f.Flags[strayIdx]&FlagNoise == 0 {
		t.Error("stray point not flagged as noise")
	}
}

func TestPlanarIndexMatchesBruteForce(t *testing.T) {
	cfg := DefaultConfig()
	raw := makeScene(cfg.LidarHeight, sceneBox{cx: 1, cy: 8, lx: 2, ly: 2, height: 1.5, step: 0.3})
	f := mustFrame(t, raw, cfg)

	cand := make([]int, 0)
	for i := 0; i < f.N; i++ {
		if f.AboveGround(i) {
			cand = append(cand, i)
		}
	}
	if len(cand) == 0 {
		t.Fatal("no candidates")
	}

	eps := 0.7
	idx := newPlanarIndex(f, cand, eps)

	for k := 0; k < len(cand); k += 17 {
		got := idx.query(k, eps*eps, nil)
		sort.Ints(got)

		var want []int
		pi := cand[k]
		for nk, ni := range cand {
			dx := f.X[ni] - f.X[pi]
			dy := f.Y[ni] - f.Y[pi]
			if math.Sqrt(dx*dx+dy*dy) <= eps {
				want = append(want, nk)
			}
		}

		if len(got) != len(want) {
			t.Fatalf("query(%d): %d neighbors, brute force %d", k, len(got), len(want))
		}
		for j := range got {
			if got[j] != want[j] {
				t.Fatalf("query(%d): neighbor %d = %d, want %d", k, j, got[j], want[j])
			}
		}
	}
}

func TestDBSCANClustererEmptyAboveGround(t *testing.T) {
	cfg := DefaultConfig()
	f := mustFrame(t, makeScene(cfg.LidarHeight), cfg)

	n, err := NewDBSCANClusterer(0, 0).Cluster(f)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if n != 0 {
		t.Errorf("cluster count = %d on ground-only scene, want 0", n)
	}
}
