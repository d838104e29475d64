package reco

import "testing"

func TestGridClustererSingleObstacle(t *testing.T) {
	cfg := DefaultConfig()
	raw := makeScene(cfg.LidarHeight, sceneBox{cx: 2, cy: 10, lx: 4.2, ly: 1.8, height: 1.6})
	f := mustFrame(t, raw, cfg)

	n, err := GridClusterer{}.Cluster(f)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if n != 1 {
		t.Fatalf("cluster count = %d, want 1", n)
	}

	// Every above-ground box return should carry the cluster label.
	unlabeled := 0
	for i := 0; i < f.N; i++ {
		if f.AboveGround(i) && f.ClusterID[i] == 0 {
			unlabeled++
		}
	}
	if unlabeled > 0 {
		t.Errorf("%d above-ground points left unclustered", unlabeled)
	}
}

func TestGridClustererSeparatesObstacles(t *testing.T) {
	cfg := DefaultConfig()
	raw := makeScene(cfg.LidarHeight,
		sceneBox{cx: 2, cy: 10, lx: 1.2, ly: 1.2, height: 1.8},
		sceneBox{cx: -2, cy: 10, lx: 1.2, ly: 1.2, height: 1.8},
	)
	f := mustFrame(t, raw, cfg)

	n, err := GridClusterer{}.Cluster(f)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if n != 2 {
		t.Errorf("cluster count = %d, want 2", n)
	}

	// The two obstacles must not share a label.
	labels := map[int]bool{}
	for i := 0; i < f.N; i++ {
		if f.ClusterID[i] > 0 {
			labels[f.ClusterID[i]] = true
		}
	}
	if len(labels) != 2 {
		t.Errorf("distinct labels = %d, want 2", len(labels))
	}
}

func TestGridClustererIgnoresSparseCells(t *testing.T) {
	cfg := DefaultConfig()
	// A lone return above ground: under MinSamples, no cluster opens.
	raw := makeScene(cfg.LidarHeight)
	raw.X = append(raw.X, 2)
	raw.Y = append(raw.Y, 10)
	raw.Z = append(raw.Z, -cfg.LidarHeight+0.5)
	raw.Intensity = append(raw.Intensity, 50)
	raw.Invalid = append(raw.Invalid, false)

	f := mustFrame(t, raw, cfg)
	n, err := GridClusterer{}.Cluster(f)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if n != 0 {
		t.Errorf("cluster count = %d, want 0", n)
	}
}

func TestGridClustererGrowsAboveBaseCut(t *testing.T) {
	cfg := DefaultConfig()
	// Tall obstacle: most of its mass sits above BaseHeightCut and is
	// only reachable through layer growth.
	raw := makeScene(cfg.LidarHeight, sceneBox{cx: 0, cy: 12, lx: 1.6, ly: 1.6, height: 3.0})
	f := mustFrame(t, raw, cfg)

	if _, err := (GridClusterer{}).Cluster(f); err != nil {
		t.Fatalf("Cluster: %v", err)
	}

	tall := 0
	tallClustered := 0
	for i := 0; i < f.N; i++ {
		if f.Height[i] >= cfg.BaseHeightCut && f.Height[i] < cfg.MaxHeightCut {
			tall++
			if f.ClusterID[i] != 0 {
				tallClustered++
			}
		}
	}
	if tall == 0 {
		t.Fatal("scene generated no points above the base cut")
	}
	if tallClustered < tall*9/10 {
		t.Errorf("grew into %d of %d points above base cut", tallClustered, tall)
	}
}

func TestClustererRequiresGridding(t *testing.T) {
	cfg := DefaultConfig()
	f, err := NewFrame(makeScene(cfg.LidarHeight), cfg)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	if _, err := (GridClusterer{}).Cluster(f); err == nil {
		t.Error("grid clusterer: expected error without Gridding")
	}
	if _, err := NewDBSCANClusterer(0, 0).Cluster(f); err == nil {
		t.Error("dbscan clusterer: expected error without Gridding")
	}
}
