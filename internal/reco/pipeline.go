package reco

import (
	"errors"
	"fmt"
	"time"
)

// Result is the output of one reconstruction run over a single frame.
type Result struct {
	Frame    *Frame
	Plane    PlaneCoeffs
	Clusters []ClusterMetrics

	PointsTotal  int
	PointsGround int
	PointsAbove  int
	PointsNoise  int

	Clusterer string
	Elapsed   time.Duration
}

// Run executes the full single-frame pipeline: compact, optionally
// compensate ego-motion, grid, detect ground, cluster and classify.
// A frame with no detectable ground surface still returns a Result
// (heights stay relative to the nominal mount plane, no clusters);
// the wrapped ErrNoGround is reported alongside it.
func Run(raw RawPoints, cfg Config, clusterer Clusterer, motion MotionState) (*Result, error) {
	start := time.Now()

	frame, err := NewFrame(raw, cfg)
	if err != nil {
		return nil, err
	}

	if !motion.IsZero() {
		if err := frame.CompensateMotion(motion); err != nil {
			return nil, fmt.Errorf("reco: motion compensation: %w", err)
		}
	}

	frame.Gridding()

	res := &Result{
		Frame:       frame,
		PointsTotal: frame.N,
		Clusterer:   clusterer.Name(),
	}

	if err := frame.DetectGround(); err != nil {
		if !errors.Is(err, ErrNoGround) {
			return nil, err
		}
		// No ground surface: report the bare frame.
		res.Plane = frame.Ground
		res.PointsNoise = frame.CountFlagged(FlagNoise)
		res.Elapsed = time.Since(start)
		return res, err
	}
	res.Plane = frame.Ground

	if _, err := clusterer.Cluster(frame); err != nil {
		return nil, err
	}
	res.Clusters = ApplyClassification(frame, ComputeClusterMetrics(frame))

	res.PointsGround = frame.CountFlagged(FlagGround)
	res.PointsNoise = frame.CountFlagged(FlagNoise)
	for i := 0; i < frame.N; i++ {
		if frame.AboveGround(i) {
			res.PointsAbove++
		}
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

// NewClusterer maps an algorithm name from the CLI or API to an
// implementation. Unknown names are an error so typos fail loudly.
func NewClusterer(name string, cfg Config) (Clusterer, error) {
	switch name {
	case "", "grid":
		return GridClusterer{}, nil
	case "dbscan":
		return NewDBSCANClusterer(cfg.Eps, cfg.MinPts), nil
	default:
		return nil, fmt.Errorf("reco: unknown clusterer %q (want grid or dbscan)", name)
	}
}
