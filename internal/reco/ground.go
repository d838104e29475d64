package reco

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNoGround is returned when too few returns survive the candidate
// band to support a ground fit (e.g. sensor pointed at a wall).
var ErrNoGround = errors.New("reco: not enough ground candidates for plane fit")

// FitPlane least-squares fits z = A·x + B·y + C through the given
// points using a QR solve. At least three non-collinear points are
// required.
func FitPlane(x, y, z []float64) (PlaneCoeffs, error) {
	n := len(x)
	if len(y) != n || len(z) != n {
		return PlaneCoeffs{}, fmt.Errorf("reco: plane fit columns disagree: x=%d y=%d z=%d", n, len(y), len(z))
	}
	if n < 3 {
		return PlaneCoeffs{}, fmt.Errorf("reco: plane fit needs at least 3 points, got %d", n)
	}

	a := mat.NewDense(n, 3, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		a.Set(i, 0, x[i])
		a.Set(i, 1, y[i])
		a.Set(i, 2, 1)
		b.SetVec(i, z[i])
	}

	var qr mat.QR
	qr.Factorize(a)

	var sol mat.VecDense
	if err := qr.SolveVecTo(&sol, false, b); err != nil {
		return PlaneCoeffs{}, fmt.Errorf("reco: plane fit solve: %w", err)
	}

	p := PlaneCoeffs{A: sol.AtVec(0), B: sol.AtVec(1), C: sol.AtVec(2)}
	if math.IsNaN(p.A) || math.IsNaN(p.B) || math.IsNaN(p.C) {
		return PlaneCoeffs{}, fmt.Errorf("reco: plane fit is degenerate (collinear points)")
	}

	var sumSq float64
	for i := 0; i < n; i++ {
		r := z[i] - p.A*x[i] - p.B*y[i] - p.C
		sumSq += r * r
	}
	p.RMSE = math.Sqrt(sumSq / float64(n))
	return p, nil
}

// fitPlaneAt fits a plane through the frame points named by idx.
func (f *Frame) fitPlaneAt(idx []int) (PlaneCoeffs, error) {
	x := make([]float64, len(idx))
	y := make([]float64, len(idx))
	z := make([]float64, len(idx))
	for k, i := range idx {
		x[k] = f.X[i]
		y[k] = f.Y[i]
		z[k] = f.Z[i]
	}
	return FitPlane(x, y, z)
}

// DetectGround labels road-surface returns and computes per-point
// heights above the fitted ground.
//
// The detection runs in two passes. A global pass selects candidates
// whose elevation sits within a slope-scaled band around the nominal
// mount plane, fits one plane through them, and seeds ground flags
// where the residual height is under the tight tolerance. A local pass
// then refits the surface per grid cell from the ground-flagged points
// in the surrounding 3×3 cell neighborhood (slope clipped to the
// configured maximum), updating heights and flags so gentle crowning
// and camber do not bleed road returns into the obstacle set.
func (f *Frame) DetectGround() error {
	if err := f.requireGridded("DetectGround"); err != nil {
		return err
	}

	cfg := f.cfg

	// Global pass: candidates within the slope-scaled elevation band.
	candidates := make([]int, 0, f.N/2)
	for i := 0; i < f.N; i++ {
		band := f.DistXY[i] * cfg.MaxSlope
		if band < cfg.DZLocal {
			band = cfg.DZLocal
		} else if band > cfg.DZGlobal {
			band = cfg.DZGlobal
		}
		if math.Abs(f.Z[i]+cfg.LidarHeight) < band {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) < 3 {
		return fmt.Errorf("%w: %d candidates", ErrNoGround, len(candidates))
	}

	plane, err := f.fitPlaneAt(candidates)
	if err != nil {
		return fmt.Errorf("reco: global ground fit: %w", err)
	}
	f.Ground = plane

	for i := 0; i < f.N; i++ {
		f.Height[i] = f.Z[i] - plane.A*f.X[i] - plane.B*f.Y[i] - plane.C
	}
	for _, i := range candidates {
		if f.Height[i] < cfg.DZLocal {
			f.Flags[i] |= FlagGround
		}
	}

	// Local pass: refit per cell from the seeded neighborhood.
	var nearby, toFit []int
	for iy := 0; iy < cfg.NDistGrids; iy++ {
		rowCount := 0
		for ix := 0; ix < cfg.NAngularGrids; ix++ {
			rowCount += len(f.cell(ix, iy))
		}
		if rowCount < cfg.MinGroundPoints {
			continue
		}

		for ix := 0; ix < cfg.NAngularGrids; ix++ {
			nearby = f.neighborhood(nearby[:0], ix, iy, 1)
			toFit = toFit[:0]
			for _, i := range nearby {
				if f.Flags[i]&FlagGround != 0 {
					toFit = append(toFit, i)
				}
			}
			if len(toFit) < cfg.MinGroundPoints {
				continue
			}

			local, err := f.fitPlaneAt(toFit)
			if err != nil {
				// Degenerate neighborhoods keep the global fit.
				continue
			}
			local.A = clamp(local.A, -cfg.MaxSlope, cfg.MaxSlope)
			local.B = clamp(local.B, -cfg.MaxSlope, cfg.MaxSlope)

			for _, i := range f.cell(ix, iy) {
				f.Height[i] = f.Z[i] - local.A*f.X[i] - local.B*f.Y[i] - local.C
				onPlane := f.Height[i] > -cfg.DZGlobal && f.Height[i] < cfg.DZLocal
				if onPlane {
					f.Flags[i] |= FlagGround
				} else {
					f.Flags[i] &^= FlagGround
				}
			}
		}
	}

	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
