// Package reco implements single-frame LiDAR scene reconstruction:
// polar gridding, ground-plane detection, obstacle clustering and
// per-point classification for one full-coverage rotation frame.
//
// The frame is assumed to span on the order of 0.1s, so the scene is
// treated as static; optional ego-motion compensation corrects for
// sensor movement within the frame window.
package reco

import "fmt"

// PointFlag is a bitmask describing what a point belongs to.
// Flags are not mutually exclusive: a point can carry several bits
// while the pipeline refines its decision.
type PointFlag uint8

const (
	// FlagNoise marks returns discarded by range or grid validation.
	FlagNoise PointFlag = 1 << iota
	// FlagGround marks returns on the detected road surface.
	FlagGround
	// FlagBackground marks returns on static background structure.
	FlagBackground
	// FlagVehicle marks returns on a cluster classified as a vehicle.
	FlagVehicle
	// FlagSign marks returns on a narrow vertical structure (sign, pole).
	FlagSign
	// FlagPedestrian marks returns on a pedestrian-sized cluster.
	FlagPedestrian
	// FlagBiker marks returns on a bicycle-sized cluster.
	FlagBiker
)

// String returns a compact textual form, e.g. "ground|vehicle".
func (f PointFlag) String() string {
	if f == 0 {
		return "none"
	}
	names := []struct {
		bit  PointFlag
		name string
	}{
		{FlagNoise, "noise"},
		{FlagGround, "ground"},
		{FlagBackground, "background"},
		{FlagVehicle, "vehicle"},
		{FlagSign, "sign"},
		{FlagPedestrian, "pedestrian"},
		{FlagBiker, "biker"},
	}
	out := ""
	for _, n := range names {
		if f&n.bit == 0 {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += n.name
	}
	return out
}

// RawPoints holds one frame of sensor returns as column arrays, the
// layout produced by the frame file decoders (npz, pcd). All columns
// must have equal length. Invalid marks returns with no usable range
// (dropped during Frame construction). Time is optional (nil when the
// source format carries no per-point timestamps) and holds seconds
// relative to an arbitrary epoch.
type RawPoints struct {
	X, Y, Z   []float64
	Intensity []float64
	Invalid   []bool
	Time      []float64
}

// Len returns the number of returns, valid or not.
func (r RawPoints) Len() int { return len(r.X) }

// Validate checks column lengths agree. Time may be absent entirely
// but must match when present.
func (r RawPoints) Validate() error {
	n := len(r.X)
	if len(r.Y) != n || len(r.Z) != n {
		return fmt.Errorf("reco: coordinate columns disagree: x=%d y=%d z=%d", len(r.X), len(r.Y), len(r.Z))
	}
	if len(r.Intensity) != n {
		return fmt.Errorf("reco: intensity column has %d entries, want %d", len(r.Intensity), n)
	}
	if len(r.Invalid) != n {
		return fmt.Errorf("reco: invalid mask has %d entries, want %d", len(r.Invalid), n)
	}
	if r.Time != nil && len(r.Time) != n {
		return fmt.Errorf("reco: time column has %d entries, want %d", len(r.Time), n)
	}
	return nil
}
