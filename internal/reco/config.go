package reco

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Default tuning values. Distances are metres, angles radians.
const (
	// DefaultLidarHeight is the sensor mount height above the road surface.
	DefaultLidarHeight = 1.9
	// DefaultMaxTheta is the half-width of the horizontal field of view.
	DefaultMaxTheta = 0.53
	// DefaultThetaGridSize is the angular grid pitch.
	DefaultThetaGridSize = 0.02
	// DefaultMinDist is the closest usable planar range.
	DefaultMinDist = 1.0
	// DefaultDistGridSize is the radial grid pitch.
	DefaultDistGridSize = 2.0
	// DefaultMaxSlope bounds the local road gradient (rise over run).
	DefaultMaxSlope = 0.08
	// DefaultDZLocal is the tight height tolerance around the local ground fit.
	DefaultDZLocal = 0.15
	// DefaultDZGlobal is the loose height tolerance around the global ground fit.
	DefaultDZGlobal = 0.5
	// DefaultBaseHeightCut is the top of the seeding band for obstacle clustering.
	DefaultBaseHeightCut = 1.0
	// DefaultMaxHeightCut is where cluster growing stops looking upward.
	DefaultMaxHeightCut = 3.2
	// DefaultHeightGridSize is the vertical layer pitch for cluster growing.
	DefaultHeightGridSize = 0.4

	// DefaultNAngularGrids and DefaultNDistGrids size the polar grid.
	DefaultNAngularGrids = 54
	DefaultNDistGrids    = 60
	// DefaultMinGroundPoints is the minimum support for a local plane refit.
	DefaultMinGroundPoints = 12
	// DefaultMinSamples is the minimum occupancy to open a new grid cluster.
	DefaultMinSamples = 8
	// DefaultMaxPoints caps the per-frame working set.
	DefaultMaxPoints = 200_000

	// DefaultEps and DefaultMinPts are the density clustering defaults.
	DefaultEps    = 0.6
	DefaultMinPts = 12
)

// Config holds the resolved tuning for one reconstruction run. The
// zero value is not usable; obtain one from DefaultConfig and apply a
// Params overlay loaded from disk where needed.
type Config struct {
	LidarHeight   float64 `json:"lidar_height"`
	MaxTheta      float64 `json:"max_theta"`
	ThetaGridSize float64 `json:"theta_grid_size"`
	MinDist       float64 `json:"min_dist"`
	DistGridSize  float64 `json:"dist_grid_size"`
	NAngularGrids int     `json:"n_angular_grids"`
	NDistGrids    int     `json:"n_dist_grids"`

	MaxSlope        float64 `json:"max_slope"`
	DZLocal         float64 `json:"dz_local"`
	DZGlobal        float64 `json:"dz_global"`
	MinGroundPoints int     `json:"min_grd_pts"`

	BaseHeightCut  float64 `json:"base_h_cut"`
	MaxHeightCut   float64 `json:"h_max_cut"`
	HeightGridSize float64 `json:"h_grid_size"`
	MinSamples     int     `json:"min_samples"`

	MaxPoints int `json:"max_points"`

	Eps    float64 `json:"eps"`
	MinPts int     `json:"min_pts"`
}

// DefaultConfig returns the coded tuning defaults.
func DefaultConfig() Config {
	return Config{
		LidarHeight:     DefaultLidarHeight,
		MaxTheta:        DefaultMaxTheta,
		ThetaGridSize:   DefaultThetaGridSize,
		MinDist:         DefaultMinDist,
		DistGridSize:    DefaultDistGridSize,
		NAngularGrids:   DefaultNAngularGrids,
		NDistGrids:      DefaultNDistGrids,
		MaxSlope:        DefaultMaxSlope,
		DZLocal:         DefaultDZLocal,
		DZGlobal:        DefaultDZGlobal,
		MinGroundPoints: DefaultMinGroundPoints,
		BaseHeightCut:   DefaultBaseHeightCut,
		MaxHeightCut:    DefaultMaxHeightCut,
		HeightGridSize:  DefaultHeightGridSize,
		MinSamples:      DefaultMinSamples,
		MaxPoints:       DefaultMaxPoints,
		Eps:             DefaultEps,
		MinPts:          DefaultMinPts,
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.ThetaGridSize <= 0 || c.DistGridSize <= 0 || c.HeightGridSize <= 0 {
		return fmt.Errorf("reco: grid sizes must be positive (theta=%g dist=%g height=%g)",
			c.ThetaGridSize, c.DistGridSize, c.HeightGridSize)
	}
	if c.NAngularGrids <= 0 || c.NDistGrids <= 0 {
		return fmt.Errorf("reco: grid counts must be positive (angular=%d dist=%d)",
			c.NAngularGrids, c.NDistGrids)
	}
	if c.DZLocal <= 0 || c.DZGlobal < c.DZLocal {
		return fmt.Errorf("reco: need 0 < dz_local <= dz_global, got local=%g global=%g",
			c.DZLocal, c.DZGlobal)
	}
	if c.MaxHeightCut <= c.BaseHeightCut {
		return fmt.Errorf("reco: h_max_cut (%g) must exceed base_h_cut (%g)",
			c.MaxHeightCut, c.BaseHeightCut)
	}
	if c.Eps <= 0 || c.MinPts <= 0 {
		return fmt.Errorf("reco: density clustering needs eps > 0 and min_pts > 0, got eps=%g min_pts=%d",
			c.Eps, c.MinPts)
	}
	return nil
}

// Params is the on-disk tuning overlay. Every field is optional so a
// partial JSON file only overrides what it names; the same schema is
// accepted by the runtime params endpoint.
type Params struct {
	LidarHeight   *float64 `json:"lidar_height,omitempty"`
	MaxTheta      *float64 `json:"max_theta,omitempty"`
	ThetaGridSize *float64 `json:"theta_grid_size,omitempty"`
	MinDist       *float64 `json:"min_dist,omitempty"`
	DistGridSize  *float64 `json:"dist_grid_size,omitempty"`
	NAngularGrids *int     `json:"n_angular_grids,omitempty"`
	NDistGrids    *int     `json:"n_dist_grids,omitempty"`

	MaxSlope        *float64 `json:"max_slope,omitempty"`
	DZLocal         *float64 `json:"dz_local,omitempty"`
	DZGlobal        *float64 `json:"dz_global,omitempty"`
	MinGroundPoints *int     `json:"min_grd_pts,omitempty"`

	BaseHeightCut  *float64 `json:"base_h_cut,omitempty"`
	MaxHeightCut   *float64 `json:"h_max_cut,omitempty"`
	HeightGridSize *float64 `json:"h_grid_size,omitempty"`
	MinSamples     *int     `json:"min_samples,omitempty"`

	MaxPoints *int `json:"max_points,omitempty"`

	Eps    *float64 `json:"eps,omitempty"`
	MinPts *int     `json:"min_pts,omitempty"`
}

// maxParamsFileSize bounds how much tuning JSON we are willing to read.
const maxParamsFileSize = 1 << 20

// LoadParams reads a tuning overlay from a JSON file. The file must
// have a .json extension; fields it omits keep their defaults.
func LoadParams(path string) (*Params, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("reco: params file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("reco: stat params file: %w", err)
	}
	if info.Size() > maxParamsFileSize {
		return nil, fmt.Errorf("reco: params file too large: %d bytes (max %d)", info.Size(), maxParamsFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("reco: read params file: %w", err)
	}

	p := &Params{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("reco: parse params file %s: %w", cleanPath, err)
	}
	return p, nil
}

// Apply overlays the non-nil fields of p onto cfg and returns the result.
func (p *Params) Apply(cfg Config) Config {
	if p == nil {
		return cfg
	}
	if p.LidarHeight != nil {
		cfg.LidarHeight = *p.LidarHeight
	}
	if p.MaxTheta != nil {
		cfg.MaxTheta = *p.MaxTheta
	}
	if p.ThetaGridSize != nil {
		cfg.ThetaGridSize = *p.ThetaGridSize
	}
	if p.MinDist != nil {
		cfg.MinDist = *p.MinDist
	}
	if p.DistGridSize != nil {
		cfg.DistGridSize = *p.DistGridSize
	}
	if p.NAngularGrids != nil {
		cfg.NAngularGrids = *p.NAngularGrids
	}
	if p.NDistGrids != nil {
		cfg.NDistGrids = *p.NDistGrids
	}
	if p.MaxSlope != nil {
		cfg.MaxSlope = *p.MaxSlope
	}
	if p.DZLocal != nil {
		cfg.DZLocal = *p.DZLocal
	}
	if p.DZGlobal != nil {
		cfg.DZGlobal = *p.DZGlobal
	}
	if p.MinGroundPoints != nil {
		cfg.MinGroundPoints = *p.MinGroundPoints
	}
	if p.BaseHeightCut != nil {
		cfg.BaseHeightCut = *p.BaseHeightCut
	}
	if p.MaxHeightCut != nil {
		cfg.MaxHeightCut = *p.MaxHeightCut
	}
	if p.HeightGridSize != nil {
		cfg.HeightGridSize = *p.HeightGridSize
	}
	if p.MinSamples != nil {
		cfg.MinSamples = *p.MinSamples
	}
	if p.MaxPoints != nil {
		cfg.MaxPoints = *p.MaxPoints
	}
	if p.Eps != nil {
		cfg.Eps = *p.Eps
	}
	if p.MinPts != nil {
		cfg.MinPts = *p.MinPts
	}
	return cfg
}
