package reco

import (
	"sort"
)

// ClusterMetrics summarizes one obstacle cluster for classification,
// persistence and display.
type ClusterMetrics struct {
	ClusterID  int `json:"cluster_id"`
	PointCount int `json:"points_count"`

	CentroidX float64 `json:"centroid_x"`
	CentroidY float64 `json:"centroid_y"`
	CentroidZ float64 `json:"centroid_z"`

	// Axis-aligned bounding box dimensions.
	Length float64 `json:"bbox_length"` // X extent
	Width  float64 `json:"bbox_width"`  // Y extent
	Height float64 `json:"bbox_height"` // Z extent above ground

	// HeightP95 is the 95th percentile of height above ground,
	// more robust than the raw maximum against stray returns.
	HeightP95 float64 `json:"height_p95"`

	IntensityMean float64 `json:"intensity_mean"`

	// Density is points per cubic metre of bounding box.
	Density float64 `json:"density"`
	// AspectRatio is the larger of length/width and width/length.
	AspectRatio float64 `json:"aspect_ratio"`

	Class PointFlag `json:"class"`
}

// ComputeClusterMetrics builds per-cluster summaries from a clustered
// frame, ordered by ascending centroid (X, then Y).
func ComputeClusterMetrics(f *Frame) []ClusterMetrics {
	maxID := f.MaxClusterID()
	if maxID == 0 {
		return nil
	}

	metrics := make([]ClusterMetrics, maxID+1)
	heights := make([][]float64, maxID+1)
	var sumX, sumY, sumZ, sumI = make([]float64, maxID+1), make([]float64, maxID+1), make([]float64, maxID+1), make([]float64, maxID+1)
	var minX, maxX, minY, maxY, minH, maxH = make([]float64, maxID+1), make([]float64, maxID+1), make([]float64, maxID+1), make([]float64, maxID+1), make([]float64, maxID+1), make([]float64, maxID+1)

	for i := 0; i < f.N; i++ {
		id := f.ClusterID[i]
		if id == 0 {
			continue
		}
		m := &metrics[id]
		if m.PointCount == 0 {
			m.ClusterID = id
			minX[id], maxX[id] = f.X[i], f.X[i]
			minY[id], maxY[id] = f.Y[i], f.Y[i]
			minH[id], maxH[id] = f.Height[i], f.Height[i]
		} else {
			minX[id] = minf(minX[id], f.X[i])
			maxX[id] = maxf(maxX[id], f.X[i])
			minY[id] = minf(minY[id], f.Y[i])
			maxY[id] = maxf(maxY[id], f.Y[i])
			minH[id] = minf(minH[id], f.Height[i])
			maxH[id] = maxf(maxH[id], f.Height[i])
		}
		m.PointCount++
		sumX[id] += f.X[i]
		sumY[id] += f.Y[i]
		sumZ[id] += f.Z[i]
		sumI[id] += f.Intensity[i]
		heights[id] = append(heights[id], f.Height[i])
	}

	out := make([]ClusterMetrics, 0, maxID)
	for id := 1; id <= maxID; id++ {
		m := metrics[id]
		if m.PointCount == 0 {
			continue
		}
		n := float64(m.PointCount)
		m.CentroidX = sumX[id] / n
		m.CentroidY = sumY[id] / n
		m.CentroidZ = sumZ[id] / n
		m.IntensityMean = sumI[id] / n
		m.Length = maxX[id] - minX[id]
		m.Width = maxY[id] - minY[id]
		m.Height = maxH[id] - minH[id]

		hs := heights[id]
		sort.Float64s(hs)
		p95 := int(0.95 * float64(len(hs)))
		if p95 >= len(hs) {
			p95 = len(hs) - 1
		}
		m.HeightP95 = hs[p95]

		if vol := m.Length * m.Width * m.Height; vol > 0 {
			m.Density = n / vol
		}
		if m.Length > 0 && m.Width > 0 {
			if m.Length > m.Width {
				m.AspectRatio = m.Length / m.Width
			} else {
				m.AspectRatio = m.Width / m.Length
			}
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CentroidX != out[j].CentroidX {
			return out[i].CentroidX < out[j].CentroidX
		}
		return out[i].CentroidY < out[j].CentroidY
	})
	return out
}

// Shape classification thresholds (metres). Derived from typical road
// user dimensions; tune per site.
const (
	VehicleLengthMin    = 3.0
	VehicleWidthMin     = 1.5
	VehicleHeightMin    = 1.2
	PedestrianHeightMin = 1.0
	PedestrianHeightMax = 2.2
	PedestrianSpanMax   = 1.2
	BikerSpanMin        = 1.2
	BikerSpanMax        = 2.6
	BikerWidthMax       = 0.9
	SignHeightMin       = 1.5
	SignSpanMax         = 0.6
)

// ClassifyCluster maps bounding-box shape to a point flag. Clusters
// matching no profile return zero and keep their default labeling.
func ClassifyCluster(m ClusterMetrics) PointFlag {
	span := maxf(m.Length, m.Width)
	switch {
	case m.Length >= VehicleLengthMin && m.Width >= VehicleWidthMin && m.HeightP95 >= VehicleHeightMin,
		m.Width >= VehicleLengthMin && m.Length >= VehicleWidthMin && m.HeightP95 >= VehicleHeightMin:
		return FlagVehicle
	case span <= PedestrianSpanMax && m.HeightP95 >= PedestrianHeightMin && m.HeightP95 <= PedestrianHeightMax:
		return FlagPedestrian
	case span <= SignSpanMax && m.HeightP95 >= SignHeightMin:
		return FlagSign
	case span > BikerSpanMin && span <= BikerSpanMax && minf(m.Length, m.Width) <= BikerWidthMax:
		return FlagBiker
	}
	return 0
}

// ApplyClassification classifies every cluster and stamps the class
// flag onto the cluster's points. The returned slice carries the
// per-cluster class in Metrics.Class.
func ApplyClassification(f *Frame, metrics []ClusterMetrics) []ClusterMetrics {
	classByID := make(map[int]PointFlag, len(metrics))
	for k := range metrics {
		metrics[k].Class = ClassifyCluster(metrics[k])
		if metrics[k].Class != 0 {
			classByID[metrics[k].ClusterID] = metrics[k].Class
		}
	}
	for i := 0; i < f.N; i++ {
		if cls, ok := classByID[f.ClusterID[i]]; ok {
			f.Flags[i] |= cls
		}
	}
	return metrics
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
