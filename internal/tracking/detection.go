package tracking

import (
	"fmt"
	"math"

	"github.com/banshee-data/crossing.report/internal/geometry"
)

// Detection is one observed box for a track at a given frame. The box centre
// is always derived from the box and never stored.
type Detection struct {
	TrackID   int     `json:"id"`
	Label     string  `json:"label"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	W         float64 `json:"w"`
	H         float64 `json:"h"`
	Score     float64 `json:"score"`
	Frame     int     `json:"frame"`
	Timestamp float64 `json:"timestamp"` // seconds since the start of the run
}

// CX returns the horizontal centre of the box.
func (d Detection) CX() float64 { return d.X + d.W/2 }

// CY returns the vertical centre of the box.
func (d Detection) CY() float64 { return d.Y + d.H/2 }

// Center returns the box centre.
func (d Detection) Center() geometry.Point {
	return geometry.Point{X: d.CX(), Y: d.CY()}
}

// Box returns the detection's bounding box.
func (d Detection) Box() geometry.Rect {
	return geometry.Rect{X: d.X, Y: d.Y, W: d.W, H: d.H}
}

// Validate rejects detections that cannot have come from a tracker: negative
// frames and non-finite coordinates, scores or timestamps.
func (d Detection) Validate() error {
	if d.Frame < 0 {
		return fmt.Errorf("frame must be non-negative, got %d", d.Frame)
	}
	fields := []struct {
		name string
		v    float64
	}{
		{"x", d.X}, {"y", d.Y}, {"w", d.W}, {"h", d.H},
		{"score", d.Score}, {"timestamp", d.Timestamp},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s must be finite, got %v", f.name, f.v)
		}
	}
	return nil
}
