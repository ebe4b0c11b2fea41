package tracking

import (
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/crossing.report/internal/geometry"
	"github.com/banshee-data/crossing.report/internal/monitoring"
)

// DefaultPersonThreshold is the share of accumulated score a "person" label
// needs for DominantLabel to call the whole trajectory a person.
const DefaultPersonThreshold = 0.3

// PersonLabel is the label favoured by DominantLabel.
const PersonLabel = "person"

// Trajectory is the ordered detection history of one track id. Points are
// kept in insertion order; callers are expected to append in non-decreasing
// frame order. A Trajectory is not safe for concurrent use; the Store
// serialises access to the ones it owns.
type Trajectory struct {
	trackID int
	points  []Detection
}

// NewTrajectory creates an empty trajectory for trackID.
func NewTrajectory(trackID int) *Trajectory {
	return &Trajectory{trackID: trackID}
}

// ID returns the track id.
func (t *Trajectory) ID() int { return t.trackID }

// Len returns the number of points.
func (t *Trajectory) Len() int { return len(t.points) }

// Append adds d to the end of the sequence. Points whose frame goes
// backwards are accepted with a warning; nothing is reordered.
func (t *Trajectory) Append(d Detection) error {
	if d.TrackID != t.trackID {
		return &MismatchedTrackError{Want: t.trackID, Got: d.TrackID}
	}
	if n := len(t.points); n > 0 && d.Frame < t.points[n-1].Frame {
		monitoring.Warnf("track %d: frame went backwards (%d -> %d); segments will follow insertion order",
			t.trackID, t.points[n-1].Frame, d.Frame)
	}
	t.points = append(t.points, d)
	return nil
}

// Points returns a copy of the point sequence.
func (t *Trajectory) Points() []Detection {
	out := make([]Detection, len(t.points))
	copy(out, t.points)
	return out
}

// Last returns the most recent point.
func (t *Trajectory) Last() (Detection, bool) {
	if len(t.points) == 0 {
		return Detection{}, false
	}
	return t.points[len(t.points)-1], true
}

// FilteredPoints returns the points surviving the filter pipeline.
func (t *Trajectory) FilteredPoints(filters ...Filter) []Detection {
	if len(filters) == 0 {
		return t.Points()
	}
	return ApplyFilters(t.points, filters...)
}

// Segments pairs consecutive surviving points into motion segments. Zero or
// one surviving point yields no segments.
func (t *Trajectory) Segments(filters ...Filter) []geometry.Segment {
	if len(filters) == 0 {
		return BuildSegments(t.points)
	}
	return BuildSegments(ApplyFilters(t.points, filters...))
}

// BuildSegments joins consecutive point centres: N points give N-1 segments.
func BuildSegments(points []Detection) []geometry.Segment {
	if len(points) < 2 {
		return nil
	}
	segs := make([]geometry.Segment, 0, len(points)-1)
	prev := points[0].Center()
	for _, p := range points[1:] {
		cur := p.Center()
		segs = append(segs, geometry.Segment{Start: prev, End: cur})
		prev = cur
	}
	return segs
}

// DominantLabel sums scores per label over all points. If the person share
// of the total reaches personThreshold the trajectory is a person; otherwise
// the label with the highest total wins, ties going to the label seen first.
func (t *Trajectory) DominantLabel(personThreshold float64) (string, error) {
	if len(t.points) == 0 {
		return "", ErrEmptyTrajectory
	}

	var labels []string
	totals := make(map[string]float64)
	for _, p := range t.points {
		if _, seen := totals[p.Label]; !seen {
			labels = append(labels, p.Label)
		}
		totals[p.Label] += p.Score
	}

	scores := make([]float64, len(labels))
	for i, l := range labels {
		scores[i] = totals[l]
	}
	if sum := floats.Sum(scores); sum != 0 {
		if totals[PersonLabel]/sum >= personThreshold {
			return PersonLabel, nil
		}
	}

	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return labels[best], nil
}

// LatestCrossing evaluates only the newest unfiltered segment against ref.
func (t *Trajectory) LatestCrossing(ref geometry.Segment) (Direction, bool) {
	n := len(t.points)
	if n < 2 {
		return NoCrossing, false
	}
	last := geometry.Segment{Start: t.points[n-2].Center(), End: t.points[n-1].Center()}
	return DetectCrossing(last, ref)
}
