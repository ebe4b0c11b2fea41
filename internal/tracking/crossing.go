package tracking

import "github.com/banshee-data/crossing.report/internal/geometry"

// Direction classifies a crossing relative to the reference segment.
type Direction int

const (
	NoCrossing Direction = iota
	Clockwise
	CounterClockwise
)

func (d Direction) String() string {
	switch d {
	case Clockwise:
		return "clockwise"
	case CounterClockwise:
		return "counter_clockwise"
	default:
		return "none"
	}
}

// Tally counts crossing events per direction.
type Tally struct {
	Clockwise        int `json:"clockwise"`
	CounterClockwise int `json:"counter_clockwise"`
}

// Add records one event.
func (t *Tally) Add(d Direction) {
	switch d {
	case Clockwise:
		t.Clockwise++
	case CounterClockwise:
		t.CounterClockwise++
	}
}

// Merge adds other's counts to t.
func (t *Tally) Merge(other Tally) {
	t.Clockwise += other.Clockwise
	t.CounterClockwise += other.CounterClockwise
}

// Total returns the number of events in both directions.
func (t Tally) Total() int { return t.Clockwise + t.CounterClockwise }

// DetectCrossing reports whether seg crosses ref and, if so, on which side
// of ref the segment ends up. Exactly one direction is reported per event.
func DetectCrossing(seg, ref geometry.Segment) (Direction, bool) {
	if _, ok := geometry.SegmentsIntersect(seg, ref); !ok {
		return NoCrossing, false
	}
	if geometry.IsClockwise(ref, seg.End) {
		return Clockwise, true
	}
	return CounterClockwise, true
}

// CountCrossings tallies every segment that crosses ref. No debouncing is
// applied: a path oscillating over the line counts once per crossing segment.
func CountCrossings(segs []geometry.Segment, ref geometry.Segment) Tally {
	var t Tally
	for _, s := range segs {
		if d, ok := DetectCrossing(s, ref); ok {
			t.Add(d)
		}
	}
	return t
}
