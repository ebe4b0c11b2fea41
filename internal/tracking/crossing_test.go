package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/crossing.report/internal/geometry"
)

func pt(x, y float64) geometry.Point { return geometry.Point{X: x, Y: y} }

func TestDetectCrossing(t *testing.T) {
	t.Parallel()

	ref := geometry.Segment{Start: pt(250, 0), End: pt(250, 200)}

	tests := []struct {
		name    string
		seg     geometry.Segment
		wantDir Direction
		wantOK  bool
	}{
		{"left to right", geometry.Segment{Start: pt(100, 100), End: pt(400, 100)}, Clockwise, true},
		{"right to left", geometry.Segment{Start: pt(400, 100), End: pt(100, 100)}, CounterClockwise, true},
		{"stops short", geometry.Segment{Start: pt(100, 100), End: pt(200, 100)}, NoCrossing, false},
		{"beyond the reference end", geometry.Segment{Start: pt(100, 300), End: pt(400, 300)}, NoCrossing, false},
		{"parallel", geometry.Segment{Start: pt(100, 0), End: pt(100, 200)}, NoCrossing, false},
		{"ends on the line", geometry.Segment{Start: pt(400, 100), End: pt(250, 100)}, CounterClockwise, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir, ok := DetectCrossing(tt.seg, ref)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantDir, dir)
		})
	}
}

func TestCountCrossingsNearParallel(t *testing.T) {
	t.Parallel()

	// A path running almost along the reference touches it at both ends.
	ref := geometry.Segment{Start: pt(290, 0), End: pt(285, 270)}
	segs := BuildSegments([]Detection{
		at(1, "person", 290, 0, 0, 0),
		at(1, "person", 285, 135, 1, 1),
		at(1, "person", 285, 270, 2, 2),
	})

	assert.Equal(t, Tally{Clockwise: 0, CounterClockwise: 2}, CountCrossings(segs, ref))
}

func TestCountCrossingsNoDebounce(t *testing.T) {
	t.Parallel()

	ref := geometry.Segment{Start: pt(250, 0), End: pt(250, 200)}
	segs := []geometry.Segment{
		{Start: pt(200, 100), End: pt(300, 100)},
		{Start: pt(300, 100), End: pt(200, 100)},
		{Start: pt(200, 100), End: pt(300, 100)},
	}
	got := CountCrossings(segs, ref)
	assert.Equal(t, Tally{Clockwise: 2, CounterClockwise: 1}, got)
	assert.Equal(t, 3, got.Total())
	assert.Equal(t, Tally{}, CountCrossings(nil, ref))
}

func TestTally(t *testing.T) {
	t.Parallel()

	var tally Tally
	tally.Add(Clockwise)
	tally.Add(CounterClockwise)
	tally.Add(CounterClockwise)
	tally.Add(NoCrossing)
	assert.Equal(t, Tally{Clockwise: 1, CounterClockwise: 2}, tally)

	tally.Merge(Tally{Clockwise: 3, CounterClockwise: 1})
	assert.Equal(t, Tally{Clockwise: 4, CounterClockwise: 3}, tally)
	assert.Equal(t, 7, tally.Total())
}

func TestDirectionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "clockwise", Clockwise.String())
	assert.Equal(t, "counter_clockwise", CounterClockwise.String())
	assert.Equal(t, "none", NoCrossing.String())
}
