package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seg(x0, y0, x1, y1 float64) Segment {
	return Segment{Start: Point{X: x0, Y: y0}, End: Point{X: x1, Y: y1}}
}

func TestLineFromPoints(t *testing.T) {
	t.Parallel()

	l := LineFromPoints(Point{X: 0, Y: 10}, Point{X: 10, Y: 0})
	assert.Equal(t, Line{A: 10, B: 10, C: 100}, l)

	// Both endpoints satisfy A·x + B·y = C.
	assert.Equal(t, l.C, l.A*0+l.B*10)
	assert.Equal(t, l.C, l.A*10+l.B*0)

	zero := LineFromPoints(Point{X: 3, Y: 4}, Point{X: 3, Y: 4})
	assert.Equal(t, 0.0, zero.A)
	assert.Equal(t, 0.0, zero.B)
}

func TestIntersectLines(t *testing.T) {
	t.Parallel()

	t.Run("crossing diagonals", func(t *testing.T) {
		t.Parallel()
		p, ok := IntersectLines(
			LineFromPoints(Point{X: 0, Y: 0}, Point{X: 10, Y: 10}),
			LineFromPoints(Point{X: 0, Y: 10}, Point{X: 10, Y: 0}),
		)
		require.True(t, ok)
		assert.Equal(t, Point{X: 5, Y: 5}, p)
	})

	t.Run("parallel lines", func(t *testing.T) {
		t.Parallel()
		_, ok := IntersectLines(
			LineFromPoints(Point{X: 0, Y: 0}, Point{X: 10, Y: 0}),
			LineFromPoints(Point{X: 0, Y: 5}, Point{X: 10, Y: 5}),
		)
		assert.False(t, ok)
	})

	t.Run("coincident lines", func(t *testing.T) {
		t.Parallel()
		_, ok := IntersectLines(
			LineFromPoints(Point{X: 0, Y: 0}, Point{X: 10, Y: 10}),
			LineFromPoints(Point{X: 2, Y: 2}, Point{X: 4, Y: 4}),
		)
		assert.False(t, ok)
	})

	t.Run("zero line never intersects", func(t *testing.T) {
		t.Parallel()
		_, ok := IntersectLines(
			LineFromPoints(Point{X: 1, Y: 1}, Point{X: 1, Y: 1}),
			LineFromPoints(Point{X: 0, Y: 0}, Point{X: 10, Y: 10}),
		)
		assert.False(t, ok)
	})
}

func TestPointOnSegment(t *testing.T) {
	t.Parallel()

	s := seg(10, 0, 0, 10)
	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"midpoint", Point{X: 5, Y: 5}, true},
		{"endpoint inclusive", Point{X: 10, Y: 0}, true},
		{"inside bbox but off the line", Point{X: 1, Y: 1}, true},
		{"outside x", Point{X: 11, Y: 5}, false},
		{"outside y", Point{X: 5, Y: -0.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PointOnSegment(s, tt.p))
		})
	}
}

func TestSegmentsIntersect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		s1, s2 Segment
		want   Point
		ok     bool
	}{
		{"diagonals", seg(0, 0, 10, 10), seg(0, 10, 10, 0), Point{X: 5, Y: 5}, true},
		{"perpendicular", seg(100, 100, 400, 100), seg(250, 0, 250, 200), Point{X: 250, Y: 100}, true},
		{"lines cross beyond segment", seg(0, 0, 1, 1), seg(0, 10, 10, 0), Point{}, false},
		{"lines cross beyond reference", seg(100, 300, 400, 300), seg(250, 0, 250, 200), Point{}, false},
		{"parallel", seg(0, 0, 10, 0), seg(0, 1, 10, 1), Point{}, false},
		{"shared endpoint", seg(290, 0, 285, 135), seg(290, 0, 285, 270), Point{X: 290, Y: 0}, true},
		{"zero length reference", seg(0, 0, 10, 10), seg(5, 5, 5, 5), Point{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SegmentsIntersect(tt.s1, tt.s2)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.InDelta(t, tt.want.X, got.X, 1e-9)
				assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
			}
		})
	}
}

func TestSegmentsIntersect_Idempotent(t *testing.T) {
	t.Parallel()

	s1, s2 := seg(0, 0, 10, 10), seg(0, 10, 10, 0)
	p1, ok1 := SegmentsIntersect(s1, s2)
	p2, ok2 := SegmentsIntersect(s1, s2)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, p1, p2)
}

func TestIsClockwise(t *testing.T) {
	t.Parallel()

	ref := seg(0, 0, 0, 10)
	assert.True(t, IsClockwise(ref, Point{X: 5, Y: 5}))
	assert.False(t, IsClockwise(ref, Point{X: -5, Y: 5}))
	assert.False(t, IsClockwise(ref, Point{X: 0, Y: 20}), "collinear is not clockwise")

	// Reversing the reference flips the answer for off-line points.
	assert.False(t, IsClockwise(ref.Reversed(), Point{X: 5, Y: 5}))
	assert.True(t, IsClockwise(ref.Reversed(), Point{X: -5, Y: 5}))
}

func TestRect(t *testing.T) {
	t.Parallel()

	r := Rect{X: 90, Y: 80, W: 20, H: 40}
	assert.Equal(t, Point{X: 100, Y: 100}, r.Center())

	corners := r.Corners()
	require.Len(t, corners, 5)
	assert.Equal(t, corners[0], corners[4])
	assert.Equal(t, Point{X: 110, Y: 120}, corners[2])
}

func TestVerticalBisector(t *testing.T) {
	t.Parallel()

	s := VerticalBisector(640, 480)
	assert.Equal(t, seg(320, 0, 320, 480), s)
	assert.InDelta(t, 480.0, s.Length(), 1e-9)
	assert.False(t, s.IsDegenerate())
	assert.True(t, Segment{}.IsDegenerate())
}
