package geometry

import "math"

// Point is a 2D position in image coordinates (y grows downwards).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment is a directed pair of points.
type Segment struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Reversed returns the segment with its endpoints swapped.
func (s Segment) Reversed() Segment {
	return Segment{Start: s.End, End: s.Start}
}

// Length returns the Euclidean length of the segment.
func (s Segment) Length() float64 {
	return math.Hypot(s.End.X-s.Start.X, s.End.Y-s.Start.Y)
}

// IsDegenerate reports whether both endpoints coincide.
func (s Segment) IsDegenerate() bool {
	return s.Start == s.End
}

// Rect is an axis-aligned box given by its top-left corner and size.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the centre of the box.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Corners returns the closed outline of the box, starting and ending at the
// top-left corner.
func (r Rect) Corners() []Point {
	return []Point{
		{X: r.X, Y: r.Y},
		{X: r.X + r.W, Y: r.Y},
		{X: r.X + r.W, Y: r.Y + r.H},
		{X: r.X, Y: r.Y + r.H},
		{X: r.X, Y: r.Y},
	}
}

// Line is a line in general form with coefficients as produced by
// LineFromPoints. IntersectLines solves A·x + B·y = C for a pair of them.
type Line struct {
	A, B, C float64
}

// LineFromPoints returns the line through p1 and p2.
// Coincident points yield the zero line, which intersects nothing.
func LineFromPoints(p1, p2 Point) Line {
	return Line{
		A: p1.Y - p2.Y,
		B: p2.X - p1.X,
		C: -(p1.X*p2.Y - p2.X*p1.Y),
	}
}

// IntersectLines solves the 2x2 system by determinants. It returns false when
// the determinant is exactly zero (parallel or coincident lines).
func IntersectLines(l1, l2 Line) (Point, bool) {
	d := l1.A*l2.B - l1.B*l2.A
	if d == 0 {
		return Point{}, false
	}
	dx := l1.C*l2.B - l1.B*l2.C
	dy := l1.A*l2.C - l1.C*l2.A
	return Point{X: dx / d, Y: dy / d}, true
}

// PointOnSegment is an inclusive bounding-box membership test. It does not
// check collinearity; callers only feed it points already known to lie on
// the segment's line.
func PointOnSegment(s Segment, p Point) bool {
	return math.Min(s.Start.X, s.End.X) <= p.X && p.X <= math.Max(s.Start.X, s.End.X) &&
		math.Min(s.Start.Y, s.End.Y) <= p.Y && p.Y <= math.Max(s.Start.Y, s.End.Y)
}

// SegmentsIntersect returns the intersection point of two segments, or false
// when their lines are parallel or the line intersection falls outside either
// segment's bounding box.
func SegmentsIntersect(s1, s2 Segment) (Point, bool) {
	p, ok := IntersectLines(
		LineFromPoints(s1.Start, s1.End),
		LineFromPoints(s2.Start, s2.End),
	)
	if !ok {
		return Point{}, false
	}
	if !PointOnSegment(s1, p) || !PointOnSegment(s2, p) {
		return Point{}, false
	}
	return p, true
}

// IsClockwise reports whether p lies clockwise of the directed reference
// segment. Collinear points are not clockwise.
func IsClockwise(ref Segment, p Point) bool {
	x0, y0 := ref.Start.X, ref.Start.Y
	x1, y1 := ref.End.X, ref.End.Y
	cross := (x1-p.X)*(y0-p.Y) - (x0-p.X)*(y1-p.Y)
	return cross > 0
}

// VerticalBisector returns the vertical reference segment splitting a frame
// of the given size in half, from the top edge to the bottom edge.
func VerticalBisector(width, height float64) Segment {
	return Segment{
		Start: Point{X: width / 2, Y: 0},
		End:   Point{X: width / 2, Y: height},
	}
}
