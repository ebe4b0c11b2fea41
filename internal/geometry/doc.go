// Package geometry holds the 2D primitives used for line-crossing detection:
// general-form lines, determinant intersection, bounding-box containment and
// the clockwise orientation test.
//
// Everything here is a pure function over float64 image coordinates. There
// is no epsilon anywhere: parallel lines are detected by an exactly zero
// determinant, so near-parallel inputs can report far-away intersections.
package geometry
