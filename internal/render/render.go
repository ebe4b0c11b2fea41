// Package render draws trajectory reports. Draw walks a tracking.Report in a
// fixed order and hands each piece to a Sink; SVGSink and ChartSink are the
// two sinks shipped here.
package render

import (
	"fmt"

	"github.com/banshee-data/crossing.report/internal/geometry"
	"github.com/banshee-data/crossing.report/internal/tracking"
)

// Sink receives the drawable parts of a report.
type Sink interface {
	DrawTrack(tv tracking.TrackView) error
	DrawReference(ref geometry.Segment) error
	DrawCounters(label string, t tracking.Tally) error
}

// Options controls the canvas shared by the sinks. Coordinates are image
// pixels with the origin at the top left.
type Options struct {
	Width   float64
	Height  float64
	Title   string
	LastBox bool // outline the box of each track's last point
}

// DefaultOptions matches a 640x480 camera frame.
func DefaultOptions() Options {
	return Options{Width: 640, Height: 480, LastBox: true}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	return o
}

// CounterText formats a tally the way it is shown on the canvas.
func CounterText(t tracking.Tally) string {
	return fmt.Sprintf("In: %d. Out: %d", t.Clockwise, t.CounterClockwise)
}

// Draw sends every track in id order, then the reference and the queried
// counters when the report carries a queried tally.
func Draw(sink Sink, rep tracking.Report) error {
	for _, tv := range rep.Tracks {
		if err := sink.DrawTrack(tv); err != nil {
			return fmt.Errorf("draw track %d: %w", tv.TrackID, err)
		}
	}
	if rep.Queried == nil || rep.Reference == nil {
		return nil
	}
	if err := sink.DrawReference(*rep.Reference); err != nil {
		return fmt.Errorf("draw reference: %w", err)
	}
	if err := sink.DrawCounters("", *rep.Queried); err != nil {
		return fmt.Errorf("draw counters: %w", err)
	}
	return nil
}

// polyline flattens consecutive segments into their vertices.
func polyline(segs []geometry.Segment) []geometry.Point {
	if len(segs) == 0 {
		return nil
	}
	pts := make([]geometry.Point, 0, len(segs)+1)
	pts = append(pts, segs[0].Start)
	for _, s := range segs {
		pts = append(pts, s.End)
	}
	return pts
}
