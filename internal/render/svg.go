package render

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/crossing.report/internal/fsutil"
	"github.com/banshee-data/crossing.report/internal/geometry"
	"github.com/banshee-data/crossing.report/internal/tracking"
)

var (
	referenceOuter = color.RGBA{R: 255, A: 255}
	referenceInner = color.RGBA{B: 255, A: 255}
)

// SVGSink draws onto a gonum plot laid out in image coordinates: x grows to
// the right and y grows downwards.
type SVGSink struct {
	opts Options
	p    *plot.Plot
}

// NewSVGSink creates an empty canvas.
func NewSVGSink(opts Options) *SVGSink {
	opts = opts.withDefaults()
	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	return &SVGSink{opts: opts, p: p}
}

func toXYs(pts []geometry.Point) plotter.XYs {
	xys := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
	}
	return xys
}

// DrawTrack draws the path, a dot at every vertex and optionally the last box.
func (s *SVGSink) DrawTrack(tv tracking.TrackView) error {
	xys := toXYs(polyline(tv.Segments))
	if len(xys) == 0 {
		return nil
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	line.Color = tv.Color
	line.Width = vg.Points(3)

	dots, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	dots.GlyphStyle.Color = tv.Color
	dots.GlyphStyle.Radius = vg.Points(3)
	dots.GlyphStyle.Shape = draw.CircleGlyph{}

	s.p.Add(line, dots)
	s.p.Legend.Add(fmt.Sprintf("%d %s", tv.TrackID, tv.Label), line)

	if s.opts.LastBox {
		box, err := plotter.NewLine(toXYs(tv.LastBox.Corners()))
		if err != nil {
			return err
		}
		box.Color = tv.Color
		box.Width = vg.Points(2)
		s.p.Add(box)
	}
	return nil
}

// DrawReference draws the reference as a blue line on a wider red one, with a
// marker on its start point.
func (s *SVGSink) DrawReference(ref geometry.Segment) error {
	xys := toXYs([]geometry.Point{ref.Start, ref.End})

	outer, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	outer.Color = referenceOuter
	outer.Width = vg.Points(8)

	inner, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	inner.Color = referenceInner
	inner.Width = vg.Points(4)

	start, err := plotter.NewScatter(xys[:1])
	if err != nil {
		return err
	}
	start.GlyphStyle.Color = referenceOuter
	start.GlyphStyle.Radius = vg.Points(4)
	start.GlyphStyle.Shape = draw.CircleGlyph{}

	s.p.Add(outer, inner, start)
	return nil
}

// DrawCounters shows the tally in the plot title.
func (s *SVGSink) DrawCounters(label string, t tracking.Tally) error {
	parts := []string{}
	if s.opts.Title != "" {
		parts = append(parts, s.opts.Title)
	}
	if label != "" {
		parts = append(parts, label)
	}
	parts = append(parts, CounterText(t))
	s.p.Title.Text = strings.Join(parts, " ")
	return nil
}

// WriteTo renders the canvas as SVG.
func (s *SVGSink) WriteTo(w io.Writer) (int64, error) {
	s.p.X.Min, s.p.X.Max = 0, s.opts.Width
	s.p.Y.Min, s.p.Y.Max = 0, s.opts.Height

	wt, err := s.p.WriterTo(vg.Points(s.opts.Width), vg.Points(s.opts.Height), "svg")
	if err != nil {
		return 0, fmt.Errorf("svg writer: %w", err)
	}
	return wt.WriteTo(w)
}

// SaveSVG draws rep and writes it to path.
func SaveSVG(fs fsutil.FileSystem, path string, rep tracking.Report, opts Options) error {
	sink := NewSVGSink(opts)
	if err := Draw(sink, rep); err != nil {
		return err
	}

	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := sink.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
