package tracking

// Filter narrows an ordered point sequence. Each filter is a sequential fold
// over its input: it never reorders points and any state it keeps lives only
// for the duration of one Apply call.
type Filter interface {
	Apply(points []Detection) []Detection
}

// ApplyFilters runs the filters left to right. A point survives only if every
// filter keeps it. The input slice is never modified.
func ApplyFilters(points []Detection, filters ...Filter) []Detection {
	out := points
	for _, f := range filters {
		if f == nil {
			continue
		}
		out = f.Apply(out)
	}
	return out
}

// TimeWindow keeps points whose timestamp lies in [Start, End]. A nil End
// leaves the window open.
type TimeWindow struct {
	Start float64
	End   *float64
}

// Apply implements Filter.
func (w TimeWindow) Apply(points []Detection) []Detection {
	out := make([]Detection, 0, len(points))
	for _, p := range points {
		if p.Timestamp < w.Start {
			continue
		}
		if w.End != nil && p.Timestamp > *w.End {
			continue
		}
		out = append(out, p)
	}
	return out
}

// FrameStep downsamples by keeping the first point and then only points more
// than Step frames after the last kept one. The result depends on order, so
// it must run over a frame-ordered sequence.
type FrameStep struct {
	Step int
}

// Apply implements Filter.
func (s FrameStep) Apply(points []Detection) []Detection {
	out := make([]Detection, 0, len(points))
	var lastKept int
	for i, p := range points {
		if i == 0 || p.Frame > lastKept+s.Step {
			lastKept = p.Frame
			out = append(out, p)
		}
	}
	return out
}

// FrameRecall keeps points from the trailing Recall frames relative to
// CurrentFrame, which is the store's frame counter rather than anything
// belonging to the trajectory.
type FrameRecall struct {
	Recall       int
	CurrentFrame int
}

// Apply implements Filter.
func (r FrameRecall) Apply(points []Detection) []Detection {
	oldest := r.CurrentFrame - r.Recall
	out := make([]Detection, 0, len(points))
	for _, p := range points {
		if p.Frame >= oldest {
			out = append(out, p)
		}
	}
	return out
}

// Float64 returns a pointer to v, for optional bounds such as TimeWindow.End.
func Float64(v float64) *float64 { return &v }
