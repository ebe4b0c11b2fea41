package tracking

import (
	"image/color"
	"sort"

	"github.com/banshee-data/crossing.report/internal/geometry"
)

// Query selects trajectories and the part of each one to report.
type Query struct {
	// Start and End bound the timestamps inclusively; a nil End is open.
	Start float64
	End   *float64

	// TrackIDs restricts the result to these ids when non-empty.
	TrackIDs []int

	// Label restricts the result to trajectories whose dominant label
	// matches when non-empty.
	Label string

	// FrameStep downsamples each trajectory after the time window when
	// positive.
	FrameStep int

	// CountCross asks Report to recount crossings over the result.
	CountCross bool
}

// Filters returns the point pipeline for q.
func (q Query) Filters() []Filter {
	filters := []Filter{TimeWindow{Start: q.Start, End: q.End}}
	if q.FrameStep > 0 {
		filters = append(filters, FrameStep{Step: q.FrameStep})
	}
	return filters
}

func (q Query) idSet() map[int]struct{} {
	if len(q.TrackIDs) == 0 {
		return nil
	}
	ids := make(map[int]struct{}, len(q.TrackIDs))
	for _, id := range q.TrackIDs {
		ids[id] = struct{}{}
	}
	return ids
}

// queryResult is one trajectory that survived a query.
type queryResult struct {
	traj   *Trajectory
	label  string
	points []Detection
	segs   []geometry.Segment
}

// selectLocked runs q over the current state in ascending id order. The
// caller holds at least the read lock. Trajectories are only read.
func (s *Store) selectLocked(q Query) []queryResult {
	ids := q.idSet()
	filters := q.Filters()
	threshold := s.cfg.personThreshold()

	order := append([]int(nil), s.state.order...)
	sort.Ints(order)

	var out []queryResult
	for _, id := range order {
		if ids != nil {
			if _, ok := ids[id]; !ok {
				continue
			}
		}
		t := s.state.trajectories[id]
		label, err := t.DominantLabel(threshold)
		if err != nil {
			continue
		}
		if q.Label != "" && label != q.Label {
			continue
		}
		points := t.FilteredPoints(filters...)
		segs := BuildSegments(points)
		if len(segs) == 0 {
			continue
		}
		out = append(out, queryResult{traj: t, label: label, points: points, segs: segs})
	}
	return out
}

// Query returns the segments of every trajectory selected by q, keyed by
// track id. Trajectories left with no segments are omitted.
func (s *Store) Query(q Query) map[int][]geometry.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int][]geometry.Segment)
	for _, r := range s.selectLocked(q) {
		out[r.traj.ID()] = r.segs
	}
	return out
}

// CountQuery recounts crossings over the segments selected by q. It is
// independent of the running counters and may disagree with them. Without a
// reference the tally is zero.
func (s *Store) CountQuery(q Query) Tally {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tally Tally
	if s.cfg.Reference == nil {
		return tally
	}
	for _, r := range s.selectLocked(q) {
		tally.Merge(CountCrossings(r.segs, *s.cfg.Reference))
	}
	return tally
}

// TrackView is one trajectory prepared for drawing.
type TrackView struct {
	TrackID  int                `json:"id"`
	Label    string             `json:"label"`
	Color    color.RGBA         `json:"-"`
	CSS      string             `json:"color"`
	Segments []geometry.Segment `json:"segments"`
	// LastBox is the box of the last point that survived the query.
	LastBox   geometry.Rect `json:"last_box"`
	Crossings *Tally        `json:"crossings,omitempty"`
}

// Report is everything a rendering sink needs for one query.
type Report struct {
	Tracks    []TrackView       `json:"tracks"`
	Reference *geometry.Segment `json:"reference,omitempty"`
	Running   Tally             `json:"running"`
	Queried   *Tally            `json:"queried,omitempty"`
	Frame     int               `json:"frame"`
}

// Report runs q and packages the result, ordered by track id. When
// q.CountCross is set and a reference is configured, the queried tally and
// per-track tallies are filled in.
func (s *Store) Report(q Query) Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rep := Report{
		Tracks:  []TrackView{},
		Running: s.state.running,
		Frame:   s.frame,
	}
	if s.cfg.Reference != nil {
		ref := *s.cfg.Reference
		rep.Reference = &ref
	}
	count := q.CountCross && rep.Reference != nil
	if count {
		rep.Queried = &Tally{}
	}

	for _, r := range s.selectLocked(q) {
		c := r.traj.Color()
		view := TrackView{
			TrackID:  r.traj.ID(),
			Label:    r.label,
			Color:    c,
			CSS:      CSSColor(c),
			Segments: r.segs,
			LastBox:  r.points[len(r.points)-1].Box(),
		}
		if count {
			tally := CountCrossings(r.segs, *rep.Reference)
			view.Crossings = &tally
			rep.Queried.Merge(tally)
		}
		rep.Tracks = append(rep.Tracks, view)
	}
	return rep
}
