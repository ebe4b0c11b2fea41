package tracking

import (
	"sort"
	"sync"

	"github.com/banshee-data/crossing.report/internal/geometry"
)

// StoreConfig fixes the per-run parameters of a Store.
type StoreConfig struct {
	// Reference is the segment crossings are counted against. With no
	// reference, ingest still builds trajectories but never counts.
	Reference *geometry.Segment

	// LiveFrameRecall, when positive, restricts the per-ingest crossing check
	// to points from the trailing LiveFrameRecall frames of the store's frame
	// counter.
	LiveFrameRecall int

	// PersonThreshold overrides DefaultPersonThreshold when positive.
	PersonThreshold float64
}

func (c StoreConfig) personThreshold() float64 {
	if c.PersonThreshold > 0 {
		return c.PersonThreshold
	}
	return DefaultPersonThreshold
}

// Store owns every trajectory of a run along with the running crossing
// counters and the live frame counter. All mutation happens under one
// write lock and every query under the read lock, so a reader never sees a
// half-appended trajectory or a half-finished reload.
type Store struct {
	cfg StoreConfig

	mu    sync.RWMutex
	state *storeState
	frame int
}

// storeState is everything BulkLoad replaces in a single swap.
type storeState struct {
	trajectories map[int]*Trajectory
	order        []int // first-seen order of track ids
	running      Tally
}

func newStoreState() *storeState {
	return &storeState{trajectories: make(map[int]*Trajectory)}
}

// NewStore creates an empty store. The reference segment is copied.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Reference != nil {
		ref := *cfg.Reference
		cfg.Reference = &ref
	}
	return &Store{cfg: cfg, state: newStoreState()}
}

// Reference returns the configured reference segment.
func (s *Store) Reference() (geometry.Segment, bool) {
	if s.cfg.Reference == nil {
		return geometry.Segment{}, false
	}
	return *s.cfg.Reference, true
}

// PersonThreshold returns the threshold used for label classification.
func (s *Store) PersonThreshold() float64 { return s.cfg.personThreshold() }

func (st *storeState) trajectory(id int) *Trajectory {
	t, ok := st.trajectories[id]
	if !ok {
		t = NewTrajectory(id)
		st.trajectories[id] = t
		st.order = append(st.order, id)
	}
	return t
}

// ingest appends d and checks the newest segment. recall may be nil.
func (st *storeState) ingest(d Detection, ref *geometry.Segment, recall *FrameRecall) (Direction, error) {
	t := st.trajectory(d.TrackID)
	if err := t.Append(d); err != nil {
		return NoCrossing, err
	}
	if ref == nil {
		return NoCrossing, nil
	}

	var (
		dir Direction
		ok  bool
	)
	if recall == nil {
		dir, ok = t.LatestCrossing(*ref)
	} else if d.Frame >= recall.CurrentFrame-recall.Recall {
		// The newest point survives the recall window, so the last
		// recalled segment is the one ending at d.
		segs := t.Segments(*recall)
		if n := len(segs); n > 0 {
			dir, ok = DetectCrossing(segs[n-1], *ref)
		}
	}
	if !ok {
		return NoCrossing, nil
	}
	st.running.Add(dir)
	return dir, nil
}

// Ingest routes d to its trajectory, creating it on first sight, and counts
// a crossing if the trajectory's newest segment crosses the reference. The
// returned direction is NoCrossing when nothing was counted.
func (s *Store) Ingest(d Detection) (Direction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recall *FrameRecall
	if s.cfg.LiveFrameRecall > 0 {
		recall = &FrameRecall{Recall: s.cfg.LiveFrameRecall, CurrentFrame: s.frame}
	}
	return s.state.ingest(d, s.cfg.Reference, recall)
}

// BulkLoad replaces all trajectories and counters with the result of
// ingesting dets in order. Every detection is validated first and nothing
// changes if any of them fails. The frame counter moves to the highest frame
// loaded.
func (s *Store) BulkLoad(dets []Detection) error {
	for i, d := range dets {
		if err := d.Validate(); err != nil {
			return &InvalidDetectionError{Index: i, TrackID: d.TrackID, Err: err}
		}
	}

	next := newStoreState()
	maxFrame := 0
	for _, d := range dets {
		if _, err := next.ingest(d, s.cfg.Reference, nil); err != nil {
			return err
		}
		if d.Frame > maxFrame {
			maxFrame = d.Frame
		}
	}

	s.mu.Lock()
	s.state = next
	s.frame = maxFrame
	s.mu.Unlock()
	return nil
}

// Reset drops every trajectory and zeroes the counters and the frame.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = newStoreState()
	s.frame = 0
}

// AdvanceFrame increments the live frame counter and returns the new value.
func (s *Store) AdvanceFrame() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame++
	return s.frame
}

// SetFrame sets the live frame counter.
func (s *Store) SetFrame(frame int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
}

// CurrentFrame returns the live frame counter.
func (s *Store) CurrentFrame() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Counters returns the running crossing totals.
func (s *Store) Counters() Tally {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.running
}

// Len returns the number of trajectories.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.order)
}

// Trajectory returns a copy of the points of one track.
func (s *Store) Trajectory(trackID int) ([]Detection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.trajectories[trackID]
	if !ok {
		return nil, false
	}
	return t.Points(), true
}

// TrackIDs returns every track id in ascending order.
func (s *Store) TrackIDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := append([]int(nil), s.state.order...)
	sort.Ints(ids)
	return ids
}

// Detections flattens the store back into detections, track by track in
// first-seen order.
func (s *Store) Detections() []Detection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Detection
	for _, id := range s.state.order {
		out = append(out, s.state.trajectories[id].points...)
	}
	return out
}

// RecentSegments returns, per track, the segments built from the trailing
// recall frames of the live frame counter. Tracks with no recent segment are
// left out.
func (s *Store) RecentSegments(recall int) map[int][]geometry.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := FrameRecall{Recall: recall, CurrentFrame: s.frame}
	out := make(map[int][]geometry.Segment)
	for _, id := range s.state.order {
		if segs := s.state.trajectories[id].Segments(f); len(segs) > 0 {
			out[id] = segs
		}
	}
	return out
}

// Stats summarises the store's contents.
type Stats struct {
	Tracks  int            `json:"tracks"`
	Points  int            `json:"points"`
	ByLabel map[string]int `json:"by_label"`
	People  int            `json:"people"`
	Running Tally          `json:"running"`
	Frame   int            `json:"frame"`
}

// Stats counts tracks, points and tracks per dominant label.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Tracks:  len(s.state.order),
		ByLabel: make(map[string]int),
		Running: s.state.running,
		Frame:   s.frame,
	}
	for _, id := range s.state.order {
		t := s.state.trajectories[id]
		st.Points += t.Len()
		label, err := t.DominantLabel(s.cfg.personThreshold())
		if err != nil {
			continue
		}
		st.ByLabel[label]++
	}
	st.People = st.ByLabel[PersonLabel]
	return st
}
