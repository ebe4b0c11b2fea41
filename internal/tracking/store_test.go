package tracking

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/crossing.report/internal/geometry"
)

var testRef = geometry.Segment{Start: geometry.Point{X: 250, Y: 0}, End: geometry.Point{X: 250, Y: 200}}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ref := testRef
	return NewStore(StoreConfig{Reference: &ref})
}

// sampleRun has a person crossing left to right, a car crossing back and
// forth and a single-point bicycle.
func sampleRun() []Detection {
	return []Detection{
		at(1, "person", 100, 100, 0, 0.0),
		at(2, "car", 400, 50, 0, 0.0),
		at(1, "person", 200, 100, 1, 0.5),
		at(2, "car", 200, 50, 1, 0.5),
		at(1, "person", 300, 100, 2, 1.0),
		at(2, "car", 300, 50, 2, 1.0),
		at(3, "bicycle", 10, 10, 2, 1.0),
	}
}

func TestStoreIngestCountsLatestSegment(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	want := []Direction{NoCrossing, NoCrossing, NoCrossing, CounterClockwise, Clockwise, Clockwise, NoCrossing}
	for i, d := range sampleRun() {
		dir, err := s.Ingest(d)
		require.NoError(t, err)
		assert.Equal(t, want[i], dir, "detection %d", i)
	}

	assert.Equal(t, Tally{Clockwise: 2, CounterClockwise: 1}, s.Counters())
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []int{1, 2, 3}, s.TrackIDs())
}

func TestStoreIngestWithoutReference(t *testing.T) {
	t.Parallel()

	s := NewStore(StoreConfig{})
	for _, d := range sampleRun() {
		dir, err := s.Ingest(d)
		require.NoError(t, err)
		assert.Equal(t, NoCrossing, dir)
	}
	assert.Equal(t, Tally{}, s.Counters())
	assert.Equal(t, Tally{}, s.CountQuery(Query{}))
	_, ok := s.Reference()
	assert.False(t, ok)

	// Trajectories are still built.
	assert.Len(t, s.Query(Query{}), 2)
}

func TestStoreReferenceIsCopied(t *testing.T) {
	t.Parallel()

	ref := testRef
	s := NewStore(StoreConfig{Reference: &ref})
	ref.Start.X = 0

	got, ok := s.Reference()
	require.True(t, ok)
	assert.Equal(t, testRef, got)
}

func TestStoreLiveFrameRecall(t *testing.T) {
	t.Parallel()

	ref := testRef
	s := NewStore(StoreConfig{Reference: &ref, LiveFrameRecall: 2})

	s.SetFrame(1)
	_, err := s.Ingest(at(2, "car", 100, 50, 1, 0))
	require.NoError(t, err)

	s.SetFrame(10)
	_, err = s.Ingest(at(1, "car", 100, 100, 10, 1))
	require.NoError(t, err)
	dir, err := s.Ingest(at(1, "car", 400, 100, 10, 1))
	require.NoError(t, err)
	assert.Equal(t, Clockwise, dir)

	// Track 2's first point is outside the recall window, so its only
	// segment is not evaluated.
	dir, err = s.Ingest(at(2, "car", 400, 50, 10, 1))
	require.NoError(t, err)
	assert.Equal(t, NoCrossing, dir)

	assert.Equal(t, Tally{Clockwise: 1}, s.Counters())
}

func TestStoreBulkLoad(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.Ingest(at(9, "dog", 0, 0, 0, 0))
	require.NoError(t, err)

	require.NoError(t, s.BulkLoad(sampleRun()))
	assert.Equal(t, Tally{Clockwise: 2, CounterClockwise: 1}, s.Counters())
	assert.Equal(t, []int{1, 2, 3}, s.TrackIDs(), "previous state is replaced")
	assert.Equal(t, 2, s.CurrentFrame())

	if diff := cmp.Diff(sampleRunByTrack(), s.Detections()); diff != "" {
		t.Errorf("Detections mismatch (-want +got):\n%s", diff)
	}
}

// sampleRunByTrack is sampleRun grouped by track in first-seen order.
func sampleRunByTrack() []Detection {
	run := sampleRun()
	return []Detection{run[0], run[2], run[4], run[1], run[3], run[5], run[6]}
}

func TestStoreBulkLoadIsAtomic(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.BulkLoad(sampleRun()))
	before := s.Detections()

	bad := sampleRun()
	bad[4].X = math.NaN()
	err := s.BulkLoad(bad)
	require.Error(t, err)

	var invalid *InvalidDetectionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, 4, invalid.Index)
	assert.Equal(t, 1, invalid.TrackID)

	negative := []Detection{at(1, "car", 0, 0, -1, 0)}
	require.Error(t, s.BulkLoad(negative))

	assert.Equal(t, before, s.Detections())
	assert.Equal(t, Tally{Clockwise: 2, CounterClockwise: 1}, s.Counters())
}

func TestStoreQuery(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.BulkLoad(sampleRun()))

	all := s.Query(Query{})
	assert.Len(t, all, 2, "single-point track 3 has no segments")
	assert.Len(t, all[1], 2)
	assert.Len(t, all[2], 2)

	byID := s.Query(Query{TrackIDs: []int{2, 3}})
	assert.Len(t, byID, 1)
	assert.Contains(t, byID, 2)

	byLabel := s.Query(Query{Label: "person"})
	assert.Len(t, byLabel, 1)
	assert.Contains(t, byLabel, 1)

	assert.Empty(t, s.Query(Query{Label: "truck"}))

	window := s.Query(Query{Start: 0.5, End: Float64(1.0)})
	require.Len(t, window[1], 1)
	assert.Equal(t, geometry.Segment{Start: geometry.Point{X: 200, Y: 100}, End: geometry.Point{X: 300, Y: 100}}, window[1][0])

	stepped := s.Query(Query{FrameStep: 1})
	require.Len(t, stepped[1], 1)
	assert.Equal(t, geometry.Point{X: 100, Y: 100}, stepped[1][0].Start)
	assert.Equal(t, geometry.Point{X: 300, Y: 100}, stepped[1][0].End)
}

func TestStoreCountQueryIsIndependent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.BulkLoad(sampleRun()))

	assert.Equal(t, Tally{Clockwise: 2, CounterClockwise: 1}, s.CountQuery(Query{}))
	assert.Equal(t, Tally{Clockwise: 1}, s.CountQuery(Query{TrackIDs: []int{1}}))
	assert.Equal(t, Tally{CounterClockwise: 1}, s.CountQuery(Query{End: Float64(0.5)}))

	// The running counters are untouched by ad-hoc counts.
	assert.Equal(t, Tally{Clockwise: 2, CounterClockwise: 1}, s.Counters())
}

func TestStoreBulkLoadWithoutCrossings(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	// Both tracks stay left of x=250 and never touch the reference.
	require.NoError(t, s.BulkLoad([]Detection{
		at(1, "person", 100, 100, 0, 0.0),
		at(1, "person", 150, 100, 1, 0.5),
		at(1, "person", 240, 100, 2, 1.0),
		at(2, "car", 200, 300, 0, 0.0),
		at(2, "car", 400, 300, 1, 0.5),
	}))

	assert.Equal(t, Tally{}, s.Counters())
	assert.Equal(t, Tally{}, s.CountQuery(Query{}))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 2, s.CurrentFrame())
}

func TestStoreRecountLeavesCountersUnchanged(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.BulkLoad(sampleRun()))
	before := s.Counters()

	q := Query{TrackIDs: []int{2}}
	first := s.CountQuery(q)
	second := s.CountQuery(q)
	assert.Equal(t, Tally{Clockwise: 1, CounterClockwise: 1}, first)
	assert.Equal(t, first, second)

	rq := Query{Start: 0.5, CountCross: true}
	rep1 := s.Report(rq)
	rep2 := s.Report(rq)
	require.NotNil(t, rep1.Queried)
	require.NotNil(t, rep2.Queried)
	assert.Equal(t, *rep1.Queried, *rep2.Queried)
	assert.Equal(t, before, rep2.Running)

	assert.Equal(t, before, s.Counters())
}

func TestStoreReport(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.BulkLoad(sampleRun()))

	rep := s.Report(Query{Start: 0.5, CountCross: true})
	require.Len(t, rep.Tracks, 2)
	assert.Equal(t, 1, rep.Tracks[0].TrackID)
	assert.Equal(t, 2, rep.Tracks[1].TrackID)

	person := rep.Tracks[0]
	assert.Equal(t, "person", person.Label)
	assert.Equal(t, TrackColor(1), person.Color)
	assert.Equal(t, CSSColor(TrackColor(1)), person.CSS)
	assert.Equal(t, geometry.Rect{X: 295, Y: 95, W: 10, H: 10}, person.LastBox)
	require.NotNil(t, person.Crossings)
	assert.Equal(t, Tally{Clockwise: 1}, *person.Crossings)

	require.NotNil(t, rep.Reference)
	assert.Equal(t, testRef, *rep.Reference)
	require.NotNil(t, rep.Queried)
	assert.Equal(t, Tally{Clockwise: 2}, *rep.Queried)
	assert.Equal(t, Tally{Clockwise: 2, CounterClockwise: 1}, rep.Running)
	assert.Equal(t, 2, rep.Frame)

	plain := s.Report(Query{})
	assert.Nil(t, plain.Queried)
	assert.Nil(t, plain.Tracks[0].Crossings)

	empty := NewStore(StoreConfig{}).Report(Query{CountCross: true})
	assert.NotNil(t, empty.Tracks)
	assert.Empty(t, empty.Tracks)
	assert.Nil(t, empty.Queried)
}

func TestStoreQueryDoesNotAlias(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.BulkLoad(sampleRun()))

	got := s.Query(Query{})
	got[1][0].Start.X = -1
	assert.Equal(t, 100.0, s.Query(Query{})[1][0].Start.X)
}

func TestStoreFrameCounterAndRecentSegments(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	assert.Equal(t, 0, s.CurrentFrame())
	assert.Equal(t, 1, s.AdvanceFrame())
	s.SetFrame(0)

	require.NoError(t, s.BulkLoad(sampleRun()))
	recent := s.RecentSegments(1)
	require.Len(t, recent, 2)
	assert.Len(t, recent[1], 1)

	assert.Empty(t, s.RecentSegments(-10))
}

func TestStoreStatsAndReset(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.BulkLoad(sampleRun()))

	st := s.Stats()
	assert.Equal(t, 3, st.Tracks)
	assert.Equal(t, 7, st.Points)
	assert.Equal(t, map[string]int{"person": 1, "car": 1, "bicycle": 1}, st.ByLabel)
	assert.Equal(t, 1, st.People)
	assert.Equal(t, Tally{Clockwise: 2, CounterClockwise: 1}, st.Running)

	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, Tally{}, s.Counters())
	assert.Equal(t, 0, s.CurrentFrame())
	assert.Empty(t, s.Detections())
}

func TestStoreConcurrentIngestAndQuery(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	const tracks, steps = 8, 50

	var wg sync.WaitGroup
	for id := 1; id <= tracks; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for f := 0; f < steps; f++ {
				// Every track zig-zags across x=250 on each step.
				x := 200.0
				if f%2 == 1 {
					x = 300
				}
				_, err := s.Ingest(at(id, "car", x, float64(10*id), f, float64(f)))
				assert.NoError(t, err)
			}
		}(id)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			for id, segs := range s.Query(Query{}) {
				// A query sees whole appends only: segments always
				// join up end to start.
				for j := 1; j < len(segs); j++ {
					assert.Equal(t, segs[j-1].End, segs[j].Start, "track %d", id)
				}
			}
			s.Counters()
			s.Stats()
		}
	}()

	wg.Wait()
	<-done

	assert.Equal(t, tracks*(steps-1), s.Counters().Total())
	assert.Equal(t, s.CountQuery(Query{}), s.Counters())
}
