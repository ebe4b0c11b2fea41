// Package collector turns per-frame tracker output into detections. It keeps
// the run clock, stamps every box it is given with the current frame and
// optionally forwards it to a tracking.Store as it arrives.
package collector

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/crossing.report/internal/csvio"
	"github.com/banshee-data/crossing.report/internal/fsutil"
	"github.com/banshee-data/crossing.report/internal/timeutil"
	"github.com/banshee-data/crossing.report/internal/tracking"
)

// ErrNotStarted is returned by Add before Start has been called.
var ErrNotStarted = errors.New("collector not started")

// Collector is safe for concurrent use.
type Collector struct {
	clock timeutil.Clock
	store *tracking.Store

	mu      sync.Mutex
	points  []tracking.Detection
	frame   int
	start   time.Time
	started bool
}

// New creates a collector. A nil clock uses the wall clock; a nil store
// only records.
func New(clock timeutil.Clock, store *tracking.Store) *Collector {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Collector{clock: clock, store: store}
}

// Start marks the start of the run. Later calls keep the first start time.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		c.start = c.clock.Now()
		c.started = true
	}
}

// IncrementFrame moves to the next frame and returns its number. With a
// store attached the store's frame counter is the one advanced, so frames
// set by a bulk load carry on from where the load ended.
func (c *Collector) IncrementFrame() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		return c.store.AdvanceFrame()
	}
	c.frame++
	return c.frame
}

// SetFrame jumps to frame n.
func (c *Collector) SetFrame(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		c.store.SetFrame(n)
		return
	}
	c.frame = n
}

// Frame returns the current frame number.
func (c *Collector) Frame() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameLocked()
}

func (c *Collector) frameLocked() int {
	if c.store != nil {
		return c.store.CurrentFrame()
	}
	return c.frame
}

// Add records one box for the current frame, timestamped in seconds since
// Start. With a store attached the detection is ingested immediately and
// the direction of any crossing it completes is returned.
func (c *Collector) Add(label string, x, y, w, h float64, trackID int, score float64) (tracking.Direction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return tracking.NoCrossing, ErrNotStarted
	}
	d := tracking.Detection{
		TrackID:   trackID,
		Label:     label,
		X:         x,
		Y:         y,
		W:         w,
		H:         h,
		Score:     score,
		Frame:     c.frameLocked(),
		Timestamp: c.clock.Since(c.start).Seconds(),
	}
	c.points = append(c.points, d)

	if c.store == nil {
		return tracking.NoCrossing, nil
	}
	return c.store.Ingest(d)
}

// Reset forgets every point and the start time. Without a store the frame
// returns to 0; an attached store keeps its trajectories and frame.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.points = nil
	c.frame = 0
	c.start = time.Time{}
	c.started = false
}

// Points returns a copy of everything recorded so far.
func (c *Collector) Points() []tracking.Detection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tracking.Detection(nil), c.points...)
}

// Dump writes the recorded points as CSV.
func (c *Collector) Dump(w io.Writer) error {
	return csvio.WriteDetections(w, c.Points())
}

// DumpFile writes the recorded points to path.
func (c *Collector) DumpFile(fs fsutil.FileSystem, path string) error {
	return csvio.SaveFile(fs, path, c.Points())
}
