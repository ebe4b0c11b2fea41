package tracking

import (
	"errors"
	"fmt"
)

var (
	// ErrMismatchedTrack is matched by every *MismatchedTrackError.
	ErrMismatchedTrack = errors.New("detection track id does not match trajectory")
	// ErrEmptyTrajectory is returned when a trajectory has no points to
	// classify.
	ErrEmptyTrajectory = errors.New("trajectory has no points")
)

// MismatchedTrackError reports a detection appended to the wrong trajectory.
type MismatchedTrackError struct {
	Want int // trajectory id
	Got  int // detection id
}

func (e *MismatchedTrackError) Error() string {
	return fmt.Sprintf("%v: trajectory %d, detection %d", ErrMismatchedTrack, e.Want, e.Got)
}

// Is lets errors.Is match ErrMismatchedTrack.
func (e *MismatchedTrackError) Is(target error) bool {
	return target == ErrMismatchedTrack
}

// InvalidDetectionError identifies the offending detection in a bulk load.
type InvalidDetectionError struct {
	Index   int
	TrackID int
	Err     error
}

func (e *InvalidDetectionError) Error() string {
	return fmt.Sprintf("detection %d (track %d): %v", e.Index, e.TrackID, e.Err)
}

func (e *InvalidDetectionError) Unwrap() error { return e.Err }
