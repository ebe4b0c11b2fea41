// Package tracking owns trajectory aggregation and line-crossing counting.
//
// Responsibilities: per-track point sequences built from upstream
// detections, the point filter pipeline (time window, frame step, frame
// recall), motion segments, dominant-label classification, crossing
// detection against a reference segment and the running crossing counters.
// Key types: Detection, Trajectory, Store, Tally.
//
// Dependency rule: tracking depends on geometry and monitoring only. CSV,
// SQLite, HTTP and rendering live in adapters that import this package.
package tracking
