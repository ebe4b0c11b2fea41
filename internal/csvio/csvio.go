// Package csvio reads and writes detection tables in the flat CSV layout
// produced by the object tracker: one row per detection with the columns
// id, label, x, y, w, h, score, frame and timestamp.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/crossing.report/internal/fsutil"
	"github.com/banshee-data/crossing.report/internal/tracking"
)

// Columns is the canonical column order written by WriteDetections.
var Columns = []string{"id", "label", "x", "y", "w", "h", "score", "frame", "timestamp"}

// LegacyColumns is the layout of older dumps, which also stored the box
// centre. Their header names are not trusted, so use it with Reader.Columns.
// The cx and cy values are ignored on read.
var LegacyColumns = []string{"id", "label", "x", "y", "w", "h", "cx", "cy", "score", "frame", "timestamp"}

// ErrMissingColumn is wrapped by RowError when a required column is absent
// from the header.
var ErrMissingColumn = errors.New("missing required column")

// RowError identifies the row (1-based, counting the header) and column of a
// value that could not be parsed.
type RowError struct {
	Row    int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("csv row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("csv row %d, column %q: %v", e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Reader decodes detection tables. The first row is always a header. With no
// Columns it names the fields; otherwise it is skipped and every later row is
// laid out as Columns.
type Reader struct {
	Columns []string
}

// ReadDetections reads a table whose first row is a header.
func ReadDetections(r io.Reader) ([]tracking.Detection, error) {
	return Reader{}.Read(r)
}

// Read decodes every row of r. Any malformed row fails the whole read, so a
// caller never sees a partial table.
func (rd Reader) Read(r io.Reader) ([]tracking.Detection, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	rec, err := cr.Read()
	if err == io.EOF {
		return nil, &RowError{Row: 1, Err: errors.New("empty input, expected a header row")}
	}
	if err != nil {
		return nil, &RowError{Row: 1, Err: err}
	}
	head := rec
	if rd.Columns != nil {
		head = rd.Columns
	}
	row := 1

	idx := make(map[string]int, len(head))
	for i, h := range head {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range Columns {
		if _, ok := idx[col]; !ok {
			return nil, &RowError{Row: 1, Column: col, Err: ErrMissingColumn}
		}
	}

	var dets []tracking.Detection
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, &RowError{Row: row, Err: err}
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		d, err := parseRow(rec, idx, row)
		if err != nil {
			return nil, err
		}
		dets = append(dets, d)
	}
	return dets, nil
}

func parseRow(rec []string, idx map[string]int, row int) (tracking.Detection, error) {
	field := func(col string) (string, error) {
		i := idx[col]
		if i >= len(rec) {
			return "", &RowError{Row: row, Column: col, Err: errors.New("missing value")}
		}
		return strings.TrimSpace(rec[i]), nil
	}
	float := func(col string, dst *float64) error {
		s, err := field(col)
		if err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return &RowError{Row: row, Column: col, Err: err}
		}
		*dst = v
		return nil
	}
	integer := func(col string, dst *int) error {
		s, err := field(col)
		if err != nil {
			return err
		}
		v, err := parseInt(s)
		if err != nil {
			return &RowError{Row: row, Column: col, Err: err}
		}
		*dst = v
		return nil
	}

	var d tracking.Detection
	label, err := field("label")
	if err != nil {
		return d, err
	}
	d.Label = label

	for _, step := range []error{
		integer("id", &d.TrackID),
		float("x", &d.X),
		float("y", &d.Y),
		float("w", &d.W),
		float("h", &d.H),
		float("score", &d.Score),
		integer("frame", &d.Frame),
		float("timestamp", &d.Timestamp),
	} {
		if step != nil {
			return d, step
		}
	}
	return d, nil
}

// parseInt accepts plain integers and integral floats such as "12.0".
func parseInt(s string) (int, error) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	if math.Abs(f) >= math.MaxInt {
		return 0, fmt.Errorf("%q is out of range", s)
	}
	return int(f), nil
}

// WriteDetections writes a header followed by one row per detection. Floats
// use the shortest representation that reads back to the same value.
func WriteDetections(w io.Writer, dets []tracking.Detection) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, d := range dets {
		rec := []string{
			strconv.Itoa(d.TrackID),
			d.Label,
			ff(d.X), ff(d.Y), ff(d.W), ff(d.H),
			ff(d.Score),
			strconv.Itoa(d.Frame),
			ff(d.Timestamp),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadFile reads a headed detection table from path.
func LoadFile(fs fsutil.FileSystem, path string) ([]tracking.Detection, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	dets, err := ReadDetections(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return dets, nil
}

// SaveFile writes dets to path, replacing any existing file.
func SaveFile(fs fsutil.FileSystem, path string, dets []tracking.Detection) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteDetections(f, dets); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
