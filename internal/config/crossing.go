package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/crossing.report/internal/geometry"
	"github.com/banshee-data/crossing.report/internal/tracking"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/crossing.defaults.json"

// ReferenceConfig is a reference segment in image pixels.
type ReferenceConfig struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Segment converts r to a geometry segment.
func (r ReferenceConfig) Segment() geometry.Segment {
	return geometry.Segment{
		Start: geometry.Point{X: r.X0, Y: r.Y0},
		End:   geometry.Point{X: r.X1, Y: r.Y1},
	}
}

// CrossingConfig holds the settings of a crossing run. Every field is
// optional; the Get* methods supply defaults for unset ones.
type CrossingConfig struct {
	// Reference defaults to the vertical bisector of the frame.
	Reference   *ReferenceConfig `json:"reference,omitempty"`
	FrameWidth  *int             `json:"frame_width,omitempty"`
	FrameHeight *int             `json:"frame_height,omitempty"`

	PersonThreshold *float64 `json:"person_threshold,omitempty"`
	LiveFrameRecall *int     `json:"live_frame_recall,omitempty"`
	QueryFrameStep  *int     `json:"query_frame_step,omitempty"`

	SVGWidth  *float64 `json:"svg_width,omitempty"`
	SVGHeight *float64 `json:"svg_height,omitempty"`

	ListenAddress *string `json:"listen_address,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// DefaultCrossingConfig returns a config with every field set to its default.
func DefaultCrossingConfig() *CrossingConfig {
	return &CrossingConfig{
		FrameWidth:      ptrInt(640),
		FrameHeight:     ptrInt(480),
		PersonThreshold: ptrFloat64(tracking.DefaultPersonThreshold),
		LiveFrameRecall: ptrInt(0),
		QueryFrameStep:  ptrInt(0),
		SVGWidth:        ptrFloat64(640),
		SVGHeight:       ptrFloat64(480),
		ListenAddress:   ptrString(":8090"),
	}
}

// LoadCrossingConfig loads a CrossingConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file fall back to their defaults, so partial configs are safe.
func LoadCrossingConfig(path string) (*CrossingConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &CrossingConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded; intended for
// tests and tools run from inside the repository.
func MustLoadDefaultConfig() *CrossingConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadCrossingConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from the repository root")
}

// Validate checks the fields that are set.
func (c *CrossingConfig) Validate() error {
	if c.FrameWidth != nil && *c.FrameWidth <= 0 {
		return fmt.Errorf("frame_width must be positive, got %d", *c.FrameWidth)
	}
	if c.FrameHeight != nil && *c.FrameHeight <= 0 {
		return fmt.Errorf("frame_height must be positive, got %d", *c.FrameHeight)
	}
	if c.PersonThreshold != nil {
		if *c.PersonThreshold <= 0 || *c.PersonThreshold > 1 {
			return fmt.Errorf("person_threshold must be in (0, 1], got %f", *c.PersonThreshold)
		}
	}
	if c.LiveFrameRecall != nil && *c.LiveFrameRecall < 0 {
		return fmt.Errorf("live_frame_recall must be non-negative, got %d", *c.LiveFrameRecall)
	}
	if c.QueryFrameStep != nil && *c.QueryFrameStep < 0 {
		return fmt.Errorf("query_frame_step must be non-negative, got %d", *c.QueryFrameStep)
	}
	if c.SVGWidth != nil && *c.SVGWidth <= 0 {
		return fmt.Errorf("svg_width must be positive, got %f", *c.SVGWidth)
	}
	if c.SVGHeight != nil && *c.SVGHeight <= 0 {
		return fmt.Errorf("svg_height must be positive, got %f", *c.SVGHeight)
	}
	if c.Reference != nil && c.Reference.Segment().IsDegenerate() {
		return fmt.Errorf("reference endpoints must differ, got (%g, %g)", c.Reference.X0, c.Reference.Y0)
	}
	return nil
}

// GetFrameWidth returns the frame_width value or the default.
func (c *CrossingConfig) GetFrameWidth() int {
	if c.FrameWidth == nil {
		return 640
	}
	return *c.FrameWidth
}

// GetFrameHeight returns the frame_height value or the default.
func (c *CrossingConfig) GetFrameHeight() int {
	if c.FrameHeight == nil {
		return 480
	}
	return *c.FrameHeight
}

// GetReference returns the configured reference, or the vertical bisector
// of the frame when none is set.
func (c *CrossingConfig) GetReference() geometry.Segment {
	if c.Reference != nil {
		return c.Reference.Segment()
	}
	return geometry.VerticalBisector(float64(c.GetFrameWidth()), float64(c.GetFrameHeight()))
}

// GetPersonThreshold returns the person_threshold value or the default.
func (c *CrossingConfig) GetPersonThreshold() float64 {
	if c.PersonThreshold == nil {
		return tracking.DefaultPersonThreshold
	}
	return *c.PersonThreshold
}

// GetLiveFrameRecall returns the live_frame_recall value or 0 (disabled).
func (c *CrossingConfig) GetLiveFrameRecall() int {
	if c.LiveFrameRecall == nil {
		return 0
	}
	return *c.LiveFrameRecall
}

// GetQueryFrameStep returns the query_frame_step value or 0 (disabled).
func (c *CrossingConfig) GetQueryFrameStep() int {
	if c.QueryFrameStep == nil {
		return 0
	}
	return *c.QueryFrameStep
}

// GetSVGWidth returns the svg_width value or the frame width.
func (c *CrossingConfig) GetSVGWidth() float64 {
	if c.SVGWidth == nil {
		return float64(c.GetFrameWidth())
	}
	return *c.SVGWidth
}

// GetSVGHeight returns the svg_height value or the frame height.
func (c *CrossingConfig) GetSVGHeight() float64 {
	if c.SVGHeight == nil {
		return float64(c.GetFrameHeight())
	}
	return *c.SVGHeight
}

// GetListenAddress returns the listen_address value or the default.
func (c *CrossingConfig) GetListenAddress() string {
	if c.ListenAddress == nil || *c.ListenAddress == "" {
		return ":8090"
	}
	return *c.ListenAddress
}

// StoreConfig derives the tracking store settings.
func (c *CrossingConfig) StoreConfig() tracking.StoreConfig {
	ref := c.GetReference()
	return tracking.StoreConfig{
		Reference:       &ref,
		LiveFrameRecall: c.GetLiveFrameRecall(),
		PersonThreshold: c.GetPersonThreshold(),
	}
}
