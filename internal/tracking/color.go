package tracking

import (
	"crypto/sha1"
	"fmt"
	"image/color"
	"strconv"
)

// TrackColor derives a display colour from a track id. The mapping is stable
// across runs and processes; distinct ids may collide.
func TrackColor(trackID int) color.RGBA {
	sum := sha1.Sum([]byte(strconv.Itoa(trackID)))
	n := len(sum)
	return color.RGBA{
		R: sum[n-1] % 255,
		G: sum[n-2] % 255,
		B: sum[n-3] % 255,
		A: 255,
	}
}

// CSSColor formats c as an rgb() string.
func CSSColor(c color.RGBA) string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// Color returns the trajectory's display colour.
func (t *Trajectory) Color() color.RGBA { return TrackColor(t.trackID) }

// ColorCSS returns Color formatted for HTML and SVG.
func (t *Trajectory) ColorCSS() string { return CSSColor(t.Color()) }
