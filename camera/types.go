package camera

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
)

// Raster is a decoded floor-map pixel buffer as delivered by the map decoder.
// It is immutable once produced; the pipeline never writes into Img.
type Raster struct {
	Img        *image.NRGBA
	Background color.NRGBA
	PixelSize  int // millimeters per pixel (Valetudo default: 50)
}

// Width returns the raster width in pixels
func (r *Raster) Width() int {
	return r.Img.Rect.Dx()
}

// Height returns the raster height in pixels
func (r *Raster) Height() int {
	return r.Img.Rect.Dy()
}

// PixelToWorld returns the transform from raw raster pixels to world
// millimeters. Valetudo maps are uniform grids, so this is a pure scale.
func (r *Raster) PixelToWorld() AffineMatrix {
	s := float64(r.PixelSize)
	return Scale(s, s)
}

// BoundingBox is a rectangle in raster pixel coordinates.
// All four edges are inclusive: a box enclosing the single pixel (3,7)
// is {3, 7, 3, 7}.
type BoundingBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width returns the box width in pixels
func (b BoundingBox) Width() int {
	return b.Right - b.Left + 1
}

// Height returns the box height in pixels
func (b BoundingBox) Height() int {
	return b.Bottom - b.Top + 1
}

// Valid reports whether the box is well-formed (left<=right, top<=bottom)
func (b BoundingBox) Valid() bool {
	return b.Left <= b.Right && b.Top <= b.Bottom
}

// Rect converts the inclusive box to a half-open image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right+1, b.Bottom+1)
}

// Expand grows the box by the given margins on each side.
// Negative margins shrink the box.
func (b BoundingBox) Expand(m Margins) BoundingBox {
	return BoundingBox{
		Left:   b.Left - m.Left,
		Top:    b.Top - m.Top,
		Right:  b.Right + m.Right,
		Bottom: b.Bottom + m.Bottom,
	}
}

// Clip constrains the box to a raster of the given dimensions.
// Out-of-range requests are clipped, never rejected.
func (b BoundingBox) Clip(width, height int) BoundingBox {
	if b.Left < 0 {
		b.Left = 0
	}
	if b.Top < 0 {
		b.Top = 0
	}
	if b.Right > width-1 {
		b.Right = width - 1
	}
	if b.Bottom > height-1 {
		b.Bottom = height - 1
	}
	return b
}

// Margins holds per-edge pixel values. Used both for trim margins
// (non-negative) and for signed pre-search offsets.
type Margins struct {
	Left   int `json:"left" yaml:"left"`
	Top    int `json:"top" yaml:"top"`
	Right  int `json:"right" yaml:"right"`
	Bottom int `json:"bottom" yaml:"bottom"`
}

// Uniform returns margins with the same value on all four edges
func Uniform(px int) Margins {
	return Margins{Left: px, Top: px, Right: px, Bottom: px}
}

// EdgeMargins holds optional per-edge margin overrides. A nil field means
// "use the uniform margin for this edge".
type EdgeMargins struct {
	Left   *int `json:"left,omitempty" yaml:"left,omitempty"`
	Top    *int `json:"top,omitempty" yaml:"top,omitempty"`
	Right  *int `json:"right,omitempty" yaml:"right,omitempty"`
	Bottom *int `json:"bottom,omitempty" yaml:"bottom,omitempty"`
}

// Resolve merges the overrides with a uniform default margin.
// A set edge fully replaces the uniform value for that edge.
func (e *EdgeMargins) Resolve(uniform int) Margins {
	m := Uniform(uniform)
	if e == nil {
		return m
	}
	if e.Left != nil {
		m.Left = *e.Left
	}
	if e.Top != nil {
		m.Top = *e.Top
	}
	if e.Right != nil {
		m.Right = *e.Right
	}
	if e.Bottom != nil {
		m.Bottom = *e.Bottom
	}
	return m
}

// AspectRatio is a width:height lock for the final output image
type AspectRatio struct {
	W int `json:"w"`
	H int `json:"h"`
}

// Value returns the ratio as a float (width / height)
func (a AspectRatio) Value() float64 {
	return float64(a.W) / float64(a.H)
}

// String formats the ratio as "W:H"
func (a AspectRatio) String() string {
	return fmt.Sprintf("%d:%d", a.W, a.H)
}

// ParseAspectRatio parses a "W:H" string such as "16:9"
func ParseAspectRatio(s string) (AspectRatio, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return AspectRatio{}, fmt.Errorf("invalid aspect ratio %q: expected W:H", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return AspectRatio{}, fmt.Errorf("invalid aspect ratio width %q", parts[0])
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return AspectRatio{}, fmt.Errorf("invalid aspect ratio height %q", parts[1])
	}
	if w <= 0 || h <= 0 {
		return AspectRatio{}, fmt.Errorf("aspect ratio %q must be positive", s)
	}
	return AspectRatio{W: w, H: h}, nil
}

// TrimState is the cached crop geometry for one floor. Box is nil until the
// first successful bounding-box scan; margins, rotation and the aspect lock
// survive a reset.
type TrimState struct {
	Box          *BoundingBox `json:"box,omitempty"`
	Margin       int          `json:"margin"`
	Edges        *EdgeMargins `json:"edges,omitempty"`
	Offsets      Margins      `json:"offsets"`
	Rotation     int          `json:"rotation"` // degrees CCW: 0, 90, 180, 270
	AspectRatio  *AspectRatio `json:"aspectRatio,omitempty"`
	PendingReset bool         `json:"pendingReset,omitempty"`

	// Generation is bumped on every Reset. A scan result computed against an
	// older generation is rejected by the store, so a reset issued while a
	// scan is in flight cannot be silently overwritten.
	Generation uint64 `json:"generation"`

	UpdatedAt int64 `json:"updatedAt,omitempty"`
}

// EffectiveMargins returns the per-edge margins after applying overrides
func (t *TrimState) EffectiveMargins() Margins {
	return t.Edges.Resolve(t.Margin)
}

// ValidRotation reports whether deg is one of the four supported rotations
func ValidRotation(deg int) bool {
	switch deg {
	case 0, 90, 180, 270:
		return true
	}
	return false
}

// WorldPoint is a coordinate in the robot's real-world frame (millimeters)
type WorldPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PixelPoint is a coordinate on a (possibly transformed) image
type PixelPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// CalibrationPoint pairs an output-image pixel with its world coordinate.
// The map card uses these to place click targets and overlays.
type CalibrationPoint struct {
	Vacuum PixelPoint `json:"vacuum"`
	Map    WorldPoint `json:"map"`
}

// VacuumState is the reported activity state of the physical vacuum
type VacuumState string

const (
	StateDocked    VacuumState = "docked"
	StateCleaning  VacuumState = "cleaning"
	StateIdle      VacuumState = "idle"
	StateReturning VacuumState = "returning"
	StatePaused    VacuumState = "paused"
	StateError     VacuumState = "error"
)

// SegmentRegion is the rough pixel region of the segment currently being
// cleaned, as reported by the map decoder.
type SegmentRegion struct {
	ID     string      `json:"id"`
	Name   string      `json:"name,omitempty"`
	Bounds BoundingBox `json:"bounds"`
}
