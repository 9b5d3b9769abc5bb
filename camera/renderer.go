package camera

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/disintegration/imaging"
)

// MarkerColors defines the colors used for the overlaid markers
type MarkerColors struct {
	Robot   color.NRGBA
	Charger color.NRGBA
	Label   color.NRGBA
}

// DefaultMarkerColors returns the standard marker palette
func DefaultMarkerColors() MarkerColors {
	return MarkerColors{
		Robot:   color.NRGBA{30, 144, 255, 255}, // Dodger blue
		Charger: color.NRGBA{34, 139, 34, 255},  // Forest green
		Label:   color.NRGBA{40, 40, 40, 255},
	}
}

// FrameRenderer draws robot/charger markers and a status label onto a
// pipeline output image. The map pixels themselves come pre-rendered from
// the external renderer; this only decorates them.
type FrameRenderer struct {
	Colors      MarkerColors
	MarkerSize  int  // robot marker radius in pixels
	DrawLabel   bool // floor name + dimensions in the corner
	DrawMarkers bool
}

// NewFrameRenderer creates a renderer with default settings
func NewFrameRenderer() *FrameRenderer {
	return &FrameRenderer{
		Colors:      DefaultMarkerColors(),
		MarkerSize:  8,
		DrawLabel:   true,
		DrawMarkers: true,
	}
}

// Render decorates a copy of the output image. The output's image is never
// modified in place; callers may keep serving it concurrently.
func (fr *FrameRenderer) Render(out *Output, floorName string) *image.NRGBA {
	img := imaging.Clone(out.Image)

	if fr.DrawMarkers {
		fr.drawRobot(img, out.Robot, out.RobotAngle)
		fr.drawCharger(img, out.Charger)
	}
	if fr.DrawLabel {
		label := fmt.Sprintf("%s %dx%d", floorName, img.Rect.Dx(), img.Rect.Dy())
		if out.Zoomed {
			label += " [zoom " + out.SegmentID + "]"
		}
		fr.drawLabel(img, label)
	}
	return img
}

// drawRobot draws a filled circle with a heading line
func (fr *FrameRenderer) drawRobot(img *image.NRGBA, pos PixelPoint, angle float64) {
	r := fr.MarkerSize
	fillCircle(img, pos.X, pos.Y, r, fr.Colors.Robot)

	// Heading line from center to edge of a slightly larger circle.
	rad := angle * math.Pi / 180
	ex := pos.X + int(math.Round(float64(r+4)*math.Cos(rad)))
	ey := pos.Y + int(math.Round(float64(r+4)*math.Sin(rad)))
	drawLine(img, pos.X, pos.Y, ex, ey, fr.Colors.Robot)
}

// drawCharger draws a small filled square
func (fr *FrameRenderer) drawCharger(img *image.NRGBA, pos PixelPoint) {
	half := fr.MarkerSize / 2
	if half < 2 {
		half = 2
	}
	for y := pos.Y - half; y <= pos.Y+half; y++ {
		for x := pos.X - half; x <= pos.X+half; x++ {
			setPixel(img, x, y, fr.Colors.Charger)
		}
	}
}

// drawLabel draws text in the top-left corner using the basic 7x13 face
func (fr *FrameRenderer) drawLabel(img *image.NRGBA, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fr.Colors.Label),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(6, 16),
	}
	d.DrawString(text)
}

func setPixel(img *image.NRGBA, x, y int, c color.NRGBA) {
	if (image.Point{X: x, Y: y}).In(img.Rect) {
		img.SetNRGBA(x, y, c)
	}
}

func fillCircle(img *image.NRGBA, cx, cy, r int, c color.NRGBA) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				setPixel(img, x, y, c)
			}
		}
	}
}

// drawLine draws a 1px line using integer stepping
func drawLine(img *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	dx, dy := x1-x0, y1-y0
	steps := maxInt(absInt(dx), absInt(dy))
	if steps == 0 {
		setPixel(img, x0, y0, c)
		return
	}
	for i := 0; i <= steps; i++ {
		x := x0 + dx*i/steps
		y := y0 + dy*i/steps
		setPixel(img, x, y, c)
	}
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
