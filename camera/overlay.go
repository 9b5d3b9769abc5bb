package camera

import (
	"image/color"
	"image/png"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// OverlayRenderer draws a vector overlay of the transform geometry: the crop
// area, calibration corners, robot/charger markers and the zoomed segment.
// The overlay uses output-image pixel coordinates, so the card can stack it
// directly on the camera PNG.
type OverlayRenderer struct {
	CropColor    color.NRGBA
	MarkerColor  color.NRGBA
	SegmentColor color.NRGBA
	StrokeWidth  float64
	Resolution   canvas.Resolution // for PNG output
}

// NewOverlayRenderer creates an overlay renderer with default styling
func NewOverlayRenderer() *OverlayRenderer {
	return &OverlayRenderer{
		CropColor:    color.NRGBA{255, 140, 0, 255},  // Dark orange
		MarkerColor:  color.NRGBA{30, 144, 255, 255}, // Dodger blue
		SegmentColor: color.NRGBA{50, 205, 50, 160},  // Lime green, translucent
		StrokeWidth:  3.0,
		// One canvas unit per image pixel, so the rasterized overlay
		// matches the camera PNG dimensions exactly.
		Resolution: canvas.DPMM(1.0),
	}
}

// canvasRenderer is the interface both the svg and rasterizer backends implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderSVG writes the overlay as an SVG document
func (o *OverlayRenderer) RenderSVG(w io.Writer, out *Output, zoom ZoomState) error {
	width := float64(out.Image.Rect.Dx())
	height := float64(out.Image.Rect.Dy())

	svgRenderer := svg.New(w, width, height, nil)
	o.render(svgRenderer, out, zoom, width, height)
	return svgRenderer.Close()
}

// RenderPNG rasterizes the overlay to a PNG
func (o *OverlayRenderer) RenderPNG(w io.Writer, out *Output, zoom ZoomState) error {
	width := float64(out.Image.Rect.Dx())
	height := float64(out.Image.Rect.Dy())

	rast := rasterizer.New(width, height, o.Resolution, canvas.DefaultColorSpace)
	o.render(rast, out, zoom, width, height)
	return png.Encode(w, rast)
}

func (o *OverlayRenderer) render(r canvasRenderer, out *Output, zoom ZoomState, width, height float64) {
	// Canvas y points up; image y points down.
	flip := func(p PixelPoint) (float64, float64) {
		return float64(p.X), height - float64(p.Y)
	}

	// Crop area border (the whole output image edge, inset by the stroke).
	border := canvas.Rectangle(width-o.StrokeWidth, height-o.StrokeWidth).
		Translate(o.StrokeWidth/2, o.StrokeWidth/2)
	borderStyle := canvas.DefaultStyle
	borderStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	borderStyle.Stroke = canvas.Paint{Color: premultiply(o.CropColor)}
	borderStyle.StrokeWidth = o.StrokeWidth
	r.RenderPath(border, borderStyle, canvas.Identity)

	// Zoomed segment region, projected onto the output image.
	if zoom.Mode == ZoomSegment && out.Zoomed {
		segStyle := canvas.DefaultStyle
		segStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		segStyle.Stroke = canvas.Paint{Color: premultiply(o.SegmentColor)}
		segStyle.StrokeWidth = o.StrokeWidth
		segStyle.Dashes = []float64{8.0, 8.0}

		// The segment box is in raw raster pixels; project it onto the
		// output image.
		seg := zoom.Region
		corners := []PixelPoint{
			{X: seg.Left, Y: seg.Top},
			{X: seg.Right, Y: seg.Top},
			{X: seg.Right, Y: seg.Bottom},
			{X: seg.Left, Y: seg.Bottom},
		}
		path := &canvas.Path{}
		for i, c := range corners {
			x, y := flip(out.RawToOutput.ApplyPixel(c))
			if i == 0 {
				path.MoveTo(x, y)
			} else {
				path.LineTo(x, y)
			}
		}
		path.Close()
		r.RenderPath(path, segStyle, canvas.Identity)
	}

	// Calibration corners.
	calStyle := canvas.DefaultStyle
	calStyle.Fill = canvas.Paint{Color: premultiply(o.CropColor)}
	for _, cp := range out.Calibration {
		x, y := flip(cp.Vacuum)
		r.RenderPath(canvas.Circle(o.StrokeWidth*1.5).Translate(x, y), calStyle, canvas.Identity)
	}

	// Robot and charger markers.
	markerStyle := canvas.DefaultStyle
	markerStyle.Fill = canvas.Paint{Color: premultiply(o.MarkerColor)}
	rx, ry := flip(out.Robot)
	r.RenderPath(canvas.Circle(o.StrokeWidth*2.5).Translate(rx, ry), markerStyle, canvas.Identity)

	cx, cy := flip(out.Charger)
	r.RenderPath(canvas.Rectangle(o.StrokeWidth*4, o.StrokeWidth*4).
		Translate(cx-o.StrokeWidth*2, cy-o.StrokeWidth*2), markerStyle, canvas.Identity)
}

// premultiply converts color.NRGBA to the premultiplied color.RGBA the
// canvas library expects
func premultiply(c color.NRGBA) color.RGBA {
	if c.A == 0 {
		return color.RGBA{}
	}
	if c.A == 255 {
		return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
	}
	a := uint32(c.A)
	return color.RGBA{
		R: uint8(uint32(c.R) * a / 255),
		G: uint8(uint32(c.G) * a / 255),
		B: uint8(uint32(c.B) * a / 255),
		A: c.A,
	}
}
