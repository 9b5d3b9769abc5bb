package camera

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Output is one processed camera frame: the cropped/rotated/padded image plus
// the recomputed coordinate mapping. Robot and charger world coordinates are
// invariant under the pipeline; only their pixel projection changes.
type Output struct {
	Image *image.NRGBA

	// CropArea is the region of the rotated raster that was kept,
	// in rotated-raster pixel coordinates.
	CropArea BoundingBox

	Calibration   []CalibrationPoint
	OutputToWorld AffineMatrix
	WorldToOutput AffineMatrix

	// RawToOutput maps raw raster pixels to output pixels (the composed
	// rotate/crop/pad transform).
	RawToOutput AffineMatrix

	Robot      PixelPoint
	RobotAngle float64
	Charger    PixelPoint

	Zoomed    bool
	SegmentID string
}

// ApplyTransform runs the transform pipeline on a decoded frame:
// rotate, expand the cached bounding box by the margins, crop, pad to the
// aspect-ratio lock, and recompute the calibration mapping by composing the
// inverse of those steps with the raster's pixel-to-world transform.
//
// When zoom is in segment mode the segment region replaces the whole-floor
// bounding box; margins and the aspect rule apply unchanged.
//
// Crop requests beyond the raster extents are clipped, never rejected.
func ApplyTransform(frame *Frame, ts *TrimState, zoom ZoomState) (*Output, error) {
	r := frame.Raster
	if r == nil || r.Img == nil {
		return nil, fmt.Errorf("frame has no raster")
	}
	if !ValidRotation(ts.Rotation) {
		return nil, fmt.Errorf("unsupported rotation %d", ts.Rotation)
	}

	base, zoomed, segID := baseBox(ts, zoom)
	if base == nil {
		return nil, fmt.Errorf("no bounding box available for transform")
	}

	width, height := r.Width(), r.Height()

	// Step 1: rotate the raster and the box consistently.
	rotated := rotateImage(r.Img, ts.Rotation)
	rotBox := RotateBox(*base, ts.Rotation, width, height)
	rotW, rotH := rotated.Rect.Dx(), rotated.Rect.Dy()

	// Step 2: expand by the margins, clipped to the rotated extents.
	crop := rotBox.Expand(ts.EffectiveMargins()).Clip(rotW, rotH)
	if !crop.Valid() {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) is empty",
			crop.Left, crop.Top, crop.Right, crop.Bottom)
	}

	// Step 3: crop.
	cropped := imaging.Crop(rotated, crop.Rect())

	// Step 4: pad (never stretch) to the aspect-ratio lock.
	final, padX, padY := padToAspect(cropped, ts.AspectRatio, r)

	// Step 5: recompute the calibration mapping from the same parameters.
	rotM := RotationMatrix(ts.Rotation, width, height)
	forward := MultiplyMatrices(
		Translation(float64(padX), float64(padY)),
		MultiplyMatrices(Translation(float64(-crop.Left), float64(-crop.Top)), rotM),
	)
	outputToWorld := MultiplyMatrices(r.PixelToWorld(), InvertMatrix(forward))
	worldToOutput := InvertMatrix(outputToWorld)

	out := &Output{
		Image:         final,
		CropArea:      crop,
		OutputToWorld: outputToWorld,
		WorldToOutput: worldToOutput,
		RawToOutput:   forward,
		Robot:         worldToOutput.ApplyWorld(frame.Robot).pixel(),
		RobotAngle:    TransformAngle(frame.RobotAngle, forward),
		Charger:       worldToOutput.ApplyWorld(frame.Charger).pixel(),
		Zoomed:        zoomed,
		SegmentID:     segID,
	}
	out.Calibration = calibrationPoints(final.Rect.Dx(), final.Rect.Dy(), outputToWorld)
	return out, nil
}

// baseBox picks the region to crop to: the active segment while zoomed,
// otherwise the floor's cached bounding box.
func baseBox(ts *TrimState, zoom ZoomState) (*BoundingBox, bool, string) {
	if zoom.Mode == ZoomSegment {
		region := zoom.Region
		return &region, true, zoom.SegmentID
	}
	return ts.Box, false, ""
}

func rotateImage(img *image.NRGBA, deg int) *image.NRGBA {
	switch deg {
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	default:
		return imaging.Clone(img)
	}
}

// padToAspect pads the image symmetrically with the background color until
// it satisfies the width:height lock. The shorter dimension grows; pixels
// are never stretched. Returns the padded image and the left/top offsets of
// the original image inside it.
func padToAspect(img *image.NRGBA, lock *AspectRatio, r *Raster) (*image.NRGBA, int, int) {
	if lock == nil {
		return img, 0, 0
	}

	w, h := img.Rect.Dx(), img.Rect.Dy()
	target := lock.Value()
	current := float64(w) / float64(h)

	newW, newH := w, h
	switch {
	case current < target:
		// Too narrow: pad width.
		newW = int(math.Ceil(float64(h) * target))
	case current > target:
		// Too wide: pad height.
		newH = int(math.Ceil(float64(w) / target))
	default:
		return img, 0, 0
	}

	padX := (newW - w) / 2
	padY := (newH - h) / 2
	canvas := imaging.New(newW, newH, r.Background)
	return imaging.Paste(canvas, img, image.Pt(padX, padY)), padX, padY
}

// calibrationPoints maps the four corners of the output image back to world
// coordinates. Corner order is top-left, top-right, bottom-right,
// bottom-left of the displayed image; under rotation the world coordinates
// reorder with it, which keeps the map card's click mapping consistent.
func calibrationPoints(w, h int, outputToWorld AffineMatrix) []CalibrationPoint {
	corners := []PixelPoint{
		{X: 0, Y: 0},
		{X: w - 1, Y: 0},
		{X: w - 1, Y: h - 1},
		{X: 0, Y: h - 1},
	}
	points := make([]CalibrationPoint, len(corners))
	for i, c := range corners {
		wx, wy := outputToWorld.Apply(float64(c.X), float64(c.Y))
		points[i] = CalibrationPoint{
			Vacuum: c,
			Map:    WorldPoint{X: wx, Y: wy},
		}
	}
	return points
}

func (p WorldPoint) pixel() PixelPoint {
	return PixelPoint{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
}
