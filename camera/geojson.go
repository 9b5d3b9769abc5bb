package camera

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"
)

// MapCardExport builds a GeoJSON FeatureCollection for the map card overlay:
// the crop area, the traced floor outline, the active segment region while
// zoomed, and the robot/charger/calibration points. All coordinates are in
// the robot's world frame (millimeters), so the card can overlay them on any
// rendering of the same map.
func MapCardExport(frame *Frame, out *Output, zoom ZoomState) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	// Crop area: the four output corners already carry world coordinates in
	// the calibration set.
	if len(out.Calibration) == 4 {
		ring := make(orb.Ring, 0, 5)
		for _, cp := range out.Calibration {
			ring = append(ring, orb.Point{cp.Map.X, cp.Map.Y})
		}
		ring = append(ring, ring[0])
		crop := geojson.NewFeature(orb.Polygon{ring})
		crop.Properties["type"] = "cropArea"
		crop.Properties["zoomed"] = out.Zoomed
		fc.Append(crop)
	}

	for i, cp := range out.Calibration {
		f := geojson.NewFeature(orb.Point{cp.Map.X, cp.Map.Y})
		f.Properties["type"] = "calibration"
		f.Properties["index"] = i
		f.Properties["pixelX"] = cp.Vacuum.X
		f.Properties["pixelY"] = cp.Vacuum.Y
		fc.Append(f)
	}

	robot := geojson.NewFeature(orb.Point{frame.Robot.X, frame.Robot.Y})
	robot.Properties["type"] = "robot"
	robot.Properties["angle"] = out.RobotAngle
	fc.Append(robot)

	charger := geojson.NewFeature(orb.Point{frame.Charger.X, frame.Charger.Y})
	charger.Properties["type"] = "charger"
	fc.Append(charger)

	if zoom.Mode == ZoomSegment {
		f := geojson.NewFeature(boxToWorldPolygon(zoom.Region, frame.Raster.PixelSize))
		f.Properties["type"] = "segment"
		f.Properties["segmentId"] = zoom.SegmentID
		fc.Append(f)
	}

	if outline := TraceOutline(frame.Raster, NewClassifier(frame.Raster.Background, 0)); len(outline) >= 4 {
		f := geojson.NewFeature(orb.Polygon{outline})
		f.Properties["type"] = "outline"
		fc.Append(f)
	}

	return fc
}

// TraceOutline traces a coarse outline of the map content as a closed ring
// in world coordinates: the leftmost and rightmost content pixel per row,
// simplified with Douglas-Peucker. Good enough for card overlays; exact
// wall vectorization is the external renderer's business.
func TraceOutline(r *Raster, cl Classifier) orb.Ring {
	box, err := Scan(r, cl)
	if err != nil {
		return nil
	}

	scale := float64(r.PixelSize)
	img := r.Img

	var left, right []orb.Point
	for y := box.Top; y <= box.Bottom; y++ {
		minX, maxX := -1, -1
		for x := box.Left; x <= box.Right; x++ {
			if cl.IsBackground(img.NRGBAAt(x, y)) {
				continue
			}
			if minX == -1 {
				minX = x
			}
			maxX = x
		}
		if minX == -1 {
			continue
		}
		left = append(left, orb.Point{float64(minX) * scale, float64(y) * scale})
		right = append(right, orb.Point{float64(maxX) * scale, float64(y) * scale})
	}
	if len(left) < 2 {
		return nil
	}

	// Down the left edge, back up the right edge, then close.
	ring := make(orb.Ring, 0, len(left)+len(right)+1)
	ring = append(ring, left...)
	for i := len(right) - 1; i >= 0; i-- {
		ring = append(ring, right[i])
	}
	ring = append(ring, ring[0])

	// Tolerance of two map pixels keeps corners while collapsing the
	// per-row staircase.
	simplified := simplify.DouglasPeucker(2 * scale).Simplify(ring)
	if rg, ok := simplified.(orb.Ring); ok {
		return rg
	}
	return ring
}

// boxToWorldPolygon converts an inclusive pixel box to a world-coordinate
// polygon
func boxToWorldPolygon(b BoundingBox, pixelSize int) orb.Polygon {
	s := float64(pixelSize)
	x0, y0 := float64(b.Left)*s, float64(b.Top)*s
	x1, y1 := float64(b.Right+1)*s, float64(b.Bottom+1)*s
	return orb.Polygon{orb.Ring{
		{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0},
	}}
}
