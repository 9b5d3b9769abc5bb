package camera

import (
	"testing"
)

// newTestFrame wraps a test raster in a frame with the robot at world
// (1000,1000), which is raw pixel (20,20) at the 50mm grid.
func newTestFrame(floorID string, w, h int, content ...BoundingBox) *Frame {
	return &Frame{
		FloorID:    floorID,
		Raster:     newTestRaster(w, h, content...),
		Robot:      WorldPoint{X: 1000, Y: 1000},
		RobotAngle: 0,
		Charger:    WorldPoint{X: 1250, Y: 1250},
		State:      StateDocked,
	}
}

func TestApplyTransformCrop(t *testing.T) {
	content := BoundingBox{Left: 10, Top: 10, Right: 39, Bottom: 29}
	frame := newTestFrame("default", 60, 40, content)
	ts := &TrimState{Box: &content, Margin: 5}

	out, err := ApplyTransform(frame, ts, ZoomState{})
	if err != nil {
		t.Fatalf("ApplyTransform() error = %v", err)
	}

	if got, want := out.CropArea, (BoundingBox{Left: 5, Top: 5, Right: 44, Bottom: 34}); got != want {
		t.Errorf("CropArea = %+v, want %+v", got, want)
	}
	if out.Image.Rect.Dx() != 40 || out.Image.Rect.Dy() != 30 {
		t.Errorf("output size = %dx%d, want 40x30", out.Image.Rect.Dx(), out.Image.Rect.Dy())
	}

	// Robot world (1000,1000) is raw pixel (20,20); after the crop it lands
	// at (15,15).
	if want := (PixelPoint{X: 15, Y: 15}); out.Robot != want {
		t.Errorf("Robot = %+v, want %+v", out.Robot, want)
	}
	if out.Zoomed {
		t.Error("Zoomed = true for whole-floor transform")
	}
}

func TestApplyTransformCalibration(t *testing.T) {
	content := BoundingBox{Left: 10, Top: 10, Right: 39, Bottom: 29}
	frame := newTestFrame("default", 60, 40, content)
	ts := &TrimState{Box: &content, Margin: 5}

	out, err := ApplyTransform(frame, ts, ZoomState{})
	if err != nil {
		t.Fatalf("ApplyTransform() error = %v", err)
	}
	if len(out.Calibration) != 4 {
		t.Fatalf("calibration points = %d, want 4", len(out.Calibration))
	}

	// Output corner (0,0) is raw pixel (5,5), i.e. world (250,250);
	// corner (39,29) is raw (44,34), world (2200,1700).
	wantCorners := []CalibrationPoint{
		{Vacuum: PixelPoint{X: 0, Y: 0}, Map: WorldPoint{X: 250, Y: 250}},
		{Vacuum: PixelPoint{X: 39, Y: 0}, Map: WorldPoint{X: 2200, Y: 250}},
		{Vacuum: PixelPoint{X: 39, Y: 29}, Map: WorldPoint{X: 2200, Y: 1700}},
		{Vacuum: PixelPoint{X: 0, Y: 29}, Map: WorldPoint{X: 250, Y: 1700}},
	}
	for i, want := range wantCorners {
		got := out.Calibration[i]
		if got.Vacuum != want.Vacuum {
			t.Errorf("calibration[%d].Vacuum = %+v, want %+v", i, got.Vacuum, want.Vacuum)
		}
		if !almostEqual(got.Map.X, want.Map.X) || !almostEqual(got.Map.Y, want.Map.Y) {
			t.Errorf("calibration[%d].Map = %+v, want %+v", i, got.Map, want.Map)
		}
	}
}

func TestApplyTransformRotation90(t *testing.T) {
	content := BoundingBox{Left: 10, Top: 10, Right: 39, Bottom: 29}
	frame := newTestFrame("default", 60, 40, content)
	ts := &TrimState{Box: &content, Margin: 5, Rotation: 90}

	out, err := ApplyTransform(frame, ts, ZoomState{})
	if err != nil {
		t.Fatalf("ApplyTransform() error = %v", err)
	}

	// The crop dimensions swap under a 90 degree rotation.
	if out.Image.Rect.Dx() != 30 || out.Image.Rect.Dy() != 40 {
		t.Errorf("output size = %dx%d, want 30x40", out.Image.Rect.Dx(), out.Image.Rect.Dy())
	}

	// Raw pixel (10,10) is world (500,500); rotated it lands at output (5,34).
	if got := out.WorldToOutput.ApplyWorld(WorldPoint{X: 500, Y: 500}).pixel(); got != (PixelPoint{X: 5, Y: 34}) {
		t.Errorf("WorldToOutput(500,500) = %+v, want (5,34)", got)
	}

	// Robot raw (20,20) -> rotated (20,39) -> output (15,24).
	if want := (PixelPoint{X: 15, Y: 24}); out.Robot != want {
		t.Errorf("Robot = %+v, want %+v", out.Robot, want)
	}

	// The heading follows the grid rotation.
	if !almostEqual(out.RobotAngle, 270) {
		t.Errorf("RobotAngle = %v, want 270", out.RobotAngle)
	}

	// Calibration law: mapping a point's world coordinate back through
	// WorldToOutput must return its output pixel.
	for i, cp := range out.Calibration {
		if got := out.WorldToOutput.ApplyWorld(cp.Map).pixel(); got != cp.Vacuum {
			t.Errorf("calibration[%d] round trip = %+v, want %+v", i, got, cp.Vacuum)
		}
	}
}

func TestApplyTransformRotationRoundTrip(t *testing.T) {
	// Under every rotation the robot's world position must survive the
	// output projection and back.
	content := BoundingBox{Left: 10, Top: 10, Right: 39, Bottom: 29}

	for _, deg := range []int{0, 90, 180, 270} {
		frame := newTestFrame("default", 60, 40, content)
		ts := &TrimState{Box: &content, Margin: 5, Rotation: deg}

		out, err := ApplyTransform(frame, ts, ZoomState{})
		if err != nil {
			t.Fatalf("rotation %d: ApplyTransform() error = %v", deg, err)
		}

		back := out.OutputToWorld.ApplyWorld(WorldPoint{X: float64(out.Robot.X), Y: float64(out.Robot.Y)})
		// Pixel rounding allows up to one grid cell of drift.
		if dx := back.X - frame.Robot.X; dx > 50 || dx < -50 {
			t.Errorf("rotation %d: robot world X round trip = %v, want %v", deg, back.X, frame.Robot.X)
		}
		if dy := back.Y - frame.Robot.Y; dy > 50 || dy < -50 {
			t.Errorf("rotation %d: robot world Y round trip = %v, want %v", deg, back.Y, frame.Robot.Y)
		}
	}
}

func TestApplyTransformAspectPad(t *testing.T) {
	// A 300x230 crop with a 2:1 lock pads symmetrically to 460x230: padding
	// only ever adds pixels, so the too-small dimension grows.
	content := BoundingBox{Left: 0, Top: 0, Right: 299, Bottom: 229}
	frame := newTestFrame("default", 300, 230, content)
	lock := AspectRatio{W: 2, H: 1}
	ts := &TrimState{Box: &content, Margin: 0, AspectRatio: &lock}

	out, err := ApplyTransform(frame, ts, ZoomState{})
	if err != nil {
		t.Fatalf("ApplyTransform() error = %v", err)
	}

	if out.Image.Rect.Dx() != 460 || out.Image.Rect.Dy() != 230 {
		t.Errorf("output size = %dx%d, want 460x230", out.Image.Rect.Dx(), out.Image.Rect.Dy())
	}

	// The pad region is background-colored.
	if got := out.Image.NRGBAAt(0, 0); got != testBG {
		t.Errorf("pad pixel = %+v, want background %+v", got, testBG)
	}
	// The original content sits 80 pixels in.
	if got := out.Image.NRGBAAt(80, 0); got != testContent {
		t.Errorf("content pixel = %+v, want %+v", got, testContent)
	}

	// Robot raw (20,20) shifts right by the 80 pixel pad.
	if want := (PixelPoint{X: 100, Y: 20}); out.Robot != want {
		t.Errorf("Robot = %+v, want %+v", out.Robot, want)
	}
}

func TestApplyTransformZoomSegment(t *testing.T) {
	content := BoundingBox{Left: 10, Top: 10, Right: 39, Bottom: 29}
	frame := newTestFrame("default", 60, 40, content)
	frame.State = StateCleaning
	ts := &TrimState{Box: &content, Margin: 2}

	zoom := ZoomState{
		Mode:      ZoomSegment,
		SegmentID: "kitchen",
		Region:    BoundingBox{Left: 12, Top: 12, Right: 20, Bottom: 20},
	}

	out, err := ApplyTransform(frame, ts, zoom)
	if err != nil {
		t.Fatalf("ApplyTransform() error = %v", err)
	}

	if got, want := out.CropArea, (BoundingBox{Left: 10, Top: 10, Right: 22, Bottom: 22}); got != want {
		t.Errorf("CropArea = %+v, want %+v", got, want)
	}
	if !out.Zoomed {
		t.Error("Zoomed = false, want true")
	}
	if out.SegmentID != "kitchen" {
		t.Errorf("SegmentID = %q, want %q", out.SegmentID, "kitchen")
	}
}

func TestApplyTransformClipAtEdges(t *testing.T) {
	// Margins beyond the raster clip to the full frame instead of failing.
	content := BoundingBox{Left: 2, Top: 2, Right: 10, Bottom: 10}
	frame := newTestFrame("default", 30, 20, content)
	ts := &TrimState{Box: &content, Margin: 500}

	out, err := ApplyTransform(frame, ts, ZoomState{})
	if err != nil {
		t.Fatalf("ApplyTransform() error = %v", err)
	}
	if out.Image.Rect.Dx() != 30 || out.Image.Rect.Dy() != 20 {
		t.Errorf("output size = %dx%d, want full raster 30x20", out.Image.Rect.Dx(), out.Image.Rect.Dy())
	}
}

func TestApplyTransformErrors(t *testing.T) {
	content := BoundingBox{Left: 10, Top: 10, Right: 39, Bottom: 29}

	t.Run("no bounding box", func(t *testing.T) {
		frame := newTestFrame("default", 60, 40, content)
		if _, err := ApplyTransform(frame, &TrimState{Margin: 5}, ZoomState{}); err == nil {
			t.Error("expected error for missing bounding box")
		}
	})

	t.Run("unsupported rotation", func(t *testing.T) {
		frame := newTestFrame("default", 60, 40, content)
		ts := &TrimState{Box: &content, Rotation: 45}
		if _, err := ApplyTransform(frame, ts, ZoomState{}); err == nil {
			t.Error("expected error for rotation 45")
		}
	})

	t.Run("missing raster", func(t *testing.T) {
		frame := &Frame{FloorID: "default"}
		ts := &TrimState{Box: &content}
		if _, err := ApplyTransform(frame, ts, ZoomState{}); err == nil {
			t.Error("expected error for missing raster")
		}
	})
}
