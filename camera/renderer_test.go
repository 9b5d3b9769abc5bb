package camera

import (
	"testing"
)

func renderedOutput(t *testing.T) *Output {
	t.Helper()
	content := BoundingBox{Left: 10, Top: 10, Right: 39, Bottom: 29}
	frame := newTestFrame("default", 60, 40, content)
	ts := &TrimState{Box: &content, Margin: 5}
	out, err := ApplyTransform(frame, ts, ZoomState{})
	if err != nil {
		t.Fatalf("ApplyTransform() error = %v", err)
	}
	return out
}

func TestRenderDoesNotModifyOutput(t *testing.T) {
	out := renderedOutput(t)
	before := out.Image.NRGBAAt(out.Robot.X, out.Robot.Y)

	fr := NewFrameRenderer()
	img := fr.Render(out, "Ground Floor")

	if img.Rect != out.Image.Rect {
		t.Errorf("rendered size %v, want %v", img.Rect, out.Image.Rect)
	}
	if got := out.Image.NRGBAAt(out.Robot.X, out.Robot.Y); got != before {
		t.Error("Render() modified the source image")
	}
}

func TestRenderDrawsRobotMarker(t *testing.T) {
	out := renderedOutput(t)
	fr := NewFrameRenderer()
	fr.DrawLabel = false

	img := fr.Render(out, "Ground Floor")
	if got := img.NRGBAAt(out.Robot.X, out.Robot.Y); got != fr.Colors.Robot {
		t.Errorf("robot marker pixel = %+v, want %+v", got, fr.Colors.Robot)
	}
	if got := img.NRGBAAt(out.Charger.X, out.Charger.Y); got != fr.Colors.Charger {
		t.Errorf("charger marker pixel = %+v, want %+v", got, fr.Colors.Charger)
	}
}

func TestRenderWithoutMarkers(t *testing.T) {
	out := renderedOutput(t)
	fr := NewFrameRenderer()
	fr.DrawMarkers = false
	fr.DrawLabel = false

	img := fr.Render(out, "Ground Floor")
	for y := 0; y < img.Rect.Dy(); y++ {
		for x := 0; x < img.Rect.Dx(); x++ {
			if got := img.NRGBAAt(x, y); got != out.Image.NRGBAAt(x, y) {
				t.Fatalf("pixel (%d,%d) changed with all decorations disabled", x, y)
			}
		}
	}
}
