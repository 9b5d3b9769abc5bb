package camera

import (
	"image/color"
	"testing"
)

func TestParseFrameRoundTrip(t *testing.T) {
	original := newTestFrame("ground", 8, 6, BoundingBox{Left: 2, Top: 2, Right: 5, Bottom: 4})
	original.State = StateCleaning
	original.RobotAngle = 135
	original.Segment = &SegmentRegion{
		ID:     "7",
		Name:   "Kitchen",
		Bounds: BoundingBox{Left: 2, Top: 2, Right: 5, Bottom: 4},
	}

	data, err := EncodeFrame(original)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}

	frame, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}

	if frame.FloorID != "ground" {
		t.Errorf("FloorID = %q, want %q", frame.FloorID, "ground")
	}
	if frame.Raster.Width() != 8 || frame.Raster.Height() != 6 {
		t.Errorf("raster = %dx%d, want 8x6", frame.Raster.Width(), frame.Raster.Height())
	}
	if frame.Raster.Background != testBG {
		t.Errorf("background = %+v, want %+v", frame.Raster.Background, testBG)
	}
	if frame.Raster.PixelSize != 50 {
		t.Errorf("pixelSize = %d, want 50", frame.Raster.PixelSize)
	}
	if frame.State != StateCleaning {
		t.Errorf("state = %q, want cleaning", frame.State)
	}
	if frame.RobotAngle != 135 {
		t.Errorf("robotAngle = %v, want 135", frame.RobotAngle)
	}
	if frame.Segment == nil || frame.Segment.ID != "7" {
		t.Errorf("segment = %+v", frame.Segment)
	}
	if got := frame.Raster.Img.NRGBAAt(3, 3); got != testContent {
		t.Errorf("content pixel = %+v, want %+v", got, testContent)
	}
	if got := frame.Raster.Img.NRGBAAt(0, 0); got != testBG {
		t.Errorf("background pixel = %+v, want %+v", got, testBG)
	}
}

func TestParseFrameErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not JSON", data: `{nope`},
		{name: "zero dimensions", data: `{"width":0,"height":10,"background":"#7B7B7B","pixels":""}`},
		{name: "bad background", data: `{"width":2,"height":2,"background":"grey","pixels":""}`},
		{name: "bad base64", data: `{"width":2,"height":2,"background":"#7B7B7B","pixels":"!!!"}`},
		{name: "pixel length mismatch", data: `{"width":2,"height":2,"background":"#7B7B7B","pixels":"AAAA"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFrame([]byte(tt.data)); err == nil {
				t.Error("ParseFrame() expected error")
			}
		})
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		input   string
		want    color.NRGBA
		wantErr bool
	}{
		{input: "#7B7B7B", want: color.NRGBA{R: 0x7B, G: 0x7B, B: 0x7B, A: 0xFF}},
		{input: "#FF8C00", want: color.NRGBA{R: 0xFF, G: 0x8C, B: 0x00, A: 0xFF}},
		{input: "#11223344", want: color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x44}},
		{input: "7B7B7B", wantErr: true},
		{input: "#7B7B", wantErr: true},
		{input: "", wantErr: true},
		{input: "#GGGGGG", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseHexColor(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseHexColor(%q) expected error, got %+v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHexColor(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseHexColor(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatHexColor(t *testing.T) {
	if got := FormatHexColor(color.NRGBA{R: 0x7B, G: 0x7B, B: 0x7B, A: 0xFF}); got != "#7B7B7B" {
		t.Errorf("FormatHexColor() = %q, want %q", got, "#7B7B7B")
	}
	if got := FormatHexColor(color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x44}); got != "#11223344" {
		t.Errorf("FormatHexColor() = %q, want %q", got, "#11223344")
	}
}
