package camera

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
)

// Frame is one decoded map update as delivered by the external map decoder:
// the raster buffer, the robot's world pose, the charger location, the
// reported vacuum state and, while cleaning, the active segment.
type Frame struct {
	FloorID    string
	Raster     *Raster
	Robot      WorldPoint
	RobotAngle float64
	Charger    WorldPoint
	State      VacuumState
	Segment    *SegmentRegion
}

// frameEnvelope is the wire format used on the decoded-frame MQTT topic and
// by the -process test mode. Pixels are base64 raw NRGBA, row-major.
type frameEnvelope struct {
	FloorID    string         `json:"floorId"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	PixelSize  int            `json:"pixelSize"`
	Background string         `json:"background"`
	Pixels     string         `json:"pixels"`
	Robot      WorldPoint     `json:"robot"`
	RobotAngle float64        `json:"robotAngle"`
	Charger    WorldPoint     `json:"charger"`
	State      string         `json:"state"`
	Segment    *SegmentRegion `json:"segment,omitempty"`
}

// ParseFrame decodes a frame envelope. Decoding the vacuum's native binary
// map payload is the decoder collaborator's job; this only unpacks the
// already-decoded raster.
func ParseFrame(data []byte) (*Frame, error) {
	var env frameEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing frame JSON: %w", err)
	}

	if env.Width <= 0 || env.Height <= 0 {
		return nil, fmt.Errorf("invalid raster dimensions %dx%d", env.Width, env.Height)
	}
	if env.PixelSize <= 0 {
		env.PixelSize = 50 // Valetudo default: 5cm grid
	}

	bg, err := ParseHexColor(env.Background)
	if err != nil {
		return nil, fmt.Errorf("parsing background color: %w", err)
	}

	pix, err := base64.StdEncoding.DecodeString(env.Pixels)
	if err != nil {
		return nil, fmt.Errorf("decoding pixel data: %w", err)
	}
	if len(pix) != env.Width*env.Height*4 {
		return nil, fmt.Errorf("pixel data is %d bytes, want %d for %dx%d NRGBA",
			len(pix), env.Width*env.Height*4, env.Width, env.Height)
	}

	img := &image.NRGBA{
		Pix:    pix,
		Stride: env.Width * 4,
		Rect:   image.Rect(0, 0, env.Width, env.Height),
	}

	return &Frame{
		FloorID: env.FloorID,
		Raster: &Raster{
			Img:        img,
			Background: bg,
			PixelSize:  env.PixelSize,
		},
		Robot:      env.Robot,
		RobotAngle: env.RobotAngle,
		Charger:    env.Charger,
		State:      VacuumState(env.State),
		Segment:    env.Segment,
	}, nil
}

// EncodeFrame packs a frame back into the wire envelope. Used by tests and
// by tooling that feeds recorded frames through -process mode.
func EncodeFrame(f *Frame) ([]byte, error) {
	r := f.Raster
	env := frameEnvelope{
		FloorID:    f.FloorID,
		Width:      r.Width(),
		Height:     r.Height(),
		PixelSize:  r.PixelSize,
		Background: FormatHexColor(r.Background),
		Pixels:     base64.StdEncoding.EncodeToString(r.Img.Pix),
		Robot:      f.Robot,
		RobotAngle: f.RobotAngle,
		Charger:    f.Charger,
		State:      string(f.State),
		Segment:    f.Segment,
	}
	return json.Marshal(env)
}

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA" into an NRGBA color.
// Alpha defaults to 255 when omitted.
func ParseHexColor(s string) (color.NRGBA, error) {
	if len(s) == 0 || s[0] != '#' {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	hex := s[1:]
	var r, g, b, a uint8 = 0, 0, 0, 255
	switch len(hex) {
	case 8:
		if _, err := fmt.Sscanf(hex, "%02x%02x%02x%02x", &r, &g, &b, &a); err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
		}
	case 6:
		if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
		}
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}

// FormatHexColor formats an NRGBA color as "#RRGGBB" or "#RRGGBBAA"
func FormatHexColor(c color.NRGBA) string {
	if c.A != 255 {
		return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
	}
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
