package camera

import (
	"errors"
	"image/color"
)

// ErrEmptyMap is returned when a raster contains no non-background pixel.
// Callers keep the previous trim state and skip the frame.
var ErrEmptyMap = errors.New("map raster is entirely background")

// Scan finds the minimal bounding box enclosing all non-background pixels.
//
// This is the expensive path the trim cache exists to avoid: it runs once per
// floor when no cached box exists (first frame, or after a reset once the
// vacuum has docked) and the result is persisted. It is never run per frame.
func Scan(r *Raster, cl Classifier) (BoundingBox, error) {
	width, height := r.Width(), r.Height()
	img := r.Img

	box := BoundingBox{Left: width, Top: height, Right: -1, Bottom: -1}

	// Row-major scan; NRGBA pixels are 4 bytes each so content pixels are
	// compared directly against the background bytes on the fast path.
	bg := cl.Background
	exact := cl.Tolerance == 0
	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			px := row[x*4 : x*4+4]
			if exact {
				if px[0] == bg.R && px[1] == bg.G && px[2] == bg.B && px[3] == bg.A {
					continue
				}
			} else if cl.IsBackground(color.NRGBA{R: px[0], G: px[1], B: px[2], A: px[3]}) {
				continue
			}
			if x < box.Left {
				box.Left = x
			}
			if x > box.Right {
				box.Right = x
			}
			if y < box.Top {
				box.Top = y
			}
			box.Bottom = y
		}
	}

	if box.Right < 0 {
		return BoundingBox{}, ErrEmptyMap
	}
	return box, nil
}

// ScanWithOffsets runs Scan and applies the signed per-edge offsets from the
// trim state before the box is cached, clipped to the raster extents.
func ScanWithOffsets(r *Raster, cl Classifier, offsets Margins) (BoundingBox, error) {
	box, err := Scan(r, cl)
	if err != nil {
		return BoundingBox{}, err
	}
	box.Left += offsets.Left
	box.Top += offsets.Top
	box.Right -= offsets.Right
	box.Bottom -= offsets.Bottom
	box = box.Clip(r.Width(), r.Height())
	if !box.Valid() {
		return BoundingBox{}, ErrEmptyMap
	}
	return box, nil
}
