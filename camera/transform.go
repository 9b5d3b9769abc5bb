package camera

import "math"

// AffineMatrix for 2D transforms: x' = ax + by + tx, y' = cx + dy + ty
type AffineMatrix struct {
	A  float64 `json:"a"`
	B  float64 `json:"b"`
	Tx float64 `json:"tx"`
	C  float64 `json:"c"`
	D  float64 `json:"d"`
	Ty float64 `json:"ty"`
}

// Identity returns an identity matrix (no transformation)
func Identity() AffineMatrix {
	return AffineMatrix{A: 1, B: 0, Tx: 0, C: 0, D: 1, Ty: 0}
}

// Translation creates a translation-only transform
func Translation(tx, ty float64) AffineMatrix {
	return AffineMatrix{A: 1, B: 0, Tx: tx, C: 0, D: 1, Ty: ty}
}

// Scale creates a scaling transform
func Scale(sx, sy float64) AffineMatrix {
	return AffineMatrix{A: sx, B: 0, Tx: 0, C: 0, D: sy, Ty: 0}
}

// Apply transforms a world/pixel coordinate pair through the matrix
func (m AffineMatrix) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.B*y + m.Tx, m.C*x + m.D*y + m.Ty
}

// ApplyWorld transforms a WorldPoint through the matrix
func (m AffineMatrix) ApplyWorld(p WorldPoint) WorldPoint {
	x, y := m.Apply(p.X, p.Y)
	return WorldPoint{X: x, Y: y}
}

// ApplyPixel transforms a pixel coordinate through the matrix, rounding to
// the nearest integer pixel
func (m AffineMatrix) ApplyPixel(p PixelPoint) PixelPoint {
	x, y := m.Apply(float64(p.X), float64(p.Y))
	return PixelPoint{X: int(math.Round(x)), Y: int(math.Round(y))}
}

// MultiplyMatrices composes two affine transforms: result = m1 * m2
// Applying result is equivalent to applying m2 first, then m1
func MultiplyMatrices(m1, m2 AffineMatrix) AffineMatrix {
	return AffineMatrix{
		A:  m1.A*m2.A + m1.B*m2.C,
		B:  m1.A*m2.B + m1.B*m2.D,
		Tx: m1.A*m2.Tx + m1.B*m2.Ty + m1.Tx,
		C:  m1.C*m2.A + m1.D*m2.C,
		D:  m1.C*m2.B + m1.D*m2.D,
		Ty: m1.C*m2.Tx + m1.D*m2.Ty + m1.Ty,
	}
}

// InvertMatrix computes the inverse of an affine transform
// Returns identity if matrix is singular (determinant ~= 0)
func InvertMatrix(m AffineMatrix) AffineMatrix {
	det := m.A*m.D - m.B*m.C
	if math.Abs(det) < 1e-10 {
		return Identity()
	}

	invDet := 1.0 / det
	return AffineMatrix{
		A:  m.D * invDet,
		B:  -m.B * invDet,
		Tx: (m.B*m.Ty - m.D*m.Tx) * invDet,
		C:  -m.C * invDet,
		D:  m.A * invDet,
		Ty: (m.C*m.Tx - m.A*m.Ty) * invDet,
	}
}

// NormalizeAngle normalizes an angle in degrees to the range [0, 360).
func NormalizeAngle(degrees float64) float64 {
	degrees = math.Mod(degrees, 360)
	if degrees < 0 {
		degrees += 360
	}
	return degrees
}

// TransformAngle applies the rotation component of an affine transform to a
// local angle (in degrees). The rotation is extracted via atan2(C, A).
func TransformAngle(localAngle float64, transform AffineMatrix) float64 {
	transformRotation := math.Atan2(transform.C, transform.A) * 180 / math.Pi
	return NormalizeAngle(localAngle + transformRotation)
}

// RotationMatrix returns the pixel-coordinate transform for rotating a
// width x height image by deg degrees counter-clockwise. Image coordinates
// have y pointing down, so the matrices below are the grid rotations used by
// the raster rotation, not mathematical rotations around the origin:
//
//	 90: (x, y) -> (y, W-1-x), output is H x W
//	180: (x, y) -> (W-1-x, H-1-y)
//	270: (x, y) -> (H-1-y, x), output is H x W
func RotationMatrix(deg, width, height int) AffineMatrix {
	switch NormalizeAngle(float64(deg)) {
	case 90:
		return AffineMatrix{A: 0, B: 1, Tx: 0, C: -1, D: 0, Ty: float64(width - 1)}
	case 180:
		return AffineMatrix{A: -1, B: 0, Tx: float64(width - 1), C: 0, D: -1, Ty: float64(height - 1)}
	case 270:
		return AffineMatrix{A: 0, B: -1, Tx: float64(height - 1), C: 1, D: 0, Ty: 0}
	default:
		return Identity()
	}
}

// RotateBox maps an inclusive bounding box through the rotation of a
// width x height raster by deg degrees counter-clockwise.
func RotateBox(b BoundingBox, deg, width, height int) BoundingBox {
	m := RotationMatrix(deg, width, height)
	p1 := m.ApplyPixel(PixelPoint{X: b.Left, Y: b.Top})
	p2 := m.ApplyPixel(PixelPoint{X: b.Right, Y: b.Bottom})
	return BoundingBox{
		Left:   minInt(p1.X, p2.X),
		Top:    minInt(p1.Y, p2.Y),
		Right:  maxInt(p1.X, p2.X),
		Bottom: maxInt(p1.Y, p2.Y),
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
