package camera

import "image/color"

// Classifier decides whether a pixel belongs to the empty background or to
// map content. Lidar noise and anti-aliased edges can leave pixels slightly
// off the reference background color, so an optional per-channel tolerance
// widens the match. Tolerance 0 is an exact match.
type Classifier struct {
	Background color.NRGBA
	Tolerance  uint8
}

// NewClassifier creates a classifier for the given background color
func NewClassifier(background color.NRGBA, tolerance uint8) Classifier {
	return Classifier{Background: background, Tolerance: tolerance}
}

// IsBackground reports whether c is within the tolerance of the background
// color. Pure function, no side effects.
func (cl Classifier) IsBackground(c color.NRGBA) bool {
	return within(c.R, cl.Background.R, cl.Tolerance) &&
		within(c.G, cl.Background.G, cl.Tolerance) &&
		within(c.B, cl.Background.B, cl.Tolerance) &&
		within(c.A, cl.Background.A, cl.Tolerance)
}

func within(a, b, tol uint8) bool {
	if a > b {
		return a-b <= tol
	}
	return b-a <= tol
}
