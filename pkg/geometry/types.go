// Package geometry provides basic geometric types used throughout the engine.
package geometry

import (
	"image"
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Rect is a pixel-space rectangle. Width and Height must be positive for the
// rect to be considered valid; taught locations, search windows and defect
// bounding boxes all use this type.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewRect creates a new Rect.
func NewRect(x, y, width, height int) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// FromImageRect converts an image.Rectangle to a Rect.
func FromImageRect(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Valid reports whether the rect has positive extent.
func (r Rect) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Empty reports whether the rect has no extent.
func (r Rect) Empty() bool {
	return !r.Valid()
}

// ToImage converts to an image.Rectangle.
func (r Rect) ToImage() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Area returns Width*Height, or 0 for invalid rects.
func (r Rect) Area() int {
	if !r.Valid() {
		return 0
	}
	return r.Width * r.Height
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Point2D {
	return Point2D{X: float64(r.X) + float64(r.Width)/2, Y: float64(r.Y) + float64(r.Height)/2}
}

// Right returns the exclusive right edge coordinate.
func (r Rect) Right() int {
	return r.X + r.Width
}

// Bottom returns the exclusive bottom edge coordinate.
func (r Rect) Bottom() int {
	return r.Y + r.Height
}

// AspectRatio returns the longer side divided by the shorter side.
// Returns 0 for degenerate rects.
func (r Rect) AspectRatio() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	long := float64(r.Width)
	short := float64(r.Height)
	if short > long {
		long, short = short, long
	}
	return long / short
}

// Inflate grows the rect by the given margins on each side. Negative margins
// shrink it. The result may be invalid; callers clamp and validate.
func (r Rect) Inflate(left, top, right, bottom int) Rect {
	return Rect{
		X:      r.X - left,
		Y:      r.Y - top,
		Width:  r.Width + left + right,
		Height: r.Height + top + bottom,
	}
}

// Shrink removes the given margins from each side.
func (r Rect) Shrink(left, top, right, bottom int) Rect {
	return r.Inflate(-left, -top, -right, -bottom)
}

// Offset translates the rect.
func (r Rect) Offset(dx, dy int) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, Width: r.Width, Height: r.Height}
}

// ClampTo clips the rect to the bounds [0,0,width,height]. The result can be
// invalid (zero or negative extent) if the rect lies entirely outside.
func (r Rect) ClampTo(width, height int) Rect {
	x1, y1 := r.X, r.Y
	x2, y2 := r.X+r.Width, r.Y+r.Height
	if x1 < 0 {
		x1 = 0
	}
	if y1 < 0 {
		y1 = 0
	}
	if x2 > width {
		x2 = width
	}
	if y2 > height {
		y2 = height
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// ContainedIn reports whether the rect lies fully inside [0,0,width,height].
func (r Rect) ContainedIn(width, height int) bool {
	return r.Valid() && r.X >= 0 && r.Y >= 0 && r.Right() <= width && r.Bottom() <= height
}

// Contains reports whether the other rect lies fully inside this one.
func (r Rect) Contains(other Rect) bool {
	return other.X >= r.X && other.Y >= r.Y &&
		other.Right() <= r.Right() && other.Bottom() <= r.Bottom()
}

// ContainsPoint reports whether the point lies inside the rect.
func (r Rect) ContainsPoint(x, y int) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Intersects reports whether this rectangle intersects with another.
func (r Rect) Intersects(other Rect) bool {
	return r.X < other.Right() && r.Right() > other.X &&
		r.Y < other.Bottom() && r.Bottom() > other.Y
}

// Intersect returns the overlapping region of two rects. The result is
// invalid when they do not overlap.
func (r Rect) Intersect(other Rect) Rect {
	x1 := maxInt(r.X, other.X)
	y1 := maxInt(r.Y, other.Y)
	x2 := minInt(r.Right(), other.Right())
	y2 := minInt(r.Bottom(), other.Bottom())
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Union returns the smallest rectangle containing both rectangles.
func (r Rect) Union(other Rect) Rect {
	if !r.Valid() {
		return other
	}
	if !other.Valid() {
		return r
	}
	x1 := minInt(r.X, other.X)
	y1 := minInt(r.Y, other.Y)
	x2 := maxInt(r.Right(), other.Right())
	y2 := maxInt(r.Bottom(), other.Bottom())
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// TouchesBorder reports whether the rect touches (or crosses) the border of
// the window, within a margin of tol pixels.
func (r Rect) TouchesBorder(window Rect, tol int) bool {
	return r.X <= window.X+tol ||
		r.Y <= window.Y+tol ||
		r.Right() >= window.Right()-tol ||
		r.Bottom() >= window.Bottom()-tol
}

// AffineTransform represents a 2x3 affine transformation matrix.
// [a b tx]
// [c d ty]
type AffineTransform struct {
	A, B, TX float64
	C, D, TY float64
}

// Identity returns the identity transform.
func Identity() AffineTransform {
	return AffineTransform{A: 1, D: 1}
}

// RotationAbout returns a rotation transform of the given angle (radians)
// around a center point.
func RotationAbout(radians float64, center Point2D) AffineTransform {
	cos := math.Cos(radians)
	sin := math.Sin(radians)
	return AffineTransform{
		A: cos, B: -sin, TX: center.X - cos*center.X + sin*center.Y,
		C: sin, D: cos, TY: center.Y - sin*center.X - cos*center.Y,
	}
}

// Apply applies the transform to a point.
func (t AffineTransform) Apply(p Point2D) Point2D {
	return Point2D{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

// Inverse returns the inverse transform, if it exists.
func (t AffineTransform) Inverse() (AffineTransform, bool) {
	det := t.A*t.D - t.B*t.C
	if math.Abs(det) < 1e-10 {
		return AffineTransform{}, false
	}

	invDet := 1.0 / det
	return AffineTransform{
		A:  t.D * invDet,
		B:  -t.B * invDet,
		TX: (t.B*t.TY - t.D*t.TX) * invDet,
		C:  -t.C * invDet,
		D:  t.A * invDet,
		TY: (t.C*t.TX - t.A*t.TY) * invDet,
	}, true
}

// ApplyToRect maps all four corners through the transform and returns the
// axis-aligned bounding rect of the result.
func (t AffineTransform) ApplyToRect(r Rect) Rect {
	corners := []Point2D{
		{X: float64(r.X), Y: float64(r.Y)},
		{X: float64(r.Right()), Y: float64(r.Y)},
		{X: float64(r.Right()), Y: float64(r.Bottom())},
		{X: float64(r.X), Y: float64(r.Bottom())},
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		p := t.Apply(c)
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{
		X:      int(math.Floor(minX + 0.5)),
		Y:      int(math.Floor(minY + 0.5)),
		Width:  int(math.Floor(maxX - minX + 0.5)),
		Height: int(math.Floor(maxY - minY + 0.5)),
	}
}

// Line is a 2D line in slope/intercept form: y = Slope*x + Intercept when
// Vertical is false, or x = Slope*y + Intercept when Vertical is true. The
// dual form avoids infinite slopes when fitting near-vertical edges.
type Line struct {
	Slope     float64
	Intercept float64
	Vertical  bool
}

// Eval evaluates the line at the independent coordinate t: returns y for a
// horizontal line at x=t, or x for a vertical line at y=t.
func (l Line) Eval(t float64) float64 {
	return l.Slope*t + l.Intercept
}

// Angle returns the line's angle from the horizontal axis in degrees,
// normalized to [-90, 90).
func (l Line) Angle() float64 {
	var deg float64
	if l.Vertical {
		deg = 90 - math.Atan(l.Slope)*180/math.Pi
	} else {
		deg = math.Atan(l.Slope) * 180 / math.Pi
	}
	for deg >= 90 {
		deg -= 180
	}
	for deg < -90 {
		deg += 180
	}
	return deg
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
