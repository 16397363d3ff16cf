package imgproc

import (
	"image/color"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"chipaoi/pkg/geometry"
)

// Blob is one extracted contour with the measurements the detectors gate on.
// Bounds is in the coordinate space of the binary Mat it was found in.
type Blob struct {
	Area   float64
	Bounds geometry.Rect
	// Min-area rect geometry: the rotated long/short extents and the angle
	// of the long axis from horizontal, in degrees.
	LongSide  float64
	ShortSide float64
	AngleDeg  float64
	Center    geometry.Point2D
}

// Elongation returns the long/short side ratio of the min-area rect; slender
// cracks score high, compact stains near 1. Degenerate blobs return 0.
func (b Blob) Elongation() float64 {
	if b.ShortSide <= 0 {
		return 0
	}
	return b.LongSide / b.ShortSide
}

// Length returns the longer min-area rect side.
func (b Blob) Length() float64 {
	return b.LongSide
}

// Combine selects how the area and size gates of FilterBlobs combine.
type Combine int

const (
	// CombineOr keeps a blob passing either gate. This is the default and
	// intentionally the more sensitive mode.
	CombineOr Combine = iota
	// CombineAnd requires both gates.
	CombineAnd
)

// FindBlobs extracts external contours from a binary Mat, sorted by
// descending area. An empty Mat yields nil.
func FindBlobs(bin gocv.Mat) []Blob {
	if bin.Empty() {
		return nil
	}
	contours := gocv.FindContours(bin, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	blobs := make([]Blob, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		bounds := geometry.FromImageRect(gocv.BoundingRect(contour))

		rot := gocv.MinAreaRect(contour)
		long := float64(rot.Width)
		short := float64(rot.Height)
		angle := rot.Angle
		if short > long {
			long, short = short, long
			angle += 90
		}
		for angle >= 90 {
			angle -= 180
		}
		for angle < -90 {
			angle += 180
		}

		blobs = append(blobs, Blob{
			Area:      area,
			Bounds:    bounds,
			LongSide:  long,
			ShortSide: short,
			AngleDeg:  angle,
			Center:    geometry.Point2D{X: float64(rot.Center.X), Y: float64(rot.Center.Y)},
		})
	}

	sort.Slice(blobs, func(i, j int) bool { return blobs[i].Area > blobs[j].Area })
	return blobs
}

// FilterBlobs keeps blobs passing the area/size gates. OR mode keeps a blob
// when area >= minArea or either bounding side >= minSquare; AND mode
// requires both. A non-positive gate always passes in AND mode and never
// triggers on its own in OR mode.
func FilterBlobs(blobs []Blob, minArea, minSquare int, combine Combine) []Blob {
	var kept []Blob
	for _, b := range blobs {
		areaHit := minArea > 0 && b.Area >= float64(minArea)
		sizeHit := minSquare > 0 && (b.Bounds.Width >= minSquare || b.Bounds.Height >= minSquare)

		switch combine {
		case CombineAnd:
			areaOK := minArea <= 0 || areaHit
			sizeOK := minSquare <= 0 || sizeHit
			if areaOK && sizeOK && (minArea > 0 || minSquare > 0) {
				kept = append(kept, b)
			}
		default:
			if areaHit || sizeHit {
				kept = append(kept, b)
			}
		}
	}
	return kept
}

// LargestBlob returns the largest-area blob, if any.
func LargestBlob(blobs []Blob) (Blob, bool) {
	if len(blobs) == 0 {
		return Blob{}, false
	}
	best := blobs[0]
	for _, b := range blobs[1:] {
		if b.Area > best.Area {
			best = b
		}
	}
	return best, true
}

// ExcludeBorderBlobs drops blobs whose bounds touch the window border within
// tol pixels. Boundary-touching blobs in crack detection are scan artifacts,
// not real cracks.
func ExcludeBorderBlobs(blobs []Blob, window geometry.Rect, tol int) []Blob {
	var kept []Blob
	for _, b := range blobs {
		if !b.Bounds.TouchesBorder(window, tol) {
			kept = append(kept, b)
		}
	}
	return kept
}

// ExcludeSlender drops blobs whose bounding aspect exceeds maxAspect in the
// given direction (vertical=true drops tall slivers). Used as the reflection
// filter: pocket-wall reflections show up as extreme-aspect lines.
func ExcludeSlender(blobs []Blob, maxAspect float64, vertical bool) []Blob {
	var kept []Blob
	for _, b := range blobs {
		w := float64(b.Bounds.Width)
		h := float64(b.Bounds.Height)
		if w <= 0 || h <= 0 {
			continue
		}
		aspect := h / w
		if !vertical {
			aspect = w / h
		}
		if aspect > maxAspect {
			continue
		}
		kept = append(kept, b)
	}
	return kept
}

// RemoveBorderBlobs erases blobs touching the Mat border from a binary image
// in place (the "paper dust mask"): tape dust drifts in from the window edges
// and must not be scored as a pocket hypothesis.
func RemoveBorderBlobs(bin *gocv.Mat, margin int) {
	if bin.Empty() {
		return
	}
	w, h := bin.Cols(), bin.Rows()
	window := geometry.NewRect(0, 0, w, h)

	contours := gocv.FindContours(*bin, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	black := color.RGBA{}
	for i := 0; i < contours.Size(); i++ {
		bounds := geometry.FromImageRect(gocv.BoundingRect(contours.At(i)))
		if bounds.TouchesBorder(window, margin) {
			gocv.DrawContours(bin, contours, i, black, -1)
		}
	}
}

// AngleWithinAxis reports whether the angle (degrees from horizontal) is
// within tol of axis alignment (0 or +-90).
func AngleWithinAxis(angleDeg, tol float64) bool {
	a := math.Abs(angleDeg)
	for a >= 90 {
		a -= 90
	}
	if a > 45 {
		a = 90 - a
	}
	return a <= tol
}
