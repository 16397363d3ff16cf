package imgproc

import (
	"image"

	"gocv.io/x/gocv"
)

// MorphClose fills small gaps in a binary Mat in place. kernelSize below 2 is
// a no-op.
func MorphClose(bin *gocv.Mat, kernelSize int) {
	morph(bin, gocv.MorphClose, kernelSize)
}

// MorphOpen removes small noise blobs from a binary Mat in place. kernelSize
// below 2 is a no-op.
func MorphOpen(bin *gocv.Mat, kernelSize int) {
	morph(bin, gocv.MorphOpen, kernelSize)
}

// CleanBinary runs the standard close-then-open chain used before contour
// extraction: close fills pinholes inside defects, open drops single-pixel
// noise without eroding real blobs.
func CleanBinary(bin *gocv.Mat, closeSize, openSize int) {
	MorphClose(bin, closeSize)
	MorphOpen(bin, openSize)
}

// Invert flips a binary Mat in place.
func Invert(bin *gocv.Mat) {
	if bin.Empty() {
		return
	}
	gocv.BitwiseNot(*bin, bin)
}

func morph(bin *gocv.Mat, op gocv.MorphType, kernelSize int) {
	if bin.Empty() || kernelSize < 2 {
		return
	}
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: kernelSize, Y: kernelSize})
	defer kernel.Close()
	gocv.MorphologyEx(*bin, bin, op, kernel)
}

func imageRect(x, y, w, h int) image.Rectangle {
	return image.Rect(x, y, x+w, y+h)
}
