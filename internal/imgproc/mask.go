package imgproc

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// ChamferMask builds an 8-bit single-channel mask of the given size with
// triangular corners of the given depth zeroed out. Used to ignore rounded
// package corners during surface inspection. The caller owns the Mat.
func ChamferMask(width, height, chamfer int) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), height, width, gocv.MatTypeCV8UC1)
	if chamfer <= 0 {
		return mask
	}
	if chamfer > width/2 {
		chamfer = width / 2
	}
	if chamfer > height/2 {
		chamfer = height / 2
	}
	for dy := 0; dy < chamfer; dy++ {
		run := chamfer - dy
		for dx := 0; dx < run; dx++ {
			mask.SetUCharAt(dy, dx, 0)
			mask.SetUCharAt(dy, width-1-dx, 0)
			mask.SetUCharAt(height-1-dy, dx, 0)
			mask.SetUCharAt(height-1-dy, width-1-dx, 0)
		}
	}
	return mask
}

// EllipseMask builds a mask restricting inspection to the inscribed ellipse
// of the window. The caller owns the Mat.
func EllipseMask(width, height int) gocv.Mat {
	mask := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC1)
	gocv.Ellipse(&mask,
		image.Point{X: width / 2, Y: height / 2},
		image.Point{X: width / 2, Y: height / 2},
		0, 0, 360,
		color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	return mask
}

// ApplyMask keeps only the masked region of a binary Mat, in place.
func ApplyMask(bin *gocv.Mat, mask gocv.Mat) {
	if bin.Empty() || mask.Empty() {
		return
	}
	gocv.BitwiseAnd(*bin, mask, bin)
}

// InpaintRegions paints over the given regions of a grayscale Mat using
// surrounding texture (the body-area dust mask). Regions outside the image
// are clamped away. The caller owns the returned Mat.
func InpaintRegions(gray gocv.Mat, regions []image.Rectangle) gocv.Mat {
	out := gocv.NewMat()
	if gray.Empty() {
		return out
	}
	mask := gocv.NewMatWithSize(gray.Rows(), gray.Cols(), gocv.MatTypeCV8UC1)
	defer mask.Close()
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	painted := false
	for _, r := range regions {
		clipped := r.Intersect(image.Rect(0, 0, gray.Cols(), gray.Rows()))
		if clipped.Empty() {
			continue
		}
		gocv.Rectangle(&mask, clipped, white, -1)
		painted = true
	}
	if !painted {
		return gray.Clone()
	}
	gocv.Inpaint(gray, mask, &out, 3, gocv.Telea)
	return out
}
