// Package frame wraps the captured camera image. A Frame is acquired once per
// inspection cycle and borrowed read-only by the pipeline; annotation happens
// on a separate overlay copy so visualization never perturbs the pixels that
// measurements run on.
package frame

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"gocv.io/x/gocv"

	_ "golang.org/x/image/tiff"

	"chipaoi/pkg/geometry"
)

// Frame holds the captured image and its grayscale view. Both Mats are owned
// by the Frame and released by Close.
type Frame struct {
	mat  gocv.Mat
	gray gocv.Mat
}

// FromMat builds a Frame from a BGR or grayscale Mat. The Mat is cloned; the
// caller keeps ownership of its copy.
func FromMat(src gocv.Mat) (*Frame, error) {
	if src.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	f := &Frame{mat: src.Clone()}
	if src.Channels() == 1 {
		f.gray = src.Clone()
	} else {
		f.gray = gocv.NewMat()
		gocv.CvtColor(f.mat, &f.gray, gocv.ColorBGRToGray)
	}
	return f, nil
}

// FromGray builds a Frame from a grayscale Mat.
func FromGray(gray gocv.Mat) (*Frame, error) {
	return FromMat(gray)
}

// Load reads a frame from disk. PNG, JPEG and TIFF are decoded through the
// image registry (line-scan cameras dump TIFF), everything else through
// OpenCV.
func Load(path string) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	img, _, err := image.Decode(fh)
	fh.Close()
	if err == nil {
		mat, convErr := toMat(img)
		if convErr != nil {
			return nil, convErr
		}
		defer mat.Close()
		return FromMat(mat)
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}
	defer mat.Close()
	return FromMat(mat)
}

// toMat converts a decoded Go image to a BGR Mat.
func toMat(src image.Image) (gocv.Mat, error) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return gocv.NewMat(), fmt.Errorf("degenerate image %dx%d", w, h)
	}
	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}
	return mat, nil
}

// Gray returns the grayscale view. Borrowed: the pipeline must not mutate it.
func (f *Frame) Gray() gocv.Mat {
	return f.gray
}

// Mat returns the original image. Borrowed read-only.
func (f *Frame) Mat() gocv.Mat {
	return f.mat
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int {
	return f.gray.Cols()
}

// Height returns the frame height in pixels.
func (f *Frame) Height() int {
	return f.gray.Rows()
}

// Bounds returns the frame rect at the origin.
func (f *Frame) Bounds() geometry.Rect {
	return geometry.NewRect(0, 0, f.Width(), f.Height())
}

// OverlayCopy returns a BGR clone for annotation. Drawing mutates only this
// copy; the measurement path keeps reading the original. The caller owns the
// returned Mat.
func (f *Frame) OverlayCopy() gocv.Mat {
	if f.mat.Channels() == 3 {
		return f.mat.Clone()
	}
	out := gocv.NewMat()
	gocv.CvtColor(f.gray, &out, gocv.ColorGrayToBGR)
	return out
}

// Close releases the underlying Mats.
func (f *Frame) Close() {
	if !f.mat.Empty() {
		f.mat.Close()
	}
	if !f.gray.Empty() {
		f.gray.Close()
	}
}
