// Package imgproc provides the shared vision primitives the detectors are
// built on: adaptive thresholding, morphological cleanup, contour filtering
// and ROI masking. Every function is total — degenerate input (empty Mat,
// zero-size ROI) yields an empty result, never a panic or error.
package imgproc

import (
	"gocv.io/x/gocv"
)

// Polarity selects which side of the threshold becomes foreground.
type Polarity int

const (
	// Dark keeps pixels below the threshold (dark defects, dark body).
	Dark Polarity = iota
	// Light keeps pixels above the threshold.
	Light
)

// MeanLevel returns the mean intensity of a grayscale Mat, or 0 for an empty
// one.
func MeanLevel(gray gocv.Mat) float64 {
	if gray.Empty() {
		return 0
	}
	return gray.Mean().Val1
}

// MeanLevelRect returns the mean intensity inside a rect of the Mat. Rects
// outside the image yield 0.
func MeanLevelRect(gray gocv.Mat, x, y, w, h int) float64 {
	if gray.Empty() || w <= 0 || h <= 0 {
		return 0
	}
	if x < 0 || y < 0 || x+w > gray.Cols() || y+h > gray.Rows() {
		return 0
	}
	roi := gray.Region(imageRect(x, y, w, h))
	defer roi.Close()
	return roi.Mean().Val1
}

// AdaptiveRange derives binarization thresholds from the ROI mean intensity
// plus/minus a contrast delta, clamped to [0, 255].
func AdaptiveRange(roi gocv.Mat, delta int) (low, high int) {
	mean := int(MeanLevel(roi) + 0.5)
	low = clampLevel(mean - delta)
	high = clampLevel(mean + delta)
	return low, high
}

// Binarize thresholds a grayscale Mat. Dark polarity marks pixels strictly
// below the threshold as foreground (255); Light marks pixels above it. The
// caller owns the returned Mat.
func Binarize(gray gocv.Mat, threshold int, pol Polarity) gocv.Mat {
	bin := gocv.NewMat()
	if gray.Empty() {
		return bin
	}
	typ := gocv.ThresholdBinary
	if pol == Dark {
		typ = gocv.ThresholdBinaryInv
	}
	gocv.Threshold(gray, &bin, float32(threshold), 255, typ)
	return bin
}

// OtsuBinarize thresholds with Otsu's method, used where no taught or
// configured contrast baseline exists. The caller owns the returned Mat.
func OtsuBinarize(gray gocv.Mat, pol Polarity) gocv.Mat {
	bin := gocv.NewMat()
	if gray.Empty() {
		return bin
	}
	typ := gocv.ThresholdBinary | gocv.ThresholdOtsu
	if pol == Dark {
		typ = gocv.ThresholdBinaryInv | gocv.ThresholdOtsu
	}
	gocv.Threshold(gray, &bin, 0, 255, typ)
	return bin
}

// WhiteFraction returns the fraction of foreground pixels in a binary Mat.
func WhiteFraction(bin gocv.Mat) float64 {
	if bin.Empty() {
		return 0
	}
	total := bin.Rows() * bin.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(bin)) / float64(total)
}

func clampLevel(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
