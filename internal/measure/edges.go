package measure

import (
	"math"

	"gocv.io/x/gocv"

	"chipaoi/internal/imgproc"
	"chipaoi/pkg/geometry"
)

// edgeSampleStride is the spacing between sample lines when collecting edge
// candidates along a band.
const edgeSampleStride = 4

// gradientFloor is the minimum Sobel response accepted as an edge; anything
// weaker is band noise.
const gradientFloor = 64

// CollectEdgePoints finds one candidate edge point per sample line across the
// band. The band is adaptively binarized at the given polarity, a directional
// Sobel gradient is taken, and per sample column (horizontal edge) or row
// (vertical edge) the strongest gradient position is kept. Points are
// returned in frame coordinates. Degenerate bands return nil.
func CollectEdgePoints(gray gocv.Mat, band geometry.Rect, contrast int, pol imgproc.Polarity, horizontalEdge bool) []geometry.Point2D {
	band = band.ClampTo(gray.Cols(), gray.Rows())
	if !band.Valid() || band.Width < 2 || band.Height < 2 {
		return nil
	}

	roi := gray.Region(band.ToImage())
	defer roi.Close()

	mean := imgproc.MeanLevel(roi)
	threshold := int(mean) - contrast
	if pol == imgproc.Light {
		threshold = int(mean) + contrast
	}
	bin := imgproc.Binarize(roi, clamp8(threshold), pol)
	defer bin.Close()

	grad := gocv.NewMat()
	defer grad.Close()
	if horizontalEdge {
		gocv.Sobel(bin, &grad, gocv.MatTypeCV16S, 0, 1, 3, 1, 0, gocv.BorderDefault)
	} else {
		gocv.Sobel(bin, &grad, gocv.MatTypeCV16S, 1, 0, 3, 1, 0, gocv.BorderDefault)
	}
	absGrad := gocv.NewMat()
	defer absGrad.Close()
	gocv.ConvertScaleAbs(grad, &absGrad, 1, 0)

	var points []geometry.Point2D
	if horizontalEdge {
		for x := 0; x < band.Width; x += edgeSampleStride {
			bestY, bestVal := -1, uint8(0)
			for y := 0; y < band.Height; y++ {
				v := absGrad.GetUCharAt(y, x)
				if v > bestVal {
					bestVal = v
					bestY = y
				}
			}
			if bestY >= 0 && bestVal >= gradientFloor {
				points = append(points, geometry.Point2D{
					X: float64(band.X + x),
					Y: float64(band.Y + bestY),
				})
			}
		}
	} else {
		for y := 0; y < band.Height; y += edgeSampleStride {
			bestX, bestVal := -1, uint8(0)
			for x := 0; x < band.Width; x++ {
				v := absGrad.GetUCharAt(y, x)
				if v > bestVal {
					bestVal = v
					bestX = x
				}
			}
			if bestX >= 0 && bestVal >= gradientFloor {
				points = append(points, geometry.Point2D{
					X: float64(band.X + bestX),
					Y: float64(band.Y + y),
				})
			}
		}
	}
	return points
}

// PreferredBinarization binarizes the ROI at both polarities around its mean
// level and picks the more usable candidate: a foreground fraction between
// 10% and 70% qualifies, and among qualifying candidates the one closer to
// 40% wins. Bright-on-dark vs dark-on-bright orientation is not known in
// advance, so both are always tried. The caller owns the returned Mat.
func PreferredBinarization(roi gocv.Mat, contrast int) (gocv.Mat, imgproc.Polarity) {
	mean := imgproc.MeanLevel(roi)

	normal := imgproc.Binarize(roi, clamp8(int(mean)+contrast), imgproc.Light)
	inverted := imgproc.Binarize(roi, clamp8(int(mean)-contrast), imgproc.Dark)

	normalFrac := imgproc.WhiteFraction(normal)
	invertedFrac := imgproc.WhiteFraction(inverted)

	normalOK := normalFrac >= 0.10 && normalFrac <= 0.70
	invertedOK := invertedFrac >= 0.10 && invertedFrac <= 0.70

	switch {
	case normalOK && invertedOK:
		if math.Abs(invertedFrac-0.40) < math.Abs(normalFrac-0.40) {
			normal.Close()
			return inverted, imgproc.Dark
		}
		inverted.Close()
		return normal, imgproc.Light
	case invertedOK:
		normal.Close()
		return inverted, imgproc.Dark
	case normalOK:
		inverted.Close()
		return normal, imgproc.Light
	default:
		// Neither qualifies; keep whichever is closer to usable.
		if math.Abs(invertedFrac-0.40) < math.Abs(normalFrac-0.40) {
			normal.Close()
			return inverted, imgproc.Dark
		}
		inverted.Close()
		return normal, imgproc.Light
	}
}

func clamp8(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
