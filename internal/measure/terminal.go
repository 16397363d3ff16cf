package measure

import (
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"chipaoi/internal/imgproc"
	"chipaoi/pkg/geometry"
)

const (
	// terminalScanLines is how many parallel scan lines the inner/outer
	// edge search runs across a terminal; the median over lines makes the
	// measurement robust against local plating noise.
	terminalScanLines = 15

	// minValidScans is the minimum number of scan lines that must yield an
	// edge pair before the median is trusted.
	minValidScans = 3

	// terminalBandFrac is the fraction of the body length each terminal
	// band covers from its end.
	terminalBandFrac = 0.30
)

// TerminalWidth measures a terminal's vertical extent from the extreme
// contour points of its largest blob (no line fitting; plating edges are too
// ragged for a fit to add anything).
func TerminalWidth(gray gocv.Mat, terminal geometry.Rect, contrast int) Measurement {
	terminal = terminal.ClampTo(gray.Cols(), gray.Rows())
	if !terminal.Valid() {
		return NotMeasured("terminal width: invalid terminal rect")
	}
	if contrast <= 0 {
		contrast = defaultMeasureContrast
	}

	roi := gray.Region(terminal.ToImage())
	defer roi.Close()

	bin, _ := PreferredBinarization(roi, contrast)
	defer bin.Close()
	imgproc.CleanBinary(&bin, 3, 3)

	blob, ok := imgproc.LargestBlob(imgproc.FindBlobs(bin))
	if !ok {
		return NotMeasured("terminal width: no blob found")
	}
	return Measurement{
		Valid:   true,
		Value:   float64(blob.Bounds.Height),
		Message: "OK",
	}
}

// TerminalLength measures the left terminal's horizontal extent with a
// multi-line inner/outer edge search and reports the median across lines.
// Fewer than minValidScans valid lines triggers a Sobel-based fallback before
// the measurement is declared failed.
func TerminalLength(gray gocv.Mat, body geometry.Rect, contrast int) Measurement {
	band := leftTerminalBand(body)
	return scanTerminalLength(gray, band, contrast, false)
}

// TerminalLengthRight measures the right terminal.
func TerminalLengthRight(gray gocv.Mat, body geometry.Rect, contrast int) Measurement {
	band := rightTerminalBand(body)
	return scanTerminalLength(gray, band, contrast, true)
}

// TerminalGap measures the body span between the two terminals' inner edges
// (term-to-term), median across scan lines.
func TerminalGap(gray gocv.Mat, body geometry.Rect, contrast int) Measurement {
	body = body.ClampTo(gray.Cols(), gray.Rows())
	if !body.Valid() {
		return NotMeasured("terminal gap: invalid body rect")
	}
	if contrast <= 0 {
		contrast = defaultMeasureContrast
	}

	roi := gray.Region(body.ToImage())
	defer roi.Close()
	bin, _ := PreferredBinarization(roi, contrast)
	defer bin.Close()
	imgproc.CleanBinary(&bin, 3, 3)

	termW := int(float64(body.Width) * terminalBandFrac)
	if termW < 2 {
		return NotMeasured("terminal gap: body too narrow")
	}

	var gaps []float64
	step := maxInt(body.Height/terminalScanLines, 1)
	for y := step / 2; y < body.Height; y += step {
		// Inner edge of left terminal: last foreground pixel walking
		// right within the left terminal zone.
		leftInner := -1
		for x := termW - 1; x >= 0; x-- {
			if bin.GetUCharAt(y, x) != 0 {
				leftInner = x
				break
			}
		}
		// Inner edge of right terminal: first foreground pixel walking
		// left within the right terminal zone.
		rightInner := -1
		for x := body.Width - termW; x < body.Width; x++ {
			if bin.GetUCharAt(y, x) != 0 {
				rightInner = x
				break
			}
		}
		if leftInner < 0 || rightInner < 0 || rightInner <= leftInner {
			continue
		}
		gaps = append(gaps, float64(rightInner-leftInner))
	}

	if len(gaps) < minValidScans {
		return NotMeasured("terminal gap: only %d valid scan lines", len(gaps))
	}
	return Measurement{
		Valid:      true,
		Value:      median(gaps),
		PointsUsed: len(gaps),
		Message:    "OK",
	}
}

// scanTerminalLength walks scan lines across a terminal band, finding the
// outer and inner plating edges per line.
func scanTerminalLength(gray gocv.Mat, band geometry.Rect, contrast int, fromRight bool) Measurement {
	band = band.ClampTo(gray.Cols(), gray.Rows())
	if !band.Valid() || band.Width < 4 || band.Height < 4 {
		return NotMeasured("terminal length: invalid terminal band")
	}
	if contrast <= 0 {
		contrast = defaultMeasureContrast
	}

	roi := gray.Region(band.ToImage())
	defer roi.Close()
	bin, _ := PreferredBinarization(roi, contrast)
	defer bin.Close()
	imgproc.CleanBinary(&bin, 3, 3)

	lengths := scanEdgePairs(bin, band.Height, band.Width, fromRight)
	if len(lengths) >= minValidScans {
		return Measurement{
			Valid:      true,
			Value:      median(lengths),
			PointsUsed: len(lengths),
			Message:    "OK",
		}
	}

	// Sobel fallback: fit the outer and inner edges as lines and take
	// their separation at the band center.
	pol := imgproc.Light
	outerBand := geometry.NewRect(band.X, band.Y, band.Width/2, band.Height)
	innerBand := geometry.NewRect(band.X+band.Width/2, band.Y, band.Width-band.Width/2, band.Height)
	outer := CollectEdgePoints(gray, outerBand, contrast, pol, false)
	inner := CollectEdgePoints(gray, innerBand, contrast, pol, false)
	if len(outer) >= minEdgePoints && len(inner) >= minEdgePoints {
		lo, _, okO := FitLineRobust(outer, true)
		li, _, okI := FitLineRobust(inner, true)
		if okO && okI {
			cy := band.Center().Y
			d := li.Eval(cy) - lo.Eval(cy)
			if d < 0 {
				d = -d
			}
			return Measurement{Valid: true, Value: d, Message: "OK (gradient fallback)"}
		}
	}

	return NotMeasured("terminal length: only %d valid scan lines", len(lengths))
}

// scanEdgePairs finds (outer, inner) edge pairs per scan line of a binarized
// terminal band and returns the per-line lengths.
func scanEdgePairs(bin gocv.Mat, height, width int, fromRight bool) []float64 {
	var lengths []float64
	step := maxInt(height/terminalScanLines, 1)
	for y := step / 2; y < height; y += step {
		outer, inner := -1, -1
		if fromRight {
			for x := width - 1; x >= 0; x-- {
				if bin.GetUCharAt(y, x) != 0 {
					outer = x
					break
				}
			}
			for x := 0; x < width; x++ {
				if bin.GetUCharAt(y, x) != 0 {
					inner = x
					break
				}
			}
			if outer >= 0 && inner >= 0 && outer > inner {
				lengths = append(lengths, float64(outer-inner))
			}
		} else {
			for x := 0; x < width; x++ {
				if bin.GetUCharAt(y, x) != 0 {
					outer = x
					break
				}
			}
			for x := width - 1; x >= 0; x-- {
				if bin.GetUCharAt(y, x) != 0 {
					inner = x
					break
				}
			}
			if outer >= 0 && inner >= 0 && inner > outer {
				lengths = append(lengths, float64(inner-outer))
			}
		}
	}
	return lengths
}

// leftTerminalBand returns the band covering the left terminal, slightly
// inflated past the body edge so the outer plating edge is inside the band.
func leftTerminalBand(body geometry.Rect) geometry.Rect {
	w := int(float64(body.Width) * terminalBandFrac)
	return geometry.NewRect(body.X-4, body.Y, w+8, body.Height)
}

func rightTerminalBand(body geometry.Rect) geometry.Rect {
	w := int(float64(body.Width) * terminalBandFrac)
	return geometry.NewRect(body.Right()-w-4, body.Y, w+8, body.Height)
}

func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
