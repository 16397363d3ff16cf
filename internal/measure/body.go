package measure

import (
	"fmt"

	"gocv.io/x/gocv"

	"chipaoi/internal/imgproc"
	"chipaoi/pkg/geometry"
)

// Measurement is the outcome of one dimensional measurement. A failed edge
// search reports Valid=false with a message, never a zero value pretending to
// be a measurement.
type Measurement struct {
	Valid      bool
	Value      float64
	PointsUsed int
	Message    string
}

// NotMeasured builds a failed measurement with an explanatory message.
func NotMeasured(format string, args ...interface{}) Measurement {
	return Measurement{Message: fmt.Sprintf(format, args...)}
}

// defaultMeasureContrast is used when the station leaves the measurement
// contrast unset; edges are strong enough that a moderate delta works for
// most body materials.
const defaultMeasureContrast = 25

// BodyWidth measures the vertical body extent: opposing bands straddle the
// top and bottom edges, each band yields edge candidates, each candidate set
// is fitted with outlier rejection, and the fitted lines are evaluated at the
// body's horizontal center. Polarity is not known in advance; the second
// polarity is attempted before giving up.
func BodyWidth(gray gocv.Mat, body geometry.Rect, contrast int) Measurement {
	if !body.Valid() {
		return NotMeasured("body width: invalid body rect")
	}
	if contrast <= 0 {
		contrast = defaultMeasureContrast
	}

	bandH := body.Height / 3
	if bandH < 8 {
		bandH = 8
	}
	top := geometry.NewRect(body.X, body.Y-bandH/2, body.Width, bandH)
	bottom := geometry.NewRect(body.X, body.Bottom()-bandH/2, body.Width, bandH)

	return measureAcross(gray, top, bottom, body.Center().X, contrast, true)
}

// BodyLength measures the horizontal body extent via left/right edge bands.
func BodyLength(gray gocv.Mat, body geometry.Rect, contrast int) Measurement {
	if !body.Valid() {
		return NotMeasured("body length: invalid body rect")
	}
	if contrast <= 0 {
		contrast = defaultMeasureContrast
	}

	bandW := body.Width / 3
	if bandW < 8 {
		bandW = 8
	}
	left := geometry.NewRect(body.X-bandW/2, body.Y, bandW, body.Height)
	right := geometry.NewRect(body.Right()-bandW/2, body.Y, bandW, body.Height)

	return measureAcross(gray, left, right, body.Center().Y, contrast, false)
}

// measureAcross fits one edge line per band and reports the distance between
// them at the given center coordinate. horizontalEdge selects top/bottom
// (true) vs left/right (false) geometry.
func measureAcross(gray gocv.Mat, bandA, bandB geometry.Rect, center float64, contrast int, horizontalEdge bool) Measurement {
	for _, pol := range []imgproc.Polarity{imgproc.Light, imgproc.Dark} {
		ptsA := CollectEdgePoints(gray, bandA, contrast, pol, horizontalEdge)
		ptsB := CollectEdgePoints(gray, bandB, contrast, pol, horizontalEdge)
		if len(ptsA) < minEdgePoints || len(ptsB) < minEdgePoints {
			continue
		}

		lineA, usedA, okA := FitLineRobust(ptsA, !horizontalEdge)
		lineB, usedB, okB := FitLineRobust(ptsB, !horizontalEdge)
		if !okA || !okB {
			continue
		}

		a := lineA.Eval(center)
		b := lineB.Eval(center)
		dist := b - a
		if dist < 0 {
			dist = -dist
		}
		return Measurement{
			Valid:      true,
			Value:      dist,
			PointsUsed: usedA + usedB,
			Message:    "OK",
		}
	}
	return NotMeasured("edge search failed: fewer than %d edge points per band", minEdgePoints)
}
