// Package locate implements the location detectors: the package locator and
// the carrier-tape pocket locator. Detection failure is a value, not an
// error — every entry point returns a DetectionResult whose Detected flag and
// Message explain what happened.
package locate

import (
	"fmt"
	"math"

	"chipaoi/pkg/geometry"
)

// DetectionResult is the outcome of one location attempt.
type DetectionResult struct {
	Detected bool
	// Rect is the detected location in frame coordinates. Always fully
	// contained in the frame when Detected is true.
	Rect geometry.Rect
	// Confidence is 0-100, a weighted combination of area ratio and ROI
	// contrast.
	Confidence int
	// Contrast is the measured feature-to-surround intensity difference.
	Contrast float64
	// Method tags which sub-strategy produced the detection.
	Method string
	// Message explains a failed detection.
	Message string
}

// NotDetected builds a failed result with an explanatory message.
func NotDetected(format string, args ...interface{}) DetectionResult {
	return DetectionResult{Message: fmt.Sprintf(format, args...)}
}

// confidence combines the detected-to-taught area ratio with the measured
// contrast, capped at 100. A perfect area match at strong contrast scores
// 100; a marginal blob at weak contrast scores near zero.
func confidence(areaRatio, contrast float64) int {
	if areaRatio > 1 && areaRatio != 0 {
		areaRatio = 1 / areaRatio
	}
	if areaRatio < 0 {
		areaRatio = 0
	}
	contrastScore := math.Min(contrast*2, 100)
	score := 0.6*areaRatio*100 + 0.4*contrastScore
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return int(score + 0.5)
}
