// Package inspect runs the inspection cycle: locate, measure, check, verdict.
// The engine is fail-fast — the first failing check ends the cycle — and
// supports an interactive step mode where a calibrator reviews suggested
// parameter adjustments before the verdict is finalized.
package inspect

import (
	"gocv.io/x/gocv"

	"chipaoi/internal/defect"
	"chipaoi/internal/locate"
	"chipaoi/pkg/geometry"
)

// Verdict is the outcome of one inspection cycle.
type Verdict int

const (
	// Pass: every executed check passed (or nothing was enabled).
	Pass Verdict = iota
	// Fail: location, measurement or a defect check failed.
	Fail
	// Pause: step mode stopped the cycle for operator calibration.
	Pause
)

// String implements fmt.Stringer.
func (v Verdict) String() string {
	switch v {
	case Pass:
		return "PASS"
	case Fail:
		return "FAIL"
	case Pause:
		return "PAUSE"
	}
	return "UNKNOWN"
}

// CheckOutcome records one executed check.
type CheckOutcome struct {
	Name    string
	Pass    bool
	Skipped bool
	Detail  string
	// Rects are defect locations for the overlay, frame coordinates.
	Rects []geometry.Rect
}

// TestResult is the full record of one inspection cycle.
type TestResult struct {
	Verdict Verdict
	// FailedCheck names the check that ended a failing cycle.
	FailedCheck string
	// Message is the operator-facing explanation of the verdict.
	Message string

	// Package and Pocket are the location results; Pocket is zero on chip
	// stations.
	Package locate.DetectionResult
	Pocket  locate.DetectionResult

	// Checks lists every check the cycle executed, in order. Fail-fast
	// means checks after the failing one never appear.
	Checks []CheckOutcome

	// Overlay is the annotated frame copy: located geometry in green,
	// defect rects in red, verdict banner. Owned by the result; release it
	// with Close.
	Overlay gocv.Mat
}

// Close releases the overlay Mat.
func (r *TestResult) Close() {
	r.Overlay.Close()
}

// outcomeFromDefect folds a defect result into a CheckOutcome.
func outcomeFromDefect(name string, r defect.Result) CheckOutcome {
	return CheckOutcome{
		Name:    name,
		Pass:    r.Pass,
		Skipped: r.Skipped,
		Detail:  r.Message,
		Rects:   r.Rects,
	}
}
