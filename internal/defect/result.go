// Package defect implements the appearance checks: body cracks and surface
// defects, terminal defects, sealing-tape defects and pocket-area defects.
// Every check is total — a disabled or unconfigurable check reports Skipped,
// a clean part reports Pass, and a finding carries the defect rects for the
// overlay.
package defect

import (
	"fmt"

	"chipaoi/pkg/geometry"
)

// Result is the outcome of one defect check.
type Result struct {
	// Pass is true when the check ran and found nothing over its gates.
	Pass bool
	// Skipped is true when the check did not run (disabled, sentinel
	// parameter, or missing prerequisite geometry). A skipped check never
	// fails the part.
	Skipped bool
	// Count is the number of qualifying defect blobs.
	Count int
	// Worst is the dominant severity figure of the check: blob length for
	// cracks, blob area for surface defects, intensity drift for reference
	// checks, pixel offset for shift checks.
	Worst float64
	// Rects are the defect locations in frame coordinates, for the overlay.
	Rects []geometry.Rect
	// Message describes the outcome in operator terms.
	Message string
}

// Skip builds a skipped result.
func Skip(format string, args ...interface{}) Result {
	return Result{Skipped: true, Message: fmt.Sprintf(format, args...)}
}

// Clean builds a passing result.
func Clean() Result {
	return Result{Pass: true, Message: "OK"}
}

// Found builds a failing result from qualifying blob rects.
func Found(rects []geometry.Rect, worst float64, format string, args ...interface{}) Result {
	return Result{
		Count:   len(rects),
		Worst:   worst,
		Rects:   rects,
		Message: fmt.Sprintf(format, args...),
	}
}
