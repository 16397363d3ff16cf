package inspect

// StepSuggestion is the engine's proposed parameter adjustment when a check
// fails in step mode. Suggested is advisory; the calibrator decides what to
// actually write back to the station configuration.
type StepSuggestion struct {
	// Check names the failing check.
	Check string
	// Parameter names the knob most likely at fault ("contrast",
	// "min_area", ...). Empty when the engine has no concrete suggestion.
	Parameter string
	// Current and Suggested are the present and proposed values.
	Current   int
	Suggested int
	// Measured and ExpectedMin/ExpectedMax describe a failed dimensional
	// gate: the value the frame actually measured and the configured range
	// it fell outside. Zero for defect checks, which carry no dimension.
	Measured    float64
	ExpectedMin float64
	ExpectedMax float64
	// SuggestedMin and SuggestedMax are the range that would have accepted
	// Measured, for the calibrator to write back if the part is good.
	SuggestedMin float64
	SuggestedMax float64
	// Reason explains the failure in operator terms.
	Reason string
}

// Calibrator is the interactive surface of step mode. Review is called once
// per failing check; returning true resumes the cycle with the check counted
// as failed, returning false pauses the cycle for manual intervention.
type Calibrator interface {
	Review(s StepSuggestion) bool
}

// CalibratorFunc adapts a function to the Calibrator interface.
type CalibratorFunc func(s StepSuggestion) bool

// Review implements Calibrator.
func (f CalibratorFunc) Review(s StepSuggestion) bool {
	return f(s)
}
