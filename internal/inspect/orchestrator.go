package inspect

import (
	"github.com/rs/zerolog"

	"chipaoi/internal/config"
	"chipaoi/internal/defect"
	"chipaoi/internal/frame"
	"chipaoi/internal/locate"
	"chipaoi/internal/symbol"
)

// Engine runs inspection cycles for one station. It is built once per station
// from the validated configuration and taught data; Inspect is then called
// once per captured frame.
type Engine struct {
	cfg     config.InspectionConfig
	teach   config.TeachData
	station config.StationKind

	log        zerolog.Logger
	symbols    *symbol.Library
	reader     symbol.Reader
	calibrator Calibrator
	observer   func(name string)

	shift locate.ShiftRecord
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithSymbolLibrary provides the taught mark templates. Without a library
// the symbol check is skipped.
func WithSymbolLibrary(lib *symbol.Library) Option {
	return func(e *Engine) { e.symbols = lib }
}

// WithSymbolReader enables the OCR cross-check of recognized marks.
func WithSymbolReader(r symbol.Reader) Option {
	return func(e *Engine) { e.reader = r }
}

// WithCalibrator enables step mode: failing checks are presented to the
// calibrator before the cycle ends.
func WithCalibrator(c Calibrator) Option {
	return func(e *Engine) { e.calibrator = c }
}

// WithCheckObserver registers a hook called once per executed check, before
// the check runs. Used by operator tooling to surface cycle progress.
func WithCheckObserver(fn func(name string)) Option {
	return func(e *Engine) { e.observer = fn }
}

// NewEngine builds an engine after validating the configuration.
func NewEngine(cfg config.InspectionConfig, teach config.TeachData, station config.StationKind, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:     cfg,
		teach:   teach,
		station: station,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Shift returns the accumulated pocket shift statistics for the session.
func (e *Engine) Shift() locate.ShiftRecord {
	return e.shift
}

// Inspect runs one full cycle on the frame. The cycle is fail-fast: the
// first failing stage produces the verdict and later checks never run. In
// step mode a failing check is offered to the calibrator first; a declined
// review pauses the cycle instead of failing it. The returned result carries
// the annotated overlay; the caller releases it with Close.
func (e *Engine) Inspect(f *frame.Frame) TestResult {
	res := e.run(f)
	res.Overlay = RenderOverlay(f, res)
	return res
}

func (e *Engine) run(f *frame.Frame) TestResult {
	var res TestResult

	if err := config.ValidateTeach(e.teach, e.station); err != nil {
		res.Verdict = Fail
		res.FailedCheck = "teach"
		res.Message = err.Error()
		return res
	}

	gray := f.Gray()

	res.Package = locate.LocatePackage(gray, e.teach, e.cfg.PackageLocate, e.log)
	if !res.Package.Detected {
		return e.failLocate(res, "package locate", res.Package.Message, e.cfg.PackageLocate.Contrast)
	}

	c := &cycle{gray: gray, body: res.Package.Rect}

	if e.station == config.StationFeed && e.cfg.PocketLocate.Enabled {
		res.Pocket = locate.LocatePocket(gray, e.teach, e.cfg.PocketLocate, &e.shift, e.log)
		if !res.Pocket.Detected {
			return e.failLocate(res, "pocket locate", res.Pocket.Message, e.cfg.PocketLocate.Contrast)
		}
		c.pocket = res.Pocket.Rect
	}

	checks := e.catalogue()
	enabled := 0
	for _, chk := range checks {
		if chk.enabled {
			enabled++
		}
	}
	if enabled == 0 {
		res.Verdict = Pass
		res.Message = "No tests enabled"
		return res
	}

	for _, chk := range checks {
		if !chk.enabled {
			continue
		}
		if e.observer != nil {
			e.observer(chk.name)
		}
		outcome := chk.run(c)
		res.Checks = append(res.Checks, outcomeFromDefect(chk.name, outcome))

		if outcome.Skipped {
			e.log.Debug().Str("check", chk.name).Str("detail", outcome.Message).Msg("check skipped")
			continue
		}
		if outcome.Pass {
			continue
		}

		e.log.Info().Str("check", chk.name).Str("detail", outcome.Message).Msg("check failed")
		if e.calibrator != nil {
			s := e.suggestionFor(chk, outcome)
			if !e.calibrator.Review(s) {
				res.Verdict = Pause
				res.FailedCheck = chk.name
				res.Message = outcome.Message
				return res
			}
		}
		return e.fail(res, chk.name, outcome.Message)
	}

	res.Verdict = Pass
	res.Message = "OK"
	return res
}

// failLocate ends a cycle on a location failure, offering the calibrator a
// contrast adjustment first in step mode.
func (e *Engine) failLocate(res TestResult, check, message string, contrast config.Param) TestResult {
	if e.calibrator != nil {
		s := StepSuggestion{Check: check, Reason: message}
		if contrast.Enabled() {
			s.Parameter = "contrast"
			s.Current = contrast.Value()
			s.Suggested = contrast.Value() - 5
		}
		if !e.calibrator.Review(s) {
			res.Verdict = Pause
			res.FailedCheck = check
			res.Message = message
			return res
		}
	}
	return e.fail(res, check, message)
}

// fail finalizes a failing cycle.
func (e *Engine) fail(res TestResult, check, message string) TestResult {
	res.Verdict = Fail
	res.FailedCheck = check
	res.Message = message
	e.log.Info().Str("check", check).Str("detail", message).Msg("cycle failed")
	return res
}

// suggestionFor proposes the most likely parameter adjustment for a failing
// check: the family's contrast knob, nudged one step looser. For dimensional
// checks the measured value, the violated range and the range that would have
// accepted the part are carried alongside, so the calibrator can retune the
// gate instead of the contrast.
func (e *Engine) suggestionFor(chk check, outcome defect.Result) StepSuggestion {
	s := StepSuggestion{
		Check:  chk.name,
		Reason: outcome.Message,
	}
	if chk.contrast.Enabled() {
		s.Parameter = "contrast"
		s.Current = chk.contrast.Value()
		s.Suggested = chk.contrast.Value() + 5
	}
	if chk.gate != nil && outcome.Worst > 0 {
		s.Measured = outcome.Worst
		s.ExpectedMin = chk.gate.Min
		s.ExpectedMax = chk.gate.Max
		s.SuggestedMin, s.SuggestedMax = chk.gate.Widened(outcome.Worst)
	}
	return s
}
