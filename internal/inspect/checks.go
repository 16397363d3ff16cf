package inspect

import (
	"fmt"

	"gocv.io/x/gocv"

	"chipaoi/internal/config"
	"chipaoi/internal/defect"
	"chipaoi/internal/measure"
	"chipaoi/internal/symbol"
	"chipaoi/pkg/geometry"
)

// cycle carries the per-frame state the checks share: the grayscale frame and
// the located geometry.
type cycle struct {
	gray   gocv.Mat
	body   geometry.Rect
	pocket geometry.Rect
}

// check is one catalogue entry. enabled is evaluated against the static
// configuration; run executes against the located frame. contrast is the knob
// a step-mode suggestion proposes to adjust, unset when the check has none.
// gate is the range a dimensional check measures against, nil for defect
// checks; step mode reports it alongside the measured value.
type check struct {
	name     string
	enabled  bool
	contrast config.Param
	gate     *config.RangeCheck
	run      func(c *cycle) defect.Result
}

// catalogue builds the ordered check list for the station. Order is fixed:
// dimensional measurements first (a mis-sized part invalidates everything
// downstream), then body, terminal, seal/pocket and finally the mark.
func (e *Engine) catalogue() []check {
	cfg := e.cfg
	var checks []check

	if !cfg.Device.EmbossTape {
		checks = append(checks, e.measureChecks()...)
		checks = append(checks,
			check{
				name:     "body crack",
				enabled:  cfg.BodyCrack.Enabled(),
				contrast: cfg.BodyCrack.Contrast,
				run: func(c *cycle) defect.Result {
					return defect.CheckBodyCrack(c.gray, c.body, cfg.BodyCrack)
				},
			},
			check{
				name:     "hairline crack",
				enabled:  cfg.HairlineCrack.Enabled(),
				contrast: cfg.HairlineCrack.Contrast,
				run: func(c *cycle) defect.Result {
					return defect.CheckHairlineCrack(c.gray, c.body, cfg.HairlineCrack)
				},
			},
			check{
				name:     "body smear",
				enabled:  cfg.BodySmear.Enabled(),
				contrast: cfg.BodySmear.Contrast,
				run: func(c *cycle) defect.Result {
					return defect.CheckBodySmear(c.gray, c.body, cfg.BodySmear)
				},
			},
			check{
				name:     "body stain",
				enabled:  cfg.BodyStain.Enabled(),
				contrast: cfg.BodyStain.Contrast,
				run: func(c *cycle) defect.Result {
					return defect.CheckBodyStain(c.gray, c.body, cfg.BodyStain)
				},
			},
			check{
				name:     "body color",
				enabled:  cfg.BodyColor.Enabled,
				contrast: cfg.BodyColor.Tolerance,
				run: func(c *cycle) defect.Result {
					return defect.CheckBodyColor(c.gray, c.body, e.teach, cfg.BodyColor)
				},
			},
			check{
				name:     "edge chip-off",
				enabled:  cfg.EdgeChipOff.Enabled(),
				contrast: cfg.EdgeChipOff.Contrast,
				run: func(c *cycle) defect.Result {
					return defect.CheckEdgeChipOff(c.gray, c.body, cfg.EdgeChipOff)
				},
			},
		)

		if !cfg.Device.NoTerminal {
			checks = append(checks, e.terminalChecks()...)
		}

		checks = append(checks, check{
			name:     "reverse chip",
			enabled:  cfg.ReverseChip.Enabled,
			contrast: cfg.ReverseChip.Tolerance,
			run: func(c *cycle) defect.Result {
				return defect.CheckReverseChip(c.gray, c.body, e.teach, cfg.ReverseChip)
			},
		})
	}

	if e.station == config.StationFeed {
		checks = append(checks, e.feedChecks()...)
	}

	if !cfg.Device.EmbossTape {
		checks = append(checks, check{
			name:     "symbol",
			enabled:  cfg.Symbol.Enabled,
			contrast: cfg.Symbol.Contrast,
			run:      e.runSymbol,
		})
	}

	return checks
}

func (e *Engine) measureChecks() []check {
	cfg := e.cfg
	contrast := cfg.Measure.Contrast
	entries := []struct {
		name string
		rc   config.RangeCheck
		fn   func(c *cycle, contrast int) measure.Measurement
	}{
		{"body length", cfg.Measure.BodyLength, func(c *cycle, k int) measure.Measurement {
			return measure.BodyLength(c.gray, c.body, k)
		}},
		{"body width", cfg.Measure.BodyWidth, func(c *cycle, k int) measure.Measurement {
			return measure.BodyWidth(c.gray, c.body, k)
		}},
		{"terminal gap", cfg.Measure.TerminalGap, func(c *cycle, k int) measure.Measurement {
			return measure.TerminalGap(c.gray, c.body, k)
		}},
	}

	noTerminal := cfg.Device.NoTerminal
	var checks []check
	for _, entry := range entries {
		entry := entry
		if entry.name == "terminal gap" && noTerminal {
			continue
		}
		checks = append(checks, check{
			name:     entry.name,
			enabled:  entry.rc.Enabled,
			contrast: contrast,
			gate:     &entry.rc,
			run: func(c *cycle) defect.Result {
				m := entry.fn(c, contrast.Or(0))
				return measurementResult(entry.name, m, entry.rc)
			},
		})
	}

	// Terminal length and width gate both ends independently; a bad end is
	// a failure no matter how the other measures.
	if !noTerminal {
		checks = append(checks,
			check{
				name:     "terminal length",
				enabled:  cfg.Measure.TerminalLength.Enabled,
				contrast: contrast,
				gate:     &cfg.Measure.TerminalLength,
				run: func(c *cycle) defect.Result {
					k := contrast.Or(0)
					return firstFailure(
						measurementResult("terminal length left", measure.TerminalLength(c.gray, c.body, k), cfg.Measure.TerminalLength),
						measurementResult("terminal length right", measure.TerminalLengthRight(c.gray, c.body, k), cfg.Measure.TerminalLength),
					)
				},
			},
			check{
				name:     "terminal width",
				enabled:  cfg.Measure.TerminalWidth.Enabled,
				contrast: contrast,
				gate:     &cfg.Measure.TerminalWidth,
				run: func(c *cycle) defect.Result {
					k := contrast.Or(0)
					left, right := terminalRects(c.body)
					return firstFailure(
						measurementResult("terminal width left", measure.TerminalWidth(c.gray, left, k), cfg.Measure.TerminalWidth),
						measurementResult("terminal width right", measure.TerminalWidth(c.gray, right, k), cfg.Measure.TerminalWidth),
					)
				},
			},
		)
	}
	return checks
}

// firstFailure returns the first non-passing result, or a clean result when
// every measurement passed.
func firstFailure(results ...defect.Result) defect.Result {
	for _, r := range results {
		if !r.Pass && !r.Skipped {
			return r
		}
	}
	return defect.Clean()
}

func (e *Engine) terminalChecks() []check {
	cfg := e.cfg
	return []check{
		{
			name:     "terminal pogo",
			enabled:  cfg.TerminalPogo.Enabled(),
			contrast: cfg.TerminalPogo.Contrast,
			run: func(c *cycle) defect.Result {
				return defect.CheckTerminalPogo(c.gray, c.body, cfg.TerminalPogo)
			},
		},
		{
			name:     "terminal chip-off",
			enabled:  cfg.TerminalChipOff.Enabled(),
			contrast: cfg.TerminalChipOff.Outer.Contrast,
			run: func(c *cycle) defect.Result {
				return defect.CheckTerminalChipOff(c.gray, c.body, c.pocket, cfg.TerminalChipOff)
			},
		},
		{
			name:     "terminal oxidation",
			enabled:  cfg.TerminalOxidation.Enabled,
			contrast: cfg.TerminalOxidation.Tolerance,
			run: func(c *cycle) defect.Result {
				return defect.CheckTerminalOxidation(c.gray, c.body, e.teach, cfg.TerminalOxidation)
			},
		},
		{
			name:     "terminal offset",
			enabled:  cfg.TerminalOffset.Enabled,
			contrast: cfg.TerminalOffset.Tolerance,
			run: func(c *cycle) defect.Result {
				return defect.CheckTerminalOffset(c.gray, c.body, cfg.TerminalOffset)
			},
		},
	}
}

func (e *Engine) feedChecks() []check {
	cfg := e.cfg
	return []check{
		{
			name:     "seal stain",
			enabled:  cfg.SealStain.Enabled(),
			contrast: cfg.SealStain.Contrast,
			run: func(c *cycle) defect.Result {
				return defect.CheckSealStain(c.gray, c.pocket, cfg.SealShift.BandHeight, cfg.SealStain)
			},
		},
		{
			name:     "seal shift",
			enabled:  cfg.SealShift.Enabled(),
			contrast: cfg.SealShift.Contrast,
			run: func(c *cycle) defect.Result {
				return defect.CheckSealShift(c.gray, c.pocket, cfg.SealShift)
			},
		},
		{
			name:     "seal dent",
			enabled:  cfg.SealDent.Enabled(),
			contrast: cfg.SealDent.Contrast,
			run: func(c *cycle) defect.Result {
				return defect.CheckSealDent(c.gray, c.pocket, cfg.SealShift.BandHeight, cfg.SealDent)
			},
		},
		{
			name:     "seal hole",
			enabled:  cfg.SealHole.Enabled,
			contrast: cfg.SealHole.Tolerance,
			run: func(c *cycle) defect.Result {
				return defect.CheckSealHole(c.gray, c.pocket, cfg.SealShift.BandHeight, e.teach, cfg.SealHole)
			},
		},
		{
			name:     "outer pocket stain",
			enabled:  cfg.OuterPocketStain.Enabled(),
			contrast: cfg.OuterPocketStain.Contrast,
			run: func(c *cycle) defect.Result {
				return defect.CheckOuterPocketStain(c.gray, c.pocket, cfg.OuterPocketStain)
			},
		},
		{
			name:     "emboss pickup",
			enabled:  cfg.Device.EmbossTape && cfg.EmbossPickup.Enabled(),
			contrast: cfg.EmbossPickup.Contrast,
			run: func(c *cycle) defect.Result {
				return defect.CheckEmbossPickup(c.gray, c.pocket, cfg.EmbossPickup)
			},
		},
	}
}

// runSymbol adapts mark recognition to the defect result shape.
func (e *Engine) runSymbol(c *cycle) defect.Result {
	if e.symbols == nil {
		return defect.Skip("symbol: no template library loaded")
	}
	res := symbol.Match(c.gray, c.body, e.symbols, e.cfg.Symbol)
	if !res.Recognized {
		return defect.Result{Message: res.Message, Worst: 0, Count: 1, Rects: []geometry.Rect{c.body}}
	}
	if e.cfg.Symbol.Expected != "" && !res.Verified {
		return defect.Result{Message: res.Message, Count: 1, Rects: charRects(res.Chars)}
	}
	if e.reader != nil {
		agree, text, err := symbol.CrossCheck(c.gray, res, e.reader)
		if err != nil {
			e.log.Warn().Err(err).Msg("symbol cross-check unavailable")
		} else if !agree {
			return defect.Result{
				Message: fmt.Sprintf("symbol: cross-check read %q, matcher read %q", text, res.Sequence),
				Count:   1,
				Rects:   charRects(res.Chars),
			}
		}
	}
	return defect.Clean()
}

func charRects(chars []symbol.CharMatch) []geometry.Rect {
	rects := make([]geometry.Rect, len(chars))
	for i, c := range chars {
		rects[i] = c.Bounds
	}
	return rects
}

// measurementResult folds a dimensional measurement against its range gate.
func measurementResult(name string, m measure.Measurement, rc config.RangeCheck) defect.Result {
	if !m.Valid {
		return defect.Result{Message: fmt.Sprintf("%s: %s", name, m.Message), Count: 1}
	}
	if !rc.Contains(m.Value) {
		return defect.Result{
			Message: fmt.Sprintf("%s: %.1f px outside [%.1f, %.1f]", name, m.Value, rc.Min, rc.Max),
			Count:   1,
			Worst:   m.Value,
		}
	}
	return defect.Clean()
}

// terminalRects reuses the defect package's terminal zoning so the width
// measurement and the terminal checks look at the same windows.
func terminalRects(body geometry.Rect) (geometry.Rect, geometry.Rect) {
	return defect.TerminalZones(body)
}
