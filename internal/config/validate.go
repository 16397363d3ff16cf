package config

import (
	"fmt"
)

// Validate rejects inconsistent configurations before any frame is processed.
// A misconfigured station must never reach the inspection loop; detection
// code assumes the relations checked here.
func (c *InspectionConfig) Validate() error {
	if c.Symbol.Enabled && c.Symbol.AcceptScore.Enabled() && c.Symbol.RejectScore.Enabled() {
		if c.Symbol.AcceptScore.Value() <= c.Symbol.RejectScore.Value() {
			return fmt.Errorf("symbol: accept score %d must exceed reject score %d",
				c.Symbol.AcceptScore.Value(), c.Symbol.RejectScore.Value())
		}
	}

	ranges := []struct {
		name string
		rc   RangeCheck
	}{
		{"body_length", c.Measure.BodyLength},
		{"body_width", c.Measure.BodyWidth},
		{"terminal_length", c.Measure.TerminalLength},
		{"terminal_width", c.Measure.TerminalWidth},
		{"terminal_gap", c.Measure.TerminalGap},
	}
	for _, r := range ranges {
		if r.rc.Enabled && r.rc.Min > r.rc.Max {
			return fmt.Errorf("measure %s: min %.1f exceeds max %.1f", r.name, r.rc.Min, r.rc.Max)
		}
	}

	refs := []struct {
		name string
		rc   ReferenceConfig
	}{
		{"body_color", c.BodyColor},
		{"terminal_oxidation", c.TerminalOxidation},
		{"terminal_offset", c.TerminalOffset},
		{"reverse_chip", c.ReverseChip},
		{"seal_hole", c.SealHole},
	}
	for _, r := range refs {
		if !r.rc.Enabled {
			continue
		}
		lo, hi := r.rc.MeanWindow()
		if lo > hi {
			return fmt.Errorf("%s: min mean %d exceeds max mean %d", r.name, lo, hi)
		}
	}

	// The recheck pass must not be stricter than the primary detection:
	// a teach-time contrast above the inspection contrast makes the refine
	// window impossible to satisfy.
	if c.PackageLocate.Recheck && c.PackageLocate.RecheckContrast.Enabled() && c.PackageLocate.Contrast.Enabled() {
		if c.PackageLocate.RecheckContrast.Value() > c.PackageLocate.Contrast.Value() {
			return fmt.Errorf("package locate: recheck contrast %d exceeds detection contrast %d",
				c.PackageLocate.RecheckContrast.Value(), c.PackageLocate.Contrast.Value())
		}
	}

	if c.PocketLocate.Enabled {
		p := c.PocketLocate
		if p.ShiftTolXPlus < 0 || p.ShiftTolXMinus < 0 || p.ShiftTolYPlus < 0 || p.ShiftTolYMinus < 0 {
			return fmt.Errorf("pocket locate: shift tolerances must be non-negative")
		}
	}

	if c.PackageLocate.Downsample < 0 {
		return fmt.Errorf("package locate: downsample must be non-negative")
	}

	return nil
}

// ValidateTeach rejects teach data that cannot support the station's checks.
func ValidateTeach(t TeachData, station StationKind) error {
	if !t.HasPackage() {
		return fmt.Errorf("teach data: package rect not taught")
	}
	if station == StationFeed && !t.HasPocket() {
		return fmt.Errorf("teach data: pocket rect not taught")
	}
	return nil
}
