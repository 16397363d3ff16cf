// Package config defines the typed inspection configuration and taught
// reference data consumed by the inspection engine. The engine never reads
// files itself; loaders here parse the externally-produced JSON once per
// station and the validated structs are passed in.
package config

import (
	"chipaoi/pkg/geometry"
)

// StationKind selects the check catalogue the orchestrator builds.
type StationKind int

const (
	// StationChip is a top/bottom-style body inspection station.
	StationChip StationKind = iota
	// StationFeed is a carrier-tape feed station with pocket-relative checks.
	StationFeed
)

// String implements fmt.Stringer.
func (k StationKind) String() string {
	switch k {
	case StationChip:
		return "chip"
	case StationFeed:
		return "feed"
	}
	return "unknown"
}

// Offsets shrink an inspection window independently on each side, in pixels.
type Offsets struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// Apply shrinks the rect by the offsets.
func (o Offsets) Apply(r geometry.Rect) geometry.Rect {
	return r.Shrink(o.Left, o.Top, o.Right, o.Bottom)
}

// CornerMask selects how rounded package corners are excluded from an
// inspection window.
type CornerMask int

const (
	// CornerNone inspects the full window.
	CornerNone CornerMask = iota
	// CornerChamfer cuts triangular corners off the window.
	CornerChamfer
	// CornerEllipse restricts inspection to the inscribed ellipse.
	CornerEllipse
)

// DeviceConfig holds device-level flags that suppress whole check groups.
type DeviceConfig struct {
	// NoTerminal is set for devices without metallized terminals; every
	// terminal check is suppressed.
	NoTerminal bool `json:"no_terminal"`
	// EmbossTape restricts a feed station to pocket-only checks.
	EmbossTape bool `json:"emboss_tape"`
}

// PackageLocateConfig controls package location (always enabled; location is
// a precondition for everything else).
type PackageLocateConfig struct {
	// UseTaughtPosition skips detection and validates the taught rect.
	UseTaughtPosition bool `json:"use_taught_position"`
	// EdgeScan enables the rotation-compensated edge-scan strategy.
	EdgeScan bool `json:"edge_scan"`
	// Contrast is the adaptive binarization delta from the ROI mean.
	Contrast Param `json:"contrast"`
	// ScanAngleDeg rotates the image before edge scanning.
	ScanAngleDeg float64 `json:"scan_angle_deg"`
	// ReverseEdge adds a 180 degree rotation to the scan angle.
	ReverseEdge bool `json:"reverse_edge"`
	// ParallelToleranceDeg is the max deviation of the fitted min-area
	// rect's angle from axis alignment. Zero means 10.
	ParallelToleranceDeg float64 `json:"parallel_tolerance_deg"`
	// BodyDark is the expected polarity: true when the body is darker than
	// the background.
	BodyDark bool `json:"body_dark"`
	// MinIndexY rejects detections above this row (index-gap rejection).
	MinIndexY Param `json:"min_index_y"`
	// Downsample runs detection on a 1/N scaled image. 0 or 1 = full size.
	Downsample int `json:"downsample"`
	// Recheck re-runs detection on an expanded ROI with RecheckContrast.
	Recheck         bool  `json:"recheck"`
	RecheckContrast Param `json:"recheck_contrast"`
	// FlipCheck vetoes detection when both end bands contradict the
	// expected body polarity.
	FlipCheck bool `json:"flip_check"`
	// MinAreaRatio/MaxAreaRatio bound detected area relative to the taught
	// area. Zeroes mean 0.5 and 2.0.
	MinAreaRatio float64 `json:"min_area_ratio"`
	MaxAreaRatio float64 `json:"max_area_ratio"`
}

// PocketLocateConfig controls carrier-tape pocket location on feed stations.
type PocketLocateConfig struct {
	Enabled bool `json:"enabled"`
	// Contrast offsets the black/white reference level when binarizing.
	Contrast Param `json:"contrast"`
	// PostSealContrast is the low-contrast fallback tried after sealing
	// tape dulls the pocket edges. Unset disables the fallback.
	PostSealContrast Param `json:"post_seal_contrast"`
	// Shift tolerances inflate the taught pocket into the search window,
	// independently per direction.
	ShiftTolXPlus  int `json:"shift_tol_x_plus"`
	ShiftTolXMinus int `json:"shift_tol_x_minus"`
	ShiftTolYPlus  int `json:"shift_tol_y_plus"`
	ShiftTolYMinus int `json:"shift_tol_y_minus"`
	// PaperDustMask removes blobs touching the search window border before
	// scoring pocket hypotheses.
	PaperDustMask bool `json:"paper_dust_mask"`
	// BodyDustMask inpaints dust on the left/right flanking regions and
	// retries detection once.
	BodyDustMask bool `json:"body_dust_mask"`
	// Direction validation windows. At least one mode must be enabled for
	// the angle gate to apply.
	ParallelMode      bool    `json:"parallel_mode"`
	NonParallelMode   bool    `json:"non_parallel_mode"`
	AngleToleranceDeg float64 `json:"angle_tolerance_deg"`
	// TrackShift feeds every detection into the session ShiftRecord.
	TrackShift bool `json:"track_shift"`
}

// RangeCheck is an enabled min/max gate over a measured dimension in pixels.
type RangeCheck struct {
	Enabled bool    `json:"enabled"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Contains reports whether v falls inside the configured range.
func (rc RangeCheck) Contains(v float64) bool {
	return v >= rc.Min && v <= rc.Max
}

// Widened returns the range expanded just enough to admit v, with a small
// margin so the next cycle does not sit on the boundary. A value already
// inside the range returns it unchanged.
func (rc RangeCheck) Widened(v float64) (float64, float64) {
	const margin = 2
	lo, hi := rc.Min, rc.Max
	if v < lo {
		lo = v - margin
	}
	if v > hi {
		hi = v + margin
	}
	return lo, hi
}

// MeasureConfig controls the dimensional checks.
type MeasureConfig struct {
	// Contrast is the adaptive binarization delta used by edge scans.
	Contrast       Param      `json:"contrast"`
	BodyLength     RangeCheck `json:"body_length"`
	BodyWidth      RangeCheck `json:"body_width"`
	TerminalLength RangeCheck `json:"terminal_length"`
	TerminalWidth  RangeCheck `json:"terminal_width"`
	TerminalGap    RangeCheck `json:"terminal_gap"`
}

// CrackConfig controls crack-style detectors (body crack, hairline crack).
// The check is considered enabled when MinLength is configured; Contrast
// falls back to 30 when unset, preserving the legacy default (see DESIGN.md).
type CrackConfig struct {
	Contrast      Param   `json:"contrast"`
	MinLength     Param   `json:"min_length"`
	MinElongation Param   `json:"min_elongation"`
	Offsets       Offsets `json:"offsets"`
}

// Enabled reports whether the crack check should run.
func (c CrackConfig) Enabled() bool {
	return c.MinLength.Enabled()
}

// SurfaceConfig controls generic blob-defect detectors (smear, stain, pogo,
// sealing stain/dent, outer-pocket stain, emboss pickup). The check runs when
// Contrast is configured.
type SurfaceConfig struct {
	// White selects bright defects (mean + contrast); default is dark
	// defects (mean - contrast).
	White bool `json:"white"`
	// Contrast is the adaptive threshold delta. Sentinel skips the check.
	Contrast Param `json:"contrast"`
	// MinArea/MinSquare gate kept contours; CombineAnd switches the
	// default OR combination to AND.
	MinArea    Param `json:"min_area"`
	MinSquare  Param `json:"min_square"`
	CombineAnd bool  `json:"combine_and"`
	// Offsets shrink the inspection window; Corner masks rounded corners.
	Offsets Offsets    `json:"offsets"`
	Corner  CornerMask `json:"corner_mask"`
	// ReflectionFilter drops contours over 10:1 aspect in the disqualifying
	// direction (vertical reflections from the pocket walls).
	ReflectionFilter bool `json:"reflection_filter"`
}

// Enabled reports whether the surface check should run.
func (c SurfaceConfig) Enabled() bool {
	return c.Contrast.Enabled()
}

// ChipOffConfig controls terminal chip-off detection with separate inner and
// outer windows.
type ChipOffConfig struct {
	Inner SurfaceConfig `json:"inner"`
	Outer SurfaceConfig `json:"outer"`
	// PocketEdgeFilter excludes blobs touching the detected pocket
	// boundary (pocket shadows masquerading as chip-off).
	PocketEdgeFilter bool `json:"pocket_edge_filter"`
}

// Enabled reports whether either chip-off variant should run.
func (c ChipOffConfig) Enabled() bool {
	return c.Inner.Enabled() || c.Outer.Enabled()
}

// ReferenceConfig controls taught-reference intensity comparisons (terminal
// oxidation, terminal offset, reverse chip, sealing hole reference). MinMean
// and MaxMean form the valid intensity window; 255 is a legitimate inclusive
// upper bound here, so the window is plain ints gated by Enabled rather than
// sentinel params.
type ReferenceConfig struct {
	Enabled bool `json:"enabled"`
	// Tolerance is the allowed absolute drift from the taught mean.
	Tolerance Param `json:"tolerance"`
	// MinMean/MaxMean bound the acceptable measured mean. MaxMean zero
	// means 255.
	MinMean int     `json:"min_mean"`
	MaxMean int     `json:"max_mean"`
	Offsets Offsets `json:"offsets"`
}

// MeanWindow returns the effective intensity window.
func (c ReferenceConfig) MeanWindow() (int, int) {
	maxMean := c.MaxMean
	if maxMean <= 0 {
		maxMean = 255
	}
	return c.MinMean, maxMean
}

// SealShiftConfig gates the sealing-tape shift measurement.
type SealShiftConfig struct {
	// MaxShift is the allowed seal edge offset in pixels. Sentinel skips.
	MaxShift Param `json:"max_shift"`
	// Contrast for the seal edge scan.
	Contrast Param `json:"contrast"`
	// BandHeight is the height of the seal band above the pocket.
	BandHeight int `json:"band_height"`
}

// Enabled reports whether the seal shift check should run.
func (c SealShiftConfig) Enabled() bool {
	return c.MaxShift.Enabled()
}

// SymbolConfig controls laser-mark recognition.
type SymbolConfig struct {
	Enabled bool `json:"enabled"`
	// AcceptScore is the correlation percentage (0-100) a template must
	// reach; RejectScore is informational only.
	AcceptScore Param `json:"accept_score"`
	RejectScore Param `json:"reject_score"`
	// Contrast for mark blob extraction; marks are brighter than the body.
	Contrast Param `json:"contrast"`
	// MinArea gates mark blobs.
	MinArea Param `json:"min_area"`
	// Expected is the optional expected sequence; empty skips verification.
	Expected string  `json:"expected"`
	Offsets  Offsets `json:"offsets"`
}

// InspectionConfig is the complete per-station configuration: one flat
// parameter family per check, loaded once and passed read-only into the
// orchestrator.
type InspectionConfig struct {
	Device        DeviceConfig        `json:"device"`
	PackageLocate PackageLocateConfig `json:"package_locate"`
	PocketLocate  PocketLocateConfig  `json:"pocket_locate"`
	Measure       MeasureConfig       `json:"measure"`

	BodyCrack     CrackConfig     `json:"body_crack"`
	HairlineCrack CrackConfig     `json:"hairline_crack"`
	BodySmear     SurfaceConfig   `json:"body_smear"`
	BodyStain     SurfaceConfig   `json:"body_stain"`
	BodyColor     ReferenceConfig `json:"body_color"`
	EdgeChipOff   SurfaceConfig   `json:"edge_chip_off"`

	TerminalPogo      SurfaceConfig   `json:"terminal_pogo"`
	TerminalChipOff   ChipOffConfig   `json:"terminal_chip_off"`
	TerminalOxidation ReferenceConfig `json:"terminal_oxidation"`
	TerminalOffset    ReferenceConfig `json:"terminal_offset"`
	ReverseChip       ReferenceConfig `json:"reverse_chip"`

	SealStain        SurfaceConfig   `json:"seal_stain"`
	SealShift        SealShiftConfig `json:"seal_shift"`
	SealDent         SurfaceConfig   `json:"seal_dent"`
	SealHole         ReferenceConfig `json:"seal_hole"`
	OuterPocketStain SurfaceConfig   `json:"outer_pocket_stain"`
	EmbossPickup     SurfaceConfig   `json:"emboss_pickup"`

	Symbol SymbolConfig `json:"symbol"`
}

// TeachData is the per-station taught geometry and intensity baselines.
// Created by the external teach operation, read-only during inspection.
type TeachData struct {
	// Package is the taught package rect. Required.
	Package geometry.Rect `json:"package"`
	// Pocket is the taught pocket rect. Required on feed stations.
	Pocket geometry.Rect `json:"pocket"`
	// Intensity baselines captured at teach time, used as drift references.
	BodyMean     float64 `json:"body_mean"`
	TerminalMean float64 `json:"terminal_mean"`
	SealMean     float64 `json:"seal_mean"`
	ReverseMean  float64 `json:"reverse_mean"`
}

// HasPackage reports whether a package was taught.
func (t TeachData) HasPackage() bool {
	return t.Package.Valid()
}

// HasPocket reports whether a pocket was taught.
func (t TeachData) HasPocket() bool {
	return t.Pocket.Valid()
}
