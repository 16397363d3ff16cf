package defect

import (
	"math"

	"gocv.io/x/gocv"

	"chipaoi/internal/config"
	"chipaoi/internal/imgproc"
	"chipaoi/internal/measure"
	"chipaoi/pkg/geometry"
)

// defaultSealBandHeight is the seal inspection band height when the station
// leaves it unset.
const defaultSealBandHeight = 16

// sealBands returns the seal inspection bands running along the top and
// bottom pocket edges.
func sealBands(pocket geometry.Rect, bandHeight int) (top, bottom geometry.Rect) {
	if bandHeight <= 0 {
		bandHeight = defaultSealBandHeight
	}
	top = geometry.NewRect(pocket.X, pocket.Y-bandHeight, pocket.Width, bandHeight)
	bottom = geometry.NewRect(pocket.X, pocket.Bottom(), pocket.Width, bandHeight)
	return top, bottom
}

// CheckSealStain finds contamination trapped under the sealing tape along
// the pocket edges.
func CheckSealStain(gray gocv.Mat, pocket geometry.Rect, bandHeight int, cfg config.SurfaceConfig) Result {
	if !cfg.Enabled() {
		return Skip("seal stain: not configured")
	}
	if !pocket.Valid() {
		return Skip("seal stain: pocket not located")
	}
	top, bottom := sealBands(pocket, bandHeight)
	return mergeZoneResults("seal stain",
		checkSurface(gray, top, cfg, "seal stain"),
		checkSurface(gray, bottom, cfg, "seal stain"))
}

// CheckSealDent finds bright dents in the sealing tape (crushed tape reflects
// the ring light).
func CheckSealDent(gray gocv.Mat, pocket geometry.Rect, bandHeight int, cfg config.SurfaceConfig) Result {
	if !cfg.Enabled() {
		return Skip("seal dent: not configured")
	}
	if !pocket.Valid() {
		return Skip("seal dent: pocket not located")
	}
	top, bottom := sealBands(pocket, bandHeight)
	return mergeZoneResults("seal dent",
		checkSurface(gray, top, cfg, "seal dent"),
		checkSurface(gray, bottom, cfg, "seal dent"))
}

// CheckSealShift measures how far the seal bond line has wandered from the
// center of its band. The bond edge is fitted as a near-horizontal line over
// the band above the pocket; deviation at the pocket center past MaxShift
// fails.
func CheckSealShift(gray gocv.Mat, pocket geometry.Rect, cfg config.SealShiftConfig) Result {
	if !cfg.Enabled() {
		return Skip("seal shift: not configured")
	}
	if !pocket.Valid() {
		return Skip("seal shift: pocket not located")
	}

	bandHeight := cfg.BandHeight
	if bandHeight <= 0 {
		bandHeight = defaultSealBandHeight
	}
	band, _ := sealBands(pocket, bandHeight)
	band = band.ClampTo(gray.Cols(), gray.Rows())
	if !band.Valid() || band.Height < 4 {
		return Skip("seal shift: seal band degenerate")
	}

	contrast := cfg.Contrast.Or(defaultCrackContrast)
	var line geometry.Line
	fitted := false
	for _, pol := range []imgproc.Polarity{imgproc.Dark, imgproc.Light} {
		pts := measure.CollectEdgePoints(gray, band, contrast, pol, true)
		if l, _, ok := measure.FitLineRobust(pts, false); ok {
			line, fitted = l, true
			break
		}
	}
	if !fitted {
		return Skip("seal shift: bond edge not found")
	}

	expected := float64(band.Y) + float64(band.Height)/2
	shift := math.Abs(line.Eval(pocket.Center().X) - expected)
	if shift > float64(cfg.MaxShift.Value()) {
		return Found([]geometry.Rect{band}, shift,
			"seal shift: bond line off by %.1f px, max %d", shift, cfg.MaxShift.Value())
	}
	return Clean()
}

// CheckSealHole compares the seal band brightness against the taught sealed
// baseline. A hole in the tape exposes the dark pocket beneath and pulls the
// mean down past the tolerance.
func CheckSealHole(gray gocv.Mat, pocket geometry.Rect, bandHeight int, teach config.TeachData, cfg config.ReferenceConfig) Result {
	if !cfg.Enabled {
		return Skip("seal hole: not configured")
	}
	if !pocket.Valid() {
		return Skip("seal hole: pocket not located")
	}
	if teach.SealMean <= 0 {
		return Skip("seal hole: no taught seal baseline")
	}

	top, bottom := sealBands(pocket, bandHeight)
	mean, ok := zoneMean(gray, cfg.Offsets, top, bottom)
	if !ok {
		return Skip("seal hole: seal bands degenerate")
	}

	lo, hi := cfg.MeanWindow()
	if mean < float64(lo) || mean > float64(hi) {
		return Found([]geometry.Rect{top, bottom}, mean,
			"seal hole: mean %.0f outside window [%d, %d]", mean, lo, hi)
	}
	drift := math.Abs(mean - teach.SealMean)
	if cfg.Tolerance.Enabled() && drift > float64(cfg.Tolerance.Value()) {
		return Found([]geometry.Rect{top, bottom}, drift,
			"seal hole: drift %.0f from taught %.0f exceeds %d", drift, teach.SealMean, cfg.Tolerance.Value())
	}
	return Clean()
}
