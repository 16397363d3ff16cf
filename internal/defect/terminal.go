package defect

import (
	"math"

	"gocv.io/x/gocv"

	"chipaoi/internal/config"
	"chipaoi/internal/imgproc"
	"chipaoi/pkg/geometry"
)

// terminalFrac is the fraction of the body length each terminal zone covers
// from its end.
const terminalFrac = 0.30

// pocketEdgeTol is how close to the detected pocket boundary a chip-off blob
// must be to be discarded as a pocket shadow.
const pocketEdgeTol = 3

// TerminalZones returns the left and right terminal windows of a located
// body.
func TerminalZones(body geometry.Rect) (left, right geometry.Rect) {
	w := int(float64(body.Width) * terminalFrac)
	if w < 2 {
		w = 2
	}
	left = geometry.NewRect(body.X, body.Y, w, body.Height)
	right = geometry.NewRect(body.Right()-w, body.Y, w, body.Height)
	return left, right
}

// CheckTerminalPogo finds plating voids (pogo marks) on both terminals.
func CheckTerminalPogo(gray gocv.Mat, body geometry.Rect, cfg config.SurfaceConfig) Result {
	if !cfg.Enabled() {
		return Skip("terminal pogo: not configured")
	}
	left, right := TerminalZones(body)
	return mergeZoneResults("terminal pogo",
		checkSurface(gray, left, cfg, "terminal pogo"),
		checkSurface(gray, right, cfg, "terminal pogo"))
}

// CheckTerminalChipOff finds missing plating at the terminal ends. The inner
// and outer halves of each terminal carry separate gates; the pocket edge
// filter discards blobs hugging the detected pocket boundary, which are
// shadows of the pocket wall rather than damage.
func CheckTerminalChipOff(gray gocv.Mat, body, pocket geometry.Rect, cfg config.ChipOffConfig) Result {
	if !cfg.Enabled() {
		return Skip("terminal chip-off: not configured")
	}
	left, right := TerminalZones(body)

	type zone struct {
		window geometry.Rect
		cfg    config.SurfaceConfig
	}
	zones := []zone{
		{outerHalf(left, false), cfg.Outer},
		{innerHalf(left, false), cfg.Inner},
		{outerHalf(right, true), cfg.Outer},
		{innerHalf(right, true), cfg.Inner},
	}

	var rects []geometry.Rect
	worst := 0.0
	ran := false
	for _, z := range zones {
		if !z.cfg.Enabled() {
			continue
		}
		blobs, _, ok := surfaceBlobs(gray, z.window, z.cfg)
		if !ok {
			continue
		}
		ran = true
		for _, b := range blobs {
			if cfg.PocketEdgeFilter && pocket.Valid() && b.Bounds.TouchesBorder(pocket, pocketEdgeTol) {
				continue
			}
			rects = append(rects, b.Bounds)
			if b.Area > worst {
				worst = b.Area
			}
		}
	}
	if !ran {
		return Skip("terminal chip-off: no usable inspection zone")
	}
	if len(rects) == 0 {
		return Clean()
	}
	return Found(rects, worst, "terminal chip-off: %d defect(s), worst area %.0f px", len(rects), worst)
}

func outerHalf(zone geometry.Rect, rightSide bool) geometry.Rect {
	half := zone.Width / 2
	if rightSide {
		return geometry.NewRect(zone.X+zone.Width-half, zone.Y, half, zone.Height)
	}
	return geometry.NewRect(zone.X, zone.Y, half, zone.Height)
}

func innerHalf(zone geometry.Rect, rightSide bool) geometry.Rect {
	half := zone.Width - zone.Width/2
	if rightSide {
		return geometry.NewRect(zone.X, zone.Y, half, zone.Height)
	}
	return geometry.NewRect(zone.X+zone.Width/2, zone.Y, half, zone.Height)
}

// CheckTerminalOxidation compares the terminal plating brightness against the
// taught baseline. Oxidized plating reads darker; drift past the tolerance
// fails.
func CheckTerminalOxidation(gray gocv.Mat, body geometry.Rect, teach config.TeachData, cfg config.ReferenceConfig) Result {
	if !cfg.Enabled {
		return Skip("terminal oxidation: not configured")
	}
	if teach.TerminalMean <= 0 {
		return Skip("terminal oxidation: no taught terminal baseline")
	}
	left, right := TerminalZones(body)
	mean, ok := zoneMean(gray, cfg.Offsets, left, right)
	if !ok {
		return Skip("terminal oxidation: terminal zones degenerate")
	}

	lo, hi := cfg.MeanWindow()
	if mean < float64(lo) || mean > float64(hi) {
		return Found([]geometry.Rect{left, right}, mean,
			"terminal oxidation: mean %.0f outside window [%d, %d]", mean, lo, hi)
	}
	drift := math.Abs(mean - teach.TerminalMean)
	if cfg.Tolerance.Enabled() && drift > float64(cfg.Tolerance.Value()) {
		return Found([]geometry.Rect{left, right}, drift,
			"terminal oxidation: drift %.0f from taught %.0f exceeds %d", drift, teach.TerminalMean, cfg.Tolerance.Value())
	}
	return Clean()
}

// CheckTerminalOffset compares the two terminals' brightness against each
// other. Plating offset leaves one end visibly lighter; an asymmetry past the
// tolerance fails.
func CheckTerminalOffset(gray gocv.Mat, body geometry.Rect, cfg config.ReferenceConfig) Result {
	if !cfg.Enabled {
		return Skip("terminal offset: not configured")
	}
	if !cfg.Tolerance.Enabled() {
		return Skip("terminal offset: no tolerance configured")
	}
	left, right := TerminalZones(body)
	leftMean, okL := singleZoneMean(gray, cfg.Offsets, left)
	rightMean, okR := singleZoneMean(gray, cfg.Offsets, right)
	if !okL || !okR {
		return Skip("terminal offset: terminal zones degenerate")
	}

	asym := math.Abs(leftMean - rightMean)
	if asym > float64(cfg.Tolerance.Value()) {
		worse := left
		if rightMean < leftMean {
			worse = right
		}
		return Found([]geometry.Rect{worse}, asym,
			"terminal offset: asymmetry %.0f (L=%.0f R=%.0f) exceeds %d",
			asym, leftMean, rightMean, cfg.Tolerance.Value())
	}
	return Clean()
}

// CheckReverseChip detects an upside-down part by comparing the body center
// brightness against the taught top-face and bottom-face baselines. A center
// mean closer to the reverse baseline than to the body baseline fails.
func CheckReverseChip(gray gocv.Mat, body geometry.Rect, teach config.TeachData, cfg config.ReferenceConfig) Result {
	if !cfg.Enabled {
		return Skip("reverse chip: not configured")
	}
	if teach.BodyMean <= 0 || teach.ReverseMean <= 0 {
		return Skip("reverse chip: no taught face baselines")
	}

	center := cfg.Offsets.Apply(CenterZone(body)).ClampTo(gray.Cols(), gray.Rows())
	if !center.Valid() {
		return Skip("reverse chip: center zone degenerate")
	}
	mean := imgproc.MeanLevelRect(gray, center.X, center.Y, center.Width, center.Height)

	lo, hi := cfg.MeanWindow()
	if mean < float64(lo) || mean > float64(hi) {
		return Found([]geometry.Rect{center}, mean,
			"reverse chip: mean %.0f outside window [%d, %d]", mean, lo, hi)
	}
	dBody := math.Abs(mean - teach.BodyMean)
	dReverse := math.Abs(mean - teach.ReverseMean)
	if dReverse < dBody {
		return Found([]geometry.Rect{center}, dBody,
			"reverse chip: mean %.0f matches reverse face %.0f better than top face %.0f",
			mean, teach.ReverseMean, teach.BodyMean)
	}
	return Clean()
}

// CenterZone is the middle third of the body, clear of both terminals.
func CenterZone(body geometry.Rect) geometry.Rect {
	w := body.Width / 3
	if w < 2 {
		w = 2
	}
	return geometry.NewRect(body.X+(body.Width-w)/2, body.Y, w, body.Height)
}

// zoneMean averages the intensity over both zones after applying offsets.
func zoneMean(gray gocv.Mat, off config.Offsets, a, b geometry.Rect) (float64, bool) {
	ma, okA := singleZoneMean(gray, off, a)
	mb, okB := singleZoneMean(gray, off, b)
	switch {
	case okA && okB:
		return (ma + mb) / 2, true
	case okA:
		return ma, true
	case okB:
		return mb, true
	}
	return 0, false
}

func singleZoneMean(gray gocv.Mat, off config.Offsets, zone geometry.Rect) (float64, bool) {
	zone = off.Apply(zone).ClampTo(gray.Cols(), gray.Rows())
	if !zone.Valid() {
		return 0, false
	}
	return imgproc.MeanLevelRect(gray, zone.X, zone.Y, zone.Width, zone.Height), true
}

// mergeZoneResults folds per-zone results of the same check into one. Any
// finding wins; all zones skipped stays skipped.
func mergeZoneResults(label string, results ...Result) Result {
	var rects []geometry.Rect
	worst := 0.0
	ran := false
	for _, r := range results {
		if r.Skipped {
			continue
		}
		ran = true
		rects = append(rects, r.Rects...)
		if r.Worst > worst {
			worst = r.Worst
		}
	}
	if !ran {
		return Skip("%s: no usable inspection zone", label)
	}
	if len(rects) == 0 {
		return Clean()
	}
	return Found(rects, worst, "%s: %d defect(s), worst %.0f", label, len(rects), worst)
}
