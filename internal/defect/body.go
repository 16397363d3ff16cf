package defect

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"chipaoi/internal/config"
	"chipaoi/internal/imgproc"
	"chipaoi/pkg/geometry"
)

const (
	// defaultCrackContrast is used when the crack contrast is left unset.
	// Cracks read strongly against ceramic bodies, so the stations have
	// always run with this delta unless tuned.
	defaultCrackContrast = 30

	// defaultCrackElongation separates slender cracks from compact stains
	// when no elongation gate is configured.
	defaultCrackElongation = 3

	// crackBorderTol: blobs within this many pixels of the window border
	// are scan artifacts of the body edge, not cracks.
	crackBorderTol = 2

	// hairlineKernel is the black-hat structuring size for thin-line
	// enhancement.
	hairlineKernel = 9
)

// CheckBodyCrack finds crack-like blobs on the body surface. Cracks can read
// darker than the ceramic (shadowed fissures) or brighter (exposed substrate),
// so both tails of the adaptive threshold are foreground. Qualifying blobs
// must meet the minimum length, be slender enough, and not touch the window
// boundary.
func CheckBodyCrack(gray gocv.Mat, body geometry.Rect, cfg config.CrackConfig) Result {
	if !cfg.Enabled() {
		return Skip("body crack: not configured")
	}

	window := cfg.Offsets.Apply(body).ClampTo(gray.Cols(), gray.Rows())
	if !window.Valid() || window.Width < 4 || window.Height < 4 {
		return Skip("body crack: window degenerate after offsets")
	}

	roi := gray.Region(window.ToImage())
	defer roi.Close()

	mean := imgproc.MeanLevel(roi)
	contrast := cfg.Contrast.Or(defaultCrackContrast)
	dark := imgproc.Binarize(roi, clampLevel(int(mean)-contrast), imgproc.Dark)
	defer dark.Close()
	bright := imgproc.Binarize(roi, clampLevel(int(mean)+contrast), imgproc.Light)
	defer bright.Close()

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.BitwiseOr(dark, bright, &bin)
	imgproc.MorphClose(&bin, 3)

	return gateCracks(imgproc.FindBlobs(bin), window, cfg, "body crack")
}

// CheckHairlineCrack targets fine cracks too faint for the plain adaptive
// threshold: a black-hat transform lifts thin dark lines above the body
// texture before binarization.
func CheckHairlineCrack(gray gocv.Mat, body geometry.Rect, cfg config.CrackConfig) Result {
	if !cfg.Enabled() {
		return Skip("hairline crack: not configured")
	}

	window := cfg.Offsets.Apply(body).ClampTo(gray.Cols(), gray.Rows())
	if !window.Valid() || window.Width < hairlineKernel || window.Height < hairlineKernel {
		return Skip("hairline crack: window degenerate after offsets")
	}

	roi := gray.Region(window.ToImage())
	defer roi.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: hairlineKernel, Y: hairlineKernel})
	defer kernel.Close()
	enhanced := gocv.NewMat()
	defer enhanced.Close()
	gocv.MorphologyEx(roi, &enhanced, gocv.MorphBlackhat, kernel)

	// Black-hat output is near zero on flat body texture; the contrast
	// delta thresholds it directly.
	bin := imgproc.Binarize(enhanced, cfg.Contrast.Or(defaultCrackContrast), imgproc.Light)
	defer bin.Close()

	return gateCracks(imgproc.FindBlobs(bin), window, cfg, "hairline crack")
}

// gateCracks applies the length, elongation and border gates shared by the
// crack checks. Blob bounds arrive in window-local coordinates.
func gateCracks(blobs []imgproc.Blob, window geometry.Rect, cfg config.CrackConfig, label string) Result {
	local := geometry.NewRect(0, 0, window.Width, window.Height)
	blobs = imgproc.ExcludeBorderBlobs(blobs, local, crackBorderTol)

	minLen := float64(cfg.MinLength.Value())
	minElong := float64(cfg.MinElongation.Or(defaultCrackElongation))

	var rects []geometry.Rect
	worst := 0.0
	for _, b := range blobs {
		if b.Length() < minLen || b.Elongation() < minElong {
			continue
		}
		rects = append(rects, b.Bounds.Offset(window.X, window.Y))
		if b.Length() > worst {
			worst = b.Length()
		}
	}
	if len(rects) == 0 {
		return Clean()
	}
	return Found(rects, worst, "%s: %d crack(s), longest %.0f px", label, len(rects), worst)
}

// CheckBodyColor compares the ceramic center brightness against the taught
// body baseline. A wrong-colored body (wrong device loaded, discolored batch)
// drifts past the tolerance; the center zone keeps the terminals out of the
// average.
func CheckBodyColor(gray gocv.Mat, body geometry.Rect, teach config.TeachData, cfg config.ReferenceConfig) Result {
	if !cfg.Enabled {
		return Skip("body color: not configured")
	}
	if teach.BodyMean <= 0 {
		return Skip("body color: no taught body baseline")
	}

	center := cfg.Offsets.Apply(CenterZone(body)).ClampTo(gray.Cols(), gray.Rows())
	if !center.Valid() {
		return Skip("body color: center zone degenerate")
	}
	mean := imgproc.MeanLevelRect(gray, center.X, center.Y, center.Width, center.Height)

	lo, hi := cfg.MeanWindow()
	if mean < float64(lo) || mean > float64(hi) {
		return Found([]geometry.Rect{center}, mean,
			"body color: mean %.0f outside window [%d, %d]", mean, lo, hi)
	}
	drift := math.Abs(mean - teach.BodyMean)
	if cfg.Tolerance.Enabled() && drift > float64(cfg.Tolerance.Value()) {
		return Found([]geometry.Rect{center}, drift,
			"body color: drift %.0f from taught %.0f exceeds %d", drift, teach.BodyMean, cfg.Tolerance.Value())
	}
	return Clean()
}

// CheckBodySmear finds dark smudges on the body surface.
func CheckBodySmear(gray gocv.Mat, body geometry.Rect, cfg config.SurfaceConfig) Result {
	return checkSurface(gray, body, cfg, "body smear")
}

// CheckBodyStain finds discoloration blobs on the body surface.
func CheckBodyStain(gray gocv.Mat, body geometry.Rect, cfg config.SurfaceConfig) Result {
	return checkSurface(gray, body, cfg, "body stain")
}

// CheckEdgeChipOff inspects narrow bands straddling the four body edges for
// material missing from the body outline. Each band is checked with the
// shared surface pipeline; the offsets in the config apply per band.
func CheckEdgeChipOff(gray gocv.Mat, body geometry.Rect, cfg config.SurfaceConfig) Result {
	if !cfg.Enabled() {
		return Skip("edge chip-off: not configured")
	}

	bandH := body.Height / 6
	if bandH < 4 {
		bandH = 4
	}
	bandW := body.Width / 6
	if bandW < 4 {
		bandW = 4
	}
	bands := []geometry.Rect{
		geometry.NewRect(body.X, body.Y-bandH/2, body.Width, bandH),
		geometry.NewRect(body.X, body.Bottom()-bandH/2, body.Width, bandH),
		geometry.NewRect(body.X-bandW/2, body.Y, bandW, body.Height),
		geometry.NewRect(body.Right()-bandW/2, body.Y, bandW, body.Height),
	}

	var rects []geometry.Rect
	worst := 0.0
	ran := false
	for _, band := range bands {
		blobs, _, ok := surfaceBlobs(gray, band, cfg)
		if !ok {
			continue
		}
		ran = true
		for _, b := range blobs {
			rects = append(rects, b.Bounds)
			if b.Area > worst {
				worst = b.Area
			}
		}
	}
	if !ran {
		return Skip("edge chip-off: all edge bands degenerate")
	}
	if len(rects) == 0 {
		return Clean()
	}
	return Found(rects, worst, "edge chip-off: %d defect(s), worst area %.0f px", len(rects), worst)
}
