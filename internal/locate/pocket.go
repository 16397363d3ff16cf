package locate

import (
	"image"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"chipaoi/internal/config"
	"chipaoi/internal/imgproc"
	"chipaoi/pkg/geometry"
)

// percentileLadder is the sequence of black-to-white interpolation fractions
// the pocket binarization walks until a hypothesis scores. Mid level first,
// then darker, then lighter.
var percentileLadder = [...]float64{0.50, 0.35, 0.65}

const (
	// minHypothesisScore is the area*aspect similarity a candidate must
	// reach against the taught pocket.
	minHypothesisScore = 0.5

	// dustFlankFrac is the width fraction of the flanking dust regions the
	// body-dust mask inpaints on each side of the taught pocket.
	dustFlankFrac = 0.25

	defaultPocketAngleTol = 8.0
)

// LocatePocket finds the carrier-tape pocket inside the shift-tolerance
// search window around the taught pocket. Binarization walks a percentile
// ladder between the window's black and white reference levels; candidate
// blobs are scored by area and aspect similarity to the taught pocket. A
// low-contrast post-seal pass and a dust-inpaint retry run when the primary
// ladder fails. When tracking is enabled the observed shift is folded into
// record.
func LocatePocket(gray gocv.Mat, teach config.TeachData, cfg config.PocketLocateConfig, record *ShiftRecord, log zerolog.Logger) DetectionResult {
	if gray.Empty() {
		return NotDetected("pocket: empty frame")
	}
	if !cfg.Enabled {
		return NotDetected("pocket: location disabled")
	}
	if !teach.HasPocket() {
		return NotDetected("pocket: no taught geometry")
	}

	window := teach.Pocket.
		Inflate(cfg.ShiftTolXMinus, cfg.ShiftTolYMinus, cfg.ShiftTolXPlus, cfg.ShiftTolYPlus).
		ClampTo(gray.Cols(), gray.Rows())
	if !window.Valid() {
		return NotDetected("pocket: search window outside frame")
	}

	res := locatePocketIn(gray, window, teach.Pocket, cfg, log)

	// Dust on the tape surface flanking the pocket can merge with the pocket
	// blob. Inpaint the flanks and retry once.
	if !res.Detected && cfg.BodyDustMask {
		flankW := int(float64(teach.Pocket.Width) * dustFlankFrac)
		if flankW >= 2 {
			left := image.Rect(window.X, window.Y, teach.Pocket.X, window.Bottom())
			right := image.Rect(teach.Pocket.Right(), window.Y, window.Right(), window.Bottom())
			cleaned := imgproc.InpaintRegions(gray, []image.Rectangle{left, right})
			defer cleaned.Close()
			retry := locatePocketIn(cleaned, window, teach.Pocket, cfg, log)
			if retry.Detected {
				retry.Method += "+dust-inpaint"
				res = retry
			}
		}
	}

	if res.Detected {
		if cfg.TrackShift && record != nil {
			dc := res.Rect.Center()
			tc := teach.Pocket.Center()
			record.Update(dc.X-tc.X, dc.Y-tc.Y)
		}
		log.Debug().
			Str("method", res.Method).
			Int("confidence", res.Confidence).
			Int("x", res.Rect.X).Int("y", res.Rect.Y).
			Msg("pocket located")
	}
	return res
}

// locatePocketIn runs the percentile ladder and the post-seal fallback inside
// the given search window.
func locatePocketIn(gray gocv.Mat, window, taught geometry.Rect, cfg config.PocketLocateConfig, log zerolog.Logger) DetectionResult {
	roi := gray.Region(window.ToImage())
	defer roi.Close()

	black, white := imgproc.BlackWhiteLevels(roi, 0.1)
	if white-black < 1 {
		return NotDetected("pocket: flat search window, black=%.0f white=%.0f", black, white)
	}
	offset := float64(cfg.Contrast.Or(0))

	for _, frac := range percentileLadder {
		threshold := imgproc.ThresholdBetween(black+offset, white, frac)
		if res, ok := scoreHypotheses(roi, window, taught, threshold, cfg, "ladder", log); ok {
			return res
		}
	}

	// Post-seal fallback: the sealing tape flattens pocket contrast, so a
	// much smaller offset directly above the black level is tried.
	if cfg.PostSealContrast.Enabled() {
		threshold := clampLevel(int(black) + cfg.PostSealContrast.Value())
		if res, ok := scoreHypotheses(roi, window, taught, threshold, cfg, "post-seal", log); ok {
			return res
		}
	}

	return NotDetected("pocket: no hypothesis scored above %.2f", minHypothesisScore)
}

// scoreHypotheses binarizes the window ROI at the threshold, cleans it, and
// scores every blob against the taught pocket. Both readings of the pocket are
// tried: the "bottom" hypothesis (pocket darker than the tape, the closed
// binarization) and the "light" hypothesis (pocket brighter, its inversion —
// sealing glare often flips the polarity). The best-scoring blob across both
// wins if it clears the floor.
func scoreHypotheses(roi gocv.Mat, window, taught geometry.Rect, threshold int, cfg config.PocketLocateConfig, method string, log zerolog.Logger) (DetectionResult, bool) {
	bin := imgproc.Binarize(roi, threshold, imgproc.Dark)
	defer bin.Close()

	if cfg.PaperDustMask {
		imgproc.RemoveBorderBlobs(&bin, 1)
	}
	imgproc.MorphClose(&bin, 5)

	inv := bin.Clone()
	defer inv.Close()
	imgproc.Invert(&inv)
	if cfg.PaperDustMask {
		imgproc.RemoveBorderBlobs(&inv, 1)
	}

	best, bestScore := bestHypothesis(imgproc.FindBlobs(bin), taught)
	lightBest, lightScore := bestHypothesis(imgproc.FindBlobs(inv), taught)
	if lightScore > bestScore {
		best, bestScore = lightBest, lightScore
		method += "+light"
	}
	if bestScore < minHypothesisScore {
		return DetectionResult{}, false
	}

	if !directionOK(best, cfg) {
		log.Debug().Float64("angle", best.AngleDeg).Str("method", method).
			Msg("pocket hypothesis rejected by direction check")
		return DetectionResult{}, false
	}

	rect := best.Bounds.Offset(window.X, window.Y)
	ratio := float64(rect.Area()) / float64(taught.Area())
	contrast := roiContrast(roi, best.Bounds)
	return DetectionResult{
		Detected:   true,
		Rect:       rect,
		Confidence: confidence(ratio, contrast),
		Contrast:   contrast,
		Method:     method,
		Message:    "OK",
	}, true
}

// bestHypothesis returns the highest-scoring blob of one binarization.
func bestHypothesis(blobs []imgproc.Blob, taught geometry.Rect) (imgproc.Blob, float64) {
	var best imgproc.Blob
	bestScore := 0.0
	for _, b := range blobs {
		if s := hypothesisScore(b, taught); s > bestScore {
			bestScore = s
			best = b
		}
	}
	return best, bestScore
}

// hypothesisScore is the product of area similarity and aspect similarity to
// the taught pocket, each in [0, 1].
func hypothesisScore(b imgproc.Blob, taught geometry.Rect) float64 {
	taughtArea := float64(taught.Area())
	if taughtArea <= 0 || b.Area <= 0 {
		return 0
	}
	areaSim := b.Area / taughtArea
	if areaSim > 1 {
		areaSim = 1 / areaSim
	}

	ta := taught.AspectRatio()
	ba := b.Bounds.AspectRatio()
	if ta <= 0 || ba <= 0 {
		return 0
	}
	aspectSim := ba / ta
	if aspectSim > 1 {
		aspectSim = 1 / aspectSim
	}

	return areaSim * aspectSim
}

// directionOK validates the hypothesis orientation against the configured
// direction mode. Parallel mode requires axis alignment; non-parallel mode
// requires a deliberate tilt. With neither mode set, orientation is free.
func directionOK(b imgproc.Blob, cfg config.PocketLocateConfig) bool {
	if !cfg.ParallelMode && !cfg.NonParallelMode {
		return true
	}
	tol := cfg.AngleToleranceDeg
	if tol <= 0 {
		tol = defaultPocketAngleTol
	}
	aligned := imgproc.AngleWithinAxis(b.AngleDeg, tol)
	if cfg.ParallelMode && aligned {
		return true
	}
	if cfg.NonParallelMode && !aligned {
		return true
	}
	return false
}

func clampLevel(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
