package locate

import (
	"image"
	"math"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"chipaoi/internal/config"
	"chipaoi/internal/imgproc"
	"chipaoi/pkg/geometry"
)

const (
	defaultParallelTol  = 10.0
	defaultMinAreaRatio = 0.5
	defaultMaxAreaRatio = 2.0
	defaultLocContrast  = 30

	// recheckExpandFrac inflates the first-pass rect before the refine
	// detection runs.
	recheckExpandFrac = 0.25

	// flipBandFrac is the height fraction of the end bands the flip check
	// samples.
	flipBandFrac = 0.2
)

// LocatePackage finds the package body in the frame. Strategy order: taught
// position, rotation-compensated edge scan, blob fallback; then index-gap
// rejection, downsample rescale, optional recheck refinement and the flip
// check. Never returns an error; failures carry a message.
func LocatePackage(gray gocv.Mat, teach config.TeachData, cfg config.PackageLocateConfig, log zerolog.Logger) DetectionResult {
	if gray.Empty() {
		return NotDetected("package: empty frame")
	}
	frameW, frameH := gray.Cols(), gray.Rows()

	if cfg.UseTaughtPosition {
		return validateTaught(gray, teach, frameW, frameH)
	}
	if !teach.HasPackage() {
		return NotDetected("package: no taught geometry")
	}

	// Optionally detect on a downsampled image and rescale afterwards.
	work := gray
	scale := 1
	var scaled gocv.Mat
	if cfg.Downsample > 1 {
		scale = cfg.Downsample
		scaled = gocv.NewMat()
		gocv.Resize(gray, &scaled, image.Point{}, 1.0/float64(scale), 1.0/float64(scale), gocv.InterpolationArea)
		defer scaled.Close()
		work = scaled
	}

	contrast := cfg.Contrast.Or(defaultLocContrast)
	pol := imgproc.Light
	if cfg.BodyDark {
		pol = imgproc.Dark
	}

	var rect geometry.Rect
	method := ""

	if cfg.EdgeScan {
		if r, ok := edgeScanDetect(work, cfg, contrast, pol, log); ok {
			rect, method = r, "edge-scan"
		}
	}
	if method == "" {
		if r, ok := blobDetect(work, contrast, pol); ok {
			rect, method = r, "blob"
		} else {
			return NotDetected("package: edge scan and blob detection both failed")
		}
	}

	// Rescale to full resolution coordinates.
	if scale > 1 {
		rect = geometry.NewRect(rect.X*scale, rect.Y*scale, rect.Width*scale, rect.Height*scale)
	}

	// Index-gap rejection: parts riding high in the pocket sit above the
	// index row and must not be accepted.
	if cfg.MinIndexY.Enabled() && rect.Y < cfg.MinIndexY.Value() {
		return NotDetected("package: detection at y=%d above index gap %d", rect.Y, cfg.MinIndexY.Value())
	}

	// Recheck pass: re-run detection on an expanded ROI with the secondary
	// contrast to refine the box.
	if cfg.Recheck && cfg.RecheckContrast.Enabled() {
		if refined, ok := recheckDetect(gray, rect, cfg.RecheckContrast.Value(), pol); ok {
			rect = refined
			method += "+recheck"
		}
	}

	rect = rect.ClampTo(frameW, frameH)
	if !rect.Valid() {
		return NotDetected("package: detection outside frame bounds")
	}

	// Area sanity against the taught package.
	minRatio := cfg.MinAreaRatio
	if minRatio <= 0 {
		minRatio = defaultMinAreaRatio
	}
	maxRatio := cfg.MaxAreaRatio
	if maxRatio <= 0 {
		maxRatio = defaultMaxAreaRatio
	}
	ratio := float64(rect.Area()) / float64(teach.Package.Area())
	if ratio < minRatio || ratio > maxRatio {
		return NotDetected("package: area ratio %.2f outside [%.2f, %.2f]", ratio, minRatio, maxRatio)
	}

	// Flip check: both end bands contradicting the expected body polarity
	// means the part is upside down (or the pocket is empty).
	if cfg.FlipCheck && !flipCheckOK(gray, rect, cfg.BodyDark) {
		return NotDetected("package: flip check failed, both end bands contradict body polarity")
	}

	contrastVal := roiContrast(gray, rect)
	res := DetectionResult{
		Detected:   true,
		Rect:       rect,
		Confidence: confidence(ratio, contrastVal),
		Contrast:   contrastVal,
		Method:     method,
		Message:    "OK",
	}
	log.Debug().
		Str("method", method).
		Int("confidence", res.Confidence).
		Int("x", rect.X).Int("y", rect.Y).
		Int("w", rect.Width).Int("h", rect.Height).
		Msg("package located")
	return res
}

// validateTaught accepts the taught rect as-is after bounds and size checks.
func validateTaught(gray gocv.Mat, teach config.TeachData, frameW, frameH int) DetectionResult {
	r := teach.Package
	if !r.Valid() {
		return NotDetected("package: taught position not set")
	}
	if !r.ContainedIn(frameW, frameH) {
		return NotDetected("package: taught position outside frame bounds")
	}
	ratio := float64(r.Width) / float64(r.Height)
	if ratio < 0.05 || ratio > 20 {
		return NotDetected("package: taught position has degenerate aspect %.2f", ratio)
	}
	return DetectionResult{
		Detected:   true,
		Rect:       r,
		Confidence: 100,
		Contrast:   roiContrast(gray, r),
		Method:     "taught",
		Message:    "OK",
	}
}

// edgeScanDetect rotates the image by the configured scan angle, binarizes at
// the adaptive contrast, keeps the largest contour, gates on the min-area
// rect's parallelism and maps the result back through the inverse rotation.
func edgeScanDetect(gray gocv.Mat, cfg config.PackageLocateConfig, contrast int, pol imgproc.Polarity, log zerolog.Logger) (geometry.Rect, bool) {
	angle := cfg.ScanAngleDeg
	if cfg.ReverseEdge {
		angle += 180
	}

	work := gray
	var rotated gocv.Mat
	var inv geometry.AffineTransform
	haveRotation := math.Mod(angle, 360) != 0
	if haveRotation {
		center := image.Point{X: gray.Cols() / 2, Y: gray.Rows() / 2}
		m := gocv.GetRotationMatrix2D(center, angle, 1.0)
		rotated = gocv.NewMat()
		gocv.WarpAffine(gray, &rotated, m, image.Point{X: gray.Cols(), Y: gray.Rows()})
		m.Close()
		defer rotated.Close()
		work = rotated

		fwd := rotationTransform(angle, geometry.Point2D{X: float64(center.X), Y: float64(center.Y)})
		var ok bool
		inv, ok = fwd.Inverse()
		if !ok {
			return geometry.Rect{}, false
		}
	}

	bin := binarizeAdaptive(work, contrast, pol)
	defer bin.Close()
	imgproc.MorphClose(&bin, 5)

	blob, ok := imgproc.LargestBlob(imgproc.FindBlobs(bin))
	if !ok {
		return geometry.Rect{}, false
	}

	tol := cfg.ParallelToleranceDeg
	if tol <= 0 {
		tol = defaultParallelTol
	}
	if !imgproc.AngleWithinAxis(blob.AngleDeg, tol) {
		log.Debug().Float64("angle", blob.AngleDeg).Float64("tol", tol).
			Msg("edge scan rejected: fitted rect not parallel")
		return geometry.Rect{}, false
	}

	rect := blob.Bounds
	if haveRotation {
		rect = inv.ApplyToRect(rect)
	}
	return rect, true
}

// blobDetect is the fallback: same binarize+contour pipeline without rotation
// or angle gating.
func blobDetect(gray gocv.Mat, contrast int, pol imgproc.Polarity) (geometry.Rect, bool) {
	bin := binarizeAdaptive(gray, contrast, pol)
	defer bin.Close()
	imgproc.MorphClose(&bin, 5)

	blob, ok := imgproc.LargestBlob(imgproc.FindBlobs(bin))
	if !ok {
		return geometry.Rect{}, false
	}
	return blob.Bounds, true
}

// recheckDetect re-runs blob detection on an expanded ROI around the first
// pass with a second contrast tolerance.
func recheckDetect(gray gocv.Mat, rect geometry.Rect, contrast int, pol imgproc.Polarity) (geometry.Rect, bool) {
	mx := int(float64(rect.Width) * recheckExpandFrac)
	my := int(float64(rect.Height) * recheckExpandFrac)
	window := rect.Inflate(mx, my, mx, my).ClampTo(gray.Cols(), gray.Rows())
	if !window.Valid() {
		return geometry.Rect{}, false
	}

	roi := gray.Region(window.ToImage())
	defer roi.Close()

	bin := binarizeAdaptive(roi, contrast, pol)
	defer bin.Close()
	imgproc.MorphClose(&bin, 5)

	blob, ok := imgproc.LargestBlob(imgproc.FindBlobs(bin))
	if !ok {
		return geometry.Rect{}, false
	}
	return blob.Bounds.Offset(window.X, window.Y), true
}

// flipCheckOK samples the top and bottom bands of the detection and compares
// their mean against the expected body-color polarity. Detection is vetoed
// only when both ends look wrong.
func flipCheckOK(gray gocv.Mat, rect geometry.Rect, bodyDark bool) bool {
	bandH := int(float64(rect.Height) * flipBandFrac)
	if bandH < 2 {
		return true
	}
	frameMean := imgproc.MeanLevel(gray)
	topMean := imgproc.MeanLevelRect(gray, rect.X, rect.Y, rect.Width, bandH)
	bottomMean := imgproc.MeanLevelRect(gray, rect.X, rect.Bottom()-bandH, rect.Width, bandH)

	topWrong := bandContradicts(topMean, frameMean, bodyDark)
	bottomWrong := bandContradicts(bottomMean, frameMean, bodyDark)
	return !(topWrong && bottomWrong)
}

func bandContradicts(bandMean, frameMean float64, bodyDark bool) bool {
	if bodyDark {
		return bandMean > frameMean
	}
	return bandMean < frameMean
}

// binarizeAdaptive thresholds at mean-contrast (dark body) or mean+contrast
// (light body). The caller owns the Mat.
func binarizeAdaptive(gray gocv.Mat, contrast int, pol imgproc.Polarity) gocv.Mat {
	mean := int(imgproc.MeanLevel(gray) + 0.5)
	threshold := mean - contrast
	if pol == imgproc.Light {
		threshold = mean + contrast
	}
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 255 {
		threshold = 255
	}
	return imgproc.Binarize(gray, threshold, pol)
}

// roiContrast measures the intensity difference between the ROI and a
// surrounding margin band.
func roiContrast(gray gocv.Mat, rect geometry.Rect) float64 {
	inner := imgproc.MeanLevelRect(gray, rect.X, rect.Y, rect.Width, rect.Height)
	margin := rect.Width / 4
	if margin < 4 {
		margin = 4
	}
	outerRect := rect.Inflate(margin, margin, margin, margin).ClampTo(gray.Cols(), gray.Rows())
	if !outerRect.Valid() {
		return 0
	}
	outer := imgproc.MeanLevelRect(gray, outerRect.X, outerRect.Y, outerRect.Width, outerRect.Height)
	return math.Abs(inner - outer)
}

// rotationTransform mirrors OpenCV's getRotationMatrix2D convention (angle in
// degrees, positive = counter-clockwise in image coordinates).
func rotationTransform(angleDeg float64, center geometry.Point2D) geometry.AffineTransform {
	rad := angleDeg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	t := geometry.AffineTransform{A: cos, B: sin, C: -sin, D: cos}
	t.TX = center.X - t.A*center.X - t.B*center.Y
	t.TY = center.Y - t.C*center.X - t.D*center.Y
	return t
}
