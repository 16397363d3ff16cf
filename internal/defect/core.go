package defect

import (
	"gocv.io/x/gocv"

	"chipaoi/internal/config"
	"chipaoi/internal/imgproc"
	"chipaoi/pkg/geometry"
)

// reflectionMaxAspect is the bounding aspect over which a blob is treated as
// a pocket-wall reflection when the reflection filter is on.
const reflectionMaxAspect = 10.0

// surfaceBlobs is the shared surface-defect pipeline: shrink the window by
// the configured offsets, binarize the ROI adaptively at the configured
// polarity, mask rounded corners, clean, gate on area/size, and optionally
// drop reflections. Returned blob bounds are in frame coordinates.
func surfaceBlobs(gray gocv.Mat, window geometry.Rect, cfg config.SurfaceConfig) ([]imgproc.Blob, geometry.Rect, bool) {
	window = cfg.Offsets.Apply(window).ClampTo(gray.Cols(), gray.Rows())
	if !window.Valid() || window.Width < 2 || window.Height < 2 {
		return nil, window, false
	}

	roi := gray.Region(window.ToImage())
	defer roi.Close()

	mean := imgproc.MeanLevel(roi)
	pol := imgproc.Dark
	threshold := int(mean) - cfg.Contrast.Value()
	if cfg.White {
		pol = imgproc.Light
		threshold = int(mean) + cfg.Contrast.Value()
	}
	bin := imgproc.Binarize(roi, clampLevel(threshold), pol)
	defer bin.Close()

	switch cfg.Corner {
	case config.CornerChamfer:
		chamfer := minInt(window.Width, window.Height) / 5
		mask := imgproc.ChamferMask(window.Width, window.Height, chamfer)
		imgproc.ApplyMask(&bin, mask)
		mask.Close()
	case config.CornerEllipse:
		mask := imgproc.EllipseMask(window.Width, window.Height)
		imgproc.ApplyMask(&bin, mask)
		mask.Close()
	}

	imgproc.CleanBinary(&bin, 3, 3)

	combine := imgproc.CombineOr
	if cfg.CombineAnd {
		combine = imgproc.CombineAnd
	}
	blobs := imgproc.FilterBlobs(imgproc.FindBlobs(bin), cfg.MinArea.Or(0), cfg.MinSquare.Or(0), combine)

	if cfg.ReflectionFilter {
		blobs = imgproc.ExcludeSlender(blobs, reflectionMaxAspect, true)
	}

	for i := range blobs {
		blobs[i].Bounds = blobs[i].Bounds.Offset(window.X, window.Y)
	}
	return blobs, window, true
}

// checkSurface runs the shared pipeline against one window and folds the
// result. label names the check in messages.
func checkSurface(gray gocv.Mat, window geometry.Rect, cfg config.SurfaceConfig, label string) Result {
	if !cfg.Enabled() {
		return Skip("%s: not configured", label)
	}
	blobs, _, ok := surfaceBlobs(gray, window, cfg)
	if !ok {
		return Skip("%s: window degenerate after offsets", label)
	}
	if len(blobs) == 0 {
		return Clean()
	}

	rects := make([]geometry.Rect, len(blobs))
	worst := 0.0
	for i, b := range blobs {
		rects[i] = b.Bounds
		if b.Area > worst {
			worst = b.Area
		}
	}
	return Found(rects, worst, "%s: %d defect(s), worst area %.0f px", label, len(rects), worst)
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

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
