package inspect

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"chipaoi/internal/frame"
)

var (
	overlayGreen = color.RGBA{G: 200, A: 255}
	overlayRed   = color.RGBA{R: 220, A: 255}
	overlayWhite = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// RenderOverlay draws the cycle result onto a copy of the frame: located
// geometry in green, defect rects in red, verdict banner top-left. The caller
// owns the returned Mat.
func RenderOverlay(f *frame.Frame, res TestResult) gocv.Mat {
	out := f.OverlayCopy()

	if res.Package.Detected {
		gocv.Rectangle(&out, res.Package.Rect.ToImage(), overlayGreen, 2)
	}
	if res.Pocket.Detected {
		gocv.Rectangle(&out, res.Pocket.Rect.ToImage(), overlayGreen, 1)
	}
	for _, chk := range res.Checks {
		if chk.Pass || chk.Skipped {
			continue
		}
		for _, r := range chk.Rects {
			gocv.Rectangle(&out, r.ToImage(), overlayRed, 2)
		}
	}

	banner := res.Verdict.String()
	if res.Verdict != Pass && res.FailedCheck != "" {
		banner = fmt.Sprintf("%s: %s", res.Verdict, res.FailedCheck)
	}
	bannerColor := overlayGreen
	if res.Verdict != Pass {
		bannerColor = overlayRed
	}
	gocv.PutText(&out, banner, image.Point{X: 8, Y: 24}, gocv.FontHersheySimplex, 0.7, bannerColor, 2)
	if res.Verdict != Pass && res.Message != "" {
		gocv.PutText(&out, res.Message, image.Point{X: 8, Y: 48}, gocv.FontHersheySimplex, 0.5, overlayWhite, 1)
	}
	return out
}
