package defect

import (
	"gocv.io/x/gocv"

	"chipaoi/internal/config"
	"chipaoi/pkg/geometry"
)

// outerMarginFrac sizes the outer-pocket inspection frame relative to the
// pocket.
const outerMarginFrac = 0.5

// CheckOuterPocketStain inspects the tape surface surrounding the pocket for
// contamination. The inspection region is the frame between the pocket and a
// margin ring around it, checked as four bands.
func CheckOuterPocketStain(gray gocv.Mat, pocket geometry.Rect, cfg config.SurfaceConfig) Result {
	if !cfg.Enabled() {
		return Skip("outer pocket stain: not configured")
	}
	if !pocket.Valid() {
		return Skip("outer pocket stain: pocket not located")
	}

	mx := int(float64(pocket.Width) * outerMarginFrac)
	my := int(float64(pocket.Height) * outerMarginFrac)
	if mx < 4 {
		mx = 4
	}
	if my < 4 {
		my = 4
	}
	outer := pocket.Inflate(mx, my, mx, my)

	bands := []geometry.Rect{
		geometry.NewRect(outer.X, outer.Y, outer.Width, my),
		geometry.NewRect(outer.X, pocket.Bottom(), outer.Width, my),
		geometry.NewRect(outer.X, pocket.Y, mx, pocket.Height),
		geometry.NewRect(pocket.Right(), pocket.Y, mx, pocket.Height),
	}

	results := make([]Result, 0, len(bands))
	for _, band := range bands {
		results = append(results, checkSurface(gray, band, cfg, "outer pocket stain"))
	}
	return mergeZoneResults("outer pocket stain", results...)
}

// CheckEmbossPickup inspects the inside of an emboss-tape pocket for residue
// left behind after pickup (a part fragment or adhesive smear on the pocket
// floor).
func CheckEmbossPickup(gray gocv.Mat, pocket geometry.Rect, cfg config.SurfaceConfig) Result {
	if !cfg.Enabled() {
		return Skip("emboss pickup: not configured")
	}
	if !pocket.Valid() {
		return Skip("emboss pickup: pocket not located")
	}
	return checkSurface(gray, pocket, cfg, "emboss pickup")
}
