package symbol

import (
	"fmt"
	"sort"
	"strings"

	"gocv.io/x/gocv"

	"chipaoi/internal/config"
	"chipaoi/internal/imgproc"
	"chipaoi/pkg/geometry"
)

// defaultAcceptScore is the correlation percentage a template must reach when
// the station leaves the accept gate unset.
const defaultAcceptScore = 70

// CharMatch is one recognized mark character.
type CharMatch struct {
	Name   string
	Score  float64 // correlation percentage, 0-100
	Bounds geometry.Rect
}

// MatchResult is the outcome of one mark recognition.
type MatchResult struct {
	// Recognized is false when no mark blob qualified or nothing scored
	// above the accept gate.
	Recognized bool
	// Sequence is the recognized characters left to right.
	Sequence string
	Chars    []CharMatch
	// Verified is true when Sequence equals the expected sequence. Only
	// meaningful when an expectation was configured.
	Verified bool
	Message  string
}

// Match recognizes the laser mark inside the located body window. Mark blobs
// are extracted by adaptive threshold, each blob is matched against every
// template by normalized cross-correlation, and the per-blob winners are
// assembled left to right.
func Match(gray gocv.Mat, body geometry.Rect, lib *Library, cfg config.SymbolConfig) MatchResult {
	if lib == nil || lib.Len() == 0 {
		return MatchResult{Message: "symbol: no template library"}
	}

	window := cfg.Offsets.Apply(body).ClampTo(gray.Cols(), gray.Rows())
	if !window.Valid() || window.Width < 4 || window.Height < 4 {
		return MatchResult{Message: "symbol: mark window degenerate"}
	}

	roi := gray.Region(window.ToImage())
	defer roi.Close()

	// Marks are laser-etched and read brighter than the body.
	mean := imgproc.MeanLevel(roi)
	threshold := int(mean) + cfg.Contrast.Or(20)
	if threshold > 255 {
		threshold = 255
	}
	bin := imgproc.Binarize(roi, threshold, imgproc.Light)
	defer bin.Close()
	imgproc.CleanBinary(&bin, 3, 0)

	blobs := imgproc.FilterBlobs(imgproc.FindBlobs(bin), cfg.MinArea.Or(1), 0, imgproc.CombineOr)
	if len(blobs) == 0 {
		return MatchResult{Message: "symbol: no mark blobs found"}
	}

	accept := float64(cfg.AcceptScore.Or(defaultAcceptScore))

	var chars []CharMatch
	for _, b := range blobs {
		m, ok := matchBlob(roi, b.Bounds, lib)
		if !ok || m.Score < accept {
			continue
		}
		m.Bounds = m.Bounds.Offset(window.X, window.Y)
		chars = append(chars, m)
	}
	if len(chars) == 0 {
		return MatchResult{Message: fmt.Sprintf("symbol: no character scored above %.0f%%", accept)}
	}

	sort.Slice(chars, func(i, j int) bool { return chars[i].Bounds.X < chars[j].Bounds.X })

	var sb strings.Builder
	for _, c := range chars {
		sb.WriteString(c.Name)
	}
	res := MatchResult{
		Recognized: true,
		Sequence:   sb.String(),
		Chars:      chars,
		Message:    "OK",
	}
	if cfg.Expected != "" {
		res.Verified = res.Sequence == cfg.Expected
		if !res.Verified {
			res.Message = fmt.Sprintf("symbol: read %q, expected %q", res.Sequence, cfg.Expected)
		}
	}
	return res
}

// matchBlob matches one mark blob against the library. Blobs smaller than a
// template in either dimension cannot contain it and are rejected for that
// template; a blob smaller than every template yields no match.
func matchBlob(roi gocv.Mat, bounds geometry.Rect, lib *Library) (CharMatch, bool) {
	bounds = bounds.Inflate(2, 2, 2, 2).ClampTo(roi.Cols(), roi.Rows())
	if !bounds.Valid() {
		return CharMatch{}, false
	}
	patch := roi.Region(bounds.ToImage())
	defer patch.Close()

	best := CharMatch{Score: -1}
	for _, t := range lib.Templates() {
		if patch.Cols() < t.Mat.Cols() || patch.Rows() < t.Mat.Rows() {
			continue
		}
		score := correlate(patch, t.Mat)
		if score > best.Score {
			best = CharMatch{Name: t.Name, Score: score, Bounds: bounds}
		}
	}
	if best.Score < 0 {
		return CharMatch{}, false
	}
	return best, true
}

// correlate returns the peak normalized cross-correlation of the template
// over the patch, as a percentage.
func correlate(patch, tmpl gocv.Mat) float64 {
	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(patch, tmpl, &result, gocv.TmCcoeffNormed, mask)
	_, maxVal, _, _ := gocv.MinMaxLoc(result)
	return float64(maxVal) * 100
}
