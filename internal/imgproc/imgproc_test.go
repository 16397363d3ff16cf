package imgproc

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"chipaoi/pkg/geometry"
)

// grayMat builds a uniform grayscale Mat.
func grayMat(w, h int, level float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(level, 0, 0, 0), h, w, gocv.MatTypeCV8UC1)
}

// fillRect paints a filled rectangle into a grayscale Mat.
func fillRect(m *gocv.Mat, r geometry.Rect, level uint8) {
	gocv.Rectangle(m, r.ToImage(), color.RGBA{R: level, G: level, B: level, A: 255}, -1)
}

func TestMeanLevel(t *testing.T) {
	m := grayMat(10, 10, 100)
	defer m.Close()
	require.InDelta(t, 100.0, MeanLevel(m), 0.5)

	empty := gocv.NewMat()
	defer empty.Close()
	require.Equal(t, 0.0, MeanLevel(empty))
}

func TestMeanLevelRectOutsideImage(t *testing.T) {
	m := grayMat(10, 10, 100)
	defer m.Close()
	require.Equal(t, 0.0, MeanLevelRect(m, 5, 5, 10, 10))
	require.Equal(t, 0.0, MeanLevelRect(m, -1, 0, 5, 5))
	require.InDelta(t, 100.0, MeanLevelRect(m, 2, 2, 5, 5), 0.5)
}

func TestBinarizePolarity(t *testing.T) {
	m := grayMat(20, 20, 50)
	defer m.Close()
	fillRect(&m, geometry.NewRect(0, 0, 10, 20), 200)

	light := Binarize(m, 128, Light)
	defer light.Close()
	require.InDelta(t, 0.5, WhiteFraction(light), 0.05)

	dark := Binarize(m, 128, Dark)
	defer dark.Close()
	require.InDelta(t, 0.5, WhiteFraction(dark), 0.05)

	// The two polarities partition the image.
	both := gocv.NewMat()
	defer both.Close()
	gocv.BitwiseAnd(light, dark, &both)
	require.Equal(t, 0, gocv.CountNonZero(both))
}

func TestAdaptiveRangeClamps(t *testing.T) {
	bright := grayMat(10, 10, 250)
	defer bright.Close()
	low, high := AdaptiveRange(bright, 30)
	require.Equal(t, 220, low)
	require.Equal(t, 255, high)

	dim := grayMat(10, 10, 10)
	defer dim.Close()
	low, high = AdaptiveRange(dim, 30)
	require.Equal(t, 0, low)
	require.Equal(t, 40, high)
}

func TestHistogramAndPercentile(t *testing.T) {
	m := grayMat(10, 10, 30)
	defer m.Close()
	fillRect(&m, geometry.NewRect(0, 0, 10, 5), 220)

	hist := Histogram(m)
	require.Equal(t, 50, hist[30])
	require.Equal(t, 50, hist[220])

	require.LessOrEqual(t, PercentileLevel(hist, 0.25), 30)
	require.Equal(t, 220, PercentileLevel(hist, 0.9))
}

func TestBlackWhiteLevels(t *testing.T) {
	m := grayMat(20, 20, 40)
	defer m.Close()
	fillRect(&m, geometry.NewRect(0, 0, 20, 10), 200)

	black, white := BlackWhiteLevels(m, 0.1)
	require.InDelta(t, 40.0, black, 2.0)
	require.InDelta(t, 200.0, white, 2.0)

	mid := ThresholdBetween(black, white, 0.5)
	require.InDelta(t, 120, mid, 3)
}

func TestFindBlobsSortedByArea(t *testing.T) {
	m := grayMat(100, 100, 0)
	defer m.Close()
	fillRect(&m, geometry.NewRect(10, 10, 30, 20), 255)
	fillRect(&m, geometry.NewRect(60, 60, 10, 10), 255)

	blobs := FindBlobs(m)
	require.Len(t, blobs, 2)
	require.Greater(t, blobs[0].Area, blobs[1].Area)
	require.Equal(t, 10, blobs[0].Bounds.X)
	require.InDelta(t, 30.0, blobs[0].LongSide, 2.0)
	require.InDelta(t, 20.0, blobs[0].ShortSide, 2.0)
}

func TestFilterBlobsOrAnd(t *testing.T) {
	blobs := []Blob{
		{Area: 100, Bounds: geometry.NewRect(0, 0, 10, 10)},
		{Area: 9, Bounds: geometry.NewRect(0, 0, 3, 3)},
		{Area: 5, Bounds: geometry.NewRect(0, 0, 25, 1)},
	}

	// OR: either gate passes.
	kept := FilterBlobs(blobs, 50, 20, CombineOr)
	require.Len(t, kept, 2)

	// AND: both gates required.
	kept = FilterBlobs(blobs, 50, 20, CombineAnd)
	require.Len(t, kept, 0)

	kept = FilterBlobs(blobs, 50, 5, CombineAnd)
	require.Len(t, kept, 1)
	require.Equal(t, 100.0, kept[0].Area)
}

func TestFilterBlobsNoGatesKeepsNothingInOrMode(t *testing.T) {
	blobs := []Blob{{Area: 100, Bounds: geometry.NewRect(0, 0, 10, 10)}}
	require.Empty(t, FilterBlobs(blobs, 0, 0, CombineOr))
}

func TestExcludeBorderBlobs(t *testing.T) {
	window := geometry.NewRect(0, 0, 100, 100)
	blobs := []Blob{
		{Bounds: geometry.NewRect(1, 40, 10, 10)},  // touches left
		{Bounds: geometry.NewRect(40, 40, 10, 10)}, // interior
	}
	kept := ExcludeBorderBlobs(blobs, window, 2)
	require.Len(t, kept, 1)
	require.Equal(t, 40, kept[0].Bounds.X)
}

func TestExcludeSlender(t *testing.T) {
	blobs := []Blob{
		{Bounds: geometry.NewRect(0, 0, 2, 40)}, // 20:1 vertical sliver
		{Bounds: geometry.NewRect(0, 0, 10, 12)},
	}
	kept := ExcludeSlender(blobs, 10, true)
	require.Len(t, kept, 1)
	require.Equal(t, 10, kept[0].Bounds.Width)
}

func TestRemoveBorderBlobs(t *testing.T) {
	m := grayMat(50, 50, 0)
	defer m.Close()
	fillRect(&m, geometry.NewRect(0, 20, 10, 10), 255)  // touches border
	fillRect(&m, geometry.NewRect(20, 20, 10, 10), 255) // interior

	RemoveBorderBlobs(&m, 1)
	blobs := FindBlobs(m)
	require.Len(t, blobs, 1)
	require.Equal(t, 20, blobs[0].Bounds.X)
}

func TestAngleWithinAxis(t *testing.T) {
	require.True(t, AngleWithinAxis(0, 5))
	require.True(t, AngleWithinAxis(-3, 5))
	require.True(t, AngleWithinAxis(88, 5))
	require.True(t, AngleWithinAxis(-89, 5))
	require.False(t, AngleWithinAxis(30, 5))
	require.False(t, AngleWithinAxis(45, 5))
}

func TestChamferMaskCorners(t *testing.T) {
	mask := ChamferMask(40, 40, 8)
	defer mask.Close()
	require.Equal(t, uint8(0), mask.GetUCharAt(0, 0))
	require.Equal(t, uint8(0), mask.GetUCharAt(39, 39))
	require.Equal(t, uint8(255), mask.GetUCharAt(20, 20))
	require.Equal(t, uint8(255), mask.GetUCharAt(0, 20))
}

func TestEllipseMaskCenterAndCorners(t *testing.T) {
	mask := EllipseMask(40, 40)
	defer mask.Close()
	require.Equal(t, uint8(255), mask.GetUCharAt(20, 20))
	require.Equal(t, uint8(0), mask.GetUCharAt(0, 0))
}

func TestInpaintRegionsRemovesSpeck(t *testing.T) {
	m := grayMat(60, 60, 120)
	defer m.Close()
	fillRect(&m, geometry.NewRect(20, 20, 6, 6), 255)

	out := InpaintRegions(m, []image.Rectangle{image.Rect(18, 18, 28, 28)})
	defer out.Close()

	require.InDelta(t, 120.0, MeanLevelRect(out, 20, 20, 6, 6), 10.0)
}

func TestCleanBinaryRemovesSpeckle(t *testing.T) {
	m := grayMat(60, 60, 0)
	defer m.Close()
	fillRect(&m, geometry.NewRect(10, 10, 20, 20), 255)
	m.SetUCharAt(50, 50, 255) // single-pixel noise

	CleanBinary(&m, 0, 3)
	blobs := FindBlobs(m)
	require.Len(t, blobs, 1)
	require.Equal(t, 10, blobs[0].Bounds.X)
}
