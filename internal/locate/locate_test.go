package locate

import (
	"image/color"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"chipaoi/internal/config"
	"chipaoi/pkg/geometry"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// sceneWith paints a filled rect on a uniform background.
func sceneWith(w, h int, bg uint8, r geometry.Rect, fg uint8) gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(bg), 0, 0, 0), h, w, gocv.MatTypeCV8UC1)
	gocv.Rectangle(&m, r.ToImage(), color.RGBA{R: fg, G: fg, B: fg, A: 255}, -1)
	return m
}

func TestLocatePackageBlobFallback(t *testing.T) {
	taught := geometry.NewRect(100, 75, 200, 150)
	m := sceneWith(400, 300, 60, taught, 140)
	defer m.Close()

	teach := config.TeachData{Package: taught}
	var cfg config.PackageLocateConfig

	res := LocatePackage(m, teach, cfg, testLogger())
	require.True(t, res.Detected, res.Message)
	require.InDelta(t, float64(taught.X), float64(res.Rect.X), 3)
	require.InDelta(t, float64(taught.Y), float64(res.Rect.Y), 3)
	require.InDelta(t, float64(taught.Width), float64(res.Rect.Width), 3)
	require.InDelta(t, float64(taught.Height), float64(res.Rect.Height), 3)
	require.Equal(t, "blob", res.Method)
	require.Greater(t, res.Confidence, 50)
}

func TestLocatePackageResultContainedInFrame(t *testing.T) {
	// Part hanging off the frame edge: the detection must still be fully
	// inside the frame.
	part := geometry.NewRect(-20, 100, 150, 120)
	m := sceneWith(400, 300, 60, part, 180)
	defer m.Close()

	teach := config.TeachData{Package: geometry.NewRect(0, 100, 130, 121)}
	res := LocatePackage(m, teach, config.PackageLocateConfig{}, testLogger())
	if res.Detected {
		require.True(t, res.Rect.ContainedIn(400, 300),
			"detected rect %+v must be contained in the frame", res.Rect)
	}
}

func TestLocatePackageTaughtPosition(t *testing.T) {
	taught := geometry.NewRect(100, 75, 200, 150)
	m := sceneWith(400, 300, 60, taught, 140)
	defer m.Close()

	teach := config.TeachData{Package: taught}
	cfg := config.PackageLocateConfig{UseTaughtPosition: true}

	res := LocatePackage(m, teach, cfg, testLogger())
	require.True(t, res.Detected)
	require.Equal(t, taught, res.Rect)
	require.Equal(t, "taught", res.Method)
	require.Equal(t, 100, res.Confidence)
}

func TestLocatePackageTaughtPositionOutsideFrame(t *testing.T) {
	m := sceneWith(400, 300, 60, geometry.NewRect(0, 0, 10, 10), 140)
	defer m.Close()

	teach := config.TeachData{Package: geometry.NewRect(350, 250, 100, 100)}
	cfg := config.PackageLocateConfig{UseTaughtPosition: true}

	res := LocatePackage(m, teach, cfg, testLogger())
	require.False(t, res.Detected)
	require.Contains(t, res.Message, "outside frame")
}

func TestLocatePackageEmptyPocketFails(t *testing.T) {
	// Nothing but tape: no blob can satisfy the area ratio.
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(60, 0, 0, 0), 300, 400, gocv.MatTypeCV8UC1)
	defer m.Close()

	teach := config.TeachData{Package: geometry.NewRect(100, 75, 200, 150)}
	res := LocatePackage(m, teach, config.PackageLocateConfig{}, testLogger())
	require.False(t, res.Detected)
	require.NotEmpty(t, res.Message)
}

func TestLocatePackageIndexGapRejection(t *testing.T) {
	part := geometry.NewRect(100, 10, 200, 150)
	m := sceneWith(400, 300, 60, part, 140)
	defer m.Close()

	teach := config.TeachData{Package: geometry.NewRect(100, 75, 200, 150)}
	cfg := config.PackageLocateConfig{MinIndexY: config.Set(50)}

	res := LocatePackage(m, teach, cfg, testLogger())
	require.False(t, res.Detected)
	require.Contains(t, res.Message, "index gap")
}

func TestLocatePackageAreaRatioRejection(t *testing.T) {
	// A speck far smaller than the taught package.
	m := sceneWith(400, 300, 60, geometry.NewRect(150, 100, 20, 15), 140)
	defer m.Close()

	teach := config.TeachData{Package: geometry.NewRect(100, 75, 200, 150)}
	res := LocatePackage(m, teach, config.PackageLocateConfig{}, testLogger())
	require.False(t, res.Detected)
	require.Contains(t, res.Message, "area ratio")
}

func TestLocatePackageDarkBody(t *testing.T) {
	taught := geometry.NewRect(120, 80, 160, 120)
	m := sceneWith(400, 300, 200, taught, 50)
	defer m.Close()

	teach := config.TeachData{Package: taught}
	cfg := config.PackageLocateConfig{BodyDark: true}

	res := LocatePackage(m, teach, cfg, testLogger())
	require.True(t, res.Detected, res.Message)
	require.InDelta(t, float64(taught.X), float64(res.Rect.X), 3)
}

func TestLocatePackageEdgeScanAxisAligned(t *testing.T) {
	taught := geometry.NewRect(100, 75, 200, 150)
	m := sceneWith(400, 300, 60, taught, 140)
	defer m.Close()

	teach := config.TeachData{Package: taught}
	cfg := config.PackageLocateConfig{EdgeScan: true}

	res := LocatePackage(m, teach, cfg, testLogger())
	require.True(t, res.Detected, res.Message)
	require.Equal(t, "edge-scan", res.Method)
	require.InDelta(t, float64(taught.X), float64(res.Rect.X), 3)
	require.InDelta(t, float64(taught.Y), float64(res.Rect.Y), 3)
}

func TestLocatePackageEdgeScanWithRotation(t *testing.T) {
	// An axis-aligned part scanned at a small angle: the warped detection
	// must map back near the taught center, with the box inflated by the
	// double bounding.
	taught := geometry.NewRect(100, 75, 200, 150)
	m := sceneWith(400, 300, 60, taught, 140)
	defer m.Close()

	teach := config.TeachData{Package: taught}
	cfg := config.PackageLocateConfig{EdgeScan: true, ScanAngleDeg: 5}

	res := LocatePackage(m, teach, cfg, testLogger())
	require.True(t, res.Detected, res.Message)
	require.Equal(t, "edge-scan", res.Method)

	dc := res.Rect.Center()
	tc := taught.Center()
	require.InDelta(t, tc.X, dc.X, 4)
	require.InDelta(t, tc.Y, dc.Y, 4)
	require.GreaterOrEqual(t, res.Rect.Width, taught.Width)
}

func TestLocatePackageRecheckRefines(t *testing.T) {
	taught := geometry.NewRect(100, 75, 200, 150)
	m := sceneWith(400, 300, 60, taught, 140)
	defer m.Close()

	teach := config.TeachData{Package: taught}
	cfg := config.PackageLocateConfig{
		Recheck:         true,
		RecheckContrast: config.Set(20),
	}

	res := LocatePackage(m, teach, cfg, testLogger())
	require.True(t, res.Detected, res.Message)
	require.Contains(t, res.Method, "+recheck")
	require.InDelta(t, float64(taught.X), float64(res.Rect.X), 3)
}

func TestLocatePackageDownsample(t *testing.T) {
	taught := geometry.NewRect(100, 76, 200, 150)
	m := sceneWith(400, 300, 60, taught, 140)
	defer m.Close()

	teach := config.TeachData{Package: taught}
	cfg := config.PackageLocateConfig{Downsample: 2}

	res := LocatePackage(m, teach, cfg, testLogger())
	require.True(t, res.Detected, res.Message)
	require.InDelta(t, float64(taught.X), float64(res.Rect.X), 6)
	require.InDelta(t, float64(taught.Width), float64(res.Rect.Width), 8)
}

func TestFlipCheck(t *testing.T) {
	// Bright body on dark tape: end bands brighter than the frame mean are
	// consistent with a light body.
	body := geometry.NewRect(100, 75, 200, 150)
	m := sceneWith(400, 300, 60, body, 180)
	defer m.Close()

	require.True(t, flipCheckOK(m, body, false))
	// Claiming the body is dark makes both bands contradict.
	require.False(t, flipCheckOK(m, body, true))
}

func TestBandContradicts(t *testing.T) {
	require.True(t, bandContradicts(50, 100, false), "dark band under a light-body assumption")
	require.False(t, bandContradicts(150, 100, false))
	require.True(t, bandContradicts(150, 100, true))
}

func TestConfidenceBounds(t *testing.T) {
	require.Equal(t, 100, confidence(1.0, 80))
	require.LessOrEqual(t, confidence(0.5, 10), 60)
	require.GreaterOrEqual(t, confidence(0, 0), 0)
	// Oversized detections are penalized symmetrically.
	require.Equal(t, confidence(2.0, 40), confidence(0.5, 40))
}

func TestLocatePocketSynthetic(t *testing.T) {
	taughtPocket := geometry.NewRect(160, 100, 80, 50)
	m := sceneWith(400, 300, 200, taughtPocket, 60)
	defer m.Close()

	teach := config.TeachData{
		Package: geometry.NewRect(150, 90, 100, 70),
		Pocket:  taughtPocket,
	}
	cfg := config.PocketLocateConfig{
		Enabled:        true,
		ShiftTolXPlus:  20, ShiftTolXMinus: 20,
		ShiftTolYPlus:  20, ShiftTolYMinus: 20,
	}

	res := LocatePocket(m, teach, cfg, nil, testLogger())
	require.True(t, res.Detected, res.Message)
	require.InDelta(t, float64(taughtPocket.X), float64(res.Rect.X), 3)
	require.InDelta(t, float64(taughtPocket.Y), float64(res.Rect.Y), 3)
}

func TestLocatePocketShiftedWithinTolerance(t *testing.T) {
	taughtPocket := geometry.NewRect(160, 100, 80, 50)
	actual := taughtPocket.Offset(10, -8)
	m := sceneWith(400, 300, 200, actual, 60)
	defer m.Close()

	teach := config.TeachData{Pocket: taughtPocket}
	cfg := config.PocketLocateConfig{
		Enabled:        true,
		ShiftTolXPlus:  20, ShiftTolXMinus: 20,
		ShiftTolYPlus:  20, ShiftTolYMinus: 20,
		TrackShift:     true,
	}

	var record ShiftRecord
	res := LocatePocket(m, teach, cfg, &record, testLogger())
	require.True(t, res.Detected, res.Message)
	require.InDelta(t, float64(actual.X), float64(res.Rect.X), 3)

	require.Equal(t, 1, record.Count)
	mx, my := record.Mean()
	require.InDelta(t, 10.0, mx, 3)
	require.InDelta(t, -8.0, my, 3)
}

func TestLocatePocketBrighterThanTape(t *testing.T) {
	// Sealing glare can flip the pocket polarity: the pocket reads brighter
	// than the tape and only the inverted hypothesis can carry it.
	taughtPocket := geometry.NewRect(160, 100, 80, 50)
	m := sceneWith(400, 300, 60, taughtPocket, 180)
	defer m.Close()

	teach := config.TeachData{Pocket: taughtPocket}
	cfg := config.PocketLocateConfig{
		Enabled:        true,
		ShiftTolXPlus:  20, ShiftTolXMinus: 20,
		ShiftTolYPlus:  20, ShiftTolYMinus: 20,
	}

	res := LocatePocket(m, teach, cfg, nil, testLogger())
	require.True(t, res.Detected, res.Message)
	require.Contains(t, res.Method, "+light")
	require.InDelta(t, float64(taughtPocket.X), float64(res.Rect.X), 3)
	require.InDelta(t, float64(taughtPocket.Y), float64(res.Rect.Y), 3)
}

func TestLocatePocketDisabled(t *testing.T) {
	m := sceneWith(100, 100, 200, geometry.NewRect(20, 20, 40, 30), 60)
	defer m.Close()

	teach := config.TeachData{Pocket: geometry.NewRect(20, 20, 40, 30)}
	res := LocatePocket(m, teach, config.PocketLocateConfig{}, nil, testLogger())
	require.False(t, res.Detected)
	require.Contains(t, res.Message, "disabled")
}

func TestLocatePocketFlatWindowFails(t *testing.T) {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(180, 0, 0, 0), 300, 400, gocv.MatTypeCV8UC1)
	defer m.Close()

	teach := config.TeachData{Pocket: geometry.NewRect(160, 100, 80, 50)}
	cfg := config.PocketLocateConfig{Enabled: true, ShiftTolXPlus: 20, ShiftTolXMinus: 20, ShiftTolYPlus: 20, ShiftTolYMinus: 20}

	res := LocatePocket(m, teach, cfg, nil, testLogger())
	require.False(t, res.Detected)
}

func TestShiftRecord(t *testing.T) {
	var r ShiftRecord
	require.Equal(t, "no shifts recorded", r.Summary())

	r.Update(2, -1)
	r.Update(4, 3)
	r.Update(-6, 0)

	require.Equal(t, 3, r.Count)
	mx, my := r.Mean()
	require.InDelta(t, 0.0, mx, 1e-9)
	require.InDelta(t, 2.0/3.0, my, 1e-9)
	require.Equal(t, -6.0, r.MinX)
	require.Equal(t, 4.0, r.MaxX)
	require.Equal(t, -1.0, r.MinY)
	require.Equal(t, 3.0, r.MaxY)
	require.NotEmpty(t, r.Summary())
}
