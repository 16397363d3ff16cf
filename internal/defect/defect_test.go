package defect

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"chipaoi/internal/config"
	"chipaoi/pkg/geometry"
)

// flatMat builds a uniform grayscale Mat.
func flatMat(w, h int, level float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(level, 0, 0, 0), h, w, gocv.MatTypeCV8UC1)
}

func paint(m *gocv.Mat, r geometry.Rect, level uint8) {
	gocv.Rectangle(m, r.ToImage(), color.RGBA{R: level, G: level, B: level, A: 255}, -1)
}

func TestCheckBodyCrackSkippedWhenUnconfigured(t *testing.T) {
	m := flatMat(400, 300, 128)
	defer m.Close()

	res := CheckBodyCrack(m, geometry.NewRect(50, 50, 300, 200), config.CrackConfig{})
	require.True(t, res.Skipped)
	require.False(t, res.Pass)
}

func TestCheckBodyCrackFindsSlenderDarkLine(t *testing.T) {
	body := geometry.NewRect(50, 50, 300, 200)
	m := flatMat(400, 300, 128)
	defer m.Close()
	// A dark 80x3 line well inside the body.
	crack := geometry.NewRect(120, 140, 80, 3)
	paint(&m, crack, 20)

	cfg := config.CrackConfig{MinLength: config.Set(40)}
	res := CheckBodyCrack(m, body, cfg)
	require.False(t, res.Skipped)
	require.False(t, res.Pass)
	require.Equal(t, 1, res.Count)
	require.GreaterOrEqual(t, res.Worst, 40.0)
	require.Len(t, res.Rects, 1)
	require.True(t, res.Rects[0].Intersects(crack), "defect rect %+v should cover the crack", res.Rects[0])
}

func TestCheckBodyCrackFindsBrightLines(t *testing.T) {
	// Exposed-substrate cracks read brighter than the ceramic; the upper
	// threshold tail must catch them.
	body := geometry.NewRect(20, 20, 360, 260)
	m := flatMat(400, 300, 128)
	defer m.Close()
	paint(&m, geometry.NewRect(80, 140, 150, 2), 255)
	paint(&m, geometry.NewRect(260, 80, 2, 120), 255)

	cfg := config.CrackConfig{
		Contrast:      config.Set(30),
		MinLength:     config.Set(20),
		MinElongation: config.Set(5),
	}
	res := CheckBodyCrack(m, body, cfg)
	require.False(t, res.Skipped)
	require.False(t, res.Pass)
	require.GreaterOrEqual(t, res.Count, 1)
	require.GreaterOrEqual(t, res.Worst, 120.0)
}

func TestCheckBodyCrackCleanBody(t *testing.T) {
	body := geometry.NewRect(20, 20, 360, 260)
	m := flatMat(400, 300, 128)
	defer m.Close()

	cfg := config.CrackConfig{
		Contrast:      config.Set(30),
		MinLength:     config.Set(20),
		MinElongation: config.Set(5),
	}
	res := CheckBodyCrack(m, body, cfg)
	require.True(t, res.Pass, res.Message)
	require.Zero(t, res.Count)
}

func TestCheckBodyCrackIgnoresShortMark(t *testing.T) {
	body := geometry.NewRect(50, 50, 300, 200)
	m := flatMat(400, 300, 128)
	defer m.Close()
	paint(&m, geometry.NewRect(120, 140, 20, 3), 20)

	cfg := config.CrackConfig{MinLength: config.Set(40)}
	res := CheckBodyCrack(m, body, cfg)
	require.True(t, res.Pass, res.Message)
}

func TestCheckBodyCrackIgnoresCompactStain(t *testing.T) {
	body := geometry.NewRect(50, 50, 300, 200)
	m := flatMat(400, 300, 128)
	defer m.Close()
	// Dark but compact: fails the elongation gate.
	paint(&m, geometry.NewRect(120, 120, 50, 50), 20)

	cfg := config.CrackConfig{MinLength: config.Set(40)}
	res := CheckBodyCrack(m, body, cfg)
	require.True(t, res.Pass, res.Message)
}

func TestCheckBodyCrackExcludesBorderArtifacts(t *testing.T) {
	body := geometry.NewRect(50, 50, 300, 200)
	m := flatMat(400, 300, 128)
	defer m.Close()
	// A dark line hugging the window's top edge is a scan artifact of the
	// body boundary, not a crack.
	paint(&m, geometry.NewRect(100, 50, 120, 3), 20)

	cfg := config.CrackConfig{MinLength: config.Set(40)}
	res := CheckBodyCrack(m, body, cfg)
	require.True(t, res.Pass, res.Message)
}

func TestCheckHairlineCrackFindsThinLine(t *testing.T) {
	body := geometry.NewRect(50, 50, 300, 200)
	m := flatMat(400, 300, 128)
	defer m.Close()
	paint(&m, geometry.NewRect(120, 140, 90, 2), 60)

	cfg := config.CrackConfig{MinLength: config.Set(50)}
	res := CheckHairlineCrack(m, body, cfg)
	require.False(t, res.Skipped)
	require.False(t, res.Pass, "thin faint line should be lifted by the black-hat transform")
}

func TestCheckBodyStainAreaGate(t *testing.T) {
	body := geometry.NewRect(50, 50, 300, 200)
	m := flatMat(400, 300, 128)
	defer m.Close()
	paint(&m, geometry.NewRect(150, 120, 30, 30), 40)

	cfg := config.SurfaceConfig{Contrast: config.Set(40), MinArea: config.Set(200)}
	res := CheckBodyStain(m, body, cfg)
	require.False(t, res.Pass)
	require.Equal(t, 1, res.Count)

	// Raising the gate above the stain size passes the part.
	cfg.MinArea = config.Set(5000)
	res = CheckBodyStain(m, body, cfg)
	require.True(t, res.Pass, res.Message)
}

func TestCheckBodyStainSentinelSkips(t *testing.T) {
	m := flatMat(400, 300, 128)
	defer m.Close()
	// Contrast unset: the check must be skipped even with other gates set.
	cfg := config.SurfaceConfig{MinArea: config.Set(10)}
	res := CheckBodyStain(m, geometry.NewRect(50, 50, 300, 200), cfg)
	require.True(t, res.Skipped)
}

func TestCheckBodySmearWhitePolarity(t *testing.T) {
	body := geometry.NewRect(50, 50, 300, 200)
	m := flatMat(400, 300, 100)
	defer m.Close()
	paint(&m, geometry.NewRect(150, 120, 30, 30), 220)

	cfg := config.SurfaceConfig{White: true, Contrast: config.Set(40), MinArea: config.Set(100)}
	res := CheckBodySmear(m, body, cfg)
	require.False(t, res.Pass)

	// The same bright blob is invisible to the dark polarity.
	cfg.White = false
	res = CheckBodySmear(m, body, cfg)
	require.True(t, res.Pass, res.Message)
}

func TestCheckSurfaceOffsetsShrinkWindow(t *testing.T) {
	body := geometry.NewRect(50, 50, 300, 200)
	m := flatMat(400, 300, 128)
	defer m.Close()
	// Defect inside the body but within the offset margin.
	paint(&m, geometry.NewRect(55, 120, 20, 20), 40)

	cfg := config.SurfaceConfig{
		Contrast: config.Set(40),
		MinArea:  config.Set(100),
		Offsets:  config.Offsets{Left: 40, Right: 40, Top: 10, Bottom: 10},
	}
	res := CheckBodyStain(m, body, cfg)
	require.True(t, res.Pass, "offset margin must exclude the blob")
}

func TestCheckBodyColorDrift(t *testing.T) {
	body := geometry.NewRect(50, 50, 300, 100)
	m := flatMat(400, 200, 80)
	defer m.Close()

	teach := config.TeachData{BodyMean: 160}
	cfg := config.ReferenceConfig{Enabled: true, Tolerance: config.Set(30)}

	res := CheckBodyColor(m, body, teach, cfg)
	require.False(t, res.Pass)
	require.InDelta(t, 80.0, res.Worst, 3.0)

	teach.BodyMean = 90
	res = CheckBodyColor(m, body, teach, cfg)
	require.True(t, res.Pass, res.Message)
}

func TestCheckBodyColorIgnoresTerminals(t *testing.T) {
	// Bright terminals at both ends must not drag the center mean.
	body := geometry.NewRect(50, 50, 300, 100)
	m := flatMat(400, 200, 100)
	defer m.Close()
	paint(&m, geometry.NewRect(50, 50, 90, 100), 240)
	paint(&m, geometry.NewRect(260, 50, 90, 100), 240)

	teach := config.TeachData{BodyMean: 100}
	cfg := config.ReferenceConfig{Enabled: true, Tolerance: config.Set(20)}
	res := CheckBodyColor(m, body, teach, cfg)
	require.True(t, res.Pass, res.Message)
}

func TestCheckBodyColorNeedsBaseline(t *testing.T) {
	m := flatMat(400, 200, 80)
	defer m.Close()
	cfg := config.ReferenceConfig{Enabled: true, Tolerance: config.Set(30)}
	res := CheckBodyColor(m, geometry.NewRect(50, 50, 300, 100), config.TeachData{}, cfg)
	require.True(t, res.Skipped)
}

func TestCheckTerminalOxidationDrift(t *testing.T) {
	body := geometry.NewRect(50, 50, 300, 100)
	m := flatMat(400, 200, 90)
	defer m.Close()
	// Both terminals read 90; taught baseline says 200.
	teach := config.TeachData{TerminalMean: 200}
	cfg := config.ReferenceConfig{Enabled: true, Tolerance: config.Set(30)}

	res := CheckTerminalOxidation(m, body, teach, cfg)
	require.False(t, res.Pass)
	require.InDelta(t, 110.0, res.Worst, 3.0)

	// Within tolerance passes.
	teach.TerminalMean = 100
	res = CheckTerminalOxidation(m, body, teach, cfg)
	require.True(t, res.Pass, res.Message)
}

func TestCheckTerminalOxidationNeedsBaseline(t *testing.T) {
	m := flatMat(400, 200, 90)
	defer m.Close()
	cfg := config.ReferenceConfig{Enabled: true, Tolerance: config.Set(30)}
	res := CheckTerminalOxidation(m, geometry.NewRect(50, 50, 300, 100), config.TeachData{}, cfg)
	require.True(t, res.Skipped)
}

func TestCheckTerminalOffsetAsymmetry(t *testing.T) {
	body := geometry.NewRect(40, 50, 320, 100)
	m := flatMat(400, 200, 200)
	defer m.Close()
	// Darken only the left terminal zone.
	paint(&m, geometry.NewRect(40, 50, 96, 100), 120)

	cfg := config.ReferenceConfig{Enabled: true, Tolerance: config.Set(40)}
	res := CheckTerminalOffset(m, body, cfg)
	require.False(t, res.Pass)
	require.Greater(t, res.Worst, 40.0)
}

func TestCheckReverseChip(t *testing.T) {
	body := geometry.NewRect(50, 50, 300, 100)
	m := flatMat(400, 200, 60)
	defer m.Close()

	teach := config.TeachData{BodyMean: 150, ReverseMean: 60}
	cfg := config.ReferenceConfig{Enabled: true}

	res := CheckReverseChip(m, body, teach, cfg)
	require.False(t, res.Pass, "center mean matching the reverse face must fail")

	teach.ReverseMean = 250
	teach.BodyMean = 60
	res = CheckReverseChip(m, body, teach, cfg)
	require.True(t, res.Pass, res.Message)
}

func TestCheckSealHole(t *testing.T) {
	pocket := geometry.NewRect(160, 100, 80, 50)
	m := flatMat(400, 300, 180)
	defer m.Close()
	// Hole in the top seal band exposes the dark pocket.
	paint(&m, geometry.NewRect(180, 90, 30, 10), 20)

	teach := config.TeachData{SealMean: 180}
	cfg := config.ReferenceConfig{Enabled: true, Tolerance: config.Set(15)}

	res := CheckSealHole(m, pocket, 16, teach, cfg)
	require.False(t, res.Pass)

	clean := flatMat(400, 300, 180)
	defer clean.Close()
	res = CheckSealHole(clean, pocket, 16, teach, cfg)
	require.True(t, res.Pass, res.Message)
}

func TestCheckSealStainRequiresPocket(t *testing.T) {
	m := flatMat(400, 300, 180)
	defer m.Close()
	cfg := config.SurfaceConfig{Contrast: config.Set(40)}
	res := CheckSealStain(m, geometry.Rect{}, 16, cfg)
	require.True(t, res.Skipped)
}

func TestCheckEmbossPickupResidue(t *testing.T) {
	pocket := geometry.NewRect(160, 100, 80, 50)
	m := flatMat(400, 300, 50)
	defer m.Close()
	paint(&m, pocket, 40)
	// Bright residue on the pocket floor.
	paint(&m, geometry.NewRect(180, 115, 20, 20), 200)

	cfg := config.SurfaceConfig{White: true, Contrast: config.Set(60), MinArea: config.Set(50)}
	res := CheckEmbossPickup(m, pocket, cfg)
	require.False(t, res.Pass)
	require.Equal(t, 1, res.Count)
}

func TestCheckOuterPocketStain(t *testing.T) {
	pocket := geometry.NewRect(160, 120, 80, 50)
	m := flatMat(400, 300, 200)
	defer m.Close()
	// Contamination on the tape above the pocket.
	paint(&m, geometry.NewRect(180, 95, 25, 15), 60)

	cfg := config.SurfaceConfig{Contrast: config.Set(60), MinArea: config.Set(100)}
	res := CheckOuterPocketStain(m, pocket, cfg)
	require.False(t, res.Pass)
}

func TestResultHelpers(t *testing.T) {
	s := Skip("check %s off", "x")
	require.True(t, s.Skipped)
	require.Equal(t, "check x off", s.Message)

	c := Clean()
	require.True(t, c.Pass)
	require.Zero(t, c.Count)

	f := Found([]geometry.Rect{{X: 1, Y: 2, Width: 3, Height: 4}}, 9.5, "bad")
	require.False(t, f.Pass)
	require.Equal(t, 1, f.Count)
	require.Equal(t, 9.5, f.Worst)
}
