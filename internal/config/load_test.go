package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"chipaoi/pkg/geometry"
)

func TestLoadInspectionSentinelAndValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "station.json")

	raw := `{
		"body_stain": {"contrast": 40, "min_area": 255},
		"symbol": {"enabled": true, "accept_score": 70, "reject_score": 30}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := LoadInspection(path)
	require.NoError(t, err)
	require.True(t, cfg.BodyStain.Contrast.Enabled())
	require.Equal(t, 40, cfg.BodyStain.Contrast.Value())
	require.False(t, cfg.BodyStain.MinArea.Enabled(), "255 on the wire means unset")
	require.Equal(t, 70, cfg.Symbol.AcceptScore.Value())
}

func TestLoadInspectionRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "station.json")

	raw := `{"symbol": {"enabled": true, "accept_score": 30, "reject_score": 70}}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	_, err := LoadInspection(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "accept score")
}

func TestLoadInspectionMissingFile(t *testing.T) {
	_, err := LoadInspection(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestTeachSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "teach.json")

	want := TeachData{
		Package:      geometry.NewRect(100, 75, 200, 150),
		Pocket:       geometry.NewRect(90, 65, 220, 170),
		BodyMean:     128.5,
		TerminalMean: 210,
		SealMean:     180,
	}
	require.NoError(t, SaveTeach(path, want))

	got, err := LoadTeach(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSaveTeachLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "teach.json")
	require.NoError(t, SaveTeach(path, TeachData{Package: geometry.NewRect(0, 0, 10, 10)}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "teach.json", entries[0].Name())
}

func TestSaveInspectionValidatesFirst(t *testing.T) {
	var cfg InspectionConfig
	cfg.Measure.BodyLength = RangeCheck{Enabled: true, Min: 100, Max: 10}
	err := SaveInspection(filepath.Join(t.TempDir(), "station.json"), &cfg)
	require.Error(t, err)
}

func TestInspectionSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "station.json")

	var cfg InspectionConfig
	cfg.BodyStain.Contrast = Set(40)
	cfg.BodyColor = ReferenceConfig{Enabled: true, Tolerance: Set(25)}
	cfg.Measure.BodyLength = RangeCheck{Enabled: true, Min: 150, Max: 250}
	require.NoError(t, SaveInspection(path, &cfg))

	got, err := LoadInspection(path)
	require.NoError(t, err)
	require.Equal(t, cfg, *got)
}
