package config

import (
	"os"
	"path/filepath"
	"testing"

	"cellpick/internal/calibration"
	"cellpick/internal/extraction"
	"cellpick/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, calibration.DefaultOptions(), cfg.CalibrationOptions())
	assert.Equal(t, extraction.DefaultOptions(), cfg.ExtractionOptions())
	assert.Equal(t, logger.LogInfo, cfg.Level())
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cellpick", "preferences.json")
	cfg := Defaults()
	cfg.LogLevel = "debug"
	cfg.Extraction.PaddingFactor = 1.5
	cfg.Calibration.MinPointDistancePx = 80
	require.NoError(t, cfg.Save(path))

	t.Setenv("CELLPICK_MIN_POINT_DISTANCE_PX", "120")
	t.Setenv("CELLPICK_LOG_LEVEL", "WARN")

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", got.LogLevel)
	assert.Equal(t, logger.LogWarn, got.Level())
	assert.Equal(t, 1.5, got.Extraction.PaddingFactor)
	assert.Equal(t, 120.0, got.Calibration.MinPointDistancePx)
	assert.Equal(t, 1.0, got.Calibration.AccuracyThresholdUM)
}

func TestLoad_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("CELLPICK_PADDING_FACTOR", "-1")
	_, err := Load(filepath.Join(t.TempDir(), "none.json"))
	require.Error(t, err)
}

func TestApplyEnv_BadNumber(t *testing.T) {
	t.Setenv("CELLPICK_MAX_CROP_SIZE_PX", "big")
	cfg := Defaults()
	err := cfg.ApplyEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CELLPICK_MAX_CROP_SIZE_PX")
}

func TestApplyEnv_DotEnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("CELLPICK_MAX_STAGE_ABS_UM=50000\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("CELLPICK_MAX_STAGE_ABS_UM") })

	cfg := Defaults()
	require.NoError(t, cfg.ApplyEnv(envPath))
	assert.Equal(t, 50000.0, cfg.Calibration.MaxStageAbsUM)
}

func TestValidate_UnknownLevel(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "chatty"
	require.Error(t, cfg.Validate())
}
