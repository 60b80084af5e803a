// Package config loads cellpick settings: built-in defaults, then the JSON
// preferences file, then .env and CELLPICK_* environment variables.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cellpick/internal/calibration"
	"cellpick/internal/extraction"
	"cellpick/internal/logger"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	appDir    = "cellpick"
	prefsFile = "preferences.json"
	envPrefix = "CELLPICK_"
)

// Calibration holds the calibration tunables.
type Calibration struct {
	MinPointDistancePx  float64 `json:"min_point_distance_px"`
	AccuracyThresholdUM float64 `json:"accuracy_threshold_um"`
	MaxStageAbsUM       float64 `json:"max_stage_abs_um"`
}

// Extraction holds the crop tunables.
type Extraction struct {
	PaddingFactor float64 `json:"padding_factor"`
	MinCropSizePx float64 `json:"min_crop_size_px"`
	MaxCropSizePx float64 `json:"max_crop_size_px"`
}

// Config is the full application configuration.
type Config struct {
	LogLevel    string      `json:"log_level"`
	Calibration Calibration `json:"calibration"`
	Extraction  Extraction  `json:"extraction"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	c := calibration.DefaultOptions()
	e := extraction.DefaultOptions()
	return Config{
		LogLevel: "info",
		Calibration: Calibration{
			MinPointDistancePx:  c.MinPointDistancePx,
			AccuracyThresholdUM: c.AccuracyThresholdUM,
			MaxStageAbsUM:       c.MaxStageAbsUM,
		},
		Extraction: Extraction{
			PaddingFactor: e.PaddingFactor,
			MinCropSizePx: e.MinCropSizePx,
			MaxCropSizePx: e.MaxCropSizePx,
		},
	}
}

// DefaultPath returns ~/.config/cellpick/preferences.json or the platform
// equivalent.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "cannot determine config directory")
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, appDir, prefsFile), nil
}

// Load reads the preferences file at path (DefaultPath when empty), then
// applies .env and environment overrides. A missing preferences file leaves
// the defaults in place.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "failed to parse %s", path)
		}
	case !os.IsNotExist(err):
		return cfg, errors.Wrapf(err, "failed to read %s", path)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Save writes the configuration as indented JSON, creating parent
// directories as needed.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv loads the given .env files (".env" when none are named) and then
// overrides fields from CELLPICK_* variables. Missing .env files are ignored.
// Variables already set in the process environment win over .env values.
func (c *Config) ApplyEnv(envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return errors.Wrapf(err, "failed to load %s", f)
		}
	}

	if v, ok := lookup("LOG_LEVEL"); ok {
		c.LogLevel = strings.ToLower(v)
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"MIN_POINT_DISTANCE_PX", &c.Calibration.MinPointDistancePx},
		{"ACCURACY_THRESHOLD_UM", &c.Calibration.AccuracyThresholdUM},
		{"MAX_STAGE_ABS_UM", &c.Calibration.MaxStageAbsUM},
		{"PADDING_FACTOR", &c.Extraction.PaddingFactor},
		{"MIN_CROP_SIZE_PX", &c.Extraction.MinCropSizePx},
		{"MAX_CROP_SIZE_PX", &c.Extraction.MaxCropSizePx},
	}
	for _, f := range floats {
		v, ok := lookup(f.key)
		if !ok {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "%s%s", envPrefix, f.key)
		}
		*f.dst = n
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Validate checks every section.
func (c Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.Errorf("unknown log level %q", c.LogLevel)
	}
	if err := c.CalibrationOptions().Validate(); err != nil {
		return errors.Wrap(err, "calibration")
	}
	if err := c.ExtractionOptions().Validate(); err != nil {
		return errors.Wrap(err, "extraction")
	}
	return nil
}

// Level returns the configured log level.
func (c Config) Level() logger.LogLevel {
	return logger.ParseLevel(c.LogLevel)
}

// CalibrationOptions converts the calibration section.
func (c Config) CalibrationOptions() calibration.Options {
	return calibration.Options{
		MinPointDistancePx:  c.Calibration.MinPointDistancePx,
		AccuracyThresholdUM: c.Calibration.AccuracyThresholdUM,
		MaxStageAbsUM:       c.Calibration.MaxStageAbsUM,
	}
}

// ExtractionOptions converts the extraction section.
func (c Config) ExtractionOptions() extraction.Options {
	return extraction.Options{
		PaddingFactor: c.Extraction.PaddingFactor,
		MinCropSizePx: c.Extraction.MinCropSizePx,
		MaxCropSizePx: c.Extraction.MaxCropSizePx,
	}
}
