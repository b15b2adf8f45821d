package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/banshee-data/spectral.report/internal/bandio"
	"github.com/banshee-data/spectral.report/internal/change"
	"github.com/banshee-data/spectral.report/internal/classify"
	"github.com/banshee-data/spectral.report/internal/pipeline"
	"github.com/banshee-data/spectral.report/internal/raster"
	"github.com/banshee-data/spectral.report/internal/spectral"
	"github.com/banshee-data/spectral.report/internal/units"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
// This is the single source of truth for all default analysis values.
const DefaultConfigPath = "config/analysis.defaults.json"

// Change modes.
const (
	// ModeIndependent thresholds each epoch separately and keeps pixels that
	// became positive in the later epoch.
	ModeIndependent = string(pipeline.ModeIndependent)
	// ModeDifference thresholds the absolute index difference between epochs.
	ModeDifference = string(pipeline.ModeDifference)
)

// AnalysisConfig represents the root configuration for index and change runs.
// Every field is optional; the Get* methods supply defaults for omitted ones.
type AnalysisConfig struct {
	// Index families compared by the change composer
	FamilyAIndex     *string  `json:"family_a_index,omitempty" yaml:"family_a_index,omitempty"`
	FamilyAThreshold *float64 `json:"family_a_threshold,omitempty" yaml:"family_a_threshold,omitempty"`
	FamilyBIndex     *string  `json:"family_b_index,omitempty" yaml:"family_b_index,omitempty"`
	FamilyBThreshold *float64 `json:"family_b_threshold,omitempty" yaml:"family_b_threshold,omitempty"`

	// Classification and composition
	Direction *string `json:"direction,omitempty" yaml:"direction,omitempty"` // ">", ">=", "<", "<="
	Rule      *string `json:"rule,omitempty" yaml:"rule,omitempty"`           // "disjoint" or "ordered"
	Mode      *string `json:"mode,omitempty" yaml:"mode,omitempty"`           // "independent" or "difference"

	// Formula constants
	BrightnessTemperatureK *float64 `json:"brightness_temperature_k,omitempty" yaml:"brightness_temperature_k,omitempty"`
	EVIEpsilon             *float64 `json:"evi_epsilon,omitempty" yaml:"evi_epsilon,omitempty"`
	TemperatureUnit        *string  `json:"temperature_unit,omitempty" yaml:"temperature_unit,omitempty"`

	// Execution and persistence
	Workers      *int    `json:"workers,omitempty" yaml:"workers,omitempty"`             // 0 means GOMAXPROCS
	OutputFormat *string `json:"output_format,omitempty" yaml:"output_format,omitempty"` // "gtiff" or "asc"
	DatabasePath *string `json:"database_path,omitempty" yaml:"database_path,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyAnalysisConfig returns an AnalysisConfig with all fields set to nil.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// DefaultAnalysisConfig returns a config with every field populated from the
// built-in defaults. It matches config/analysis.defaults.json.
func DefaultAnalysisConfig() *AnalysisConfig {
	e := EmptyAnalysisConfig()
	return &AnalysisConfig{
		FamilyAIndex:           ptrString(e.GetFamilyAIndex()),
		FamilyAThreshold:       ptrFloat64(e.GetFamilyAThreshold()),
		FamilyBIndex:           ptrString(e.GetFamilyBIndex()),
		FamilyBThreshold:       ptrFloat64(e.GetFamilyBThreshold()),
		Direction:              ptrString(e.GetDirection()),
		Rule:                   ptrString(e.GetRule()),
		Mode:                   ptrString(e.GetMode()),
		BrightnessTemperatureK: ptrFloat64(e.GetBrightnessTemperatureK()),
		EVIEpsilon:             ptrFloat64(e.GetEVIEpsilon()),
		TemperatureUnit:        ptrString(e.GetTemperatureUnit()),
		Workers:                ptrInt(0),
		OutputFormat:           ptrString(string(e.GetOutputFormat())),
		DatabasePath:           ptrString(e.GetDatabasePath()),
	}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON or YAML file.
// The file is validated to ensure it has a supported extension and is under the max file size.
// Fields omitted from the file fall back to defaults, so partial configs are safe.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical analysis defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/spectral/
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. Every failure
// wraps raster.ErrConfiguration.
func (c *AnalysisConfig) Validate() error {
	for _, idx := range []*string{c.FamilyAIndex, c.FamilyBIndex} {
		if idx != nil {
			if _, err := spectral.Default.Lookup(*idx); err != nil {
				return err
			}
		}
	}
	for name, th := range map[string]*float64{"family_a_threshold": c.FamilyAThreshold, "family_b_threshold": c.FamilyBThreshold} {
		if th != nil {
			if err := classify.ValidateThreshold(*th); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	if c.Direction != nil {
		if _, err := classify.ParseDirection(*c.Direction); err != nil {
			return err
		}
	}
	if c.Rule != nil {
		if _, err := change.ParseRule(*c.Rule); err != nil {
			return err
		}
	}
	if c.Mode != nil {
		if _, err := pipeline.ParseMode(*c.Mode); err != nil {
			return err
		}
	}
	if c.BrightnessTemperatureK != nil {
		if v := *c.BrightnessTemperatureK; math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("brightness_temperature_k must be positive and finite, got %f: %w", v, raster.ErrConfiguration)
		}
	}
	if c.EVIEpsilon != nil {
		if v := *c.EVIEpsilon; math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("evi_epsilon must be non-negative and finite, got %g: %w", v, raster.ErrConfiguration)
		}
	}
	if c.TemperatureUnit != nil && !units.IsValid(*c.TemperatureUnit) {
		return fmt.Errorf("temperature_unit must be one of %s, got %q: %w", units.GetValidUnitsString(), *c.TemperatureUnit, raster.ErrConfiguration)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d: %w", *c.Workers, raster.ErrConfiguration)
	}
	if c.OutputFormat != nil {
		if _, err := bandio.ParseFormat(*c.OutputFormat); err != nil {
			return err
		}
	}
	return nil
}

// GetFamilyAIndex returns the family_a_index value or the default.
func (c *AnalysisConfig) GetFamilyAIndex() string {
	if c.FamilyAIndex == nil {
		return string(spectral.IndexNDVI)
	}
	return *c.FamilyAIndex
}

// GetFamilyAThreshold returns the family_a_threshold value or the default.
func (c *AnalysisConfig) GetFamilyAThreshold() float64 {
	if c.FamilyAThreshold == nil {
		return 0.3
	}
	return *c.FamilyAThreshold
}

// GetFamilyBIndex returns the family_b_index value or the default.
func (c *AnalysisConfig) GetFamilyBIndex() string {
	if c.FamilyBIndex == nil {
		return string(spectral.IndexNDWI)
	}
	return *c.FamilyBIndex
}

// GetFamilyBThreshold returns the family_b_threshold value or the default.
func (c *AnalysisConfig) GetFamilyBThreshold() float64 {
	if c.FamilyBThreshold == nil {
		return 0.2
	}
	return *c.FamilyBThreshold
}

// GetDirection returns the direction value or the default.
func (c *AnalysisConfig) GetDirection() string {
	if c.Direction == nil {
		return ">"
	}
	return *c.Direction
}

// GetRule returns the rule value or the default.
func (c *AnalysisConfig) GetRule() string {
	if c.Rule == nil {
		return string(change.RuleDisjoint)
	}
	return *c.Rule
}

// GetMode returns the mode value or the default.
func (c *AnalysisConfig) GetMode() string {
	if c.Mode == nil {
		return ModeIndependent
	}
	return *c.Mode
}

// GetBrightnessTemperatureK returns the brightness_temperature_k value or the default.
func (c *AnalysisConfig) GetBrightnessTemperatureK() float64 {
	if c.BrightnessTemperatureK == nil {
		return spectral.DefaultBrightnessTemperature
	}
	return *c.BrightnessTemperatureK
}

// GetEVIEpsilon returns the evi_epsilon value or the default.
func (c *AnalysisConfig) GetEVIEpsilon() float64 {
	if c.EVIEpsilon == nil {
		return spectral.DefaultEVIEps
	}
	return *c.EVIEpsilon
}

// GetTemperatureUnit returns the temperature_unit value or the default.
func (c *AnalysisConfig) GetTemperatureUnit() string {
	if c.TemperatureUnit == nil {
		return units.Celsius
	}
	return *c.TemperatureUnit
}

// GetWorkers returns the worker count, resolving 0 or unset to GOMAXPROCS.
func (c *AnalysisConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return *c.Workers
}

// GetOutputFormat returns the raster format for output grids, GeoTIFF by
// default.
func (c *AnalysisConfig) GetOutputFormat() bandio.Format {
	if c.OutputFormat == nil {
		return bandio.FormatGTiff
	}
	f, err := bandio.ParseFormat(*c.OutputFormat)
	if err != nil {
		return bandio.FormatGTiff
	}
	return f
}

// GetDatabasePath returns the database_path value or the default.
func (c *AnalysisConfig) GetDatabasePath() string {
	if c.DatabasePath == nil || *c.DatabasePath == "" {
		return "spectral_runs.db"
	}
	return *c.DatabasePath
}

// LibraryOptions converts the formula constants into spectral.Options.
func (c *AnalysisConfig) LibraryOptions() spectral.Options {
	return spectral.Options{
		EVIEpsilon:            c.GetEVIEpsilon(),
		BrightnessTemperature: c.GetBrightnessTemperatureK(),
	}
}

// ChangeRequest builds a pipeline request for the two scenes from the
// resolved configuration values.
func (c *AnalysisConfig) ChangeRequest(before, after pipeline.Scene) (pipeline.ChangeRequest, error) {
	if err := c.Validate(); err != nil {
		return pipeline.ChangeRequest{}, err
	}
	dir, err := classify.ParseDirection(c.GetDirection())
	if err != nil {
		return pipeline.ChangeRequest{}, err
	}
	rule, err := change.ParseRule(c.GetRule())
	if err != nil {
		return pipeline.ChangeRequest{}, err
	}
	mode, err := pipeline.ParseMode(c.GetMode())
	if err != nil {
		return pipeline.ChangeRequest{}, err
	}
	return pipeline.ChangeRequest{
		Before:    before,
		After:     after,
		FamilyA:   pipeline.Family{Index: c.GetFamilyAIndex(), Threshold: c.GetFamilyAThreshold()},
		FamilyB:   pipeline.Family{Index: c.GetFamilyBIndex(), Threshold: c.GetFamilyBThreshold()},
		Direction: dir,
		Rule:      rule,
		Mode:      mode,
	}, nil
}

// Merge overlays every non-nil field of other onto c.
func (c *AnalysisConfig) Merge(other *AnalysisConfig) {
	if other == nil {
		return
	}
	if other.FamilyAIndex != nil {
		c.FamilyAIndex = other.FamilyAIndex
	}
	if other.FamilyAThreshold != nil {
		c.FamilyAThreshold = other.FamilyAThreshold
	}
	if other.FamilyBIndex != nil {
		c.FamilyBIndex = other.FamilyBIndex
	}
	if other.FamilyBThreshold != nil {
		c.FamilyBThreshold = other.FamilyBThreshold
	}
	if other.Direction != nil {
		c.Direction = other.Direction
	}
	if other.Rule != nil {
		c.Rule = other.Rule
	}
	if other.Mode != nil {
		c.Mode = other.Mode
	}
	if other.BrightnessTemperatureK != nil {
		c.BrightnessTemperatureK = other.BrightnessTemperatureK
	}
	if other.EVIEpsilon != nil {
		c.EVIEpsilon = other.EVIEpsilon
	}
	if other.TemperatureUnit != nil {
		c.TemperatureUnit = other.TemperatureUnit
	}
	if other.Workers != nil {
		c.Workers = other.Workers
	}
	if other.OutputFormat != nil {
		c.OutputFormat = other.OutputFormat
	}
	if other.DatabasePath != nil {
		c.DatabasePath = other.DatabasePath
	}
}
