package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/banshee-data/mosaic/internal/mosaic"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/mosaic.defaults.json"

// MatchConfig holds run tuning that does not belong in the grid header.
// Unset fields fall back to the defaults returned by the Get* methods, so
// partial files are safe.
type MatchConfig struct {
	// Matcher params
	Workers      *int    `json:"workers,omitempty"` // 0 uses every CPU
	WindowPolicy *string `json:"window_policy,omitempty"`
	WindowMargin *int    `json:"window_margin,omitempty"`

	// Progress and sampling
	ProgressEvery    *int    `json:"progress_every,omitempty"`
	ProgressInterval *string `json:"progress_interval,omitempty"` // duration string like "2s"
	PlotEvery        *int    `json:"plot_every,omitempty"`

	// filterdb params
	FilterLastNum       *int `json:"filter_last_num,omitempty"`
	FilterProgressEvery *int `json:"filter_progress_every,omitempty"`
}

func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }

// EmptyMatchConfig returns a MatchConfig with all fields unset.
func EmptyMatchConfig() *MatchConfig {
	return &MatchConfig{}
}

// DefaultMatchConfig returns a MatchConfig with every field set to its
// default.
func DefaultMatchConfig() *MatchConfig {
	c := EmptyMatchConfig()
	return &MatchConfig{
		Workers:             ptrInt(c.GetWorkers()),
		WindowPolicy:        ptrString(c.GetWindowPolicy().String()),
		WindowMargin:        ptrInt(c.GetWindowMargin()),
		ProgressEvery:       ptrInt(c.GetProgressEvery()),
		ProgressInterval:    ptrString(c.GetProgressInterval().String()),
		PlotEvery:           ptrInt(c.GetPlotEvery()),
		FilterLastNum:       ptrInt(c.GetFilterLastNum()),
		FilterProgressEvery: ptrInt(c.GetFilterProgressEvery()),
	}
}

// LoadMatchConfig loads a MatchConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadMatchConfig(path string) (*MatchConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

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

	cfg := EmptyMatchConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching parent
// directories. Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *MatchConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/ and cmd/mosaic/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadMatchConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that set values are in range.
func (c *MatchConfig) Validate() error {
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.WindowPolicy != nil {
		if _, err := mosaic.ParseWindowPolicy(*c.WindowPolicy); err != nil {
			return err
		}
	}
	if c.WindowMargin != nil && *c.WindowMargin < 0 {
		return fmt.Errorf("window_margin must be non-negative, got %d", *c.WindowMargin)
	}
	if c.ProgressEvery != nil && *c.ProgressEvery < 0 {
		return fmt.Errorf("progress_every must be non-negative, got %d", *c.ProgressEvery)
	}
	if c.ProgressInterval != nil && *c.ProgressInterval != "" {
		if _, err := time.ParseDuration(*c.ProgressInterval); err != nil {
			return fmt.Errorf("invalid progress_interval '%s': %w", *c.ProgressInterval, err)
		}
	}
	if c.PlotEvery != nil && *c.PlotEvery < 1 {
		return fmt.Errorf("plot_every must be positive, got %d", *c.PlotEvery)
	}
	if c.FilterLastNum != nil && (*c.FilterLastNum < 1 || *c.FilterLastNum > 999) {
		return fmt.Errorf("filter_last_num must be between 1 and 999, got %d", *c.FilterLastNum)
	}
	if c.FilterProgressEvery != nil && *c.FilterProgressEvery < 0 {
		return fmt.Errorf("filter_progress_every must be non-negative, got %d", *c.FilterProgressEvery)
	}
	return nil
}

// GetWorkers returns the worker count, resolving 0 to the CPU count.
func (c *MatchConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	if *c.Workers == 0 {
		return runtime.NumCPU()
	}
	return *c.Workers
}

// GetWindowPolicy returns the window policy or the default.
func (c *MatchConfig) GetWindowPolicy() mosaic.WindowPolicy {
	if c.WindowPolicy == nil {
		return mosaic.WindowByRank
	}
	p, err := mosaic.ParseWindowPolicy(*c.WindowPolicy)
	if err != nil {
		return mosaic.WindowByRank // default on parse error
	}
	return p
}

// GetWindowMargin returns the window_margin value or the default.
func (c *MatchConfig) GetWindowMargin() int {
	if c.WindowMargin == nil {
		return 0
	}
	return *c.WindowMargin
}

// GetProgressEvery returns the progress_every value or the default.
func (c *MatchConfig) GetProgressEvery() int {
	if c.ProgressEvery == nil {
		return 1000
	}
	return *c.ProgressEvery
}

// GetProgressInterval parses and returns ProgressInterval as a time.Duration.
func (c *MatchConfig) GetProgressInterval() time.Duration {
	if c.ProgressInterval == nil || *c.ProgressInterval == "" {
		return 2 * time.Second // default
	}
	d, err := time.ParseDuration(*c.ProgressInterval)
	if err != nil {
		return 2 * time.Second // default on parse error
	}
	return d
}

// GetPlotEvery returns the plot_every value or the default.
func (c *MatchConfig) GetPlotEvery() int {
	if c.PlotEvery == nil {
		return 100
	}
	return *c.PlotEvery
}

// GetFilterLastNum returns the filter_last_num value or the default.
func (c *MatchConfig) GetFilterLastNum() int {
	if c.FilterLastNum == nil {
		return 100
	}
	return *c.FilterLastNum
}

// GetFilterProgressEvery returns the filter_progress_every value or the default.
func (c *MatchConfig) GetFilterProgressEvery() int {
	if c.FilterProgressEvery == nil {
		return 100
	}
	return *c.FilterProgressEvery
}

// ApplyTo copies the matcher settings into opts.
func (c *MatchConfig) ApplyTo(opts *mosaic.Options) {
	opts.Workers = c.GetWorkers()
	opts.Policy = c.GetWindowPolicy()
	opts.WindowMargin = c.GetWindowMargin()
}
