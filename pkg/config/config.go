// Package config provides configuration loading and management for dosegamma.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"dosegamma/pkg/gamma"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Gamma parameters
	Gamma struct {
		// DosePercentThreshold is the dose difference criterion in percent
		DosePercentThreshold float64 `yaml:"dosePercentThreshold"`

		// DistanceMMThreshold is the distance to agreement criterion in mm
		DistanceMMThreshold float64 `yaml:"distanceMMThreshold"`

		// LowerDoseCutoff ignores reference points below this absolute dose
		LowerDoseCutoff float64 `yaml:"lowerDoseCutoff"`

		// LowerPercentDoseCutoff ignores reference points below this
		// percentage of the normalisation dose
		LowerPercentDoseCutoff float64 `yaml:"lowerPercentDoseCutoff"`

		// InterpFraction is the evaluation grid refinement factor
		InterpFraction int `yaml:"interpFraction"`

		// MaxGamma caps gamma values; .inf means unbounded
		MaxGamma float64 `yaml:"maxGamma"`

		// LocalGamma selects local dose normalisation
		LocalGamma bool `yaml:"localGamma"`

		// GlobalNormalisation overrides the maximum reference dose
		GlobalNormalisation float64 `yaml:"globalNormalisation"`

		// SkipOncePassed stops each search at the first passing candidate
		SkipOncePassed bool `yaml:"skipOncePassed"`

		// RandomSubset limits evaluation to this many random points
		RandomSubset int `yaml:"randomSubset"`

		// Seed seeds the random subset
		Seed uint64 `yaml:"seed"`
	} `yaml:"gamma"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// Search names the candidate search strategy: grid, kdtree or exhaustive
		Search string `yaml:"search"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// SaveGammaMap writes the gamma map and summary as YAML
		SaveGammaMap bool `yaml:"saveGammaMap"`

		// SaveHistogram writes a gamma histogram plot
		SaveHistogram bool `yaml:"saveHistogram"`

		// SaveSlices writes gamma map slice images along every axis
		SaveSlices bool `yaml:"saveSlices"`

		// HistogramBins is the number of histogram bins
		HistogramBins int `yaml:"histogramBins"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	p := gamma.DefaultParams()
	cfg.Gamma.DosePercentThreshold = p.DosePercentThreshold
	cfg.Gamma.DistanceMMThreshold = p.DistanceMMThreshold
	cfg.Gamma.LowerPercentDoseCutoff = 20
	cfg.Gamma.InterpFraction = p.InterpFraction
	cfg.Gamma.MaxGamma = p.MaxGamma
	cfg.Gamma.Seed = p.Seed

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.Search = string(gamma.SearchGrid)

	cfg.Output.SaveGammaMap = true
	cfg.Output.SaveHistogram = true
	cfg.Output.SaveSlices = false
	cfg.Output.HistogramBins = gamma.DefaultHistogramBins
	cfg.Output.Verbose = true

	return cfg
}

// GammaParams converts the gamma section to engine parameters
func (c *Config) GammaParams() gamma.Params {
	return gamma.Params{
		DosePercentThreshold:   c.Gamma.DosePercentThreshold,
		DistanceMMThreshold:    c.Gamma.DistanceMMThreshold,
		LowerDoseCutoff:        c.Gamma.LowerDoseCutoff,
		LowerPercentDoseCutoff: c.Gamma.LowerPercentDoseCutoff,
		InterpFraction:         c.Gamma.InterpFraction,
		MaxGamma:               c.Gamma.MaxGamma,
		LocalGamma:             c.Gamma.LocalGamma,
		GlobalNormalisation:    c.Gamma.GlobalNormalisation,
		SkipOncePassed:         c.Gamma.SkipOncePassed,
		RandomSubset:           c.Gamma.RandomSubset,
		Seed:                   c.Gamma.Seed,
	}
}

// SearchStrategy returns the configured search strategy
func (c *Config) SearchStrategy() (gamma.Strategy, error) {
	return gamma.ParseStrategy(c.Processing.Search)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
