package config

import (
	"fmt"
	"time"

	"github.com/dpup/mvalues/server/internal/lib/mvalues"
)

// Config represents the complete server configuration
type Config struct {
	Interpolation InterpolationConfig `koanf:"interpolation" yaml:"interpolation"`
	Batch         BatchConfig         `koanf:"batch" yaml:"batch"`
	Cache         CacheConfig         `koanf:"cache" yaml:"cache"`
}

// InterpolationConfig holds the defaults applied to every interpolation request
type InterpolationConfig struct {
	// Rounding is one of half_away_from_zero, half_even or none
	Rounding string `koanf:"rounding" yaml:"rounding"`
	// Unknown is the missing M-value marker: zero or nan
	Unknown string `koanf:"unknown" yaml:"unknown"`
}

// BatchConfig holds feature batch processing settings
type BatchConfig struct {
	Workers        int           `koanf:"workers" yaml:"workers"`
	FeatureTimeout time.Duration `koanf:"feature_timeout" yaml:"feature_timeout"`
	// MaxFeatures caps the number of features accepted in one request
	MaxFeatures int `koanf:"max_features" yaml:"max_features"`
}

// CacheConfig holds result cache settings
type CacheConfig struct {
	Enabled         bool          `koanf:"enabled" yaml:"enabled"`
	TTL             time.Duration `koanf:"ttl" yaml:"ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval" yaml:"cleanup_interval"`
}

// Options converts the interpolation settings into interpolator options
func (c InterpolationConfig) Options() ([]mvalues.Option, error) {
	rounding, err := mvalues.ParseRoundingMode(c.Rounding)
	if err != nil {
		return nil, err
	}
	unknown, err := mvalues.ParseUnknownMode(c.Unknown)
	if err != nil {
		return nil, err
	}
	return []mvalues.Option{
		mvalues.WithRounding(rounding),
		mvalues.WithUnknown(unknown),
	}, nil
}

// Validate checks the configuration for values that cannot work
func (c *Config) Validate() error {
	if _, err := c.Interpolation.Options(); err != nil {
		return fmt.Errorf("interpolation: %w", err)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch: workers must be at least 1, got %d", c.Batch.Workers)
	}
	if c.Batch.FeatureTimeout < 0 {
		return fmt.Errorf("batch: feature_timeout must not be negative")
	}
	if c.Batch.MaxFeatures < 1 {
		return fmt.Errorf("batch: max_features must be at least 1, got %d", c.Batch.MaxFeatures)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache: ttl must be positive when the cache is enabled")
	}
	return nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Interpolation: InterpolationConfig{
			Rounding: string(mvalues.RoundHalfAwayFromZero),
			Unknown:  string(mvalues.UnknownZero),
		},
		Batch: BatchConfig{
			Workers:        4,
			FeatureTimeout: 10 * time.Second,
			MaxFeatures:    10000,
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             15 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
	}
}
