// Package config loads hydrate settings from a TOML file, a .env file and
// the process environment.
//
// Precedence, lowest first: built-in defaults, the TOML file, environment
// variables. Keys missing from the file keep their defaults.
//
//	[database]
//	path = "hydrate.db"
//
//	[match]
//	tolerance = 0.02
//	workers = 8
//
//	[review]
//	approval_policy = "single"
//
//	[import]
//	pressure_soft_max = 10.0
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/roach88/hydrate/internal/match"
	"github.com/roach88/hydrate/internal/review"
	"github.com/roach88/hydrate/internal/validate"
)

// Environment variables.
const (
	EnvDatabase       = "HYDRATE_DB"
	EnvConfig         = "HYDRATE_CONFIG"
	EnvApprovalPolicy = "HYDRATE_APPROVAL_POLICY"
)

// DefaultPath is the config file read when neither a flag nor HYDRATE_CONFIG
// names one. Its absence is not an error.
const DefaultPath = "hydrate.toml"

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type MatchConfig struct {
	Tolerance              float64 `toml:"tolerance"`
	TemperatureScale       float64 `toml:"temperature_scale"`
	CompositionWeight      float64 `toml:"composition_weight"`
	TemperatureWeight      float64 `toml:"temperature_weight"`
	MaxResults             int     `toml:"max_results"`
	AllowExact             bool    `toml:"allow_exact"`
	ResolverTolerance      float64 `toml:"resolver_tolerance"`
	AbsentThreshold        float64 `toml:"absent_threshold"`
	RangeTemperatureWindow float64 `toml:"range_temperature_window"`
	Workers                int     `toml:"workers"`
}

type ReviewConfig struct {
	ApprovalPolicy        string  `toml:"approval_policy"`
	HighPressureThreshold float64 `toml:"high_pressure_threshold"`
	Workers               int     `toml:"workers"`
	MaxPerPage            int     `toml:"max_per_page"`
}

type ImportConfig struct {
	PressureSoftMax  float64 `toml:"pressure_soft_max"`
	SumSoftTolerance float64 `toml:"sum_soft_tolerance"`
	SumHardTolerance float64 `toml:"sum_hard_tolerance"`
}

// Config is the full settings tree.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Match    MatchConfig    `toml:"match"`
	Review   ReviewConfig   `toml:"review"`
	Import   ImportConfig   `toml:"import"`
}

// Default returns the built-in settings.
func Default() Config {
	m := match.DefaultConfig()
	r := review.DefaultConfig()
	v := validate.DefaultConfig()
	return Config{
		Database: DatabaseConfig{Path: "hydrate.db"},
		Match: MatchConfig{
			Tolerance:              m.Tolerance,
			TemperatureScale:       m.TemperatureScale,
			CompositionWeight:      m.CompositionWeight,
			TemperatureWeight:      m.TemperatureWeight,
			MaxResults:             m.MaxResults,
			AllowExact:             m.AllowExact,
			ResolverTolerance:      m.ResolverTolerance,
			AbsentThreshold:        m.AbsentThreshold,
			RangeTemperatureWindow: m.RangeTemperatureWindow,
			Workers:                m.Workers,
		},
		Review: ReviewConfig{
			ApprovalPolicy:        string(r.ApprovalPolicy),
			HighPressureThreshold: r.HighPressureThreshold,
			Workers:               r.Workers,
			MaxPerPage:            r.MaxPerPage,
		},
		Import: ImportConfig{
			PressureSoftMax:  v.PressureSoftMax,
			SumSoftTolerance: v.SumSoftTolerance,
			SumHardTolerance: v.SumHardTolerance,
		},
	}
}

// Load builds the settings. path names the TOML file; when empty,
// HYDRATE_CONFIG and then DefaultPath are tried, and a missing default file
// is ignored. An explicitly named file must exist.
//
// A .env file in the working directory, if present, is loaded into the
// environment first. Variables already set win over .env.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		if env := os.Getenv(EnvConfig); env != "" {
			path, explicit = env, true
		} else {
			path = DefaultPath
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDatabase); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv(EnvApprovalPolicy); v != "" {
		cfg.Review.ApprovalPolicy = v
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if err := c.MatchConfig().Validate(); err != nil {
		return err
	}
	if _, err := c.ReviewConfig(); err != nil {
		return err
	}
	return c.ValidateConfig().Validate()
}

// MatchConfig converts the [match] section.
func (c Config) MatchConfig() match.Config {
	m := c.Match
	return match.Config{
		Tolerance:              m.Tolerance,
		TemperatureScale:       m.TemperatureScale,
		CompositionWeight:      m.CompositionWeight,
		TemperatureWeight:      m.TemperatureWeight,
		MaxResults:             m.MaxResults,
		AllowExact:             m.AllowExact,
		ResolverTolerance:      m.ResolverTolerance,
		AbsentThreshold:        m.AbsentThreshold,
		RangeTemperatureWindow: m.RangeTemperatureWindow,
		Workers:                m.Workers,
	}
}

// ReviewConfig converts and validates the [review] section.
func (c Config) ReviewConfig() (review.Config, error) {
	policy, err := review.ParsePolicy(c.Review.ApprovalPolicy)
	if err != nil {
		return review.Config{}, fmt.Errorf("review.approval_policy: %w", err)
	}
	rc := review.Config{
		ApprovalPolicy:        policy,
		HighPressureThreshold: c.Review.HighPressureThreshold,
		Workers:               c.Review.Workers,
		MaxPerPage:            c.Review.MaxPerPage,
	}
	if err := rc.Validate(); err != nil {
		return review.Config{}, err
	}
	return rc, nil
}

// ValidateConfig converts the [import] section.
func (c Config) ValidateConfig() validate.Config {
	return validate.Config{
		PressureSoftMax:  c.Import.PressureSoftMax,
		SumSoftTolerance: c.Import.SumSoftTolerance,
		SumHardTolerance: c.Import.SumHardTolerance,
	}
}
