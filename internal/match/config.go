package match

import (
	"fmt"
	"math"
)

// Config holds the tunables of Engine and Resolver.
type Config struct {
	// Tolerance is the default absolute per-component tolerance used by
	// callers that do not supply one.
	Tolerance float64

	// TemperatureScale converts a composition tolerance into a temperature
	// window (K) when a query gives no explicit temperature tolerance.
	TemperatureScale float64

	// CompositionWeight and TemperatureWeight weight the two normalized
	// distances in the score.
	CompositionWeight float64
	TemperatureWeight float64

	// MaxResults caps Match when the query sets no limit.
	MaxResults int

	// AllowExact permits Tolerance == 0 (exact equality).
	AllowExact bool

	// ResolverTolerance is the match window for resolver selections that
	// carry a value.
	ResolverTolerance float64

	// AbsentThreshold is the largest fraction still treated as "component
	// not present" for range queries.
	AbsentThreshold float64

	// RangeTemperatureWindow is the ± window (K) for MatchRange and
	// EstimateCount.
	RangeTemperatureWindow float64

	// Workers bounds BatchMatch concurrency.
	Workers int
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		Tolerance:              0.02,
		TemperatureScale:       250,
		CompositionWeight:      0.8,
		TemperatureWeight:      0.2,
		MaxResults:             100,
		ResolverTolerance:      0.02,
		AbsentThreshold:        0.02,
		RangeTemperatureWindow: 5,
		Workers:                8,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	checks := []struct {
		name string
		v    float64
	}{
		{"tolerance", c.Tolerance},
		{"temperature_scale", c.TemperatureScale},
		{"composition_weight", c.CompositionWeight},
		{"temperature_weight", c.TemperatureWeight},
		{"resolver_tolerance", c.ResolverTolerance},
		{"absent_threshold", c.AbsentThreshold},
		{"range_temperature_window", c.RangeTemperatureWindow},
	}
	for _, chk := range checks {
		if math.IsNaN(chk.v) || math.IsInf(chk.v, 0) || chk.v < 0 {
			return fmt.Errorf("match.%s must be a finite non-negative number, got %v", chk.name, chk.v)
		}
	}
	if c.CompositionWeight+c.TemperatureWeight == 0 {
		return fmt.Errorf("match weights must not both be zero")
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("match.max_results must be positive, got %d", c.MaxResults)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("match.workers must be positive, got %d", c.Workers)
	}
	return nil
}
