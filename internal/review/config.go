package review

import (
	"fmt"
	"math"
)

// Policy decides which entries survive an approval.
type Policy string

const (
	// PolicySingle allows at most one winner. Without a winner, a group is
	// approved only when all entries agree on pressure.
	PolicySingle Policy = "single"

	// PolicyMultiple allows any number of winners; none means keep all.
	PolicyMultiple Policy = "multiple"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicySingle, PolicyMultiple:
		return p, nil
	}
	return "", fmt.Errorf("unknown approval policy %q (want %q or %q)", s, PolicySingle, PolicyMultiple)
}

// Config holds the review tunables.
type Config struct {
	ApprovalPolicy        Policy
	HighPressureThreshold float64 // MPa
	Workers               int
	MaxPerPage            int
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		ApprovalPolicy:        PolicySingle,
		HighPressureThreshold: 50,
		Workers:               4,
		MaxPerPage:            200,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if _, err := ParsePolicy(string(c.ApprovalPolicy)); err != nil {
		return fmt.Errorf("review.approval_policy: %w", err)
	}
	if math.IsNaN(c.HighPressureThreshold) || math.IsInf(c.HighPressureThreshold, 0) || c.HighPressureThreshold <= 0 {
		return fmt.Errorf("review.high_pressure_threshold must be positive, got %v", c.HighPressureThreshold)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("review.workers must be positive, got %d", c.Workers)
	}
	if c.MaxPerPage <= 0 {
		return fmt.Errorf("review.max_per_page must be positive, got %d", c.MaxPerPage)
	}
	return nil
}
