package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hydrate/internal/dataset"
	"github.com/roach88/hydrate/internal/gas"
	"github.com/roach88/hydrate/internal/review"
)

// Scenario defines an end-to-end review scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Policy is the approval policy. Defaults to single.
	Policy string `yaml:"policy,omitempty"`

	// BatchID is the fixed move-run id. Defaults to "test-batch-default".
	BatchID string `yaml:"batch_id,omitempty"`

	// Records seed the main table.
	Records []dataset.Row `yaml:"records"`

	// Flow contains the steps to execute.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final tables.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation of the flow.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Group is the review group id (approve, reject, restore, correct).
	Group string `yaml:"group,omitempty"`

	// Winners names the surviving entries of an approve by pressure.
	Winners []float64 `yaml:"winners,omitempty"`

	// From and To are the old and new pressure of a correct.
	From float64 `yaml:"from,omitempty"`
	To   float64 `yaml:"to,omitempty"`

	// Composition, Temperature and Tolerance parameterize a match. A zero
	// Tolerance uses the engine default.
	Composition map[string]float64 `yaml:"composition,omitempty"`
	Temperature float64            `yaml:"temperature,omitempty"`
	Tolerance   float64            `yaml:"tolerance,omitempty"`

	// Expect specifies the expected outcome. If nil, the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies a step's expected failure.
type Expect struct {
	// Error is the expected error code, e.g. INVALID_STATE_TRANSITION.
	Error string `yaml:"error"`
}

// Step operations.
const (
	OpScan       = "scan"
	OpQuarantine = "quarantine"
	OpApprove    = "approve"
	OpReject     = "reject"
	OpRestore    = "restore"
	OpCorrect    = "correct"
	OpMatch      = "match"
)

// Assertion validates final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Temperature and Composition select a signature (records).
	Temperature float64            `yaml:"temperature,omitempty"`
	Composition map[string]float64 `yaml:"composition,omitempty"`

	// Pressures are the expected main-table pressures, any order (records).
	Pressures []float64 `yaml:"pressures,omitempty"`

	// Group and Status (group_status).
	Group  string `yaml:"group,omitempty"`
	Status string `yaml:"status,omitempty"`

	// Expected row counts (totals). Nil fields are not checked.
	Records        *int `yaml:"records,omitempty"`
	PendingEntries *int `yaml:"pending_entries,omitempty"`
	Pending        *int `yaml:"pending,omitempty"`

	// Where bounds fields as [min, max] and Count is the expected number
	// of main-table records inside every bound (count). Keys are
	// temperature, pressure or a component name.
	Where map[string][]float64 `yaml:"where,omitempty"`
	Count *int                 `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertRecords     = "records"
	AssertGroupStatus = "group_status"
	AssertTotals      = "totals"
	AssertCount       = "count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Policy != "" {
		if _, err := review.ParsePolicy(s.Policy); err != nil {
			return err
		}
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, row := range s.Records {
		if _, err := row.Record(); err != nil {
			return fmt.Errorf("records[%d]: %w", i, err)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s *Step) error {
	switch s.Op {
	case OpScan, OpQuarantine:
	case OpApprove, OpReject, OpRestore:
		if s.Group == "" {
			return fmt.Errorf("flow[%d]: group is required for %s", index, s.Op)
		}
	case OpCorrect:
		if s.Group == "" {
			return fmt.Errorf("flow[%d]: group is required for correct", index)
		}
		if s.From == 0 {
			return fmt.Errorf("flow[%d]: from is required for correct", index)
		}
	case OpMatch:
		if len(s.Composition) == 0 {
			return fmt.Errorf("flow[%d]: composition is required for match", index)
		}
	case "":
		return fmt.Errorf("flow[%d]: op is required", index)
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", index, s.Op)
	}

	if s.Expect != nil && s.Expect.Error == "" {
		return fmt.Errorf("flow[%d].expect: error is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertRecords:
		if len(a.Composition) == 0 {
			return fmt.Errorf("assertions[%d]: composition is required for records", index)
		}
		if _, err := gas.ParseComposition(a.Composition); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertGroupStatus:
		if a.Group == "" {
			return fmt.Errorf("assertions[%d]: group is required for group_status", index)
		}
		if !gas.ReviewStatus(a.Status).Valid() {
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
	case AssertTotals:
		if a.Records == nil && a.PendingEntries == nil && a.Pending == nil {
			return fmt.Errorf("assertions[%d]: totals needs at least one count", index)
		}
	case AssertCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required", index)
		}
		if _, err := wherePredicate(a.Where); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
