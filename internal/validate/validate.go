package validate

import (
	_ "embed"
	"fmt"
	"math"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/hydrate/internal/gas"
)

//go:embed record.cue
var schemaSource string

// Config holds the import thresholds.
type Config struct {
	PressureSoftMax  float64 // MPa; above this a record warns
	SumSoftTolerance float64 // |sum-1| above this warns
	SumHardTolerance float64 // |sum-1| above this is an error
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		PressureSoftMax:  10,
		SumSoftTolerance: 0.02,
		SumHardTolerance: 0.05,
	}
}

// Validate checks the thresholds for consistency.
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"pressure_soft_max":  c.PressureSoftMax,
		"sum_soft_tolerance": c.SumSoftTolerance,
		"sum_hard_tolerance": c.SumHardTolerance,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("import.%s must be a finite non-negative number, got %v", name, v)
		}
	}
	if c.SumSoftTolerance > c.SumHardTolerance {
		return fmt.Errorf("import.sum_soft_tolerance %v exceeds sum_hard_tolerance %v", c.SumSoftTolerance, c.SumHardTolerance)
	}
	return nil
}

// Issue is one finding about one field.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return i.Field + ": " + i.Message
}

// Report holds the findings for one record.
type Report struct {
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Valid reports whether the record may be imported.
func (r Report) Valid() bool {
	return len(r.Errors) == 0
}

// Validator checks records against the embedded schema.
//
// Thread-safety: a Validator is not safe for concurrent use; the underlying
// CUE context is not.
type Validator struct {
	cfg    Config
	ctx    *cue.Context
	record cue.Value
}

// New compiles the schema.
func New(cfg Config) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("record.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}
	record := schema.LookupPath(cue.ParsePath("#Record"))
	if err := record.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Record: %w", err)
	}
	return &Validator{cfg: cfg, ctx: ctx, record: record}, nil
}

// fields returns the record keyed by storage column.
func fields(r gas.Record) map[string]float64 {
	m := map[string]float64{
		"temperature": r.Temperature,
		"pressure":    r.Pressure,
	}
	for _, c := range gas.AllComponents {
		m[c.Column()] = r.Fractions[c]
	}
	return m
}

// Record checks one record.
func (v *Validator) Record(r gas.Record) Report {
	var rep Report

	m := fields(r)
	finite := true
	for _, name := range fieldOrder() {
		if x := m[name]; math.IsNaN(x) || math.IsInf(x, 0) {
			rep.Errors = append(rep.Errors, Issue{Field: name, Message: "must be a finite number"})
			finite = false
		}
	}
	if !finite {
		return rep
	}

	rep.Errors = append(rep.Errors, v.schemaIssues(m)...)

	sum := r.Fractions.Sum()
	dev := math.Abs(sum - 1)
	switch {
	case sum == 0:
		rep.Errors = append(rep.Errors, Issue{Field: "composition", Message: "mole fractions must not all be zero"})
	case dev > v.cfg.SumHardTolerance:
		rep.Errors = append(rep.Errors, Issue{Field: "composition", Message: fmt.Sprintf("mole fractions sum to %.4f, want 1", sum)})
	case dev > v.cfg.SumSoftTolerance:
		rep.Warnings = append(rep.Warnings, Issue{Field: "composition", Message: fmt.Sprintf("mole fractions sum to %.4f, off by more than %g", sum, v.cfg.SumSoftTolerance)})
	}

	if r.Pressure > v.cfg.PressureSoftMax {
		rep.Warnings = append(rep.Warnings, Issue{
			Field:   "pressure",
			Message: fmt.Sprintf("%.3f MPa is above %g MPa, possibly an outlier", r.Pressure, v.cfg.PressureSoftMax),
		})
	}
	return rep
}

func (v *Validator) schemaIssues(m map[string]float64) []Issue {
	val := v.record.Unify(v.ctx.Encode(m))
	err := val.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var issues []Issue
	seen := make(map[string]bool)
	for _, e := range cueerrors.Errors(err) {
		field := "record"
		if p := e.Path(); len(p) > 0 {
			field = p[len(p)-1]
		}
		if seen[field] {
			continue
		}
		seen[field] = true
		format, args := e.Msg()
		issues = append(issues, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
	}
	return issues
}

func fieldOrder() []string {
	names := []string{"temperature", "pressure"}
	for _, c := range gas.AllComponents {
		names = append(names, c.Column())
	}
	return names
}

// RowReport is the report of one record of a batch. Row is 1-based.
type RowReport struct {
	Row int `json:"row"`
	Report
}

// BatchReport summarizes a batch.
type BatchReport struct {
	Total    int         `json:"total"`
	Valid    int         `json:"valid"`
	Invalid  int         `json:"invalid"`
	Warnings int         `json:"warnings"` // records with at least one warning
	Rows     []RowReport `json:"rows,omitempty"`
}

// maxReportedRows caps BatchReport.Rows.
const maxReportedRows = 50

// Batch checks every record. Rows lists the first failing or warning
// records in input order.
func (v *Validator) Batch(recs []gas.Record) BatchReport {
	br := BatchReport{Total: len(recs)}
	for i, r := range recs {
		rep := v.Record(r)
		if rep.Valid() {
			br.Valid++
		} else {
			br.Invalid++
		}
		if len(rep.Warnings) > 0 {
			br.Warnings++
		}
		if (!rep.Valid() || len(rep.Warnings) > 0) && len(br.Rows) < maxReportedRows {
			br.Rows = append(br.Rows, RowReport{Row: i + 1, Report: rep})
		}
	}
	return br
}

// Summary renders the issues of a report on one line.
func (r Report) Summary() string {
	parts := make([]string, 0, len(r.Errors)+len(r.Warnings))
	for _, i := range r.Errors {
		parts = append(parts, i.String())
	}
	for _, i := range r.Warnings {
		parts = append(parts, "warning: "+i.String())
	}
	return strings.Join(parts, "; ")
}
