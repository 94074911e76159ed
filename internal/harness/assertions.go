package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/hydrate/internal/filter"
	"github.com/roach88/hydrate/internal/gas"
	"github.com/roach88/hydrate/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", event.Seq, event.Op, event.Group, event.Result)
	}

	return buf.String()
}

// AssertionContext provides database access to state assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// assertRecords checks the main-table pressures for one signature.
func assertRecords(ctx context.Context, st *store.Store, trace []TraceEvent, a Assertion) error {
	comp, err := gas.ParseComposition(a.Composition)
	if err != nil {
		return err
	}
	want := gas.Record{Temperature: a.Temperature, Fractions: comp}.Signature()

	all, err := st.ListRecords(ctx, store.RecordFilter{})
	if err != nil {
		return fmt.Errorf("records: %w", err)
	}
	got := []float64{}
	for _, r := range all {
		if r.Signature() == want {
			got = append(got, r.Pressure)
		}
	}
	slices.Sort(got)

	expected := slices.Clone(a.Pressures)
	if expected == nil {
		expected = []float64{}
	}
	slices.Sort(expected)

	if !slices.Equal(got, expected) {
		return &AssertionError{
			Type:     AssertRecords,
			Expected: fmt.Sprintf("pressures %v at T=%g", expected, a.Temperature),
			Actual:   fmt.Sprintf("pressures %v", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertGroupStatus checks that every entry of a group has the status.
func assertGroupStatus(ctx context.Context, st *store.Store, trace []TraceEvent, a Assertion) error {
	entries, err := st.GroupEntries(ctx, a.Group)
	if err != nil {
		return fmt.Errorf("group_status: %w", err)
	}
	if len(entries) == 0 {
		return &AssertionError{
			Type:     AssertGroupStatus,
			Expected: fmt.Sprintf("group %s %s", a.Group, a.Status),
			Actual:   "group not found",
			Trace:    trace,
		}
	}
	for _, e := range entries {
		if string(e.Status) != a.Status {
			return &AssertionError{
				Type:     AssertGroupStatus,
				Expected: fmt.Sprintf("group %s %s", a.Group, a.Status),
				Actual:   fmt.Sprintf("entry %d is %s", e.ID, e.Status),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTotals checks table row counts.
func assertTotals(ctx context.Context, st *store.Store, trace []TraceEvent, a Assertion) error {
	t, err := st.Totals(ctx)
	if err != nil {
		return fmt.Errorf("totals: %w", err)
	}
	checks := []struct {
		name string
		want *int
		got  int
	}{
		{"records", a.Records, t.Records},
		{"pending_entries", a.PendingEntries, t.PendingEntries},
		{"pending", a.Pending, t.Pending},
	}
	for _, c := range checks {
		if c.want != nil && *c.want != c.got {
			return &AssertionError{
				Type:     AssertTotals,
				Expected: fmt.Sprintf("%s = %d", c.name, *c.want),
				Actual:   fmt.Sprintf("%s = %d", c.name, c.got),
				Trace:    trace,
			}
		}
	}
	return nil
}

// wherePredicate turns a count assertion's bounds into a predicate.
func wherePredicate(where map[string][]float64) (filter.Predicate, error) {
	var preds []filter.Predicate
	for name, bounds := range where {
		if len(bounds) != 2 || bounds[0] > bounds[1] {
			return nil, fmt.Errorf("where %s: want [min, max], got %v", name, bounds)
		}
		field := filter.Field(name)
		if !field.Valid() {
			c, err := gas.ParseComponent(name)
			if err != nil {
				return nil, fmt.Errorf("where %s: %w", name, err)
			}
			field = filter.Fraction(c)
		}
		preds = append(preds, filter.Between{Field: field, Min: bounds[0], Max: bounds[1]})
	}
	p := filter.All(preds...)
	if err := filter.Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

// assertCount counts main-table records in memory against the bounds.
func assertCount(ctx context.Context, st *store.Store, trace []TraceEvent, a Assertion) error {
	p, err := wherePredicate(a.Where)
	if err != nil {
		return err
	}
	all, err := st.ListRecords(ctx, store.RecordFilter{})
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}
	got := 0
	for _, r := range all {
		if filter.Eval(p, r) {
			got++
		}
	}
	if got != *a.Count {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d records where %v", *a.Count, a.Where),
			Actual:   fmt.Sprintf("%d records", got),
			Trace:    trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the final state.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		if actx == nil || actx.Store == nil {
			errors = append(errors, fmt.Sprintf("assertion[%d]: %s requires database context", i, assertion.Type))
			continue
		}

		switch assertion.Type {
		case AssertRecords:
			err = assertRecords(actx.Ctx, actx.Store, result.Trace, assertion)
		case AssertGroupStatus:
			err = assertGroupStatus(actx.Ctx, actx.Store, result.Trace, assertion)
		case AssertTotals:
			err = assertTotals(actx.Ctx, actx.Store, result.Trace, assertion)
		case AssertCount:
			err = assertCount(actx.Ctx, actx.Store, result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
