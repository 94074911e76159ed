package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hydrate/internal/dataset"
	"github.com/roach88/hydrate/internal/filter"
)

func ptr[T any](v T) *T { return &v }

func row(temperature, pressure float64, comp map[string]float64) dataset.Row {
	return dataset.Row{Temperature: ptr(temperature), Pressure: ptr(pressure), Composition: comp}
}

var methaneEthane = map[string]float64{"CH4": 0.9, "C2H6": 0.1}

func TestRunWithGolden_ApproveWinner(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/approve_winner.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_RestoreCycle(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/restore_cycle.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, len(scenario.Flow)+1)

	correct := result.Trace[2]
	assert.Equal(t, OpCorrect, correct.Op)
	assert.Equal(t, 2.62, correct.Detail["pressure"])
	assert.Equal(t, 2.7, correct.Detail["original_pressure"])

	restore := result.Trace[4]
	assert.Equal(t, 2, restore.Detail["removed"])

	// The second consecutive restore is a no-op.
	assert.Equal(t, true, result.Trace[8].Detail["no_op"])
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/approve_winner.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalSnapshot(scenario, first)
	require.NoError(t, err)
	b, err := MarshalSnapshot(scenario, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing_winner",
		Description: "single policy needs a winner when pressures disagree",
		Records: []dataset.Row{
			row(275, 2.5, methaneEthane),
			row(275, 3.1, methaneEthane),
		},
		Flow: []Step{
			{Op: OpQuarantine},
			{Op: OpApprove, Group: "G0001"},
		},
		Assertions: []Assertion{
			{Type: AssertGroupStatus, Group: "G0001", Status: "pending"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")
	assert.Equal(t, "INVALID_ARGUMENT", result.Trace[2].Result)
}

func TestRun_ExpectationMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_expectation",
		Description: "rejecting a pending group succeeds",
		Records: []dataset.Row{
			row(275, 2.5, methaneEthane),
			row(275, 3.1, methaneEthane),
		},
		Flow: []Step{
			{Op: OpQuarantine},
			{Op: OpReject, Group: "G0001", Expect: &Expect{Error: "INVALID_STATE_TRANSITION"}},
			{Op: OpRestore, Group: "G0404", Expect: &Expect{Error: "NOT_FOUND"}},
		},
		Assertions: []Assertion{
			{Type: AssertTotals, Records: ptr(0)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "got success")
	assert.Contains(t, result.Errors[1], "expected NOT_FOUND")
}

func TestRun_FailedAssertions(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing_assertions",
		Description: "every assertion type reports a mismatch",
		Records: []dataset.Row{
			row(275, 2.5, methaneEthane),
			row(275, 3.1, methaneEthane),
		},
		Flow: []Step{{Op: OpScan}},
		Assertions: []Assertion{
			{Type: AssertRecords, Temperature: 275, Composition: methaneEthane, Pressures: []float64{2.5}},
			{Type: AssertGroupStatus, Group: "G0001", Status: "pending"},
			{Type: AssertTotals, PendingEntries: ptr(2)},
			{Type: AssertCount, Where: map[string][]float64{"pressure": {3, 4}}, Count: ptr(2)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "Assertion failed: records")
	assert.Contains(t, result.Errors[0], "[2.5 3.1]")
	assert.Contains(t, result.Errors[1], "group not found")
	assert.Contains(t, result.Errors[2], "pending_entries = 0")
	assert.Contains(t, result.Errors[3], "Actual: 1 records")
}

func TestWherePredicate(t *testing.T) {
	p, err := wherePredicate(map[string][]float64{"temperature": {270, 280}, "x_c2h6": {0.05, 0.2}})
	require.NoError(t, err)
	assert.Len(t, p.(filter.And).Predicates, 2)

	_, err = wherePredicate(map[string][]float64{"pressure": {4, 3}})
	assert.Error(t, err)

	_, err = wherePredicate(map[string][]float64{"argon": {0, 1}})
	assert.Error(t, err)
}

func TestRun_UnknownWinner(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown_winner",
		Description: "winners are named by pressure",
		Records: []dataset.Row{
			row(275, 2.5, methaneEthane),
			row(275, 3.1, methaneEthane),
		},
		Flow: []Step{
			{Op: OpQuarantine},
			{Op: OpApprove, Group: "G0001", Winners: []float64{9.9}, Expect: &Expect{Error: "NOT_FOUND"}},
		},
		Assertions: []Assertion{
			{Type: AssertTotals, Pending: ptr(2)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
