package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/approve_winner.yaml")
	require.NoError(t, err)

	assert.Equal(t, "approve_winner", s.Name)
	assert.Equal(t, "single", s.Policy)
	assert.Equal(t, "batch-approve-winner", s.BatchID)
	require.Len(t, s.Records, 3)
	require.Len(t, s.Flow, 6)
	assert.Equal(t, []float64{2.5}, s.Flow[2].Winners)
	require.NotNil(t, s.Flow[4].Expect)
	assert.Equal(t, "INVALID_STATE_TRANSITION", s.Flow[4].Expect.Error)
	require.Len(t, s.Assertions, 3)
	require.NotNil(t, s.Assertions[2].Pending)
	assert.Equal(t, 0, *s.Assertions[2].Pending)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Invalid(t *testing.T) {
	base := "name: n\ndescription: d\n"
	flow := "flow:\n  - op: scan\n"
	asserts := "assertions:\n  - type: totals\n    records: 0\n"

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown field", base + flow + asserts + "assertion: []\n", "failed to parse YAML"},
		{"missing name", "description: d\n" + flow + asserts, "name is required"},
		{"missing description", "name: n\n" + flow + asserts, "description is required"},
		{"bad policy", base + "policy: all\n" + flow + asserts, "approval policy"},
		{"empty flow", base + asserts, "flow list is required"},
		{"empty assertions", base + flow, "assertions list is required"},
		{"unknown op", base + "flow:\n  - op: merge\n" + asserts, "unknown op"},
		{"approve without group", base + "flow:\n  - op: approve\n" + asserts, "group is required"},
		{"correct without from", base + "flow:\n  - op: correct\n    group: G0001\n" + asserts, "from is required"},
		{"match without composition", base + "flow:\n  - op: match\n" + asserts, "composition is required"},
		{"empty expect", base + "flow:\n  - op: scan\n    expect: {}\n" + asserts, "error is required"},
		{"bad record", base + "records:\n  - {pressure: 3}\n" + flow + asserts, "temperature is required"},
		{"unknown assertion", base + flow + "assertions:\n  - type: trace\n", "unknown assertion type"},
		{"bad status", base + flow + "assertions:\n  - type: group_status\n    group: G0001\n    status: archived\n", "unknown status"},
		{"empty totals", base + flow + "assertions:\n  - type: totals\n", "at least one count"},
		{"bad component", base + flow + "assertions:\n  - type: records\n    composition: {Xe: 1}\n", "unknown component"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
