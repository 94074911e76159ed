package review

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/hydrate/internal/gas"
	"github.com/roach88/hydrate/internal/store"
	"github.com/roach88/hydrate/internal/testutil"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.WithClock(testutil.NewClock().Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestWorkflow(t *testing.T, s *store.Store, policy Policy) *Workflow {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ApprovalPolicy = policy
	return NewWorkflow(s, cfg,
		WithLogger(quietLogger),
		WithBatchIDGenerator(testutil.NewFixedBatchGenerator("batch-test")))
}

func newTestScanner(s *store.Store) *Scanner {
	return NewScanner(s, DefaultConfig(), quietLogger)
}

func methaneEthane(temperature, pressure float64) gas.Record {
	r := gas.Record{Temperature: temperature, Pressure: pressure}
	r.Fractions[gas.CH4] = 0.9
	r.Fractions[gas.C2H6] = 0.1
	return r
}

func pureMethane(temperature, pressure float64) gas.Record {
	r := gas.Record{Temperature: temperature, Pressure: pressure}
	r.Fractions[gas.CH4] = 1.0
	return r
}

func seed(t *testing.T, s *store.Store, recs ...gas.Record) []int64 {
	t.Helper()
	ids, err := s.InsertRecords(context.Background(), recs)
	require.NoError(t, err)
	return ids
}

// quarantineAll scans and moves every duplicate group, returning the
// assigned group ids in scan order.
func quarantineAll(t *testing.T, s *store.Store, w *Workflow) []string {
	t.Helper()
	ctx := context.Background()
	groups, err := newTestScanner(s).Scan(ctx)
	require.NoError(t, err)
	report, err := w.MoveToReview(ctx, groups, "tester")
	require.NoError(t, err)

	ids := make([]string, len(report.Groups))
	for i, g := range report.Groups {
		ids[i] = g.GroupID
	}
	return ids
}

// mainRecords returns every record in the main table for the signature of
// r.
func mainRecords(t *testing.T, s *store.Store, r gas.Record) []gas.Record {
	t.Helper()
	all, err := s.ListRecords(context.Background(), store.RecordFilter{})
	require.NoError(t, err)
	out := []gas.Record{}
	for _, rec := range all {
		if rec.Signature() == r.Signature() {
			out = append(out, rec)
		}
	}
	return out
}

func entriesOf(t *testing.T, s *store.Store, groupID string) []gas.PendingEntry {
	t.Helper()
	entries, err := s.GroupEntries(context.Background(), groupID)
	require.NoError(t, err)
	return entries
}
