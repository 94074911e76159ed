package match

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/hydrate/internal/filter"
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

func rec(temperature, pressure float64, fractions map[gas.Component]float64) gas.Record {
	r := gas.Record{Temperature: temperature, Pressure: pressure}
	for c, v := range fractions {
		r.Fractions[c] = v
	}
	return r
}

// fixture names the seeded records.
type fixture map[string]int64

// seedFixture loads a small dataset around a 90/10 methane/ethane mixture.
func seedFixture(t *testing.T, s *store.Store) fixture {
	t.Helper()
	named := []struct {
		name string
		rec  gas.Record
	}{
		{"r1", rec(275, 3.0, map[gas.Component]float64{gas.CH4: 0.9, gas.C2H6: 0.1})},
		{"r2", rec(277, 3.5, map[gas.Component]float64{gas.CH4: 0.9, gas.C2H6: 0.1})},
		{"r3", rec(275, 3.1, map[gas.Component]float64{gas.CH4: 0.89, gas.C2H6: 0.1, gas.N2: 0.01})},
		{"r4", rec(275, 3.2, map[gas.Component]float64{gas.CH4: 0.85, gas.C2H6: 0.1, gas.CO2: 0.05})},
		{"r5", rec(275, 2.9, map[gas.Component]float64{gas.CH4: 1.0})},
		{"r6", rec(300, 12.0, map[gas.Component]float64{gas.CH4: 0.9, gas.C2H6: 0.1})},
		{"r7", rec(276, 3.3, map[gas.Component]float64{gas.CH4: 0.885, gas.C2H6: 0.09, gas.CO2: 0.025})},
		{"r8", rec(275, 3.05, map[gas.Component]float64{gas.CH4: 0.9, gas.C2H6: 0.1})},
	}
	recs := make([]gas.Record, len(named))
	for i, n := range named {
		recs[i] = n.rec
	}
	ids, err := s.InsertRecords(context.Background(), recs)
	require.NoError(t, err)

	fx := fixture{}
	for i, n := range named {
		fx[n.name] = ids[i]
	}
	return fx
}

func (fx fixture) ids(names ...string) []int64 {
	out := make([]int64, len(names))
	for i, n := range names {
		out[i] = fx[n]
	}
	return out
}

func resultIDs(results []Result) []int64 {
	out := make([]int64, len(results))
	for i, r := range results {
		out[i] = r.Record.ID
	}
	return out
}

var errInjected = errors.New("injected storage failure")

// failingReader fails any record query whose temperature window covers
// failAt.
type failingReader struct {
	*store.Store
	failAt float64
}

func (f failingReader) FindRecords(ctx context.Context, p filter.Predicate, opts store.FindOptions) ([]gas.Record, error) {
	if and, ok := p.(filter.And); ok {
		for _, sub := range and.Predicates {
			if b, ok := sub.(filter.Between); ok && b.Field == filter.FieldTemperature && b.Min <= f.failAt && f.failAt <= b.Max {
				return nil, errInjected
			}
		}
	}
	return f.Store.FindRecords(ctx, p, opts)
}

func newTestEngine(t *testing.T) (*Engine, fixture) {
	t.Helper()
	s := createTestStore(t)
	fx := seedFixture(t, s)
	return NewEngine(s, DefaultConfig(), quietLogger), fx
}

var methaneEthane = map[string]float64{"CH4": 0.9, "C2H6": 0.1}
