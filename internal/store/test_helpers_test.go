package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/hydrate/internal/gas"
	"github.com/roach88/hydrate/internal/testutil"
)

// createTestStore creates a new store under t.TempDir() with a
// deterministic clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(testutil.NewClock().Now))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord builds a record from (component, fraction) pairs.
func createTestRecord(temperature, pressure float64, fractions map[gas.Component]float64) gas.Record {
	rec := gas.Record{Temperature: temperature, Pressure: pressure}
	for c, v := range fractions {
		rec.Fractions[c] = v
	}
	return rec
}

// methaneEthane is a 90/10 CH4/C2H6 record.
func methaneEthane(temperature, pressure float64) gas.Record {
	return createTestRecord(temperature, pressure, map[gas.Component]float64{gas.CH4: 0.9, gas.C2H6: 0.1})
}

// pureMethane is a 100% CH4 record.
func pureMethane(temperature, pressure float64) gas.Record {
	return createTestRecord(temperature, pressure, map[gas.Component]float64{gas.CH4: 1.0})
}
