package dataset

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hydrate/internal/gas"
	"github.com/roach88/hydrate/internal/store"
	"github.com/roach88/hydrate/internal/testutil"
	"github.com/roach88/hydrate/internal/validate"
)

func TestLoad(t *testing.T) {
	f, recs, err := Load("testdata/sample.yaml")
	require.NoError(t, err)

	assert.Equal(t, "synthetic methane/ethane series", f.Source)
	require.Len(t, recs, 3)
	assert.Equal(t, 275.0, recs[0].Temperature)
	assert.Equal(t, 2.5, recs[0].Pressure)
	assert.Equal(t, 0.9, recs[0].Fractions[gas.CH4])
	assert.Equal(t, 0.1, recs[0].Fractions[gas.C2H6])
	assert.Equal(t, recs[0].Fractions, recs[1].Fractions)
	assert.Equal(t, 1.0, recs[2].Fractions[gas.CH4])
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "", "empty dataset"},
		{"unknown key", "records: []\nauthor: x\n", "author"},
		{"missing pressure", "records:\n  - temperature: 275\n    composition: {CH4: 1}\n", "row 1: pressure is required"},
		{"missing temperature", "records:\n  - pressure: 3\n", "row 1: temperature is required"},
		{"unknown component", "records:\n  - temperature: 275\n    pressure: 3\n    composition: {Xe: 1}\n", "row 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecode_UnknownComponentIsTyped(t *testing.T) {
	_, _, err := Decode(strings.NewReader("records:\n  - temperature: 275\n    pressure: 3\n    composition: {Xe: 1}\n"))
	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 1, rowErr.Row)
	assert.True(t, gas.IsUnknownComponent(err))
}

func newImporter(t *testing.T) (*Importer, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.WithClock(testutil.NewClock().Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	v, err := validate.New(validate.DefaultConfig())
	require.NoError(t, err)
	return NewImporter(s, v, slog.New(slog.NewTextHandler(io.Discard, nil))), s
}

func TestImport(t *testing.T) {
	im, s := newImporter(t)
	ctx := context.Background()
	f, recs, err := Load("testdata/sample.yaml")
	require.NoError(t, err)

	rep, err := im.Import(ctx, f.Source, recs, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Imported)
	assert.Equal(t, 0, rep.Skipped)
	assert.Len(t, rep.IDs, 3)

	n, err := s.CountRecords(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestImport_DryRun(t *testing.T) {
	im, s := newImporter(t)
	ctx := context.Background()
	_, recs, err := Load("testdata/sample.yaml")
	require.NoError(t, err)

	rep, err := im.Import(ctx, "", recs, Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, rep.DryRun)
	assert.Equal(t, 0, rep.Imported)
	assert.Empty(t, rep.IDs)

	n, err := s.CountRecords(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestImport_InvalidRecords(t *testing.T) {
	im, s := newImporter(t)
	ctx := context.Background()
	_, recs, err := Load("testdata/sample.yaml")
	require.NoError(t, err)
	recs[1].Temperature = 20

	rep, err := im.Import(ctx, "", recs, Options{})
	require.Error(t, err)
	assert.Equal(t, gas.ErrCodeInvalidArgument, gas.CodeOf(err))
	assert.Equal(t, 1, rep.Validation.Invalid)
	assert.Equal(t, 3, rep.Skipped)

	n, err := s.CountRecords(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	rep, err = im.Import(ctx, "", recs, Options{SkipInvalid: true})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Imported)
	assert.Equal(t, 1, rep.Skipped)

	n, err = s.CountRecords(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
