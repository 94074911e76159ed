package validate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hydrate/internal/gas"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New(DefaultConfig())
	require.NoError(t, err)
	return v
}

func methaneEthane(temperature, pressure float64) gas.Record {
	r := gas.Record{Temperature: temperature, Pressure: pressure}
	r.Fractions[gas.CH4] = 0.9
	r.Fractions[gas.C2H6] = 0.1
	return r
}

func fieldsOf(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Field
	}
	return out
}

func TestRecord_Valid(t *testing.T) {
	rep := newValidator(t).Record(methaneEthane(275, 3.1))
	assert.True(t, rep.Valid())
	assert.Empty(t, rep.Errors)
	assert.Empty(t, rep.Warnings)
	assert.Empty(t, rep.Summary())
}

func TestRecord_RangeErrors(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name  string
		mod   func(*gas.Record)
		field string
	}{
		{"cold", func(r *gas.Record) { r.Temperature = 50 }, "temperature"},
		{"hot", func(r *gas.Record) { r.Temperature = 1200 }, "temperature"},
		{"negative pressure", func(r *gas.Record) { r.Pressure = -1 }, "pressure"},
		{"huge pressure", func(r *gas.Record) { r.Pressure = 20000 }, "pressure"},
		{"fraction above one", func(r *gas.Record) { r.Fractions[gas.CO2] = 1.5 }, "x_co2"},
		{"negative fraction", func(r *gas.Record) { r.Fractions[gas.N2] = -0.1 }, "x_n2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := methaneEthane(275, 3.1)
			tt.mod(&r)
			rep := v.Record(r)
			assert.False(t, rep.Valid())
			assert.Contains(t, fieldsOf(rep.Errors), tt.field)
		})
	}
}

func TestRecord_BoundsAreInclusive(t *testing.T) {
	v := newValidator(t)
	for _, temp := range []float64{100, 1000} {
		rep := v.Record(methaneEthane(temp, 3))
		assert.True(t, rep.Valid(), "temperature %v: %s", temp, rep.Summary())
	}
}

func TestRecord_NonFinite(t *testing.T) {
	v := newValidator(t)
	r := methaneEthane(math.NaN(), math.Inf(1))
	rep := v.Record(r)
	assert.Equal(t, []string{"temperature", "pressure"}, fieldsOf(rep.Errors))
}

func TestRecord_FractionSum(t *testing.T) {
	v := newValidator(t)

	// Within the soft tolerance.
	r := methaneEthane(275, 3)
	r.Fractions[gas.C2H6] = 0.11
	rep := v.Record(r)
	assert.True(t, rep.Valid())
	assert.Empty(t, rep.Warnings)

	// Between soft and hard tolerance: warning only.
	r.Fractions[gas.C2H6] = 0.13
	rep = v.Record(r)
	assert.True(t, rep.Valid())
	assert.Equal(t, []string{"composition"}, fieldsOf(rep.Warnings))

	// Beyond the hard tolerance.
	r.Fractions[gas.C2H6] = 0.2
	rep = v.Record(r)
	assert.False(t, rep.Valid())
	assert.Equal(t, []string{"composition"}, fieldsOf(rep.Errors))

	// All zero.
	rep = v.Record(gas.Record{Temperature: 275, Pressure: 3})
	assert.False(t, rep.Valid())
	assert.Contains(t, rep.Errors[0].Message, "zero")
}

func TestRecord_HighPressureWarns(t *testing.T) {
	rep := newValidator(t).Record(methaneEthane(290, 12.5))
	assert.True(t, rep.Valid())
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, "pressure", rep.Warnings[0].Field)
	assert.Contains(t, rep.Summary(), "warning: pressure")
}

func TestBatch(t *testing.T) {
	v := newValidator(t)
	recs := []gas.Record{
		methaneEthane(275, 3.1),
		methaneEthane(50, 3.1),
		methaneEthane(280, 15),
	}
	br := v.Batch(recs)

	assert.Equal(t, 3, br.Total)
	assert.Equal(t, 2, br.Valid)
	assert.Equal(t, 1, br.Invalid)
	assert.Equal(t, 1, br.Warnings)
	require.Len(t, br.Rows, 2)
	assert.Equal(t, 2, br.Rows[0].Row)
	assert.Equal(t, 3, br.Rows[1].Row)
}

func TestBatch_CapsReportedRows(t *testing.T) {
	v := newValidator(t)
	recs := make([]gas.Record, maxReportedRows+10)
	for i := range recs {
		recs[i] = methaneEthane(10, 3)
	}
	br := v.Batch(recs)
	assert.Equal(t, len(recs), br.Invalid)
	assert.Len(t, br.Rows, maxReportedRows)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.SumSoftTolerance = 0.1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.PressureSoftMax = math.NaN()
	assert.Error(t, cfg.Validate())

	_, err := New(cfg)
	assert.Error(t, err)
}
