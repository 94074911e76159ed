package filtersql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hydrate/internal/filter"
	"github.com/roach88/hydrate/internal/gas"
)

func TestWhere_Between(t *testing.T) {
	sql, params, err := Where(filter.Between{Field: filter.Fraction(gas.CH4), Min: 0.88, Max: 0.92})
	require.NoError(t, err)
	assert.Equal(t, "(x_ch4 >= ? AND x_ch4 <= ?)", sql)
	assert.Equal(t, []any{0.88, 0.92}, params)
}

func TestWhere_Conjunction(t *testing.T) {
	p := filter.All(
		filter.Positive{Field: filter.Fraction(gas.C2H6)},
		&filter.AtMost{Field: filter.Fraction(gas.N2), Max: 0.02},
		filter.Between{Field: filter.FieldTemperature, Min: 270, Max: 280},
	)
	sql, params, err := Where(p)
	require.NoError(t, err)
	assert.Equal(t, "x_c2h6 > 0 AND x_n2 <= ? AND (temperature >= ? AND temperature <= ?)", sql)
	assert.Equal(t, []any{0.02, 270.0, 280.0}, params)
}

func TestWhere_NilAndEmpty(t *testing.T) {
	sql, params, err := Where(nil)
	require.NoError(t, err)
	assert.Equal(t, "1 = 1", sql)
	assert.Empty(t, params)

	sql, _, err = Where(filter.And{})
	require.NoError(t, err)
	assert.Equal(t, "1 = 1", sql)
}

func TestWhere_RejectsUnknownField(t *testing.T) {
	_, _, err := Where(filter.Positive{Field: "1=1; --"})
	require.Error(t, err)
}

func TestSelect_OrderByMandatory(t *testing.T) {
	sql, params, err := Select("equilibrium_records", []string{"id", "pressure"},
		filter.AtMost{Field: filter.FieldPressure, Max: 50}, "")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, pressure FROM equilibrium_records WHERE pressure <= ? ORDER BY id ASC", sql)
	assert.Equal(t, []any{50.0}, params)

	sql, params, err = Select("equilibrium_records", []string{"id"}, nil, "ABS(temperature - ?)", 275.0)
	require.NoError(t, err)
	assert.Contains(t, sql, "ORDER BY ABS(temperature - ?), id ASC")
	assert.Equal(t, []any{275.0}, params)
}

func TestWhere_ValuesNeverInterpolated(t *testing.T) {
	sql, _, err := Where(filter.Near(filter.FieldTemperature, 275.125, 5))
	require.NoError(t, err)
	assert.NotContains(t, sql, "275")
}
