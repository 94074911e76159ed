// Package filtersql compiles filter predicates to parameterized SQLite SQL.
package filtersql

import (
	"fmt"
	"strings"

	"github.com/roach88/hydrate/internal/filter"
)

// Where compiles a predicate to a WHERE fragment (without the keyword) and
// its parameters.
//
// CRITICAL: Values are NEVER interpolated - always ? placeholders. Field
// names are spliced only after filter.Validate has checked them against the
// column whitelist.
func Where(p filter.Predicate) (string, []any, error) {
	if err := filter.Validate(p); err != nil {
		return "", nil, err
	}
	return compilePredicate(p)
}

// Select builds a full SELECT over table with the given column list.
//
// MANDATORY: Every query gets an ORDER BY ending in "id ASC" so results are
// deterministic. orderBy may prepend extra keys (e.g. "ABS(temperature - ?)"),
// whose parameters follow the WHERE parameters in orderParams.
func Select(table string, columns []string, p filter.Predicate, orderBy string, orderParams ...any) (string, []any, error) {
	where, params, err := Where(p)
	if err != nil {
		return "", nil, err
	}
	order := "id ASC"
	if orderBy != "" {
		order = orderBy + ", id ASC"
	}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		strings.Join(columns, ", "),
		table,
		where,
		order)
	return sql, append(params, orderParams...), nil
}

// compilePredicate converts a predicate to SQL. Returns (sql, params, error).
func compilePredicate(p filter.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}

	switch pred := p.(type) {
	case filter.Between:
		return fmt.Sprintf("(%s >= ? AND %s <= ?)", pred.Field, pred.Field), []any{pred.Min, pred.Max}, nil
	case *filter.Between:
		return compilePredicate(*pred)
	case filter.AtMost:
		return fmt.Sprintf("%s <= ?", pred.Field), []any{pred.Max}, nil
	case *filter.AtMost:
		return compilePredicate(*pred)
	case filter.Positive:
		return fmt.Sprintf("%s > 0", pred.Field), nil, nil
	case *filter.Positive:
		return compilePredicate(*pred)
	case filter.And:
		return compileAnd(pred)
	case *filter.And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileAnd joins sub-predicates with AND. Empty And is vacuously true.
func compileAnd(and filter.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, sub := range and.Predicates {
		sql, subParams, err := compilePredicate(sub)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, subParams...)
	}
	return strings.Join(parts, " AND "), params, nil
}
