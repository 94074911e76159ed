package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/hydrate/internal/filter"
	"github.com/roach88/hydrate/internal/filtersql"
	"github.com/roach88/hydrate/internal/gas"
)

// Every helper in this file issues exactly one statement.

// CountRecords counts the records matching p. A record satisfying several
// sub-predicates is counted once.
func (s *Store) CountRecords(ctx context.Context, p filter.Predicate) (int, error) {
	where, args, err := filtersql.Where(p)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", recordsTable, where), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Presence reports, among the records matching a predicate, how many have a
// nonzero value in each fraction column.
type Presence struct {
	Records int
	Nonzero [gas.NumComponents]int
}

// PresenceCounts computes Presence for p in a single aggregate query.
func (s *Store) PresenceCounts(ctx context.Context, p filter.Predicate) (Presence, error) {
	where, args, err := filtersql.Where(p)
	if err != nil {
		return Presence{}, fmt.Errorf("presence counts: %w", err)
	}

	sums := make([]string, len(fractionColumns))
	for i, col := range fractionColumns {
		sums[i] = fmt.Sprintf("COALESCE(SUM(%s > 0), 0)", col)
	}
	query := fmt.Sprintf("SELECT COUNT(*), %s FROM %s WHERE %s",
		strings.Join(sums, ", "), recordsTable, where)

	var out Presence
	dest := []any{&out.Records}
	for i := range out.Nonzero {
		dest = append(dest, &out.Nonzero[i])
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(dest...); err != nil {
		return Presence{}, fmt.Errorf("presence counts: %w", err)
	}
	return out, nil
}

// Envelope is the observed min/max of every numeric column over the records
// matching a predicate. With no matching records every span is invalid.
type Envelope struct {
	Records     int
	Fractions   [gas.NumComponents]gas.Span
	Temperature gas.Span
	Pressure    gas.Span
}

// Envelope computes the spans for p in a single aggregate query.
func (s *Store) Envelope(ctx context.Context, p filter.Predicate) (Envelope, error) {
	where, args, err := filtersql.Where(p)
	if err != nil {
		return Envelope{}, fmt.Errorf("envelope: %w", err)
	}

	cols := append([]string{"temperature", "pressure"}, fractionColumns...)
	aggs := make([]string, 0, 2*len(cols))
	for _, col := range cols {
		aggs = append(aggs, fmt.Sprintf("MIN(%s), MAX(%s)", col, col))
	}
	query := fmt.Sprintf("SELECT COUNT(*), %s FROM %s WHERE %s",
		strings.Join(aggs, ", "), recordsTable, where)

	// MIN/MAX are NULL over an empty set.
	raw := make([]sql.NullFloat64, 2*len(cols))
	var count int
	dest := []any{&count}
	for i := range raw {
		dest = append(dest, &raw[i])
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(dest...); err != nil {
		return Envelope{}, fmt.Errorf("envelope: %w", err)
	}

	span := func(i int) gas.Span {
		lo, hi := raw[2*i], raw[2*i+1]
		if count == 0 || !lo.Valid || !hi.Valid {
			return gas.EmptySpan()
		}
		return gas.Span{Min: lo.Float64, Max: hi.Float64, Valid: true}
	}

	env := Envelope{Records: count, Temperature: span(0), Pressure: span(1)}
	for i := range env.Fractions {
		env.Fractions[i] = span(i + 2)
	}
	return env, nil
}

// Statistics summarizes the whole main table.
func (s *Store) Statistics(ctx context.Context) (Envelope, error) {
	return s.Envelope(ctx, nil)
}

// DuplicateRow is one record together with its signature buckets as
// computed by the database.
type DuplicateRow struct {
	Signature gas.Signature
	Record    gas.Record
}

// DuplicateRows returns every record whose signature bucket holds at least
// two distinct pressures, ordered by bucket then id. Buckets are computed in
// SQL as CAST(ROUND(x * scale) AS INTEGER), identical to gas.NewSignature.
func (s *Store) DuplicateRows(ctx context.Context) ([]DuplicateRow, error) {
	return s.bucketedRows(ctx, "1 = 1", nil, "HAVING COUNT(DISTINCT pressure) >= 2")
}

// HighPressureRows returns every record with pressure above threshold,
// bucketed the same way as DuplicateRows.
func (s *Store) HighPressureRows(ctx context.Context, threshold float64) ([]DuplicateRow, error) {
	return s.bucketedRows(ctx, "pressure > ?", []any{threshold}, "")
}

func bucketExpr(col string, scale float64) string {
	return fmt.Sprintf("CAST(ROUND(%s * %.1f) AS INTEGER)", col, scale)
}

// countSignature counts the records falling in sig's bucket.
func countSignature(ctx context.Context, q queryer, sig gas.Signature) (int, error) {
	conds := make([]string, 0, len(fractionColumns)+1)
	args := make([]any, 0, len(fractionColumns)+1)
	for i, col := range fractionColumns {
		conds = append(conds, bucketExpr(col, gas.SignatureScale)+" = ?")
		args = append(args, sig.Fractions[i])
	}
	conds = append(conds, bucketExpr("temperature", gas.TemperatureBucketScale)+" = ?")
	args = append(args, sig.Temperature)

	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", recordsTable, strings.Join(conds, " AND "))
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count signature: %w", err)
	}
	return n, nil
}

// CountSignature counts the main-table records sharing sig.
func (s *Store) CountSignature(ctx context.Context, sig gas.Signature) (int, error) {
	return countSignature(ctx, s.db, sig)
}

// CountSignature counts the main-table records sharing sig.
func (t *Tx) CountSignature(ctx context.Context, sig gas.Signature) (int, error) {
	return countSignature(ctx, t.tx, sig)
}

func (s *Store) bucketedRows(ctx context.Context, where string, args []any, having string) ([]DuplicateRow, error) {
	buckets := make([]string, 0, len(fractionColumns)+1)
	names := make([]string, 0, len(fractionColumns)+1)
	for _, col := range fractionColumns {
		buckets = append(buckets, fmt.Sprintf("%s AS b_%s", bucketExpr(col, gas.SignatureScale), col))
		names = append(names, "b_"+col)
	}
	buckets = append(buckets, bucketExpr("temperature", gas.TemperatureBucketScale)+" AS b_temperature")
	names = append(names, "b_temperature")
	keyList := strings.Join(names, ", ")

	query := fmt.Sprintf(`
		WITH bucketed AS (
			SELECT %s, %s FROM %s WHERE %s
		),
		hits AS (
			SELECT %s FROM bucketed GROUP BY %s %s
		)
		SELECT %s, %s
		FROM bucketed JOIN hits USING (%s)
		ORDER BY %s, id ASC
	`,
		strings.Join(recordColumns, ", "), strings.Join(buckets, ", "), recordsTable, where,
		keyList, keyList, having,
		keyList, strings.Join(recordColumns, ", "),
		keyList,
		keyList)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bucketed rows: %w", err)
	}
	defer rows.Close()

	out := []DuplicateRow{}
	for rows.Next() {
		var row DuplicateRow
		var createdAt, updatedAt string
		dest := make([]any, 0, len(names)+len(recordColumns))
		for i := range row.Signature.Fractions {
			dest = append(dest, &row.Signature.Fractions[i])
		}
		dest = append(dest, &row.Signature.Temperature, &row.Record.ID, &row.Record.Temperature, &row.Record.Pressure)
		for i := range row.Record.Fractions {
			dest = append(dest, &row.Record.Fractions[i])
		}
		dest = append(dest, &createdAt, &updatedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan bucketed row: %w", err)
		}
		if row.Record.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if row.Record.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bucketed rows: %w", err)
	}
	return out, nil
}

// Totals counts rows on both sides of the quarantine in one statement, so a
// caller never observes a record in both tables or in neither.
type Totals struct {
	Records        int
	PendingEntries int // all statuses
	Pending        int // status = pending
}

// Totals returns the current row counts.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM equilibrium_records),
			(SELECT COUNT(*) FROM pending_review),
			(SELECT COUNT(*) FROM pending_review WHERE status = 'pending')
	`).Scan(&t.Records, &t.PendingEntries, &t.Pending)
	if err != nil {
		return Totals{}, fmt.Errorf("totals: %w", err)
	}
	return t, nil
}
