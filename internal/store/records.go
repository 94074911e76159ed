package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/hydrate/internal/filter"
	"github.com/roach88/hydrate/internal/filtersql"
	"github.com/roach88/hydrate/internal/gas"
)

const recordsTable = "equilibrium_records"

// fractionColumns lists the seven fraction columns in canonical order.
var fractionColumns = func() []string {
	cols := make([]string, gas.NumComponents)
	for i, c := range gas.AllComponents {
		cols[i] = c.Column()
	}
	return cols
}()

// recordColumns is the SELECT list scanned by scanRecord.
var recordColumns = append(append([]string{"id", "temperature", "pressure"}, fractionColumns...), "created_at", "updated_at")

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a row selected with recordColumns.
func scanRecord(row rowScanner) (gas.Record, error) {
	var rec gas.Record
	var createdAt, updatedAt string

	dest := []any{&rec.ID, &rec.Temperature, &rec.Pressure}
	for i := range rec.Fractions {
		dest = append(dest, &rec.Fractions[i])
	}
	dest = append(dest, &createdAt, &updatedAt)

	if err := row.Scan(dest...); err != nil {
		return gas.Record{}, err
	}

	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return gas.Record{}, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return gas.Record{}, err
	}
	return rec, nil
}

// collectRecords drains rows into a slice. Returns an empty slice, not nil.
func collectRecords(rows *sql.Rows) ([]gas.Record, error) {
	defer rows.Close()

	records := []gas.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func insertRecord(ctx context.Context, q queryer, rec gas.Record, now string) (int64, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(fractionColumns)+4), ", ")
	query := fmt.Sprintf("INSERT INTO %s (temperature, pressure, %s, created_at, updated_at) VALUES (%s)",
		recordsTable, strings.Join(fractionColumns, ", "), placeholders)

	args := []any{rec.Temperature, rec.Pressure}
	for _, v := range rec.Fractions {
		args = append(args, v)
	}
	args = append(args, now, now)

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

func getRecord(ctx context.Context, q queryer, id int64) (gas.Record, error) {
	row := q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", strings.Join(recordColumns, ", "), recordsTable), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return gas.Record{}, fmt.Errorf("get record %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return gas.Record{}, fmt.Errorf("get record %d: %w", id, err)
	}
	return rec, nil
}

func deleteRecord(ctx context.Context, q queryer, id int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM "+recordsTable+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	if n != 1 {
		return fmt.Errorf("delete record %d: %w", id, ErrNotFound)
	}
	return nil
}

// InsertRecord stores a new record and returns its id. rec.ID is ignored.
func (s *Store) InsertRecord(ctx context.Context, rec gas.Record) (int64, error) {
	return insertRecord(ctx, s.db, rec, formatTime(s.now()))
}

// InsertRecords stores records in one transaction and returns their ids in
// input order. Either all rows are written or none.
func (s *Store) InsertRecords(ctx context.Context, recs []gas.Record) ([]int64, error) {
	ids := make([]int64, 0, len(recs))
	err := s.WithTx(ctx, func(tx *Tx) error {
		for _, rec := range recs {
			id, err := tx.InsertRecord(ctx, rec)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetRecord retrieves a record by id. Returns a wrapped ErrNotFound if it
// does not exist.
func (s *Store) GetRecord(ctx context.Context, id int64) (gas.Record, error) {
	return getRecord(ctx, s.db, id)
}

// UpdateRecord overwrites the measured values of an existing record.
func (s *Store) UpdateRecord(ctx context.Context, rec gas.Record) error {
	sets := []string{"temperature = ?", "pressure = ?"}
	args := []any{rec.Temperature, rec.Pressure}
	for i, col := range fractionColumns {
		sets = append(sets, col+" = ?")
		args = append(args, rec.Fractions[i])
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(s.now()), rec.ID)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", recordsTable, strings.Join(sets, ", ")), args...)
	if err != nil {
		return fmt.Errorf("update record %d: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record %d: %w", rec.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update record %d: %w", rec.ID, ErrNotFound)
	}
	return nil
}

// DeleteRecord removes a record. Returns a wrapped ErrNotFound if no row
// was deleted.
func (s *Store) DeleteRecord(ctx context.Context, id int64) error {
	return deleteRecord(ctx, s.db, id)
}

// FindOptions controls ordering and paging of FindRecords.
type FindOptions struct {
	// OrderBy is an SQL expression list placed before the mandatory
	// "id ASC" tiebreaker. It must not contain caller-supplied text;
	// values go in OrderParams.
	OrderBy     string
	OrderParams []any
	Limit       int // 0 means no limit
	Offset      int
}

// FindRecords returns records matching p.
// Results are ordered by opts.OrderBy then id ASC.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) FindRecords(ctx context.Context, p filter.Predicate, opts FindOptions) ([]gas.Record, error) {
	query, args, err := filtersql.Select(recordsTable, recordColumns, p, opts.OrderBy, opts.OrderParams...)
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	return collectRecords(rows)
}

// RecordFilter bounds a ListRecords page. Nil bounds are open.
type RecordFilter struct {
	TemperatureMin *float64
	TemperatureMax *float64
	PressureMin    *float64
	PressureMax    *float64
	Limit          int
	Offset         int
}

// Predicate converts the bounds to a filter predicate.
func (f RecordFilter) Predicate() filter.Predicate {
	return filter.All(
		bounds(filter.FieldTemperature, f.TemperatureMin, f.TemperatureMax),
		bounds(filter.FieldPressure, f.PressureMin, f.PressureMax),
	)
}

func bounds(field filter.Field, lo, hi *float64) filter.Predicate {
	switch {
	case lo != nil && hi != nil:
		return filter.Between{Field: field, Min: *lo, Max: *hi}
	case lo != nil:
		return filter.Between{Field: field, Min: *lo, Max: math.MaxFloat64}
	case hi != nil:
		return filter.AtMost{Field: field, Max: *hi}
	}
	return nil
}

// ListRecords returns a page of records ordered by id.
func (s *Store) ListRecords(ctx context.Context, f RecordFilter) ([]gas.Record, error) {
	return s.FindRecords(ctx, f.Predicate(), FindOptions{Limit: f.Limit, Offset: f.Offset})
}

// InsertRecord stores a new record inside the transaction.
func (t *Tx) InsertRecord(ctx context.Context, rec gas.Record) (int64, error) {
	return insertRecord(ctx, t.tx, rec, formatTime(t.now))
}

// GetRecord retrieves a record inside the transaction.
func (t *Tx) GetRecord(ctx context.Context, id int64) (gas.Record, error) {
	return getRecord(ctx, t.tx, id)
}

// DeleteRecord removes exactly one record inside the transaction. Returns a
// wrapped ErrNotFound when the row is already gone, which callers treat as
// a concurrent modification.
func (t *Tx) DeleteRecord(ctx context.Context, id int64) error {
	return deleteRecord(ctx, t.tx, id)
}
