package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/hydrate/internal/gas"
)

const pendingTable = "pending_review"

var pendingColumns = append(append([]string{
	"id", "group_id", "group_key", "original_id", "batch_id",
	"temperature", "pressure", "original_pressure",
}, fractionColumns...),
	"status", "created_at", "updated_at", "reviewed_at", "reviewed_by", "approved_record_id")

func scanPending(row rowScanner) (gas.PendingEntry, error) {
	var e gas.PendingEntry
	var originalID, approvedID sql.NullInt64
	var status, createdAt, updatedAt string
	var reviewedAt sql.NullString

	dest := []any{
		&e.ID, &e.GroupID, &e.GroupKey, &originalID, &e.BatchID,
		&e.Temperature, &e.Pressure, &e.OriginalPressure,
	}
	for i := range e.Fractions {
		dest = append(dest, &e.Fractions[i])
	}
	dest = append(dest, &status, &createdAt, &updatedAt, &reviewedAt, &e.ReviewedBy, &approvedID)

	if err := row.Scan(dest...); err != nil {
		return gas.PendingEntry{}, err
	}

	var err error
	if e.Status, err = gas.ParseReviewStatus(status); err != nil {
		return gas.PendingEntry{}, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return gas.PendingEntry{}, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return gas.PendingEntry{}, err
	}
	if reviewedAt.Valid {
		t, err := parseTime(reviewedAt.String)
		if err != nil {
			return gas.PendingEntry{}, err
		}
		e.ReviewedAt = &t
	}
	if originalID.Valid {
		e.OriginalID = &originalID.Int64
	}
	if approvedID.Valid {
		e.ApprovedRecordID = &approvedID.Int64
	}
	return e, nil
}

func getPending(ctx context.Context, q queryer, id int64) (gas.PendingEntry, error) {
	row := q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", strings.Join(pendingColumns, ", "), pendingTable), id)
	e, err := scanPending(row)
	if errors.Is(err, sql.ErrNoRows) {
		return gas.PendingEntry{}, fmt.Errorf("get pending entry %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return gas.PendingEntry{}, fmt.Errorf("get pending entry %d: %w", id, err)
	}
	return e, nil
}

// groupEntries returns a group's entries ordered by id.
// Returns an empty slice (not nil) for an unknown group.
func groupEntries(ctx context.Context, q queryer, groupID string) ([]gas.PendingEntry, error) {
	rows, err := q.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE group_id = ? ORDER BY id ASC", strings.Join(pendingColumns, ", "), pendingTable),
		groupID)
	if err != nil {
		return nil, fmt.Errorf("query group %s: %w", groupID, err)
	}
	defer rows.Close()

	entries := []gas.PendingEntry{}
	for rows.Next() {
		e, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group %s: %w", groupID, err)
	}
	return entries, nil
}

// GetPendingEntry retrieves a pending entry by id. Returns a wrapped
// ErrNotFound if it does not exist.
func (s *Store) GetPendingEntry(ctx context.Context, id int64) (gas.PendingEntry, error) {
	return getPending(ctx, s.db, id)
}

// GroupEntries returns every entry of a review group ordered by id.
func (s *Store) GroupEntries(ctx context.Context, groupID string) ([]gas.PendingEntry, error) {
	return groupEntries(ctx, s.db, groupID)
}

// GetPendingEntry retrieves a pending entry inside the transaction.
func (t *Tx) GetPendingEntry(ctx context.Context, id int64) (gas.PendingEntry, error) {
	return getPending(ctx, t.tx, id)
}

// GroupEntries returns a group's entries inside the transaction.
func (t *Tx) GroupEntries(ctx context.Context, groupID string) ([]gas.PendingEntry, error) {
	return groupEntries(ctx, t.tx, groupID)
}

// NextGroupID allocates the next "G0001"-style group id. Must be called
// inside the transaction that inserts the group's entries.
func (t *Tx) NextGroupID(ctx context.Context) (string, error) {
	var n int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(CAST(SUBSTR(group_id, 2) AS INTEGER)), 0) + 1
		FROM pending_review
		WHERE group_id LIKE 'G%'
	`).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("next group id: %w", err)
	}
	return fmt.Sprintf("G%04d", n), nil
}

// InsertPending stores a quarantined snapshot with status pending and
// returns its id. e.ID, e.Status and timestamps are ignored.
func (t *Tx) InsertPending(ctx context.Context, e gas.PendingEntry) (int64, error) {
	cols := append(append([]string{
		"group_id", "group_key", "original_id", "batch_id",
		"temperature", "pressure", "original_pressure",
	}, fractionColumns...), "status", "created_at", "updated_at")

	now := formatTime(t.now)
	args := []any{e.GroupID, e.GroupKey, nullableID(e.OriginalID), e.BatchID,
		e.Temperature, e.Pressure, e.OriginalPressure}
	for _, v := range e.Fractions {
		args = append(args, v)
	}
	args = append(args, string(gas.StatusPending), now, now)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	res, err := t.tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", pendingTable, strings.Join(cols, ", "), placeholders),
		args...)
	if err != nil {
		return 0, fmt.Errorf("insert pending entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert pending entry: %w", err)
	}
	return id, nil
}

// UpdatePendingPressure replaces an entry's pressure. The original pressure
// column is left untouched.
func (t *Tx) UpdatePendingPressure(ctx context.Context, id int64, pressure float64) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE pending_review SET pressure = ?, updated_at = ? WHERE id = ?",
		pressure, formatTime(t.now), id)
	if err != nil {
		return fmt.Errorf("update pending pressure %d: %w", id, err)
	}
	return requireOneRow(res, fmt.Sprintf("update pending pressure %d", id))
}

// Review is the review metadata written to an entry.
type Review struct {
	Status           gas.ReviewStatus
	ReviewedBy       string
	ApprovedRecordID *int64
}

// SetReview writes status and review metadata to an entry. Moving back to
// pending clears reviewed_at; any other status stamps it.
func (t *Tx) SetReview(ctx context.Context, id int64, r Review) error {
	var reviewedAt any
	if r.Status != gas.StatusPending {
		reviewedAt = formatTime(t.now)
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE pending_review
		SET status = ?, reviewed_at = ?, reviewed_by = ?, approved_record_id = ?, updated_at = ?
		WHERE id = ?
	`, string(r.Status), reviewedAt, r.ReviewedBy, nullableID(r.ApprovedRecordID), formatTime(t.now), id)
	if err != nil {
		return fmt.Errorf("set review %d: %w", id, err)
	}
	return requireOneRow(res, fmt.Sprintf("set review %d", id))
}

// Now returns the transaction's timestamp.
func (t *Tx) Now() time.Time {
	return t.now
}

func requireOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n != 1 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// GroupFilter selects a page of review groups.
type GroupFilter struct {
	Status         gas.ReviewStatus // empty means pending
	GroupIDLike    string           // substring match on group id
	TemperatureMin *float64
	TemperatureMax *float64
	Page           int // 1-based
	PerPage        int
}

// GroupSummary describes one review group.
type GroupSummary struct {
	GroupID     string           `json:"group_id"`
	GroupKey    string           `json:"group_key"`
	Status      gas.ReviewStatus `json:"status"`
	Temperature float64          `json:"temperature"`
	Fractions   gas.Composition  `json:"composition"`
	Entries     int              `json:"entries"`
	Pressure    gas.Span         `json:"pressure"`
	CreatedAt   time.Time        `json:"created_at"`
}

// GroupPage is one page of ListGroups output.
type GroupPage struct {
	Groups []GroupSummary `json:"groups"`
	Total  int            `json:"total"`
}

// ListGroups returns a page of groups whose entries carry the filter status,
// ordered by group id.
func (s *Store) ListGroups(ctx context.Context, f GroupFilter) (GroupPage, error) {
	status := f.Status
	if status == "" {
		status = gas.StatusPending
	}
	conds := []string{"status = ?"}
	args := []any{string(status)}
	if f.GroupIDLike != "" {
		conds = append(conds, `group_id LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(f.GroupIDLike)+"%")
	}
	if f.TemperatureMin != nil {
		conds = append(conds, "temperature >= ?")
		args = append(args, *f.TemperatureMin)
	}
	if f.TemperatureMax != nil {
		conds = append(conds, "temperature <= ?")
		args = append(args, *f.TemperatureMax)
	}
	where := strings.Join(conds, " AND ")

	var page GroupPage
	if err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(DISTINCT group_id) FROM %s WHERE %s", pendingTable, where),
		args...).Scan(&page.Total); err != nil {
		return GroupPage{}, fmt.Errorf("count groups: %w", err)
	}

	perPage := f.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	pageNum := f.Page
	if pageNum < 1 {
		pageNum = 1
	}

	mins := make([]string, len(fractionColumns))
	for i, col := range fractionColumns {
		mins[i] = fmt.Sprintf("MIN(%s)", col)
	}
	query := fmt.Sprintf(`
		SELECT group_id, MIN(group_key), MIN(temperature), %s,
			COUNT(*), MIN(pressure), MAX(pressure), MIN(created_at)
		FROM %s
		WHERE %s
		GROUP BY group_id
		ORDER BY group_id ASC
		LIMIT ? OFFSET ?
	`, strings.Join(mins, ", "), pendingTable, where)

	rows, err := s.db.QueryContext(ctx, query, append(args, perPage, (pageNum-1)*perPage)...)
	if err != nil {
		return GroupPage{}, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	page.Groups = []GroupSummary{}
	for rows.Next() {
		g := GroupSummary{Status: status, Pressure: gas.Span{Valid: true}}
		var createdAt string
		dest := []any{&g.GroupID, &g.GroupKey, &g.Temperature}
		for i := range g.Fractions {
			dest = append(dest, &g.Fractions[i])
		}
		dest = append(dest, &g.Entries, &g.Pressure.Min, &g.Pressure.Max, &createdAt)
		if err := rows.Scan(dest...); err != nil {
			return GroupPage{}, fmt.Errorf("scan group: %w", err)
		}
		if g.CreatedAt, err = parseTime(createdAt); err != nil {
			return GroupPage{}, err
		}
		page.Groups = append(page.Groups, g)
	}
	if err := rows.Err(); err != nil {
		return GroupPage{}, fmt.Errorf("iterate groups: %w", err)
	}
	return page, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ReviewCounts summarizes the quarantine.
type ReviewCounts struct {
	PendingGroups int `json:"pending_groups"`
	Pending       int `json:"pending"`
	Approved      int `json:"approved"`
	Rejected      int `json:"rejected"`
}

// ReviewCounts returns quarantine counts in a single statement.
func (s *Store) ReviewCounts(ctx context.Context) (ReviewCounts, error) {
	var c ReviewCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT CASE WHEN status = 'pending' THEN group_id END),
			COALESCE(SUM(status = 'pending'), 0),
			COALESCE(SUM(status = 'approved'), 0),
			COALESCE(SUM(status = 'rejected'), 0)
		FROM pending_review
	`).Scan(&c.PendingGroups, &c.Pending, &c.Approved, &c.Rejected)
	if err != nil {
		return ReviewCounts{}, fmt.Errorf("review counts: %w", err)
	}
	return c, nil
}
