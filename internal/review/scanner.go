package review

import (
	"context"
	"log/slog"

	"github.com/roach88/hydrate/internal/gas"
	"github.com/roach88/hydrate/internal/store"
)

// Group is a set of records sharing one signature. ID is empty until the
// group is moved to review.
type Group struct {
	Key         string          `json:"key"`
	ID          string          `json:"id,omitempty"`
	Signature   gas.Signature   `json:"signature"`
	Temperature float64         `json:"temperature"`
	Composition gas.Composition `json:"composition"`
	Members     []gas.Record    `json:"members"` // ordered by record id
}

// Pressures returns the members' pressures in member order.
func (g Group) Pressures() []float64 {
	out := make([]float64, len(g.Members))
	for i, m := range g.Members {
		out[i] = m.Pressure
	}
	return out
}

// RowSource is the storage surface the Scanner reads through.
type RowSource interface {
	DuplicateRows(ctx context.Context) ([]store.DuplicateRow, error)
	HighPressureRows(ctx context.Context, threshold float64) ([]store.DuplicateRow, error)
}

// Scanner finds duplicate groups. It has no side effects.
type Scanner struct {
	rows   RowSource
	cfg    Config
	logger *slog.Logger
}

// NewScanner creates a scanner over rows.
func NewScanner(rows RowSource, cfg Config, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{rows: rows, cfg: cfg, logger: logger}
}

// Scan returns every group of records that share a signature but disagree
// on pressure, ordered by signature bucket. Each group has at least two
// members.
func (s *Scanner) Scan(ctx context.Context) ([]Group, error) {
	rows, err := s.rows.DuplicateRows(ctx)
	if err != nil {
		return nil, gas.NewStorageError("duplicate scan", err)
	}
	groups := groupRows(rows)
	s.logger.Debug("duplicate scan", "groups", len(groups), "records", len(rows))
	return groups, nil
}

// ScanHighPressure groups records with pressure above threshold by
// signature. Groups may have a single member. A threshold <= 0 uses
// Config.HighPressureThreshold.
func (s *Scanner) ScanHighPressure(ctx context.Context, threshold float64) ([]Group, error) {
	if threshold <= 0 {
		threshold = s.cfg.HighPressureThreshold
	}
	rows, err := s.rows.HighPressureRows(ctx, threshold)
	if err != nil {
		return nil, gas.NewStorageError("high pressure scan", err)
	}
	groups := groupRows(rows)
	s.logger.Debug("high pressure scan", "threshold", threshold, "groups", len(groups), "records", len(rows))
	return groups, nil
}

// groupRows folds bucket-ordered rows into groups. Rows with the same
// signature are adjacent.
func groupRows(rows []store.DuplicateRow) []Group {
	groups := []Group{}
	for _, row := range rows {
		n := len(groups)
		if n > 0 && groups[n-1].Signature == row.Signature {
			groups[n-1].Members = append(groups[n-1].Members, row.Record)
			continue
		}
		groups = append(groups, Group{
			Key:         row.Signature.Key(),
			Signature:   row.Signature,
			Temperature: row.Record.Temperature,
			Composition: row.Record.Fractions,
			Members:     []gas.Record{row.Record},
		})
	}
	return groups
}
