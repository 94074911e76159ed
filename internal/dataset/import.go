package dataset

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/hydrate/internal/gas"
	"github.com/roach88/hydrate/internal/store"
	"github.com/roach88/hydrate/internal/validate"
)

// Options controls an import.
type Options struct {
	// DryRun validates without writing.
	DryRun bool

	// SkipInvalid imports the valid records of a batch that has invalid
	// ones. Without it any invalid record aborts the whole import.
	SkipInvalid bool
}

// Report summarizes an import.
type Report struct {
	Source     string               `json:"source,omitempty"`
	Total      int                  `json:"total"`
	Imported   int                  `json:"imported"`
	Skipped    int                  `json:"skipped"`
	IDs        []int64              `json:"ids,omitempty"`
	DryRun     bool                 `json:"dry_run,omitempty"`
	Validation validate.BatchReport `json:"validation"`
}

// Importer validates records and writes them in one transaction.
type Importer struct {
	store     *store.Store
	validator *validate.Validator
	logger    *slog.Logger
}

// NewImporter creates an importer. A nil logger uses slog.Default().
func NewImporter(s *store.Store, v *validate.Validator, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: s, validator: v, logger: logger}
}

// Import validates recs and inserts the accepted ones. The report is
// returned even when the import is refused.
func (im *Importer) Import(ctx context.Context, source string, recs []gas.Record, opts Options) (Report, error) {
	rep := Report{
		Source:     source,
		Total:      len(recs),
		DryRun:     opts.DryRun,
		Validation: im.validator.Batch(recs),
	}

	if rep.Validation.Invalid > 0 && !opts.SkipInvalid {
		rep.Skipped = rep.Total
		return rep, &gas.Error{
			Code:    gas.ErrCodeInvalidArgument,
			Message: fmt.Sprintf("%d of %d records failed validation", rep.Validation.Invalid, rep.Total),
		}
	}

	accepted := make([]gas.Record, 0, len(recs))
	for _, r := range recs {
		if im.validator.Record(r).Valid() {
			accepted = append(accepted, r)
		}
	}
	rep.Skipped = rep.Total - len(accepted)

	if opts.DryRun || len(accepted) == 0 {
		im.logger.Info("import checked", "source", source, "records", rep.Total, "accepted", len(accepted), "dry_run", opts.DryRun)
		return rep, nil
	}

	ids, err := im.store.InsertRecords(ctx, accepted)
	if err != nil {
		rep.Skipped = rep.Total
		return rep, gas.NewStorageError("import records", err)
	}
	rep.IDs = ids
	rep.Imported = len(ids)

	im.logger.Info("records imported",
		"source", source,
		"imported", rep.Imported,
		"skipped", rep.Skipped,
		"warnings", rep.Validation.Warnings)
	return rep, nil
}
