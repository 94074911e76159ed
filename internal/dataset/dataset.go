// Package dataset reads equilibrium record files and imports them into a
// store after validation.
//
// A dataset file is YAML:
//
//	source: "Sloan & Koh, table 4.1"
//	records:
//	  - temperature: 275.0   # K
//	    pressure: 3.1        # MPa
//	    composition: {CH4: 0.9, C2H6: 0.1}
//
// Composition keys accept any component spelling gas.ParseComponent
// understands. Missing components are zero.
package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hydrate/internal/gas"
)

// File is the on-disk layout.
type File struct {
	Source  string `yaml:"source,omitempty"`
	Records []Row  `yaml:"records"`
}

// Row is one record as written in a file. Temperature and pressure are
// pointers so that a missing value is distinguishable from zero.
type Row struct {
	Temperature *float64           `yaml:"temperature"`
	Pressure    *float64           `yaml:"pressure"`
	Composition map[string]float64 `yaml:"composition"`
}

// RowError reports a row that could not be converted. Row is 1-based.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Record converts the row.
func (r Row) Record() (gas.Record, error) {
	if r.Temperature == nil {
		return gas.Record{}, errors.New("temperature is required")
	}
	if r.Pressure == nil {
		return gas.Record{}, errors.New("pressure is required")
	}
	comp, err := gas.ParseComposition(r.Composition)
	if err != nil {
		return gas.Record{}, err
	}
	return gas.Record{Temperature: *r.Temperature, Pressure: *r.Pressure, Fractions: comp}, nil
}

// Decode parses a dataset. Unknown keys are rejected.
func Decode(r io.Reader) (File, []gas.Record, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil, errors.New("empty dataset")
		}
		return File{}, nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	recs := make([]gas.Record, 0, len(f.Records))
	for i, row := range f.Records {
		rec, err := row.Record()
		if err != nil {
			return File{}, nil, &RowError{Row: i + 1, Err: err}
		}
		recs = append(recs, rec)
	}
	return f, recs, nil
}

// Load reads and parses a dataset file.
func Load(path string) (File, []gas.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, nil, fmt.Errorf("failed to read dataset file: %w", err)
	}
	f, recs, err := Decode(bytes.NewReader(data))
	if err != nil {
		return File{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, recs, nil
}
