package gas

import (
	"fmt"
	"time"
)

// Record is one stored equilibrium point: the pressure at which a mixture of
// the given composition forms hydrate at the given temperature.
type Record struct {
	ID          int64       `json:"id"`
	Temperature float64     `json:"temperature"` // K
	Pressure    float64     `json:"pressure"`    // MPa
	Fractions   Composition `json:"composition"`
	CreatedAt   time.Time   `json:"created_at,omitzero"`
	UpdatedAt   time.Time   `json:"updated_at,omitzero"`
}

// Signature returns the record's duplicate-grouping key.
func (r Record) Signature() Signature {
	return NewSignature(r.Fractions, r.Temperature)
}

// ReviewStatus is the lifecycle state of a quarantined entry.
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "pending"
	StatusApproved ReviewStatus = "approved"
	StatusRejected ReviewStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ReviewStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ParseReviewStatus validates a stored or user-supplied status string.
func ParseReviewStatus(s string) (ReviewStatus, error) {
	st := ReviewStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown review status %q", s)
	}
	return st, nil
}

// PendingEntry is a quarantined snapshot of a record awaiting review.
type PendingEntry struct {
	ID               int64        `json:"id"`
	GroupID          string       `json:"group_id"`
	GroupKey         string       `json:"group_key"`
	OriginalID       *int64       `json:"original_id"`                 // nil once the source row is gone
	BatchID          string       `json:"batch_id,omitempty"`          // move run that quarantined it
	Temperature      float64      `json:"temperature"`                 // K
	Fractions        Composition  `json:"composition"`
	Pressure         float64      `json:"pressure"`                    // current (possibly corrected) MPa
	OriginalPressure float64      `json:"original_pressure"`           // MPa at quarantine time
	Status           ReviewStatus `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	ReviewedAt       *time.Time   `json:"reviewed_at,omitempty"`
	ReviewedBy       string       `json:"reviewed_by,omitempty"`
	ApprovedRecordID *int64       `json:"approved_record_id,omitempty"` // reinserted record, survivors only
}

// Snapshot converts the entry back to a record (without an id) for
// reinsertion into the main table.
func (e PendingEntry) Snapshot() Record {
	return Record{
		Temperature: e.Temperature,
		Pressure:    e.Pressure,
		Fractions:   e.Fractions,
	}
}
