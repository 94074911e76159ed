package gas

import (
	"encoding/json"
	"fmt"
	"math"
)

// Composition holds the seven mole fractions of a mixture, indexed by
// Component. Absent components are zero.
type Composition [NumComponents]float64

// Get returns the fraction for c.
func (c Composition) Get(comp Component) float64 {
	if !comp.Valid() {
		return 0
	}
	return c[comp]
}

// Sum returns the total of all seven fractions.
func (c Composition) Sum() float64 {
	var total float64
	for _, v := range c {
		total += v
	}
	return total
}

// MarshalJSON encodes the composition as {"x_ch4": 0.9, ...} with every
// column present.
func (c Composition) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, NumComponents)
	for _, comp := range AllComponents {
		m[comp.Column()] = c[comp]
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts a map keyed by any component spelling.
// Missing components default to zero.
func (c *Composition) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	parsed, err := ParseComposition(m)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseComposition converts a name-keyed map to a Composition.
// Returns UNKNOWN_COMPONENT for an unrecognized key.
func ParseComposition(m map[string]float64) (Composition, error) {
	sel, err := ParseSelection(m)
	if err != nil {
		return Composition{}, err
	}
	return sel.Values, nil
}

// Selection is a partial composition: the components a caller actually
// supplied, with their values.
type Selection struct {
	Values Composition
	Set    ComponentSet
}

// ParseSelection converts a name-keyed map to a Selection.
// Returns UNKNOWN_COMPONENT for an unrecognized key.
func ParseSelection(m map[string]float64) (Selection, error) {
	var sel Selection
	for name, v := range m {
		c, err := ParseComponent(name)
		if err != nil {
			return Selection{}, err
		}
		if sel.Set.Has(c) {
			return Selection{}, &Error{
				Code:    ErrCodeInvalidArgument,
				Message: fmt.Sprintf("component %s given more than once", c),
			}
		}
		sel.Values[c] = v
		sel.Set.Add(c)
	}
	return sel, nil
}

// Range is a closed numeric interval [Min, Max].
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Validate checks that the bounds are finite and ordered.
func (r Range) Validate() error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0) {
		return &Error{Code: ErrCodeInvalidArgument, Message: "range bounds must be finite"}
	}
	if r.Min > r.Max {
		return &Error{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("range min %g exceeds max %g", r.Min, r.Max)}
	}
	return nil
}

// Contains reports whether v lies inside the closed interval.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Span is an observed numeric envelope. A Span with Valid=false carries NaN
// bounds and means "no data", which callers must not confuse with a
// zero-width range.
type Span struct {
	Min   float64
	Max   float64
	Valid bool
}

// EmptySpan returns the "no data" span.
func EmptySpan() Span {
	return Span{Min: math.NaN(), Max: math.NaN()}
}

type spanJSON struct {
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Valid bool     `json:"valid"`
}

// MarshalJSON encodes an invalid span with null bounds; encoding/json cannot
// represent NaN.
func (s Span) MarshalJSON() ([]byte, error) {
	out := spanJSON{Valid: s.Valid}
	if s.Valid {
		minV, maxV := s.Min, s.Max
		out.Min, out.Max = &minV, &maxV
	}
	return json.Marshal(out)
}
