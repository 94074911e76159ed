package filter

import (
	"math"

	"github.com/roach88/hydrate/internal/gas"
)

// Predicate represents a filter condition over a record.
type Predicate interface {
	predicateNode()
}

// Field names a filterable record column.
type Field string

const (
	FieldTemperature Field = "temperature"
	FieldPressure    Field = "pressure"
)

// Fraction returns the field for a component's mole fraction.
func Fraction(c gas.Component) Field {
	return Field(c.Column())
}

// Between matches records with Min <= Field <= Max.
//
// Translates to SQL:
//
//	(x_ch4 >= ? AND x_ch4 <= ?)
type Between struct {
	Field Field
	Min   float64
	Max   float64
}

func (Between) predicateNode() {}

// AtMost matches records with Field <= Max. Used for "component absent"
// constraints where a small residual is tolerated.
type AtMost struct {
	Field Field
	Max   float64
}

func (AtMost) predicateNode() {}

// Positive matches records with Field > 0.
type Positive struct {
	Field Field
}

func (Positive) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// An empty And is vacuously true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// All builds an And from the non-nil predicates given.
func All(preds ...Predicate) And {
	out := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			out = append(out, p)
		}
	}
	return And{Predicates: out}
}

// nearSlack is how many ULPs Near widens each bound.
const nearSlack = 4

// Near is shorthand for Between{Field, v - within, v + within}. For a
// positive within both bounds are pushed outward by a few ULPs, so a value
// exactly within away in decimal (0.8 from 0.7 at 0.1) is not lost to
// rounding of v ± within. A zero within stays an exact match.
func Near(f Field, v, within float64) Between {
	lo, hi := v-within, v+within
	if within > 0 {
		for range nearSlack {
			lo = math.Nextafter(lo, math.Inf(-1))
			hi = math.Nextafter(hi, math.Inf(1))
		}
	}
	return Between{Field: f, Min: lo, Max: hi}
}
