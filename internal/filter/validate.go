package filter

import (
	"fmt"
	"math"

	"github.com/roach88/hydrate/internal/gas"
)

var knownFields = func() map[Field]bool {
	m := map[Field]bool{FieldTemperature: true, FieldPressure: true}
	for _, c := range gas.AllComponents {
		m[Fraction(c)] = true
	}
	return m
}()

// Valid reports whether f is a filterable column.
func (f Field) Valid() bool {
	return knownFields[f]
}

// Validate checks that every field is known and every bound is finite.
// Backends call this before compiling so that field names can be spliced
// into SQL safely.
func Validate(p Predicate) error {
	v := &validator{}
	v.validate(p)
	if len(v.errs) > 0 {
		return fmt.Errorf("invalid predicate: %s", v.errs[0])
	}
	return nil
}

type validator struct {
	errs []string
}

func (v *validator) addError(format string, args ...any) {
	v.errs = append(v.errs, fmt.Sprintf(format, args...))
}

func (v *validator) checkField(f Field) {
	if !f.Valid() {
		v.addError("unknown field %q", f)
	}
}

func (v *validator) checkBound(f Field, x float64) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		v.addError("non-finite bound %v on %s", x, f)
	}
}

func (v *validator) validate(p Predicate) {
	if p == nil {
		return
	}
	switch pred := p.(type) {
	case Between:
		v.checkField(pred.Field)
		v.checkBound(pred.Field, pred.Min)
		v.checkBound(pred.Field, pred.Max)
	case *Between:
		v.validate(*pred)
	case AtMost:
		v.checkField(pred.Field)
		v.checkBound(pred.Field, pred.Max)
	case *AtMost:
		v.validate(*pred)
	case Positive:
		v.checkField(pred.Field)
	case *Positive:
		v.validate(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validate(sub)
		}
	case *And:
		v.validate(*pred)
	default:
		v.addError("unsupported predicate type %T", p)
	}
}
