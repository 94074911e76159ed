package filter

import "github.com/roach88/hydrate/internal/gas"

// Eval reports whether rec satisfies p. A nil predicate matches everything.
// Unknown fields never match.
func Eval(p Predicate, rec gas.Record) bool {
	if p == nil {
		return true
	}
	switch pred := p.(type) {
	case Between:
		x, ok := value(pred.Field, rec)
		return ok && x >= pred.Min && x <= pred.Max
	case *Between:
		return Eval(*pred, rec)
	case AtMost:
		x, ok := value(pred.Field, rec)
		return ok && x <= pred.Max
	case *AtMost:
		return Eval(*pred, rec)
	case Positive:
		x, ok := value(pred.Field, rec)
		return ok && x > 0
	case *Positive:
		return Eval(*pred, rec)
	case And:
		for _, sub := range pred.Predicates {
			if !Eval(sub, rec) {
				return false
			}
		}
		return true
	case *And:
		return Eval(*pred, rec)
	default:
		return false
	}
}

func value(f Field, rec gas.Record) (float64, bool) {
	switch f {
	case FieldTemperature:
		return rec.Temperature, true
	case FieldPressure:
		return rec.Pressure, true
	}
	for _, c := range gas.AllComponents {
		if Fraction(c) == f {
			return rec.Fractions[c], true
		}
	}
	return 0, false
}
