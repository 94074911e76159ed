package gas

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Component identifies one of the seven tracked gas species.
type Component int

// Components in canonical order. The order matches the storage columns and
// every iteration in this module.
const (
	CH4 Component = iota
	C2H6
	C3H8
	CO2
	N2
	H2S
	IC4H10
)

// NumComponents is the size of the closed component set.
const NumComponents = 7

// AllComponents lists every component in canonical order.
var AllComponents = [NumComponents]Component{CH4, C2H6, C3H8, CO2, N2, H2S, IC4H10}

var componentNames = [NumComponents]string{"CH4", "C2H6", "C3H8", "CO2", "N2", "H2S", "i-C4H10"}

var componentColumns = [NumComponents]string{"x_ch4", "x_c2h6", "x_c3h8", "x_co2", "x_n2", "x_h2s", "x_ic4h10"}

// String returns the chemical name (e.g. "i-C4H10").
func (c Component) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Component(%d)", int(c))
	}
	return componentNames[c]
}

// Column returns the storage column holding the component's mole fraction.
func (c Component) Column() string {
	if !c.Valid() {
		return ""
	}
	return componentColumns[c]
}

// Valid reports whether c is one of the seven known components.
func (c Component) Valid() bool {
	return c >= 0 && int(c) < NumComponents
}

// MarshalText encodes the component by its column name so JSON map keys
// read "x_ch4" rather than an integer.
func (c Component) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid component %d", int(c))
	}
	return []byte(c.Column()), nil
}

// UnmarshalText accepts any spelling understood by ParseComponent.
func (c *Component) UnmarshalText(text []byte) error {
	parsed, err := ParseComponent(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseComponent resolves a user-supplied component name.
//
// Accepted spellings include the chemical name ("CH4", "i-C4H10"), the
// column name ("x_ch4"), the CSV header form ("xCH4", "x i-C4H10") and
// Unicode subscripts ("CH₄"). Matching is case-insensitive.
//
// Returns an UNKNOWN_COMPONENT error for anything else.
func ParseComponent(name string) (Component, error) {
	key := normalizeName(name)
	for _, c := range AllComponents {
		if key == normalizeName(componentNames[c]) {
			return c, nil
		}
	}
	return 0, &Error{
		Code:    ErrCodeUnknownComponent,
		Message: fmt.Sprintf("unknown component %q", name),
	}
}

// normalizeName folds a component spelling to a comparable key.
// NFKC maps subscript and full-width digits to ASCII (CH₄ → CH4).
func normalizeName(name string) string {
	s := strings.ToLower(norm.NFKC.String(strings.TrimSpace(name)))
	if strings.HasPrefix(s, "x_") {
		s = s[2:]
	} else if strings.HasPrefix(s, "x ") {
		s = s[2:]
	} else if strings.HasPrefix(s, "x") && len(s) > 1 {
		// CSV header form "xch4"; no component name starts with x.
		s = s[1:]
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '-', '_', ' ', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ComponentSet is a set of components with deterministic iteration order.
type ComponentSet [NumComponents]bool

// Add inserts c into the set.
func (s *ComponentSet) Add(c Component) {
	if c.Valid() {
		s[c] = true
	}
}

// Has reports whether c is in the set.
func (s ComponentSet) Has(c Component) bool {
	return c.Valid() && s[c]
}

// Len returns the number of components in the set.
func (s ComponentSet) Len() int {
	n := 0
	for _, in := range s {
		if in {
			n++
		}
	}
	return n
}

// Slice returns the members in canonical order.
// Returns an empty slice (not nil) for the empty set.
func (s ComponentSet) Slice() []Component {
	out := []Component{}
	for _, c := range AllComponents {
		if s[c] {
			out = append(out, c)
		}
	}
	return out
}

// MarshalJSON encodes the set as a list of column names in canonical order.
func (s ComponentSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// FullSet returns a set holding all seven components.
func FullSet() ComponentSet {
	var s ComponentSet
	for _, c := range AllComponents {
		s[c] = true
	}
	return s
}
