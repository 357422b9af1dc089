// Package denomination maps detection class labels to Peruvian banknote values.
//
// The label table is best-effort: the surface forms come from whatever names
// the detection model was trained with, and that set is neither closed nor
// versioned. Extend it (or configure aliases) as new variants are observed.
package denomination

import (
	"fmt"
)

// values lists the banknote denominations in circulation, ascending.
var values = []int{10, 20, 50, 100, 200}

// surfaceForms are the label spellings generated for every denomination.
var surfaceForms = []string{
	"%d",
	"S%d",
	"s%d",
	"%d_soles",
	"billete_%d",
	"S/%d",
	"S/.%d",
}

// Resolver resolves class labels to denominations. Lookups are exact and
// case-sensitive. A Resolver is read-only after construction and safe for
// concurrent use.
type Resolver struct {
	forms map[string]int
}

var defaultResolver = build()

func build() *Resolver {
	r := &Resolver{forms: make(map[string]int, len(values)*len(surfaceForms))}
	for _, v := range values {
		for _, f := range surfaceForms {
			r.forms[fmt.Sprintf(f, v)] = v
		}
	}
	return r
}

// Default returns the resolver with the built-in label table
func Default() *Resolver {
	return defaultResolver
}

// NewResolver returns a resolver with the built-in table plus aliases.
// Every alias must map to a known denomination.
func NewResolver(aliases map[string]int) (*Resolver, error) {
	r := build()
	for label, v := range aliases {
		if !IsKnown(v) {
			return nil, fmt.Errorf("alias %q maps to unknown denomination %d", label, v)
		}
		r.forms[label] = v
	}
	return r, nil
}

// Resolve returns the denomination for a label. Unknown labels report false.
func (r *Resolver) Resolve(label string) (int, bool) {
	v, ok := r.forms[label]
	return v, ok
}

// Values returns the known denominations in ascending order
func Values() []int {
	out := make([]int, len(values))
	copy(out, values)
	return out
}

// IsKnown reports whether v is a banknote denomination
func IsKnown(v int) bool {
	for _, known := range values {
		if known == v {
			return true
		}
	}
	return false
}
