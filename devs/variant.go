package devs

import (
	"encoding/json"
	"sort"
)

// VariantSet is, for one model's full path, the named set of JSON init
// values an experiment may enumerate over — e.g. {"cold": ..., "warm": ...}.
// A model with exactly one entry (the common case) contributes no real
// branching to the Cartesian product.
type VariantSet map[string]json.RawMessage

// VariantEnumerator walks the Cartesian product of every model's VariantSet
// in a fixed, deterministic order: models ordered by full path
// (lexicographic, the Go analogue of the reference implementation's
// BTreeMap key order), and within each model its variant names likewise
// sorted. It increments like an odometer, last digit fastest, carrying left,
// and is exhausted the moment a carry would ripple past the first digit.
type VariantEnumerator struct {
	variants map[string]VariantSet
	digits   []variantDigit
	carry    int
	next     uint64
}

type variantDigit struct {
	modelPath string
	names     []string
	idx       int
}

// NewVariantEnumerator builds an enumerator from every model's declared
// VariantSet, keyed by full model path.
func NewVariantEnumerator(variants map[string]VariantSet) *VariantEnumerator {
	paths := make([]string, 0, len(variants))
	for p := range variants {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	digits := make([]variantDigit, 0, len(paths))
	for _, p := range paths {
		names := make([]string, 0, len(variants[p]))
		for n := range variants[p] {
			names = append(names, n)
		}
		sort.Strings(names)
		digits = append(digits, variantDigit{modelPath: p, names: names})
	}

	return &VariantEnumerator{variants: variants, digits: digits, carry: 0}
}

// Next returns the next (variantIndex, full init-value assignment) pair, or
// ok == false once every combination has been produced. variantIndex starts
// at 0 and increases by one per call.
func (e *VariantEnumerator) Next() (variantIndex uint64, values map[string]json.RawMessage, ok bool) {
	if e.carry != 0 {
		return 0, nil, false
	}

	values = make(map[string]json.RawMessage, len(e.digits))
	for _, d := range e.digits {
		if len(d.names) == 0 {
			continue
		}
		name := d.names[d.idx]
		values[d.modelPath] = e.variants[d.modelPath][name]
	}

	e.carry = 1
	for i := len(e.digits) - 1; i >= 0; i-- {
		d := &e.digits[i]
		if len(d.names) == 0 {
			continue
		}
		d.idx += e.carry
		if d.idx == len(d.names) {
			d.idx = 0
			e.carry = 1
		} else {
			e.carry = 0
		}
	}

	variantIndex = e.next
	e.next++
	return variantIndex, values, true
}
