package devs

import (
	"encoding/json"
	"testing"
)

func variantValue(name string) json.RawMessage {
	data, _ := json.Marshal(name)
	return data
}

// TestVariantEnumeratorCartesianProduct matches spec scenario 6: a root
// with no variants (default), and two children with 2 and 3 variants
// respectively, yields 2*3 = 6 variants with indices 0..5.
func TestVariantEnumeratorCartesianProduct(t *testing.T) {
	sets := map[string]VariantSet{
		"root/a": {"a1": variantValue("a1"), "a2": variantValue("a2")},
		"root/b": {"b1": variantValue("b1"), "b2": variantValue("b2"), "b3": variantValue("b3")},
	}
	enum := NewVariantEnumerator(sets)

	var got [][2]string
	for {
		idx, values, ok := enum.Next()
		if !ok {
			break
		}
		if idx != uint64(len(got)) {
			t.Errorf("variant index %d out of order, got sequence position %d", idx, len(got))
		}
		var a, b string
		_ = json.Unmarshal(values["root/a"], &a)
		_ = json.Unmarshal(values["root/b"], &b)
		got = append(got, [2]string{a, b})
	}

	if len(got) != 6 {
		t.Fatalf("enumerated %d variants, want 6", len(got))
	}

	seen := make(map[[2]string]bool)
	for _, pair := range got {
		if seen[pair] {
			t.Errorf("duplicate variant pair %v", pair)
		}
		seen[pair] = true
	}
	if len(seen) != 6 {
		t.Fatalf("saw %d distinct pairs, want 6", len(seen))
	}

	// The fastest-varying digit (last in sorted model-path order) should
	// roll over before the slower one, odometer-style.
	if got[0] != [2]string{"a1", "b1"} {
		t.Errorf("first variant = %v, want [a1 b1]", got[0])
	}
	if got[1] != [2]string{"a1", "b2"} {
		t.Errorf("second variant = %v, want [a1 b2]", got[1])
	}
	if got[3] != [2]string{"a2", "b1"} {
		t.Errorf("fourth variant = %v, want [a2 b1] (a should carry after b exhausts)", got[3])
	}
}

func TestVariantEnumeratorSingleVariant(t *testing.T) {
	sets := map[string]VariantSet{
		"root": {"default": variantValue("default")},
	}
	enum := NewVariantEnumerator(sets)

	_, _, ok := enum.Next()
	if !ok {
		t.Fatal("expected one variant")
	}
	_, _, ok = enum.Next()
	if ok {
		t.Fatal("expected enumeration to stop after the single variant")
	}
}

func TestVariantEnumeratorEmpty(t *testing.T) {
	enum := NewVariantEnumerator(map[string]VariantSet{})
	_, values, ok := enum.Next()
	if !ok {
		t.Fatal("an enumerator with no variant dimensions should still yield exactly one (empty) variant")
	}
	if len(values) != 0 {
		t.Errorf("values = %v, want empty", values)
	}
	_, _, ok = enum.Next()
	if ok {
		t.Fatal("expected enumeration to stop after the single empty variant")
	}
}
