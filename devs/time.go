// Package devs provides the core Parallel DEVS simulation kernel: the
// per-model simulator, the coupled-model router, the root driver, and the
// experiment driver that runs a model tree across initial-state variants
// and iterations.
package devs

import "fmt"

// tag discriminates the three variants of Time.
type tag uint8

const (
	tagValue tag = iota
	tagInf
	tagStopSim
)

// Time is the totally ordered simulation time domain. It carries one of
// three variants: a finite instant (Value), the passive state (Inf), or a
// sentinel strictly below every other value (StopSim) used to force
// termination of a run.
//
// Time is a value type; the zero Time is Value(0).
type Time struct {
	tag tag
	n   int64
}

// ValueTime returns a finite instant at n.
func ValueTime(n int64) Time { return Time{tag: tagValue, n: n} }

// Inf is the passive state: no event is ever scheduled.
var Inf = Time{tag: tagInf}

// StopSim is a sentinel strictly less than every Value(n) and less than Inf.
var StopSim = Time{tag: tagStopSim}

// IsValue reports whether t carries a finite instant, returning it.
func (t Time) IsValue() (int64, bool) {
	if t.tag == tagValue {
		return t.n, true
	}
	return 0, false
}

// IsInf reports whether t is the passive state.
func (t Time) IsInf() bool { return t.tag == tagInf }

// IsStopSim reports whether t is the stop sentinel.
func (t Time) IsStopSim() bool { return t.tag == tagStopSim }

// Compare returns -1, 0, or 1 as t is less than, equal to, or greater than
// other. StopSim orders below everything; Inf orders above every Value.
func (t Time) Compare(other Time) int {
	if t.tag == tagStopSim && other.tag == tagStopSim {
		return 0
	}
	if t.tag == tagStopSim {
		return -1
	}
	if other.tag == tagStopSim {
		return 1
	}
	if t.tag == tagInf && other.tag == tagInf {
		return 0
	}
	if t.tag == tagInf {
		return 1
	}
	if other.tag == tagInf {
		return -1
	}
	switch {
	case t.n < other.n:
		return -1
	case t.n > other.n:
		return 1
	default:
		return 0
	}
}

// Less reports whether t < other.
func (t Time) Less(other Time) bool { return t.Compare(other) < 0 }

// Equal reports whether t == other.
func (t Time) Equal(other Time) bool { return t.Compare(other) == 0 }

// Min returns the lesser of t and other.
func (t Time) Min(other Time) Time {
	if t.Less(other) {
		return t
	}
	return other
}

// Add computes t + other per the algebra in the time domain: Inf absorbs,
// StopSim is an identity against a Value and idempotent against itself.
// Overflow of a Value+Value addition is a fatal error (panics), matching
// the reference behavior of failing loudly rather than wrapping silently.
func (t Time) Add(other Time) Time {
	switch {
	case t.tag == tagInf || other.tag == tagInf:
		return Inf
	case t.tag == tagStopSim && other.tag == tagStopSim:
		return StopSim
	case t.tag == tagStopSim:
		return other
	case other.tag == tagStopSim:
		return t
	default:
		sum := t.n + other.n
		if (other.n > 0 && sum < t.n) || (other.n < 0 && sum > t.n) {
			panic(fmt.Sprintf("devs: Time overflow adding %d + %d", t.n, other.n))
		}
		return ValueTime(sum)
	}
}

// Sub computes t - other with the same absorption/identity rules as Add.
func (t Time) Sub(other Time) Time {
	switch {
	case t.tag == tagInf || other.tag == tagInf:
		return Inf
	case t.tag == tagStopSim && other.tag == tagStopSim:
		return StopSim
	case t.tag == tagStopSim:
		return other
	case other.tag == tagStopSim:
		return t
	default:
		diff := t.n - other.n
		if (other.n < 0 && diff < t.n) || (other.n > 0 && diff > t.n) {
			panic(fmt.Sprintf("devs: Time overflow subtracting %d - %d", t.n, other.n))
		}
		return ValueTime(diff)
	}
}

// String renders Value(n) as a decimal integer and the sentinels as their
// canonical names, matching the log-record encoding in package logger.
func (t Time) String() string {
	switch t.tag {
	case tagInf:
		return "Inf"
	case tagStopSim:
		return "StopSim"
	default:
		return fmt.Sprintf("%d", t.n)
	}
}

// MarshalJSON encodes Value(n) as a JSON number and the sentinels as the
// strings "Inf" / "StopSim", per the reference log-record encoding.
func (t Time) MarshalJSON() ([]byte, error) {
	switch t.tag {
	case tagInf:
		return []byte(`"Inf"`), nil
	case tagStopSim:
		return []byte(`"StopSim"`), nil
	default:
		return []byte(fmt.Sprintf("%d", t.n)), nil
	}
}

// UnmarshalJSON accepts a JSON number for Value(n) or the strings
// "Inf"/"StopSim" for the sentinels.
func (t *Time) UnmarshalJSON(data []byte) error {
	s := string(data)
	switch s {
	case `"Inf"`:
		*t = Inf
		return nil
	case `"StopSim"`:
		*t = StopSim
		return nil
	default:
		var n int64
		if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
			return fmt.Errorf("devs: invalid Time literal %q: %w", s, err)
		}
		*t = ValueTime(n)
		return nil
	}
}
