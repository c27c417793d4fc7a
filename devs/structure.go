package devs

// ExternalInputCoupling routes a message arriving on the parent's own
// input port SrcPort to port DstPort on child DstChild.
type ExternalInputCoupling struct {
	SrcPort  string
	DstChild string
	DstPort  string
}

// InternalCoupling routes a message emitted by SrcChild on SrcPort to port
// DstPort on child DstChild.
type InternalCoupling struct {
	SrcChild string
	SrcPort  string
	DstChild string
	DstPort  string
}

// ExternalOutputCoupling routes a message emitted by SrcChild on SrcPort up
// to the parent's own output port DstPort.
type ExternalOutputCoupling struct {
	SrcChild string
	SrcPort  string
	DstPort  string
}

// Structure is the coupling table of a coupled model: its declared ports,
// its children (a simulator tree per child, keyed by name), and the three
// coupling edge sets that the router (route.go) uses to project messages
// between a parent's bags and its children's.
//
// ChildOrder fixes the deterministic iteration order over Children used for
// tie-breaking when several children are imminent at the same tick; it must
// list every key of Children exactly once. Callers that build a Structure
// by hand should set it to the insertion order of the children map.
type Structure struct {
	InputPorts  []string
	OutputPorts []string

	Children   map[string]*Simulator
	ChildOrder []string

	EIC []ExternalInputCoupling
	IC  []InternalCoupling
	EOC []ExternalOutputCoupling
}

// HasChildren reports whether this structure has any sub-models, i.e.
// whether the owning node is coupled rather than atomic.
func (s *Structure) HasChildren() bool {
	return s != nil && len(s.Children) > 0
}

// validate checks the structural invariants from §3.3: ChildOrder lists
// every child exactly once, every coupling references an existing child,
// EIC source ports are declared input ports of the parent, and EOC
// destination ports are declared output ports of the parent. It does not
// check a coupling's child-side port against that child's declared ports,
// since a Simulator does not retain its own Structure's port list at the
// point couplings are validated for atomic children; package config does
// not check child-side ports either.
func (s *Structure) validate(selfInputPorts, selfOutputPorts []string) error {
	inSet := toSet(selfInputPorts)
	outSet := toSet(selfOutputPorts)

	seen := make(map[string]bool, len(s.ChildOrder))
	for _, name := range s.ChildOrder {
		if seen[name] {
			return &StructuralError{Msg: "duplicate child name: " + name}
		}
		seen[name] = true
		if _, ok := s.Children[name]; !ok {
			return &StructuralError{Msg: "ChildOrder references unknown child: " + name}
		}
	}
	if len(seen) != len(s.Children) {
		return &StructuralError{Msg: "ChildOrder does not enumerate every child exactly once"}
	}

	for _, e := range s.EIC {
		if !inSet[e.SrcPort] {
			return &StructuralError{Msg: "EIC references unknown input port: " + e.SrcPort}
		}
		if _, ok := s.Children[e.DstChild]; !ok {
			return &StructuralError{Msg: "EIC references unknown child: " + e.DstChild}
		}
	}
	for _, e := range s.IC {
		if _, ok := s.Children[e.SrcChild]; !ok {
			return &StructuralError{Msg: "IC references unknown source child: " + e.SrcChild}
		}
		if _, ok := s.Children[e.DstChild]; !ok {
			return &StructuralError{Msg: "IC references unknown destination child: " + e.DstChild}
		}
	}
	for _, e := range s.EOC {
		if _, ok := s.Children[e.SrcChild]; !ok {
			return &StructuralError{Msg: "EOC references unknown child: " + e.SrcChild}
		}
		if !outSet[e.DstPort] {
			return &StructuralError{Msg: "EOC references unknown output port: " + e.DstPort}
		}
	}
	return nil
}

func toSet(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}
