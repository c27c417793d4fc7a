package devs

// routeInputs computes, for a coupled node's Structure, the per-child
// inbound bag given the parent's own external input xBag and the mail
// collected from children this tick. Order is EIC projections first, then
// IC projections, and within each category in coupling-declaration order —
// this is the order-preservation rule from §4.2 of the governing design.
//
// The returned map only contains entries for children that received at
// least one routed message; the second return value lists those child
// names in the order they first received a message, which
// callers can use for deterministic iteration without re-sorting a map.
func routeInputs(st *Structure, xBag Bag, mail Mail) (map[string]Bag, []string) {
	routed := make(map[string]Bag)
	var order []string

	noteChild := func(name string) {
		if _, ok := routed[name]; !ok {
			order = append(order, name)
		}
	}

	for _, edge := range st.EIC {
		for _, msg := range xBag {
			if msg.Port != edge.SrcPort {
				continue
			}
			noteChild(edge.DstChild)
			routed[edge.DstChild] = append(routed[edge.DstChild], Message{Port: edge.DstPort, Value: msg.Value})
		}
	}

	for _, edge := range st.IC {
		for _, item := range mail {
			if item.ChildName != edge.SrcChild {
				continue
			}
			for _, msg := range item.YBag {
				if msg.Port != edge.SrcPort {
					continue
				}
				noteChild(edge.DstChild)
				routed[edge.DstChild] = append(routed[edge.DstChild], Message{Port: edge.DstPort, Value: msg.Value})
			}
		}
	}

	return routed, order
}

// routeOutputs computes a coupled node's up-going bag from the mail
// collected this tick, applying EOC edges in declaration order (§4.2).
func routeOutputs(st *Structure, mail Mail) Bag {
	var bag Bag
	for _, edge := range st.EOC {
		for _, item := range mail {
			if item.ChildName != edge.SrcChild {
				continue
			}
			for _, msg := range item.YBag {
				if msg.Port == edge.SrcPort {
					bag = append(bag, Message{Port: edge.DstPort, Value: msg.Value})
				}
			}
		}
	}
	return bag
}
