package devs

import "fmt"

// Observer receives every lifecycle event fired by a Simulator node: init,
// output collection, the three transition kinds plus their pre/post hooks,
// the coupled-only external-mail hook, the post-children-transition hook,
// and the terminal finish call.
//
// A node's observers fire in the order they were attached; that order is
// part of the contract (see the Ordering guarantees in the governing
// design's concurrency section) and must never be reordered by the kernel.
//
// Implementations should not panic. A method not relevant to a particular
// observer should simply do nothing; embedding NopObserver gives every
// method a no-op default.
type Observer interface {
	// OnInit fires once, right after a model's Behavior.Init runs.
	OnInit(node *Simulator, initTime Time, initValue []byte, initState []byte, tNext Time)

	// OnOutputs fires after collect_outputs computes a node's bag for this
	// tick, whether or not the node itself was imminent.
	OnOutputs(node *Simulator, simTime Time, bag Bag)

	BeforeInternalTransition(node *Simulator, simTime Time)
	AfterInternalTransition(node *Simulator, simTime Time, fromState, toState []byte, tNext Time)

	BeforeExternalTransition(node *Simulator, simTime, elapsed Time, xBag Bag)
	AfterExternalTransition(node *Simulator, simTime Time, fromState, toState []byte, tNext Time)

	BeforeConfluentTransition(node *Simulator, simTime Time, xBag Bag)
	AfterConfluentTransition(node *Simulator, simTime Time, fromState, toState []byte, tNext Time)

	// BeforeExternalMailTransition / AfterExternalMailTransition bracket the
	// optional MailBehavior hook on coupled nodes (no-op when the node's
	// behavior does not implement MailBehavior).
	BeforeExternalMailTransition(node *Simulator, simTime, elapsed Time, mail Mail)
	AfterExternalMailTransition(node *Simulator, simTime Time, tNext Time)

	// AfterSubmodelsTransition fires on a coupled node once its children
	// have all processed their x-messages for this tick.
	AfterSubmodelsTransition(node *Simulator, simTime Time, tNext Time)

	// Finish fires once per node at the end of a run. A result, if any,
	// is folded into the per-model result map the root driver returns
	// (full_name -> observer_name -> result).
	Finish(node *Simulator, simTime Time) (result any, ok bool)
}

// NopObserver implements Observer with every method a no-op. Embed it to
// pick only the hooks a concrete observer cares about.
type NopObserver struct{}

func (NopObserver) OnInit(*Simulator, Time, []byte, []byte, Time)                   {}
func (NopObserver) OnOutputs(*Simulator, Time, Bag)                                 {}
func (NopObserver) BeforeInternalTransition(*Simulator, Time)                       {}
func (NopObserver) AfterInternalTransition(*Simulator, Time, []byte, []byte, Time)   {}
func (NopObserver) BeforeExternalTransition(*Simulator, Time, Time, Bag)             {}
func (NopObserver) AfterExternalTransition(*Simulator, Time, []byte, []byte, Time)   {}
func (NopObserver) BeforeConfluentTransition(*Simulator, Time, Bag)                  {}
func (NopObserver) AfterConfluentTransition(*Simulator, Time, []byte, []byte, Time)  {}
func (NopObserver) BeforeExternalMailTransition(*Simulator, Time, Time, Mail)        {}
func (NopObserver) AfterExternalMailTransition(*Simulator, Time, Time)               {}
func (NopObserver) AfterSubmodelsTransition(*Simulator, Time, Time)                  {}
func (NopObserver) Finish(*Simulator, Time) (any, bool)                             { return nil, false }

// NamedObserver is an optional extension an Observer can implement to
// control the key its Finish result is stored under in the run's per-model
// result map. Observers that don't implement it are keyed by their Go type
// name instead.
type NamedObserver interface {
	Observer
	Name() string
}

func observerName(obs Observer) string {
	if n, ok := obs.(NamedObserver); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", obs)
}
